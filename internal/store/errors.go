package store

import "fmt"

// InvalidParameterError reports missing or malformed caller input. The
// failed operation mutates nothing.
type InvalidParameterError struct {
	Reason string
}

func (e *InvalidParameterError) Error() string {
	return "invalid parameter: " + e.Reason
}

// NotFoundError reports a referenced row that does not exist.
type NotFoundError struct {
	Kind string
	ID   uint
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Kind, e.ID)
}

// HasChildrenError blocks deletion of a comment that still has direct
// children. Deeper descendants alone do not trigger it.
type HasChildrenError struct {
	CommentID uint
}

func (e *HasChildrenError) Error() string {
	return fmt.Sprintf("comment %d has children comments", e.CommentID)
}

// InvalidActionError reports a history action outside add/delete/modified.
type InvalidActionError struct {
	Action string
}

func (e *InvalidActionError) Error() string {
	return fmt.Sprintf("invalid history action %q, must be add/delete/modified", e.Action)
}
