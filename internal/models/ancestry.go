package models

// AncestryEdge materializes one ancestor of a comment. For a comment whose
// root-to-parent chain has N nodes there are exactly N edges, with Depth
// counted from the root: root = 1, immediate parent = N. The edge set is
// written once when the comment is created and never rewritten, so the same
// ancestor id carries a different Depth in different descendants' edge sets.
//
// Sorting a comment's edges by Depth ascending reproduces its ancestor chain
// root first; filtering by AncestorID finds every descendant in one pass.
type AncestryEdge struct {
	CommentID  uint `gorm:"not null;index" json:"comment_id"`
	AncestorID uint `gorm:"not null;index" json:"ancestor_id"`
	Depth      int  `gorm:"not null" json:"depth"`
}
