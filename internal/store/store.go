package store

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"threadline/internal/models"

	"gorm.io/gorm"
)

// CommentStore owns the Comment and AncestryEdge lifecycles. The database
// handle is injected at construction. The mutex serializes the mutation
// path: two replies created under the same parent must not interleave their
// ancestor-chain read with the edge writes.
type CommentStore struct {
	db *gorm.DB
	mu sync.Mutex
}

func NewCommentStore(db *gorm.DB) *CommentStore {
	return &CommentStore{db: db}
}

// CreateParams carries the caller-supplied fields for a new comment.
// CreatedAt is optional and exists for backfill; the zero value means "now".
type CreateParams struct {
	ObjType   string
	ObjID     string
	UserID    string
	Text      string
	ParentID  *uint
	CreatedAt time.Time
}

// Create inserts the comment row, one ancestry edge per ancestor and the
// "add" audit row as a single transaction. If the new comment has parents
// p1(root)->p2->p3, three edges are written: (id,p1,1), (id,p2,2), (id,p3,3).
// A top-level comment writes no edges. Returns the new comment id.
func (s *CommentStore) Create(p CreateParams) (uint, error) {
	if p.ObjType == "" {
		return 0, &InvalidParameterError{Reason: "obj_type is required"}
	}
	if p.ObjID == "" {
		return 0, &InvalidParameterError{Reason: "obj_id is required"}
	}
	if p.UserID == "" {
		return 0, &InvalidParameterError{Reason: "user_id is required"}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := p.CreatedAt
	if now.IsZero() {
		now = time.Now().UTC()
	}

	comment := models.Comment{
		CreatedAt: now,
		UpdatedAt: now,
		ObjType:   p.ObjType,
		ObjID:     p.ObjID,
		UserID:    p.UserID,
		ParentID:  p.ParentID,
		Text:      p.Text,
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		var chain []uint
		if p.ParentID != nil {
			var parent models.Comment
			if err := tx.First(&parent, *p.ParentID).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return &NotFoundError{Kind: "comment", ID: *p.ParentID}
				}
				return fmt.Errorf("load parent: %w", err)
			}
			ancestors, err := ancestorIDs(tx, parent.ID)
			if err != nil {
				return err
			}
			chain = append(ancestors, parent.ID)
		}

		if err := tx.Create(&comment).Error; err != nil {
			return fmt.Errorf("insert comment: %w", err)
		}

		for i, ancestorID := range chain {
			edge := models.AncestryEdge{
				CommentID:  comment.ID,
				AncestorID: ancestorID,
				Depth:      i + 1,
			}
			if err := tx.Create(&edge).Error; err != nil {
				return fmt.Errorf("insert ancestry edge: %w", err)
			}
		}

		return recordHistory(tx, comment.ID, p.UserID, models.ActionAdd, p.Text)
	})
	if err != nil {
		return 0, err
	}

	return comment.ID, nil
}

// Get loads a single comment row.
func (s *CommentStore) Get(commentID uint) (*models.Comment, error) {
	var comment models.Comment
	if err := s.db.First(&comment, commentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &NotFoundError{Kind: "comment", ID: commentID}
		}
		return nil, fmt.Errorf("load comment: %w", err)
	}
	return &comment, nil
}

// Ancestors returns the comment's ancestor ids, root first. A top-level or
// unknown comment yields an empty slice, not an error.
func (s *CommentStore) Ancestors(commentID uint) ([]uint, error) {
	return ancestorIDs(s.db, commentID)
}

// ancestorIDs reads the edge set for one comment. Depth is counted from the
// root, so ascending sort reproduces the chain in root-first order.
func ancestorIDs(tx *gorm.DB, commentID uint) ([]uint, error) {
	var edges []models.AncestryEdge
	if err := tx.Where("comment_id = ?", commentID).Order("depth ASC").Find(&edges).Error; err != nil {
		return nil, fmt.Errorf("load ancestry edges: %w", err)
	}
	ids := make([]uint, len(edges))
	for i, e := range edges {
		ids[i] = e.AncestorID
	}
	return ids, nil
}

// Descendants returns every comment that lists commentID among its
// ancestors, at any depth, ordered by id ascending. One pass over the edge
// table joined to the comment rows; no recursion.
func (s *CommentStore) Descendants(commentID uint) ([]models.Comment, error) {
	var comments []models.Comment
	err := s.db.
		Select("comments.*").
		Joins("JOIN ancestry_edges ON ancestry_edges.comment_id = comments.id").
		Where("ancestry_edges.ancestor_id = ?", commentID).
		Order("comments.id ASC").
		Find(&comments).Error
	if err != nil {
		return nil, fmt.Errorf("load descendants: %w", err)
	}
	return comments, nil
}

// ListTopLevel pages through the top-level comments of one object, oldest
// first, optionally filtered to one author. Callers wanting a "next page"
// indicator request limit+1 rows and trim the extra one.
func (s *CommentStore) ListTopLevel(objType, objID, userID string, limit, offset int) ([]models.Comment, error) {
	q := s.db.Where("obj_type = ? AND obj_id = ? AND parent_id IS NULL", objType, objID)
	if userID != "" {
		q = q.Where("user_id = ?", userID)
	}

	var comments []models.Comment
	if err := q.Order("created_at ASC").Limit(limit).Offset(offset).Find(&comments).Error; err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	return comments, nil
}

// Update overwrites the comment text and appends a "modified" audit row.
// UpdatedAt is deliberately left alone; callers that want it bumped must do
// so themselves.
func (s *CommentStore) Update(commentID uint, editorID, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Comment{}).Where("id = ?", commentID).UpdateColumn("text", text)
		if res.Error != nil {
			return fmt.Errorf("update comment: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return &NotFoundError{Kind: "comment", ID: commentID}
		}
		return recordHistory(tx, commentID, editorID, models.ActionModified, text)
	})
}

// Delete removes the comment row and the edges where it is the descendant,
// then appends a "delete" audit row. The guard checks direct children only,
// and edges where the comment is an ancestor of other rows are left behind;
// both are long-standing behavior that readers of this table rely on (see
// store_test.go for the orphaned-grandchild case).
func (s *CommentStore) Delete(commentID uint, editorID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.db.Transaction(func(tx *gorm.DB) error {
		var comment models.Comment
		if err := tx.First(&comment, commentID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return &NotFoundError{Kind: "comment", ID: commentID}
			}
			return fmt.Errorf("load comment: %w", err)
		}

		var children int64
		if err := tx.Model(&models.Comment{}).Where("parent_id = ?", commentID).Count(&children).Error; err != nil {
			return fmt.Errorf("count children: %w", err)
		}
		if children > 0 {
			return &HasChildrenError{CommentID: commentID}
		}

		if err := tx.Delete(&models.Comment{}, commentID).Error; err != nil {
			return fmt.Errorf("delete comment: %w", err)
		}
		if err := tx.Where("comment_id = ?", commentID).Delete(&models.AncestryEdge{}).Error; err != nil {
			return fmt.Errorf("delete ancestry edges: %w", err)
		}
		return recordHistory(tx, commentID, editorID, models.ActionDelete, "")
	})
}
