package models

import (
	"time"
)

// Recognized history actions
const (
	ActionAdd      = "add"
	ActionDelete   = "delete"
	ActionModified = "modified"
)

// HistoryEntry is one row of the append-only audit trail. Text carries a
// snapshot of the comment body for add/modified and stays empty for delete.
// Rows are never updated or deleted.
type HistoryEntry struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CommentID uint      `gorm:"not null;index" json:"comment_id"`
	UserID    string    `gorm:"size:50" json:"user_id"`
	Action    string    `gorm:"size:16;not null" json:"action"`
	Text      string    `gorm:"type:text" json:"text"`
	CreatedAt time.Time `json:"created_at"`
}
