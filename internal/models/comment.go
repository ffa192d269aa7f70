package models

import (
	"time"
)

// Comment is a single comment attached to an external object. The object
// itself lives outside this system; ObjType and ObjID are opaque identifiers
// supplied by the caller and never validated here.
type Comment struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	ObjType   string    `gorm:"size:50;not null;index:idx_comments_object,priority:1" json:"obj_type"`
	ObjID     string    `gorm:"size:50;not null;index:idx_comments_object,priority:2" json:"obj_id"`
	UserID    string    `gorm:"size:50;not null;index" json:"user_id"`
	ParentID  *uint     `gorm:"index:idx_comments_object,priority:3" json:"parent_id"` // Nullable for top-level comments
	Text      string    `gorm:"type:text" json:"text"`
}
