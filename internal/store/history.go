package store

import (
	"threadline/internal/models"

	"gorm.io/gorm"
)

// recordHistory appends one audit row. It runs inside the caller's
// transaction so the audit trail commits or rolls back together with the
// mutation it describes; nothing outside this package writes history.
func recordHistory(tx *gorm.DB, commentID uint, userID, action, snapshot string) error {
	switch action {
	case models.ActionAdd, models.ActionDelete, models.ActionModified:
	default:
		return &InvalidActionError{Action: action}
	}

	entry := models.HistoryEntry{
		CommentID: commentID,
		UserID:    userID,
		Action:    action,
	}
	if action != models.ActionDelete {
		entry.Text = snapshot
	}
	return tx.Create(&entry).Error
}
