package models

import (
	"time"
)

// Report job lifecycle states. Jobs are created working and end up
// completed or failed.
const (
	ReportStatusWorking   = "working"
	ReportStatusCompleted = "completed"
	ReportStatusFailed    = "failed"
)

// ReportJob describes one asynchronous comment export. The filter fields
// (UserID, ObjType, ObjID, StartDate, EndDate) are each optional; FileName
// stays empty until the export completes, and Description carries the error
// text when a job fails.
type ReportJob struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	Owner       string     `gorm:"size:50;index" json:"owner"`
	UserID      string     `gorm:"size:50" json:"user_id"`
	ObjType     string     `gorm:"size:50" json:"obj_type"`
	ObjID       string     `gorm:"size:50" json:"obj_id"`
	StartDate   *time.Time `json:"start_date"`
	EndDate     *time.Time `json:"end_date"`
	Status      string     `gorm:"size:16;not null" json:"status"`
	FileType    string     `gorm:"size:8;not null" json:"file_type"`
	FileName    string     `json:"file_name"`
	Description string     `json:"description"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}
