package services

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"threadline/internal/models"
	"threadline/internal/store"

	"gorm.io/gorm"
)

// queueSize bounds how many dispatched-but-not-started jobs can pile up
// before Enqueue blocks on queue space.
const queueSize = 1000

// ExportError reports an I/O failure while producing a report artifact.
type ExportError struct {
	JobID uint
	Err   error
}

func (e *ExportError) Error() string {
	return fmt.Sprintf("report %d export failed: %v", e.JobID, e.Err)
}

func (e *ExportError) Unwrap() error { return e.Err }

// ReportService owns the ReportJob lifecycle: it records jobs, feeds their
// ids to background workers over a buffered channel and runs the filtered
// CSV export. Comments are strictly read-only from here.
type ReportService struct {
	db    *gorm.DB
	dir   string
	queue chan uint

	// exportFn overrides the CSV exporter when set. Tests use it to drive
	// the failure and recovery paths without touching the filesystem.
	exportFn func(*models.ReportJob) (string, error)
}

// NewReportService starts `workers` goroutines draining the job queue.
// There is no ordering guarantee between jobs and no cancellation; a
// dispatched job runs to completion or to a recorded failure.
func NewReportService(db *gorm.DB, dir string, workers int) *ReportService {
	if workers < 1 {
		workers = 1
	}
	s := &ReportService{
		db:    db,
		dir:   dir,
		queue: make(chan uint, queueSize),
	}
	for i := 0; i < workers; i++ {
		go s.worker()
	}
	return s
}

// EnqueueParams carries the report filter. Every field is optional except
// that at least one of UserID and ObjType must be set.
type EnqueueParams struct {
	Owner     string
	UserID    string
	ObjType   string
	ObjID     string
	StartDate *time.Time
	EndDate   *time.Time
}

// Enqueue records a job in the working state and hands its id to the
// workers. It returns as soon as the row is inserted and queued; the caller
// never waits for the export.
func (s *ReportService) Enqueue(p EnqueueParams) (uint, error) {
	if p.UserID == "" && p.ObjType == "" {
		return 0, &store.InvalidParameterError{Reason: "user_id or obj_type is required"}
	}

	job := models.ReportJob{
		Owner:     p.Owner,
		UserID:    p.UserID,
		ObjType:   p.ObjType,
		ObjID:     p.ObjID,
		StartDate: p.StartDate,
		EndDate:   p.EndDate,
		Status:    models.ReportStatusWorking,
		FileType:  "csv",
	}
	if err := s.db.Create(&job).Error; err != nil {
		return 0, fmt.Errorf("insert report job: %w", err)
	}

	s.queue <- job.ID
	return job.ID, nil
}

// Requeue pushes an existing job back onto the queue (the "restart" action).
func (s *ReportService) Requeue(jobID uint) error {
	var job models.ReportJob
	if err := s.db.First(&job, jobID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &store.NotFoundError{Kind: "report", ID: jobID}
		}
		return fmt.Errorf("load report job: %w", err)
	}
	s.queue <- job.ID
	return nil
}

// List pages through jobs newest first. An empty userID is the
// administrative view across all owners. Same limit+1 convention as the
// comment listing.
func (s *ReportService) List(userID string, limit, offset int) ([]models.ReportJob, error) {
	q := s.db.Model(&models.ReportJob{})
	if userID != "" {
		q = q.Where("owner = ?", userID)
	}

	var jobs []models.ReportJob
	if err := q.Order("created_at DESC").Limit(limit).Offset(offset).Find(&jobs).Error; err != nil {
		return nil, fmt.Errorf("list report jobs: %w", err)
	}
	return jobs, nil
}

func (s *ReportService) worker() {
	for jobID := range s.queue {
		s.safeRun(jobID)
	}
}

// safeRun keeps one bad job from killing a worker: errors and panics both
// end up on the job row, never in the process state.
func (s *ReportService) safeRun(jobID uint) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("report job %d panicked: %v", jobID, r)
			s.markFailed(jobID, fmt.Sprintf("panic: %v", r))
		}
	}()

	if err := s.Run(jobID); err != nil {
		log.Printf("report job %d failed: %v", jobID, err)
	}
}

// Run executes one export and updates the job row. The workers call it; it
// is exported so an external executor or a test can drive a job
// synchronously. A failed export transitions the job to failed with the
// error text as its description.
func (s *ReportService) Run(jobID uint) error {
	var job models.ReportJob
	if err := s.db.First(&job, jobID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// No row to record the failure on.
			return &store.NotFoundError{Kind: "report", ID: jobID}
		}
		return fmt.Errorf("load report job: %w", err)
	}

	export := s.export
	if s.exportFn != nil {
		export = s.exportFn
	}

	fileName, err := export(&job)
	if err != nil {
		s.markFailed(job.ID, err.Error())
		return &ExportError{JobID: job.ID, Err: err}
	}

	updates := map[string]interface{}{
		"file_name":   fileName,
		"file_type":   job.FileType,
		"status":      models.ReportStatusCompleted,
		"description": "",
	}
	if err := s.db.Model(&job).Updates(updates).Error; err != nil {
		return fmt.Errorf("update report job: %w", err)
	}
	return nil
}

func (s *ReportService) markFailed(jobID uint, description string) {
	err := s.db.Model(&models.ReportJob{}).Where("id = ?", jobID).Updates(map[string]interface{}{
		"status":      models.ReportStatusFailed,
		"description": description,
	}).Error
	if err != nil {
		log.Printf("mark report job %d failed: %v", jobID, err)
	}
}

// export streams the filtered comments to report_<id>.csv under the reports
// directory and returns the file name.
func (s *ReportService) export(job *models.ReportJob) (string, error) {
	rows, err := s.comments(job)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", err
	}
	fileName := filepath.Join(s.dir, fmt.Sprintf("report_%d.csv", job.ID))

	f, err := os.Create(fileName)
	if err != nil {
		return "", err
	}
	if err := writeCommentsCSV(f, rows); err != nil {
		f.Close()
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", err
	}
	return fileName, nil
}

// comments builds the conjunction of the job's filters, oldest first.
// ObjID only applies together with ObjType; on its own it is ignored.
func (s *ReportService) comments(job *models.ReportJob) ([]models.Comment, error) {
	q := s.db.Model(&models.Comment{})
	if job.UserID != "" {
		q = q.Where("user_id = ?", job.UserID)
	}
	if job.ObjType != "" {
		q = q.Where("obj_type = ?", job.ObjType)
		if job.ObjID != "" {
			q = q.Where("obj_id = ?", job.ObjID)
		}
	}
	if job.StartDate != nil {
		q = q.Where("created_at >= ?", *job.StartDate)
	}
	if job.EndDate != nil {
		q = q.Where("created_at <= ?", *job.EndDate)
	}

	var rows []models.Comment
	if err := q.Order("created_at ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("query report comments: %w", err)
	}
	return rows, nil
}
