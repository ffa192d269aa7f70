package services

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"threadline/internal/db"
	"threadline/internal/models"
	"threadline/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.Migrate(gdb))
	return gdb
}

// newIdleService builds a service with no workers so tests can drive Run
// synchronously; the queue still buffers Enqueue's sends.
func newIdleService(gdb *gorm.DB, dir string) *ReportService {
	return &ReportService{
		db:    gdb,
		dir:   dir,
		queue: make(chan uint, 32),
	}
}

// seedComments writes the six-comment scenario: 2016-01-01..03 on id1,
// 2016-01-04..06 on id2, all by u1.
func seedComments(t *testing.T, gdb *gorm.DB) []uint {
	t.Helper()
	s := store.NewCommentStore(gdb)
	ids := make([]uint, 6)
	for i := 0; i < 6; i++ {
		objID := "id1"
		if i >= 3 {
			objID = "id2"
		}
		id, err := s.Create(store.CreateParams{
			ObjType:   "Post",
			ObjID:     objID,
			UserID:    "u1",
			Text:      fmt.Sprintf("c%d", i+1),
			CreatedAt: time.Date(2016, 1, i+1, 0, 0, 0, 0, time.UTC),
		})
		require.NoError(t, err)
		ids[i] = id
	}
	return ids
}

func date(day int) *time.Time {
	d := time.Date(2016, 1, day, 0, 0, 0, 0, time.UTC)
	return &d
}

func TestReportFiltersAreConjunctive(t *testing.T) {
	gdb := newTestDB(t)
	svc := newIdleService(gdb, t.TempDir())
	ids := seedComments(t, gdb)

	cases := []struct {
		name   string
		params EnqueueParams
		want   []uint
	}{
		{"other user", EnqueueParams{Owner: "admin", UserID: "u2"}, nil},
		{"user only", EnqueueParams{Owner: "admin", UserID: "u1"}, ids},
		{"user and type", EnqueueParams{Owner: "admin", UserID: "u1", ObjType: "Post"}, ids},
		{"object id1", EnqueueParams{Owner: "admin", UserID: "u1", ObjType: "Post", ObjID: "id1"}, ids[:3]},
		{"id1 from jan 2", EnqueueParams{Owner: "admin", UserID: "u1", ObjType: "Post", ObjID: "id1", StartDate: date(2)}, ids[1:3]},
		{"id2 until jan 5", EnqueueParams{Owner: "admin", UserID: "u1", ObjType: "Post", ObjID: "id2", EndDate: date(5)}, ids[3:5]},
		{"date window", EnqueueParams{Owner: "admin", UserID: "u1", ObjType: "Post", StartDate: date(2), EndDate: date(5)}, ids[1:5]},
		// obj_id without obj_type is ignored, not applied.
		{"object id without type", EnqueueParams{Owner: "admin", UserID: "u1", ObjID: "id1"}, ids},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			jobID, err := svc.Enqueue(tc.params)
			require.NoError(t, err)

			var job models.ReportJob
			require.NoError(t, gdb.First(&job, jobID).Error)
			assert.Equal(t, models.ReportStatusWorking, job.Status)
			assert.Equal(t, "csv", job.FileType)
			assert.Equal(t, "", job.FileName)

			rows, err := svc.comments(&job)
			require.NoError(t, err)
			got := make([]uint, len(rows))
			for i, r := range rows {
				got[i] = r.ID
			}
			if tc.want == nil {
				assert.Empty(t, got)
			} else {
				assert.Equal(t, tc.want, got)
			}
		})
	}
}

func TestEnqueueValidation(t *testing.T) {
	gdb := newTestDB(t)
	svc := newIdleService(gdb, t.TempDir())

	_, err := svc.Enqueue(EnqueueParams{Owner: "admin"})
	var invalid *store.InvalidParameterError
	require.ErrorAs(t, err, &invalid)

	// obj_type alone is enough; user_id alone is enough.
	_, err = svc.Enqueue(EnqueueParams{Owner: "admin", ObjType: "Post"})
	require.NoError(t, err)
	_, err = svc.Enqueue(EnqueueParams{Owner: "admin", UserID: "u1"})
	require.NoError(t, err)
}

func TestRunWritesArtifact(t *testing.T) {
	gdb := newTestDB(t)
	dir := t.TempDir()
	svc := newIdleService(gdb, dir)
	seedComments(t, gdb)

	jobID, err := svc.Enqueue(EnqueueParams{
		Owner: "admin", UserID: "u1", ObjType: "Post", ObjID: "id1",
		StartDate: date(2),
	})
	require.NoError(t, err)
	require.NoError(t, svc.Run(jobID))

	var job models.ReportJob
	require.NoError(t, gdb.First(&job, jobID).Error)
	assert.Equal(t, models.ReportStatusCompleted, job.Status)
	assert.Equal(t, "csv", job.FileType)
	assert.Equal(t, filepath.Join(dir, fmt.Sprintf("report_%d.csv", jobID)), job.FileName)
	assert.True(t, job.UpdatedAt.After(job.CreatedAt))

	data, err := os.ReadFile(job.FileName)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	require.Len(t, lines, 3) // header + comments of jan 2 and jan 3

	assert.Equal(t, `"id","created_at","updated_at","obj_type","obj_id","user_id","parent_id","text"`, lines[0])
	assert.Contains(t, lines[1], `"2016-01-02 00:00:00"`)
	assert.Contains(t, lines[1], `"c2"`)
	assert.Contains(t, lines[2], `"c3"`)
	for _, line := range lines[1:] {
		// Every field is quoted; the nil parent renders as "".
		assert.True(t, strings.HasPrefix(line, `"`))
		assert.Contains(t, line, `"",`)
	}
}

func TestCSVQuoting(t *testing.T) {
	var sb strings.Builder
	rows := []models.Comment{{
		ID:        7,
		CreatedAt: time.Date(2016, 1, 1, 12, 30, 0, 0, time.UTC),
		UpdatedAt: time.Date(2016, 1, 1, 12, 30, 0, 0, time.UTC),
		ObjType:   "Post",
		ObjID:     "id1",
		UserID:    "u1",
		Text:      `say "hi", twice`,
	}}
	require.NoError(t, writeCommentsCSV(&sb, rows))

	lines := strings.Split(strings.TrimRight(sb.String(), "\n"), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, `"7","2016-01-01 12:30:00","2016-01-01 12:30:00","Post","id1","u1","","say ""hi"", twice"`, lines[1])
}

func TestRunMissingJob(t *testing.T) {
	gdb := newTestDB(t)
	svc := newIdleService(gdb, t.TempDir())

	err := svc.Run(9999)
	var notFound *store.NotFoundError
	require.ErrorAs(t, err, &notFound)
}

func TestRunFailureMarksJobFailed(t *testing.T) {
	gdb := newTestDB(t)
	dir := t.TempDir()

	// Point the reports directory at a regular file so MkdirAll fails.
	blocked := filepath.Join(dir, "not-a-dir")
	require.NoError(t, os.WriteFile(blocked, []byte("x"), 0o644))
	svc := newIdleService(gdb, blocked)

	jobID, err := svc.Enqueue(EnqueueParams{Owner: "admin", UserID: "u1"})
	require.NoError(t, err)

	err = svc.Run(jobID)
	var exportErr *ExportError
	require.ErrorAs(t, err, &exportErr)
	assert.Equal(t, jobID, exportErr.JobID)

	var job models.ReportJob
	require.NoError(t, gdb.First(&job, jobID).Error)
	assert.Equal(t, models.ReportStatusFailed, job.Status)
	assert.NotEmpty(t, job.Description)
	assert.Equal(t, "", job.FileName)
}

func TestRequeueUnknownJob(t *testing.T) {
	gdb := newTestDB(t)
	svc := newIdleService(gdb, t.TempDir())

	err := svc.Requeue(404)
	var notFound *store.NotFoundError
	require.ErrorAs(t, err, &notFound)
}

func TestListNewestFirstWithOwnerFilter(t *testing.T) {
	gdb := newTestDB(t)
	svc := newIdleService(gdb, t.TempDir())

	var ids []uint
	for i := 0; i < 3; i++ {
		owner := "admin"
		if i == 1 {
			owner = "u9"
		}
		id, err := svc.Enqueue(EnqueueParams{Owner: owner, UserID: "u1"})
		require.NoError(t, err)
		ids = append(ids, id)
		time.Sleep(5 * time.Millisecond) // keep created_at strictly ordered
	}

	jobs, err := svc.List("", 20, 0)
	require.NoError(t, err)
	require.Len(t, jobs, 3)
	assert.Equal(t, ids[2], jobs[0].ID)
	assert.Equal(t, ids[0], jobs[2].ID)

	jobs, err = svc.List("admin", 20, 0)
	require.NoError(t, err)
	require.Len(t, jobs, 2)

	// limit+1 convention over the admin view.
	jobs, err = svc.List("", 3, 0)
	require.NoError(t, err)
	assert.Len(t, jobs, 3)
	jobs, err = svc.List("", 3, 2)
	require.NoError(t, err)
	assert.Len(t, jobs, 1)
}

func TestWorkerCompletesEnqueuedJob(t *testing.T) {
	gdb := newTestDB(t)
	dir := t.TempDir()
	svc := NewReportService(gdb, dir, 1)
	seedComments(t, gdb)

	jobID, err := svc.Enqueue(EnqueueParams{Owner: "admin", UserID: "u1"})
	require.NoError(t, err)

	deadline := time.Now().Add(5 * time.Second)
	for {
		var job models.ReportJob
		require.NoError(t, gdb.First(&job, jobID).Error)
		if job.Status == models.ReportStatusCompleted {
			_, statErr := os.Stat(job.FileName)
			require.NoError(t, statErr)
			break
		}
		require.True(t, time.Now().Before(deadline), "job did not complete, status %s", job.Status)
		time.Sleep(20 * time.Millisecond)
	}
}

func TestWorkerRecoversFromPanic(t *testing.T) {
	gdb := newTestDB(t)
	svc := newIdleService(gdb, t.TempDir())
	seedComments(t, gdb)

	svc.exportFn = func(job *models.ReportJob) (string, error) {
		if job.ObjType == "boom" {
			panic("exporter blew up")
		}
		return svc.export(job)
	}
	go svc.worker()

	badID, err := svc.Enqueue(EnqueueParams{Owner: "admin", ObjType: "boom"})
	require.NoError(t, err)
	goodID, err := svc.Enqueue(EnqueueParams{Owner: "admin", UserID: "u1"})
	require.NoError(t, err)

	// The queue is FIFO with one worker: once the second job completed, the
	// first one was already recovered from.
	deadline := time.Now().Add(5 * time.Second)
	for {
		var good models.ReportJob
		require.NoError(t, gdb.First(&good, goodID).Error)
		if good.Status == models.ReportStatusCompleted {
			break
		}
		require.True(t, time.Now().Before(deadline), "job did not complete, status %s", good.Status)
		time.Sleep(20 * time.Millisecond)
	}

	var bad models.ReportJob
	require.NoError(t, gdb.First(&bad, badID).Error)
	assert.Equal(t, models.ReportStatusFailed, bad.Status)
	assert.Contains(t, bad.Description, "panic: exporter blew up")
	assert.Equal(t, "", bad.FileName)
}
