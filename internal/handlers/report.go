package handlers

import (
	"net/http"
	"time"

	"threadline/internal/middleware"
	"threadline/internal/services"
	"threadline/internal/utils"

	"github.com/gin-gonic/gin"
)

const ReportsPageSize = 10

type ReportHandler struct {
	reports *services.ReportService
}

func NewReportHandler(reports *services.ReportService) *ReportHandler {
	return &ReportHandler{reports: reports}
}

// List serves the viewer's report jobs, newest first. With no viewer set
// this is the administrative view over all jobs.
func (h *ReportHandler) List(c *gin.Context) {
	limit := Limit(c, ReportsPageSize)
	page := Page(c)

	jobs, err := h.reports.List(middleware.Viewer(c), limit+1, page*limit)
	if err != nil {
		handleStoreError(c, err)
		return
	}

	more := false
	if len(jobs) > limit {
		more = true
		jobs = jobs[:limit]
	}

	c.JSON(http.StatusOK, gin.H{
		"reports": jobs,
		"page":    page,
		"more":    more,
	})
}

// Create enqueues a new report job owned by the viewer. The caller gets the
// job id back immediately; the export runs in the background.
func (h *ReportHandler) Create(c *gin.Context) {
	viewer := middleware.Viewer(c)
	if viewer == "" {
		ErrorResult(c, CodeMissingParameter, "Required viewer_id parameter.")
		return
	}

	params := services.EnqueueParams{
		Owner:   viewer,
		UserID:  c.PostForm("user_id"),
		ObjType: c.PostForm("obj_type"),
		ObjID:   c.PostForm("obj_id"),
	}
	if params.UserID == "" && params.ObjType == "" {
		ErrorResult(c, CodeMissingParameter, "Required user_id or obj_type parameters.")
		return
	}

	var err error
	if params.StartDate, err = parseReportDate(c.PostForm("start_date")); err != nil {
		ErrorResult(c, CodeInvalidParameter, "Invalid start_date parameter.")
		return
	}
	if params.EndDate, err = parseReportDate(c.PostForm("end_date")); err != nil {
		ErrorResult(c, CodeInvalidParameter, "Invalid end_date parameter.")
		return
	}

	jobID, err := h.reports.Enqueue(params)
	if err != nil {
		handleStoreError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"result": true, "report_id": jobID})
}

// Restart re-enqueues an existing job (action=restart).
func (h *ReportHandler) Restart(c *gin.Context) {
	reportID := c.PostForm("report_id")
	if reportID == "" {
		ErrorResult(c, CodeMissingParameter, "Required report_id parameter.")
		return
	}
	if action := c.PostForm("action"); action != "restart" {
		ErrorResult(c, CodeInvalidParameter, "Invalid action parameter.")
		return
	}

	if err := h.reports.Requeue(utils.StringToUint(reportID)); err != nil {
		handleStoreError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"result": true})
}

// parseReportDate accepts the day-granular format report filters are posted
// with; the bound lands on midnight UTC.
func parseReportDate(raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return nil, err
	}
	t = t.UTC()
	return &t, nil
}
