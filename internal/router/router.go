package router

import (
	"threadline/internal/handlers"
	"threadline/internal/middleware"

	"github.com/gin-gonic/gin"
)

// RegisterRoutes wires the comment and report APIs.
func RegisterRoutes(r *gin.Engine, commentHandler *handlers.CommentHandler, reportHandler *handlers.ReportHandler) {
	r.Use(middleware.SignatureCheck())
	r.Use(middleware.LoadViewer())

	r.GET("/comments", commentHandler.List)                // top-level page for an object
	r.GET("/comment/get", commentHandler.Get)              // single row
	r.GET("/comment/ancestors", commentHandler.Ancestors)  // root-first ancestor chain
	r.GET("/comment/tree", commentHandler.Tree)            // nested descendants

	r.POST("/comment/add", commentHandler.Create)
	r.POST("/comment/edit", commentHandler.Update)
	r.POST("/comment/delete", commentHandler.Delete)

	r.GET("/comment/reports", reportHandler.List)       // viewer's jobs
	r.POST("/comment/reports", reportHandler.Restart)   // action=restart
	r.POST("/comment/new_report", reportHandler.Create) // enqueue an export
}
