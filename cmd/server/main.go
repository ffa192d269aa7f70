package main

import (
	"log"
	"os"

	"threadline/internal/db"
	"threadline/internal/handlers"
	"threadline/internal/router"
	"threadline/internal/services"
	"threadline/internal/store"
	"threadline/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, reading env vars from system")
	}

	gdb, err := db.Open()
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	reportDir := os.Getenv("REPORT_DIR")
	if reportDir == "" {
		reportDir = "static/reports"
	}

	commentStore := store.NewCommentStore(gdb)
	reportService := services.NewReportService(gdb, reportDir, 2)

	treeCache, err := utils.NewCache(500)
	if err != nil {
		log.Fatalf("Failed to create cache: %v", err)
	}

	r := gin.Default()
	router.RegisterRoutes(r,
		handlers.NewCommentHandler(commentStore, treeCache),
		handlers.NewReportHandler(reportService),
	)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	log.Printf("threadline server starting on :%s", port)
	if err := r.Run(":" + port); err != nil {
		log.Fatal(err)
	}
}
