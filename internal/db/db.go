package db

import (
	"log"
	"os"
	"threadline/internal/models"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Open connects to the database and migrates the schema. The returned handle
// is passed to each component at construction; this package keeps no global
// state, so tests can open their own isolated databases.
func Open() (*gorm.DB, error) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		// Fallback for local dev if not set
		dsn = "host=localhost user=postgres password=postgres dbname=threadline port=5432 sslmode=disable"
	}

	gdb, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}
	log.Println("Database connection established")

	if err := Migrate(gdb); err != nil {
		return nil, err
	}
	log.Println("Database migration completed")

	return gdb, nil
}

// Migrate creates the four tables and their indexes.
func Migrate(gdb *gorm.DB) error {
	return gdb.AutoMigrate(
		&models.Comment{},
		&models.AncestryEdge{},
		&models.HistoryEntry{},
		&models.ReportJob{},
	)
}
