package database

import (
	"log"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/eogh234/srt-reservation/internal/models"
)

func NewPostgresDB(dsn string) *gorm.DB {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	if err := db.AutoMigrate(&models.SessionRecord{}); err != nil {
		log.Fatalf("failed to auto-migrate: %v", err)
	}

	// Journal queries filter on state and list newest first
	db.Exec(`CREATE INDEX IF NOT EXISTS idx_session_records_state ON session_records (state)`)
	db.Exec(`CREATE INDEX IF NOT EXISTS idx_session_records_started_at ON session_records (started_at DESC)`)

	return db
}
