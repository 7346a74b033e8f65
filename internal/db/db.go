package db

import (
	"errors"
	"log/slog"
	"os"
	"time"

	"github.com/okayama-voice/opinion-map/internal/logger"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Schema is the Postgres schema every table of the service lives in.
const Schema = "opinion_map"

var ErrMissingDSN = errors.New("DATABASE_URL is empty")

var DB *gorm.DB

// Open connects to Postgres and configures the pool. It does not touch DB.
func Open(dsn string) (*gorm.DB, error) {
	if dsn == "" {
		return nil, ErrMissingDSN
	}

	// Slow queries surface as warnings through the service logger.
	lg := gormlogger.New(
		slog.NewLogLogger(logger.L().Handler(), slog.LevelWarn),
		gormlogger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	gdb, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: lg})
	if err != nil {
		return nil, err
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(20)
	sqlDB.SetMaxIdleConns(20)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	return gdb, nil
}

// Connect opens DATABASE_URL into DB or exits the process.
func Connect() {
	gdb, err := Open(os.Getenv("DATABASE_URL"))
	if err != nil {
		logger.L().Error("failed to connect to database", "err", err)
		os.Exit(1)
	}
	DB = gdb
	logger.L().Info("connected to database")
}
