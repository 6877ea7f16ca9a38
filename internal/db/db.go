package db

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
)

type DB struct {
	*sql.DB
}

func New(host, port, user, password, dbname string) (*DB, error) {
	connStr := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, dbname,
	)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{db}, nil
}

func (db *DB) Migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS download_jobs (
		id UUID PRIMARY KEY,
		url TEXT NOT NULL,
		format_type VARCHAR(16) NOT NULL,
		quality VARCHAR(16) NOT NULL,
		destination TEXT NOT NULL,
		status VARCHAR(16) NOT NULL,
		percent DOUBLE PRECISION DEFAULT 0,
		rate VARCHAR(32) DEFAULT '',
		eta_seconds INTEGER DEFAULT 0,
		error TEXT DEFAULT '',
		error_code VARCHAR(64) DEFAULT '',
		retried_from UUID,
		retry_count INTEGER DEFAULT 0,
		title TEXT DEFAULT '',
		video_id VARCHAR(64) DEFAULT '',
		thumbnail_url TEXT DEFAULT '',
		duration BIGINT DEFAULT 0,
		filename TEXT DEFAULT '',
		file_path TEXT DEFAULT '',
		file_size BIGINT DEFAULT 0,
		created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
		updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
		started_at TIMESTAMP WITH TIME ZONE,
		completed_at TIMESTAMP WITH TIME ZONE
	);

	CREATE INDEX IF NOT EXISTS idx_download_jobs_status ON download_jobs(status);
	CREATE INDEX IF NOT EXISTS idx_download_jobs_created_at ON download_jobs(created_at DESC);
	`

	_, err := db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}
