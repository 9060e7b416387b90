package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/codebuildervaibhav/speaker-diarization/internal/types"
)

// ErrNotFound is returned when a record does not exist
var ErrNotFound = errors.New("record not found")

// MetadataDB handles SQLite database operations
type MetadataDB struct {
	db *sql.DB
}

// NewMetadataDB creates a new metadata database
func NewMetadataDB(dbPath string) (*MetadataDB, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// sqlite allows a single writer
	db.SetMaxOpenConns(1)

	createTableSQL := `
	CREATE TABLE IF NOT EXISTS diarizations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		job_id TEXT NOT NULL UNIQUE,
		filename TEXT NOT NULL,
		source_type TEXT NOT NULL,
		size_bytes INTEGER NOT NULL,
		num_speakers INTEGER NOT NULL DEFAULT 0,
		num_segments INTEGER NOT NULL DEFAULT 0,
		duration REAL NOT NULL DEFAULT 0,
		status TEXT NOT NULL,
		error TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_diarizations_created_at ON diarizations(created_at);
	`

	if _, err := db.Exec(createTableSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	return &MetadataDB{db: db}, nil
}

// SaveDiarization saves diarization metadata to the database
func (mdb *MetadataDB) SaveDiarization(ctx context.Context, rec types.DiarizationRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}

	query := `
	INSERT INTO diarizations (job_id, filename, source_type, size_bytes, num_speakers, num_segments, duration, status, error, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := mdb.db.ExecContext(ctx, query, rec.ID, rec.Filename, rec.Source, rec.SizeBytes,
		rec.NumSpeakers, rec.NumSegments, rec.Duration, rec.Status, rec.Error, rec.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to save diarization metadata: %w", err)
	}

	return nil
}

const selectColumns = `job_id, filename, source_type, size_bytes, num_speakers, num_segments, duration, status, error, created_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (types.DiarizationRecord, error) {
	var rec types.DiarizationRecord
	err := row.Scan(&rec.ID, &rec.Filename, &rec.Source, &rec.SizeBytes, &rec.NumSpeakers,
		&rec.NumSegments, &rec.Duration, &rec.Status, &rec.Error, &rec.CreatedAt)
	return rec, err
}

// GetDiarization retrieves diarization metadata by job ID
func (mdb *MetadataDB) GetDiarization(ctx context.Context, jobID string) (*types.DiarizationRecord, error) {
	query := `SELECT ` + selectColumns + ` FROM diarizations WHERE job_id = ?`

	rec, err := scanRecord(mdb.db.QueryRowContext(ctx, query, jobID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get diarization: %w", err)
	}

	return &rec, nil
}

// ListDiarizations returns the newest diarizations first
func (mdb *MetadataDB) ListDiarizations(ctx context.Context, limit int) ([]types.DiarizationRecord, error) {
	query := `SELECT ` + selectColumns + ` FROM diarizations ORDER BY created_at DESC, id DESC LIMIT ?`

	rows, err := mdb.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list diarizations: %w", err)
	}
	defer rows.Close()

	records := []types.DiarizationRecord{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan diarization: %w", err)
		}
		records = append(records, rec)
	}

	return records, rows.Err()
}

// Close closes the database connection
func (mdb *MetadataDB) Close() error {
	return mdb.db.Close()
}
