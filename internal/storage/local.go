package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"
)

var validJobID = regexp.MustCompile(`^[A-Za-z0-9-]{1,64}$`)

// LocalStorage archives diarization results as JSON on the local filesystem
type LocalStorage struct {
	outputDir string
}

// NewLocalStorage creates a new local storage handler
func NewLocalStorage(outputDir string) *LocalStorage {
	return &LocalStorage{
		outputDir: outputDir,
	}
}

// resultPath builds outputs/2025/01/23/<job_id>.json, dated in UTC
func (ls *LocalStorage) resultPath(jobID string, createdAt time.Time) string {
	t := createdAt.UTC()
	return filepath.Join(ls.outputDir,
		fmt.Sprintf("%d", t.Year()),
		fmt.Sprintf("%02d", t.Month()),
		fmt.Sprintf("%02d", t.Day()),
		jobID+".json")
}

// SaveResult writes the result of jobID created at createdAt
func (ls *LocalStorage) SaveResult(jobID string, createdAt time.Time, result any) (string, error) {
	if !validJobID.MatchString(jobID) {
		return "", fmt.Errorf("invalid job id %q", jobID)
	}

	path := ls.resultPath(jobID, createdAt)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("failed to create date directory: %w", err)
	}

	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal result: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to save result: %w", err)
	}

	return path, nil
}

// LoadResult reads the archived result of jobID created at createdAt
func (ls *LocalStorage) LoadResult(jobID string, createdAt time.Time) ([]byte, error) {
	if !validJobID.MatchString(jobID) {
		return nil, ErrNotFound
	}

	data, err := os.ReadFile(ls.resultPath(jobID, createdAt))
	if os.IsNotExist(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read result: %w", err)
	}
	return data, nil
}
