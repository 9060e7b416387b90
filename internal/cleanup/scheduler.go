package cleanup

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Scheduler removes upload temp files that outlived their request, e.g.
// after a crash between save and cleanup.
type Scheduler struct {
	tempDir  string
	interval time.Duration
	maxAge   time.Duration
	log      zerolog.Logger

	stopOnce sync.Once
	stopChan chan struct{}
}

// NewScheduler creates a new cleanup scheduler
func NewScheduler(tempDir string, intervalMinutes, maxAgeHours int, log zerolog.Logger) *Scheduler {
	if intervalMinutes <= 0 {
		intervalMinutes = 30
	}
	if maxAgeHours <= 0 {
		maxAgeHours = 6
	}
	return &Scheduler{
		tempDir:  tempDir,
		interval: time.Duration(intervalMinutes) * time.Minute,
		maxAge:   time.Duration(maxAgeHours) * time.Hour,
		log:      log,
		stopChan: make(chan struct{}),
	}
}

// Start runs an initial sweep and then sweeps periodically
func (s *Scheduler) Start() {
	s.log.Info().Msg("Running initial temp file cleanup")
	s.Sweep(time.Now())

	ticker := time.NewTicker(s.interval)

	go func() {
		for {
			select {
			case now := <-ticker.C:
				s.Sweep(now)
			case <-s.stopChan:
				ticker.Stop()
				return
			}
		}
	}()

	s.log.Info().
		Dur("interval", s.interval).
		Dur("max_age", s.maxAge).
		Msg("Cleanup scheduler started")
}

// Stop stops the cleanup scheduler
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopChan)
		s.log.Info().Msg("Cleanup scheduler stopped")
	})
}

// Sweep removes files older than the max age and returns how many were deleted
func (s *Scheduler) Sweep(now time.Time) int {
	var deletedCount int
	var deletedSize int64

	err := filepath.Walk(s.tempDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // Skip files we can't access
		}

		if info.IsDir() {
			return nil
		}

		age := now.Sub(info.ModTime())
		if age > s.maxAge {
			size := info.Size()
			if err := os.Remove(path); err != nil {
				s.log.Warn().Err(err).Str("path", path).Msg("Failed to delete old file")
			} else {
				deletedCount++
				deletedSize += size
				s.log.Debug().
					Str("file", filepath.Base(path)).
					Dur("age", age.Round(time.Second)).
					Int64("size_kb", size/1024).
					Msg("Deleted old temp file")
			}
		}

		return nil
	})

	if err != nil {
		s.log.Error().Err(err).Msg("Error during cleanup")
	}

	if deletedCount > 0 {
		s.log.Info().
			Int("files", deletedCount).
			Float64("freed_mb", float64(deletedSize)/(1024*1024)).
			Msg("Cleanup complete")
	}
	return deletedCount
}

// EnsureTempDirExists creates the temp directory if it doesn't exist
func EnsureTempDirExists(tempDir string) error {
	return os.MkdirAll(tempDir, 0755)
}
