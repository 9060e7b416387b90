// Package diarize turns uploaded audio into speaker segments using the
// pipeline bound at startup.
package diarize

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/codebuildervaibhav/speaker-diarization/internal/apperr"
	"github.com/codebuildervaibhav/speaker-diarization/internal/pipeline"
	"github.com/codebuildervaibhav/speaker-diarization/internal/queue"
	"github.com/codebuildervaibhav/speaker-diarization/internal/types"
)

// MinAudioBytes is the smallest input handed to the pipeline. Smaller
// inputs yield the empty result.
const MinAudioBytes = 1000

// UnavailableMessage is returned while no pipeline is bound.
const UnavailableMessage = "Diarization model not loaded. Check HF_TOKEN environment variable."

// Normalizer converts an audio file into the pipeline's preferred format and
// returns the path of a new temporary file.
type Normalizer interface {
	Normalize(ctx context.Context, inputPath string) (string, error)
}

// Options configures a Service.
type Options struct {
	Workers    int
	QueueSize  int
	Normalizer Normalizer
	Roles      Roles
}

// Request is one diarization call on a file already on disk.
type Request struct {
	ID   string
	Path string
	Size int64
}

// Service runs diarization requests against the bound pipeline.
type Service struct {
	handle     pipeline.Handle
	pool       *queue.WorkerPool
	normalizer Normalizer
	roles      Roles
	log        zerolog.Logger
}

// NewService creates a service around handle. Call Start before use.
func NewService(handle pipeline.Handle, opts Options, log zerolog.Logger) *Service {
	if opts.Roles == (Roles{}) {
		opts.Roles = DefaultRoles()
	}
	s := &Service{
		handle:     handle,
		normalizer: opts.Normalizer,
		roles:      opts.Roles,
		log:        log,
	}
	s.pool = queue.NewWorkerPool(opts.Workers, opts.QueueSize, s.process, log)
	return s
}

// Start starts the pipeline workers.
func (s *Service) Start() { s.pool.Start() }

// Stop stops the pipeline workers.
func (s *Service) Stop() { s.pool.Stop() }

// Handle returns the pipeline handle the service was built with.
func (s *Service) Handle() pipeline.Handle { return s.handle }

// Available reports whether a pipeline is bound.
func (s *Service) Available() bool { return s.handle.Loaded() }

// Diarize runs the pipeline on req.Path.
func (s *Service) Diarize(ctx context.Context, req Request) (*types.Result, error) {
	if !s.handle.Loaded() {
		return nil, apperr.Unavailable(UnavailableMessage).WithCause(s.handle.Reason())
	}

	log := s.log.With().Str("request_id", req.ID).Logger()
	log.Info().Str("path", req.Path).Int64("bytes", req.Size).Msg("Processing audio file")

	if req.Size < MinAudioBytes {
		log.Info().Msg("Audio file too small, skipping diarization")
		return types.EmptyResult(), nil
	}

	result, err := s.pool.Do(ctx, queue.NewJob(req.ID, req.Path))
	if err != nil {
		log.Error().Err(err).Msg("Diarization error")
		return nil, err
	}

	log.Info().
		Int("speakers", result.NumSpeakers).
		Int("segments", len(result.Speakers)).
		Float64("duration", result.Duration).
		Msg("Diarization completed")
	return result, nil
}

// DiarizeWithRoles runs Diarize and maps speakers to role names.
func (s *Service) DiarizeWithRoles(ctx context.Context, req Request, doctorFirst bool) (*types.MappedResult, error) {
	result, err := s.Diarize(ctx, req)
	if err != nil {
		return nil, err
	}
	return MapRoles(result, s.roles, doctorFirst), nil
}

// process runs on a pool worker.
func (s *Service) process(ctx context.Context, job *queue.Job) (*types.Result, error) {
	p, ok := s.handle.Pipeline()
	if !ok {
		return nil, apperr.Unavailable(UnavailableMessage)
	}

	path := job.FilePath
	if s.normalizer != nil {
		normalized, err := s.normalizer.Normalize(ctx, path)
		if err != nil {
			return nil, fmt.Errorf("normalize audio: %w", err)
		}
		defer s.removeTemp(normalized)
		path = normalized
	}

	out, err := p.Diarize(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("run pipeline: %w", err)
	}
	if out == nil {
		s.log.Info().Str("request_id", job.ID).Msg("Diarization returned no result (no speech detected)")
	}
	return Format(out), nil
}

func (s *Service) removeTemp(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		s.log.Warn().Err(err).Str("path", path).Msg("Failed to cleanup temp file")
	}
}
