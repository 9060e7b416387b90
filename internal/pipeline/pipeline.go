// Package pipeline binds the service to an out-of-process pretrained
// diarization pipeline.
//
// A Backend instantiates a Pipeline for a model identifier on a Device.
// Load walks an ordered list of model identifiers and returns a Handle that
// is either bound to the first pipeline that loaded or explicitly unbound.
// Handles are immutable and safe to share between goroutines.
package pipeline

import (
	"context"
	"errors"
)

var (
	// ErrNoToken is the unbound reason when no hub credential is configured.
	ErrNoToken = errors.New("model hub token not configured")
	// ErrNoModels is the unbound reason when the model list is empty.
	ErrNoModels = errors.New("no pipeline models configured")
)

// Track is one speaker turn as emitted by the pipeline, in seconds.
type Track struct {
	Start float64
	End   float64
	Label string
}

// Output is the narrow view of a pipeline result the service consumes.
type Output interface {
	// Segments returns the speaker turns in emission order.
	Segments() []Track
	// Duration returns the end of the timeline extent. ok is false when the
	// pipeline did not report a usable extent.
	Duration() (seconds float64, ok bool)
}

// Pipeline runs diarization on an audio file. A nil Output with a nil error
// means the pipeline produced no result (no speech detected).
type Pipeline interface {
	Diarize(ctx context.Context, audioPath string) (Output, error)
}

// LoadRequest describes one pipeline instantiation attempt.
type LoadRequest struct {
	Model  string
	Token  string
	Device Device
}

// Backend instantiates pipelines.
type Backend interface {
	Name() string
	Load(ctx context.Context, req LoadRequest) (Pipeline, error)
}
