package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
)

// Attempt is the outcome of trying one model identifier.
type Attempt struct {
	Model string
	Err   error
}

// LoadOptions configures Load.
type LoadOptions struct {
	Token  string
	Models []string
	Device Device
}

// Load tries each model in order and binds the first one that loads.
// It never fails: every failure mode yields an unbound Handle.
func Load(ctx context.Context, backend Backend, opts LoadOptions, log zerolog.Logger) Handle {
	if opts.Token == "" {
		log.Warn().Msg("HF token not set, diarization will not work")
		return Unbound(ErrNoToken, opts.Device)
	}
	if len(opts.Models) == 0 {
		log.Error().Msg("no pipeline models configured")
		return Unbound(ErrNoModels, opts.Device)
	}

	log.Info().
		Str("backend", backend.Name()).
		Strs("models", opts.Models).
		Str("device", opts.Device.String()).
		Msg("Loading speaker-diarization pipeline")

	attempts := make([]Attempt, 0, len(opts.Models))
	for _, model := range opts.Models {
		p, err := backend.Load(ctx, LoadRequest{Model: model, Token: opts.Token, Device: opts.Device})
		if err == nil {
			log.Info().Str("model", model).Str("device", opts.Device.String()).Msg("Pipeline loaded")
			return Bound(p, model, opts.Device)
		}

		attempts = append(attempts, Attempt{Model: model, Err: err})
		log.Warn().Err(err).Str("model", model).Msg("Failed to load pipeline model")

		if ctx.Err() != nil {
			break
		}
	}

	err := attemptsError(attempts)
	event := log.Error().Err(err)
	for _, a := range attempts {
		event = event.Str(a.Model, a.Err.Error())
	}
	event.Msg("Failed to load any pipeline model")
	for _, m := range opts.Models {
		log.Error().Str("url", "https://huggingface.co/"+m).Msg("Make sure the model terms have been accepted")
	}

	return Unbound(err, opts.Device)
}

func attemptsError(attempts []Attempt) error {
	errs := make([]error, 0, len(attempts))
	for _, a := range attempts {
		errs = append(errs, fmt.Errorf("%s: %w", a.Model, a.Err))
	}
	return errors.Join(errs...)
}
