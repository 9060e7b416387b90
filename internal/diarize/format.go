package diarize

import (
	"math"

	"github.com/codebuildervaibhav/speaker-diarization/internal/pipeline"
	"github.com/codebuildervaibhav/speaker-diarization/internal/types"
)

// Format converts pipeline output into a Result. Segments keep the order
// the pipeline emitted them in. A nil output yields the empty result.
func Format(out pipeline.Output) *types.Result {
	if out == nil {
		return types.EmptyResult()
	}

	tracks := out.Segments()
	segments := make([]types.Segment, 0, len(tracks))
	speakers := make(map[string]struct{})

	for _, t := range tracks {
		start, end := round2(t.Start), round2(t.End)
		if end < start || math.IsNaN(start) || math.IsNaN(end) {
			continue
		}
		segments = append(segments, types.Segment{Start: start, End: end, Speaker: t.Label})
		speakers[t.Label] = struct{}{}
	}

	return &types.Result{
		Speakers:    segments,
		NumSpeakers: len(speakers),
		Duration:    duration(out, segments),
	}
}

// duration prefers the pipeline's timeline extent and falls back to the end
// of the last segment.
func duration(out pipeline.Output, segments []types.Segment) float64 {
	if len(segments) == 0 {
		return 0
	}
	if d, ok := out.Duration(); ok {
		return round2(d)
	}
	return segments[len(segments)-1].End
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
