package pipeline

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
)

// JSON result shared by the sidecar and the runner script:
//
//	{"result": null}
//	{"result": {"tracks": [{"start": 0.1, "end": 2.4, "label": "SPEAKER_00"}],
//	            "extent": {"start": 0.1, "end": 7.5}}}
type wireResponse struct {
	Result *wireResult `json:"result"`
	Error  string      `json:"error,omitempty"`
}

type wireResult struct {
	Tracks []wireTrack `json:"tracks"`
	Extent *wireExtent `json:"extent"`
}

type wireTrack struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Label string  `json:"label"`
}

type wireExtent struct {
	Start *float64 `json:"start"`
	End   *float64 `json:"end"`
}

func (r *wireResult) Segments() []Track {
	tracks := make([]Track, len(r.Tracks))
	for i, t := range r.Tracks {
		tracks[i] = Track{Start: t.Start, End: t.End, Label: t.Label}
	}
	return tracks
}

func (r *wireResult) Duration() (float64, bool) {
	if r.Extent == nil || r.Extent.End == nil {
		return 0, false
	}
	end := *r.Extent.End
	if math.IsNaN(end) || math.IsInf(end, 0) || end < 0 {
		return 0, false
	}
	return end, true
}

// decodeOutput parses a wire response. It returns a nil Output when the
// pipeline produced no result.
func decodeOutput(r io.Reader) (Output, error) {
	var resp wireResponse
	if err := json.NewDecoder(r).Decode(&resp); err != nil {
		return nil, fmt.Errorf("decode pipeline output: %w", err)
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("pipeline error: %s", resp.Error)
	}
	if resp.Result == nil {
		return nil, nil
	}
	return resp.Result, nil
}
