package types

import (
	"bytes"
	"encoding/json"
	"sort"
	"time"
)

// Job status constants
const (
	StatusQueued     = "QUEUED"
	StatusProcessing = "PROCESSING"
	StatusCompleted  = "COMPLETED"
	StatusFailed     = "FAILED"
)

// Source type constants
const (
	SourceUpload = "upload"
	SourceStream = "stream"
)

// Segment is a contiguous time interval attributed to one speaker
type Segment struct {
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
	Speaker string  `json:"speaker"`
}

// Result is the response body of a diarization request
type Result struct {
	Speakers    []Segment `json:"speakers"`
	NumSpeakers int       `json:"num_speakers"`
	Duration    float64   `json:"duration"`
}

// EmptyResult is returned for inputs that are too small or contain no speech
func EmptyResult() *Result {
	return &Result{Speakers: []Segment{}}
}

// MappedSegment is a Segment annotated with a role name
type MappedSegment struct {
	Segment
	Role string `json:"role"`
}

// MappedResult is a Result whose speakers carry role names
type MappedResult struct {
	Speakers       []MappedSegment   `json:"speakers"`
	NumSpeakers    int               `json:"num_speakers"`
	Duration       float64           `json:"duration"`
	SpeakerMapping map[string]string `json:"speaker_mapping"`
	// SpeakerOrder lists the mapping's labels by first appearance.
	SpeakerOrder []string `json:"-"`
}

// MarshalJSON writes speaker_mapping in first-appearance order
func (m MappedResult) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Speakers       []MappedSegment `json:"speakers"`
		NumSpeakers    int             `json:"num_speakers"`
		Duration       float64         `json:"duration"`
		SpeakerMapping orderedMapping  `json:"speaker_mapping"`
	}{
		Speakers:       m.Speakers,
		NumSpeakers:    m.NumSpeakers,
		Duration:       m.Duration,
		SpeakerMapping: orderedMapping{keys: m.SpeakerOrder, roles: m.SpeakerMapping},
	})
}

type orderedMapping struct {
	keys  []string
	roles map[string]string
}

func (o orderedMapping) MarshalJSON() ([]byte, error) {
	keys := o.keys
	if !o.complete() {
		keys = make([]string, 0, len(o.roles))
		for k := range o.roles {
			keys = append(keys, k)
		}
		sort.Strings(keys)
	}

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(o.roles[k])
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// complete reports whether keys lists every label exactly once.
func (o orderedMapping) complete() bool {
	if len(o.keys) != len(o.roles) {
		return false
	}
	seen := make(map[string]bool, len(o.keys))
	for _, k := range o.keys {
		if _, ok := o.roles[k]; !ok || seen[k] {
			return false
		}
		seen[k] = true
	}
	return true
}

// DiarizationRecord is the persisted metadata of one diarization request
type DiarizationRecord struct {
	ID          string    `json:"id"`
	Filename    string    `json:"filename"`
	Source      string    `json:"source"`
	SizeBytes   int64     `json:"size_bytes"`
	NumSpeakers int       `json:"num_speakers"`
	NumSegments int       `json:"num_segments"`
	Duration    float64   `json:"duration"`
	Status      string    `json:"status"`
	Error       string    `json:"error,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}
