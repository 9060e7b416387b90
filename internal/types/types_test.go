package types

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestMappedResult_MarshalKeepsAppearanceOrder(t *testing.T) {
	res := MappedResult{
		Speakers: []MappedSegment{
			{Segment: Segment{Start: 0, End: 1, Speaker: "SPEAKER_01"}, Role: "Doctor"},
			{Segment: Segment{Start: 1, End: 2, Speaker: "SPEAKER_00"}, Role: "Patient"},
		},
		NumSpeakers:    2,
		Duration:       2,
		SpeakerMapping: map[string]string{"SPEAKER_00": "Patient", "SPEAKER_01": "Doctor"},
		SpeakerOrder:   []string{"SPEAKER_01", "SPEAKER_00"},
	}

	data, err := json.Marshal(&res)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	want := `{"speakers":[{"start":0,"end":1,"speaker":"SPEAKER_01","role":"Doctor"},{"start":1,"end":2,"speaker":"SPEAKER_00","role":"Patient"}],` +
		`"num_speakers":2,"duration":2,"speaker_mapping":{"SPEAKER_01":"Doctor","SPEAKER_00":"Patient"}}`
	if string(data) != want {
		t.Errorf("got  %s\nwant %s", data, want)
	}

	var back MappedResult
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if back.SpeakerMapping["SPEAKER_01"] != "Doctor" || len(back.Speakers) != 2 {
		t.Errorf("unexpected decoded result %+v", back)
	}
}

func TestMappedResult_MarshalWithoutOrder(t *testing.T) {
	tests := []struct {
		name string
		res  MappedResult
		want string
	}{
		{"nil mapping", MappedResult{}, `"speaker_mapping":{}`},
		{"missing order", MappedResult{SpeakerMapping: map[string]string{"B": "x", "A": "y"}}, `"speaker_mapping":{"A":"y","B":"x"}`},
		{"stale order", MappedResult{
			SpeakerMapping: map[string]string{"B": "x", "A": "y"},
			SpeakerOrder:   []string{"B", "C"},
		}, `"speaker_mapping":{"A":"y","B":"x"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(tt.res)
			if err != nil {
				t.Fatalf("Marshal: %v", err)
			}
			if !json.Valid(data) {
				t.Fatalf("invalid JSON %s", data)
			}
			if got := string(data); !strings.Contains(got, tt.want) {
				t.Errorf("got %s, want it to contain %s", got, tt.want)
			}
		})
	}
}
