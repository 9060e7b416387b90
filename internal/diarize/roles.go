package diarize

import (
	"fmt"

	"github.com/codebuildervaibhav/speaker-diarization/internal/types"
)

// Roles names the two parties of a consultation.
type Roles struct {
	Doctor  string
	Patient string
	// FallbackFormat names speakers beyond the second; %d is the 1-based
	// order of first appearance.
	FallbackFormat string
}

// DefaultRoles returns the Vietnamese role names.
func DefaultRoles() Roles {
	return Roles{Doctor: "Bác sĩ", Patient: "Bệnh nhân", FallbackFormat: "Người %d"}
}

// Order returns the role names in assignment order.
func (r Roles) Order(doctorFirst bool) []string {
	if doctorFirst {
		return []string{r.Doctor, r.Patient}
	}
	return []string{r.Patient, r.Doctor}
}

// MapRoles assigns role names to speakers by order of first appearance.
// The first two distinct speakers get the ordered role names, later ones a
// numbered fallback.
func MapRoles(res *types.Result, roles Roles, doctorFirst bool) *types.MappedResult {
	order := roles.Order(doctorFirst)
	mapping := make(map[string]string)

	mapped := &types.MappedResult{
		Speakers:       make([]types.MappedSegment, 0, len(res.Speakers)),
		NumSpeakers:    res.NumSpeakers,
		Duration:       res.Duration,
		SpeakerMapping: mapping,
	}

	for _, seg := range res.Speakers {
		role, ok := mapping[seg.Speaker]
		if !ok {
			idx := len(mapping)
			if idx < len(order) {
				role = order[idx]
			} else {
				role = fmt.Sprintf(roles.FallbackFormat, idx+1)
			}
			mapping[seg.Speaker] = role
			mapped.SpeakerOrder = append(mapped.SpeakerOrder, seg.Speaker)
		}
		mapped.Speakers = append(mapped.Speakers, types.MappedSegment{Segment: seg, Role: role})
	}

	return mapped
}
