package stitch

import (
	"fmt"
	"math"
	"strings"
)

// Entry is one word- or segment-level item from the diarization service.
// Offsets are chunk-relative seconds.
type Entry struct {
	SpeakerLabel string  `json:"speaker_label"`
	Text         string  `json:"text"`
	StartOffset  float64 `json:"start_offset"`
	EndOffset    float64 `json:"end_offset"`
}

func (e Entry) validate() error {
	switch {
	case strings.TrimSpace(e.SpeakerLabel) == "":
		return fmt.Errorf("empty speaker label")
	case math.IsNaN(e.StartOffset) || math.IsNaN(e.EndOffset):
		return fmt.Errorf("NaN offset")
	case e.StartOffset < 0:
		return fmt.Errorf("negative start %v", e.StartOffset)
	case e.EndOffset < e.StartOffset:
		return fmt.Errorf("end %v before start %v", e.EndOffset, e.StartOffset)
	}
	return nil
}

// GroupSegments validates entries and collapses runs of adjacent entries
// with the same speaker label into one Segment. Any invalid entry rejects
// the whole response so that partial output never reaches the resolver.
func GroupSegments(entries []Entry) ([]Segment, error) {
	for i, e := range entries {
		if err := e.validate(); err != nil {
			return nil, fmt.Errorf("%w: entry %d: %v", ErrMalformedEntry, i, err)
		}
	}
	var (
		out  []Segment
		text []string
	)
	flush := func() {
		if len(out) == 0 {
			return
		}
		out[len(out)-1].Text = strings.Join(text, " ")
		text = text[:0]
	}
	for _, e := range entries {
		word := strings.TrimSpace(e.Text)
		if n := len(out); n > 0 && out[n-1].LocalSpeakerID == e.SpeakerLabel {
			out[n-1].EndTime = e.EndOffset
			if word != "" {
				text = append(text, word)
			}
			continue
		}
		flush()
		out = append(out, Segment{
			LocalSpeakerID: e.SpeakerLabel,
			StartTime:      e.StartOffset,
			EndTime:        e.EndOffset,
		})
		if word != "" {
			text = append(text, word)
		}
	}
	flush()
	return out, nil
}
