package stitch

import (
	"math"
	"strings"
)

// SpeakerStats is the evidence for one local speaker inside one overlap
// window.
type SpeakerStats struct {
	LocalSpeakerID         string  `json:"local_speaker_id"`
	OverlapDurationSeconds float64 `json:"overlap_duration_seconds"`
	WordCount              int     `json:"word_count"`
	SegmentCount           int     `json:"segment_count"`
}

type Stats map[string]SpeakerStats

// ExtractOverlapStats aggregates per-speaker presence inside w. Segments and
// window share the same (chunk-relative) time base. No speech in the window
// yields an empty map.
func ExtractOverlapStats(segments []Segment, w Window) Stats {
	out := Stats{}
	if w.Empty() {
		return out
	}
	for _, s := range segments {
		if s.StartTime >= w.End || s.EndTime <= w.Start {
			continue
		}
		clip := math.Min(s.EndTime, w.End) - math.Max(s.StartTime, w.Start)
		st := out[s.LocalSpeakerID]
		st.LocalSpeakerID = s.LocalSpeakerID
		st.OverlapDurationSeconds += clip
		st.WordCount += len(strings.Fields(s.Text))
		st.SegmentCount++
		out[s.LocalSpeakerID] = st
	}
	return out
}

// StartStats returns the statistics for the window c shares with the
// previous chunk.
func StartStats(c Chunk, segments []Segment) Stats {
	return ExtractOverlapStats(segments, c.Relative(c.StartOverlap()))
}

// EndStats returns the statistics for the window c shares with the next
// chunk.
func EndStats(c Chunk, segments []Segment) Stats {
	return ExtractOverlapStats(segments, c.Relative(c.EndOverlap()))
}

func (s Stats) TotalDuration() float64 {
	var total float64
	for _, st := range s {
		total += st.OverlapDurationSeconds
	}
	return total
}
