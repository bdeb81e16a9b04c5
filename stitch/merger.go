package stitch

import (
	"fmt"
	"sort"
)

// MergedSegment is one utterance in recording time under its canonical
// speaker.
type MergedSegment struct {
	CanonicalSpeakerID string  `json:"canonical_speaker_id"`
	Text               string  `json:"text"`
	AbsoluteStartTime  float64 `json:"absolute_start_time"`
	AbsoluteEndTime    float64 `json:"absolute_end_time"`
	SourceChunkIndex   int     `json:"source_chunk_index"`
	// InOverlap marks segments that start inside the window this chunk
	// shares with its predecessor. The predecessor usually transcribed the
	// same audio; both copies are kept.
	InOverlap bool `json:"in_overlap,omitempty"`
}

// Merge maps every segment of every chunk to its canonical speaker and
// absolute time, ordered by start time and then by source chunk.
func Merge(results []ChunkResult, m *CanonicalMap) ([]MergedSegment, error) {
	var out []MergedSegment
	for _, r := range results {
		seam := r.Chunk.StartOverlap()
		for _, s := range r.Segments {
			a, ok := m.Lookup(r.Chunk.Index, s.LocalSpeakerID)
			if !ok {
				return nil, fmt.Errorf("%w: chunk %d speaker %q", ErrUnresolvedSpeaker, r.Chunk.Index, s.LocalSpeakerID)
			}
			start := r.Chunk.StartTime + s.StartTime
			out = append(out, MergedSegment{
				CanonicalSpeakerID: a.CanonicalID,
				Text:               s.Text,
				AbsoluteStartTime:  start,
				AbsoluteEndTime:    r.Chunk.StartTime + s.EndTime,
				SourceChunkIndex:   r.Chunk.Index,
				InOverlap:          !seam.Empty() && start < seam.End,
			})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].AbsoluteStartTime != out[j].AbsoluteStartTime {
			return out[i].AbsoluteStartTime < out[j].AbsoluteStartTime
		}
		return out[i].SourceChunkIndex < out[j].SourceChunkIndex
	})
	return out, nil
}

// Utterance is the {speaker, text} tuple handed to role labeling.
type Utterance struct {
	CanonicalSpeakerID string `json:"canonical_speaker_id"`
	Text               string `json:"text"`
}

// Utterances returns the first n merged segments as plain tuples. n <= 0
// returns all of them.
func Utterances(segs []MergedSegment, n int) []Utterance {
	if n <= 0 || n > len(segs) {
		n = len(segs)
	}
	out := make([]Utterance, 0, n)
	for _, s := range segs[:n] {
		out = append(out, Utterance{CanonicalSpeakerID: s.CanonicalSpeakerID, Text: s.Text})
	}
	return out
}
