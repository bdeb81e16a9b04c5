package stitch

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidOverlap is returned when the overlap is negative or not
	// shorter than the chunk length.
	ErrInvalidOverlap = errors.New("stitch: invalid overlap")
	// ErrOutOfOrder is returned when a boundary is resolved before the
	// boundary preceding it. It signals a caller bug.
	ErrOutOfOrder = errors.New("stitch: boundary resolved out of order")
	// ErrUnresolvedSpeaker is returned by Merge when a segment's local
	// speaker has no canonical assignment.
	ErrUnresolvedSpeaker = errors.New("stitch: unresolved speaker")
	// ErrMalformedEntry is returned when diarization output fails validation.
	ErrMalformedEntry = errors.New("stitch: malformed diarization entry")
)

// Window is a half-open time interval [Start, End) in seconds.
type Window struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

func (w Window) Len() float64 {
	if w.End <= w.Start {
		return 0
	}
	return w.End - w.Start
}

func (w Window) Empty() bool { return w.Len() == 0 }

func (w Window) Shift(delta float64) Window {
	return Window{Start: w.Start + delta, End: w.End + delta}
}

func (w Window) String() string {
	return fmt.Sprintf("[%.2fs, %.2fs)", w.Start, w.End)
}

// Chunk is one planned slice of the recording. Times are absolute seconds.
type Chunk struct {
	Index           int     `json:"index"`
	StartTime       float64 `json:"start_time"`
	EndTime         float64 `json:"end_time"`
	OverlapDuration float64 `json:"overlap_duration"`
}

func (c Chunk) Duration() float64 {
	if c.EndTime <= c.StartTime {
		return 0
	}
	return c.EndTime - c.StartTime
}

// StartOverlap returns the absolute window this chunk shares with its
// predecessor. It is empty for chunk 0.
func (c Chunk) StartOverlap() Window {
	if c.Index == 0 || c.OverlapDuration <= 0 {
		return Window{Start: c.StartTime, End: c.StartTime}
	}
	end := c.StartTime + c.OverlapDuration
	if end > c.EndTime {
		end = c.EndTime
	}
	return Window{Start: c.StartTime, End: end}
}

// EndOverlap returns the absolute window this chunk shares with its
// successor, clamped to the chunk.
func (c Chunk) EndOverlap() Window {
	start := c.EndTime - c.OverlapDuration
	if start < c.StartTime {
		start = c.StartTime
	}
	return Window{Start: start, End: c.EndTime}
}

func (c Chunk) Relative(w Window) Window { return w.Shift(-c.StartTime) }

func (c Chunk) String() string {
	return fmt.Sprintf("chunk %d: %.2fs-%.2fs", c.Index, c.StartTime, c.EndTime)
}

// Segment is one contiguous utterance of a single local speaker. Times are
// chunk-relative seconds.
type Segment struct {
	LocalSpeakerID string  `json:"local_speaker_id"`
	Text           string  `json:"text"`
	StartTime      float64 `json:"start_time"`
	EndTime        float64 `json:"end_time"`
}

// ChunkResult pairs a chunk with its diarized segments. Err records a
// diarization failure; such a chunk carries no segments.
type ChunkResult struct {
	Chunk    Chunk     `json:"chunk"`
	Segments []Segment `json:"segments"`
	Err      error     `json:"-"`
}

// Speakers returns the distinct local speaker ids in order of first
// appearance.
func (r ChunkResult) Speakers() []string {
	seen := make(map[string]struct{}, 4)
	var out []string
	for _, s := range r.Segments {
		if _, ok := seen[s.LocalSpeakerID]; ok {
			continue
		}
		seen[s.LocalSpeakerID] = struct{}{}
		out = append(out, s.LocalSpeakerID)
	}
	return out
}
