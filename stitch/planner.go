package stitch

import (
	"fmt"
	"math"
)

// Default planning parameters.
const (
	DefaultChunkLength = 30.0
	DefaultOverlap     = 5.0
	DefaultMaxChunks   = 50
)

// Planner computes chunk boundaries. Chunk i is planned to start at i*ChunkLength
// and is pulled back by Overlap seconds so that it re-hears the tail of its
// predecessor.
type Planner struct {
	ChunkLength float64
	Overlap     float64
	MaxChunks   int
	// FallbackDuration is used when the total duration is unknown. Zero
	// means MaxChunks*ChunkLength.
	FallbackDuration float64
}

type Plan struct {
	Chunks        []Chunk `json:"chunks"`
	TotalDuration float64 `json:"total_duration"`
	// Estimated is set when the duration probe failed and the fallback
	// estimate was used; the last chunk may be short or silent.
	Estimated bool `json:"estimated"`
	// Capped is set when MaxChunks cut the plan short.
	Capped bool `json:"capped"`
}

// NewPlanner validates and returns a planner. Zero values select defaults.
func NewPlanner(chunkLength, overlap float64, maxChunks int) (*Planner, error) {
	if chunkLength == 0 {
		chunkLength = DefaultChunkLength
	}
	if maxChunks <= 0 {
		maxChunks = DefaultMaxChunks
	}
	if chunkLength < 0 || math.IsNaN(chunkLength) {
		return nil, fmt.Errorf("stitch: chunk length %v must be positive", chunkLength)
	}
	if overlap < 0 || overlap >= chunkLength || math.IsNaN(overlap) {
		return nil, fmt.Errorf("%w: overlap %vs with chunk length %vs", ErrInvalidOverlap, overlap, chunkLength)
	}
	return &Planner{ChunkLength: chunkLength, Overlap: overlap, MaxChunks: maxChunks}, nil
}

func (p *Planner) fallback() float64 {
	if p.FallbackDuration > 0 {
		return p.FallbackDuration
	}
	return float64(p.MaxChunks) * p.ChunkLength
}

// Plan lays out every chunk for a recording of total seconds. A total of
// zero or less means the duration is unknown.
func (p *Planner) Plan(total float64) Plan {
	out := Plan{TotalDuration: total}
	if total <= 0 || math.IsNaN(total) || math.IsInf(total, 0) {
		out.TotalDuration = p.fallback()
		out.Estimated = true
	}
	for i := 0; ; i++ {
		c, ok := p.ChunkAt(i, out.TotalDuration)
		if !ok {
			break
		}
		if i >= p.MaxChunks {
			out.Capped = true
			break
		}
		out.Chunks = append(out.Chunks, c)
	}
	return out
}

// ChunkAt computes chunk i against the currently known total duration. It
// reports false once the planned start reaches the end of the recording.
func (p *Planner) ChunkAt(i int, total float64) (Chunk, bool) {
	planned := float64(i) * p.ChunkLength
	if i < 0 || planned >= total {
		return Chunk{}, false
	}
	start := planned
	if i > 0 {
		start = math.Max(0, planned-p.Overlap)
	}
	end := math.Min(planned+p.ChunkLength, total)
	return Chunk{Index: i, StartTime: start, EndTime: end, OverlapDuration: p.Overlap}, true
}
