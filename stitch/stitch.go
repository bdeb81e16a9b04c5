package stitch

import (
	"fmt"
	"sort"
)

// Transcript is the result of stitching a chunk sequence.
type Transcript struct {
	Segments     []MergedSegment      `json:"segments"`
	CanonicalMap []MapEntry           `json:"canonical_map"`
	Speakers     []string             `json:"speakers"`
	Boundaries   []BoundaryResolution `json:"boundaries"`
	Chunks       int                  `json:"chunks"`
}

func (t *Transcript) ReviewCount() int {
	n := 0
	for _, b := range t.Boundaries {
		for _, m := range b.Matches {
			if m.NeedsReview {
				n++
			}
		}
	}
	return n
}

// step folds one chunk into the resolver. prev is nil for chunk 0.
func step(r *Resolver, m *Matcher, prev *ChunkResult, next ChunkResult) (*BoundaryResolution, error) {
	if prev == nil {
		if next.Chunk.Index != 0 {
			return nil, fmt.Errorf("%w: first chunk has index %d", ErrOutOfOrder, next.Chunk.Index)
		}
		r.Seed(next.Speakers())
		return nil, nil
	}
	if next.Chunk.Index != prev.Chunk.Index+1 {
		return nil, fmt.Errorf("%w: chunk %d follows chunk %d", ErrOutOfOrder, next.Chunk.Index, prev.Chunk.Index)
	}
	matches := m.Match(EndStats(prev.Chunk, prev.Segments), StartStats(next.Chunk, next.Segments))
	res, err := r.Resolve(Boundary{From: prev.Chunk.Index, Matches: matches, Speakers: next.Speakers()})
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// Stitch is a left fold over the chunk sequence: each boundary resolution
// extends the canonical map that the next boundary reads. Results may be
// passed in any order but must cover indices 0..n-1 without gaps.
func Stitch(results []ChunkResult, m *Matcher) (*Transcript, error) {
	ordered := make([]ChunkResult, len(results))
	copy(ordered, results)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Chunk.Index < ordered[j].Chunk.Index })

	r := NewResolver()
	var bounds []BoundaryResolution
	for i := range ordered {
		var prev *ChunkResult
		if i > 0 {
			prev = &ordered[i-1]
		}
		res, err := step(r, m, prev, ordered[i])
		if err != nil {
			return nil, err
		}
		if res != nil {
			bounds = append(bounds, *res)
		}
	}
	return assemble(ordered, r.Snapshot(), bounds)
}

func assemble(results []ChunkResult, cm *CanonicalMap, bounds []BoundaryResolution) (*Transcript, error) {
	segs, err := Merge(results, cm)
	if err != nil {
		return nil, err
	}
	return &Transcript{
		Segments:     segs,
		CanonicalMap: cm.Entries(),
		Speakers:     cm.CanonicalIDs(),
		Boundaries:   bounds,
		Chunks:       len(results),
	}, nil
}
