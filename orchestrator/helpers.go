package orchestrator

import (
	"math"
	"sort"

	"github.com/maastricht-university/speaker-stitch/stitch"
)

// summarize computes per-speaker talk time and crosstalk. Seam copies
// (InOverlap) only count from the end of their chunk's seam on; the
// preceding chunk already covered the shared seconds.
func summarize(segs []stitch.MergedSegment, chunks []stitch.Chunk, roles map[string]string) Summary {
	var out Summary
	idx := map[string]int{}
	seamEnd := make(map[int]float64, len(chunks))
	for _, c := range chunks {
		seamEnd[c.Index] = c.StartOverlap().End
	}
	type edge struct {
		t     float64
		delta int
	}
	var edges []edge
	for _, s := range segs {
		start := s.AbsoluteStartTime
		if s.InOverlap {
			if end, ok := seamEnd[s.SourceChunkIndex]; ok {
				start = math.Max(start, end)
			}
		}
		d := math.Max(0, s.AbsoluteEndTime-start)
		i, ok := idx[s.CanonicalSpeakerID]
		if !ok {
			i = len(out.Speakers)
			idx[s.CanonicalSpeakerID] = i
			out.Speakers = append(out.Speakers, SpeakerSummary{
				CanonicalSpeakerID: s.CanonicalSpeakerID,
				Role:               roles[s.CanonicalSpeakerID],
			})
		}
		out.Speakers[i].Segments++
		out.Speakers[i].Seconds += d
		out.TalkTime += d
		if d > 0 {
			edges = append(edges, edge{t: start, delta: +1}, edge{t: s.AbsoluteEndTime, delta: -1})
		}
	}
	if out.TalkTime > 0 {
		for i := range out.Speakers {
			out.Speakers[i].Share = out.Speakers[i].Seconds / out.TalkTime
		}
	}
	sort.SliceStable(out.Speakers, func(i, j int) bool {
		return out.Speakers[i].Seconds > out.Speakers[j].Seconds
	})

	if len(edges) == 0 {
		return out
	}
	// ends sort before starts at the same instant so touching segments
	// don't count as crosstalk
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].t != edges[j].t {
			return edges[i].t < edges[j].t
		}
		return edges[i].delta < edges[j].delta
	})
	active := 0
	last := edges[0].t
	for _, e := range edges {
		if active > 1 {
			out.Crosstalk += e.t - last
		}
		active += e.delta
		last = e.t
	}
	return out
}
