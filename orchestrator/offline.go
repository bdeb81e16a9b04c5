package orchestrator

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/maastricht-university/speaker-stitch/stitch"
)

// ChunkFile is one pre-diarized chunk: its placement in the recording and the
// raw diarization entries with chunk-relative offsets.
type ChunkFile struct {
	Chunk   stitch.Chunk   `json:"chunk"`
	Entries []stitch.Entry `json:"entries"`
}

// LoadChunkFiles reads a JSON array of ChunkFile.
func LoadChunkFiles(path string) ([]ChunkFile, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var out []ChunkFile
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return out, nil
}

// StitchChunkFiles stitches already diarized chunks without touching audio.
// Chunks with malformed entries, and indices missing from files, are
// stitched as silent and listed in FailedChunks.
func StitchChunkFiles(files []ChunkFile, m *stitch.Matcher, log logrus.FieldLogger) (*Bundle, error) {
	results := make([]stitch.ChunkResult, 0, len(files))
	var failed []int
	for _, f := range files {
		res := stitch.ChunkResult{Chunk: f.Chunk}
		segs, err := stitch.GroupSegments(f.Entries)
		if err != nil {
			log.WithError(err).WithField("chunk", f.Chunk.Index).Warn("malformed chunk, stitching it as silent")
			res.Err = err
			failed = append(failed, f.Chunk.Index)
		} else {
			res.Segments = segs
		}
		results = append(results, res)
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Chunk.Index < results[j].Chunk.Index })

	results, missing := fillGaps(results)
	for _, i := range missing {
		log.WithField("chunk", i).Warn("chunk missing from input, stitching it as silent")
	}
	failed = append(failed, missing...)
	sort.Ints(failed)

	var plan stitch.Plan
	for _, r := range results {
		plan.Chunks = append(plan.Chunks, r.Chunk)
		plan.TotalDuration = max(plan.TotalDuration, r.Chunk.EndTime)
	}

	tr, err := stitch.Stitch(results, m)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	return &Bundle{
		SessionID:    newSessionID(now),
		GeneratedAt:  now,
		Plan:         plan,
		Transcript:   tr,
		Summary:      summarize(tr.Segments, plan.Chunks, nil),
		FailedChunks: failed,
	}, nil
}

// fillGaps inserts an empty result for every index between 0 and the last
// chunk that has no file. Placement is inferred from the neighbours.
// results must be sorted by index.
func fillGaps(results []stitch.ChunkResult) ([]stitch.ChunkResult, []int) {
	out := make([]stitch.ChunkResult, 0, len(results))
	var missing []int
	next := 0
	for _, r := range results {
		for ; next < r.Chunk.Index; next++ {
			c := stitch.Chunk{Index: next, OverlapDuration: r.Chunk.OverlapDuration}
			if n := len(out); n > 0 {
				prev := out[n-1].Chunk
				c.StartTime = max(prev.StartTime, prev.EndTime-prev.OverlapDuration)
			}
			c.EndTime = max(c.StartTime, r.Chunk.StartTime+c.OverlapDuration)
			out = append(out, stitch.ChunkResult{Chunk: c, Err: fmt.Errorf("chunk %d missing from input", next)})
			missing = append(missing, next)
		}
		out = append(out, r)
		next = max(next, r.Chunk.Index+1)
	}
	return out, missing
}
