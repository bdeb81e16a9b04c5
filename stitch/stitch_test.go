package stitch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// consultation builds the two-chunk example: chunk 0 [0,30), chunk 1
// [20,50), shared window [20,30).
func consultation() []ChunkResult {
	return []ChunkResult{
		{
			Chunk: Chunk{Index: 0, StartTime: 0, EndTime: 30, OverlapDuration: 10},
			Segments: []Segment{
				seg("speaker_0", 2, 12, 20),
				seg("speaker_1", 12, 19, 14),
				seg("speaker_0", 20, 26, 12),
				seg("speaker_1", 26, 30, 8),
			},
		},
		{
			Chunk: Chunk{Index: 1, StartTime: 20, EndTime: 50, OverlapDuration: 10},
			Segments: []Segment{
				seg("speaker_1", 0, 5.8, 11),
				seg("speaker_0", 5.8, 10, 9),
				seg("speaker_1", 10, 18, 16),
				seg("speaker_0", 18, 29, 20),
			},
		},
	}
}

func TestStitch_TwoChunkConsultation(t *testing.T) {
	tr, err := Stitch(consultation(), NewMatcher(DefaultMatchPolicy()))
	require.NoError(t, err)

	require.Len(t, tr.Boundaries, 1)
	b := tr.Boundaries[0]
	require.Len(t, b.Matches, 2)
	assert.Equal(t, "speaker_0", b.Matches[0].FromLocalID)
	assert.Equal(t, "speaker_1", b.Matches[0].ToLocalID)
	assert.InDelta(t, 0.952, b.Matches[0].Confidence, 1e-3)
	assert.Empty(t, b.Minted)

	// Chunk 1's speaker_1 is chunk 0's speaker_0 and vice versa.
	byChunk := map[int]map[string]string{}
	for _, e := range tr.CanonicalMap {
		if byChunk[e.ChunkIndex] == nil {
			byChunk[e.ChunkIndex] = map[string]string{}
		}
		byChunk[e.ChunkIndex][e.LocalID] = e.CanonicalID
	}
	assert.Equal(t, map[string]string{"speaker_0": "speaker_0", "speaker_1": "speaker_1"}, byChunk[0])
	assert.Equal(t, map[string]string{"speaker_1": "speaker_0", "speaker_0": "speaker_1"}, byChunk[1])
	assert.Equal(t, []string{"speaker_0", "speaker_1"}, tr.Speakers)

	require.Len(t, tr.Segments, 8)
	last := tr.Segments[len(tr.Segments)-1]
	assert.Equal(t, "speaker_1", last.CanonicalSpeakerID)
	assert.Equal(t, 38.0, last.AbsoluteStartTime)
	assert.Equal(t, 0, tr.ReviewCount())
}

func TestStitch_SilentOverlapMintsNewSpeakers(t *testing.T) {
	results := []ChunkResult{
		{
			Chunk:    Chunk{Index: 0, StartTime: 0, EndTime: 30, OverlapDuration: 5},
			Segments: []Segment{seg("speaker_0", 0, 10, 20)},
		},
		{
			Chunk: Chunk{Index: 1, StartTime: 25, EndTime: 60, OverlapDuration: 5},
			Segments: []Segment{
				seg("speaker_0", 0, 3, 5),
				seg("speaker_1", 3, 5, 4),
			},
		},
	}
	tr, err := Stitch(results, NewMatcher(DefaultMatchPolicy()))
	require.NoError(t, err)

	require.Len(t, tr.Boundaries, 1)
	assert.Empty(t, tr.Boundaries[0].Matches)
	assert.ElementsMatch(t, []string{"speaker_0", "speaker_1"}, tr.Boundaries[0].Minted)
	assert.Equal(t, []string{"1_speaker_0", "1_speaker_1", "speaker_0"}, tr.Speakers)
}

func TestStitch_FailedChunkDoesNotStall(t *testing.T) {
	results := consultation()
	results[1].Segments = nil
	results = append(results, ChunkResult{
		Chunk:    Chunk{Index: 2, StartTime: 40, EndTime: 70, OverlapDuration: 10},
		Segments: []Segment{seg("speaker_0", 0, 6, 10)},
	})

	tr, err := Stitch(results, NewMatcher(DefaultMatchPolicy()))
	require.NoError(t, err)
	require.Len(t, tr.Boundaries, 2)
	assert.Equal(t, []string{"speaker_0"}, tr.Boundaries[1].Minted)
	assert.Contains(t, tr.Speakers, "2_speaker_0")
}

func TestStitch_TransitiveAcrossThreeChunks(t *testing.T) {
	results := []ChunkResult{
		{
			Chunk:    Chunk{Index: 0, StartTime: 0, EndTime: 30, OverlapDuration: 5},
			Segments: []Segment{seg("speaker_0", 20, 30, 20)},
		},
		{
			Chunk:    Chunk{Index: 1, StartTime: 25, EndTime: 60, OverlapDuration: 5},
			Segments: []Segment{seg("speaker_1", 0, 35, 60)},
		},
		{
			Chunk:    Chunk{Index: 2, StartTime: 55, EndTime: 90, OverlapDuration: 5},
			Segments: []Segment{seg("speaker_0", 0, 20, 40)},
		},
	}
	tr, err := Stitch(results, NewMatcher(DefaultMatchPolicy()))
	require.NoError(t, err)

	require.Len(t, tr.Boundaries, 2)
	assert.Equal(t, "speaker_1", tr.Boundaries[0].Matches[0].ToLocalID)
	assert.Equal(t, "speaker_1", tr.Boundaries[1].Matches[0].FromLocalID)
	assert.Equal(t, "speaker_0", tr.Boundaries[1].Matches[0].ToLocalID)

	assert.Equal(t, []string{"speaker_0"}, tr.Speakers)
	for _, s := range tr.Segments {
		assert.Equal(t, "speaker_0", s.CanonicalSpeakerID, "chunk %d", s.SourceChunkIndex)
	}
}

func TestStitch_RequiresContiguousChunks(t *testing.T) {
	results := consultation()
	results[1].Chunk.Index = 2
	_, err := Stitch(results, NewMatcher(DefaultMatchPolicy()))
	assert.ErrorIs(t, err, ErrOutOfOrder)

	_, err = Stitch(results[1:], NewMatcher(DefaultMatchPolicy()))
	assert.ErrorIs(t, err, ErrOutOfOrder)
}

func TestSession_OutOfOrderArrivalMatchesFold(t *testing.T) {
	results := []ChunkResult{
		consultation()[0],
		consultation()[1],
		{
			Chunk:    Chunk{Index: 2, StartTime: 40, EndTime: 70, OverlapDuration: 10},
			Segments: []Segment{seg("speaker_0", 0, 9, 18), seg("speaker_1", 12, 20, 10)},
		},
	}
	m := NewMatcher(DefaultMatchPolicy())
	want, err := Stitch(results, m)
	require.NoError(t, err)

	s := NewSession(m)
	resolved, err := s.Add(results[2])
	require.NoError(t, err)
	assert.Empty(t, resolved)
	resolved, err = s.Add(results[1])
	require.NoError(t, err)
	assert.Empty(t, resolved)
	assert.Equal(t, 0, s.Resolved())
	assert.Equal(t, 2, s.Pending())

	resolved, err = s.Add(results[0])
	require.NoError(t, err)
	assert.Len(t, resolved, 2)
	assert.Equal(t, 3, s.Resolved())
	assert.Equal(t, 0, s.Pending())

	got, err := s.Transcript()
	require.NoError(t, err)
	assert.Equal(t, want, got)

	_, err = s.Add(results[1])
	assert.Error(t, err, "duplicate chunk")
}

func TestSession_PartialTranscript(t *testing.T) {
	s := NewSession(NewMatcher(DefaultMatchPolicy()))
	_, err := s.Add(consultation()[0])
	require.NoError(t, err)

	tr, err := s.Transcript()
	require.NoError(t, err)
	assert.Equal(t, 1, tr.Chunks)
	assert.Len(t, tr.Segments, 4)
	assert.Empty(t, tr.Boundaries)
}
