package stitch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func twoChunkResults() []ChunkResult {
	return []ChunkResult{
		{
			Chunk: Chunk{Index: 0, StartTime: 0, EndTime: 30, OverlapDuration: 10},
			Segments: []Segment{
				{LocalSpeakerID: "speaker_0", Text: "hello", StartTime: 1, EndTime: 4},
				{LocalSpeakerID: "speaker_1", Text: "hi doctor", StartTime: 22, EndTime: 26},
			},
		},
		{
			Chunk: Chunk{Index: 1, StartTime: 20, EndTime: 50, OverlapDuration: 10},
			Segments: []Segment{
				{LocalSpeakerID: "speaker_0", Text: "hi doctor", StartTime: 2, EndTime: 6},
				{LocalSpeakerID: "speaker_1", Text: "so tell me", StartTime: 12, EndTime: 15},
			},
		},
	}
}

func twoChunkMap() *CanonicalMap {
	r := NewResolver()
	r.Seed([]string{"speaker_0", "speaker_1"})
	_, _ = r.Resolve(Boundary{
		From: 0,
		Matches: []MatchResult{
			{FromLocalID: "speaker_1", ToLocalID: "speaker_0"},
			{FromLocalID: "speaker_0", ToLocalID: "speaker_1"},
		},
		Speakers: []string{"speaker_0", "speaker_1"},
	})
	return r.Snapshot()
}

func TestMerge(t *testing.T) {
	got, err := Merge(twoChunkResults(), twoChunkMap())
	require.NoError(t, err)

	expected := []MergedSegment{
		{CanonicalSpeakerID: "speaker_0", Text: "hello", AbsoluteStartTime: 1, AbsoluteEndTime: 4, SourceChunkIndex: 0},
		{CanonicalSpeakerID: "speaker_1", Text: "hi doctor", AbsoluteStartTime: 22, AbsoluteEndTime: 26, SourceChunkIndex: 0},
		{CanonicalSpeakerID: "speaker_1", Text: "hi doctor", AbsoluteStartTime: 22, AbsoluteEndTime: 26, SourceChunkIndex: 1, InOverlap: true},
		{CanonicalSpeakerID: "speaker_0", Text: "so tell me", AbsoluteStartTime: 32, AbsoluteEndTime: 35, SourceChunkIndex: 1},
	}
	assert.Equal(t, expected, got)
}

func TestMerge_TieBreakBySourceChunk(t *testing.T) {
	results := twoChunkResults()
	// Feed chunks in reverse: the tie at 22s must still list chunk 0 first.
	reversed := []ChunkResult{results[1], results[0]}
	got, err := Merge(reversed, twoChunkMap())
	require.NoError(t, err)
	require.Len(t, got, 4)
	assert.Equal(t, 0, got[1].SourceChunkIndex)
	assert.Equal(t, 1, got[2].SourceChunkIndex)
}

func TestMerge_Idempotent(t *testing.T) {
	m := twoChunkMap()
	first, err := Merge(twoChunkResults(), m)
	require.NoError(t, err)
	second, err := Merge(twoChunkResults(), m)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestMerge_UnresolvedSpeaker(t *testing.T) {
	results := twoChunkResults()
	results[1].Segments = append(results[1].Segments, Segment{LocalSpeakerID: "speaker_9", Text: "?", StartTime: 20, EndTime: 21})

	_, err := Merge(results, twoChunkMap())
	assert.ErrorIs(t, err, ErrUnresolvedSpeaker)
}

func TestUtterances(t *testing.T) {
	segs, err := Merge(twoChunkResults(), twoChunkMap())
	require.NoError(t, err)

	got := Utterances(segs, 2)
	assert.Equal(t, []Utterance{
		{CanonicalSpeakerID: "speaker_0", Text: "hello"},
		{CanonicalSpeakerID: "speaker_1", Text: "hi doctor"},
	}, got)

	assert.Len(t, Utterances(segs, 0), 4)
	assert.Len(t, Utterances(segs, 99), 4)
	assert.Empty(t, Utterances(nil, 3))
}
