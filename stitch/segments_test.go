package stitch

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGroupSegments(t *testing.T) {
	entries := []Entry{
		{SpeakerLabel: "speaker_0", Text: "good", StartOffset: 0.0, EndOffset: 0.4},
		{SpeakerLabel: "speaker_0", Text: "morning", StartOffset: 0.5, EndOffset: 1.0},
		{SpeakerLabel: "speaker_1", Text: "hi", StartOffset: 1.2, EndOffset: 1.4},
		{SpeakerLabel: "speaker_0", Text: "how", StartOffset: 1.6, EndOffset: 1.8},
		{SpeakerLabel: "speaker_0", Text: " ", StartOffset: 1.8, EndOffset: 1.9},
		{SpeakerLabel: "speaker_0", Text: "are you", StartOffset: 1.9, EndOffset: 2.5},
	}
	segs, err := GroupSegments(entries)
	require.NoError(t, err)

	expected := []Segment{
		{LocalSpeakerID: "speaker_0", Text: "good morning", StartTime: 0, EndTime: 1.0},
		{LocalSpeakerID: "speaker_1", Text: "hi", StartTime: 1.2, EndTime: 1.4},
		{LocalSpeakerID: "speaker_0", Text: "how are you", StartTime: 1.6, EndTime: 2.5},
	}
	assert.Equal(t, expected, segs)
}

func TestGroupSegments_Empty(t *testing.T) {
	segs, err := GroupSegments(nil)
	require.NoError(t, err)
	assert.Empty(t, segs)
}

func TestGroupSegments_RejectsMalformed(t *testing.T) {
	tests := []struct {
		name  string
		entry Entry
	}{
		{"empty label", Entry{SpeakerLabel: " ", StartOffset: 0, EndOffset: 1}},
		{"negative start", Entry{SpeakerLabel: "a", StartOffset: -1, EndOffset: 1}},
		{"end before start", Entry{SpeakerLabel: "a", StartOffset: 2, EndOffset: 1}},
		{"nan", Entry{SpeakerLabel: "a", StartOffset: math.NaN(), EndOffset: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			good := Entry{SpeakerLabel: "a", Text: "ok", StartOffset: 0, EndOffset: 0.5}
			segs, err := GroupSegments([]Entry{good, tt.entry})
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrMalformedEntry)
			assert.Contains(t, err.Error(), "entry 1")
			assert.Nil(t, segs)
		})
	}
}
