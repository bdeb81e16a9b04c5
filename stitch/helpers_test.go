package stitch

import "strings"

func words(n int) string {
	return strings.TrimSpace(strings.Repeat("word ", n))
}

func seg(spk string, start, end float64, nWords int) Segment {
	return Segment{LocalSpeakerID: spk, StartTime: start, EndTime: end, Text: words(nWords)}
}
