package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/maastricht-university/speaker-stitch/orchestrator"
	"github.com/maastricht-university/speaker-stitch/stitch"
)

func secs(f float64) string { return strconv.FormatFloat(f, 'f', 2, 64) }

func renderPlan(p stitch.Plan) string {
	rows := make([][]string, 0, len(p.Chunks))
	for _, c := range p.Chunks {
		ov := c.StartOverlap()
		rows = append(rows, []string{
			strconv.Itoa(c.Index),
			secs(c.StartTime),
			secs(c.EndTime),
			secs(c.Duration()),
			secs(ov.Len()),
		})
	}
	return renderTable(
		[]string{"Chunk", "Start", "End", "Length", "Seam"},
		rows,
		[]columnAlignment{alignRight, alignRight, alignRight, alignRight, alignRight},
	)
}

func planNotes(p stitch.Plan) []string {
	var notes []string
	if p.Estimated {
		notes = append(notes, fmt.Sprintf("duration unknown, planned against an estimate of %ss", secs(p.TotalDuration)))
	}
	if p.Capped {
		notes = append(notes, "chunk limit reached, the end of the recording is not covered")
	}
	return notes
}

func renderSpeakers(s orchestrator.Summary) string {
	rows := make([][]string, 0, len(s.Speakers))
	for _, sp := range s.Speakers {
		rows = append(rows, []string{
			sp.CanonicalSpeakerID,
			sp.Role,
			strconv.Itoa(sp.Segments),
			secs(sp.Seconds),
			fmt.Sprintf("%.1f%%", sp.Share*100),
		})
	}
	return renderTable(
		[]string{"Speaker", "Role", "Segments", "Talk (s)", "Share"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignRight},
	)
}

func matchFlags(m stitch.MatchResult) string {
	var f []string
	if m.Rejected {
		f = append(f, "rejected")
	} else if m.NeedsReview {
		f = append(f, "review")
	}
	return strings.Join(f, ",")
}

func renderBoundaries(bs []stitch.BoundaryResolution) string {
	var rows [][]string
	for _, b := range bs {
		label := fmt.Sprintf("%d->%d", b.From, b.To)
		for _, m := range b.Matches {
			rows = append(rows, []string{label, m.FromLocalID, m.ToLocalID, fmt.Sprintf("%.3f", m.Confidence), matchFlags(m)})
		}
		for _, s := range b.Minted {
			rows = append(rows, []string{label, "", s, "", "new"})
		}
	}
	return renderTable(
		[]string{"Boundary", "From", "To", "Confidence", "Flags"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
	)
}

func renderSegments(segs []stitch.MergedSegment) string {
	rows := make([][]string, 0, len(segs))
	for _, s := range segs {
		seam := ""
		if s.InOverlap {
			seam = "*"
		}
		rows = append(rows, []string{
			secs(s.AbsoluteStartTime),
			secs(s.AbsoluteEndTime),
			s.CanonicalSpeakerID,
			strconv.Itoa(s.SourceChunkIndex) + seam,
			s.Text,
		})
	}
	return renderTable(
		[]string{"Start", "End", "Speaker", "Chunk", "Text"},
		rows,
		[]columnAlignment{alignRight, alignRight, alignLeft, alignRight, alignLeft},
	)
}
