// Package metrics exposes Prometheus instruments for the stitching pipeline.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// ChunksTotal counts diarized chunks.
	// Labels: status (success/error/malformed)
	ChunksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stitch_chunks_total",
			Help: "Total number of chunks diarized, by outcome",
		},
		[]string{"status"},
	)

	// MatchesTotal counts cross-chunk links.
	// Labels: outcome (linked/review/rejected)
	MatchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stitch_matches_total",
			Help: "Total number of speaker matches across chunk boundaries",
		},
		[]string{"outcome"},
	)

	// NewSpeakersTotal counts canonical ids minted after chunk 0.
	NewSpeakersTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "stitch_new_speakers_total",
			Help: "Total number of speakers first seen after the first chunk",
		},
	)

	// MatchConfidence records link confidence.
	MatchConfidence = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "stitch_match_confidence",
			Help:    "Confidence of speaker matches",
			Buckets: []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1},
		},
	)

	// StageDuration records per-stage wall time in seconds.
	// Labels: stage (probe/cut/diarize/stitch/label/publish)
	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "stitch_stage_duration_seconds",
			Help:    "Pipeline stage duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		},
		[]string{"stage"},
	)
)

// RecordChunk records one diarization outcome.
func RecordChunk(status string) {
	ChunksTotal.WithLabelValues(status).Inc()
}

// RecordMatch records one boundary link.
func RecordMatch(confidence float64, review, rejected bool) {
	outcome := "linked"
	switch {
	case rejected:
		outcome = "rejected"
	case review:
		outcome = "review"
	}
	MatchesTotal.WithLabelValues(outcome).Inc()
	MatchConfidence.Observe(confidence)
}

// RecordNewSpeakers adds n first-appearance speakers.
func RecordNewSpeakers(n int) {
	if n > 0 {
		NewSpeakersTotal.Add(float64(n))
	}
}

// RecordDuration records a stage duration in seconds.
func RecordDuration(stage string, seconds float64) {
	StageDuration.WithLabelValues(stage).Observe(seconds)
}

// Handler serves the default registry.
func Handler() http.Handler { return promhttp.Handler() }
