package stitch

import (
	"math"
	"sort"
)

const (
	durationWeight = 0.7
	wordWeight     = 0.3
)

// MatchResult links a speaker of chunk i to a speaker of chunk i+1.
type MatchResult struct {
	FromLocalID string  `json:"from_local_id"`
	ToLocalID   string  `json:"to_local_id"`
	Confidence  float64 `json:"confidence"`
	DurationSim float64 `json:"duration_sim"`
	WordSim     float64 `json:"word_sim"`
	Rank        int     `json:"rank"`
	// NeedsReview marks links under the review threshold. They still merge.
	NeedsReview bool `json:"needs_review,omitempty"`
	// Rejected marks links under a configured confidence floor. The
	// resolver treats ToLocalID as a new speaker.
	Rejected bool `json:"rejected,omitempty"`
}

// MatchPolicy holds the thresholds applied to ranked pairs.
type MatchPolicy struct {
	// ConfidenceFloor rejects pairs scoring below it. Zero disables
	// rejection, which is the default: every ranked pair links.
	ConfidenceFloor float64 `json:"confidence_floor" mapstructure:"confidence_floor" yaml:"confidence_floor"`
	// ReviewThreshold flags pairs scoring below it for manual review.
	ReviewThreshold float64 `json:"review_threshold" mapstructure:"review_threshold" yaml:"review_threshold"`
}

// DefaultMatchPolicy always links and flags pairs under 0.6 for review.
func DefaultMatchPolicy() MatchPolicy {
	return MatchPolicy{ConfidenceFloor: 0, ReviewThreshold: 0.6}
}

func (p MatchPolicy) normalized() MatchPolicy {
	if p.ConfidenceFloor < 0 || p.ConfidenceFloor > 1 || math.IsNaN(p.ConfidenceFloor) {
		p.ConfidenceFloor = 0
	}
	if p.ReviewThreshold < 0 || p.ReviewThreshold > 1 || math.IsNaN(p.ReviewThreshold) {
		p.ReviewThreshold = DefaultMatchPolicy().ReviewThreshold
	}
	return p
}

// Matcher pairs speakers across one chunk boundary by rank of overlap
// duration.
type Matcher struct {
	policy MatchPolicy
}

// NewMatcher returns a matcher using p. Out-of-range thresholds fall back to
// their defaults.
func NewMatcher(p MatchPolicy) *Matcher {
	return &Matcher{policy: p.normalized()}
}

func (m *Matcher) Policy() MatchPolicy { return m.policy }

// Match pairs the k-th longest speaker of endStats (chunk i) with the k-th
// longest of startStats (chunk i+1). Speakers beyond the shorter ranking are
// left unmatched. Both inputs describe the same seconds of audio.
func (m *Matcher) Match(endStats, startStats Stats) []MatchResult {
	from := rank(endStats)
	to := rank(startStats)
	n := min(len(from), len(to))
	if n == 0 {
		return nil
	}
	out := make([]MatchResult, 0, n)
	for k := 0; k < n; k++ {
		a, b := from[k], to[k]
		ds := similarity(a.OverlapDurationSeconds, b.OverlapDurationSeconds)
		ws := similarity(float64(a.WordCount), float64(b.WordCount))
		conf := durationWeight*ds + wordWeight*ws
		out = append(out, MatchResult{
			FromLocalID: a.LocalSpeakerID,
			ToLocalID:   b.LocalSpeakerID,
			Confidence:  conf,
			DurationSim: ds,
			WordSim:     ws,
			Rank:        k,
			NeedsReview: conf < m.policy.ReviewThreshold,
			Rejected:    m.policy.ConfidenceFloor > 0 && conf < m.policy.ConfidenceFloor,
		})
	}
	return out
}

// rank orders speakers by overlap duration descending, ties by id.
func rank(s Stats) []SpeakerStats {
	out := make([]SpeakerStats, 0, len(s))
	for id, st := range s {
		st.LocalSpeakerID = id
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].OverlapDurationSeconds != out[j].OverlapDurationSeconds {
			return out[i].OverlapDurationSeconds > out[j].OverlapDurationSeconds
		}
		return out[i].LocalSpeakerID < out[j].LocalSpeakerID
	})
	return out
}

// similarity is 1 - |a-b|/max(a,b), or 0 when both are zero.
func similarity(a, b float64) float64 {
	hi := math.Max(a, b)
	if hi <= 0 {
		return 0
	}
	s := 1 - math.Abs(a-b)/hi
	return math.Max(0, math.Min(1, s))
}
