package orchestrator

import (
	"context"
	"time"

	"github.com/maastricht-university/speaker-stitch/clients"
	"github.com/maastricht-university/speaker-stitch/stitch"
)

// Diarizer labels who speaks when inside one chunk file. Offsets are relative
// to the chunk start.
type Diarizer interface {
	Diarize(ctx context.Context, c stitch.Chunk, wavPath string) ([]stitch.Entry, error)
}

type Media interface {
	ProbeDuration(ctx context.Context, path string) (float64, error)
	ExtractChunk(ctx context.Context, src, dir string, c stitch.Chunk) (string, error)
}

type Labeler interface {
	Label(ctx context.Context, url string, utts []stitch.Utterance) (map[string]string, error)
}

type Publisher interface {
	Publish(ctx context.Context, url string, bundle any) (*clients.PublishResp, error)
}

type SpeakerSummary struct {
	CanonicalSpeakerID string  `json:"canonical_speaker_id"`
	Segments           int     `json:"segments"`
	Seconds            float64 `json:"seconds"`
	Share              float64 `json:"share"` // of total talk time
	Role               string  `json:"role,omitempty"`
}

type Summary struct {
	Speakers  []SpeakerSummary `json:"speakers"`
	TalkTime  float64          `json:"talk_time"`
	Crosstalk float64          `json:"crosstalk"` // sec with >1 active speaker
}

// Bundle is what a run persists and publishes.
type Bundle struct {
	SessionID    string             `json:"session_id"`
	AudioPath    string             `json:"audio_path"`
	GeneratedAt  time.Time          `json:"generated_at"`
	Plan         stitch.Plan        `json:"plan"`
	Transcript   *stitch.Transcript `json:"transcript"`
	Summary      Summary            `json:"summary"`
	Roles        map[string]string  `json:"roles,omitempty"`
	FailedChunks []int              `json:"failed_chunks,omitempty"`
}

type Result struct {
	Bundle       *Bundle
	SessionDir   string
	SegmentsPath string
	BundlePath   string
	Published    *clients.PublishResp
}
