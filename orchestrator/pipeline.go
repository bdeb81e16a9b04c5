package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/maastricht-university/speaker-stitch/clients"
	cfg "github.com/maastricht-university/speaker-stitch/config"
	"github.com/maastricht-university/speaker-stitch/media"
	"github.com/maastricht-university/speaker-stitch/metrics"
	"github.com/maastricht-university/speaker-stitch/stitch"
)

type Pipeline struct {
	cfg         *cfg.Root
	log         logrus.FieldLogger
	planner     *stitch.Planner
	matcher     *stitch.Matcher
	media       Media
	diarizerFor func(sessionID string) Diarizer
	labeler     Labeler
	publisher   Publisher
}

type Option func(*Pipeline)

func WithMedia(m Media) Option { return func(p *Pipeline) { p.media = m } }

// WithDiarizer uses d for every session instead of the configured backend.
func WithDiarizer(d Diarizer) Option {
	return func(p *Pipeline) { p.diarizerFor = func(string) Diarizer { return d } }
}

func WithLabeler(l Labeler) Option { return func(p *Pipeline) { p.labeler = l } }

func WithPublisher(pub Publisher) Option { return func(p *Pipeline) { p.publisher = pub } }

// NewPipeline wires the configured media tool, diarization backend and HTTP
// collaborators. Options replace any of them.
func NewPipeline(ctx context.Context, c *cfg.Root, log logrus.FieldLogger, opts ...Option) (*Pipeline, error) {
	planner, err := stitch.NewPlanner(c.Chunking.ChunkLength, c.Chunking.Overlap, c.Chunking.MaxChunks)
	if err != nil {
		return nil, err
	}
	planner.FallbackDuration = c.Chunking.FallbackDuration
	if log == nil {
		log = logrus.StandardLogger()
	}

	h := clients.NewHTTP(0)
	p := &Pipeline{
		cfg:       c,
		log:       log,
		planner:   planner,
		matcher:   stitch.NewMatcher(c.Matching),
		media:     media.New(c.Media.FFmpeg, c.Media.FFprobe, c.Media.SampleRate, c.Media.Channels),
		labeler:   h,
		publisher: h,
	}
	for _, o := range opts {
		o(p)
	}
	if p.diarizerFor == nil {
		p.diarizerFor, err = newDiarizer(ctx, c, h, log)
		if err != nil {
			return nil, err
		}
	}
	return p, nil
}

func newDiarizer(ctx context.Context, c *cfg.Root, h *clients.HTTP, log logrus.FieldLogger) (func(string) Diarizer, error) {
	dc := c.Services.Diarization
	switch strings.ToLower(dc.Backend) {
	case "aws":
		t, err := clients.NewTranscribe(ctx, c.Services.AWS.Region)
		if err != nil {
			return nil, err
		}
		t.Bucket = c.Services.AWS.Bucket
		t.Prefix = c.Services.AWS.Prefix
		if c.Services.AWS.LanguageCode != "" {
			t.LanguageCode = c.Services.AWS.LanguageCode
		}
		if c.Services.AWS.PollInterval > 0 {
			t.PollInterval = c.Services.AWS.PollInterval
		}
		if dc.MaxSpeakers > 0 {
			t.MaxSpeakers = dc.MaxSpeakers
		}
		t.Log = log
		// job names must be unique per session
		return func(sid string) Diarizer {
			s := *t
			s.JobPrefix = sid
			return &s
		}, nil
	default:
		if dc.URL == "" {
			return nil, errors.New("services.diarization.url is required for the http backend")
		}
		d := &clients.HTTPDiarizer{HTTP: h, URL: dc.URL, MaxSpeakers: dc.MaxSpeakers}
		return func(string) Diarizer { return d }, nil
	}
}

// Run chunks audioPath, diarizes every chunk concurrently, stitches speaker
// identities across chunk boundaries and persists the result under
// paths.outputs/<session>.
func (p *Pipeline) Run(ctx context.Context, audioPath string) (*Result, error) {
	if _, err := os.Stat(audioPath); err != nil {
		return nil, fmt.Errorf("audio: %w", err)
	}
	sid := newSessionID(time.Now())
	log := p.log.WithFields(logrus.Fields{"session": sid, "audio": filepath.Base(audioPath)})

	plan := p.plan(ctx, log, audioPath)

	workDir := filepath.Join(p.cfg.Paths.Work, sid)
	defer os.RemoveAll(workDir)

	sess := stitch.NewSession(p.matcher)
	failed, err := p.diarizeAll(ctx, log, audioPath, workDir, plan, p.diarizerFor(sid), sess)
	if err != nil {
		return nil, err
	}

	t0 := time.Now()
	tr, err := sess.Transcript()
	metrics.RecordDuration("stitch", time.Since(t0).Seconds())
	if err != nil {
		return nil, err
	}
	log.WithFields(logrus.Fields{
		"segments": len(tr.Segments),
		"speakers": len(tr.Speakers),
		"review":   tr.ReviewCount(),
		"failed":   len(failed),
	}).Info("transcript stitched")

	roles := p.label(ctx, log, tr)
	b := &Bundle{
		SessionID:    sid,
		AudioPath:    audioPath,
		GeneratedAt:  time.Now(),
		Plan:         plan,
		Transcript:   tr,
		Summary:      summarize(tr.Segments, plan.Chunks, roles),
		Roles:        roles,
		FailedChunks: failed,
	}

	dir, segPath, bundlePath, err := Persist(p.cfg.Paths.Outputs, b)
	if err != nil {
		return nil, fmt.Errorf("persist: %w", err)
	}
	log.WithField("dir", dir).Info("session written")

	return &Result{
		Bundle:       b,
		SessionDir:   dir,
		SegmentsPath: segPath,
		BundlePath:   bundlePath,
		Published:    p.publish(ctx, log, b),
	}, nil
}

// plan probes the duration and lays out chunks. A failed probe falls back to
// the planner's estimate.
func (p *Pipeline) plan(ctx context.Context, log logrus.FieldLogger, audioPath string) stitch.Plan {
	t0 := time.Now()
	total, err := p.media.ProbeDuration(ctx, audioPath)
	metrics.RecordDuration("probe", time.Since(t0).Seconds())
	if err != nil {
		log.WithError(err).Warn("duration probe failed, using estimate")
		total = 0
	}

	plan := p.planner.Plan(total)
	fields := logrus.Fields{
		"chunks":    len(plan.Chunks),
		"duration":  plan.TotalDuration,
		"estimated": plan.Estimated,
	}
	if plan.Capped {
		log.WithFields(fields).Warnf("recording exceeds %d chunks, tail dropped", p.planner.MaxChunks)
	} else {
		log.WithFields(fields).Info("chunks planned")
	}
	return plan
}

// diarizeAll fans chunks out to the diarizer and feeds results into sess as
// they complete. A failing chunk is recorded and stitched with no segments.
func (p *Pipeline) diarizeAll(ctx context.Context, log logrus.FieldLogger, src, workDir string, plan stitch.Plan, d Diarizer, sess *stitch.Session) ([]int, error) {
	g, gctx := errgroup.WithContext(ctx)
	sem := semaphore.NewWeighted(int64(max(1, p.cfg.Chunking.MaxConcurrent)))

	var mu sync.Mutex
	var failed []int
	for _, c := range plan.Chunks {
		if err := sem.Acquire(gctx, 1); err != nil {
			break
		}
		g.Go(func() error {
			defer sem.Release(1)
			res := p.diarizeChunk(gctx, log, src, workDir, c, d)
			if res.Err != nil {
				mu.Lock()
				failed = append(failed, c.Index)
				mu.Unlock()
			}
			bounds, err := sess.Add(res)
			if err != nil {
				return fmt.Errorf("stitch chunk %d: %w", c.Index, err)
			}
			p.observe(log, bounds)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sort.Ints(failed)
	return failed, nil
}

func (p *Pipeline) diarizeChunk(ctx context.Context, log logrus.FieldLogger, src, workDir string, c stitch.Chunk, d Diarizer) stitch.ChunkResult {
	res := stitch.ChunkResult{Chunk: c}
	clog := log.WithField("chunk", c.Index)
	if to := p.cfg.Chunking.ChunkTimeout; to > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, to)
		defer cancel()
	}

	t0 := time.Now()
	wav, err := p.media.ExtractChunk(ctx, src, workDir, c)
	metrics.RecordDuration("cut", time.Since(t0).Seconds())
	if err != nil {
		return chunkFailed(clog, res, "error", err)
	}

	t0 = time.Now()
	entries, err := d.Diarize(ctx, c, wav)
	metrics.RecordDuration("diarize", time.Since(t0).Seconds())
	if err != nil {
		status := "error"
		if errors.Is(err, stitch.ErrMalformedEntry) {
			status = "malformed"
		}
		return chunkFailed(clog, res, status, err)
	}
	segs, err := stitch.GroupSegments(entries)
	if err != nil {
		return chunkFailed(clog, res, "malformed", err)
	}

	res.Segments = segs
	metrics.RecordChunk("success")
	clog.WithFields(logrus.Fields{
		"segments": len(segs),
		"speakers": len(res.Speakers()),
		"window":   fmt.Sprintf("%.2f-%.2f", c.StartTime, c.EndTime),
	}).Debug("chunk diarized")
	return res
}

func chunkFailed(log logrus.FieldLogger, res stitch.ChunkResult, status string, err error) stitch.ChunkResult {
	metrics.RecordChunk(status)
	log.WithError(err).Warn("chunk diarization failed, stitching it as silent")
	res.Segments = nil
	res.Err = err
	return res
}

func (p *Pipeline) observe(log logrus.FieldLogger, bounds []stitch.BoundaryResolution) {
	for _, b := range bounds {
		blog := log.WithField("boundary", fmt.Sprintf("%d->%d", b.From, b.To))
		for _, m := range b.Matches {
			metrics.RecordMatch(m.Confidence, m.NeedsReview, m.Rejected)
			if m.NeedsReview && !m.Rejected {
				blog.WithFields(logrus.Fields{
					"from":       m.FromLocalID,
					"to":         m.ToLocalID,
					"confidence": fmt.Sprintf("%.3f", m.Confidence),
				}).Warn("low-confidence speaker link")
			}
		}
		metrics.RecordNewSpeakers(len(b.Minted))
		blog.WithFields(logrus.Fields{
			"linked": len(b.Linked),
			"minted": len(b.Minted),
		}).Debug("boundary resolved")
	}
}

func (p *Pipeline) label(ctx context.Context, log logrus.FieldLogger, tr *stitch.Transcript) map[string]string {
	url := p.cfg.Services.Labeler.URL
	if url == "" || p.labeler == nil || len(tr.Segments) == 0 {
		return nil
	}
	t0 := time.Now()
	roles, err := p.labeler.Label(ctx, url, stitch.Utterances(tr.Segments, p.cfg.Labeling.Utterances))
	metrics.RecordDuration("label", time.Since(t0).Seconds())
	if err != nil {
		log.WithError(err).Warn("role labeling failed, continuing without roles")
		return nil
	}
	return roles
}

func (p *Pipeline) publish(ctx context.Context, log logrus.FieldLogger, b *Bundle) *clients.PublishResp {
	url := p.cfg.Services.Publish.URL
	if url == "" || p.publisher == nil {
		return nil
	}
	t0 := time.Now()
	resp, err := p.publisher.Publish(ctx, url, b)
	metrics.RecordDuration("publish", time.Since(t0).Seconds())
	if err != nil {
		log.WithError(err).Warn("publish failed")
		return nil
	}
	return resp
}
