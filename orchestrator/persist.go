package orchestrator

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/maastricht-university/speaker-stitch/stitch"
)

func newSessionID(now time.Time) string {
	return fmt.Sprintf("session_%s_%s", now.Format("20060102-150405"), uuid.NewString()[:8])
}

func mkSessionDir(outputsRoot, sid string) (string, error) {
	dir := filepath.Join(outputsRoot, sid)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return dir, nil
}

func writeJSON(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// Persist writes segments.json with the merged transcript and session.json
// with everything else.
func Persist(outputsRoot string, b *Bundle) (dir, segmentsPath, bundlePath string, err error) {
	dir, err = mkSessionDir(outputsRoot, b.SessionID)
	if err != nil {
		return "", "", "", err
	}

	segmentsPath = filepath.Join(dir, "segments.json")
	bundlePath = filepath.Join(dir, "session.json")

	segs := []stitch.MergedSegment{}
	meta := *b
	if b.Transcript != nil {
		if b.Transcript.Segments != nil {
			segs = b.Transcript.Segments
		}
		t := *b.Transcript
		t.Segments = nil // keep segments in segments.json only
		meta.Transcript = &t
	}
	if err = writeJSON(segmentsPath, segs); err != nil {
		return "", "", "", err
	}
	if err = writeJSON(bundlePath, meta); err != nil {
		return "", "", "", err
	}
	return dir, segmentsPath, bundlePath, nil
}
