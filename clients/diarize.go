package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/maastricht-university/speaker-stitch/stitch"
)

// --- Diarization (/diarize) ---
type DiarEntry struct {
	Speaker *string  `json:"speaker"`
	Text    string   `json:"text"`
	Start   *float64 `json:"start"`
	End     *float64 `json:"end"`
}
type DiarResp struct {
	Entries  []DiarEntry `json:"entries"`
	Language string      `json:"language"`
}

// Diarize uploads one chunk wav and returns its speaker-labelled entries.
// Entries missing speaker or timing fields reject the whole response.
func (h *HTTP) Diarize(ctx context.Context, url, wavPath string, maxSpeakers int) ([]stitch.Entry, error) {
	var b bytes.Buffer
	w := multipart.NewWriter(&b)

	fw, err := w.CreateFormFile("file", filepath.Base(wavPath))
	if err != nil {
		return nil, err
	}
	fd, err := os.Open(wavPath)
	if err != nil {
		return nil, err
	}
	defer fd.Close()

	if _, err = io.Copy(fw, fd); err != nil {
		return nil, err
	}
	if maxSpeakers > 0 {
		if err = w.WriteField("max_speakers", strconv.Itoa(maxSpeakers)); err != nil {
			return nil, err
		}
	}
	if err = w.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url+"/diarize", &b)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := h.c.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("diarize %s: %s", resp.Status, string(body))
	}

	var out DiarResp
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("diarize decode: %w", err)
	}
	entries := make([]stitch.Entry, 0, len(out.Entries))
	for i, e := range out.Entries {
		if e.Speaker == nil || e.Start == nil || e.End == nil {
			return nil, fmt.Errorf("%w: entry %d missing speaker or timing", stitch.ErrMalformedEntry, i)
		}
		entries = append(entries, stitch.Entry{SpeakerLabel: *e.Speaker, Text: e.Text, StartOffset: *e.Start, EndOffset: *e.End})
	}
	return entries, nil
}

// HTTPDiarizer binds Diarize to one service endpoint.
type HTTPDiarizer struct {
	HTTP        *HTTP
	URL         string
	MaxSpeakers int
}

func (d *HTTPDiarizer) Diarize(ctx context.Context, c stitch.Chunk, wavPath string) ([]stitch.Entry, error) {
	return d.HTTP.Diarize(ctx, d.URL, wavPath, d.MaxSpeakers)
}
