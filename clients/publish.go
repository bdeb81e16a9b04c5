package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// --- Downstream consumer (/transcripts) ---
type PublishResp struct {
	Status string `json:"status"`
	ID     string `json:"id"`
}

// Publish posts any JSON-encodable transcript bundle downstream.
func (h *HTTP) Publish(ctx context.Context, url string, bundle any) (*PublishResp, error) {
	b, err := json.Marshal(bundle)
	if err != nil {
		return nil, fmt.Errorf("publish encode: %w", err)
	}
	r, err := http.NewRequestWithContext(ctx, http.MethodPost, url+"/transcripts", bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	r.Header.Set("Content-Type", "application/json")
	resp, err := h.c.Do(r)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("publish %s: %s", resp.Status, string(body))
	}

	var out PublishResp
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("publish decode: %w", err)
	}
	return &out, nil
}
