package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/maastricht-university/speaker-stitch/stitch"
)

// --- Role labeling (/label) ---
type LabelReq struct {
	Utterances []stitch.Utterance `json:"utterances"`
}
type LabelResp struct {
	Roles map[string]string `json:"roles"`
}

// Label asks the role classifier to name each canonical speaker. The
// returned roles are opaque to the pipeline.
func (h *HTTP) Label(ctx context.Context, url string, utts []stitch.Utterance) (map[string]string, error) {
	b, _ := json.Marshal(LabelReq{Utterances: utts})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url+"/label", bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.c.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("label %s: %s", resp.Status, string(body))
	}

	var out LabelResp
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("label decode: %w", err)
	}
	if out.Roles == nil {
		out.Roles = map[string]string{}
	}
	return out.Roles, nil
}
