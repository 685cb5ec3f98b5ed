package similarity

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// SigLIPScorer calls a model-serving sidecar that hosts
// google/siglip-base-patch16-224:
//
//	POST {base}/similarity {"image": "<base64>", "text": "..."} -> {"similarity": 0.42}
type SigLIPScorer struct {
	baseURL string
	client  *http.Client
}

var _ Scorer = (*SigLIPScorer)(nil)

func NewSigLIPScorer(baseURL string) *SigLIPScorer {
	return &SigLIPScorer{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

type siglipRequest struct {
	Image string `json:"image"`
	Text  string `json:"text"`
}

type siglipResponse struct {
	Similarity float64 `json:"similarity"`
	Error      string  `json:"error,omitempty"`
}

// Ping checks the sidecar is up and its model is loaded.
func (s *SigLIPScorer) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("siglip sidecar unreachable: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("siglip sidecar not ready (status %d)", resp.StatusCode)
	}
	return nil
}

func (s *SigLIPScorer) Similarity(ctx context.Context, image []byte, text string) (float64, error) {
	payload, err := json.Marshal(siglipRequest{
		Image: base64.StdEncoding.EncodeToString(image),
		Text:  text,
	})
	if err != nil {
		return 0, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/similarity", bytes.NewReader(payload))
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("siglip request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("siglip error (status %d): %s", resp.StatusCode, string(body))
	}

	var parsed siglipResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return 0, fmt.Errorf("unmarshal response: %w", err)
	}
	if parsed.Error != "" {
		return 0, fmt.Errorf("siglip: %s", parsed.Error)
	}
	return Clamp01(parsed.Similarity), nil
}
