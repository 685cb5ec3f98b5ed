package similarity

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// JinaScorer embeds image and caption with jina-clip-v2 in one request
// and returns their cosine similarity.
type JinaScorer struct {
	apiKey  string
	baseURL string
	model   string
	client  *http.Client
}

var _ Scorer = (*JinaScorer)(nil)

type clipInput struct {
	Text  string `json:"text,omitempty"`
	Image string `json:"image,omitempty"`
}

type clipRequest struct {
	Model string      `json:"model"`
	Input []clipInput `json:"input"`
}

type clipResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
	Detail string `json:"detail,omitempty"`
}

func NewJinaScorer(apiKey string) *JinaScorer {
	return &JinaScorer{
		apiKey:  apiKey,
		baseURL: "https://api.jina.ai/v1/embeddings",
		model:   "jina-clip-v2",
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

// WithBaseURL points the scorer at another endpoint (tests, proxies).
func (p *JinaScorer) WithBaseURL(url string) *JinaScorer {
	p.baseURL = url
	return p
}

func (p *JinaScorer) Similarity(ctx context.Context, image []byte, text string) (float64, error) {
	reqBody := clipRequest{
		Model: p.model,
		Input: []clipInput{
			{Image: base64.StdEncoding.EncodeToString(image)},
			{Text: text},
		},
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", p.apiKey))

	resp, err := p.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("jina api error (status %d): %s", resp.StatusCode, string(bodyBytes))
	}

	var parsed clipResponse
	if err := json.Unmarshal(bodyBytes, &parsed); err != nil {
		return 0, fmt.Errorf("failed to decode response: %w", err)
	}
	if len(parsed.Data) != 2 {
		return 0, fmt.Errorf("jina api returned %d embeddings, want 2", len(parsed.Data))
	}

	vectors := make([][]float32, 2)
	for _, d := range parsed.Data {
		if d.Index < 0 || d.Index > 1 {
			return 0, fmt.Errorf("jina api returned unexpected index %d", d.Index)
		}
		vectors[d.Index] = normalizeVector(d.Embedding)
	}

	return Clamp01(Cosine(vectors[0], vectors[1])), nil
}
