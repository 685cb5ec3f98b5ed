package dto

import (
	"time"

	"github.com/google/uuid"
)

// QueryPayload is what the browser extension posts for one highlighted
// region of a paused frame.
type QueryPayload struct {
	VideoId      string    `json:"video_id" validate:"required,max=32"`
	Timestamp    float64   `json:"timestamp" validate:"gte=0"`
	BBox         []float64 `json:"bbox" validate:"required,len=4,dive,gte=0"`
	Query        string    `json:"query" validate:"required,max=2000"`
	FullFrameB64 string    `json:"full_frame_b64" validate:"required"`
}

type InteractionResponse struct {
	Id            uuid.UUID  `json:"id"`
	SessionId     string     `json:"session_id"`
	VideoId       string     `json:"video_id"`
	Timestamp     float64    `json:"timestamp"`
	Query         string     `json:"query"`
	BBox          [4]float64 `json:"bbox"`
	VisualLabel   string     `json:"visual_label"`
	Answer        string     `json:"answer"`
	Confidence    float64    `json:"confidence"`
	Attempts      int        `json:"attempts"`
	Passed        bool       `json:"passed"`
	HasTranscript bool       `json:"has_transcript"`
	UsedToolData  bool       `json:"used_tool_data"`
	DurationMs    int64      `json:"duration_ms"`
	CreatedAt     time.Time  `json:"created_at"`
}

type HealthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
}
