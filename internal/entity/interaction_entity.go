package entity

import (
	"time"

	"github.com/google/uuid"
)

type Interaction struct {
	Id            uuid.UUID
	SessionId     string
	VideoId       string
	Timestamp     float64
	Query         string
	BBox          [4]float64
	VisualLabel   string
	Answer        string
	Confidence    float64
	Attempts      int
	Passed        bool
	HasTranscript bool
	UsedToolData  bool
	Duration      time.Duration
	CreatedAt     time.Time
}
