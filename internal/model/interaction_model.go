package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Interaction is one answered question about a video frame.
type Interaction struct {
	Id            uuid.UUID      `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	SessionId     string         `gorm:"type:varchar(64);not null;uniqueIndex"`
	VideoId       string         `gorm:"type:varchar(32);not null;index:idx_interactions_video_created,priority:1"`
	Timestamp     float64        `gorm:"not null"`
	Query         string         `gorm:"type:text;not null"`
	BBox          datatypes.JSON `gorm:"type:jsonb"`
	VisualLabel   string         `gorm:"type:varchar(255)"`
	Answer        string         `gorm:"type:text"`
	Confidence    float64
	Attempts      int
	Passed        bool
	HasTranscript bool
	UsedToolData  bool
	DurationMs    int64
	CreatedAt     time.Time `gorm:"autoCreateTime;index:idx_interactions_video_created,priority:2,sort:desc"`
}

func (Interaction) TableName() string {
	return "interactions"
}
