package specification

import "gorm.io/gorm"

type ByVideoID struct {
	VideoID string
}

func (s ByVideoID) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("video_id = ?", s.VideoID)
}

// Newest orders by creation time, latest first.
type Newest struct{}

func (Newest) Apply(db *gorm.DB) *gorm.DB {
	return OrderBy{Field: "created_at", Desc: true}.Apply(db)
}
