package mapper

import (
	"encoding/json"
	"time"

	"video-rag-be/internal/entity"
	"video-rag-be/internal/model"

	"gorm.io/datatypes"
)

type InteractionMapper struct{}

func NewInteractionMapper() *InteractionMapper {
	return &InteractionMapper{}
}

func (m *InteractionMapper) ToEntity(i *model.Interaction) *entity.Interaction {
	if i == nil {
		return nil
	}

	var bbox [4]float64
	if len(i.BBox) > 0 {
		// A malformed column leaves the zero box; the row is still useful.
		_ = json.Unmarshal(i.BBox, &bbox)
	}

	return &entity.Interaction{
		Id:            i.Id,
		SessionId:     i.SessionId,
		VideoId:       i.VideoId,
		Timestamp:     i.Timestamp,
		Query:         i.Query,
		BBox:          bbox,
		VisualLabel:   i.VisualLabel,
		Answer:        i.Answer,
		Confidence:    i.Confidence,
		Attempts:      i.Attempts,
		Passed:        i.Passed,
		HasTranscript: i.HasTranscript,
		UsedToolData:  i.UsedToolData,
		Duration:      time.Duration(i.DurationMs) * time.Millisecond,
		CreatedAt:     i.CreatedAt,
	}
}

func (m *InteractionMapper) ToModel(i *entity.Interaction) *model.Interaction {
	if i == nil {
		return nil
	}

	bbox, _ := json.Marshal(i.BBox)

	return &model.Interaction{
		Id:            i.Id,
		SessionId:     i.SessionId,
		VideoId:       i.VideoId,
		Timestamp:     i.Timestamp,
		Query:         i.Query,
		BBox:          datatypes.JSON(bbox),
		VisualLabel:   i.VisualLabel,
		Answer:        i.Answer,
		Confidence:    i.Confidence,
		Attempts:      i.Attempts,
		Passed:        i.Passed,
		HasTranscript: i.HasTranscript,
		UsedToolData:  i.UsedToolData,
		DurationMs:    i.Duration.Milliseconds(),
		CreatedAt:     i.CreatedAt,
	}
}

func (m *InteractionMapper) ToEntities(rows []*model.Interaction) []*entity.Interaction {
	entities := make([]*entity.Interaction, len(rows))
	for i, r := range rows {
		entities[i] = m.ToEntity(r)
	}
	return entities
}
