package contract

import (
	"context"
	"errors"

	"video-rag-be/internal/entity"
)

// ErrDuplicateSession is returned when a session already has a recorded interaction.
var ErrDuplicateSession = errors.New("interaction already recorded for session")

type InteractionRepository interface {
	Create(ctx context.Context, interaction *entity.Interaction) error
	// FindRecentByVideo returns up to limit interactions, newest first.
	FindRecentByVideo(ctx context.Context, videoID string, limit int) ([]*entity.Interaction, error)
}
