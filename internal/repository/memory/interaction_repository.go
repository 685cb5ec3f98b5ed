package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"video-rag-be/internal/entity"
	"video-rag-be/internal/repository/contract"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
)

// InteractionRepository keeps recent answers per video in process memory.
// It backs the history endpoint when no database is configured.
type InteractionRepository struct {
	mu       sync.Mutex
	cache    *cache.Cache
	perVideo int
}

var _ contract.InteractionRepository = (*InteractionRepository)(nil)

func NewInteractionRepository(ttl time.Duration, perVideo int) *InteractionRepository {
	if perVideo <= 0 {
		perVideo = 50
	}
	return &InteractionRepository{
		cache:    cache.New(ttl, 10*time.Minute),
		perVideo: perVideo,
	}
}

func (r *InteractionRepository) Create(_ context.Context, interaction *entity.Interaction) error {
	if interaction.Id == uuid.Nil {
		interaction.Id = uuid.New()
	}
	if interaction.CreatedAt.IsZero() {
		interaction.CreatedAt = time.Now()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if interaction.SessionId != "" {
		if err := r.cache.Add("session:"+interaction.SessionId, struct{}{}, cache.DefaultExpiration); err != nil {
			return fmt.Errorf("%w: %s", contract.ErrDuplicateSession, interaction.SessionId)
		}
	}

	list, _ := r.videoList(interaction.VideoId)
	cp := *interaction
	list = append([]*entity.Interaction{&cp}, list...)
	if len(list) > r.perVideo {
		list = list[:r.perVideo]
	}
	r.cache.Set(interaction.VideoId, list, cache.DefaultExpiration)
	return nil
}

func (r *InteractionRepository) FindRecentByVideo(_ context.Context, videoID string, limit int) ([]*entity.Interaction, error) {
	r.mu.Lock()
	stored, found := r.videoList(videoID)
	r.mu.Unlock()
	if !found {
		return []*entity.Interaction{}, nil
	}

	list := append([]*entity.Interaction(nil), stored...)
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].CreatedAt.After(list[j].CreatedAt)
	})
	if limit > 0 && len(list) > limit {
		list = list[:limit]
	}
	return list, nil
}

func (r *InteractionRepository) videoList(videoID string) ([]*entity.Interaction, bool) {
	x, found := r.cache.Get(videoID)
	if !found {
		return nil, false
	}
	list, ok := x.([]*entity.Interaction)
	return list, ok
}
