package implementation

import (
	"context"
	"errors"
	"fmt"

	"video-rag-be/internal/entity"
	"video-rag-be/internal/mapper"
	"video-rag-be/internal/model"
	"video-rag-be/internal/repository/contract"
	"video-rag-be/internal/repository/specification"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

const uniqueViolation = "23505"

type InteractionRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.InteractionMapper
}

func NewInteractionRepository(db *gorm.DB) contract.InteractionRepository {
	return &InteractionRepositoryImpl{
		db:     db,
		mapper: mapper.NewInteractionMapper(),
	}
}

func (r *InteractionRepositoryImpl) applySpecifications(db *gorm.DB, specs ...specification.Specification) *gorm.DB {
	for _, spec := range specs {
		db = spec.Apply(db)
	}
	return db
}

func (r *InteractionRepositoryImpl) Create(ctx context.Context, interaction *entity.Interaction) error {
	m := r.mapper.ToModel(interaction)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("%w: %s", contract.ErrDuplicateSession, interaction.SessionId)
		}
		return err
	}
	*interaction = *r.mapper.ToEntity(m)
	return nil
}

func (r *InteractionRepositoryImpl) FindRecentByVideo(ctx context.Context, videoID string, limit int) ([]*entity.Interaction, error) {
	var rows []*model.Interaction
	query := r.applySpecifications(r.db.WithContext(ctx),
		specification.ByVideoID{VideoID: videoID},
		specification.Newest{},
		specification.Pagination{Limit: limit},
	)
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return r.mapper.ToEntities(rows), nil
}
