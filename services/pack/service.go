package pack

import (
	"context"
	"errors"
	"time"

	"pubcash-backend/pkg/db/option"
	"pubcash-backend/pkg/errutil"
	"pubcash-backend/pkg/repository"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Service struct {
	db   *gorm.DB
	node *snowflake.Node

	packs repository.Repository[Pack]
}

type ServiceParams struct {
	fx.In
	DB   *gorm.DB
	Node *snowflake.Node
}

func NewService(p ServiceParams) *Service {
	return &Service{
		db:   p.DB,
		node: p.Node,

		packs: repository.ProvideStore[Pack](p.DB),
	}
}

type CreateInput struct {
	Name           string `json:"name"`
	MinDurationSec int    `json:"min_duration_sec"`
	MaxDurationSec int    `json:"max_duration_sec"`
	RewardPerView  int64  `json:"reward_per_view"`
}

func (s *Service) Create(ctx context.Context, in CreateInput) (*Pack, error) {
	if in.MinDurationSec < 0 || in.MaxDurationSec < in.MinDurationSec {
		return nil, errutil.ValidationFailed("invalid duration range", nil)
	}
	if in.RewardPerView < 0 {
		return nil, errutil.ValidationFailed("reward_per_view must be >= 0", nil)
	}

	p := &Pack{
		ID:             s.node.Generate().String(),
		Name:           in.Name,
		MinDurationSec: in.MinDurationSec,
		MaxDurationSec: in.MaxDurationSec,
		RewardPerView:  in.RewardPerView,
		CreatedAt:      time.Now(),
	}

	if err := s.packs.Create(ctx, p); err != nil {
		zap.L().Error("failed to create pack", zap.Error(err))
		return nil, err
	}

	return p, nil
}

func (s *Service) List(ctx context.Context) ([]*Pack, error) {
	return s.packs.Find(ctx, &Pack{}, option.WithSortBy(option.QuerySortBy{
		SortBy: "min_duration_sec",
		Allow:  map[string]bool{"min_duration_sec": true},
	}))
}

// ResolveByDuration returns the pack whose duration range contains the
// given video duration. Used once at funding time; the matched reward is
// frozen onto the promotion afterwards.
func (s *Service) ResolveByDuration(ctx context.Context, durationSec int) (*Pack, error) {
	return ResolveByDurationTx(ctx, s.db, durationSec)
}

// ResolveByDurationTx is the transactional variant used inside the
// funding transaction.
func ResolveByDurationTx(ctx context.Context, tx *gorm.DB, durationSec int) (*Pack, error) {
	var p Pack
	err := tx.WithContext(ctx).
		Where("min_duration_sec <= ? AND max_duration_sec >= ?", durationSec, durationSec).
		Order("min_duration_sec ASC").
		First(&p).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errutil.UnprocessableEntity("no pack available for video duration", nil)
		}
		return nil, err
	}

	return &p, nil
}
