package notification

import (
	"context"
	"encoding/json"
	"fmt"

	"pubcash-backend/pkg/mail"
	"pubcash-backend/pkg/rediskey"
	"pubcash-backend/pkg/repository"
	"pubcash-backend/services/account"
	"pubcash-backend/services/promotion"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Service struct {
	mailer mail.Sender
	rdb    *redis.Client

	promotions repository.Repository[promotion.Promotion]
	clients    repository.Repository[account.Client]
}

type ServiceParams struct {
	fx.In
	DB     *gorm.DB
	Mailer mail.Sender
	Redis  *redis.Client
}

func NewService(p ServiceParams) *Service {
	return &Service{
		mailer: p.Mailer,
		rdb:    p.Redis,

		promotions: repository.ProvideStore[promotion.Promotion](p.DB),
		clients:    repository.ProvideStore[account.Client](p.DB),
	}
}

type promotionFinishedPayload struct {
	PromotionID string `json:"promotion_id"`
}

// HandlePromotionFinished emails the owning client and publishes a push
// event once a promotion reaches its terminal state.
func (s *Service) HandlePromotionFinished(ctx context.Context, t *asynq.Task) error {
	var payload promotionFinishedPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("invalid payload: %w: %w", err, asynq.SkipRetry)
	}

	promo, err := s.promotions.FindOne(ctx, &promotion.Promotion{ID: payload.PromotionID})
	if err != nil {
		return err
	}

	owner, err := s.clients.FindOne(ctx, &account.Client{ID: promo.ClientID})
	if err != nil {
		return err
	}

	subject := fmt.Sprintf("Your promotion %q has finished", promo.Title)
	body := fmt.Sprintf(
		`<p>Hello %s,</p>
<p>Your promotion <strong>%s</strong> has reached the end of its budget.</p>
<p>Views: %d &middot; Likes: %d &middot; Shares: %d</p>
<p><img src=%q alt="thumbnail"/></p>`,
		owner.Name, promo.Title, promo.Views, promo.Likes, promo.Shares, promo.ThumbnailURL,
	)

	if err := s.mailer.Send(owner.Email, subject, body); err != nil {
		zap.L().Error("failed to send promotion finished email",
			zap.String("promotion_id", promo.ID), zap.Error(err))
	}

	s.publish(ctx, owner.ID, map[string]any{
		"event":        "promotion_finished",
		"promotion_id": promo.ID,
		"title":        promo.Title,
	})

	return nil
}

type withdrawalReviewedPayload struct {
	WithdrawalID string `json:"withdrawal_id"`
	UserID       string `json:"user_id"`
	Status       string `json:"status"`
	Amount       int64  `json:"amount"`
}

// HandleWithdrawalReviewed pushes the admin decision to the requesting
// user.
func (s *Service) HandleWithdrawalReviewed(ctx context.Context, t *asynq.Task) error {
	var payload withdrawalReviewedPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("invalid payload: %w: %w", err, asynq.SkipRetry)
	}

	s.publish(ctx, payload.UserID, map[string]any{
		"event":         "withdrawal_reviewed",
		"withdrawal_id": payload.WithdrawalID,
		"status":        payload.Status,
		"amount":        payload.Amount,
	})

	return nil
}

// publish is fire and forget: a lost push event never fails the task.
func (s *Service) publish(ctx context.Context, accountID string, event map[string]any) {
	raw, err := json.Marshal(event)
	if err != nil {
		return
	}

	channel := rediskey.NamespaceKey("notify", accountID)
	if err := s.rdb.Publish(ctx, channel, raw).Err(); err != nil {
		zap.L().Warn("failed to publish push event",
			zap.String("channel", channel), zap.Error(err))
	}
}
