package promotion

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"pubcash-backend/pkg/db/option"
	"pubcash-backend/pkg/errutil"
	"pubcash-backend/pkg/middleware"
	"pubcash-backend/pkg/taskname"
	"pubcash-backend/services/account"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type InteractionResult struct {
	Type              string `json:"type"`
	Duplicate         bool   `json:"duplicate"`
	ViewSettled       bool   `json:"view_settled"`
	RewardAmount      int64  `json:"reward_amount"`
	PromotionFinished bool   `json:"promotion_finished"`
	BudgetExhausted   bool   `json:"budget_exhausted"`
}

// RecordInteraction records a like or share for (user, promotion). A
// duplicate submission is an idempotent success. When like and share are
// both present and no view has been paid yet, settlement is attempted in
// the same transaction.
func (s *Service) RecordInteraction(ctx context.Context, userID, promotionID, interactionType string) (*InteractionResult, error) {
	if interactionType != InteractionLike && interactionType != InteractionShare {
		return nil, errutil.ValidationFailed("type must be like or share", nil)
	}

	channel := middleware.GetChannel(ctx)
	result := &InteractionResult{Type: interactionType}

	err := s.inTx(func(tx *gorm.DB) error {
		*result = InteractionResult{Type: interactionType}

		promo, user, ownerMunicipality, err := s.loadForInteraction(ctx, tx, userID, promotionID)
		if err != nil {
			return err
		}

		if err := CheckEligibility(user, promo, ownerMunicipality, time.Now()); err != nil {
			return err
		}

		interactionTx := s.interactions.WithTrx(tx)
		promoTx := s.promotions.WithTrx(tx)

		if _, err := interactionTx.FindOne(ctx, &Interaction{
			UserID:      userID,
			PromotionID: promotionID,
			Type:        interactionType,
		}); err == nil {
			result.Duplicate = true
			return nil
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		if err := interactionTx.Create(ctx, &Interaction{
			ID:          s.node.Generate().String(),
			UserID:      userID,
			PromotionID: promotionID,
			Type:        interactionType,
			Channel:     channel,
			CreatedAt:   time.Now(),
		}); err != nil {
			return err
		}

		counter := "likes"
		if interactionType == InteractionShare {
			counter = "shares"
		}
		if err := promoTx.Update(ctx, promotionID, map[string]any{
			counter: gorm.Expr(counter + " + 1"),
		}); err != nil {
			return err
		}

		var pairCount int64
		if err := tx.WithContext(ctx).Model(&Interaction{}).
			Where("user_id = ? AND promotion_id = ? AND type IN ?",
				userID, promotionID, []string{InteractionLike, InteractionShare}).
			Count(&pairCount).Error; err != nil {
			return err
		}

		if pairCount < 2 {
			return nil
		}

		outcome, err := s.settleView(ctx, tx, promo, userID, channel)
		if err != nil {
			return err
		}

		result.ViewSettled = outcome.Settled
		result.RewardAmount = outcome.Reward
		result.PromotionFinished = outcome.Finished
		result.BudgetExhausted = outcome.Exhausted
		return nil
	})
	if err != nil {
		return nil, err
	}

	if result.PromotionFinished {
		s.notifyFinished(promotionID)
	}

	return result, nil
}

// RecordDirectView settles a playback-completion view, skipping the
// like+share gate. Returns BudgetExhausted as an error after the
// termination has committed.
func (s *Service) RecordDirectView(ctx context.Context, userID, promotionID string) (*InteractionResult, error) {
	channel := middleware.GetChannel(ctx)
	result := &InteractionResult{Type: InteractionView}

	err := s.inTx(func(tx *gorm.DB) error {
		*result = InteractionResult{Type: InteractionView}

		promo, user, ownerMunicipality, err := s.loadForInteraction(ctx, tx, userID, promotionID)
		if err != nil {
			return err
		}

		if err := CheckEligibility(user, promo, ownerMunicipality, time.Now()); err != nil {
			return err
		}

		outcome, err := s.settleView(ctx, tx, promo, userID, channel)
		if err != nil {
			return err
		}

		result.Duplicate = outcome.Duplicate
		result.ViewSettled = outcome.Settled
		result.RewardAmount = outcome.Reward
		result.PromotionFinished = outcome.Finished
		result.BudgetExhausted = outcome.Exhausted
		return nil
	})
	if err != nil {
		return nil, err
	}

	if result.PromotionFinished {
		s.notifyFinished(promotionID)
	}

	if result.BudgetExhausted {
		return result, errutil.UnprocessableEntity("promotion budget exhausted", nil)
	}

	return result, nil
}

// loadForInteraction reads the promotion under FOR UPDATE plus the user
// and the owning client's municipality. The promotion lock serializes
// all interaction recording for that promotion.
func (s *Service) loadForInteraction(ctx context.Context, tx *gorm.DB, userID, promotionID string) (*Promotion, *account.User, string, error) {
	promoTx := s.promotions.WithTrx(tx)
	userTx := s.users.WithTrx(tx)
	clientTx := s.clients.WithTrx(tx)

	promo, err := promoTx.FindOne(ctx, &Promotion{ID: promotionID}, option.WithLockingUpdate())
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, "", errutil.NotFound("promotion not found", nil)
		}
		return nil, nil, "", err
	}

	if promo.Status != StatusActive {
		return nil, nil, "", errutil.Conflict("promotion is not active", nil)
	}

	user, err := userTx.FindOne(ctx, &account.User{ID: userID})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, "", errutil.NotFound("user not found", nil)
		}
		return nil, nil, "", err
	}

	owner, err := clientTx.FindOne(ctx, &account.Client{ID: promo.ClientID})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, "", errutil.NotFound("promotion owner not found", nil)
		}
		return nil, nil, "", err
	}

	return promo, user, owner.Municipality, nil
}

type promotionFinishedPayload struct {
	PromotionID string `json:"promotion_id"`
}

// notifyFinished hands the finished promotion to the notification worker.
// Fire and forget: enqueue failures are logged, never surfaced.
func (s *Service) notifyFinished(promotionID string) {
	if s.enqueuer == nil {
		return
	}

	payload, err := json.Marshal(promotionFinishedPayload{PromotionID: promotionID})
	if err != nil {
		return
	}

	if _, err := s.enqueuer.Enqueue(asynq.NewTask(taskname.PromotionFinished, payload), asynq.Queue("critical")); err != nil {
		zap.L().Error("failed to enqueue promotion finished task",
			zap.String("promotion_id", promotionID), zap.Error(err))
	}
}
