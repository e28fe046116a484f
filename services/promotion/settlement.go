package promotion

import (
	"context"
	"errors"
	"time"

	"pubcash-backend/pkg/db/option"
	"pubcash-backend/services/account"

	"gorm.io/gorm"
)

// settleOutcome reports what a settlement attempt did. Termination is a
// committed state transition, never a rollback, so it travels in the
// outcome rather than as an error.
type settleOutcome struct {
	Settled   bool
	Duplicate bool
	Exhausted bool
	Finished  bool
	Reward    int64
}

// settleView converts a qualifying view into a payout inside the
// caller's transaction. promo must be the row read under FOR UPDATE in
// that same transaction; the lock linearizes concurrent settlements so
// at most one observes the exhausting condition.
func (s *Service) settleView(ctx context.Context, tx *gorm.DB, promo *Promotion, userID, channel string) (*settleOutcome, error) {
	interactionTx := s.interactions.WithTrx(tx)
	promoTx := s.promotions.WithTrx(tx)
	userTx := s.users.WithTrx(tx)
	rewardTx := s.rewards.WithTrx(tx)

	if _, err := interactionTx.FindOne(ctx, &Interaction{
		UserID:      userID,
		PromotionID: promo.ID,
		Type:        InteractionView,
	}); err == nil {
		return &settleOutcome{Duplicate: true}, nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	now := time.Now()
	reward := promo.RewardPerView

	if reward <= 0 || promo.BudgetRemaining < reward {
		if err := promoTx.Update(ctx, promo.ID, map[string]any{
			"status":      StatusFinished,
			"finished_at": now,
		}); err != nil {
			return nil, err
		}
		return &settleOutcome{Exhausted: true, Finished: true}, nil
	}

	if err := interactionTx.Create(ctx, &Interaction{
		ID:          s.node.Generate().String(),
		UserID:      userID,
		PromotionID: promo.ID,
		Type:        InteractionView,
		Channel:     channel,
		CreatedAt:   now,
	}); err != nil {
		return nil, err
	}

	newViews := promo.Views + 1
	newRemaining := promo.BudgetRemaining - reward
	finishing := newViews >= promo.ViewQuota || newRemaining < reward

	updates := map[string]any{
		"views":            gorm.Expr("views + 1"),
		"budget_remaining": gorm.Expr("budget_remaining - ?", reward),
	}
	if finishing {
		updates["status"] = StatusFinished
		updates["finished_at"] = now
	}
	if err := promoTx.Update(ctx, promo.ID, updates); err != nil {
		return nil, err
	}

	if _, err := userTx.FindOne(ctx, &account.User{ID: userID}, option.WithLockingUpdate()); err != nil {
		return nil, err
	}
	if err := userTx.Update(ctx, userID, map[string]any{
		"earned_balance": gorm.Expr("earned_balance + ?", reward),
		"updated_at":     now,
	}); err != nil {
		return nil, err
	}

	if err := rewardTx.Create(ctx, &RewardEntry{
		ID:          s.node.Generate().String(),
		UserID:      userID,
		PromotionID: promo.ID,
		Amount:      reward,
		Kind:        InteractionView,
		CreatedAt:   now,
	}); err != nil {
		return nil, err
	}

	return &settleOutcome{Settled: true, Finished: finishing, Reward: reward}, nil
}
