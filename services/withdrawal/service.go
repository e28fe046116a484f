package withdrawal

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"pubcash-backend/pkg/db/option"
	"pubcash-backend/pkg/errutil"
	"pubcash-backend/pkg/repository"
	"pubcash-backend/pkg/sequence"
	"pubcash-backend/pkg/task"
	"pubcash-backend/pkg/taskname"
	"pubcash-backend/services/account"

	"github.com/bwmarrin/snowflake"
	"github.com/hibiken/asynq"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Service struct {
	db        *gorm.DB
	node      *snowflake.Node
	sequences sequence.Generator
	enqueuer  task.Enqueuer

	withdrawals repository.Repository[Withdrawal]
	users       repository.Repository[account.User]
}

type ServiceParams struct {
	fx.In
	DB        *gorm.DB
	Node      *snowflake.Node
	Sequences sequence.Generator `optional:"true"`
	Enqueuer  task.Enqueuer      `optional:"true"`
}

func NewService(p ServiceParams) *Service {
	return &Service{
		db:        p.DB,
		node:      p.Node,
		sequences: p.Sequences,
		enqueuer:  p.Enqueuer,

		withdrawals: repository.ProvideStore[Withdrawal](p.DB),
		users:       repository.ProvideStore[account.User](p.DB),
	}
}

// Request reserves amount from the user's earned balance and files a
// pending withdrawal. Balance check and debit happen under a row lock in
// one transaction, so a second concurrent request cannot spend the same
// funds.
func (s *Service) Request(ctx context.Context, userID string, amount int64, operator, phone string) (*Withdrawal, error) {
	if amount <= 0 {
		return nil, errutil.ValidationFailed("amount must be > 0", nil)
	}
	if operator == "" || phone == "" {
		return nil, errutil.ValidationFailed("payout operator and phone required", nil)
	}

	var w *Withdrawal

	err := s.db.Transaction(func(tx *gorm.DB) error {
		userTx := s.users.WithTrx(tx)
		withdrawalTx := s.withdrawals.WithTrx(tx)

		user, err := userTx.FindOne(ctx, &account.User{ID: userID}, option.WithLockingUpdate())
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return errutil.NotFound("user not found", nil)
			}
			return err
		}

		if user.EarnedBalance < amount {
			return errutil.UnprocessableEntity("insufficient balance", nil)
		}

		now := time.Now()
		if err := userTx.Update(ctx, user.ID, map[string]any{
			"earned_balance": gorm.Expr("earned_balance - ?", amount),
			"updated_at":     now,
		}); err != nil {
			return err
		}

		code := s.node.Generate().String()
		if s.sequences != nil {
			if generated, err := s.sequences.NextWithdrawalCode(ctx, userID); err == nil {
				code = generated
			}
		}

		w = &Withdrawal{
			ID:          s.node.Generate().String(),
			Code:        code,
			UserID:      userID,
			Amount:      amount,
			Operator:    operator,
			Phone:       phone,
			Status:      StatusPending,
			RequestedAt: now,
		}
		return withdrawalTx.Create(ctx, w)
	})
	if err != nil {
		return nil, err
	}

	zap.L().Info("withdrawal requested",
		zap.String("withdrawal_id", w.ID),
		zap.String("user_id", userID),
		zap.Int64("amount", amount),
	)

	return w, nil
}

// Process applies the admin decision. Rejection restores the reserved
// amount; approval has no further ledger effect. Exactly one terminal
// transition from pending, enforced by the locked status-filtered read.
func (s *Service) Process(ctx context.Context, adminID, withdrawalID, decision string) (*Withdrawal, error) {
	if decision != StatusApproved && decision != StatusRejected {
		return nil, errutil.ValidationFailed("decision must be approved or rejected", nil)
	}

	var processed *Withdrawal

	err := s.db.Transaction(func(tx *gorm.DB) error {
		userTx := s.users.WithTrx(tx)
		withdrawalTx := s.withdrawals.WithTrx(tx)

		w, err := withdrawalTx.FindOne(ctx, &Withdrawal{ID: withdrawalID}, option.WithLockingUpdate())
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return errutil.NotFound("withdrawal not found", nil)
			}
			return err
		}

		if w.Status != StatusPending {
			return errutil.Conflict("withdrawal already processed", nil)
		}

		now := time.Now()

		if decision == StatusRejected {
			if _, err := userTx.FindOne(ctx, &account.User{ID: w.UserID}, option.WithLockingUpdate()); err != nil {
				return err
			}
			if err := userTx.Update(ctx, w.UserID, map[string]any{
				"earned_balance": gorm.Expr("earned_balance + ?", w.Amount),
				"updated_at":     now,
			}); err != nil {
				return err
			}
		}

		if err := withdrawalTx.Update(ctx, w.ID, map[string]any{
			"status":       decision,
			"processed_at": now,
			"admin_id":     adminID,
		}); err != nil {
			return err
		}

		w.Status = decision
		w.ProcessedAt = &now
		w.AdminID = adminID
		processed = w
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notifyReviewed(processed)

	return processed, nil
}

func (s *Service) ListForUser(ctx context.Context, userID string) ([]*Withdrawal, error) {
	return s.withdrawals.Find(ctx, &Withdrawal{UserID: userID}, option.WithSortBy(option.QuerySortBy{
		SortBy:  "requested_at",
		OrderBy: "DESC",
		Allow:   map[string]bool{"requested_at": true},
	}))
}

func (s *Service) ListPending(ctx context.Context) ([]*Withdrawal, error) {
	return s.withdrawals.Find(ctx, &Withdrawal{Status: StatusPending}, option.WithSortBy(option.QuerySortBy{
		SortBy: "requested_at",
		Allow:  map[string]bool{"requested_at": true},
	}))
}

type reviewedPayload struct {
	WithdrawalID string `json:"withdrawal_id"`
	UserID       string `json:"user_id"`
	Status       string `json:"status"`
	Amount       int64  `json:"amount"`
}

// notifyReviewed fires the post-commit push notification. Best effort.
func (s *Service) notifyReviewed(w *Withdrawal) {
	if s.enqueuer == nil {
		return
	}

	payload, err := json.Marshal(reviewedPayload{
		WithdrawalID: w.ID,
		UserID:       w.UserID,
		Status:       w.Status,
		Amount:       w.Amount,
	})
	if err != nil {
		return
	}

	if _, err := s.enqueuer.Enqueue(asynq.NewTask(taskname.WithdrawalReviewed, payload)); err != nil {
		zap.L().Error("failed to enqueue withdrawal reviewed task",
			zap.String("withdrawal_id", w.ID), zap.Error(err))
	}
}
