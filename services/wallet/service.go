package wallet

import (
	"context"
	"errors"
	"time"

	"pubcash-backend/pkg/db/option"
	"pubcash-backend/pkg/repository"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

type Service struct {
	db   *gorm.DB
	node *snowflake.Node

	wallets repository.Repository[Wallet]
	entries repository.Repository[Entry]
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

		wallets: repository.ProvideStore[Wallet](p.DB),
		entries: repository.ProvideStore[Entry](p.DB),
	}
}

// EnsureTx returns the platform wallet row locked for update, creating it
// if absent. Must run inside the caller's transaction.
func (s *Service) EnsureTx(ctx context.Context, tx *gorm.DB) (*Wallet, error) {
	walletTx := s.wallets.WithTrx(tx)

	w, err := walletTx.FindOne(ctx, &Wallet{ID: PlatformWalletID}, option.WithLockingUpdate())
	if err == nil {
		return w, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	now := time.Now()
	w = &Wallet{ID: PlatformWalletID, CreatedAt: now, UpdatedAt: now}
	if err := walletTx.Create(ctx, w); err != nil {
		return nil, err
	}

	return walletTx.FindOne(ctx, &Wallet{ID: PlatformWalletID}, option.WithLockingUpdate())
}

// CreditTx credits the locked platform wallet and appends the audit entry.
// Must run inside the caller's transaction, after EnsureTx.
func (s *Service) CreditTx(ctx context.Context, tx *gorm.DB, amount int64, referenceID, description string) error {
	walletTx := s.wallets.WithTrx(tx)
	entryTx := s.entries.WithTrx(tx)

	if err := walletTx.Update(ctx, PlatformWalletID, map[string]any{
		"balance":    gorm.Expr("balance + ?", amount),
		"updated_at": time.Now(),
	}); err != nil {
		return err
	}

	return entryTx.Create(ctx, &Entry{
		ID:          s.node.Generate().String(),
		WalletID:    PlatformWalletID,
		Amount:      amount,
		ReferenceID: referenceID,
		Description: description,
		CreatedAt:   time.Now(),
	})
}

// Get returns the platform wallet, zero-valued when it has never been
// credited.
func (s *Service) Get(ctx context.Context) (*Wallet, error) {
	w, err := s.wallets.FindOne(ctx, &Wallet{ID: PlatformWalletID})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &Wallet{ID: PlatformWalletID}, nil
		}
		return nil, err
	}
	return w, nil
}

func (s *Service) Entries(ctx context.Context, limit int) ([]*Entry, error) {
	return s.entries.Find(ctx, &Entry{WalletID: PlatformWalletID},
		option.WithSortBy(option.QuerySortBy{
			SortBy:  "created_at",
			OrderBy: "DESC",
			Allow:   map[string]bool{"created_at": true},
		}),
		option.WithLimit(limit),
	)
}
