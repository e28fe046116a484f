package admin

import (
	"context"
	"errors"

	"pubcash-backend/pkg/db/option"
	"pubcash-backend/pkg/errutil"
	"pubcash-backend/pkg/repository"
	"pubcash-backend/services/account"
	"pubcash-backend/services/promotion"
	"pubcash-backend/services/wallet"
	"pubcash-backend/services/withdrawal"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

type Service struct {
	db     *gorm.DB
	wallet *wallet.Service

	clients     repository.Repository[account.Client]
	users       repository.Repository[account.User]
	promotions  repository.Repository[promotion.Promotion]
	withdrawals repository.Repository[withdrawal.Withdrawal]
}

type ServiceParams struct {
	fx.In
	DB     *gorm.DB
	Wallet *wallet.Service
}

func NewService(p ServiceParams) *Service {
	return &Service{
		db:     p.DB,
		wallet: p.Wallet,

		clients:     repository.ProvideStore[account.Client](p.DB),
		users:       repository.ProvideStore[account.User](p.DB),
		promotions:  repository.ProvideStore[promotion.Promotion](p.DB),
		withdrawals: repository.ProvideStore[withdrawal.Withdrawal](p.DB),
	}
}

type MunicipalityActivity struct {
	Municipality string `json:"municipality"`
	Users        int64  `json:"users"`
}

type Dashboard struct {
	WalletBalance      int64                  `json:"wallet_balance"`
	Clients            int64                  `json:"clients"`
	Users              int64                  `json:"users"`
	ActivePromotions   int64                  `json:"active_promotions"`
	PendingWithdrawals int64                  `json:"pending_withdrawals"`
	ByMunicipality     []MunicipalityActivity `json:"by_municipality"`
}

// Dashboard aggregates the admin overview with parallel queries.
func (s *Service) Dashboard(ctx context.Context) (*Dashboard, error) {
	var d Dashboard

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		w, err := s.wallet.Get(ctx)
		if err != nil {
			return err
		}
		d.WalletBalance = w.Balance
		return nil
	})
	g.Go(func() error {
		n, err := s.clients.Count(ctx, &account.Client{})
		d.Clients = n
		return err
	})
	g.Go(func() error {
		n, err := s.users.Count(ctx, &account.User{})
		d.Users = n
		return err
	})
	g.Go(func() error {
		n, err := s.promotions.Count(ctx, &promotion.Promotion{Status: promotion.StatusActive})
		d.ActivePromotions = n
		return err
	})
	g.Go(func() error {
		n, err := s.withdrawals.Count(ctx, &withdrawal.Withdrawal{Status: withdrawal.StatusPending})
		d.PendingWithdrawals = n
		return err
	})
	g.Go(func() error {
		return s.db.WithContext(ctx).Model(&account.User{}).
			Select("municipality, COUNT(*) as users").
			Where("municipality <> ''").
			Group("municipality").
			Order("users DESC").
			Scan(&d.ByMunicipality).Error
	})

	if err := g.Wait(); err != nil {
		zap.L().Error("failed to build admin dashboard", zap.Error(err))
		return nil, err
	}

	return &d, nil
}

func (s *Service) ListClients(ctx context.Context) ([]*account.Client, error) {
	return s.clients.Find(ctx, &account.Client{}, option.WithSortBy(option.QuerySortBy{
		SortBy:  "created_at",
		OrderBy: "DESC",
		Allow:   map[string]bool{"created_at": true},
	}))
}

// DeleteClient removes a client account. Promotions are kept for
// historical reporting.
func (s *Service) DeleteClient(ctx context.Context, clientID string) error {
	if _, err := s.clients.FindOne(ctx, &account.Client{ID: clientID}); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return errutil.NotFound("client not found", nil)
		}
		return err
	}

	return s.db.WithContext(ctx).Delete(&account.Client{ID: clientID}).Error
}

func (s *Service) Wallet(ctx context.Context) (*wallet.Wallet, []*wallet.Entry, error) {
	w, err := s.wallet.Get(ctx)
	if err != nil {
		return nil, nil, err
	}

	entries, err := s.wallet.Entries(ctx, 50)
	if err != nil {
		return nil, nil, err
	}

	return w, entries, nil
}
