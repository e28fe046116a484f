package promotion

import (
	"context"
	"errors"
	"testing"
	"time"

	"pubcash-backend/pkg/config"
	"pubcash-backend/pkg/db/pagination"
	"pubcash-backend/pkg/errutil"
	"pubcash-backend/services/account"
	"pubcash-backend/services/pack"
	"pubcash-backend/services/testutil"
	"pubcash-backend/services/wallet"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

type testEnv struct {
	db     *gorm.DB
	node   *snowflake.Node
	svc    *Service
	wallet *wallet.Service
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db := testutil.NewTestDB(t,
		&account.Client{},
		&account.User{},
		&pack.Pack{},
		&wallet.Wallet{},
		&wallet.Entry{},
		&Promotion{},
		&Interaction{},
		&RewardEntry{},
		&Comment{},
	)

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	cfg := &config.Config{}
	cfg.Platform.CommissionRate = 0.15

	walletSvc := wallet.NewService(wallet.ServiceParams{DB: db, Node: node})
	svc := NewService(ServiceParams{
		DB:     db,
		Config: cfg,
		Node:   node,
		Wallet: walletSvc,
	})

	return &testEnv{db: db, node: node, svc: svc, wallet: walletSvc}
}

func (e *testEnv) seedClient(t *testing.T, balance int64, municipality string) *account.Client {
	t.Helper()
	c := &account.Client{
		ID:              e.node.Generate().String(),
		Name:            "client",
		Email:           e.node.Generate().String() + "@example.com",
		Municipality:    municipality,
		RechargeBalance: balance,
		CreatedAt:       time.Now(),
		UpdatedAt:       time.Now(),
	}
	require.NoError(t, e.db.Create(c).Error)
	return c
}

func (e *testEnv) seedUser(t *testing.T, birth *time.Time, municipality string) *account.User {
	t.Helper()
	u := &account.User{
		ID:           e.node.Generate().String(),
		Name:         "user",
		Email:        e.node.Generate().String() + "@example.com",
		BirthDate:    birth,
		Municipality: municipality,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}
	require.NoError(t, e.db.Create(u).Error)
	return u
}

func (e *testEnv) seedPack(t *testing.T, minSec, maxSec int, reward int64) *pack.Pack {
	t.Helper()
	p := &pack.Pack{
		ID:             e.node.Generate().String(),
		Name:           "pack",
		MinDurationSec: minSec,
		MaxDurationSec: maxSec,
		RewardPerView:  reward,
		CreatedAt:      time.Now(),
	}
	require.NoError(t, e.db.Create(p).Error)
	return p
}

func birthDate(age int) *time.Time {
	d := time.Now().AddDate(-age, 0, -1)
	return &d
}

func requireStatus(t *testing.T, err error, want errutil.CoreStatus) {
	t.Helper()
	require.Error(t, err)
	var be errutil.BaseError
	require.True(t, errors.As(err, &be), "expected BaseError, got %T: %v", err, err)
	require.Equal(t, want, be.Status())
}

func TestCreate_FundsPromotion(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.seedPack(t, 0, 60, 50)
	client := env.seedClient(t, 2000, "Cocody")

	res, err := env.svc.Create(ctx, client.ID, CreateInput{
		Title:       "launch video",
		DurationSec: 45,
		Budget:      1000,
	})
	require.NoError(t, err)

	promo := res.Promotion
	require.Equal(t, int64(150), promo.Commission)
	require.Equal(t, int64(850), promo.BudgetRemaining)
	require.Equal(t, int64(17), promo.ViewQuota)
	require.Equal(t, int64(50), promo.RewardPerView)
	require.Equal(t, StatusActive, promo.Status)
	require.Equal(t, int64(1000), res.NewBalance)

	var freshClient account.Client
	require.NoError(t, env.db.First(&freshClient, "id = ?", client.ID).Error)
	require.Equal(t, int64(1000), freshClient.RechargeBalance)

	w, err := env.wallet.Get(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(150), w.Balance)

	var entries []wallet.Entry
	require.NoError(t, env.db.Find(&entries, "reference_id = ?", promo.ID).Error)
	require.Len(t, entries, 1)
	require.Equal(t, int64(150), entries[0].Amount)
}

func TestCreate_InsufficientFunds(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.seedPack(t, 0, 60, 50)
	client := env.seedClient(t, 500, "Cocody")

	_, err := env.svc.Create(ctx, client.ID, CreateInput{
		Title:       "too expensive",
		DurationSec: 45,
		Budget:      1000,
	})
	requireStatus(t, err, errutil.StatusUnprocessableEntity)

	var freshClient account.Client
	require.NoError(t, env.db.First(&freshClient, "id = ?", client.ID).Error)
	require.Equal(t, int64(500), freshClient.RechargeBalance)

	var count int64
	require.NoError(t, env.db.Model(&Promotion{}).Count(&count).Error)
	require.Zero(t, count)

	w, err := env.wallet.Get(ctx)
	require.NoError(t, err)
	require.Zero(t, w.Balance)
}

func TestCreate_NoPackAvailable(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.seedPack(t, 0, 30, 25)
	client := env.seedClient(t, 2000, "Cocody")

	_, err := env.svc.Create(ctx, client.ID, CreateInput{
		Title:       "long video",
		DurationSec: 120,
		Budget:      1000,
	})
	requireStatus(t, err, errutil.StatusUnprocessableEntity)

	var freshClient account.Client
	require.NoError(t, env.db.First(&freshClient, "id = ?", client.ID).Error)
	require.Equal(t, int64(2000), freshClient.RechargeBalance)
}

func TestCreate_ZeroRewardPack(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.seedPack(t, 0, 60, 0)
	client := env.seedClient(t, 2000, "Cocody")

	res, err := env.svc.Create(ctx, client.ID, CreateInput{
		Title:       "degenerate",
		DurationSec: 45,
		Budget:      1000,
	})
	require.NoError(t, err)
	require.Zero(t, res.Promotion.ViewQuota)
}

func TestCreate_Validation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.svc.Create(ctx, "whoever", CreateInput{Title: "x", DurationSec: 10, Budget: 0})
	requireStatus(t, err, errutil.StatusValidationFailed)

	_, err = env.svc.Create(ctx, "whoever", CreateInput{DurationSec: 10, Budget: 100})
	requireStatus(t, err, errutil.StatusValidationFailed)

	_, err = env.svc.Create(ctx, "whoever", CreateInput{Title: "x", DurationSec: 10, Budget: 100, AgeBracket: "toddlers"})
	requireStatus(t, err, errutil.StatusValidationFailed)
}

func TestStats_SumsCounters(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.seedPack(t, 0, 60, 50)
	client := env.seedClient(t, 5000, "Cocody")

	for i := 0; i < 2; i++ {
		_, err := env.svc.Create(ctx, client.ID, CreateInput{
			Title:       "video",
			DurationSec: 45,
			Budget:      1000,
		})
		require.NoError(t, err)
	}

	stats, err := env.svc.Stats(ctx, client.ID)
	require.NoError(t, err)
	require.Equal(t, int64(2), stats.Promotions)
	require.Equal(t, int64(2000), stats.BudgetSpent)
	require.Zero(t, stats.TotalViews)
}

func TestListForClient_CursorPagination(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.seedPack(t, 0, 60, 50)
	client := env.seedClient(t, 10000, "Cocody")

	for i := 0; i < 5; i++ {
		res, err := env.svc.Create(ctx, client.ID, CreateInput{
			Title:       "video",
			DurationSec: 45,
			Budget:      1000,
		})
		require.NoError(t, err)

		// spread creation times so ordering is deterministic
		require.NoError(t, env.db.Model(&Promotion{}).
			Where("id = ?", res.Promotion.ID).
			Update("created_at", time.Now().Add(-time.Duration(5-i)*time.Minute)).Error)
	}

	seen := map[string]bool{}
	cursor := ""
	pages := 0
	for {
		promos, info, err := env.svc.ListForClient(ctx, client.ID, pagination.Pagination{Cursor: cursor, Limit: 2})
		require.NoError(t, err)
		require.LessOrEqual(t, len(promos), 2)
		for _, p := range promos {
			require.False(t, seen[p.ID], "promotion repeated across pages")
			seen[p.ID] = true
		}
		pages++
		if !info.HasMore {
			break
		}
		cursor = info.NextCursor
	}

	require.Equal(t, 3, pages)
	require.Len(t, seen, 5)

	_, _, err := env.svc.ListForClient(ctx, client.ID, pagination.Pagination{Cursor: "not-base64!", Limit: 2})
	requireStatus(t, err, errutil.StatusBadRequest)
}

func TestComments_RoundTrip(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.seedPack(t, 0, 60, 50)
	client := env.seedClient(t, 2000, "Cocody")
	user := env.seedUser(t, birthDate(20), "Cocody")

	res, err := env.svc.Create(ctx, client.ID, CreateInput{
		Title:       "video",
		DurationSec: 45,
		Budget:      1000,
	})
	require.NoError(t, err)

	_, err = env.svc.AddComment(ctx, user.ID, res.Promotion.ID, "  nice one  ")
	require.NoError(t, err)

	comments, err := env.svc.ListComments(ctx, res.Promotion.ID)
	require.NoError(t, err)
	require.Len(t, comments, 1)
	require.Equal(t, "nice one", comments[0].Body)

	_, err = env.svc.AddComment(ctx, user.ID, res.Promotion.ID, "   ")
	requireStatus(t, err, errutil.StatusValidationFailed)
}
