package wallet

import (
	"context"
	"fmt"
	"testing"

	"pubcash-backend/services/testutil"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func newTestService(t *testing.T) (*gorm.DB, *Service) {
	t.Helper()

	db := testutil.NewTestDB(t, &Wallet{}, &Entry{})

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	return db, NewService(ServiceParams{DB: db, Node: node})
}

func TestEnsureTx_CreatesOnce(t *testing.T) {
	db, svc := newTestService(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		err := db.Transaction(func(tx *gorm.DB) error {
			w, err := svc.EnsureTx(ctx, tx)
			require.NoError(t, err)
			require.Equal(t, PlatformWalletID, w.ID)
			return nil
		})
		require.NoError(t, err)
	}

	var count int64
	require.NoError(t, db.Model(&Wallet{}).Count(&count).Error)
	require.Equal(t, int64(1), count)
}

func TestCreditTx_AccumulatesWithAuditTrail(t *testing.T) {
	db, svc := newTestService(t)
	ctx := context.Background()

	amounts := []int64{150, 75, 300}
	for i, amount := range amounts {
		err := db.Transaction(func(tx *gorm.DB) error {
			if _, err := svc.EnsureTx(ctx, tx); err != nil {
				return err
			}
			return svc.CreditTx(ctx, tx, amount, fmt.Sprintf("promo-%d", i), "commission")
		})
		require.NoError(t, err)
	}

	w, err := svc.Get(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(525), w.Balance)

	entries, err := svc.Entries(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 3)

	var sum int64
	for _, e := range entries {
		sum += e.Amount
	}
	require.Equal(t, w.Balance, sum)
}

func TestCreditTx_RollbackLeavesNothing(t *testing.T) {
	db, svc := newTestService(t)
	ctx := context.Background()

	sentinel := fmt.Errorf("boom")
	err := db.Transaction(func(tx *gorm.DB) error {
		if _, err := svc.EnsureTx(ctx, tx); err != nil {
			return err
		}
		if err := svc.CreditTx(ctx, tx, 100, "promo-x", "commission"); err != nil {
			return err
		}
		return sentinel
	})
	require.ErrorIs(t, err, sentinel)

	w, err := svc.Get(ctx)
	require.NoError(t, err)
	require.Zero(t, w.Balance)

	var count int64
	require.NoError(t, db.Model(&Entry{}).Count(&count).Error)
	require.Zero(t, count)
}

func TestGet_ZeroValuedBeforeFirstCredit(t *testing.T) {
	_, svc := newTestService(t)

	w, err := svc.Get(context.Background())
	require.NoError(t, err)
	require.Equal(t, PlatformWalletID, w.ID)
	require.Zero(t, w.Balance)
}

func TestEntries_LimitApplies(t *testing.T) {
	db, svc := newTestService(t)
	ctx := context.Background()

	err := db.Transaction(func(tx *gorm.DB) error {
		if _, err := svc.EnsureTx(ctx, tx); err != nil {
			return err
		}
		for i := 0; i < 5; i++ {
			if err := svc.CreditTx(ctx, tx, 10, fmt.Sprintf("ref-%d", i), "commission"); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)

	entries, err := svc.Entries(ctx, 2)
	require.NoError(t, err)
	require.Len(t, entries, 2)
}
