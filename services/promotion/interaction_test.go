package promotion

import (
	"context"
	"fmt"
	"testing"

	"pubcash-backend/pkg/errutil"
	"pubcash-backend/services/account"

	"github.com/stretchr/testify/require"
)

func (e *testEnv) fundPromotion(t *testing.T, budget int64, reward int64) (*account.Client, *Promotion) {
	t.Helper()
	ctx := context.Background()

	e.seedPack(t, 0, 60, reward)
	client := e.seedClient(t, budget*10, "Cocody")

	res, err := e.svc.Create(ctx, client.ID, CreateInput{
		Title:       "promoted video",
		DurationSec: 45,
		Budget:      budget,
	})
	require.NoError(t, err)

	return client, res.Promotion
}

func (e *testEnv) reload(t *testing.T, promotionID string) *Promotion {
	t.Helper()
	var p Promotion
	require.NoError(t, e.db.First(&p, "id = ?", promotionID).Error)
	return &p
}

func (e *testEnv) reloadUser(t *testing.T, userID string) *account.User {
	t.Helper()
	var u account.User
	require.NoError(t, e.db.First(&u, "id = ?", userID).Error)
	return &u
}

func TestRecordInteraction_UnderageRejected(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.seedPack(t, 0, 60, 50)
	client := env.seedClient(t, 10000, "Cocody")

	res, err := env.svc.Create(ctx, client.ID, CreateInput{
		Title:       "teens only",
		DurationSec: 45,
		Budget:      1000,
		AgeBracket:  AgeBracket12To17,
	})
	require.NoError(t, err)

	user := env.seedUser(t, birthDate(10), "Cocody")

	_, err = env.svc.RecordInteraction(ctx, user.ID, res.Promotion.ID, InteractionLike)
	requireStatus(t, err, errutil.StatusForbidden)

	var count int64
	require.NoError(t, env.db.Model(&Interaction{}).Count(&count).Error)
	require.Zero(t, count)
	require.Zero(t, env.reload(t, res.Promotion.ID).Likes)
}

func TestRecordInteraction_DoubleLikeIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, promo := env.fundPromotion(t, 1000, 50)
	user := env.seedUser(t, birthDate(20), "Cocody")

	first, err := env.svc.RecordInteraction(ctx, user.ID, promo.ID, InteractionLike)
	require.NoError(t, err)
	require.False(t, first.Duplicate)

	second, err := env.svc.RecordInteraction(ctx, user.ID, promo.ID, InteractionLike)
	require.NoError(t, err)
	require.True(t, second.Duplicate)

	var count int64
	require.NoError(t, env.db.Model(&Interaction{}).
		Where("user_id = ? AND promotion_id = ? AND type = ?", user.ID, promo.ID, InteractionLike).
		Count(&count).Error)
	require.Equal(t, int64(1), count)
	require.Equal(t, int64(1), env.reload(t, promo.ID).Likes)
}

func TestRecordInteraction_LikeShareTriggersPaidView(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, promo := env.fundPromotion(t, 1000, 50)
	user := env.seedUser(t, birthDate(20), "Cocody")

	res, err := env.svc.RecordInteraction(ctx, user.ID, promo.ID, InteractionLike)
	require.NoError(t, err)
	require.False(t, res.ViewSettled)

	res, err = env.svc.RecordInteraction(ctx, user.ID, promo.ID, InteractionShare)
	require.NoError(t, err)
	require.True(t, res.ViewSettled)
	require.Equal(t, int64(50), res.RewardAmount)

	fresh := env.reload(t, promo.ID)
	require.Equal(t, int64(1), fresh.Views)
	require.Equal(t, int64(800), fresh.BudgetRemaining)
	require.Equal(t, StatusActive, fresh.Status)

	require.Equal(t, int64(50), env.reloadUser(t, user.ID).EarnedBalance)

	var rewards []RewardEntry
	require.NoError(t, env.db.Find(&rewards, "user_id = ?", user.ID).Error)
	require.Len(t, rewards, 1)
	require.Equal(t, int64(50), rewards[0].Amount)
}

func TestRecordInteraction_ExhaustedBudgetTerminatesWithoutPayout(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	// budget 50, commission 8, net 42 < reward 50: quota 0
	_, promo := env.fundPromotion(t, 50, 50)
	require.Zero(t, promo.ViewQuota)

	user := env.seedUser(t, birthDate(20), "Cocody")

	_, err := env.svc.RecordInteraction(ctx, user.ID, promo.ID, InteractionLike)
	require.NoError(t, err)

	res, err := env.svc.RecordInteraction(ctx, user.ID, promo.ID, InteractionShare)
	require.NoError(t, err)
	require.True(t, res.BudgetExhausted)
	require.True(t, res.PromotionFinished)
	require.False(t, res.ViewSettled)

	fresh := env.reload(t, promo.ID)
	require.Equal(t, StatusFinished, fresh.Status)
	require.NotNil(t, fresh.FinishedAt)
	require.Zero(t, fresh.Views)

	var viewCount int64
	require.NoError(t, env.db.Model(&Interaction{}).
		Where("type = ?", InteractionView).Count(&viewCount).Error)
	require.Zero(t, viewCount)
	require.Zero(t, env.reloadUser(t, user.ID).EarnedBalance)
}

func TestRecordInteraction_FinishedPromotionConflicts(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, promo := env.fundPromotion(t, 50, 50)
	user := env.seedUser(t, birthDate(20), "Cocody")

	_, err := env.svc.RecordInteraction(ctx, user.ID, promo.ID, InteractionLike)
	require.NoError(t, err)
	_, err = env.svc.RecordInteraction(ctx, user.ID, promo.ID, InteractionShare)
	require.NoError(t, err)

	other := env.seedUser(t, birthDate(25), "Cocody")
	_, err = env.svc.RecordInteraction(ctx, other.ID, promo.ID, InteractionLike)
	requireStatus(t, err, errutil.StatusConflict)
}

func TestRecordDirectView_PaysOncePerUser(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, promo := env.fundPromotion(t, 1000, 50)
	user := env.seedUser(t, birthDate(20), "Cocody")

	first, err := env.svc.RecordDirectView(ctx, user.ID, promo.ID)
	require.NoError(t, err)
	require.True(t, first.ViewSettled)

	second, err := env.svc.RecordDirectView(ctx, user.ID, promo.ID)
	require.NoError(t, err)
	require.True(t, second.Duplicate)
	require.False(t, second.ViewSettled)

	require.Equal(t, int64(50), env.reloadUser(t, user.ID).EarnedBalance)
	require.Equal(t, int64(1), env.reload(t, promo.ID).Views)
}

func TestRecordDirectView_ZeroRewardTerminatesImmediately(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, promo := env.fundPromotion(t, 1000, 0)
	user := env.seedUser(t, birthDate(20), "Cocody")

	res, err := env.svc.RecordDirectView(ctx, user.ID, promo.ID)
	requireStatus(t, err, errutil.StatusUnprocessableEntity)
	require.True(t, res.BudgetExhausted)
	require.Equal(t, StatusFinished, env.reload(t, promo.ID).Status)
}

func TestSettlement_QuotaExhaustionAndConservation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	// budget 1000, commission 150, net 850, reward 50: quota 17
	_, promo := env.fundPromotion(t, 1000, 50)
	require.Equal(t, int64(17), promo.ViewQuota)

	for i := 0; i < 17; i++ {
		user := env.seedUser(t, birthDate(20+i%10), fmt.Sprintf("Mun-%d", i))

		_, err := env.svc.RecordInteraction(ctx, user.ID, promo.ID, InteractionLike)
		require.NoError(t, err)
		res, err := env.svc.RecordInteraction(ctx, user.ID, promo.ID, InteractionShare)
		require.NoError(t, err)
		require.True(t, res.ViewSettled, "view %d should settle", i+1)
	}

	fresh := env.reload(t, promo.ID)
	require.Equal(t, StatusFinished, fresh.Status)
	require.Equal(t, int64(17), fresh.Views)
	require.Zero(t, fresh.BudgetRemaining)
	require.NotNil(t, fresh.FinishedAt)

	var paidOut int64
	require.NoError(t, env.db.Model(&RewardEntry{}).
		Where("promotion_id = ?", promo.ID).
		Select("COALESCE(SUM(amount), 0)").Scan(&paidOut).Error)
	require.Equal(t, fresh.BudgetInitial, fresh.Commission+paidOut+fresh.BudgetRemaining)

	// the 18th user hits the terminated promotion
	late := env.seedUser(t, birthDate(30), "Cocody")
	_, err := env.svc.RecordDirectView(ctx, late.ID, promo.ID)
	requireStatus(t, err, errutil.StatusConflict)
}

func TestListForUser_FiltersEligibility(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.seedPack(t, 0, 60, 50)
	owner := env.seedClient(t, 10000, "Cocody")

	openRes, err := env.svc.Create(ctx, owner.ID, CreateInput{
		Title: "open", DurationSec: 45, Budget: 1000,
	})
	require.NoError(t, err)

	_, err = env.svc.Create(ctx, owner.ID, CreateInput{
		Title: "locals only", DurationSec: 45, Budget: 1000,
		Targeting: TargetingSameMunicipality,
	})
	require.NoError(t, err)

	_, err = env.svc.Create(ctx, owner.ID, CreateInput{
		Title: "adults", DurationSec: 45, Budget: 1000,
		AgeBracket: AgeBracket18Plus,
	})
	require.NoError(t, err)

	teen := env.seedUser(t, birthDate(15), "Plateau")
	feed, err := env.svc.ListForUser(ctx, teen.ID, false)
	require.NoError(t, err)
	require.Len(t, feed, 1)
	require.Equal(t, openRes.Promotion.ID, feed[0].ID)

	localAdult := env.seedUser(t, birthDate(25), "Cocody")
	feed, err = env.svc.ListForUser(ctx, localAdult.ID, false)
	require.NoError(t, err)
	require.Len(t, feed, 3)

	sameOnly, err := env.svc.ListForUser(ctx, localAdult.ID, true)
	require.NoError(t, err)
	require.Len(t, sameOnly, 3)
}

func TestEarnings_PerPackBreakdown(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.seedPack(t, 0, 60, 50)
	env.seedPack(t, 61, 120, 100)
	client := env.seedClient(t, 10000, "Cocody")

	shortRes, err := env.svc.Create(ctx, client.ID, CreateInput{
		Title: "short", DurationSec: 30, Budget: 1000,
	})
	require.NoError(t, err)
	longRes, err := env.svc.Create(ctx, client.ID, CreateInput{
		Title: "long", DurationSec: 90, Budget: 1000,
	})
	require.NoError(t, err)

	user := env.seedUser(t, birthDate(20), "Cocody")

	_, err = env.svc.RecordDirectView(ctx, user.ID, shortRes.Promotion.ID)
	require.NoError(t, err)
	_, err = env.svc.RecordDirectView(ctx, user.ID, longRes.Promotion.ID)
	require.NoError(t, err)

	summary, err := env.svc.Earnings(ctx, user.ID)
	require.NoError(t, err)
	require.Equal(t, int64(150), summary.Total)
	require.Equal(t, int64(150), summary.Balance)
	require.Len(t, summary.PerPack, 2)
}
