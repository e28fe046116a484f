package account

import (
	"context"
	"errors"
	"testing"
	"time"

	"pubcash-backend/pkg/errutil"
	"pubcash-backend/services/testutil"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

type testEnv struct {
	db   *gorm.DB
	node *snowflake.Node
	svc  *Service
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db := testutil.NewTestDB(t,
		&Client{},
		&User{},
		&Admin{},
		&Recharge{},
	)

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	return &testEnv{
		db:   db,
		node: node,
		svc:  NewService(ServiceParams{DB: db, Node: node}),
	}
}

func (e *testEnv) seedClient(t *testing.T, balance int64) *Client {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("secret"), bcrypt.MinCost)
	require.NoError(t, err)

	c := &Client{
		ID:              e.node.Generate().String(),
		Name:            "client",
		Email:           e.node.Generate().String() + "@example.com",
		PasswordHash:    string(hash),
		RechargeBalance: balance,
		CreatedAt:       time.Now(),
		UpdatedAt:       time.Now(),
	}
	require.NoError(t, e.db.Create(c).Error)
	return c
}

func (e *testEnv) seedUser(t *testing.T) *User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("secret"), bcrypt.MinCost)
	require.NoError(t, err)

	u := &User{
		ID:           e.node.Generate().String(),
		Name:         "user",
		Email:        e.node.Generate().String() + "@example.com",
		PasswordHash: string(hash),
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}
	require.NoError(t, e.db.Create(u).Error)
	return u
}

func requireStatus(t *testing.T, err error, want errutil.CoreStatus) {
	t.Helper()
	require.Error(t, err)
	var be errutil.BaseError
	require.True(t, errors.As(err, &be), "expected BaseError, got %T: %v", err, err)
	require.Equal(t, want, be.Status())
}

func str(s string) *string { return &s }

func TestUpdateUserProfile_SetsFields(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	user := env.seedUser(t)
	birth := time.Date(2000, 5, 10, 0, 0, 0, 0, time.UTC)

	updated, err := env.svc.UpdateUserProfile(ctx, user.ID, ProfileUpdate{
		Name:         str("Awa"),
		Municipality: str("Cocody"),
		BirthDate:    &birth,
	})
	require.NoError(t, err)
	require.Equal(t, "Awa", updated.Name)
	require.Equal(t, "Cocody", updated.Municipality)
	require.NotNil(t, updated.BirthDate)
	require.Equal(t, birth.Year(), updated.BirthDate.Year())
}

func TestUpdateUserProfile_NoChangesIsNoop(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	user := env.seedUser(t)

	updated, err := env.svc.UpdateUserProfile(ctx, user.ID, ProfileUpdate{})
	require.NoError(t, err)
	require.Equal(t, user.Name, updated.Name)
}

func TestUpdateUserProfile_PasswordRotation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	user := env.seedUser(t)

	_, err := env.svc.UpdateUserProfile(ctx, user.ID, ProfileUpdate{
		NewPassword: str("rotated"),
	})
	requireStatus(t, err, errutil.StatusBadRequest)

	_, err = env.svc.UpdateUserProfile(ctx, user.ID, ProfileUpdate{
		CurrentPassword: str("wrong"),
		NewPassword:     str("rotated"),
	})
	requireStatus(t, err, errutil.StatusUnauthorized)

	updated, err := env.svc.UpdateUserProfile(ctx, user.ID, ProfileUpdate{
		CurrentPassword: str("secret"),
		NewPassword:     str("rotated"),
	})
	require.NoError(t, err)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(updated.PasswordHash), []byte("rotated")))
}

func TestUpdateClientProfile_IgnoresBirthDate(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	client := env.seedClient(t, 0)
	birth := time.Date(1990, 1, 1, 0, 0, 0, 0, time.UTC)

	updated, err := env.svc.UpdateClientProfile(ctx, client.ID, ProfileUpdate{
		Name:      str("Agence Plateau"),
		BirthDate: &birth,
	})
	require.NoError(t, err)
	require.Equal(t, "Agence Plateau", updated.Name)
}

func TestRecharge_InitiateAndConfirm(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	client := env.seedClient(t, 100)

	r, err := env.svc.InitiateRecharge(ctx, client.ID, 1000)
	require.NoError(t, err)
	require.Equal(t, RechargeStatusPending, r.Status)
	require.NotEmpty(t, r.Code)

	// pending top-up has not been credited yet
	fresh, err := env.svc.GetClient(ctx, client.ID)
	require.NoError(t, err)
	require.Equal(t, int64(100), fresh.RechargeBalance)

	confirmed, err := env.svc.ConfirmRecharge(ctx, client.ID, r.ID, []byte(`{"provider_ref":"pay-123"}`))
	require.NoError(t, err)
	require.Equal(t, RechargeStatusConfirmed, confirmed.Status)
	require.NotNil(t, confirmed.ConfirmedAt)
	require.JSONEq(t, `{"provider_ref":"pay-123"}`, string(confirmed.ProviderPayload))

	fresh, err = env.svc.GetClient(ctx, client.ID)
	require.NoError(t, err)
	require.Equal(t, int64(1100), fresh.RechargeBalance)
}

func TestConfirmRecharge_SecondConfirmConflicts(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	client := env.seedClient(t, 0)

	r, err := env.svc.InitiateRecharge(ctx, client.ID, 500)
	require.NoError(t, err)

	_, err = env.svc.ConfirmRecharge(ctx, client.ID, r.ID, nil)
	require.NoError(t, err)

	_, err = env.svc.ConfirmRecharge(ctx, client.ID, r.ID, nil)
	requireStatus(t, err, errutil.StatusConflict)

	fresh, err := env.svc.GetClient(ctx, client.ID)
	require.NoError(t, err)
	require.Equal(t, int64(500), fresh.RechargeBalance)
}

func TestConfirmRecharge_OwnershipEnforced(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	owner := env.seedClient(t, 0)
	other := env.seedClient(t, 0)

	r, err := env.svc.InitiateRecharge(ctx, owner.ID, 500)
	require.NoError(t, err)

	_, err = env.svc.ConfirmRecharge(ctx, other.ID, r.ID, nil)
	requireStatus(t, err, errutil.StatusForbidden)

	fresh, err := env.svc.GetClient(ctx, owner.ID)
	require.NoError(t, err)
	require.Zero(t, fresh.RechargeBalance)
}

func TestInitiateRecharge_Validation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	client := env.seedClient(t, 0)

	_, err := env.svc.InitiateRecharge(ctx, client.ID, 0)
	requireStatus(t, err, errutil.StatusValidationFailed)

	_, err = env.svc.InitiateRecharge(ctx, "missing", 100)
	requireStatus(t, err, errutil.StatusNotFound)
}

func TestListRecharges_ScopedToClient(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	a := env.seedClient(t, 0)
	b := env.seedClient(t, 0)

	_, err := env.svc.InitiateRecharge(ctx, a.ID, 100)
	require.NoError(t, err)
	_, err = env.svc.InitiateRecharge(ctx, a.ID, 200)
	require.NoError(t, err)
	_, err = env.svc.InitiateRecharge(ctx, b.ID, 300)
	require.NoError(t, err)

	list, err := env.svc.ListRecharges(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
}
