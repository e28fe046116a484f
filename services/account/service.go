package account

import (
	"context"
	"errors"
	"time"

	"pubcash-backend/pkg/db/option"
	"pubcash-backend/pkg/errutil"
	"pubcash-backend/pkg/repository"
	"pubcash-backend/pkg/sequence"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Service struct {
	db        *gorm.DB
	node      *snowflake.Node
	sequences sequence.Generator

	clients   repository.Repository[Client]
	users     repository.Repository[User]
	admins    repository.Repository[Admin]
	recharges repository.Repository[Recharge]
}

type ServiceParams struct {
	fx.In
	DB        *gorm.DB
	Node      *snowflake.Node
	Sequences sequence.Generator `optional:"true"`
}

func NewService(p ServiceParams) *Service {
	return &Service{
		db:        p.DB,
		node:      p.Node,
		sequences: p.Sequences,

		clients:   repository.ProvideStore[Client](p.DB),
		users:     repository.ProvideStore[User](p.DB),
		admins:    repository.ProvideStore[Admin](p.DB),
		recharges: repository.ProvideStore[Recharge](p.DB),
	}
}

func (s *Service) GetUser(ctx context.Context, userID string) (*User, error) {
	u, err := s.users.FindOne(ctx, &User{ID: userID})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errutil.NotFound("user not found", nil)
		}
		return nil, err
	}
	return u, nil
}

func (s *Service) GetClient(ctx context.Context, clientID string) (*Client, error) {
	c, err := s.clients.FindOne(ctx, &Client{ID: clientID})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errutil.NotFound("client not found", nil)
		}
		return nil, err
	}
	return c, nil
}

// ProfileUpdate enumerates the updatable profile fields. Nil means
// leave unchanged. Password rotation requires the current password.
type ProfileUpdate struct {
	Name            *string    `json:"name"`
	Municipality    *string    `json:"municipality"`
	Contact         *string    `json:"contact"`
	BirthDate       *time.Time `json:"birth_date"`
	ProfileImageURL *string    `json:"profile_image_url"`
	CurrentPassword *string    `json:"current_password"`
	NewPassword     *string    `json:"new_password"`
}

func (u ProfileUpdate) columns() map[string]any {
	updates := map[string]any{}
	if u.Name != nil {
		updates["name"] = *u.Name
	}
	if u.Municipality != nil {
		updates["municipality"] = *u.Municipality
	}
	if u.Contact != nil {
		updates["contact"] = *u.Contact
	}
	if u.BirthDate != nil {
		updates["birth_date"] = *u.BirthDate
	}
	if u.ProfileImageURL != nil {
		updates["profile_image_url"] = *u.ProfileImageURL
	}
	return updates
}

func (u ProfileUpdate) rotatedHash(currentHash string) (string, error) {
	if u.NewPassword == nil {
		return "", nil
	}
	if u.CurrentPassword == nil {
		return "", errutil.BadRequest("current_password required to change password", nil)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(currentHash), []byte(*u.CurrentPassword)); err != nil {
		return "", errutil.Unauthorized("current password does not match", nil)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(*u.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

func (s *Service) UpdateUserProfile(ctx context.Context, userID string, in ProfileUpdate) (*User, error) {
	u, err := s.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	updates := in.columns()
	hash, err := in.rotatedHash(u.PasswordHash)
	if err != nil {
		return nil, err
	}
	if hash != "" {
		updates["password_hash"] = hash
	}

	if len(updates) == 0 {
		return u, nil
	}
	updates["updated_at"] = time.Now()

	if err := s.users.Update(ctx, u.ID, updates); err != nil {
		zap.L().Error("failed to update user profile", zap.String("user_id", userID), zap.Error(err))
		return nil, err
	}

	return s.GetUser(ctx, userID)
}

func (s *Service) UpdateClientProfile(ctx context.Context, clientID string, in ProfileUpdate) (*Client, error) {
	c, err := s.GetClient(ctx, clientID)
	if err != nil {
		return nil, err
	}

	updates := in.columns()
	delete(updates, "birth_date")

	hash, err := in.rotatedHash(c.PasswordHash)
	if err != nil {
		return nil, err
	}
	if hash != "" {
		updates["password_hash"] = hash
	}

	if len(updates) == 0 {
		return c, nil
	}
	updates["updated_at"] = time.Now()

	if err := s.clients.Update(ctx, c.ID, updates); err != nil {
		zap.L().Error("failed to update client profile", zap.String("client_id", clientID), zap.Error(err))
		return nil, err
	}

	return s.GetClient(ctx, clientID)
}

// InitiateRecharge records a pending top-up awaiting payment confirmation.
func (s *Service) InitiateRecharge(ctx context.Context, clientID string, amount int64) (*Recharge, error) {
	if amount <= 0 {
		return nil, errutil.ValidationFailed("amount must be > 0", nil)
	}

	if _, err := s.GetClient(ctx, clientID); err != nil {
		return nil, err
	}

	code := s.node.Generate().String()
	if s.sequences != nil {
		generated, err := s.sequences.NextRechargeCode(ctx, clientID)
		if err == nil {
			code = generated
		}
	}

	r := &Recharge{
		ID:        s.node.Generate().String(),
		Code:      code,
		ClientID:  clientID,
		Amount:    amount,
		Status:    RechargeStatusPending,
		CreatedAt: time.Now(),
	}

	if err := s.recharges.Create(ctx, r); err != nil {
		return nil, err
	}

	return r, nil
}

// ConfirmRecharge credits the client balance once the payment collaborator
// confirms. Idempotence comes from the pending status filter under lock.
// providerPayload, when present, is kept on the recharge for audit.
func (s *Service) ConfirmRecharge(ctx context.Context, clientID, rechargeID string, providerPayload []byte) (*Recharge, error) {
	var confirmed *Recharge

	err := s.db.Transaction(func(tx *gorm.DB) error {
		rechargeTx := s.recharges.WithTrx(tx)
		clientTx := s.clients.WithTrx(tx)

		r, err := rechargeTx.FindOne(ctx, &Recharge{ID: rechargeID}, option.WithLockingUpdate())
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return errutil.NotFound("recharge not found", nil)
			}
			return err
		}

		if clientID != "" && r.ClientID != clientID {
			return errutil.Forbidden("recharge belongs to another client", nil)
		}

		if r.Status != RechargeStatusPending {
			return errutil.Conflict("recharge already processed", nil)
		}

		client, err := clientTx.FindOne(ctx, &Client{ID: r.ClientID}, option.WithLockingUpdate())
		if err != nil {
			return err
		}

		now := time.Now()
		if err := clientTx.Update(ctx, client.ID, map[string]any{
			"recharge_balance": gorm.Expr("recharge_balance + ?", r.Amount),
			"updated_at":       now,
		}); err != nil {
			return err
		}

		updates := map[string]any{
			"status":       RechargeStatusConfirmed,
			"confirmed_at": now,
		}
		if len(providerPayload) > 0 {
			updates["provider_payload"] = datatypes.JSON(providerPayload)
			r.ProviderPayload = datatypes.JSON(providerPayload)
		}
		if err := rechargeTx.Update(ctx, r.ID, updates); err != nil {
			return err
		}

		r.Status = RechargeStatusConfirmed
		r.ConfirmedAt = &now
		confirmed = r
		return nil
	})
	if err != nil {
		return nil, err
	}

	return confirmed, nil
}

func (s *Service) ListRecharges(ctx context.Context, clientID string) ([]*Recharge, error) {
	return s.recharges.Find(ctx, &Recharge{ClientID: clientID}, option.WithSortBy(option.QuerySortBy{
		SortBy:  "created_at",
		OrderBy: "DESC",
		Allow:   map[string]bool{"created_at": true},
	}))
}
