package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"pubcash-backend/pkg/config"
	"pubcash-backend/pkg/errutil"
	"pubcash-backend/pkg/middleware"
	"pubcash-backend/pkg/repository"
	"pubcash-backend/services/account"

	"github.com/bwmarrin/snowflake"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type Service struct {
	cfg  *config.Config
	node *snowflake.Node

	clients repository.Repository[account.Client]
	users   repository.Repository[account.User]
	admins  repository.Repository[account.Admin]
}

type ServiceParams struct {
	fx.In
	Config *config.Config
	DB     *gorm.DB
	Node   *snowflake.Node
}

func NewService(p ServiceParams) *Service {
	return &Service{
		cfg:  p.Config,
		node: p.Node,

		clients: repository.ProvideStore[account.Client](p.DB),
		users:   repository.ProvideStore[account.User](p.DB),
		admins:  repository.ProvideStore[account.Admin](p.DB),
	}
}

type RegisterInput struct {
	Name         string     `json:"name"`
	Email        string     `json:"email"`
	Password     string     `json:"password"`
	Municipality string     `json:"municipality"`
	Contact      string     `json:"contact"`
	BirthDate    *time.Time `json:"birth_date"`
}

type TokenResult struct {
	Token     string    `json:"token"`
	Role      string    `json:"role"`
	AccountID string    `json:"account_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (in *RegisterInput) validate() error {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if in.Email == "" || !strings.Contains(in.Email, "@") {
		return errutil.ValidationFailed("valid email required", nil)
	}
	if len(in.Password) < 6 {
		return errutil.ValidationFailed("password must be at least 6 characters", nil)
	}
	if in.Name == "" {
		return errutil.ValidationFailed("name required", nil)
	}
	return nil
}

func (s *Service) RegisterUser(ctx context.Context, in RegisterInput) (*TokenResult, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	if _, err := s.users.FindOne(ctx, &account.User{Email: in.Email}); err == nil {
		return nil, errutil.Conflict("email already registered", nil)
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	u := &account.User{
		ID:           s.node.Generate().String(),
		Name:         in.Name,
		Email:        in.Email,
		PasswordHash: string(hash),
		BirthDate:    in.BirthDate,
		Municipality: in.Municipality,
		Contact:      in.Contact,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}
	if err := s.users.Create(ctx, u); err != nil {
		zap.L().Error("failed to create user", zap.Error(err))
		return nil, err
	}

	return s.issueToken(u.ID, account.RoleUser)
}

func (s *Service) RegisterClient(ctx context.Context, in RegisterInput) (*TokenResult, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	if in.Municipality == "" {
		return nil, errutil.ValidationFailed("municipality required", nil)
	}

	if _, err := s.clients.FindOne(ctx, &account.Client{Email: in.Email}); err == nil {
		return nil, errutil.Conflict("email already registered", nil)
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	c := &account.Client{
		ID:           s.node.Generate().String(),
		Name:         in.Name,
		Email:        in.Email,
		PasswordHash: string(hash),
		Municipality: in.Municipality,
		Contact:      in.Contact,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}
	if err := s.clients.Create(ctx, c); err != nil {
		zap.L().Error("failed to create client", zap.Error(err))
		return nil, err
	}

	return s.issueToken(c.ID, account.RoleClient)
}

func (s *Service) Login(ctx context.Context, role, email, password string) (*TokenResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	var (
		id   string
		hash string
	)

	switch role {
	case account.RoleUser:
		u, err := s.users.FindOne(ctx, &account.User{Email: email})
		if err != nil {
			return nil, loginErr(err)
		}
		id, hash = u.ID, u.PasswordHash
	case account.RoleClient:
		c, err := s.clients.FindOne(ctx, &account.Client{Email: email})
		if err != nil {
			return nil, loginErr(err)
		}
		id, hash = c.ID, c.PasswordHash
	case account.RoleAdmin:
		a, err := s.admins.FindOne(ctx, &account.Admin{Email: email})
		if err != nil {
			return nil, loginErr(err)
		}
		id, hash = a.ID, a.PasswordHash
	default:
		return nil, errutil.ValidationFailed("unknown role", nil)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return nil, errutil.Unauthorized("invalid credentials", nil)
	}

	return s.issueToken(id, role)
}

func loginErr(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return errutil.Unauthorized("invalid credentials", nil)
	}
	return err
}

func (s *Service) issueToken(subject, role string) (*TokenResult, error) {
	expiresAt := time.Now().Add(s.cfg.Auth.TokenTTL)

	claims := middleware.Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.cfg.Auth.Secret))
	if err != nil {
		return nil, err
	}

	return &TokenResult{
		Token:     token,
		Role:      role,
		AccountID: subject,
		ExpiresAt: expiresAt,
	}, nil
}
