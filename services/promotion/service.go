package promotion

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"pubcash-backend/pkg/config"
	"pubcash-backend/pkg/db/option"
	"pubcash-backend/pkg/db/pagination"
	"pubcash-backend/pkg/errutil"
	"pubcash-backend/pkg/repository"
	"pubcash-backend/pkg/sequence"
	"pubcash-backend/pkg/task"
	"pubcash-backend/services/account"
	"pubcash-backend/services/pack"
	"pubcash-backend/services/wallet"

	"github.com/bwmarrin/snowflake"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Service struct {
	db        *gorm.DB
	cfg       *config.Config
	node      *snowflake.Node
	wallet    *wallet.Service
	sequences sequence.Generator
	enqueuer  task.Enqueuer

	promotions   repository.Repository[Promotion]
	interactions repository.Repository[Interaction]
	rewards      repository.Repository[RewardEntry]
	comments     repository.Repository[Comment]
	clients      repository.Repository[account.Client]
	users        repository.Repository[account.User]
}

type ServiceParams struct {
	fx.In
	DB        *gorm.DB
	Config    *config.Config
	Node      *snowflake.Node
	Wallet    *wallet.Service
	Sequences sequence.Generator `optional:"true"`
	Enqueuer  task.Enqueuer      `optional:"true"`
}

func NewService(p ServiceParams) *Service {
	return &Service{
		db:        p.DB,
		cfg:       p.Config,
		node:      p.Node,
		wallet:    p.Wallet,
		sequences: p.Sequences,
		enqueuer:  p.Enqueuer,

		promotions:   repository.ProvideStore[Promotion](p.DB),
		interactions: repository.ProvideStore[Interaction](p.DB),
		rewards:      repository.ProvideStore[RewardEntry](p.DB),
		comments:     repository.ProvideStore[Comment](p.DB),
		clients:      repository.ProvideStore[account.Client](p.DB),
		users:        repository.ProvideStore[account.User](p.DB),
	}
}

// inTx runs fn in a transaction, retrying once on a transient
// serialization or deadlock failure.
func (s *Service) inTx(fn func(tx *gorm.DB) error) error {
	err := s.db.Transaction(fn)
	if err != nil && isRetryable(err) {
		err = s.db.Transaction(fn)
		if err != nil && isRetryable(err) {
			return errutil.Conflict("concurrent update conflict", err, errutil.WithErr(err))
		}
	}
	return err
}

func isRetryable(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "deadlock") ||
		strings.Contains(msg, "could not serialize") ||
		strings.Contains(msg, "lock wait timeout")
}

type CreateInput struct {
	Title        string `json:"title"`
	Description  string `json:"description"`
	VideoURL     string `json:"video_url"`
	ThumbnailURL string `json:"thumbnail_url"`
	DurationSec  int    `json:"duration_sec"`
	Budget       int64  `json:"budget"`
	AgeBracket   string `json:"age_bracket"`
	Targeting    string `json:"targeting"`
}

type CreateResult struct {
	Promotion  *Promotion `json:"promotion"`
	NewBalance int64      `json:"new_balance"`
}

// Create funds a promotion out of the client's recharge balance in one
// atomic transaction: pack resolution, balance debit, commission credit
// to the platform wallet, view quota computation, promotion insert.
func (s *Service) Create(ctx context.Context, clientID string, in CreateInput) (*CreateResult, error) {
	span := trace.SpanFromContext(ctx)
	defer span.End()

	if in.Budget <= 0 {
		return nil, errutil.ValidationFailed("budget must be > 0", nil)
	}
	if in.Title == "" {
		return nil, errutil.ValidationFailed("title required", nil)
	}
	if in.DurationSec <= 0 {
		return nil, errutil.ValidationFailed("duration_sec must be > 0", nil)
	}
	if in.AgeBracket == "" {
		in.AgeBracket = AgeBracketAll
	}
	if in.Targeting == "" {
		in.Targeting = TargetingAll
	}
	if !validAgeBracket(in.AgeBracket) {
		return nil, errutil.ValidationFailed("unknown age_bracket", nil)
	}
	if !validTargeting(in.Targeting) {
		return nil, errutil.ValidationFailed("unknown targeting", nil)
	}

	var result *CreateResult

	err := s.inTx(func(tx *gorm.DB) error {
		clientTx := s.clients.WithTrx(tx)
		promoTx := s.promotions.WithTrx(tx)

		pk, err := pack.ResolveByDurationTx(ctx, tx, in.DurationSec)
		if err != nil {
			return err
		}

		client, err := clientTx.FindOne(ctx, &account.Client{ID: clientID}, option.WithLockingUpdate())
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return errutil.NotFound("client not found", nil)
			}
			return err
		}

		if client.RechargeBalance < in.Budget {
			return errutil.UnprocessableEntity("insufficient funds", nil)
		}

		now := time.Now()
		if err := clientTx.Update(ctx, client.ID, map[string]any{
			"recharge_balance": gorm.Expr("recharge_balance - ?", in.Budget),
			"updated_at":       now,
		}); err != nil {
			return err
		}

		commission := int64(math.Round(float64(in.Budget) * s.cfg.Platform.CommissionRate))
		netBudget := in.Budget - commission

		var quota int64
		if pk.RewardPerView > 0 {
			quota = netBudget / pk.RewardPerView
		}

		promoID := s.node.Generate().String()

		if _, err := s.wallet.EnsureTx(ctx, tx); err != nil {
			return err
		}
		if err := s.wallet.CreditTx(ctx, tx, commission, promoID, "commission on promotion "+in.Title); err != nil {
			return err
		}

		code := promoID
		if s.sequences != nil {
			if generated, err := s.sequences.NextPromotionCode(ctx, clientID); err == nil {
				code = generated
			}
		}

		promo := &Promotion{
			ID:              promoID,
			Code:            code,
			ClientID:        clientID,
			Title:           in.Title,
			Description:     in.Description,
			VideoURL:        in.VideoURL,
			ThumbnailURL:    in.ThumbnailURL,
			DurationSec:     in.DurationSec,
			PackID:          pk.ID,
			RewardPerView:   pk.RewardPerView,
			BudgetInitial:   in.Budget,
			BudgetRemaining: netBudget,
			Commission:      commission,
			ViewQuota:       quota,
			AgeBracket:      in.AgeBracket,
			Targeting:       in.Targeting,
			Status:          StatusActive,
			CreatedAt:       now,
		}

		if err := promoTx.Create(ctx, promo); err != nil {
			return err
		}

		result = &CreateResult{
			Promotion:  promo,
			NewBalance: client.RechargeBalance - in.Budget,
		}
		return nil
	})
	if err != nil {
		zap.L().Warn("promotion funding failed", zap.String("client_id", clientID), zap.Error(err))
		return nil, err
	}

	zap.L().Info("promotion funded",
		zap.String("promotion_id", result.Promotion.ID),
		zap.String("client_id", clientID),
		zap.Int64("budget", in.Budget),
		zap.Int64("commission", result.Promotion.Commission),
		zap.Int64("view_quota", result.Promotion.ViewQuota),
	)

	return result, nil
}

func (s *Service) Get(ctx context.Context, promotionID string) (*Promotion, error) {
	p, err := s.promotions.FindOne(ctx, &Promotion{ID: promotionID})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errutil.NotFound("promotion not found", nil)
		}
		return nil, err
	}
	return p, nil
}

// ListForUser returns active promotions the user is eligible for. The
// result is advisory: eligibility is re-checked inside every interaction
// transaction.
func (s *Service) ListForUser(ctx context.Context, userID string, sameMunicipalityOnly bool) ([]*Promotion, error) {
	user, err := s.users.FindOne(ctx, &account.User{ID: userID})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errutil.NotFound("user not found", nil)
		}
		return nil, err
	}

	active, err := s.promotions.Find(ctx, &Promotion{Status: StatusActive}, option.WithSortBy(option.QuerySortBy{
		SortBy:  "created_at",
		OrderBy: "DESC",
		Allow:   map[string]bool{"created_at": true},
	}))
	if err != nil {
		return nil, err
	}

	municipalities, err := s.ownerMunicipalities(ctx, active)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	eligible := make([]*Promotion, 0, len(active))
	for _, p := range active {
		ownerMun := municipalities[p.ClientID]
		if !Eligible(user, p, ownerMun, now) {
			continue
		}
		if sameMunicipalityOnly && user.Municipality != ownerMun {
			continue
		}
		eligible = append(eligible, p)
	}

	return eligible, nil
}

func (s *Service) ownerMunicipalities(ctx context.Context, promos []*Promotion) (map[string]string, error) {
	ids := make([]string, 0, len(promos))
	seen := map[string]bool{}
	for _, p := range promos {
		if !seen[p.ClientID] {
			seen[p.ClientID] = true
			ids = append(ids, p.ClientID)
		}
	}

	result := make(map[string]string, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	var owners []account.Client
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&owners).Error; err != nil {
		return nil, err
	}
	for _, o := range owners {
		result[o.ID] = o.Municipality
	}

	return result, nil
}

// ListForClient pages through the client's promotions, newest first,
// keyed on (created_at, id).
func (s *Service) ListForClient(ctx context.Context, clientID string, page pagination.Pagination) ([]*Promotion, *pagination.PageInfo, error) {
	page = page.Normalized()

	q := s.db.WithContext(ctx).Where("client_id = ?", clientID)

	if page.Cursor != "" {
		cursor, err := pagination.DecodeCursor(page.Cursor)
		if err != nil {
			return nil, nil, errutil.BadRequest("invalid cursor", err, errutil.WithErr(err))
		}
		after, err := time.Parse(time.RFC3339Nano, cursor.CreatedAt)
		if err != nil {
			return nil, nil, errutil.BadRequest("invalid cursor", err, errutil.WithErr(err))
		}
		q = q.Where("created_at < ? OR (created_at = ? AND id < ?)", after, after, cursor.ID)
	}

	var promos []*Promotion
	if err := q.Order("created_at DESC, id DESC").Limit(page.Limit + 1).Find(&promos).Error; err != nil {
		return nil, nil, err
	}

	return pagination.Trim(promos, page.Limit, func(p *Promotion) pagination.Cursor {
		return pagination.Cursor{
			CreatedAt: p.CreatedAt.Format(time.RFC3339Nano),
			ID:        p.ID,
		}
	})
}

type ClientStats struct {
	Promotions  int64 `json:"promotions"`
	TotalViews  int64 `json:"total_views"`
	TotalLikes  int64 `json:"total_likes"`
	TotalShares int64 `json:"total_shares"`
	BudgetSpent int64 `json:"budget_spent"`
}

func (s *Service) Stats(ctx context.Context, clientID string) (*ClientStats, error) {
	var stats ClientStats
	err := s.db.WithContext(ctx).Model(&Promotion{}).
		Select(`COUNT(*) as promotions,
			COALESCE(SUM(views), 0) as total_views,
			COALESCE(SUM(likes), 0) as total_likes,
			COALESCE(SUM(shares), 0) as total_shares,
			COALESCE(SUM(budget_initial), 0) as budget_spent`).
		Where("client_id = ?", clientID).
		Scan(&stats).Error
	if err != nil {
		return nil, err
	}
	return &stats, nil
}

type HistoryEntry struct {
	Promotion *Promotion `json:"promotion"`
	Comments  []*Comment `json:"comments"`
}

// History returns finished promotions with their comments, newest first.
func (s *Service) History(ctx context.Context, clientID string) ([]*HistoryEntry, error) {
	finished, err := s.promotions.Find(ctx, &Promotion{ClientID: clientID, Status: StatusFinished},
		option.WithSortBy(option.QuerySortBy{
			SortBy:  "created_at",
			OrderBy: "DESC",
			Allow:   map[string]bool{"created_at": true},
		}))
	if err != nil {
		return nil, err
	}

	entries := make([]*HistoryEntry, 0, len(finished))
	for _, p := range finished {
		comments, err := s.comments.Find(ctx, &Comment{PromotionID: p.ID})
		if err != nil {
			return nil, err
		}
		entries = append(entries, &HistoryEntry{Promotion: p, Comments: comments})
	}

	return entries, nil
}

type PackEarnings struct {
	PackID   string `json:"pack_id"`
	PackName string `json:"pack_name"`
	Views    int64  `json:"views"`
	Amount   int64  `json:"amount"`
}

type EarningsSummary struct {
	Total   int64          `json:"total"`
	Balance int64          `json:"balance"`
	PerPack []PackEarnings `json:"per_pack"`
}

func (s *Service) Earnings(ctx context.Context, userID string) (*EarningsSummary, error) {
	user, err := s.users.FindOne(ctx, &account.User{ID: userID})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errutil.NotFound("user not found", nil)
		}
		return nil, err
	}

	var perPack []PackEarnings
	err = s.db.WithContext(ctx).Table("reward_entries").
		Select(`promotions.pack_id as pack_id,
			COALESCE(packs.name, '') as pack_name,
			COUNT(*) as views,
			COALESCE(SUM(reward_entries.amount), 0) as amount`).
		Joins("JOIN promotions ON promotions.id = reward_entries.promotion_id").
		Joins("LEFT JOIN packs ON packs.id = promotions.pack_id").
		Where("reward_entries.user_id = ?", userID).
		Group("promotions.pack_id, packs.name").
		Scan(&perPack).Error
	if err != nil {
		return nil, err
	}

	var total int64
	for _, p := range perPack {
		total += p.Amount
	}

	return &EarningsSummary{
		Total:   total,
		Balance: user.EarnedBalance,
		PerPack: perPack,
	}, nil
}

// InteractionHistory lists a user's recorded interactions, newest first.
func (s *Service) InteractionHistory(ctx context.Context, userID string) ([]*Interaction, error) {
	return s.interactions.Find(ctx, &Interaction{UserID: userID}, option.WithSortBy(option.QuerySortBy{
		SortBy:  "created_at",
		OrderBy: "DESC",
		Allow:   map[string]bool{"created_at": true},
	}))
}

func (s *Service) AddComment(ctx context.Context, userID, promotionID, body string) (*Comment, error) {
	if strings.TrimSpace(body) == "" {
		return nil, errutil.ValidationFailed("comment body required", nil)
	}

	if _, err := s.Get(ctx, promotionID); err != nil {
		return nil, err
	}

	c := &Comment{
		ID:          s.node.Generate().String(),
		UserID:      userID,
		PromotionID: promotionID,
		Body:        strings.TrimSpace(body),
		CreatedAt:   time.Now(),
	}
	if err := s.comments.Create(ctx, c); err != nil {
		return nil, err
	}

	return c, nil
}

func (s *Service) ListComments(ctx context.Context, promotionID string) ([]*Comment, error) {
	return s.comments.Find(ctx, &Comment{PromotionID: promotionID}, option.WithSortBy(option.QuerySortBy{
		SortBy:  "created_at",
		OrderBy: "DESC",
		Allow:   map[string]bool{"created_at": true},
	}))
}
