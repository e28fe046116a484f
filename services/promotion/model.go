package promotion

import "time"

const (
	StatusActive   = "active"
	StatusFinished = "finished"
)

const (
	AgeBracketAll    = "all"
	AgeBracket12To17 = "12-17"
	AgeBracket18Plus = "18+"
)

const (
	TargetingAll              = "all"
	TargetingSameMunicipality = "same_municipality"
)

const (
	InteractionLike  = "like"
	InteractionShare = "share"
	InteractionView  = "view"
)

// Promotion is a funded campaign. RewardPerView is frozen from the pack
// at funding time. BudgetRemaining starts at the net view budget
// (initial budget minus commission) and only ever decreases.
type Promotion struct {
	ID              string     `gorm:"column:id;primaryKey"`
	Code            string     `gorm:"column:code;uniqueIndex"`
	ClientID        string     `gorm:"column:client_id;index"`
	Title           string     `gorm:"column:title"`
	Description     string     `gorm:"column:description"`
	VideoURL        string     `gorm:"column:video_url"`
	ThumbnailURL    string     `gorm:"column:thumbnail_url"`
	DurationSec     int        `gorm:"column:duration_sec"`
	PackID          string     `gorm:"column:pack_id;index"`
	RewardPerView   int64      `gorm:"column:reward_per_view"`
	BudgetInitial   int64      `gorm:"column:budget_initial"`
	BudgetRemaining int64      `gorm:"column:budget_remaining"`
	Commission      int64      `gorm:"column:commission"`
	ViewQuota       int64      `gorm:"column:view_quota"`
	Views           int64      `gorm:"column:views"`
	Likes           int64      `gorm:"column:likes"`
	Shares          int64      `gorm:"column:shares"`
	AgeBracket      string     `gorm:"column:age_bracket"`
	Targeting       string     `gorm:"column:targeting"`
	Status          string     `gorm:"column:status;index"`
	CreatedAt       time.Time  `gorm:"column:created_at"`
	FinishedAt      *time.Time `gorm:"column:finished_at"`
}

// Interaction is an immutable fact. The composite unique index is the
// idempotence key: at most one row per (user, promotion, type).
type Interaction struct {
	ID          string    `gorm:"column:id;primaryKey"`
	UserID      string    `gorm:"column:user_id;uniqueIndex:idx_interaction_key"`
	PromotionID string    `gorm:"column:promotion_id;uniqueIndex:idx_interaction_key;index"`
	Type        string    `gorm:"column:type;uniqueIndex:idx_interaction_key"`
	Channel     string    `gorm:"column:channel"`
	CreatedAt   time.Time `gorm:"column:created_at"`
}

// RewardEntry is the audit row appended for every paid view.
type RewardEntry struct {
	ID          string    `gorm:"column:id;primaryKey"`
	UserID      string    `gorm:"column:user_id;index"`
	PromotionID string    `gorm:"column:promotion_id;index"`
	Amount      int64     `gorm:"column:amount"`
	Kind        string    `gorm:"column:kind"`
	CreatedAt   time.Time `gorm:"column:created_at"`
}

type Comment struct {
	ID          string    `gorm:"column:id;primaryKey"`
	UserID      string    `gorm:"column:user_id;index"`
	PromotionID string    `gorm:"column:promotion_id;index"`
	Body        string    `gorm:"column:body"`
	CreatedAt   time.Time `gorm:"column:created_at"`
}

func validAgeBracket(b string) bool {
	switch b {
	case AgeBracketAll, AgeBracket12To17, AgeBracket18Plus:
		return true
	}
	return false
}

func validTargeting(t string) bool {
	switch t {
	case TargetingAll, TargetingSameMunicipality:
		return true
	}
	return false
}
