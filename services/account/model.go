package account

import (
	"time"

	"gorm.io/datatypes"
)

const (
	RoleClient = "client"
	RoleUser   = "user"
	RoleAdmin  = "admin"
)

// Client funds promotions out of its recharge balance.
// The balance never goes negative.
type Client struct {
	ID              string    `gorm:"column:id;primaryKey"`
	Name            string    `gorm:"column:name"`
	Email           string    `gorm:"column:email;uniqueIndex"`
	PasswordHash    string    `gorm:"column:password_hash" json:"-"`
	Municipality    string    `gorm:"column:municipality"`
	Contact         string    `gorm:"column:contact"`
	ProfileImageURL string    `gorm:"column:profile_image_url"`
	RechargeBalance int64     `gorm:"column:recharge_balance"`
	CreatedAt       time.Time `gorm:"column:created_at"`
	UpdatedAt       time.Time `gorm:"column:updated_at"`
}

// User earns micro-payments from qualifying views.
// The earned balance never goes negative.
type User struct {
	ID              string     `gorm:"column:id;primaryKey"`
	Name            string     `gorm:"column:name"`
	Email           string     `gorm:"column:email;uniqueIndex"`
	PasswordHash    string     `gorm:"column:password_hash" json:"-"`
	BirthDate       *time.Time `gorm:"column:birth_date"`
	Municipality    string     `gorm:"column:municipality"`
	Contact         string     `gorm:"column:contact"`
	ProfileImageURL string     `gorm:"column:profile_image_url"`
	EarnedBalance   int64      `gorm:"column:earned_balance"`
	CreatedAt       time.Time  `gorm:"column:created_at"`
	UpdatedAt       time.Time  `gorm:"column:updated_at"`
}

type Admin struct {
	ID           string    `gorm:"column:id;primaryKey"`
	Name         string    `gorm:"column:name"`
	Email        string    `gorm:"column:email;uniqueIndex"`
	PasswordHash string    `gorm:"column:password_hash" json:"-"`
	CreatedAt    time.Time `gorm:"column:created_at"`
}

const (
	RechargeStatusPending   = "pending"
	RechargeStatusConfirmed = "confirmed"
)

// Recharge is a client top-up. Created pending, credited to the
// recharge balance on payment confirmation.
type Recharge struct {
	ID              string         `gorm:"column:id;primaryKey"`
	Code            string         `gorm:"column:code;uniqueIndex"`
	ClientID        string         `gorm:"column:client_id;index"`
	Amount          int64          `gorm:"column:amount"`
	Status          string         `gorm:"column:status"`
	ProviderPayload datatypes.JSON `gorm:"column:provider_payload"`
	CreatedAt       time.Time      `gorm:"column:created_at"`
	ConfirmedAt     *time.Time     `gorm:"column:confirmed_at"`
}
