package wallet

import "time"

// PlatformWalletID is the singleton commission wallet row.
const PlatformWalletID = "platform"

type Wallet struct {
	ID        string    `gorm:"column:id;primaryKey"`
	Balance   int64     `gorm:"column:balance"`
	CreatedAt time.Time `gorm:"column:created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

// Entry is the audit trail of every commission credit.
type Entry struct {
	ID          string    `gorm:"column:id;primaryKey"`
	WalletID    string    `gorm:"column:wallet_id;index"`
	Amount      int64     `gorm:"column:amount"`
	ReferenceID string    `gorm:"column:reference_id;index"`
	Description string    `gorm:"column:description"`
	CreatedAt   time.Time `gorm:"column:created_at"`
}
