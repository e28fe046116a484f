package withdrawal

import "time"

const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"
)

// Withdrawal reserves the requested amount at creation: the user balance
// is debited immediately and restored only on rejection.
type Withdrawal struct {
	ID          string     `gorm:"column:id;primaryKey"`
	Code        string     `gorm:"column:code;uniqueIndex"`
	UserID      string     `gorm:"column:user_id;index"`
	Amount      int64      `gorm:"column:amount"`
	Operator    string     `gorm:"column:operator"`
	Phone       string     `gorm:"column:phone"`
	Status      string     `gorm:"column:status;index"`
	RequestedAt time.Time  `gorm:"column:requested_at"`
	ProcessedAt *time.Time `gorm:"column:processed_at"`
	AdminID     string     `gorm:"column:admin_id"`
}
