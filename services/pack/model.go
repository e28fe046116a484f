package pack

import "time"

// Pack is a rate-card entry mapping a video duration range to the
// reward paid per qualifying view. Reference data, immutable once
// a promotion has bound to it.
type Pack struct {
	ID             string    `gorm:"column:id;primaryKey"`
	Name           string    `gorm:"column:name"`
	MinDurationSec int       `gorm:"column:min_duration_sec"`
	MaxDurationSec int       `gorm:"column:max_duration_sec"`
	RewardPerView  int64     `gorm:"column:reward_per_view"`
	CreatedAt      time.Time `gorm:"column:created_at"`
}
