package taskname

const (
	// Promotion tasks
	PromotionFinished = "promotion:finished"

	// Notification tasks
	NotificationEmail = "notification:email"
	NotificationPush  = "notification:push"

	// Withdrawal tasks
	WithdrawalRequested = "withdrawal:requested"
	WithdrawalReviewed  = "withdrawal:reviewed"

	// Media tasks
	MediaProbe = "media:probe"
)
