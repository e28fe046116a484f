package rediskey

import "fmt"

const (
	UserPrefix       = "user"
	UserEmailPrefix  = "user:email"
	PresenceSetKey   = "presence:online"
	PromotionPrefix  = "promotion"
	PromotionFeedKey = "promotion:feed"
)

func NamespaceKey(namespace, key string) string {
	return fmt.Sprintf("%s:%s", namespace, key)
}

// BuildUserIDKey returns "user:{userID}"
func BuildUserIDKey(userID string) string {
	return NamespaceKey(UserPrefix, userID)
}

// BuildUserEmailKey returns "user:email:{email}"
func BuildUserEmailKey(email string) string {
	return NamespaceKey(UserEmailPrefix, email)
}

// BuildPromotionKey returns "promotion:{promotionID}"
func BuildPromotionKey(promotionID string) string {
	return NamespaceKey(PromotionPrefix, promotionID)
}
