package middleware

import (
	"context"

	"github.com/gin-gonic/gin"
)

type channelKey struct{}

var ChannelContextKey = channelKey{}

// Channel tags the request context with the originating client channel
// based on the X-Client-Channel header.
func Channel() gin.HandlerFunc {
	return func(c *gin.Context) {
		channel := c.GetHeader("X-Client-Channel")
		switch channel {
		case "mobile", "web":
		default:
			channel = "api"
		}

		ctx := context.WithValue(c.Request.Context(), ChannelContextKey, channel)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// FromChannel reports whether the context originates from the given channel.
func FromChannel(ctx context.Context, want string) bool {
	ch, ok := ctx.Value(ChannelContextKey).(string)
	return ok && ch == want
}

// GetChannel returns the current channel, defaulting to "api".
func GetChannel(ctx context.Context) string {
	ch, ok := ctx.Value(ChannelContextKey).(string)
	if !ok {
		return "api"
	}
	return ch
}
