package turn

import (
	"github.com/gin-gonic/gin"
)

// Resolver derives the turn identity from an inbound request. Implementations
// typically read routing headers or authenticated session data.
type Resolver func(c *gin.Context) Info

// HeaderResolver reads the turn identity from the conventional
// X-Channel-ID, X-Conversation-ID and X-User-ID request headers.
func HeaderResolver(c *gin.Context) Info {
	return Info{
		ChannelID:      c.GetHeader("X-Channel-ID"),
		ConversationID: c.GetHeader("X-Conversation-ID"),
		UserID:         c.GetHeader("X-User-ID"),
	}
}

// Middleware installs a fresh turn into the request context so downstream
// handlers and state managers share one per-request bag.
func Middleware(resolve Resolver) gin.HandlerFunc {
	if resolve == nil {
		resolve = HeaderResolver
	}
	return func(c *gin.Context) {
		t := New(resolve(c))
		ctx := WithContext(c.Request.Context(), t)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
