package state

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/turnkit/turnstate/engine/turn"
	"github.com/turnkit/turnstate/pkg/logger"
)

// Middleware applies the pipeline-boundary contract to an HTTP request: each
// manager is force-loaded before the handlers run and conditionally saved
// after they return. Saves are skipped when a handler recorded an error, so
// failed turns never flush partial state. Expects turn.Middleware to have
// installed a turn on the request context.
func Middleware(managers ...*Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		t, err := turn.FromContext(ctx)
		if err != nil {
			_ = c.AbortWithError(http.StatusInternalServerError, err)
			return
		}
		for _, m := range managers {
			if err := m.Load(ctx, t, true); err != nil {
				_ = c.AbortWithError(http.StatusInternalServerError, err)
				return
			}
		}
		c.Next()
		if len(c.Errors) > 0 {
			return
		}
		for _, m := range managers {
			if err := m.Save(ctx, t, false); err != nil {
				logger.FromContext(ctx).Error("failed to save state after turn",
					"manager", m.Name(), "error", err)
				_ = c.Error(err)
			}
		}
	}
}
