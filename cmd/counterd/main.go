// Command counterd is a minimal demonstration server: it counts requests per
// conversation and remembers a per-user display name, persisting both through
// the configured storage backend. Run it against the default in-memory store
// or point TURNSTATE_STORE_DRIVER=redis at a real Redis.
package main

import (
	"context"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"

	"github.com/turnkit/turnstate/engine/infra/store"
	"github.com/turnkit/turnstate/engine/state"
	"github.com/turnkit/turnstate/engine/turn"
	"github.com/turnkit/turnstate/pkg/config"
	"github.com/turnkit/turnstate/pkg/logger"
)

func main() {
	if err := run(); err != nil {
		logger.NewLogger(nil).Error("counterd failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := logger.NewLogger(&logger.Config{
		Level: logger.LogLevel(cfg.Log.Level),
		JSON:  cfg.Log.JSON,
	})
	ctx := logger.ContextWithLogger(context.Background(), log)

	backend, cleanup, err := store.FromConfig(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	conversation, err := state.NewManager(&state.Config{
		Name:    "conversation",
		Backend: backend,
		Key:     state.KeyByConversation(),
	})
	if err != nil {
		return err
	}
	user, err := state.NewManager(&state.Config{
		Name:    "user",
		Backend: backend,
		Key:     state.KeyByUser(),
	})
	if err != nil {
		return err
	}

	counter, err := state.NewProperty[int](conversation, "count")
	if err != nil {
		return err
	}
	displayName, err := state.NewProperty[string](user, "display_name")
	if err != nil {
		return err
	}

	router := gin.New()
	router.Use(func(c *gin.Context) {
		c.Request = c.Request.WithContext(logger.ContextWithLogger(c.Request.Context(), log))
		c.Next()
	})
	router.Use(turn.Middleware(turn.HeaderResolver))
	router.Use(state.Middleware(conversation, user))

	router.POST("/count", func(c *gin.Context) {
		reqCtx := c.Request.Context()
		t, err := turn.FromContext(reqCtx)
		if err != nil {
			_ = c.AbortWithError(http.StatusInternalServerError, err)
			return
		}
		n, err := counter.Get(reqCtx, t, func() int { return 0 })
		if err != nil {
			_ = c.AbortWithError(http.StatusInternalServerError, err)
			return
		}
		if err := counter.Set(reqCtx, t, n+1); err != nil {
			_ = c.AbortWithError(http.StatusInternalServerError, err)
			return
		}
		name, err := displayName.Get(reqCtx, t, func() string { return "stranger" })
		if err != nil {
			_ = c.AbortWithError(http.StatusInternalServerError, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"count": n + 1, "user": name})
	})

	router.PUT("/name", func(c *gin.Context) {
		reqCtx := c.Request.Context()
		t, err := turn.FromContext(reqCtx)
		if err != nil {
			_ = c.AbortWithError(http.StatusInternalServerError, err)
			return
		}
		var body struct {
			Name string `json:"name" binding:"required"`
		}
		if err := c.ShouldBindJSON(&body); err != nil {
			_ = c.AbortWithError(http.StatusBadRequest, err)
			return
		}
		if err := displayName.Set(reqCtx, t, body.Name); err != nil {
			_ = c.AbortWithError(http.StatusInternalServerError, err)
			return
		}
		c.Status(http.StatusNoContent)
	})

	log.Info("counterd listening", "addr", ":8080", "driver", cfg.Store.Driver)
	return router.Run(":8080")
}
