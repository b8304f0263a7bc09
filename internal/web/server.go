// Package web is the HTTP surface: the webhook receiver, the public gallery
// API, the admin API and static media serving.
package web

import (
	"context"
	"crypto/subtle"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mymmrac/telego"
	"go.uber.org/zap"

	"tgallery/internal/ratelimit"
	"tgallery/internal/storage"
)

const (
	commentLimit = 5
	likeLimit    = 10
	limitWindow  = time.Minute
)

// UpdateDispatcher consumes decoded webhook updates. Implemented by the
// ingest dispatcher.
type UpdateDispatcher interface {
	Dispatch(ctx context.Context, update telego.Update) error
}

// Deps holds the dependencies required by the Server.
type Deps struct {
	Store      *storage.Storage
	Dispatcher UpdateDispatcher
	Logger     *zap.Logger
	AdminKey   string
	UploadDir  string
	Debug      bool
}

// Server serves the webhook and the gallery API over one gin engine.
type Server struct {
	store      *storage.Storage
	dispatcher UpdateDispatcher
	logger     *zap.Logger
	adminKey   string

	commentLimiter *ratelimit.Limiter
	likeLimiter    *ratelimit.Limiter

	engine *gin.Engine
}

// NewServer creates the HTTP server from its dependencies.
func NewServer(deps Deps) (*Server, error) {
	if deps.Store == nil || deps.Dispatcher == nil || deps.Logger == nil {
		return nil, fmt.Errorf("server dependencies cannot be nil")
	}
	if deps.AdminKey == "" {
		return nil, fmt.Errorf("admin key cannot be empty")
	}

	if !deps.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		store:          deps.Store,
		dispatcher:     deps.Dispatcher,
		logger:         deps.Logger,
		adminKey:       deps.AdminKey,
		commentLimiter: ratelimit.New(ratelimit.Limit{Count: commentLimit, Window: limitWindow}),
		likeLimiter:    ratelimit.New(ratelimit.Limit{Count: likeLimit, Window: limitWindow}),
	}

	engine := gin.New()
	engine.Use(gin.Recovery(), s.requestLog())
	engine.Static("/uploads", deps.UploadDir)

	engine.POST("/webhook", s.handleWebhook)

	api := engine.Group("/api")
	{
		api.GET("/posts", s.handleListPosts)
		api.GET("/posts/:id", s.handleGetPost)
		api.POST("/posts/:id/comments", s.handleAddComment)
		api.POST("/posts/:id/like", s.handleLike)
		api.POST("/posts/:id/favorite", s.handleFavorite)
		api.POST("/posts/:id/hide", s.handleHide)
		api.GET("/users/:viewer/favorites", s.handleFavoritesList)
		api.GET("/users/:viewer/activity", s.handleActivity)

		admin := api.Group("/admin", s.requireAdminKey())
		{
			admin.PUT("/posts/:id/description", s.handleSetDescription)
			admin.DELETE("/posts/:id", s.handleDeletePost)
			admin.DELETE("/comments/:id", s.handleDeleteComment)
		}
	}

	s.engine = engine
	return s, nil
}

// Handler exposes the router for an http.Server.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// requireAdminKey gates admin routes on an exact X-Admin-Key match. A wrong or
// missing key aborts before any state change.
func (s *Server) requireAdminKey() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader("X-Admin-Key")
		if subtle.ConstantTimeCompare([]byte(key), []byte(s.adminKey)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Next()
	}
}

func (s *Server) requestLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("HTTP request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)))
	}
}

// withRepair runs op and, when it fails with schema drift, re-applies
// migrations once and retries. Covers databases migrated by an older binary.
func (s *Server) withRepair(op func() error) error {
	err := op()
	if err == nil || !storage.IsSchemaError(err) {
		return err
	}
	if repairErr := s.store.Repair(); repairErr != nil {
		s.logger.Error("Schema repair failed", zap.Error(repairErr))
		return err
	}
	return op()
}

// identity buckets rate-limited requests: the supplied viewer identity when
// present, the client address otherwise.
func identity(c *gin.Context, viewerID string) string {
	if viewerID != "" {
		return viewerID
	}
	return c.ClientIP()
}
