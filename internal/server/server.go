package server

import (
	"net/http"
	"slices"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/forumx/backend/internal/auth"
	"github.com/forumx/backend/internal/config"
	"github.com/forumx/backend/internal/database"
	"github.com/forumx/backend/internal/handlers"
	"github.com/forumx/backend/internal/middleware"
	"github.com/forumx/backend/internal/payments"
)

type Server struct {
	cfg      *config.Config
	store    database.Store
	verifier auth.Verifier
	handler  *handlers.Handler
	logger   *zap.Logger
}

// New wires the handlers to their collaborators. gateway may be nil.
func New(cfg *config.Config, store database.Store, verifier auth.Verifier, gateway payments.Gateway, logger *zap.Logger) *Server {
	return &Server{
		cfg:      cfg,
		store:    store,
		verifier: verifier,
		handler:  handlers.NewHandler(cfg, store, gateway, logger),
		logger:   logger,
	}
}

// NewServer creates and configures a new HTTP server
func NewServer(cfg *config.Config, store database.Store, verifier auth.Verifier, gateway payments.Gateway, logger *zap.Logger) *http.Server {
	if cfg.Production() {
		gin.SetMode(gin.ReleaseMode)
	}
	s := New(cfg, store, verifier, gateway, logger)

	return &http.Server{
		Addr:         "0.0.0.0:" + cfg.Port,
		Handler:      s.RegisterRoutes(),
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
}

// RegisterRoutes sets up all application routes
func (s *Server) RegisterRoutes() *gin.Engine {
	r := gin.New()
	r.Use(middleware.Recovery(s.logger), middleware.RequestLogger(s.logger))
	r.Use(cors.New(s.corsConfig()))

	r.GET("/health", s.healthHandler)

	h := s.handler
	authed := middleware.AuthMiddleware(s.verifier, s.logger)
	admin := middleware.AdminOnly(s.store, s.logger)

	// Public reads
	r.GET("/users/:email", h.User.GetUser)
	r.GET("/posts", h.Post.GetPosts)
	r.GET("/posts/popular", h.Post.GetPopularPosts)
	r.GET("/posts/page/:page", h.Post.GetPostsPage)
	r.GET("/posts/details/:id", h.Post.GetPostDetails)
	r.GET("/posts/by-tag/:tagName", h.Post.GetPostsByTag)
	r.GET("/posts/:id", h.Post.GetPost)
	r.GET("/user-posts/:email", h.Post.GetUserPosts)
	r.GET("/comments", h.Comment.GetComments)
	r.GET("/tags", h.Tag.GetTags)
	r.GET("/tags/search", h.Tag.SearchTags)
	r.GET("/tags/with-counts", h.Tag.GetTagCounts)
	r.GET("/announcements", h.Announcement.GetAnnouncements)
	r.GET("/announcements/count", h.Announcement.CountAnnouncements)
	r.GET("/stats/counts", h.Stats.GetCounts)

	// Protected routes (authentication required)
	protected := r.Group("")
	protected.Use(authed)
	{
		protected.POST("/users", h.User.UpsertUser)
		protected.PUT("/users/:email", h.User.UpdateUserProfile)

		protected.POST("/posts", h.Post.CreatePost)
		protected.DELETE("/posts/:id", h.Post.DeletePost)
		protected.PATCH("/posts/vote/:id", h.Post.VotePost)

		protected.POST("/comments", h.Comment.CreateComment)
		protected.PATCH("/comments/vote/:id", h.Comment.VoteComment)
		protected.PATCH("/comments/report/:id", h.Comment.ReportComment)
		protected.PATCH("/comments/:id", h.Comment.UpdateComment)
		protected.DELETE("/comments/:id", h.Comment.DeleteComment)

		protected.GET("/notifications/:userEmail", h.Notification.GetNotifications)
		protected.PATCH("/notifications/:id/read", h.Notification.MarkRead)
		protected.PATCH("/notifications/:id/read-all", h.Notification.MarkAllRead)
		protected.DELETE("/notifications/:email/clear-all", h.Notification.ClearAll)

		protected.POST("/tags", h.Tag.AddTags)

		protected.POST("/create-membership-intent", h.Payment.CreateMembershipIntent)
		protected.POST("/membership-payments", h.Payment.RecordMembershipPayment)
	}

	// Admin routes
	admins := r.Group("")
	admins.Use(authed, admin)
	{
		admins.GET("/users", h.User.ListUsers)
		admins.GET("/admin/stats", h.Stats.GetAdminStats)
		admins.PATCH("/admin/users/:id/toggle-role", h.User.ToggleRole)
		admins.GET("/admin/reports", h.Moderation.GetReports)
		admins.PATCH("/admin/reports/:id/action", h.Moderation.TakeAction)

		admins.DELETE("/tags/:id", h.Tag.DeleteTag)

		admins.POST("/announcements", h.Announcement.CreateAnnouncement)
		admins.PATCH("/announcements/:id", h.Announcement.UpdateAnnouncement)
		admins.DELETE("/announcements/:id", h.Announcement.DeleteAnnouncement)
	}

	return r
}

func (s *Server) corsConfig() cors.Config {
	cfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
		AllowHeaders:     []string{"Accept", "Authorization", "Content-Type", "X-Requested-With", handlers.IdempotencyKeyHeader, middleware.RequestIDHeader},
		ExposeHeaders:    []string{"Content-Length", middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(s.cfg.AllowedOrigins) == 0 || slices.Contains(s.cfg.AllowedOrigins, "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = s.cfg.AllowedOrigins
	}
	return cfg
}

func (s *Server) healthHandler(c *gin.Context) {
	stats := s.store.Health(c.Request.Context())
	status := http.StatusOK
	if stats["status"] != "up" {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, stats)
}
