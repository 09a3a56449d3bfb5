// Package server contains the HTTP handlers and routing for the interaction API.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "rebound/docs" // swagger docs
	"rebound/internal/cache"
	"rebound/internal/config"
	"rebound/internal/database"
	"rebound/internal/middleware"
	"rebound/internal/models"
	"rebound/internal/notifications"
	"rebound/internal/observability"
	"rebound/internal/repository"
	"rebound/internal/service"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/swagger"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Server holds all dependencies and provides handlers
type Server struct {
	config         *config.Config
	db             *gorm.DB
	redis          *redis.Client
	app            *fiber.App
	promMiddleware *fiberprometheus.FiberPrometheus
	identity       *middleware.IdentityResolver
	validate       *validator.Validate
	notifier       *notifications.Notifier
	interactions   *service.InteractionService
	comments       *service.CommentService
	mypage         *service.MyPageService
}

// NewServer connects to the database and Redis and wires every service.
func NewServer(cfg *config.Config) (*Server, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	redisClient := cache.InitRedis(cfg.RedisURL)

	return NewServerWithDeps(cfg, db, redisClient)
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// redisClient may be nil: caching, events and token revocation are then skipped.
func NewServerWithDeps(cfg *config.Config, db *gorm.DB, redisClient *redis.Client) (*Server, error) {
	if db == nil {
		return nil, fmt.Errorf("database is required")
	}

	posts := repository.NewPostRepository(db)
	comments := repository.NewCommentRepository(db)
	postReactions := repository.NewPostReactionLedger(db)
	commentReactions := repository.NewCommentReactionLedger(db)
	bookmarks := repository.NewBookmarkLedger(db)

	server := &Server{
		config:         cfg,
		db:             db,
		redis:          redisClient,
		promMiddleware: middleware.InitMetrics("rebound-api"),
		identity:       middleware.NewIdentityResolver(cfg, redisClient),
		validate:       newValidator(),
	}

	var events service.EventPublisher
	if redisClient != nil {
		server.notifier = notifications.NewNotifier(redisClient)
		events = server.notifier
	}

	runTx := service.NewTxRunner(db)
	engine := service.NewToggleEngine(runTx)
	server.interactions = service.NewInteractionService(engine, posts, comments, postReactions, bookmarks, events)
	server.comments = service.NewCommentService(runTx, comments, posts, commentReactions, events, cfg.CommentMaxLength)
	server.mypage = service.NewMyPageService(postReactions, bookmarks, comments)

	return server, nil
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	app.Use(recover.New())

	app.Use(requestid.New(requestid.Config{
		Generator: observability.GenerateCorrelationID,
	}))

	// Tracing before the context middleware so the trace id reaches the logger.
	app.Use(middleware.TracingMiddleware())
	app.Use(middleware.ContextMiddleware())

	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}

	app.Use(helmet.New())

	app.Use(middleware.StructuredLogger())

	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:5173,http://localhost:3000"
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: !strings.Contains(origins, "*"),
		MaxAge:           86400,
	}))
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)

	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}

	app.Get("/api/swagger/*", swagger.HandlerDefault)

	api := app.Group("/api/v1")
	requireIdentity := s.identity.RequireIdentity()
	optionalIdentity := s.identity.OptionalIdentity()

	toggleLimit := s.config.RateLimitTogglesPerMinute
	if toggleLimit <= 0 {
		toggleLimit = 60
	}
	toggleRate := middleware.RateLimit(s.redis, toggleLimit, time.Minute, "toggle")

	// Specific /posts/summaries before the /posts/:postId routes.
	posts := api.Group("/posts")
	posts.Get("/summaries", optionalIdentity, s.GetPostSummaries)
	posts.Get("/:postId/my-interactions", requireIdentity, s.GetMyInteractions)
	posts.Post("/:postId/reactions/heart", requireIdentity, toggleRate, s.TogglePostHeart)
	posts.Put("/:postId/reactions/heart", requireIdentity, toggleRate, s.LikePost)
	posts.Delete("/:postId/reactions/heart", requireIdentity, toggleRate, s.UnlikePost)
	posts.Post("/:postId/bookmarks", requireIdentity, toggleRate, s.ToggleBookmark)
	posts.Put("/:postId/bookmarks", requireIdentity, toggleRate, s.AddBookmark)
	posts.Delete("/:postId/bookmarks", requireIdentity, toggleRate, s.RemoveBookmark)
	posts.Get("/:postId/comments", s.GetComments)
	posts.Get("/:postId/comments/roots", s.GetRootComments)
	posts.Post("/:postId/comments", requireIdentity, middleware.RateLimit(
		s.redis, 10, time.Minute, "create_comment"), s.CreateComment)

	comments := api.Group("/comments")
	comments.Get("/:commentId/replies", s.GetReplies)
	comments.Post("/:commentId/reactions/heart", requireIdentity, toggleRate, s.ToggleCommentHeart)
	comments.Delete("/:commentId", requireIdentity, s.DeleteComment)

	api.Post("/reactions/toggle", requireIdentity, toggleRate, s.ToggleReaction)

	mypage := api.Group("/mypage", requireIdentity)
	mypage.Get("/likes", s.GetMyLikedPosts)
	mypage.Get("/bookmarks", s.GetMyBookmarkedPosts)
	mypage.Get("/comments", s.GetMyCommentedPosts)
}

// LivenessCheck handles liveness probe requests
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// ReadinessCheck handles readiness probe requests
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	dbStatus := "healthy"
	sqlDB, err := s.db.DB()
	if err != nil {
		dbStatus = "unhealthy"
	} else if err := sqlDB.PingContext(ctx); err != nil {
		dbStatus = "unhealthy"
	}

	// Redis only backs caching and events, so its absence degrades but does
	// not fail readiness.
	redisStatus := "unavailable"
	if s.redis != nil {
		redisStatus = "healthy"
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy"
		}
	}

	status := fiber.StatusOK
	overallStatus := "healthy"
	if dbStatus != "healthy" {
		status = fiber.StatusServiceUnavailable
		overallStatus = "unhealthy"
	} else if redisStatus != "healthy" {
		overallStatus = "degraded"
	}

	return c.Status(status).JSON(fiber.Map{
		"status": overallStatus,
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
		},
		"time": time.Now(),
	})
}

// App builds the Fiber application with middleware and routes installed.
func (s *Server) App() *fiber.App {
	if s.app != nil {
		return s.app
	}
	app := fiber.New(fiber.Config{
		AppName: "Rebound Interaction API",
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			if fe, ok := err.(*fiber.Error); ok {
				return c.Status(fe.Code).JSON(models.ErrorResponse{Error: fe.Message})
			}
			middleware.Logger.ErrorContext(c.UserContext(), "unhandled error", slog.String("error", err.Error()))
			return models.RespondWithError(c, models.StatusFor(err), err)
		},
	})
	s.SetupMiddleware(app)
	s.SetupRoutes(app)
	s.app = app
	return app
}

// Start starts the server
func (s *Server) Start() error {
	app := s.App()
	middleware.Logger.Info("server starting", slog.String("port", s.config.Port))
	return app.Listen(":" + s.config.Port)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			middleware.Logger.Error("error shutting down HTTP server", slog.String("error", err.Error()))
		}
	}

	if sqlDB, err := s.db.DB(); err == nil {
		if cerr := sqlDB.Close(); cerr != nil {
			middleware.Logger.Error("error closing sql DB", slog.String("error", cerr.Error()))
		}
	}

	if s.redis != nil {
		if rerr := s.redis.Close(); rerr != nil {
			middleware.Logger.Error("error closing redis", slog.String("error", rerr.Error()))
		}
	}

	middleware.Logger.Info("server shutdown complete")
	return nil
}
