// Package server contains the HTTP handlers and routing for the Vistagram API.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "vistagram/docs" // swagger docs
	"vistagram/internal/config"
	"vistagram/internal/database"
	"vistagram/internal/featureflags"
	"vistagram/internal/middleware"
	"vistagram/internal/models"
	"vistagram/internal/repository"
	"vistagram/internal/service"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/swagger"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
)

// ImageProcessor turns a raw upload into the data URL stored on a post.
type ImageProcessor interface {
	Process(ctx context.Context, in service.UploadImageInput) (*service.ProcessedImage, error)
	MaxUploadSizeBytes() int64
}

// Deps are the already-initialized collaborators of a Server. Mongo and
// Redis may be nil; readiness then reports them as unavailable.
type Deps struct {
	Mongo      *mongo.Client
	Redis      *redis.Client
	Users      repository.UserRepository
	Posts      repository.PostRepository
	Transactor repository.Transactor
	Flags      *featureflags.Manager
	Images     ImageProcessor
}

// Server holds all dependencies and provides handlers
type Server struct {
	config         *config.Config
	mongo          *mongo.Client
	redis          *redis.Client
	app            *fiber.App
	promMiddleware *fiberprometheus.FiberPrometheus
	auth           *middleware.Authenticator
	adminIDs       map[string]bool
	userRepo       repository.UserRepository
	postRepo       repository.PostRepository
	featureFlags   *featureflags.Manager
	images         ImageProcessor
	feedService    *service.FeedService
	postService    *service.PostService
	userService    *service.UserService
	followService  *service.FollowService
}

// NewServer wires the Mongo-backed repositories for db and builds a Server.
func NewServer(cfg *config.Config, client *mongo.Client, db *mongo.Database, rdb *redis.Client) (*Server, error) {
	flags, err := featureflags.Load(cfg.FeatureFlagsFile, cfg.FeatureFlags)
	if err != nil {
		return nil, fmt.Errorf("feature flags: %w", err)
	}

	return NewServerWithDeps(cfg, Deps{
		Mongo:      client,
		Redis:      rdb,
		Users:      repository.NewUserRepository(db),
		Posts:      repository.NewPostRepository(db),
		Transactor: repository.NewTransactor(client, cfg.MongoTransactions),
		Flags:      flags,
		Images:     service.NewImageService(cfg),
	}), nil
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// Use this in tests or when a bootstrap layer owns the connections.
func NewServerWithDeps(cfg *config.Config, deps Deps) *Server {
	if deps.Flags == nil {
		deps.Flags = featureflags.NewManager(cfg.FeatureFlags)
	}
	if deps.Images == nil {
		deps.Images = service.NewImageService(cfg)
	}

	admins := make(map[string]bool)
	for _, id := range cfg.AdminIDs() {
		admins[id] = true
	}

	return &Server{
		config:         cfg,
		mongo:          deps.Mongo,
		redis:          deps.Redis,
		promMiddleware: middleware.InitMetrics("vistagram-api"),
		auth:           middleware.NewAuthenticator(cfg.JWTSecret, deps.Redis),
		adminIDs:       admins,
		userRepo:       deps.Users,
		postRepo:       deps.Posts,
		featureFlags:   deps.Flags,
		images:         deps.Images,
		feedService:    service.NewFeedService(deps.Posts, deps.Users, deps.Flags, cfg.FeedPolicy),
		postService:    service.NewPostService(deps.Posts, deps.Users),
		userService:    service.NewUserService(deps.Users, deps.Posts),
		followService:  service.NewFollowService(deps.Users, deps.Transactor),
	}
}

// NewApp builds the Fiber application with middleware and routes installed.
func (s *Server) NewApp() *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:      "Vistagram API",
		BodyLimit:    int(s.images.MaxUploadSizeBytes()) + 1024*1024,
		ErrorHandler: s.ErrorHandler,
	})
	s.SetupMiddleware(app)
	s.SetupRoutes(app)
	return app
}

// ErrorHandler converts any error escaping a handler into the error envelope.
func (s *Server) ErrorHandler(c *fiber.Ctx, err error) error {
	status := models.StatusFor(err)
	if status >= fiber.StatusInternalServerError {
		middleware.Logger.ErrorContext(c.UserContext(), "unhandled error",
			slog.String("path", c.Path()),
			slog.String("error", err.Error()),
		)
	}
	return models.RespondWithError(c, status, err)
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	// Panic recovery
	app.Use(recover.New())

	// Request ID for tracing
	app.Use(requestid.New())

	if s.config.TracingEnabled {
		app.Use(middleware.TracingMiddleware())
	}

	// Context Middleware to propagate Request ID and User ID
	app.Use(middleware.ContextMiddleware())

	// Prometheus Metrics
	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}

	// Security headers
	app.Use(helmet.New())

	// Structured Logging middleware (after requestid and context middleware)
	app.Use(middleware.StructuredLogger())

	// CORS middleware should run before middlewares that can short-circuit (e.g. limiter)
	// so browser clients still receive CORS headers on error responses.
	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:5173,http://localhost:3000"
	}

	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: origins != "*",
		MaxAge:           86400, // 24 hours
	}))

	maxRequests := s.config.RateLimitMax
	if maxRequests <= 0 {
		maxRequests = 100
	}
	window := time.Duration(s.config.RateLimitWindowMin) * time.Minute
	if window <= 0 {
		window = 15 * time.Minute
	}
	app.Use(limiter.New(limiter.Config{
		Max:        maxRequests,
		Expiration: window,
		// Never rate-limit preflight requests; they should be handled by CORS.
		Next: func(c *fiber.Ctx) bool {
			return c.Method() == fiber.MethodOptions
		},
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return models.RespondWithError(c, fiber.StatusTooManyRequests,
				fiber.NewError(fiber.StatusTooManyRequests, "Too many requests from this IP, please try again later."))
		},
	}))

	app.Use(middleware.RequestTimeout(s.config.RequestTimeout()))
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	// Health checks
	app.Get("/health", s.HealthCheck)
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)

	// Metrics endpoint for Prometheus
	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}

	api := app.Group("/api")

	// Swagger documentation
	api.Get("/swagger/*", swagger.HandlerDefault)

	required := s.auth.Required()
	optional := s.auth.Optional()

	// Auth routes
	auth := api.Group("/auth")
	auth.Post("/register", middleware.RateLimit(s.redis, 5, 15*time.Minute, "register"), s.Register)
	auth.Post("/login", middleware.RateLimit(s.redis, 10, 15*time.Minute, "login"), s.Login)
	auth.Get("/me", required, s.Me)
	auth.Post("/logout", required, s.Logout)

	// Post routes; /feed must be registered before /:id
	posts := api.Group("/posts")
	posts.Get("/feed", required, s.GetFeed)
	posts.Get("/", optional, s.GetPosts)
	posts.Post("/", required, middleware.RateLimit(s.redis, 30, 15*time.Minute, "create_post"), s.CreatePost)
	posts.Get("/:id", optional, s.GetPost)
	posts.Post("/:id/like", required, s.LikePost)
	posts.Post("/:id/share", required, s.SharePost)
	posts.Post("/:id/comment", required, middleware.RateLimit(s.redis, 60, 15*time.Minute, "comment"), s.CommentPost)
	posts.Delete("/:id", required, s.DeletePost)

	// User routes; /me must be registered before /:id
	users := api.Group("/users")
	users.Get("/", optional, s.GetUsers)
	users.Put("/me", required, s.UpdateMyProfile)
	users.Get("/:id/posts", optional, s.GetUserPosts)
	users.Get("/:id/followers", s.GetFollowers)
	users.Get("/:id/following", s.GetFollowing)
	users.Post("/:id/follow", required, middleware.RateLimit(s.redis, 100, 15*time.Minute, "follow"), s.ToggleFollow)
	users.Get("/:id", optional, s.GetUserProfile)

	// Admin routes
	admin := api.Group("/admin", required, s.AdminRequired())
	admin.Get("/feature-flags", s.GetFeatureFlags)
	admin.Post("/reconcile-follows", s.ReconcileFollows)

	app.Use(func(c *fiber.Ctx) error {
		return models.RespondWithError(c, fiber.StatusNotFound,
			fiber.NewError(fiber.StatusNotFound, "Route not found"))
	})
}

// HealthCheck handles GET /health
func (s *Server) HealthCheck(c *fiber.Ctx) error {
	return s.ReadinessCheck(c)
}

// LivenessCheck handles liveness probe requests
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// ReadinessCheck reports whether the document store and Redis answer a ping.
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	dbStatus := "healthy"
	if s.mongo == nil {
		dbStatus = "unavailable"
	} else if err := database.Ping(ctx, s.mongo); err != nil {
		dbStatus = "unhealthy"
	}

	redisStatus := "healthy"
	if s.redis == nil {
		// The API degrades without Redis, so it does not fail readiness.
		redisStatus = "unavailable"
	} else if err := s.redis.Ping(ctx).Err(); err != nil {
		redisStatus = "unhealthy"
	}

	status := fiber.StatusOK
	overallStatus := "healthy"
	if dbStatus != "healthy" {
		status = fiber.StatusServiceUnavailable
		overallStatus = "unhealthy"
	}

	return c.Status(status).JSON(fiber.Map{
		"success": status == fiber.StatusOK,
		"message": "Vistagram API is running!",
		"status":  overallStatus,
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
		},
		"time": time.Now(),
	})
}

// AdminRequired returns middleware that rejects users not listed in
// ADMIN_USER_IDS. Must be placed after the auth middleware.
func (s *Server) AdminRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, ok := middleware.UserID(c)
		if !ok {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Authorization required"))
		}
		if !s.adminIDs[userID.Hex()] {
			return models.RespondWithError(c, fiber.StatusForbidden,
				models.NewForbiddenError("Admin access required"))
		}
		return c.Next()
	}
}

// Start builds the app and listens on the configured port.
func (s *Server) Start() error {
	s.app = s.NewApp()
	middleware.Logger.Info("server starting", slog.String("port", s.config.Port))
	return s.app.Listen(":" + s.config.Port)
}

// Shutdown gracefully shuts down the server and its connections.
func (s *Server) Shutdown(ctx context.Context) error {
	var errs []error

	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			errs = append(errs, fmt.Errorf("http server: %w", err))
		}
	}

	if err := database.Disconnect(s.mongo); err != nil {
		errs = append(errs, fmt.Errorf("mongo: %w", err))
	}

	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("redis: %w", err))
		}
	}

	middleware.Logger.Info("server shutdown complete")
	return errors.Join(errs...)
}
