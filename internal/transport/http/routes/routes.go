package routes

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/XCEIN/consyf-sub000/internal/infra/config"
	"github.com/XCEIN/consyf-sub000/internal/infra/ratelimit"
	"github.com/XCEIN/consyf-sub000/internal/transport/http/handlers"
	"github.com/XCEIN/consyf-sub000/internal/transport/http/middleware"
)

// ServiceSet groups the services the HTTP layer depends on.
type ServiceSet struct {
	Credentials   CredentialService
	PasswordReset handlers.PasswordResetService
	Accounts      handlers.AccountService
	Posts         handlers.PostService
	Notifications handlers.NotificationService
}

// CredentialService is the credential manager as seen by the router: sign-up,
// login and bearer token resolution.
type CredentialService interface {
	handlers.RegistrationService
	handlers.LoginService
	middleware.Authenticator
}

// Dependencies encapsulates the objects required to register routes.
type Dependencies struct {
	Config      *config.AppConfig
	Logger      *zap.Logger
	RateLimiter *middleware.RateLimiter
	Metrics     *middleware.HTTPMetrics
	Gatherer    prometheus.Gatherer
	Services    ServiceSet
	Database    DatabaseChecker
	Cache       CacheChecker
}

// DatabaseChecker exposes readiness behaviour for database connections.
type DatabaseChecker interface {
	Ping(ctx context.Context) error
}

// CacheChecker exposes readiness behaviour for cache backends.
type CacheChecker interface {
	HealthCheck(ctx context.Context) error
}

// Register configures the Gin engine with routes and middleware.
func Register(deps Dependencies) *gin.Engine {
	if deps.Config.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.Tracing(deps.Config.App.Name))
	r.Use(middleware.EnrichContext())
	r.Use(middleware.Logger(deps.Logger))
	r.Use(middleware.CORS(deps.Config.App.CORSOrigins))
	r.Use(deps.Metrics.Handler())

	healthOptions := make([]handlers.HealthOption, 0, 2)
	if deps.Database != nil {
		healthOptions = append(healthOptions, handlers.WithReadinessCheck("postgres", deps.Database.Ping))
	}
	if deps.Cache != nil {
		healthOptions = append(healthOptions, handlers.WithReadinessCheck("redis", deps.Cache.HealthCheck))
	}
	healthHandler := handlers.NewHealthHandler(healthOptions...)

	r.GET("/healthz", healthHandler.Status)
	r.GET("/readyz", healthHandler.Readiness)

	gatherer := deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	services := deps.Services
	if services.Credentials == nil {
		return r
	}

	authMiddleware := middleware.RequireAuth(services.Credentials)
	public := buildPublicMiddlewares(deps)

	api := r.Group("/api/v1")
	{
		authGroup := api.Group("/auth", public...)
		handlers.NewRegistrationHandler(services.Credentials).RegisterRoutes(authGroup)
		authHandler := handlers.NewAuthHandler(services.Credentials)
		authGroup.POST("/login", authHandler.Login)

		if services.PasswordReset != nil {
			passwordGroup := api.Group("/password", public...)
			handlers.NewPasswordHandler(services.PasswordReset).RegisterRoutes(passwordGroup)
		}

		me := api.Group("/me", authMiddleware)
		me.GET("", authHandler.Me)
		if services.Accounts != nil {
			accountHandler := handlers.NewAccountHandler(services.Accounts)
			me.PATCH("/account-type", accountHandler.ChangeAccountType)
			me.PUT("/company", accountHandler.UpsertCompany)
		}

		if services.Posts != nil {
			postHandler := handlers.NewPostHandler(services.Posts)
			postHandler.RegisterRoutes(api.Group("/posts", authMiddleware))
			postHandler.RegisterModerationRoutes(api.Group("/admin/posts", authMiddleware, middleware.RequireAdmin()))
		}

		if services.Notifications != nil {
			handlers.NewNotificationHandler(services.Notifications).RegisterRoutes(api.Group("/notifications", authMiddleware))
		}
	}

	return r
}

// buildPublicMiddlewares throttles anonymous endpoints per client IP. The use
// cases apply their own per-email limits on top.
func buildPublicMiddlewares(deps Dependencies) []gin.HandlerFunc {
	if deps.RateLimiter == nil {
		return nil
	}
	rule := ratelimit.RulesFrom(deps.Config.RateLimit).PublicIP
	if !rule.Enabled() {
		return nil
	}
	return []gin.HandlerFunc{deps.RateLimiter.LimitByIP(rule)}
}
