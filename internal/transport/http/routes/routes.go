package routes

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/arklim/ticket-tracker/internal/core/port"
	"github.com/arklim/ticket-tracker/internal/infra/config"
	"github.com/arklim/ticket-tracker/internal/transport/http/handlers"
	"github.com/arklim/ticket-tracker/internal/transport/http/middleware"
	"github.com/arklim/ticket-tracker/internal/usecase"
)

// ServiceSet groups the services the HTTP layer depends on.
type ServiceSet struct {
	Permissions  *usecase.PermissionResolver
	Memberships  *usecase.MembershipService
	Dependencies *usecase.DependencyService
	Completion   *usecase.CompletionGate
}

// Dependencies encapsulates the objects required to register routes.
type Dependencies struct {
	Config         *config.AppConfig
	Logger         *zap.Logger
	Services       ServiceSet
	Tickets        port.TicketReader
	Verifier       middleware.TokenVerifier
	WriteThrottle  *middleware.WriteThrottle
	HTTPMetrics    *middleware.HTTPMetrics
	Tracing        *middleware.TracingOptions
	MetricsHandler http.Handler
	Database       DatabaseChecker
	Cache          CacheChecker
}

// DatabaseChecker exposes readiness behaviour for database connections.
type DatabaseChecker interface {
	Ping(ctx context.Context) error
}

// CacheChecker exposes readiness behaviour for cache backends.
type CacheChecker interface {
	HealthCheck(ctx context.Context) error
}

// Register configures the Gin engine with routes and middleware. The API group is only
// mounted when the services and a token verifier are supplied.
func Register(deps Dependencies) *gin.Engine {
	if deps.Config != nil && deps.Config.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	if deps.Tracing != nil {
		r.Use(middleware.Tracing(*deps.Tracing))
	}
	r.Use(middleware.EnrichContext())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(deps.Logger))
	r.Use(deps.HTTPMetrics.Handler())

	healthOptions := make([]handlers.HealthOption, 0, 2)
	if deps.Database != nil {
		healthOptions = append(healthOptions, handlers.WithReadinessCheck("database", deps.Database.Ping))
	}
	if deps.Cache != nil {
		healthOptions = append(healthOptions, handlers.WithReadinessCheck("redis", deps.Cache.HealthCheck))
	}
	healthHandler := handlers.NewHealthHandler(healthOptions...)

	r.GET("/healthz", healthHandler.Status)
	r.GET("/readyz", healthHandler.Readiness)

	metricsHandler := deps.MetricsHandler
	if metricsHandler == nil {
		metricsHandler = promhttp.Handler()
	}
	r.GET("/metrics", gin.WrapH(metricsHandler))

	services := deps.Services
	if deps.Verifier == nil || services.Permissions == nil || services.Memberships == nil ||
		services.Dependencies == nil || services.Completion == nil {
		return r
	}

	api := r.Group("/api/v1")
	api.Use(middleware.RequireAuth(deps.Verifier))
	api.Use(deps.WriteThrottle.Handler())
	{
		project := api.Group("/projects/:projectID")

		handlers.NewPermissionHandler(services.Permissions).RegisterRoutes(project)
		handlers.NewMembershipHandler(services.Memberships, services.Permissions).RegisterRoutes(project)
		handlers.NewCompletionHandler(services.Completion, services.Permissions).RegisterRoutes(project)
		handlers.NewDependencyHandler(services.Dependencies, deps.Tickets, services.Permissions).RegisterRoutes(api)
	}

	return r
}
