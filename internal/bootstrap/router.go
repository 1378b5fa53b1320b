package bootstrap

import (
	"context"
	"time"

	"firebase.google.com/go/v4/auth"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	activityhttp "github.com/tallyhq/tally-backend/internal/activity/http"
	httpapi "github.com/tallyhq/tally-backend/internal/api/http"
	"github.com/tallyhq/tally-backend/internal/api/http/middleware"
	tallyauth "github.com/tallyhq/tally-backend/internal/auth"
	authmw "github.com/tallyhq/tally-backend/internal/auth/middleware"
	billinghttp "github.com/tallyhq/tally-backend/internal/billing/http"
	clientshttp "github.com/tallyhq/tally-backend/internal/clients/http"
	invoiceshttp "github.com/tallyhq/tally-backend/internal/invoices/http"
	"github.com/tallyhq/tally-backend/internal/logging"
	portalhttp "github.com/tallyhq/tally-backend/internal/portal/http"
	projectshttp "github.com/tallyhq/tally-backend/internal/projects/http"
	usershttp "github.com/tallyhq/tally-backend/internal/users/http"
)

type RouterDeps struct {
	ServiceName string
	Version     string
	CORSOrigins []string
	DB          *pgxpool.Pool // optional, health only
	Redis       *redis.Client // optional, health only
	Verifier    *auth.Client  // nil selects the X-User-Id dev identity
	Services    *Services
	Log         logging.Logger
}

// Public routes get a small per-IP budget: 5 req/s with bursts of 20.
const (
	publicRatePerSecond = 5
	publicRateBurst     = 20
)

func BuildRouter(dep RouterDeps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestIDMiddleware(dep.Log))
	r.Use(cors.New(cors.Config{
		AllowOrigins:     dep.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", middleware.HeaderRequestID},
		ExposeHeaders:    []string{middleware.HeaderRequestID},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	var db, rdb httpapi.Pinger
	if dep.DB != nil {
		db = dep.DB
	}
	if dep.Redis != nil {
		rdb = httpapi.PingerFunc(func(ctx context.Context) error { return dep.Redis.Ping(ctx).Err() })
	}
	httpapi.NewHealthHandler(dep.ServiceName, dep.Version, db, rdb).RegisterRoutes(r)

	svc := dep.Services
	limiter := middleware.RateLimit(middleware.NewIPRateLimiter(publicRatePerSecond, publicRateBurst))

	billingHandler := billinghttp.New(svc.Billing, svc.Reconciler, dep.Log)
	portalHandler := portalhttp.New(svc.Portal)

	billingHandler.RegisterWebhook(r.Group("/webhooks", limiter))
	portalHandler.RegisterPublic(r.Group("/portal", limiter))

	api := r.Group("/api/v1")
	if dep.Verifier != nil {
		api.Use(authmw.FirebaseAuthMiddleware(dep.Verifier))
	} else {
		dep.Log.Warn(context.Background(), "Firebase auth disabled, trusting X-User-Id headers")
		api.Use(tallyauth.DevUser())
	}
	api.Use(tallyauth.WithUser(svc.Users))

	usershttp.New(svc.Users).Register(api.Group("/users"))

	projects := projectshttp.New(svc.Projects)
	projects.Register(api.Group("/projects"))
	projects.RegisterTimeEntries(api.Group("/time-entries"))

	clientsGroup := api.Group("/clients")
	clientshttp.New(svc.Clients).Register(clientsGroup)
	portalHandler.RegisterOwner(clientsGroup)

	invoiceshttp.New(svc.Invoices).Register(api.Group("/invoices"))
	activityhttp.New(svc.Activity).Register(api.Group("/activity"))
	billingHandler.Register(api.Group("/billing"))

	return r
}
