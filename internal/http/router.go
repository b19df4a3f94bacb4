package http

import (
	"time"

	"github.com/geocoder89/accounthub/internal/config"
	"github.com/geocoder89/accounthub/internal/http/handlers"
	"github.com/geocoder89/accounthub/internal/http/middlewares"
	"github.com/geocoder89/accounthub/internal/observability"
	"github.com/geocoder89/accounthub/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

const maxUploadBytes = 20 << 20 // multipart bodies carry images

type Deps struct {
	Cfg      config.Config
	JWT      middlewares.TokenVerifier
	Sessions *service.SessionService
	Profiles *service.ProfileService
	Prom     *observability.Prom
	PromReg  *prometheus.Registry

	// named readiness probes
	Pings map[string]func() error
}

func NewRouter(deps Deps) *gin.Engine {
	if deps.Cfg.Env != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()

	// middleware

	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware("accounthub"))
	r.Use(middlewares.RequestID())
	r.Use(middlewares.RequestLogger())
	r.Use(middlewares.SecurityHeaders())
	r.Use(middlewares.MaxBodyBytes(maxUploadBytes))

	if len(deps.Cfg.CORSAllowedOrigins) > 0 {
		r.Use(middlewares.CORSMiddleware(deps.Cfg.CORSAllowedOrigins))
	}

	if deps.Prom != nil {
		r.Use(deps.Prom.GinHandleMiddleware())
	}

	// health + metrics
	h := handlers.NewHealthHandler(deps.Pings)
	r.GET("/healthz", h.Healthz)
	r.GET("/readyz", h.Readyz)

	if deps.PromReg != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.PromReg, promhttp.HandlerOpts{})))
	}

	sessionHandler := handlers.NewSessionHandler(deps.Sessions, deps.Cfg)
	usersHandler := handlers.NewUsersHandler(deps.Profiles)

	authMW := middlewares.NewAuthMiddleware(deps.JWT)

	// credential endpoints get a tight per-IP window
	authLimiter := middlewares.NewRateLimiter(10, time.Minute)
	userLimiter := middlewares.NewRateLimiter(60, time.Minute)

	users := r.Group("/api/v1/users")

	users.POST("/register",
		authLimiter.RateLimiterMiddleware(middlewares.KeyByIP),
		usersHandler.Register,
	)
	users.POST("/login",
		authLimiter.RateLimiterMiddleware(middlewares.KeyByIP),
		middlewares.RequireJSON(),
		sessionHandler.Login,
	)
	users.POST("/refresh-token",
		authLimiter.RateLimiterMiddleware(middlewares.KeyByIP),
		sessionHandler.Refresh,
	)

	secured := users.Group("")
	secured.Use(authMW.RequireAuth())
	secured.Use(userLimiter.RateLimiterMiddleware(middlewares.KeyByUserOrIP))

	secured.POST("/logout", sessionHandler.Logout)
	secured.POST("/change-password", middlewares.RequireJSON(), usersHandler.ChangePassword)
	secured.GET("/current-user", usersHandler.CurrentUser)
	secured.PATCH("/account-details", middlewares.RequireJSON(), usersHandler.UpdateAccountDetails)
	secured.PATCH("/avatar", usersHandler.UpdateAvatar)
	secured.PATCH("/cover-image", usersHandler.UpdateCoverImage)

	return r
}
