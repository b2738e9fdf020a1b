package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/geocoder89/idprint/internal/auth"
	"github.com/geocoder89/idprint/internal/config"
	"github.com/geocoder89/idprint/internal/domain/user"
	"github.com/geocoder89/idprint/internal/http/handlers"
	"github.com/geocoder89/idprint/internal/http/middlewares"
	"github.com/geocoder89/idprint/internal/observability"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

type Deps struct {
	Log      *slog.Logger
	Cfg      config.Config
	JWT      *auth.Manager
	Users    handlers.UserStore
	Sessions handlers.RefreshTokenStore
	Points   handlers.PointsService
	Checks   map[string]handlers.Check
	Prom     *observability.Prom
	Gatherer prometheus.Gatherer
}

func NewRouter(d Deps) *gin.Engine {
	if d.Cfg.Env != "dev" && d.Cfg.Env != "test" {
		gin.SetMode(gin.ReleaseMode)
	}
	handlers.UseJSONFieldNames()

	r := gin.New()
	r.HandleMethodNotAllowed = true

	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware(observability.ServiceName))
	r.Use(middlewares.RequestID())
	r.Use(middlewares.RequestLogger(d.Log))
	r.Use(middlewares.SecurityHeaders())
	r.Use(middlewares.CORSMiddleware(d.Cfg.CORSOrigins))
	if d.Prom != nil {
		r.Use(d.Prom.GinHandleMiddleware())
	}

	r.NoMethod(func(ctx *gin.Context) {
		handlers.RespondError(ctx, http.StatusMethodNotAllowed, "method_not_allowed", "Method not allowed", nil)
	})
	r.NoRoute(func(ctx *gin.Context) {
		handlers.RespondNotFound(ctx, "Route not found")
	})

	health := handlers.NewHealthHandler(d.Checks)
	r.GET("/healthz", health.Healthz)
	r.GET("/readyz", health.Readyz)

	if d.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{})))
	}

	authMW := middlewares.NewAuthMiddleware(d.JWT)
	authLimiter := middlewares.NewRateLimiter(10, time.Minute)
	chargeLimiter := middlewares.NewRateLimiter(30, time.Minute)

	authHandler := handlers.NewAuthHandler(d.Users, d.Sessions, d.JWT, d.Cfg)
	authGroup := r.Group("/auth")
	{
		authGroup.POST("/signup", authLimiter.Middleware(middlewares.KeyByIP), middlewares.RequireJSON(), authHandler.SignUp)
		authGroup.POST("/login", authLimiter.Middleware(middlewares.KeyByIP), middlewares.RequireJSON(), authHandler.Login)
		authGroup.POST("/refresh", authHandler.Refresh)
		authGroup.POST("/logout", authHandler.Logout)
	}

	pointsHandler := handlers.NewPointsHandler(d.Points)

	secured := r.Group("/")
	secured.Use(authMW.RequireAuth())
	{
		secured.GET("/points", pointsHandler.GetPoints)
		secured.GET("/points/history", pointsHandler.History)

		upload := []gin.HandlerFunc{
			chargeLimiter.Middleware(middlewares.KeyByUserOrIP),
			middlewares.MaxBodyBytes(d.Cfg.MaxUploadBytes),
		}
		secured.POST("/points/charge-and-process", append(upload, pointsHandler.ChargeAndProcess)...)
		secured.POST("/process-pdf", append(upload, pointsHandler.ProcessPDF)...)
		secured.POST("/process-screenshots", append(upload, pointsHandler.ProcessScreenshots)...)
	}

	admin := r.Group("/admin")
	admin.Use(authMW.RequireAuth(), middlewares.RequireRole(user.RoleAdmiral))
	{
		admin.POST("/add-points", middlewares.RequireJSON(), pointsHandler.AddPoints)
	}

	return r
}
