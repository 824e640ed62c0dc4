package http

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/geocoder89/shopadmin/internal/catalog"
	"github.com/geocoder89/shopadmin/internal/guard"
	"github.com/geocoder89/shopadmin/internal/http/handlers"
	"github.com/geocoder89/shopadmin/internal/http/middlewares"
	"github.com/geocoder89/shopadmin/internal/lookup"
	"github.com/geocoder89/shopadmin/internal/notifications"
	"github.com/geocoder89/shopadmin/internal/observability"
	"github.com/geocoder89/shopadmin/internal/table"
)

const serviceName = "shopadmin"

// Deps is everything the router wires into handlers.
type Deps struct {
	Env    string
	Logger *slog.Logger

	Catalog   *catalog.Catalog
	Sessions  *middlewares.Sessions
	Notifier  notifications.Notifier
	Toasts    handlers.ToastSource
	Confirms  *table.Confirmations
	Debouncer *lookup.Debouncer

	Authorizer guard.Authorizer
	AdminRoles guard.RoleSet

	Prom     *observability.Prom
	Gatherer prometheus.Gatherer
	// Ping reports whether the session store is reachable.
	Ping func(ctx context.Context) error

	MaxBodyBytes int64
	LoginLimiter *middlewares.RateLimiter
	Tracing      bool
}

func NewRouter(d Deps) *gin.Engine {
	if d.Env != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}
	log := d.Logger
	if log == nil {
		log = slog.Default()
	}
	r := gin.New()

	// middleware

	r.Use(gin.Recovery())
	r.Use(middlewares.RequestID())
	if d.Tracing {
		r.Use(otelgin.Middleware(serviceName))
	}
	r.Use(middlewares.RequestLogger(log))
	r.Use(middlewares.SecurityHeaders())
	if d.MaxBodyBytes > 0 {
		r.Use(middlewares.MaxBodyBytes(d.MaxBodyBytes))
	}
	if d.Prom != nil {
		r.Use(d.Prom.GinHandleMiddleware())
	}

	r.SetHTMLTemplate(handlers.Templates())

	// operational routes carry no session
	health := handlers.NewHealthHandler(d.Ping)
	r.GET("/healthz", health.Healthz)
	r.GET("/readyz", health.Readyz)
	if d.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{})))
	}

	authz := d.Authorizer
	if authz == nil {
		authz = guard.DefaultRoles
	}

	pages := handlers.NewPages(d.Catalog, d.Toasts, log)
	authHandler := handlers.NewAuthHandler(d.Catalog.Gateway, d.Sessions, d.Notifier, d.Confirms, pages, d.AdminRoles, log)
	dashboard := handlers.NewDashboardHandler(d.Catalog, pages, log)
	entityDeps := handlers.EntityDeps{
		Catalog:   d.Catalog,
		Notifier:  d.Notifier,
		Confirms:  d.Confirms,
		Debouncer: d.Debouncer,
		Pages:     pages,
		Logger:    log,
	}
	if d.Prom != nil {
		entityDeps.Exports = d.Prom
	}
	entities := handlers.NewEntityHandler(entityDeps)

	web := r.Group("/")
	web.Use(d.Sessions.Middleware())

	var loginLimit gin.HandlerFunc = func(c *gin.Context) { c.Next() }
	if d.LoginLimiter != nil {
		loginLimit = d.LoginLimiter.RateLimiterMiddleware(middlewares.KeyByIP, http.MethodPost)
	}

	web.GET("/", func(c *gin.Context) { c.Redirect(http.StatusFound, guard.DefaultLanding) })
	web.GET(guard.LoginPath, authHandler.LoginPage)
	web.POST(guard.LoginPath, loginLimit, authHandler.Login)
	web.GET("/logout", authHandler.LogoutPage)
	web.POST("/logout", authHandler.Logout)
	web.GET(guard.UnauthorizedPath, authHandler.Unauthorized)

	admin := web.Group("/admin")
	admin.Use(guard.Middleware(authz))
	admin.GET("", func(c *gin.Context) { c.Redirect(http.StatusFound, guard.DefaultLanding) })
	admin.GET("/dashboard", dashboard.Show)
	entities.Register(admin)

	r.NoRoute(d.Sessions.Middleware(), func(c *gin.Context) {
		if wantsJSON(c.Request) {
			handlers.RespondNotFound(c, "Route not found")
			return
		}
		pages.Render(c, http.StatusNotFound, "error.html", gin.H{
			"Title":   "Not Found",
			"Status":  http.StatusNotFound,
			"Message": "The page you are looking for does not exist.",
			"Back":    guard.DefaultLanding,
		})
	})

	return r
}

func wantsJSON(r *http.Request) bool {
	accept := r.Header.Get("Accept")
	return strings.Contains(accept, "application/json") && !strings.Contains(accept, "text/html")
}
