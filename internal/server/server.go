package server

import (
	"context"
	"crypto/subtle"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/pscheid92/zonewarden/internal/catalog"
	"github.com/pscheid92/zonewarden/internal/config"
	"github.com/pscheid92/zonewarden/internal/session"
)

// Pinger is a minimal reachability check for readiness probes.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Server struct {
	echo      *echo.Echo
	config    *config.Config
	manager   *session.Manager
	catalog   *catalog.Catalog
	limiter   *AdmitLimiter
	checks    map[string]Pinger
	startTime time.Time
}

// NewServer wires the HTTP surface: the command endpoint, the host event
// webhooks, and the observability routes. checks maps probe names to
// readiness checks for the external collaborators actually configured.
func NewServer(cfg *config.Config, manager *session.Manager, cat *catalog.Catalog, checks map[string]Pinger) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	srv := &Server{
		echo:      e,
		config:    cfg,
		manager:   manager,
		catalog:   cat,
		limiter:   NewAdmitLimiter(cfg.AdmitRatePerMinute),
		checks:    checks,
		startTime: time.Now(),
	}

	srv.registerRoutes()
	return srv
}

func (s *Server) Start() error {
	return s.echo.Start(":" + s.config.Port)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// requireAdmin gates elevated operations behind the shared admin token.
func (s *Server) requireAdmin(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		token := c.Request().Header.Get("Authorization")
		expect := "Bearer " + s.config.AdminToken
		if subtle.ConstantTimeCompare([]byte(token), []byte(expect)) != 1 {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		}
		return next(c)
	}
}
