// Package http serves the tuition ledger JSON API.
package http

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"

	applog "tuition/internal/log"
	"tuition/internal/services"
	"tuition/internal/sheets"
)

// DefaultRateLimit is the number of writes per minute allowed per client.
const DefaultRateLimit = 60

type Options struct {
	Logger  *applog.Logger
	Ledger  *services.LedgerService
	Roster  *services.RosterService
	Reports sheets.ReportReader // optional
	Debug   bool
	// RateLimit is writes per minute per client IP; zero means DefaultRateLimit.
	RateLimit int
}

type Server struct {
	app     *echo.Echo
	ledger  *services.LedgerService
	roster  *services.RosterService
	reports sheets.ReportReader
	metrics *securityMetrics
}

func NewServer(opts Options) *Server {
	s := &Server{
		app:     echo.New(),
		ledger:  opts.Ledger,
		roster:  opts.Roster,
		reports: opts.Reports,
		metrics: &securityMetrics{},
	}
	s.setup(opts)
	return s
}

func (s *Server) setup(opts Options) {
	app := s.app
	app.HideBanner = true
	app.HidePort = true
	app.Debug = opts.Debug
	app.HTTPErrorHandler = appHTTPErrorHandler
	app.IPExtractor = clientIPExtractor()

	logger := opts.Logger
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	limit := opts.RateLimit
	if limit <= 0 {
		limit = DefaultRateLimit
	}

	app.Pre(middleware.RemoveTrailingSlash())
	app.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{Generator: generateRequestID}))
	app.Use(applog.Middleware(logger))
	app.Use(middleware.Recover())
	app.Use(middleware.SecureWithConfig(secureHeaders))
	app.Use(middleware.BodyLimit("1M"))
	app.Use(suspiciousRequestLogger(s.metrics))
	app.Use(middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Skipper: func(c echo.Context) bool {
			m := c.Request().Method
			return m == http.MethodGet || m == http.MethodHead || m == http.MethodOptions
		},
		Store: middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
			Rate:      rate.Limit(float64(limit) / 60),
			Burst:     limit,
			ExpiresIn: 10 * time.Minute,
		}),
		DenyHandler: func(c echo.Context, identifier string, err error) error {
			s.metrics.rateLimitHits.Add(1)
			return echo.NewHTTPError(http.StatusTooManyRequests, "rate limit exceeded")
		},
	}))

	app.GET("/healthz", s.handleHealth)
	app.GET("/readyz", s.handleReady)

	api := app.Group("/api")
	api.GET("/dashboard", s.handleDashboard)
	api.GET("/defaulters", s.handleDefaulters)
	api.GET("/reports/last", s.handleLastReport)

	api.GET("/batches", s.handleListBatches)
	api.POST("/batches", s.handleCreateBatch)
	api.GET("/batches/:id", s.handleGetBatch)
	api.PUT("/batches/:id", s.handleUpdateBatch)
	api.POST("/batches/:id/toggle", s.handleToggleBatch)
	api.GET("/batches/:id/students", s.handleBatchStudents)
	api.GET("/batches/:id/finance", s.handleBatchFinance)
	api.GET("/batches/:id/fines", s.handleBatchFines)
	api.GET("/batches/:id/notes", s.handleBatchNotes)
	api.POST("/batches/:id/notes", s.handleAddNote)
	api.GET("/batches/:id/attendance", s.handleBatchAttendance)

	api.GET("/students", s.handleListStudents)
	api.POST("/students", s.handleCreateStudent)
	api.GET("/students/:id", s.handleGetStudent)
	api.PUT("/students/:id", s.handleUpdateStudent)
	api.PUT("/students/:id/status", s.handleStudentStatus)
	api.GET("/students/:id/ledger", s.handleStudentLedger)
	api.GET("/students/:id/grid", s.handleStudentGrid)
	api.GET("/students/:id/attendance-rate", s.handleAttendanceRate)

	api.POST("/payments/toggle", s.handleTogglePayment)
	api.POST("/fines/:id/toggle", s.handleToggleFine)
	api.POST("/notes/:id/toggle", s.handleToggleNote)
	api.POST("/attendance", s.handleMarkAttendance)

	api.GET("/settings", s.handleGetSettings)
	api.PUT("/settings", s.handleSaveSettings)

	app.RouteNotFound("/*", func(c echo.Context) error { return errHttpNotFound })
}

// Start blocks serving on addr until Shutdown is called.
func (s *Server) Start(addr string) error {
	if err := s.app.Start(addr); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.Shutdown(ctx)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.app.ServeHTTP(w, r)
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{
		"status":   "ok",
		"security": s.metrics.snapshot(),
		"cache":    s.ledger.Summaries().Stats(),
	})
}

func (s *Server) handleReady(c echo.Context) error {
	if _, err := s.roster.Settings(c.Request().Context()); err != nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "storage unavailable").SetInternal(err)
	}
	return c.JSON(http.StatusOK, echo.Map{"status": "ready"})
}

// generateRequestID creates a unique request ID for tracing.
func generateRequestID() string {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		return fmt.Sprintf("req_%d", time.Now().UnixNano())
	}
	return "req_" + hex.EncodeToString(bytes)
}
