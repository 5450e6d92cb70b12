// Package server exposes the discovery service over HTTP with echo.
package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ahrav/shinise-scout/internal/application"
	"github.com/ahrav/shinise-scout/internal/domain"
	"github.com/ahrav/shinise-scout/internal/logger"
	"github.com/ahrav/shinise-scout/internal/ports"
)

// Config holds the HTTP settings.
type Config struct {
	// AllowedOrigins are origins such as "https://example.com" accepted
	// besides loopback hosts. Scheme and host must match exactly.
	AllowedOrigins []string

	// KeepAliveInterval is the gap between keep-alive spaces on streamed
	// responses.
	KeepAliveInterval time.Duration

	// DispatchConcurrency bounds agents run at once by the batch endpoint.
	DispatchConcurrency int
}

// Searcher runs the discovery pipeline.
type Searcher interface {
	Search(ctx context.Context, req application.SearchRequest) (*application.SearchResponse, error)
}

// ShopDetailer returns a shop with its guide.
type ShopDetailer interface {
	Detail(ctx context.Context, placeID string, force bool) (*application.ShopDetail, error)
}

// ReviewAnalyzer grades a shop's reviews.
type ReviewAnalyzer interface {
	Analyze(ctx context.Context, placeID, shopName string) (*domain.ReviewAnalysis, error)
}

// CourseIllustrator draws walking-course maps.
type CourseIllustrator interface {
	Illustrate(ctx context.Context, station string, shopNames []string) (string, error)
}

// Deps are the services behind the routes. Photos and Gatherer may be nil.
type Deps struct {
	Agents   application.TaskRunner
	Search   Searcher
	Shops    ShopDetailer
	Reviews  ReviewAnalyzer
	Course   CourseIllustrator
	Photos   ports.PhotoProvider
	Gatherer prometheus.Gatherer
	Log      logger.Logger
	Metrics  ports.MetricsCollector
}

// Server is the HTTP surface.
type Server struct {
	echo       *echo.Echo
	cfg        Config
	deps       Deps
	log        logger.Logger
	dispatcher *application.Dispatcher
}

type requestValidator struct{ v *validator.Validate }

func (r *requestValidator) Validate(i any) error {
	if err := r.v.Struct(i); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			ve := domain.NewValidationError("request")
			for _, fe := range verrs {
				ve.AddError(fe.Field() + " is " + fe.Tag())
			}
			return ve
		}
		return err
	}
	return nil
}

// New builds the echo instance and registers every route.
func New(cfg Config, deps Deps) *Server {
	if cfg.KeepAliveInterval <= 0 {
		cfg.KeepAliveInterval = time.Second
	}
	if deps.Log == nil {
		deps.Log = logger.NewNoOpLogger()
	}
	if deps.Metrics == nil {
		deps.Metrics = ports.NopMetrics{}
	}
	if deps.Gatherer == nil {
		deps.Gatherer = prometheus.DefaultGatherer
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = &requestValidator{v: validator.New()}

	s := &Server{
		echo:       e,
		cfg:        cfg,
		deps:       deps,
		log:        deps.Log,
		dispatcher: application.NewDispatcher(deps.Agents, cfg.DispatchConcurrency, deps.Log),
	}
	e.HTTPErrorHandler = s.handleError

	e.Use(middleware.Recover())
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{Generator: uuid.NewString}))
	e.Use(s.accessLog)

	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))

	api := e.Group("/api", originCheck(cfg.AllowedOrigins, deps.Log))
	api.GET("/agents", s.listAgents)
	api.POST("/agent", s.runAgent)
	api.POST("/agents/batch", s.runAgents)
	api.GET("/search", s.search)
	api.GET("/shop/:id", s.shopDetail)
	api.POST("/analyze-reviews", s.analyzeReviews)
	api.POST("/course/map", s.courseMap)
	api.GET("/image", s.photo)
	return s
}

// Handler returns the root handler, for tests and custom listeners.
func (s *Server) Handler() http.Handler { return s.echo }

// Start listens on addr until Shutdown.
func (s *Server) Start(addr string) error {
	s.log.Info("listening", map[string]any{"address": addr})
	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error { return s.echo.Shutdown(ctx) }

func (s *Server) accessLog(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		err := next(c)
		if err != nil {
			c.Error(err)
		}
		status := c.Response().Status
		elapsed := time.Since(start)

		s.deps.Metrics.RecordLatency("http_request", elapsed, map[string]string{
			"route":  c.Path(),
			"status": strconv.Itoa(status),
		})
		s.log.Info("request", map[string]any{
			"method":     c.Request().Method,
			"path":       c.Request().URL.Path,
			"status":     status,
			"latency_ms": elapsed.Milliseconds(),
			"request_id": c.Response().Header().Get(echo.HeaderXRequestID),
		})
		return nil
	}
}

// statusOf maps the error taxonomy onto HTTP status codes.
func statusOf(err error) int {
	var (
		he *echo.HTTPError
		ve *domain.ValidationError
	)
	switch {
	case errors.As(err, &he):
		return he.Code
	case errors.As(err, &ve),
		errors.Is(err, domain.ErrUnknownTask),
		errors.Is(err, domain.ErrInvalidMode):
		return http.StatusBadRequest
	case errors.Is(err, ports.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ports.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, ports.ErrUpstream):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func messageOf(err error) string {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		if msg, ok := he.Message.(string); ok {
			return msg
		}
		return http.StatusText(he.Code)
	}
	return err.Error()
}

func (s *Server) handleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	code := statusOf(err)
	if code >= http.StatusInternalServerError {
		s.log.Error("request failed", map[string]any{
			"path":  c.Request().URL.Path,
			"error": err.Error(),
		})
	}
	if c.Request().Method == http.MethodHead {
		_ = c.NoContent(code)
		return
	}
	_ = c.JSON(code, map[string]string{"error": messageOf(err)})
}
