package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"gorm.io/datatypes"

	"horse.fit/translator/internal/batch"
	"horse.fit/translator/internal/db"
	"horse.fit/translator/internal/globaltime"
	"horse.fit/translator/internal/metrics"
	"horse.fit/translator/internal/report"
	"horse.fit/translator/internal/schema"
	"horse.fit/translator/internal/translation"
	"horse.fit/translator/internal/updates"
)

const (
	defaultPageSize = 50
	maxPageSize     = 500
	maxBodyBytes    = 4 << 20
)

type Options struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	// AdminTokenHash is a bcrypt hash; when empty the API is unauthenticated.
	AdminTokenHash     string
	CORSAllowedOrigins []string
	Locales            []string
}

// ContentStore is the entry storage the content endpoints write through.
type ContentStore interface {
	Ping(ctx context.Context) error
	CreateEntry(ctx context.Context, entry *db.Entry) (*db.Entry, error)
	FindEntryByID(ctx context.Context, contentType string, id int64) (*db.Entry, error)
	UpdateEntryData(ctx context.Context, id int64, data datatypes.JSON) (*db.Entry, error)
	PublishEntry(ctx context.Context, id int64, at time.Time) error
}

var _ ContentStore = (*db.Pool)(nil)

type Services struct {
	Jobs     *batch.Manager
	Entities *translation.EntityTranslator
	Updates  *updates.Service
	Tracker  *updates.Tracker
	Report   *report.Service
	Content  ContentStore
	Schemas  *schema.Registry
	Metrics  *metrics.Metrics
}

type Server struct {
	svc    Services
	logger zerolog.Logger
	opts   Options
}

func NewServer(svc Services, logger zerolog.Logger, opts Options) *Server {
	host := strings.TrimSpace(opts.Host)
	if host == "" {
		host = "0.0.0.0"
	}
	port := opts.Port
	if port <= 0 {
		port = 8090
	}
	readTimeout := opts.ReadTimeout
	if readTimeout <= 0 {
		readTimeout = 10 * time.Second
	}
	writeTimeout := opts.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = 30 * time.Second
	}
	shutdownTimeout := opts.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	origins := opts.CORSAllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	return &Server{
		svc:    svc,
		logger: logger,
		opts: Options{
			Host:               host,
			Port:               port,
			ReadTimeout:        readTimeout,
			WriteTimeout:       writeTimeout,
			ShutdownTimeout:    shutdownTimeout,
			AdminTokenHash:     strings.TrimSpace(opts.AdminTokenHash),
			CORSAllowedOrigins: origins,
			Locales:            opts.Locales,
		},
	}
}

// Handler builds the echo instance with every route registered.
func (s *Server) Handler() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = s.httpErrorHandler

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.BodyLimit(strconv.Itoa(maxBodyBytes)))
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: s.opts.CORSAllowedOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", echo.HeaderAuthorization},
		MaxAge:       3600,
	}))
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:    true,
		LogURI:       true,
		LogMethod:    true,
		LogLatency:   true,
		LogRemoteIP:  true,
		LogRequestID: true,
		LogError:     true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			if v.Error != nil {
				s.logger.Error().
					Err(v.Error).
					Str("method", v.Method).
					Str("uri", v.URI).
					Int("status", v.Status).
					Dur("latency", v.Latency).
					Str("remote_ip", v.RemoteIP).
					Str("request_id", v.RequestID).
					Msg("http request failed")
				return nil
			}

			s.logger.Info().
				Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("remote_ip", v.RemoteIP).
				Str("request_id", v.RequestID).
				Msg("http request")
			return nil
		},
	}))

	e.GET("/metrics", echo.WrapHandler(s.svc.Metrics.Handler()))

	e.GET("/api/v1/health", s.handleHealth)

	api := e.Group("/api/v1", s.requireToken())
	api.GET("/locales", s.handleLocales)
	api.GET("/usage", s.handleUsage)
	api.POST("/translate", s.handleTranslate)

	api.POST("/batch-translate", s.handleSubmitJob)
	api.GET("/batch-translate/jobs", s.handleListJobs)
	api.GET("/batch-translate/jobs/:job_uuid", s.handleGetJob)
	api.POST("/batch-translate/jobs/:job_uuid/pause", s.handlePauseJob)
	api.POST("/batch-translate/jobs/:job_uuid/resume", s.handleResumeJob)
	api.POST("/batch-translate/jobs/:job_uuid/cancel", s.handleCancelJob)

	api.GET("/report", s.handleReport)
	api.GET("/updated-entries", s.handleUpdatedEntries)
	api.POST("/batch-update", s.handleBatchUpdate)

	api.POST("/content/:content_type", s.handleCreateEntry)
	api.GET("/content/:content_type/:id", s.handleGetEntry)
	api.PUT("/content/:content_type/:id", s.handleUpdateEntry)

	return e
}

func (s *Server) Start(ctx context.Context) error {
	if s == nil || s.svc.Jobs == nil || s.svc.Content == nil {
		return fmt.Errorf("server is not initialized")
	}

	e := s.Handler()
	addr := fmt.Sprintf("%s:%d", s.opts.Host, s.opts.Port)
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      e,
		ReadTimeout:  s.opts.ReadTimeout,
		WriteTimeout: s.opts.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
		defer cancel()
		if shutdownErr := e.Shutdown(shutdownCtx); shutdownErr != nil {
			s.logger.Error().Err(shutdownErr).Msg("server shutdown failed")
		}
	}()

	s.logger.Info().Str("addr", addr).Bool("auth", s.opts.AdminTokenHash != "").Msg("translator api server started")

	if err := e.StartServer(httpServer); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("start server: %w", err)
	}
	s.logger.Info().Msg("translator api server stopped")
	return nil
}

func (s *Server) httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status := http.StatusInternalServerError
	message := "Internal server error"
	if he, ok := err.(*echo.HTTPError); ok {
		status = he.Code
		switch v := he.Message.(type) {
		case string:
			if strings.TrimSpace(v) != "" {
				message = v
			}
		default:
			if text := strings.TrimSpace(http.StatusText(status)); text != "" {
				message = text
			}
		}
	} else if err != nil {
		message = err.Error()
	}

	if strings.HasPrefix(c.Request().URL.Path, "/api/") {
		if status >= 500 {
			_ = internalError(c, "Internal server error")
			return
		}
		_ = fail(c, status, message, nil)
		return
	}

	_ = c.String(status, message)
}

func (s *Server) handleHealth(c echo.Context) error {
	if err := s.svc.Content.Ping(c.Request().Context()); err != nil {
		s.logger.Error().Err(err).Msg("health check database ping failed")
		return internalError(c, "Database unavailable")
	}
	return success(c, map[string]any{
		"service":      "translator",
		"time":         globaltime.UTC(),
		"running_jobs": len(s.svc.Jobs.RunningJobs()),
	})
}

func decodeJSONBody(c echo.Context, dest any) error {
	decoder := json.NewDecoder(c.Request().Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dest); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	if decoder.More() {
		return fmt.Errorf("invalid JSON body: trailing data")
	}
	return nil
}

func parsePositiveInt(raw string, defaultValue, minValue, maxValue int) (int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return defaultValue, nil
	}

	value, err := strconv.Atoi(trimmed)
	if err != nil {
		return 0, fmt.Errorf("must be an integer")
	}
	if value < minValue || value > maxValue {
		return 0, fmt.Errorf("must be between %d and %d", minValue, maxValue)
	}
	return value, nil
}

func parseEntryID(raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("must be a positive integer")
	}
	return id, nil
}
