package telemetry

import (
	"context"
	"net/http"
	"time"

	"codeberg.org/mutker/thermald/internal/errors"
	"codeberg.org/mutker/thermald/internal/logger"
	"github.com/gin-gonic/gin"
	json "github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server serves /metrics and /debug/throttle_history.
type Server struct {
	server  *http.Server
	router  *gin.Engine
	history HistorySource
	logger  logger.Logger
}

func NewServer(cfg Config, gatherer prometheus.Gatherer, history HistorySource, log logger.Logger) (*Server, error) {
	errFactory := errors.New()

	if err := cfg.Validate(); err != nil {
		return nil, errFactory.Wrap(ErrInvalidConfig, err)
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = defaultReadTimeout
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	s := &Server{
		router:  router,
		history: history,
		logger:  log,
	}

	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	if history != nil {
		router.GET("/debug/throttle_history", s.handleHistory)
	}

	s.server = &http.Server{
		Addr:        cfg.Listen,
		Handler:     router,
		ReadTimeout: cfg.ReadTimeout,
	}

	return s, nil
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves in the background until Shutdown is called.
func (s *Server) Start() {
	s.logger.Info().Str("listen", s.server.Addr).Msg("Starting telemetry server")

	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.ErrorWithCode(errors.New().Wrap(ErrServe, err)).Msg("Telemetry server stopped")
		}
	}()
}

func (s *Server) Shutdown(ctx context.Context) error {
	errFactory := errors.New()

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		return errFactory.Wrap(ErrServiceShutdown, err)
	}
	return nil
}

func (s *Server) handleHistory(c *gin.Context) {
	body, err := json.Marshal(s.history.Snapshot())
	if err != nil {
		s.logger.ErrorWithCode(errors.New().Wrap(ErrEncodeHistory, err)).Send()
		c.Status(http.StatusInternalServerError)
		return
	}
	c.Data(http.StatusOK, "application/json", body)
}
