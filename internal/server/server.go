// internal/server/server.go
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"immigration-advisor/internal/advisor"
	"immigration-advisor/internal/common/auth"
	"immigration-advisor/internal/common/config"
	"immigration-advisor/internal/common/logger"
	"immigration-advisor/internal/models"
)

// Advisor is the request surface the HTTP handlers call into.
type Advisor interface {
	Recommend(ctx context.Context, req advisor.RecommendRequest) (*advisor.Recommendations, error)
	Probability(ctx context.Context, userID, programID string) (*models.ProbabilityResult, error)
	Gaps(ctx context.Context, userID, programID string) (*models.GapReport, error)
	Simulate(ctx context.Context, req advisor.SimulateRequest) (*models.ScenarioResult, error)
	SuggestDestinations(ctx context.Context, userID string) ([]models.DestinationSuggestion, error)
}

// ReadinessCheck probes one backing dependency for /ready.
type ReadinessCheck func(ctx context.Context) error

type Server struct {
	cfg        config.ServerConfig
	advisor    Advisor
	tokens     auth.TokenValidator
	checks     map[string]ReadinessCheck
	version    string
	startTime  time.Time
	engine     *gin.Engine
	httpServer *http.Server
	logger     logger.Logger
}

func New(cfg config.ServerConfig, version string, adv Advisor, tokens auth.TokenValidator, checks map[string]ReadinessCheck, log logger.Logger) *Server {
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	registerValidators()

	s := &Server{
		cfg:       cfg,
		advisor:   adv,
		tokens:    tokens,
		checks:    checks,
		version:   version,
		startTime: time.Now(),
		engine:    gin.New(),
		logger:    log.WithFields(map[string]interface{}{"component": "http"}),
	}

	s.engine.Use(s.recovery(), requestID(), s.accessLog())
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig := cors.DefaultConfig()
		corsConfig.AllowOrigins = cfg.AllowedOrigins
		corsConfig.AllowMethods = []string{http.MethodGet, http.MethodPost, http.MethodOptions}
		corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", requestIDHeader}
		corsConfig.ExposeHeaders = []string{requestIDHeader}
		s.engine.Use(cors.New(corsConfig))
	}
	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         cfg.Addr(),
		Handler:      s.engine,
		ReadTimeout:  config.GetDuration(cfg.ReadTimeout),
		WriteTimeout: config.GetDuration(cfg.WriteTimeout),
	}
	return s
}

func (s *Server) setupRoutes() {
	s.engine.GET("/health", s.handleHealth)
	s.engine.GET("/ready", s.handleReady)
	s.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	recs := s.engine.Group("/recommendations")
	recs.Use(s.authenticate(), requestTimeout(config.GetDuration(s.cfg.RequestTimeout)))
	{
		recs.GET("", s.handleRecommend)
		recs.GET("/destinations", s.handleDestinations)
		recs.POST("/scenarios/simulate", s.handleSimulate)
		recs.GET("/:programId/probability", s.handleProbability)
		recs.GET("/:programId/gaps", s.handleGaps)
	}
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) Start() error {
	s.logger.Info("HTTP server listening", map[string]interface{}{"addr": s.httpServer.Addr})
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("HTTP server shutting down", nil)
	return s.httpServer.Shutdown(ctx)
}

func registerValidators() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		_ = v.RegisterValidation("programid", func(fl validator.FieldLevel) bool {
			return advisor.IsValidProgramID(fl.Field().String())
		})
	}
}
