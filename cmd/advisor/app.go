// cmd/advisor/app.go
package main

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"immigration-advisor/internal/advisor"
	"immigration-advisor/internal/common/aws"
	"immigration-advisor/internal/common/config"
	"immigration-advisor/internal/common/database"
	"immigration-advisor/internal/common/logger"
	"immigration-advisor/internal/common/observability"
	"immigration-advisor/internal/common/resilience"
	"immigration-advisor/internal/engine/eligibility"
	"immigration-advisor/internal/engine/pipeline"
	"immigration-advisor/internal/engine/probability"
	"immigration-advisor/internal/server"
	"immigration-advisor/internal/upstream"
)

// app holds everything both commands share: config, logging, telemetry and
// the advisor service with its upstream connections.
type app struct {
	cfg     *config.Config
	zapLog  *zap.Logger
	log     logger.Logger
	obs     *observability.Observability
	tracer  *observability.TracerProvider
	advisor *advisor.Service
	checks  map[string]server.ReadinessCheck
	closers []func() error
}

func loadConfig() (*config.Config, error) {
	if configPath != "" {
		return config.LoadFromFile(configPath)
	}
	return config.Load()
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("config load failed: %w", err)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	log := logger.NewZapAdapter(zapLog).WithFields(map[string]interface{}{
		"service": cfg.App.Name,
		"version": version,
	})

	a := &app{
		cfg:    cfg,
		zapLog: zapLog,
		log:    log,
		obs:    observability.New(cfg.App.Name, log),
		checks: map[string]server.ReadinessCheck{},
	}

	a.tracer, err = observability.NewTracerProvider(cfg.Tracing)
	if err != nil {
		a.Close()
		return nil, err
	}

	if err := a.buildAdvisor(ctx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) buildAdvisor(ctx context.Context) error {
	cfg := a.cfg

	profiles, programs, err := a.buildSources()
	if err != nil {
		return err
	}

	breakerCfg := resilience.BreakerConfig{
		FailureThreshold: cfg.Engine.Breaker.FailureThreshold,
		SuccessThreshold: cfg.Engine.Breaker.SuccessThreshold,
		OpenTimeout:      config.GetDuration(cfg.Engine.Breaker.OpenTimeout),
	}
	if cfg.Alerts.SNS.Enabled {
		sns, err := aws.NewSNSClient(ctx, cfg.Alerts.SNS.Region)
		if err != nil {
			return err
		}
		breakerCfg.OnStateChange = aws.NewBreakerAlerts(sns, cfg.Alerts.SNS.TopicARN, cfg.App.Name, a.log).OnStateChange
	}
	// One breaker guards both predictor endpoints, they share a host.
	breaker := resilience.NewBreaker("predictor", breakerCfg, a.log)

	predictorTimeout := config.GetDuration(cfg.Engine.PredictorTimeout)
	var (
		success probability.Estimator   = probability.NewHeuristic()
		match   probability.MatchScorer = probability.NeutralMatcher{}
	)
	if cfg.Upstreams.Predictor.BaseURL != "" {
		predictor := upstream.NewPredictorClient(cfg.Upstreams.Predictor.BaseURL, config.GetDuration(cfg.Upstreams.Predictor.Timeout), a.log)
		success = probability.NewResilientEstimator(predictor, probability.NewHeuristic(), breaker, predictorTimeout, a.log)
		match = probability.NewResilientMatcher(predictor, probability.NeutralMatcher{}, breaker, predictorTimeout, a.log)
	} else {
		a.log.Warn("no predictor configured, using heuristic estimates only", nil)
	}

	p := pipeline.New(eligibility.NewEvaluator(a.log), success, match, cfg.Engine.MaxConcurrency, a.log)
	a.advisor = advisor.NewService(profiles, programs, p, advisor.Options{
		ScenarioTopN:    cfg.Engine.ScenarioTopN,
		DestinationTopN: cfg.Engine.DestinationTopN,
	}, a.obs, a.log)
	return nil
}

func (a *app) buildSources() (upstream.ProfileSource, upstream.ProgramSource, error) {
	cfg := a.cfg

	var profiles upstream.ProfileSource = upstream.NewHTTPProfileSource(
		cfg.Upstreams.Profile.BaseURL, config.GetDuration(cfg.Upstreams.Profile.Timeout), a.log)

	var programs upstream.ProgramSource
	switch cfg.Upstreams.Programs.Driver {
	case "postgres":
		pg, err := database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return nil, nil, err
		}
		a.closers = append(a.closers, pg.Close)
		a.checks["postgres"] = pg.Ping
		programs = upstream.NewPostgresProgramSource(pg.DB, a.log)
	case "elasticsearch":
		es, err := database.NewElasticsearch(cfg.Database.Elasticsearch)
		if err != nil {
			return nil, nil, err
		}
		a.checks["elasticsearch"] = es.Ping
		programs = upstream.NewSearchProgramSource(es.Client, es.ProgramIndex, a.log)
	default:
		programs = upstream.NewHTTPProgramSource(
			cfg.Upstreams.Programs.BaseURL, config.GetDuration(cfg.Upstreams.Programs.Timeout), a.log)
	}

	if cfg.Database.Redis.Enabled {
		rdb, err := database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return nil, nil, err
		}
		a.closers = append(a.closers, rdb.Close)
		a.checks["redis"] = rdb.Ping

		if ttl := cfg.Upstreams.Profile.CacheTTL; ttl > 0 {
			profiles = upstream.NewCachedProfileSource(profiles, rdb.Client, time.Duration(ttl)*time.Second, a.log)
		}
		if ttl := cfg.Upstreams.Programs.CacheTTL; ttl > 0 {
			programs = upstream.NewCachedProgramSource(programs, rdb.Client, time.Duration(ttl)*time.Second, a.log)
		}
	}

	a.log.Info("upstream sources configured", map[string]interface{}{
		"programDriver": cfg.Upstreams.Programs.Driver,
		"cache":         cfg.Database.Redis.Enabled,
	})
	return profiles, programs, nil
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.log.Warn("error closing resource", map[string]interface{}{"error": err.Error()})
		}
	}
	if a.tracer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := a.tracer.Shutdown(ctx); err != nil {
			a.log.Warn("tracer shutdown failed", map[string]interface{}{"error": err.Error()})
		}
		cancel()
	}
	a.obs.Shutdown()
	_ = a.zapLog.Sync()
}
