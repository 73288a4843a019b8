// Package app assembles the HTTP service shared by the inference and demo
// binaries. Only the predictor differs between them.
package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/Brownie44l1/aksharnet-api/internal/config"
	"github.com/Brownie44l1/aksharnet-api/internal/handlers"
	"github.com/Brownie44l1/aksharnet-api/internal/metrics"
	"github.com/Brownie44l1/aksharnet-api/internal/model"
	"github.com/Brownie44l1/aksharnet-api/internal/preprocess"
	"github.com/Brownie44l1/aksharnet-api/internal/server"
	"github.com/Brownie44l1/aksharnet-api/internal/upload"
)

// PredictorFactory builds the predictor once at startup. The returned
// cleanup runs after the server stops.
type PredictorFactory func(cfg *config.AppConfig, logger *zap.Logger) (model.Predictor, func(), error)

// Service is a fully wired but not yet listening service.
type Service struct {
	Config  *config.AppConfig
	Handler *handlers.Handler
	Janitor *upload.Janitor
	Metrics *metrics.Metrics
}

// Build wires the upload store, preprocessor, predictor and handlers.
func Build(cfg *config.AppConfig, predictor model.Predictor, demo bool, logger *zap.Logger) (*Service, error) {
	store, err := upload.NewStore(cfg.Upload.Dir, logger)
	if err != nil {
		return nil, err
	}

	pre, err := preprocess.New(cfg.Preprocess.CacheSize, logger, preprocess.WithMaxPixels(cfg.Preprocess.MaxPixels))
	if err != nil {
		return nil, err
	}

	m := metrics.New()
	h := handlers.NewHandler(store, pre, m.Instrument(predictor), m, logger, handlers.Options{
		StaticDir:    cfg.Static.Dir,
		StaticPrefix: cfg.Static.Prefix,
		UploadDir:    cfg.Upload.Dir,
		Demo:         demo,
	})

	return &Service{
		Config:  cfg,
		Handler: h,
		Janitor: upload.NewJanitor(store.Dir(), cfg.Upload.Retention, cfg.Upload.SweepInterval, logger),
		Metrics: m,
	}, nil
}

// Run builds the predictor and serves until ctx is done. The process
// never listens if the predictor cannot be built.
func Run(ctx context.Context, cfg *config.AppConfig, demo bool, factory PredictorFactory, logger *zap.Logger) error {
	predictor, cleanup, err := factory(cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing predictor: %w", err)
	}
	defer cleanup()

	svc, err := Build(cfg, predictor, demo, logger)
	if err != nil {
		return err
	}

	router, err := server.NewRouter(svc.Handler, svc.Metrics, logger, cfg.Server.MaxBodyBytes, cfg.Server.Debug)
	if err != nil {
		return err
	}

	if svc.Janitor.Enabled() {
		logger.Info("upload retention enabled", zap.Duration("retention", cfg.Upload.Retention))
		go svc.Janitor.Run(ctx)
	}

	return server.Run(ctx, router, cfg.Server.Port, cfg.Server.ShutdownTimeout, logger)
}
