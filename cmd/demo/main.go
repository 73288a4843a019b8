package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/Brownie44l1/aksharnet-api/internal/app"
	"github.com/Brownie44l1/aksharnet-api/internal/config"
	"github.com/Brownie44l1/aksharnet-api/internal/logger"
	"github.com/Brownie44l1/aksharnet-api/internal/model"
)

func mockPredictor(cfg *config.AppConfig, logger *zap.Logger) (model.Predictor, func(), error) {
	logger.Info("demo mode: predictions are randomized",
		zap.Duration("gender_delay", cfg.Demo.GenderDelay),
		zap.Duration("age_delay", cfg.Demo.AgeDelay))

	return model.NewMockPredictor(nil, cfg.Demo.GenderDelay, cfg.Demo.AgeDelay), func() {}, nil
}

func main() {
	cfg, err := config.Load(config.ParseConfigFlag(), config.DefaultDemoPort)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := logger.New(cfg.Server.Debug)
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.Run(ctx, cfg, true, mockPredictor, logger); err != nil {
		logger.Fatal("demo server failed", zap.Error(err))
	}
}
