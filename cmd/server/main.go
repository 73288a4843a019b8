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

func loadModels(cfg *config.AppConfig, logger *zap.Logger) (model.Predictor, func(), error) {
	registry, err := model.LoadRegistry(cfg.Model.LibraryPath, map[model.Task]model.Spec{
		model.TaskGender: {Path: cfg.Model.Gender.Path, Input: cfg.Model.Gender.Input, Output: cfg.Model.Gender.Output},
		model.TaskAge:    {Path: cfg.Model.Age.Path, Input: cfg.Model.Age.Input, Output: cfg.Model.Age.Output},
	}, logger)
	if err != nil {
		return nil, nil, err
	}

	logger.Info("models loaded",
		zap.Strings("gender_classes", model.GenderLabels),
		zap.Strings("age_classes", model.AgeLabels))

	return registry, registry.Close, nil
}

func main() {
	cfg, err := config.Load(config.ParseConfigFlag(), config.DefaultInferencePort)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := logger.New(cfg.Server.Debug)
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.Run(ctx, cfg, false, loadModels, logger); err != nil {
		logger.Fatal("server failed", zap.Error(err))
	}
}
