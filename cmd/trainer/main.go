package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/gmkornilov/chess-trainer/internal/client"
	"github.com/gmkornilov/chess-trainer/internal/config"
	"github.com/gmkornilov/chess-trainer/internal/console"
	"github.com/gmkornilov/chess-trainer/internal/obslog"
	"github.com/gmkornilov/chess-trainer/pkg/trainer"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.InitTrainerConfig()
	if err != nil {
		panic(err)
	}
	// the terminal belongs to the board, logs go to a file unless asked otherwise
	if _, ok := os.LookupEnv("LOG_TO_CONSOLE"); !ok {
		_ = os.Setenv("LOG_TO_CONSOLE", "false")
		_ = os.Setenv("LOG_TO_FILE", "true")
	}
	if err := obslog.InitFromEnv("trainer"); err != nil {
		panic(err)
	}
	logger := obslog.L()
	defer func() { _ = logger.Sync() }()

	mode, err := trainer.ParseMode(cfg.Mode)
	if err != nil {
		logger.Fatal("bad mode", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	provider := client.New(cfg.ProviderURL, client.WithLogger(logger.Named("client")))
	controller := trainer.NewController(provider,
		trainer.WithMode(mode),
		trainer.WithUser(cfg.User),
		trainer.WithStudy(cfg.StudyID),
		trainer.WithTolerance(cfg.Tolerance),
		trainer.WithLogger(logger.Named("controller")),
	)

	if err := console.New(controller, os.Stdout).Run(ctx, os.Stdin); err != nil && ctx.Err() == nil {
		logger.Error("console stopped", zap.Error(err))
	}
}
