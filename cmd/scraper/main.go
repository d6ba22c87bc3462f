package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/gmkornilov/chess-trainer/internal/config"
	"github.com/gmkornilov/chess-trainer/internal/dao"
	"github.com/gmkornilov/chess-trainer/internal/db"
	"github.com/gmkornilov/chess-trainer/internal/lichess"
	"github.com/gmkornilov/chess-trainer/internal/obslog"
	"github.com/gmkornilov/chess-trainer/internal/scraper"
	"github.com/gmkornilov/chess-trainer/pkg/puzgen"
	"github.com/notnil/chess"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.InitScraperConfig()
	if err != nil {
		panic(err)
	}
	if err := obslog.InitFromEnv("scraper"); err != nil {
		panic(err)
	}
	logger := obslog.L()
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dbClient, err := db.NewDbClientScraper(cfg)
	if err != nil {
		logger.Fatal("connect mongo", zap.Error(err))
	}
	defer dbClient.Close()
	repo := dao.NewPositionRepository(dbClient)

	engine, err := puzgen.SetupEngine(cfg.Stockfish.Path, cfg.Stockfish.Depth, cfg.Stockfish.Args...)
	if err != nil {
		logger.Fatal("start engine", zap.Error(err))
	}
	defer engine.Close()

	switch cfg.Source {
	case "live":
		feed := lichess.NewClient(cfg.Lichess.URL, lichess.WithLogger(logger.Named("lichess")))
		analyzer := scraper.NewLiveLichessScraper(feed, engine, repo, logger.Named("live"))
		if err := analyzer.Main(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("live scraper stopped", zap.Error(err))
		}
	case "pgn":
		if err := fromPGN(ctx, cfg.PGNFile, engine, repo, logger); err != nil {
			logger.Error("pgn import failed", zap.String("file", cfg.PGNFile), zap.Error(err))
		}
	default:
		logger.Error("unknown scraper source", zap.String("source", cfg.Source))
	}
}

// fromPGN stores the puzzles found in every game of a PGN file.
func fromPGN(ctx context.Context, path string, engine puzgen.Evaluator, repo dao.PositionRepository, logger *zap.Logger) error {
	reader, err := os.Open(path)
	if err != nil {
		return err
	}
	defer reader.Close()

	watched := make(map[string]bool)
	scanner := chess.NewScanner(reader)
	games := 0
	for scanner.Scan() {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		puzzles, err := puzgen.AnalyzeLiveGame(engine, scanner.Next(), watched)
		if err != nil {
			return err
		}
		if err := repo.InsertAllPositions(ctx, puzzles); err != nil {
			return err
		}
		games++
		logger.Info("game analysed", zap.Int("game", games), zap.Int("puzzles", len(puzzles)))
	}
	return nil
}
