package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gmkornilov/chess-trainer/internal/api"
	"github.com/gmkornilov/chess-trainer/internal/config"
	"github.com/gmkornilov/chess-trainer/internal/dao"
	"github.com/gmkornilov/chess-trainer/internal/db"
	"github.com/gmkornilov/chess-trainer/internal/lichess"
	"github.com/gmkornilov/chess-trainer/internal/obslog"
	"github.com/gmkornilov/chess-trainer/internal/positions"
	"github.com/gmkornilov/chess-trainer/internal/redo"
	"github.com/gmkornilov/chess-trainer/internal/scraper"
	"github.com/gmkornilov/chess-trainer/pkg/puzgen"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.InitConfig()
	if err != nil {
		panic(err)
	}
	if err := obslog.InitFromEnv("backend"); err != nil {
		panic(err)
	}
	logger := obslog.L()
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var repo dao.PositionRepository
	if cfg.Database.InMemory {
		logger.Warn("positions are kept in memory")
		repo = dao.NewMemoryRepository()
	} else {
		dbClient, err := db.NewDbClient(cfg)
		if err != nil {
			logger.Fatal("connect mongo", zap.Error(err))
		}
		defer dbClient.Close()
		repo = dao.NewPositionRepository(dbClient)
	}

	rdb, err := redo.Connect(ctx, cfg.Redis.URL)
	if err != nil {
		logger.Fatal("connect redis", zap.Error(err))
	}
	defer rdb.Close()
	store := redo.NewStore(rdb)

	engine, err := puzgen.SetupEngine(cfg.Stockfish.Path, cfg.Stockfish.Depth, cfg.Stockfish.Args...)
	if err != nil {
		logger.Fatal("start engine", zap.String("path", cfg.Stockfish.Path), zap.Error(err))
	}
	defer engine.Close()

	lichessClient := lichess.NewClient(cfg.Lichess.URL, lichess.WithLogger(logger.Named("lichess")))
	service := positions.NewService(repo, store, engine, logger.Named("positions"))
	factory := scraper.UserGamesScraperFactory{
		Games:    lichessClient,
		Engine:   engine,
		Repo:     repo,
		Queue:    store,
		Logger:   logger.Named("jobs"),
		MaxGames: cfg.Jobs.MaxGames,
	}

	gin.SetMode(gin.ReleaseMode)
	router := api.NewRouter(
		api.NewPositionApi(service, logger.Named("api")),
		api.NewJobApi(ctx, factory),
		api.NewStudyApi(scraper.NewStudyImporter(lichessClient, repo, logger.Named("studies"))),
		logger.Named("http"),
	)

	srv := &http.Server{
		Addr:    net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler: router,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("listening", zap.String("addr", srv.Addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("serve", zap.Error(err))
	}
	logger.Info("stopped")
}
