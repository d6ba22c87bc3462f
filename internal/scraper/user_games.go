package scraper

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/gmkornilov/chess-trainer/internal/dao"
	"github.com/gmkornilov/chess-trainer/internal/lichess"
	"github.com/gmkornilov/chess-trainer/pkg/puzgen"
	"github.com/notnil/chess"
	"go.uber.org/zap"
)

// GameSource yields the recent games of a user.
type GameSource interface {
	UserGames(ctx context.Context, user string, max int) ([]*chess.Game, error)
}

// RedoQueue receives the ids of freshly analysed positions.
type RedoQueue interface {
	Push(ctx context.Context, user string, ids ...string) error
	Len(ctx context.Context, user string) (int64, error)
}

type UserGamesScraperFactory struct {
	Games    GameSource
	Engine   puzgen.Evaluator
	Repo     dao.PositionRepository
	Queue    RedoQueue
	Logger   *zap.Logger
	MaxGames int
}

func (f UserGamesScraperFactory) CreateUserGamesScraper(nickname string, max int) *UserGamesScraper {
	if max <= 0 || (f.MaxGames > 0 && max > f.MaxGames) {
		max = f.MaxGames
	}
	logger := f.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserGamesScraper{
		nickname: nickname,
		max:      max,
		games:    f.Games,
		engine:   f.Engine,
		repo:     f.Repo,
		queue:    f.Queue,
		logger:   logger.With(zap.String("user", nickname)),
	}
}

// UserGamesScraper turns the mistakes of a user's recent games into redo
// positions and queues them for the user.
type UserGamesScraper struct {
	mu        sync.Mutex
	positions []puzgen.Position
	err       error
	done      bool
	analysed  int
	total     int

	games    GameSource
	engine   puzgen.Evaluator
	repo     dao.PositionRepository
	queue    RedoQueue
	logger   *zap.Logger
	nickname string
	max      int
}

func (l *UserGamesScraper) Done() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.done
}

func (l *UserGamesScraper) StartWork(ctx context.Context) {
	go l.Scrap(ctx)
}

func (l *UserGamesScraper) Result() interface{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	ids := make([]string, 0, len(l.positions))
	for _, p := range l.positions {
		ids = append(ids, p.ID)
	}
	return ids
}

func (l *UserGamesScraper) Progress() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.done {
		return 1
	}
	if l.total == 0 {
		return 0
	}
	return float64(l.analysed) / float64(l.total)
}

func (l *UserGamesScraper) Error() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.err
}

func (l *UserGamesScraper) finish(positions []puzgen.Position, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.positions = positions
	l.err = err
	l.done = true
}

// Scrap runs the job synchronously.
func (l *UserGamesScraper) Scrap(ctx context.Context) {
	games, err := l.games.UserGames(ctx, l.nickname, l.max)
	if errors.Is(err, lichess.ErrNotFound) {
		l.finish(nil, fmt.Errorf("user %s doesn't exist on lichess", l.nickname))
		return
	}
	if err != nil {
		l.logger.Warn("fetch games failed", zap.Error(err))
		l.finish(nil, fmt.Errorf("error fetching %s games", l.nickname))
		return
	}

	l.mu.Lock()
	l.total = len(games)
	l.mu.Unlock()

	positions, err := puzgen.AnalyzeAllGames(l.engine, games, l.nickname, func(done int) {
		l.mu.Lock()
		l.analysed = done
		l.mu.Unlock()
	})
	if err != nil {
		l.logger.Warn("analyse games failed", zap.Error(err))
		l.finish(nil, fmt.Errorf("error generating positions"))
		return
	}
	if err := ctx.Err(); err != nil {
		l.finish(nil, err)
		return
	}

	if err := l.repo.InsertAllPositions(ctx, positions); err != nil {
		l.logger.Error("save positions failed", zap.Error(err))
		l.finish(nil, fmt.Errorf("error saving positions to db"))
		return
	}
	ids := make([]string, 0, len(positions))
	for _, p := range positions {
		ids = append(ids, p.ID)
	}
	if err := l.queue.Push(ctx, l.nickname, ids...); err != nil {
		l.logger.Error("queue positions failed", zap.Error(err))
		l.finish(nil, fmt.Errorf("error queueing positions"))
		return
	}

	queued, err := l.queue.Len(ctx, l.nickname)
	if err != nil {
		l.logger.Warn("redo queue length unavailable", zap.Error(err))
	}
	l.logger.Info("user games analysed",
		zap.Int("games", len(games)),
		zap.Int("positions", len(positions)),
		zap.Int64("queued", queued),
	)
	l.finish(positions, nil)
}
