package scraper

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gmkornilov/chess-trainer/internal/dao"
	"github.com/gmkornilov/chess-trainer/internal/lichess"
	"github.com/gmkornilov/chess-trainer/pkg/puzgen"
	"github.com/notnil/chess"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// heuristic: a featured game never queues 100 positions while one is analysed
const analyzerBuffer = 100

// Feed streams featured game messages.
type Feed interface {
	TVFeed(ctx context.Context, fn func(lichess.Message) error) error
}

// LiveLichessScraper follows the featured game on Lichess TV and stores every
// position that turns out to be a puzzle.
type LiveLichessScraper struct {
	feed        Feed
	engine      puzgen.Evaluator
	repo        dao.PositionRepository
	logger      *zap.Logger
	curAnalyzer *LiveGameAnalyzer
	reconnect   time.Duration
}

func NewLiveLichessScraper(feed Feed, engine puzgen.Evaluator, repo dao.PositionRepository, logger *zap.Logger) *LiveLichessScraper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LiveLichessScraper{
		feed:      feed,
		engine:    engine,
		repo:      repo,
		logger:    logger,
		reconnect: 5 * time.Second,
	}
}

// Main follows the feed until ctx is done, reconnecting whenever the stream
// ends or fails.
func (l *LiveLichessScraper) Main(ctx context.Context) error {
	defer l.stopAnalyzer()
	for {
		err := l.feed.TVFeed(ctx, func(msg lichess.Message) error {
			return l.handle(ctx, msg)
		})
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			l.logger.Warn("tv feed interrupted", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(l.reconnect):
		}
	}
}

func (l *LiveLichessScraper) handle(ctx context.Context, msg lichess.Message) error {
	switch msg.Action {
	case lichess.ActionFeatured:
		start, err := msg.GameStart()
		if err != nil {
			return fmt.Errorf("decode featured game: %w", err)
		}
		l.stopAnalyzer()

		data := puzgen.GameData{Date: primitive.NewDateTimeFromTime(time.Now())}
		if p, ok := start.Player("white"); ok {
			data.WhitePlayer = p.User.Name
		}
		if p, ok := start.Player("black"); ok {
			data.BlackPlayer = p.User.Name
		}
		l.logger.Info("new featured game",
			zap.String("id", start.Id),
			zap.String("white", data.WhitePlayer),
			zap.String("black", data.BlackPlayer),
		)
		l.curAnalyzer = l.NewLiveGameAnalyzer(start.Id, data)
		l.curAnalyzer.StartAnalyze(ctx)

	case lichess.ActionFen:
		turn, err := msg.GameTurn()
		if err != nil {
			return fmt.Errorf("decode position: %w", err)
		}
		if l.curAnalyzer == nil {
			return nil
		}
		fen, err := FeedFEN(turn.Fen)
		if err != nil {
			l.logger.Debug("skipping position", zap.String("fen", turn.Fen), zap.Error(err))
			return nil
		}
		fenFunc, err := chess.FEN(fen)
		if err != nil {
			l.logger.Debug("skipping position", zap.String("fen", fen), zap.Error(err))
			return nil
		}
		select {
		case l.curAnalyzer.GameChan <- chess.NewGame(fenFunc):
		default:
			l.logger.Warn("analyzer is behind, dropping position", zap.String("fen", fen))
		}

	default:
		l.logger.Debug("unknown action type from lichess", zap.String("action", msg.Action))
	}
	return nil
}

func (l *LiveLichessScraper) stopAnalyzer() {
	if l.curAnalyzer != nil {
		close(l.curAnalyzer.GameChan)
		l.curAnalyzer = nil
	}
}

// FeedFEN completes the "placement side" fen of feed messages. Castling and
// en passant rights are unknown and left empty.
func FeedFEN(s string) (string, error) {
	fields := strings.Fields(s)
	switch len(fields) {
	case 2:
		return s + " - - 0 1", nil
	case 6:
		return s, nil
	}
	return "", fmt.Errorf("unexpected fen %q", s)
}

func (l *LiveLichessScraper) NewLiveGameAnalyzer(gameID string, data puzgen.GameData) *LiveGameAnalyzer {
	return &LiveGameAnalyzer{
		gameID:   gameID,
		data:     data,
		engine:   l.engine,
		repo:     l.repo,
		logger:   l.logger.With(zap.String("game", gameID)),
		GameChan: make(chan *chess.Game, analyzerBuffer),
		done:     make(chan struct{}),
	}
}

type LiveGameAnalyzer struct {
	gameID   string
	data     puzgen.GameData
	engine   puzgen.Evaluator
	repo     dao.PositionRepository
	logger   *zap.Logger
	GameChan chan *chess.Game
	done     chan struct{}
	found    int
}

func (l *LiveGameAnalyzer) StartAnalyze(ctx context.Context) {
	go l.Analyze(ctx)
}

// Done is closed once GameChan is drained.
func (l *LiveGameAnalyzer) Done() <-chan struct{} { return l.done }

func (l *LiveGameAnalyzer) Analyze(ctx context.Context) {
	defer close(l.done)
	watched := make(map[string]bool)
	for game := range l.GameChan {
		if ctx.Err() != nil {
			continue
		}
		puzzle, ok, err := puzgen.GeneratePuzzle(game, l.engine, watched)
		if err != nil {
			l.logger.Warn("analyse position failed", zap.String("fen", game.FEN()), zap.Error(err))
			continue
		}
		if !ok {
			continue
		}
		puzzle.GameData = l.data
		puzzle.URL = "https://lichess.org/" + l.gameID
		if err := l.repo.InsertPosition(ctx, puzzle); err != nil {
			l.logger.Error("save puzzle failed", zap.Error(err))
			continue
		}
		l.found++
		l.logger.Info("generated puzzle", zap.String("id", puzzle.ID), zap.String("fen", puzzle.StartFEN), zap.Int("elo", puzzle.TargetElo))
	}
	l.logger.Debug("analyzer stopped", zap.Int("puzzles", l.found))
}
