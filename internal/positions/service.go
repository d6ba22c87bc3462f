package positions

import (
	"context"
	"errors"
	"fmt"

	"github.com/gmkornilov/chess-trainer/internal/dao"
	"github.com/gmkornilov/chess-trainer/pkg/puzgen"
	"github.com/gmkornilov/chess-trainer/pkg/trainer"
	"github.com/notnil/chess"
	"go.uber.org/zap"
)

var (
	ErrInvalidFEN     = errors.New("invalid fen")
	ErrInvalidAttempt = errors.New("invalid attempt")
	ErrMissingUser    = errors.New("user is required")
	ErrMissingStudy   = errors.New("study id is required")
)

// maxStaleIDs bounds how many dangling redo ids Next drops before giving up.
const maxStaleIDs = 16

// Progress is the per-user state kept next to the position storage.
type Progress interface {
	Push(ctx context.Context, user string, ids ...string) error
	Head(ctx context.Context, user string) (string, bool, error)
	Remove(ctx context.Context, user, id string) error
	Rating(ctx context.Context, user string) (int, error)
	SetRating(ctx context.Context, user string, elo int) error
	NextChapter(ctx context.Context, studyID, user string, total int) (int, error)
}

// Service is the position provider: it implements trainer.Provider on top of
// the position repository, the user progress store and the engine.
type Service struct {
	repo     dao.PositionRepository
	progress Progress
	engine   puzgen.Evaluator
	logger   *zap.Logger
}

func NewService(repo dao.PositionRepository, progress Progress, engine puzgen.Evaluator, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{repo: repo, progress: progress, engine: engine, logger: logger}
}

var _ trainer.Provider = (*Service)(nil)

func (s *Service) Next(ctx context.Context, req trainer.NextRequest) (trainer.Position, error) {
	var (
		p   puzgen.Position
		err error
	)
	switch req.Mode {
	case trainer.ModePuzzles:
		p, err = s.nextPuzzle(ctx, req.User)
	case trainer.ModeRedo:
		p, err = s.nextRedo(ctx, req.User)
	case trainer.ModeStudy:
		p, err = s.nextLesson(ctx, req.StudyID, req.User)
	default:
		return trainer.Position{}, fmt.Errorf("unknown mode %q", req.Mode)
	}
	if errors.Is(err, dao.ErrNotFound) {
		return trainer.Position{}, trainer.ErrNoPosition
	}
	if err != nil {
		return trainer.Position{}, err
	}
	return ToTrainer(p)
}

func (s *Service) nextPuzzle(ctx context.Context, user string) (puzgen.Position, error) {
	elo := 0
	if user != "" {
		rating, err := s.progress.Rating(ctx, user)
		if err != nil {
			return puzgen.Position{}, fmt.Errorf("load rating: %w", err)
		}
		elo = rating
	}
	p, err := s.repo.GetRandomPuzzleForElo(ctx, elo)
	if errors.Is(err, dao.ErrNotFound) && elo > 0 {
		s.logger.Debug("no puzzle near rating, sampling any", zap.String("user", user), zap.Int("elo", elo))
		return s.repo.GetRandomPuzzleForElo(ctx, 0)
	}
	return p, err
}

// nextRedo serves the head of the user's queue. Ids whose position is gone
// are dropped; an empty queue falls back to the user's latest analysed game.
func (s *Service) nextRedo(ctx context.Context, user string) (puzgen.Position, error) {
	if user == "" {
		return puzgen.Position{}, ErrMissingUser
	}
	for i := 0; i < maxStaleIDs; i++ {
		id, ok, err := s.progress.Head(ctx, user)
		if err != nil {
			return puzgen.Position{}, fmt.Errorf("redo queue: %w", err)
		}
		if !ok {
			break
		}
		p, err := s.repo.GetPosition(ctx, id)
		if errors.Is(err, dao.ErrNotFound) {
			s.logger.Warn("dropping dangling redo id", zap.String("user", user), zap.String("id", id))
			if err := s.progress.Remove(ctx, user, id); err != nil {
				return puzgen.Position{}, err
			}
			continue
		}
		return p, err
	}
	return s.repo.GetLastUserPosition(ctx, user)
}

func (s *Service) nextLesson(ctx context.Context, studyID, user string) (puzgen.Position, error) {
	if studyID == "" {
		return puzgen.Position{}, ErrMissingStudy
	}
	lessons, err := s.repo.GetLessons(ctx, studyID)
	if err != nil {
		return puzgen.Position{}, err
	}
	if len(lessons) == 0 {
		return puzgen.Position{}, dao.ErrNotFound
	}
	idx, err := s.progress.NextChapter(ctx, studyID, user, len(lessons))
	if err != nil {
		return puzgen.Position{}, fmt.Errorf("study cursor: %w", err)
	}
	return lessons[idx], nil
}

// EngineEvaluation scores fen from the side to move.
func (s *Service) EngineEvaluation(ctx context.Context, fen string) (int, error) {
	if _, err := chess.FEN(fen); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidFEN, err)
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return s.engine.Evaluate(fen)
}

// ReportAttempt records a finished attempt. Missed puzzles join the user's
// redo queue, solved redo positions leave it and puzzle results move the
// rating.
func (s *Service) ReportAttempt(ctx context.Context, a trainer.Attempt) error {
	if a.PositionID == "" || !a.Result.Terminal() {
		return fmt.Errorf("%w: position %q result %q", ErrInvalidAttempt, a.PositionID, a.Result)
	}
	if a.User == "" {
		return nil
	}

	switch a.Mode {
	case trainer.ModePuzzles:
		return s.reportPuzzle(ctx, a)
	case trainer.ModeRedo:
		if a.Result == trainer.ResultSuccess {
			return s.progress.Remove(ctx, a.User, a.PositionID)
		}
	}
	return nil
}

func (s *Service) reportPuzzle(ctx context.Context, a trainer.Attempt) error {
	p, err := s.repo.GetPosition(ctx, a.PositionID)
	if errors.Is(err, dao.ErrNotFound) {
		return trainer.ErrNoPosition
	}
	if err != nil {
		return err
	}

	var score float64
	switch a.Result {
	case trainer.ResultSuccess:
		score = 1
	case trainer.ResultPartialSuccess:
		score = 0.5
	}
	if a.Result != trainer.ResultSuccess {
		if err := s.progress.Push(ctx, a.User, p.ID); err != nil {
			return fmt.Errorf("enqueue redo: %w", err)
		}
	}

	elo, err := s.progress.Rating(ctx, a.User)
	if err != nil {
		return err
	}
	updated := puzgen.EstimateElo(elo, p.TargetElo, score)
	s.logger.Info("rating updated",
		zap.String("user", a.User),
		zap.String("position", p.ID),
		zap.String("result", string(a.Result)),
		zap.Int("from", elo),
		zap.Int("to", updated),
	)
	return s.progress.SetRating(ctx, a.User, updated)
}

// ToTrainer converts a stored position into what the trainer consumes.
func ToTrainer(p puzgen.Position) (trainer.Position, error) {
	line, err := trainer.ParseLine(p.Line)
	if err != nil {
		return trainer.Position{}, fmt.Errorf("%w: position %s: %v", trainer.ErrMalformedSolution, p.ID, err)
	}
	return trainer.Position{
		ID:  p.ID,
		FEN: p.StartFEN,
		Solution: trainer.Solution{
			Line:     line,
			Score:    p.Score,
			Comments: p.Comments,
		},
		Turn:       p.Turn(),
		MovePlayed: p.MovePlayed,
		URL:        p.URL,
	}, nil
}
