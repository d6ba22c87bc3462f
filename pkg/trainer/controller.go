package trainer

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

type Option func(*Controller)

func WithUser(user string) Option {
	return func(c *Controller) { c.user = user }
}

func WithStudy(studyID string) Option {
	return func(c *Controller) { c.studyID = studyID }
}

func WithTolerance(tolerance int) Option {
	return func(c *Controller) { c.tolerance = tolerance }
}

func WithMode(mode Mode) Option {
	return func(c *Controller) { c.session = emptySession(mode) }
}

func WithLogger(logger *zap.Logger) Option {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// Controller drives one exercise session. The mutex only guards the
// session swap; it is never held across provider calls.
type Controller struct {
	provider  Provider
	user      string
	studyID   string
	tolerance int
	logger    *zap.Logger

	mu         sync.Mutex
	session    Session
	version    uint64
	loadSeq    uint64
	cancelLoad context.CancelFunc
}

func NewController(provider Provider, opts ...Option) *Controller {
	c := &Controller{
		provider:  provider,
		tolerance: DefaultTolerance,
		logger:    zap.NewNop(),
		session:   emptySession(ModePuzzles),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Controller) LoadNewPosition(ctx context.Context) error {
	c.mu.Lock()
	prev := c.session
	c.mu.Unlock()
	return c.load(ctx, prev.Mode, false)
}

// SetMode discards the current session, whatever its state, and loads a
// position for mode.
func (c *Controller) SetMode(ctx context.Context, mode Mode) error {
	return c.load(ctx, mode, true)
}

func (c *Controller) load(ctx context.Context, mode Mode, reset bool) error {
	c.mu.Lock()
	if c.cancelLoad != nil {
		c.cancelLoad()
	}
	ctx, cancel := context.WithCancel(ctx)
	c.cancelLoad = cancel
	c.loadSeq++
	seq := c.loadSeq

	if reset {
		c.session = emptySession(mode)
	}
	prev := c.session
	loading := prev
	loading.Loading = true
	loading.LoadErr = nil
	c.commit(loading)
	c.mu.Unlock()
	defer cancel()

	pos, err := c.provider.Next(ctx, NextRequest{Mode: mode, User: c.user, StudyID: c.studyID})
	var next Session
	if err == nil {
		next, err = newSession(mode, pos)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if seq != c.loadSeq {
		c.logger.Debug("discarding stale position", zap.String("mode", string(mode)), zap.Uint64("seq", seq))
		return ErrSuperseded
	}
	c.cancelLoad = nil

	if err != nil {
		err = classifyProviderErr(err)
		c.logger.Warn("load position failed", zap.String("mode", string(mode)), zap.Error(err))
		prev.Loading = false
		prev.LoadErr = err
		c.commit(prev)
		return err
	}

	c.logger.Info("position loaded",
		zap.String("mode", string(mode)),
		zap.String("id", pos.ID),
		zap.String("fen", pos.FEN),
		zap.Int("plies", len(pos.Solution.Line)),
	)
	c.commit(next)
	return nil
}

// SubmitMove evaluates move against the active solution. Outcome.Accepted
// is false when the board must snap back.
func (c *Controller) SubmitMove(ctx context.Context, move Move) (Outcome, error) {
	c.mu.Lock()
	s := c.session
	version := c.version
	c.mu.Unlock()

	switch {
	case s.Loading:
		return Outcome{}, ErrLoading
	case s.Position == nil:
		if s.LoadErr != nil {
			return Outcome{}, fmt.Errorf("%w: %v", ErrNoPosition, s.LoadErr)
		}
		return Outcome{}, ErrNoPosition
	case s.finished():
		return Outcome{Result: s.Result, StudyResult: s.StudyResult, Terminal: true}, nil
	}

	after, played, err := s.Board.Apply(move)
	if err != nil {
		return Outcome{}, err
	}

	in := Input{
		Mode:      s.Mode,
		Ply:       s.Ply,
		Played:    played,
		Solution:  s.Position.Solution,
		Tolerance: c.tolerance,
	}
	out := Evaluate(in)
	if out.NeedsScore {
		score, err := c.provider.EngineEvaluation(ctx, after.FEN())
		if err != nil {
			err = classifyProviderErr(err)
			c.logger.Warn("engine evaluation failed", zap.String("fen", after.FEN()), zap.Error(err))
			return Outcome{}, err
		}
		// the provider scores from the side to move, which is now the opponent
		mover := -score
		in.PlayedScore = &mover
		out = Evaluate(in)
	}

	next, err := s.advance(out, played, after, in.PlayedScore)
	if err != nil {
		return Outcome{}, err
	}

	c.mu.Lock()
	if c.version != version {
		c.mu.Unlock()
		return Outcome{}, ErrSuperseded
	}
	c.commit(next)
	c.mu.Unlock()

	c.logger.Debug("move evaluated",
		zap.String("mode", string(s.Mode)),
		zap.String("move", played.String()),
		zap.Int("ply", s.Ply),
		zap.String("result", string(next.Result)),
		zap.String("study_result", string(out.StudyResult)),
	)

	if out.Terminal && s.Mode != ModeStudy {
		c.report(ctx, s.Position.ID, s.Mode, out.Result)
	}
	return out, nil
}

// Retry restarts the loaded position after a failed or partially
// successful attempt. It reports whether anything changed.
func (c *Controller) Retry() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.session
	if s.Loading || s.Position == nil {
		return false
	}
	if s.Result != ResultFailure && s.Result != ResultPartialSuccess {
		return false
	}
	next, err := s.restarted()
	if err != nil {
		c.logger.Error("restart position", zap.Error(err))
		return false
	}
	c.commit(next)
	return true
}

func (c *Controller) Session() Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

func (c *Controller) View() View {
	return newView(c.Session())
}

func (c *Controller) commit(s Session) {
	c.session = s
	c.version++
}

func (c *Controller) report(ctx context.Context, positionID string, mode Mode, result Result) {
	if positionID == "" {
		return
	}
	attempt := Attempt{PositionID: positionID, Mode: mode, User: c.user, Result: result}
	if err := c.provider.ReportAttempt(ctx, attempt); err != nil {
		c.logger.Warn("report attempt failed", zap.String("position", positionID), zap.Error(err))
	}
}

func classifyProviderErr(err error) error {
	switch {
	case errors.Is(err, ErrProviderUnavailable),
		errors.Is(err, ErrMalformedSolution),
		errors.Is(err, ErrNoPosition):
		return err
	}
	return fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
}
