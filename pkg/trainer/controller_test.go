package trainer

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
)

type fakeProvider struct {
	mu        sync.Mutex
	positions map[Mode][]Position
	// scores by board placement field, side-to-move perspective
	scores   map[string]int
	nextErr  error
	evalErr  error
	gate     chan struct{}
	entered  chan struct{}
	attempts []Attempt
	requests []NextRequest
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{positions: map[Mode][]Position{}, scores: map[string]int{}}
}

func (f *fakeProvider) Next(ctx context.Context, req NextRequest) (Position, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	gate, entered := f.gate, f.entered
	f.mu.Unlock()

	if gate != nil {
		if entered != nil {
			entered <- struct{}{}
		}
		select {
		case <-gate:
		case <-ctx.Done():
			return Position{}, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.nextErr != nil {
		return Position{}, f.nextErr
	}
	queue := f.positions[req.Mode]
	if len(queue) == 0 {
		return Position{}, ErrNoPosition
	}
	pos := queue[0]
	f.positions[req.Mode] = queue[1:]
	return pos, nil
}

func (f *fakeProvider) EngineEvaluation(ctx context.Context, fen string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.evalErr != nil {
		return 0, f.evalErr
	}
	return f.scores[strings.Fields(fen)[0]], nil
}

func (f *fakeProvider) ReportAttempt(ctx context.Context, attempt Attempt) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attempts = append(f.attempts, attempt)
	return nil
}

func (f *fakeProvider) add(mode Mode, pos ...Position) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.positions[mode] = append(f.positions[mode], pos...)
}

func puzzle(id string, score int, moves ...string) Position {
	return Position{ID: id, FEN: startFEN, Turn: "w", Solution: Solution{Line: line(moves...), Score: score}}
}

func newTestController(t *testing.T, p *fakeProvider, mode Mode) *Controller {
	t.Helper()
	c := NewController(p, WithMode(mode), WithUser("helix"), WithTolerance(20))
	if err := c.LoadNewPosition(context.Background()); err != nil {
		t.Fatalf("LoadNewPosition: %v", err)
	}
	return c
}

func submit(t *testing.T, c *Controller, move string) Outcome {
	t.Helper()
	out, err := c.SubmitMove(context.Background(), MustParseMove(move))
	if err != nil {
		t.Fatalf("SubmitMove(%s): %v", move, err)
	}
	return out
}

func TestController_PuzzleLine(t *testing.T) {
	p := newFakeProvider()
	p.add(ModePuzzles, puzzle("p1", 50, "e2e4", "e7e5", "g1f3"))
	c := newTestController(t, p, ModePuzzles)

	out := submit(t, c, "e2e4")
	if !out.Accepted || out.Result != ResultInProgress {
		t.Fatalf("unexpected outcome %+v", out)
	}
	s := c.Session()
	if s.Ply != 2 || s.Result != ResultInProgress {
		t.Fatalf("expected ply 2 in progress, got ply=%d result=%s", s.Ply, s.Result)
	}
	if s.Board.Turn() != "w" {
		t.Fatalf("expected opponent reply applied, turn=%s", s.Board.Turn())
	}

	submit(t, c, "g1f3")
	if got := c.Session().Result; got != ResultSuccess {
		t.Fatalf("expected success, got %s", got)
	}
	if len(p.attempts) != 1 || p.attempts[0].Result != ResultSuccess || p.attempts[0].PositionID != "p1" || p.attempts[0].User != "helix" {
		t.Fatalf("unexpected attempts %+v", p.attempts)
	}
}

func TestController_ScoreComparison(t *testing.T) {
	p := newFakeProvider()
	p.add(ModePuzzles, puzzle("p1", 50, "e2e4"), puzzle("p2", 50, "e2e4"))
	// after d2d4 black is to move; -45 for black is +45 for the mover
	p.scores["rnbqkbnr/pppppppp/8/8/3P4/8/PPP1PPPP/RNBQKBNR"] = -45
	p.scores["rnbqkbnr/pppppppp/8/8/8/7P/PPPPPPP1/RNBQKBNR"] = 300
	c := newTestController(t, p, ModePuzzles)

	submit(t, c, "d2d4")
	v := c.View()
	if v.Result != ResultPartialSuccess {
		t.Fatalf("expected partial success, got %s", v.Result)
	}
	if v.PlayedScore == nil || *v.PlayedScore != 45 || v.EvaluationScore != 50 {
		t.Fatalf("unexpected scores %v/%d", v.PlayedScore, v.EvaluationScore)
	}

	if err := c.LoadNewPosition(context.Background()); err != nil {
		t.Fatalf("LoadNewPosition: %v", err)
	}
	submit(t, c, "h2h3")
	if got := c.Session().Result; got != ResultFailure {
		t.Fatalf("expected failure, got %s", got)
	}
}

func TestController_TerminalResultIsIdempotent(t *testing.T) {
	p := newFakeProvider()
	p.add(ModeRedo, puzzle("r1", 50, "e2e4"))
	p.scores["rnbqkbnr/pppppppp/8/8/8/7P/PPPPPPP1/RNBQKBNR"] = 300
	c := newTestController(t, p, ModeRedo)

	submit(t, c, "h2h3")
	before := c.Session()
	for _, m := range []string{"e2e4", "a2a3"} {
		out := submit(t, c, m)
		if out.Accepted || out.Result != ResultFailure {
			t.Fatalf("expected ignored move, got %+v", out)
		}
	}
	after := c.Session()
	if after.Result != ResultFailure || after.Board.FEN() != before.Board.FEN() || after.MovePlayed != "h2h3" {
		t.Fatalf("session changed after terminal result")
	}
	if len(p.attempts) != 1 || p.attempts[0].Mode != ModeRedo {
		t.Fatalf("expected exactly one reported attempt, got %+v", p.attempts)
	}
}

func TestController_Retry(t *testing.T) {
	p := newFakeProvider()
	p.add(ModePuzzles, puzzle("p1", 50, "e2e4", "e7e5", "g1f3"))
	p.scores["rnbqkbnr/pppppppp/8/8/8/7P/PPPPPPP1/RNBQKBNR"] = 300
	c := newTestController(t, p, ModePuzzles)

	if c.Retry() {
		t.Fatalf("retry must be a no-op while in progress")
	}
	submit(t, c, "h2h3")
	if !c.Retry() {
		t.Fatalf("retry must restart after failure")
	}
	s := c.Session()
	if s.Result != ResultInProgress || s.Ply != 0 || s.Board.FEN() != startFEN || s.Position.ID != "p1" {
		t.Fatalf("unexpected session after retry: %+v", s)
	}
	if len(p.requests) != 1 {
		t.Fatalf("retry must not ask the provider for a new position")
	}

	submit(t, c, "e2e4")
	submit(t, c, "g1f3")
	if c.Retry() {
		t.Fatalf("retry must be a no-op after success")
	}
}

func TestController_StudyLesson(t *testing.T) {
	p := newFakeProvider()
	p.add(ModeStudy, Position{
		ID:  "s1",
		FEN: startFEN,
		Solution: Solution{
			Line:     line("e2e4", "e7e5", "g1f3", "b8c6", "f1b5"),
			Comments: []string{"", "", "Develop the knight", "", ""},
		},
	})
	c := newTestController(t, p, ModeStudy)
	if c.Session().Mistake {
		t.Fatalf("mistake flag must be clear after load")
	}

	out := submit(t, c, "e2e4")
	if out.StudyResult != StudyGoodMove {
		t.Fatalf("expected good move, got %s", out.StudyResult)
	}
	v := c.View()
	if v.StudyResult != StudyInProgress || v.Message() != "Good move" {
		t.Fatalf("expected auto-advance to in progress, got %s (%q)", v.StudyResult, v.Message())
	}

	out = submit(t, c, "d2d4")
	if out.Accepted || out.StudyResult != StudyIncorrect {
		t.Fatalf("expected rejected move, got %+v", out)
	}
	s := c.Session()
	if !s.Mistake || s.StudyResult != StudyIncorrect || s.Ply != 2 {
		t.Fatalf("unexpected session after mistake: mistake=%v result=%s ply=%d", s.Mistake, s.StudyResult, s.Ply)
	}
	if got := c.View().SolutionText(); got != "Develop the knight" {
		t.Fatalf("unexpected solution text %q", got)
	}

	if out := submit(t, c, "g1f3"); out.StudyResult != StudyGoodMove {
		t.Fatalf("expected good move on retry, got %s", out.StudyResult)
	}
	if out := submit(t, c, "f1b5"); out.StudyResult != StudySuccess {
		t.Fatalf("expected success, got %s", out.StudyResult)
	}
	s = c.Session()
	if s.StudyResult != StudySuccess || !s.Mistake {
		t.Fatalf("expected success with mistake recorded, got %s mistake=%v", s.StudyResult, s.Mistake)
	}
	if len(p.attempts) != 0 {
		t.Fatalf("study lessons are not reported, got %+v", p.attempts)
	}
}

func TestController_IllegalMoveLeavesSession(t *testing.T) {
	p := newFakeProvider()
	p.add(ModePuzzles, puzzle("p1", 50, "e2e4"))
	c := newTestController(t, p, ModePuzzles)

	_, err := c.SubmitMove(context.Background(), MustParseMove("e2e5"))
	if !errors.Is(err, ErrIllegalMove) {
		t.Fatalf("expected ErrIllegalMove, got %v", err)
	}
	if s := c.Session(); s.Result != ResultInProgress || s.MovePlayed != "" {
		t.Fatalf("illegal move changed the session")
	}
}

func TestController_EvaluationFailureLeavesSession(t *testing.T) {
	p := newFakeProvider()
	p.add(ModePuzzles, puzzle("p1", 50, "e2e4"))
	c := newTestController(t, p, ModePuzzles)
	p.evalErr = errors.New("connection refused")

	_, err := c.SubmitMove(context.Background(), MustParseMove("d2d4"))
	if !errors.Is(err, ErrProviderUnavailable) {
		t.Fatalf("expected ErrProviderUnavailable, got %v", err)
	}
	if s := c.Session(); s.Result != ResultInProgress || s.Board.FEN() != startFEN {
		t.Fatalf("failed lookup changed the session")
	}
}

func TestController_LoadFailureKeepsPreviousSession(t *testing.T) {
	p := newFakeProvider()
	p.add(ModePuzzles, puzzle("p1", 50, "e2e4"))
	c := newTestController(t, p, ModePuzzles)
	submit(t, c, "e2e4")

	p.nextErr = errors.New("503")
	err := c.LoadNewPosition(context.Background())
	if !errors.Is(err, ErrProviderUnavailable) {
		t.Fatalf("expected ErrProviderUnavailable, got %v", err)
	}
	v := c.View()
	if v.Result != ResultSuccess || !v.LoadFailed || v.Loading || !v.NextEnabled() {
		t.Fatalf("unexpected view after failed load: %+v", v)
	}
}

func TestController_MalformedSolution(t *testing.T) {
	p := newFakeProvider()
	p.add(ModePuzzles, puzzle("empty", 0), puzzle("illegal", 0, "e2e5"))
	c := NewController(p)

	for i := 0; i < 2; i++ {
		if err := c.LoadNewPosition(context.Background()); !errors.Is(err, ErrMalformedSolution) {
			t.Fatalf("expected ErrMalformedSolution, got %v", err)
		}
	}
	if _, err := c.SubmitMove(context.Background(), MustParseMove("e2e4")); !errors.Is(err, ErrNoPosition) {
		t.Fatalf("expected evaluation to be blocked, got %v", err)
	}
}

func TestController_SetModeResets(t *testing.T) {
	p := newFakeProvider()
	p.add(ModeRedo, Position{ID: "r1", FEN: startFEN, MovePlayed: "h2h3", Solution: Solution{Line: line("e2e4"), Score: 10}})
	p.add(ModeStudy, Position{ID: "s1", FEN: startFEN, Solution: Solution{Line: line("e2e4")}})
	p.scores["rnbqkbnr/pppppppp/8/8/8/7P/PPPPPPP1/RNBQKBNR"] = 300
	c := newTestController(t, p, ModeRedo)

	submit(t, c, "h2h3")
	if c.Session().Result != ResultFailure {
		t.Fatalf("expected failure")
	}
	if err := c.SetMode(context.Background(), ModeStudy); err != nil {
		t.Fatalf("SetMode: %v", err)
	}
	s := c.Session()
	if s.Mode != ModeStudy || s.Result != ResultInProgress || s.StudyResult != StudyInProgress || s.MovePlayed != "" || s.Mistake {
		t.Fatalf("unexpected session after mode switch: %+v", s)
	}
	if got := p.requests[len(p.requests)-1]; got.Mode != ModeStudy || got.User != "helix" {
		t.Fatalf("unexpected provider request %+v", got)
	}
}

func TestController_RejectsMovesWhileLoading(t *testing.T) {
	p := newFakeProvider()
	p.add(ModePuzzles, puzzle("p1", 50, "e2e4"), puzzle("p2", 50, "e2e4"))
	c := newTestController(t, p, ModePuzzles)
	p.scores["rnbqkbnr/pppppppp/8/8/8/7P/PPPPPPP1/RNBQKBNR"] = 300
	submit(t, c, "h2h3")

	p.mu.Lock()
	p.gate = make(chan struct{})
	p.entered = make(chan struct{}, 1)
	p.mu.Unlock()

	done := make(chan error, 1)
	go func() { done <- c.LoadNewPosition(context.Background()) }()
	<-p.entered

	if _, err := c.SubmitMove(context.Background(), MustParseMove("e2e4")); !errors.Is(err, ErrLoading) {
		t.Fatalf("expected ErrLoading, got %v", err)
	}
	if c.Retry() {
		t.Fatalf("retry must be rejected while loading")
	}
	close(p.gate)
	if err := <-done; err != nil {
		t.Fatalf("LoadNewPosition: %v", err)
	}
	if s := c.Session(); s.Position.ID != "p2" || s.Loading {
		t.Fatalf("expected p2 loaded, got %+v", s)
	}
}

func TestController_LastLoadWins(t *testing.T) {
	p := newFakeProvider()
	p.add(ModeStudy, Position{ID: "s1", FEN: startFEN, Solution: Solution{Line: line("e2e4")}})
	p.add(ModePuzzles, puzzle("p1", 50, "e2e4"))
	c := NewController(p, WithMode(ModePuzzles))

	p.gate = make(chan struct{})
	p.entered = make(chan struct{}, 1)
	first := make(chan error, 1)
	go func() { first <- c.LoadNewPosition(context.Background()) }()
	<-p.entered

	p.mu.Lock()
	p.gate = nil
	p.mu.Unlock()
	if err := c.SetMode(context.Background(), ModeStudy); err != nil {
		t.Fatalf("SetMode: %v", err)
	}

	select {
	case err := <-first:
		if !errors.Is(err, ErrSuperseded) {
			t.Fatalf("expected ErrSuperseded, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("stale load did not return")
	}
	if s := c.Session(); s.Mode != ModeStudy || s.Position == nil || s.Position.ID != "s1" {
		t.Fatalf("stale response overwrote the newer session: %+v", s)
	}
}
