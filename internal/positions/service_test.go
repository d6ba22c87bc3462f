package positions

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/gmkornilov/chess-trainer/internal/dao"
	"github.com/gmkornilov/chess-trainer/internal/redo"
	"github.com/gmkornilov/chess-trainer/pkg/puzgen"
	"github.com/gmkornilov/chess-trainer/pkg/trainer"
)

const mateInOne = "r1bqkb1r/pppp1ppp/2n2n2/4p2Q/2B1P3/8/PPPP1PPP/RNB1K1NR w KQkq - 4 4"

type fakeEvaluator struct {
	mu     sync.Mutex
	scores map[string]int
	calls  []string
}

func (f *fakeEvaluator) Analyse(fen string) ([]puzgen.Line, error) {
	return nil, errors.New("not used")
}

func (f *fakeEvaluator) Evaluate(fen string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, fen)
	return f.scores[strings.Fields(fen)[0]], nil
}

type testService struct {
	*Service
	repo   dao.PositionRepository
	store  *redo.Store
	engine *fakeEvaluator
}

func newTestService(t *testing.T) *testService {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	rdb, err := redo.Connect(context.Background(), fmt.Sprintf("redis://%s/0", mr.Addr()))
	if err != nil {
		t.Fatalf("redis: %v", err)
	}
	t.Cleanup(func() { _ = rdb.Close() })

	repo := dao.NewMemoryRepository()
	store := redo.NewStore(rdb)
	engine := &fakeEvaluator{scores: map[string]int{}}
	return &testService{
		Service: NewService(repo, store, engine, nil),
		repo:    repo,
		store:   store,
		engine:  engine,
	}
}

func puzzle(id string, elo int) puzgen.Position {
	return puzgen.Position{
		ID:          id,
		Kind:        puzgen.KindPuzzle,
		StartFEN:    mateInOne,
		Line:        []string{"h5f7"},
		Score:       puzgen.MateScore - 1,
		IsWhiteTurn: true,
		TargetElo:   elo,
	}
}

func TestNextPuzzleNearRating(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	_ = s.repo.InsertAllPositions(ctx, []puzgen.Position{puzzle("near", 1550), puzzle("far", 2500)})

	for i := 0; i < 5; i++ {
		pos, err := s.Next(ctx, trainer.NextRequest{Mode: trainer.ModePuzzles, User: "helix"})
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if pos.ID != "near" {
			t.Fatalf("expected puzzle near the default rating, got %q", pos.ID)
		}
	}

	_ = s.store.SetRating(ctx, "helix", 2000)
	if _, err := s.Next(ctx, trainer.NextRequest{Mode: trainer.ModePuzzles, User: "helix"}); err != nil {
		t.Fatalf("expected fallback to any puzzle, got %v", err)
	}
}

func TestNextConvertsPosition(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	_ = s.repo.InsertPosition(ctx, puzzle("p1", 1500))

	pos, err := s.Next(ctx, trainer.NextRequest{Mode: trainer.ModePuzzles})
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if pos.FEN != mateInOne || pos.Turn != "w" || len(pos.Solution.Line) != 1 {
		t.Fatalf("unexpected position %+v", pos)
	}
	if pos.Solution.Line[0].String() != "h5f7" || pos.Solution.Score != puzgen.MateScore-1 {
		t.Fatalf("unexpected solution %+v", pos.Solution)
	}
}

func TestNextEmpty(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	for _, req := range []trainer.NextRequest{
		{Mode: trainer.ModePuzzles},
		{Mode: trainer.ModeRedo, User: "helix"},
		{Mode: trainer.ModeStudy, User: "helix", StudyID: "abc"},
	} {
		if _, err := s.Next(ctx, req); !errors.Is(err, trainer.ErrNoPosition) {
			t.Fatalf("%s: expected ErrNoPosition, got %v", req.Mode, err)
		}
	}
	if _, err := s.Next(ctx, trainer.NextRequest{Mode: trainer.ModeRedo}); !errors.Is(err, ErrMissingUser) {
		t.Fatalf("expected ErrMissingUser, got %v", err)
	}
	if _, err := s.Next(ctx, trainer.NextRequest{Mode: trainer.ModeStudy}); !errors.Is(err, ErrMissingStudy) {
		t.Fatalf("expected ErrMissingStudy, got %v", err)
	}
}

func TestNextMalformedLine(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	bad := puzzle("bad", 1500)
	bad.Line = []string{"zz"}
	_ = s.repo.InsertPosition(ctx, bad)

	if _, err := s.Next(ctx, trainer.NextRequest{Mode: trainer.ModePuzzles}); !errors.Is(err, trainer.ErrMalformedSolution) {
		t.Fatalf("expected ErrMalformedSolution, got %v", err)
	}
}

func TestNextRedoDropsDanglingIDs(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	_ = s.repo.InsertPosition(ctx, puzzle("kept", 1500))
	_ = s.store.Push(ctx, "helix", "gone", "kept")

	pos, err := s.Next(ctx, trainer.NextRequest{Mode: trainer.ModeRedo, User: "helix"})
	if err != nil || pos.ID != "kept" {
		t.Fatalf("Next = %q %v", pos.ID, err)
	}
	if n, _ := s.store.Len(ctx, "helix"); n != 1 {
		t.Fatalf("expected dangling id removed, queue length %d", n)
	}
}

func TestNextRedoFallsBackToLatestGame(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	p := puzzle("mine", 0)
	p.Kind = puzgen.KindRedo
	p.User = "helix"
	p.MovePlayed = "Qxe5"
	_ = s.repo.InsertPosition(ctx, p)

	pos, err := s.Next(ctx, trainer.NextRequest{Mode: trainer.ModeRedo, User: "helix"})
	if err != nil || pos.ID != "mine" || pos.MovePlayed != "Qxe5" {
		t.Fatalf("Next = %+v %v", pos, err)
	}
}

func TestNextLessonCycles(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	lessons := make([]puzgen.Position, 0, 2)
	for i := 1; i <= 2; i++ {
		l := puzzle(fmt.Sprintf("abc-%d", i), 0)
		l.Kind = puzgen.KindStudy
		l.StudyID = "abc"
		l.Chapter = i
		l.Comments = []string{"mate"}
		lessons = append(lessons, l)
	}
	_ = s.repo.ReplaceLessons(ctx, "abc", lessons)

	var ids []string
	for i := 0; i < 3; i++ {
		pos, err := s.Next(ctx, trainer.NextRequest{Mode: trainer.ModeStudy, User: "helix", StudyID: "abc"})
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		ids = append(ids, pos.ID)
	}
	if strings.Join(ids, ",") != "abc-1,abc-2,abc-1" {
		t.Fatalf("unexpected lesson order %v", ids)
	}
}

func TestEngineEvaluation(t *testing.T) {
	s := newTestService(t)
	s.engine.scores[strings.Fields(mateInOne)[0]] = 420

	score, err := s.EngineEvaluation(context.Background(), mateInOne)
	if err != nil || score != 420 {
		t.Fatalf("EngineEvaluation = %d %v", score, err)
	}
	if _, err := s.EngineEvaluation(context.Background(), "not a fen"); !errors.Is(err, ErrInvalidFEN) {
		t.Fatalf("expected ErrInvalidFEN, got %v", err)
	}
	if len(s.engine.calls) != 1 {
		t.Fatalf("invalid fen must not reach the engine, calls %v", s.engine.calls)
	}
}

func TestReportAttempt(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	_ = s.repo.InsertPosition(ctx, puzzle("p1", 1500))

	err := s.ReportAttempt(ctx, trainer.Attempt{PositionID: "p1", Mode: trainer.ModePuzzles, User: "helix", Result: trainer.ResultFailure})
	if err != nil {
		t.Fatalf("ReportAttempt: %v", err)
	}
	if id, ok, _ := s.store.Head(ctx, "helix"); !ok || id != "p1" {
		t.Fatalf("missed puzzle must be queued, head %q", id)
	}
	if elo, _ := s.store.Rating(ctx, "helix"); elo != 1480 {
		t.Fatalf("expected rating 1480 after a miss, got %d", elo)
	}

	err = s.ReportAttempt(ctx, trainer.Attempt{PositionID: "p1", Mode: trainer.ModeRedo, User: "helix", Result: trainer.ResultSuccess})
	if err != nil {
		t.Fatalf("ReportAttempt: %v", err)
	}
	if _, ok, _ := s.store.Head(ctx, "helix"); ok {
		t.Fatalf("solved redo position must leave the queue")
	}

	err = s.ReportAttempt(ctx, trainer.Attempt{PositionID: "p1", Mode: trainer.ModePuzzles, User: "helix", Result: trainer.ResultInProgress})
	if !errors.Is(err, ErrInvalidAttempt) {
		t.Fatalf("expected ErrInvalidAttempt, got %v", err)
	}
	err = s.ReportAttempt(ctx, trainer.Attempt{PositionID: "missing", Mode: trainer.ModePuzzles, User: "helix", Result: trainer.ResultSuccess})
	if !errors.Is(err, trainer.ErrNoPosition) {
		t.Fatalf("expected ErrNoPosition, got %v", err)
	}
}

func TestControllerAgainstService(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	_ = s.repo.InsertPosition(ctx, puzzle("p1", 1500))

	c := trainer.NewController(s.Service, trainer.WithUser("helix"))
	if err := c.LoadNewPosition(ctx); err != nil {
		t.Fatalf("LoadNewPosition: %v", err)
	}
	out, err := c.SubmitMove(ctx, trainer.MustParseMove("d2d3"))
	if err != nil {
		t.Fatalf("SubmitMove: %v", err)
	}
	if out.Result != trainer.ResultFailure {
		t.Fatalf("expected failure for a quiet move, got %s", out.Result)
	}
	if id, ok, _ := s.store.Head(ctx, "helix"); !ok || id != "p1" {
		t.Fatalf("failed puzzle must be queued for redo")
	}

	if err := c.SetMode(ctx, trainer.ModeRedo); err != nil {
		t.Fatalf("SetMode: %v", err)
	}
	out, err = c.SubmitMove(ctx, trainer.MustParseMove("h5f7"))
	if err != nil || out.Result != trainer.ResultSuccess {
		t.Fatalf("SubmitMove = %+v %v", out, err)
	}
	if _, ok, _ := s.store.Head(ctx, "helix"); ok {
		t.Fatalf("redo queue should be empty after solving")
	}
}
