package dao

import (
	"context"
	"errors"
	"testing"

	"github.com/gmkornilov/chess-trainer/pkg/puzgen"
)

func TestMemoryRepository_PuzzleSampling(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	err := repo.InsertAllPositions(ctx, []puzgen.Position{
		{ID: "easy", Kind: puzgen.KindPuzzle, TargetElo: 1200},
		{ID: "hard", Kind: puzgen.KindPuzzle, TargetElo: 2200},
		{ID: "redo", Kind: puzgen.KindRedo, TargetElo: 1200},
	})
	if err != nil {
		t.Fatalf("InsertAllPositions: %v", err)
	}

	for i := 0; i < 10; i++ {
		p, err := repo.GetRandomPuzzleForElo(ctx, 1250)
		if err != nil || p.ID != "easy" {
			t.Fatalf("expected easy puzzle, got %q (%v)", p.ID, err)
		}
	}
	if _, err := repo.GetRandomPuzzleForElo(ctx, 1700); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := repo.GetRandomPuzzleForElo(ctx, 0); err != nil {
		t.Fatalf("unrated sampling: %v", err)
	}
}

func TestMemoryRepository_Lessons(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	_ = repo.ReplaceLessons(ctx, "abc", []puzgen.Position{
		{ID: "abc-2", Kind: puzgen.KindStudy, StudyID: "abc", Chapter: 2},
		{ID: "abc-1", Kind: puzgen.KindStudy, StudyID: "abc", Chapter: 1},
	})
	_ = repo.ReplaceLessons(ctx, "abc", []puzgen.Position{
		{ID: "abc-3", Kind: puzgen.KindStudy, StudyID: "abc", Chapter: 3},
		{ID: "abc-1", Kind: puzgen.KindStudy, StudyID: "abc", Chapter: 1},
	})

	lessons, err := repo.GetLessons(ctx, "abc")
	if err != nil {
		t.Fatalf("GetLessons: %v", err)
	}
	if len(lessons) != 2 || lessons[0].ID != "abc-1" || lessons[1].ID != "abc-3" {
		t.Fatalf("unexpected lessons %+v", lessons)
	}
	if _, err := repo.GetPosition(ctx, "abc-2"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("replaced lesson must be gone, got %v", err)
	}
}

func TestMemoryRepository_LastUserPosition(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	_ = repo.InsertPosition(ctx, puzgen.Position{ID: "a", Kind: puzgen.KindRedo, User: "helix", GameData: puzgen.GameData{Date: 10}})
	_ = repo.InsertPosition(ctx, puzgen.Position{ID: "b", Kind: puzgen.KindRedo, User: "helix", GameData: puzgen.GameData{Date: 20}})
	_ = repo.InsertPosition(ctx, puzgen.Position{ID: "c", Kind: puzgen.KindRedo, User: "bob", GameData: puzgen.GameData{Date: 30}})

	p, err := repo.GetLastUserPosition(ctx, "helix")
	if err != nil || p.ID != "b" {
		t.Fatalf("expected b, got %q (%v)", p.ID, err)
	}
	if _, err := repo.GetLastUserPosition(ctx, "nobody"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
