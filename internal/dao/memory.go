package dao

import (
	"context"
	"math/rand"
	"sort"
	"sync"

	"github.com/gmkornilov/chess-trainer/pkg/puzgen"
)

// memoryRepository keeps positions in a map. Used for local runs without
// mongo and in tests; contents are lost on restart.
type memoryRepository struct {
	mu        sync.RWMutex
	positions map[string]puzgen.Position
}

func NewMemoryRepository() PositionRepository {
	return &memoryRepository{positions: make(map[string]puzgen.Position)}
}

func (m *memoryRepository) GetRandomPuzzleForElo(ctx context.Context, elo int) (puzgen.Position, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	candidates := make([]puzgen.Position, 0)
	for _, p := range m.positions {
		if p.Kind != puzgen.KindPuzzle {
			continue
		}
		if elo > 0 && (p.TargetElo < elo-eloWindow || p.TargetElo > elo+eloWindow) {
			continue
		}
		candidates = append(candidates, p)
	}
	if len(candidates) == 0 {
		return puzgen.Position{}, ErrNotFound
	}
	return candidates[rand.Intn(len(candidates))], nil
}

func (m *memoryRepository) GetPosition(ctx context.Context, id string) (puzgen.Position, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.positions[id]
	if !ok {
		return puzgen.Position{}, ErrNotFound
	}
	return p, nil
}

func (m *memoryRepository) InsertPosition(ctx context.Context, position puzgen.Position) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.positions[position.ID] = position
	return nil
}

func (m *memoryRepository) InsertAllPositions(ctx context.Context, positions []puzgen.Position) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range positions {
		m.positions[p.ID] = p
	}
	return nil
}

func (m *memoryRepository) GetLastUserPosition(ctx context.Context, username string) (puzgen.Position, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var last puzgen.Position
	found := false
	for _, p := range m.positions {
		if p.Kind != puzgen.KindRedo || p.User != username {
			continue
		}
		if !found || p.GameData.Date > last.GameData.Date {
			last, found = p, true
		}
	}
	if !found {
		return puzgen.Position{}, ErrNotFound
	}
	return last, nil
}

func (m *memoryRepository) GetLessons(ctx context.Context, studyID string) ([]puzgen.Position, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	lessons := make([]puzgen.Position, 0)
	for _, p := range m.positions {
		if p.Kind == puzgen.KindStudy && p.StudyID == studyID {
			lessons = append(lessons, p)
		}
	}
	sort.Slice(lessons, func(i, j int) bool { return lessons[i].Chapter < lessons[j].Chapter })
	return lessons, nil
}

func (m *memoryRepository) ReplaceLessons(ctx context.Context, studyID string, lessons []puzgen.Position) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, p := range m.positions {
		if p.Kind == puzgen.KindStudy && p.StudyID == studyID {
			delete(m.positions, id)
		}
	}
	for _, p := range lessons {
		m.positions[p.ID] = p
	}
	return nil
}
