package scraper

import (
	"bytes"
	"context"
	"fmt"

	"github.com/gmkornilov/chess-trainer/internal/dao"
	"github.com/gmkornilov/chess-trainer/pkg/puzgen"
	"go.uber.org/zap"
)

type StudySource interface {
	StudyPGN(ctx context.Context, studyID string) ([]byte, error)
}

// StudyImporter replaces the stored lessons of a study with its current
// chapters.
type StudyImporter struct {
	source StudySource
	repo   dao.PositionRepository
	logger *zap.Logger
}

func NewStudyImporter(source StudySource, repo dao.PositionRepository, logger *zap.Logger) *StudyImporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StudyImporter{source: source, repo: repo, logger: logger}
}

func (s *StudyImporter) Import(ctx context.Context, studyID string) ([]puzgen.Position, error) {
	pgn, err := s.source.StudyPGN(ctx, studyID)
	if err != nil {
		return nil, err
	}
	lessons, err := puzgen.LessonsFromPGN(bytes.NewReader(pgn), studyID)
	if err != nil {
		return nil, fmt.Errorf("parse study %s: %w", studyID, err)
	}
	if err := s.repo.ReplaceLessons(ctx, studyID, lessons); err != nil {
		return nil, fmt.Errorf("save study %s: %w", studyID, err)
	}
	s.logger.Info("study imported", zap.String("study", studyID), zap.Int("lessons", len(lessons)))
	return lessons, nil
}
