package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gmkornilov/chess-trainer/internal/lichess"
	"github.com/gmkornilov/chess-trainer/pkg/puzgen"
)

type StudyImporter interface {
	Import(ctx context.Context, studyID string) ([]puzgen.Position, error)
}

type StudyApi struct {
	importer StudyImporter
}

func NewStudyApi(importer StudyImporter) *StudyApi {
	return &StudyApi{importer: importer}
}

func (s *StudyApi) ImportStudy(ctx *gin.Context) {
	studyID := ctx.Param("studyId")
	lessons, err := s.importer.Import(ctx.Request.Context(), studyID)
	if errors.Is(err, lichess.ErrNotFound) {
		ctx.JSON(http.StatusNotFound, gin.H{
			"error": "study " + studyID + " doesn't exist on lichess",
		})
		return
	}
	if err != nil {
		ctx.JSON(http.StatusBadGateway, gin.H{
			"error": err.Error(),
		})
		return
	}
	ctx.JSON(http.StatusOK, gin.H{
		"lessons": len(lessons),
	})
}
