package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gmkornilov/chess-trainer/internal/positions"
	"github.com/gmkornilov/chess-trainer/pkg/trainer"
	"go.uber.org/zap"
)

type PositionApi struct {
	provider trainer.Provider
	logger   *zap.Logger
}

func NewPositionApi(provider trainer.Provider, logger *zap.Logger) *PositionApi {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PositionApi{provider: provider, logger: logger}
}

func (p *PositionApi) Next(ctx *gin.Context) {
	mode, err := trainer.ParseMode(ctx.DefaultQuery("mode", string(trainer.ModePuzzles)))
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{
			"error": err.Error(),
		})
		return
	}
	req := trainer.NextRequest{
		Mode:    mode,
		User:    ctx.Query("user"),
		StudyID: ctx.Query("studyId"),
	}

	pos, err := p.provider.Next(ctx.Request.Context(), req)
	if err != nil {
		p.fail(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, pos)
}

// DecodeFEN reverses the path encoding of a fen, where '\' stands for '/'.
func DecodeFEN(param string) string {
	return strings.ReplaceAll(strings.TrimPrefix(param, "/"), `\`, "/")
}

func (p *PositionApi) EngineEvaluation(ctx *gin.Context) {
	fen := DecodeFEN(ctx.Param("fen"))
	score, err := p.provider.EngineEvaluation(ctx.Request.Context(), fen)
	if err != nil {
		p.fail(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{
		"evaluationScore": score,
	})
}

func (p *PositionApi) ReportAttempt(ctx *gin.Context) {
	var attempt trainer.Attempt
	if err := ctx.ShouldBindJSON(&attempt); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{
			"error": err.Error(),
		})
		return
	}
	if err := p.provider.ReportAttempt(ctx.Request.Context(), attempt); err != nil {
		p.fail(ctx, err)
		return
	}
	ctx.Status(http.StatusNoContent)
}

func (p *PositionApi) fail(ctx *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, trainer.ErrNoPosition):
		status = http.StatusNotFound
	case errors.Is(err, positions.ErrInvalidFEN),
		errors.Is(err, positions.ErrInvalidAttempt),
		errors.Is(err, positions.ErrMissingUser),
		errors.Is(err, positions.ErrMissingStudy):
		status = http.StatusBadRequest
	}
	if status == http.StatusInternalServerError {
		p.logger.Error("request failed", zap.String("path", ctx.FullPath()), zap.Error(err))
	}
	ctx.JSON(status, gin.H{
		"error": err.Error(),
	})
}
