package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func NewRouter(positionApi *PositionApi, jobApi *JobApi, studyApi *StudyApi, logger *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(logger))

	r.GET("/positions/next", positionApi.Next)
	r.POST("/positions/attempts", positionApi.ReportAttempt)
	r.GET("/engineEvaluation/*fen", positionApi.EngineEvaluation)

	if jobApi != nil {
		r.POST("/jobs/redo/:username", jobApi.StartRedoImport)
		r.GET("/jobs/:job_id", jobApi.GetJobStatus)
	}
	if studyApi != nil {
		r.POST("/studies/:studyId/import", studyApi.ImportStudy)
	}
	return r
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(ctx *gin.Context) {
		start := time.Now()
		ctx.Next()
		logger.Debug("request",
			zap.String("method", ctx.Request.Method),
			zap.String("path", ctx.Request.URL.Path),
			zap.Int("status", ctx.Writer.Status()),
			zap.Duration("took", time.Since(start)),
		)
	}
}
