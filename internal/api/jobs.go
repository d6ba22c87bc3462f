package api

import (
	"context"
	"net/http"
	"strconv"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gmkornilov/chess-trainer/internal/scraper"
	"github.com/google/uuid"
)

// JobFactory creates the background job that imports a user's games.
type JobFactory interface {
	CreateUserGamesScraper(nickname string, max int) *scraper.UserGamesScraper
}

type JobApi struct {
	factory    JobFactory
	ctx        context.Context
	activeJobs map[string]scraper.Worker
	mu         sync.RWMutex
}

// NewJobApi runs jobs under ctx so they stop with the server.
func NewJobApi(ctx context.Context, factory JobFactory) *JobApi {
	return &JobApi{
		factory:    factory,
		ctx:        ctx,
		activeJobs: make(map[string]scraper.Worker),
	}
}

func (t *JobApi) StartRedoImport(ctx *gin.Context) {
	name := ctx.Param("username")
	maxStr := ctx.DefaultQuery("max", "20")
	max, err := strconv.Atoi(maxStr)
	if err != nil || max <= 0 {
		ctx.JSON(http.StatusBadRequest, gin.H{
			"error": "max should be positive integer",
		})
		return
	}

	worker := t.factory.CreateUserGamesScraper(name, max)
	id := uuid.NewString()

	t.mu.Lock()
	t.activeJobs[id] = worker
	t.mu.Unlock()

	worker.StartWork(t.ctx)
	ctx.JSON(http.StatusOK, gin.H{
		"job_id": id,
	})
}

func (t *JobApi) GetJobStatus(ctx *gin.Context) {
	id := ctx.Param("job_id")
	t.mu.Lock()
	defer t.mu.Unlock()
	worker, ok := t.activeJobs[id]
	if !ok {
		ctx.AbortWithStatus(http.StatusNotFound)
		return
	}
	if !worker.Done() {
		ctx.JSON(http.StatusOK, gin.H{
			"done":     false,
			"progress": worker.Progress(),
		})
		return
	}

	delete(t.activeJobs, id)
	if worker.Error() != nil {
		ctx.JSON(http.StatusOK, gin.H{
			"done":  true,
			"error": worker.Error().Error(),
		})
		return
	}
	ctx.JSON(http.StatusOK, gin.H{
		"done":   true,
		"result": worker.Result(),
	})
}
