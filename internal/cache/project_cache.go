package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"teamboard/internal/model"
	"teamboard/pkg/metrics"
)

const (
	cacheName        = "project_detail"
	projectDetailTTL = 5 * time.Minute
)

// ProjectCache holds assembled project detail views in Redis. Lookups are
// best-effort: any cache failure falls through to Postgres.
type ProjectCache struct {
	rdb    *redis.Client
	logger *zap.Logger
}

func NewProjectCache(rdb *redis.Client, logger *zap.Logger) *ProjectCache {
	return &ProjectCache{rdb: rdb, logger: logger}
}

func projectKey(projectID int) string {
	return fmt.Sprintf("project:detail:%d", projectID)
}

func (c *ProjectCache) Get(ctx context.Context, projectID int) (*model.ProjectDetail, bool) {
	val, err := c.rdb.Get(ctx, projectKey(projectID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			metrics.IncrementCacheLookup(cacheName, "miss")
		} else {
			metrics.IncrementCacheLookup(cacheName, "error")
			c.logger.Warn("Project cache read failed",
				zap.Int("project_id", projectID),
				zap.Error(err),
			)
		}
		return nil, false
	}

	var detail model.ProjectDetail
	if err := json.Unmarshal(val, &detail); err != nil {
		c.logger.Warn("Project cache entry corrupt, dropping",
			zap.Int("project_id", projectID),
			zap.Error(err),
		)
		c.Invalidate(ctx, projectID)
		return nil, false
	}

	metrics.IncrementCacheLookup(cacheName, "hit")
	return &detail, true
}

func (c *ProjectCache) Set(ctx context.Context, detail *model.ProjectDetail) {
	b, err := json.Marshal(detail)
	if err != nil {
		c.logger.Warn("Failed to marshal project detail for cache",
			zap.Int("project_id", detail.ID),
			zap.Error(err),
		)
		return
	}
	if err := c.rdb.Set(ctx, projectKey(detail.ID), b, projectDetailTTL).Err(); err != nil {
		c.logger.Warn("Project cache write failed",
			zap.Int("project_id", detail.ID),
			zap.Error(err),
		)
	}
}

// Invalidate drops one project's entry. Mutations call this with the project
// they touched; other projects' entries stay warm.
func (c *ProjectCache) Invalidate(ctx context.Context, projectID int) {
	if err := c.rdb.Del(ctx, projectKey(projectID)).Err(); err != nil {
		c.logger.Warn("Project cache invalidation failed",
			zap.Int("project_id", projectID),
			zap.Error(err),
		)
	}
}
