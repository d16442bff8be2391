package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/FerQode/facturacion-sri-api2-sub000/internal/infra"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// QueueDepth reports dead-lettered jobs per queue.
type QueueDepth interface {
	Len(ctx context.Context, queue string) (int64, error)
}

// Health returns a JSON health check response.
// Checks DB and Redis connectivity plus the SRI breaker; never exposes
// credentials or internals. An open breaker degrades but does not fail it.
func Health(db *gorm.DB, rdb *redis.Client, cb *infra.CircuitBreaker, dlq QueueDepth, queues ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()

		dbStatus := "connected"
		sqlDB, err := db.DB()
		if err != nil || sqlDB.PingContext(ctx) != nil {
			dbStatus = "error"
		}

		redisStatus := "connected"
		if rdb.Ping(ctx).Err() != nil {
			redisStatus = "error"
		}

		status := http.StatusOK
		if dbStatus != "connected" || redisStatus != "connected" {
			status = http.StatusServiceUnavailable
		}

		body := gin.H{
			"ok":    status == http.StatusOK,
			"db":    dbStatus,
			"redis": redisStatus,
		}
		if cb != nil {
			body["sri"] = cb.State().String()
		}
		if dlq != nil && redisStatus == "connected" {
			depth := make(map[string]int64, len(queues))
			for _, q := range queues {
				if n, err := dlq.Len(ctx, q); err == nil {
					depth[q] = n
				}
			}
			body["dlq"] = depth
		}
		c.JSON(status, body)
	}
}
