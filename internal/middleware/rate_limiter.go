package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/FerQode/facturacion-sri-api2-sub000/internal/apierror"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// RateLimiter is a fixed-window limiter keyed by client IP and shared by
// every API instance through Redis. When Redis is unreachable requests pass.
func RateLimiter(rdb *redis.Client, scope string, limit int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		slot := time.Now().Unix() / int64(window.Seconds())
		key := "ratelimit:" + scope + ":" + c.ClientIP() + ":" + strconv.FormatInt(slot, 10)

		pipe := rdb.TxPipeline()
		incr := pipe.Incr(ctx, key)
		pipe.Expire(ctx, key, window)
		if _, err := pipe.Exec(ctx); err != nil {
			log.Debug().Err(err).Str("scope", scope).Msg("rate limiter: redis unavailable, allowing")
			c.Next()
			return
		}

		if incr.Val() > int64(limit) {
			c.Header("Retry-After", strconv.Itoa(int(window.Seconds())))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, apierror.New("Demasiadas solicitudes. Intente nuevamente en un momento."))
			return
		}
		c.Next()
	}
}

// LoginRateLimiter limits login attempts to 20 per minute per IP.
func LoginRateLimiter(rdb *redis.Client) gin.HandlerFunc {
	return RateLimiter(rdb, "login", 20, time.Minute)
}
