package infra

import (
	"context"
	"encoding/json"
	"time"

	"github.com/FerQode/facturacion-sri-api2-sub000/internal/service"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const precioCacheTTL = 4 * time.Hour

// PrecioCache keeps price checks in Redis under precio:<sku>. A second key
// precio:id:<id> maps the product back to its SKU for invalidation.
type PrecioCache struct {
	rdb *redis.Client
}

func NewPrecioCache(rdb *redis.Client) *PrecioCache {
	return &PrecioCache{rdb: rdb}
}

var _ service.PrecioCache = (*PrecioCache)(nil)

func (c *PrecioCache) Get(ctx context.Context, sku string) (*service.ConsultaPrecio, bool) {
	b, err := c.rdb.Get(ctx, "precio:"+sku).Bytes()
	if err != nil {
		return nil, false
	}
	var out service.ConsultaPrecio
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, false
	}
	return &out, true
}

func (c *PrecioCache) Set(ctx context.Context, p service.ConsultaPrecio) {
	b, err := json.Marshal(p)
	if err != nil {
		return
	}
	pipe := c.rdb.TxPipeline()
	pipe.Set(ctx, "precio:"+p.SKU, b, precioCacheTTL)
	pipe.Set(ctx, "precio:id:"+p.ID.String(), p.SKU, precioCacheTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		log.Debug().Err(err).Str("sku", p.SKU).Msg("precio cache: set failed")
	}
}

func (c *PrecioCache) Invalidate(ctx context.Context, productoID uuid.UUID) {
	idKey := "precio:id:" + productoID.String()
	sku, err := c.rdb.Get(ctx, idKey).Result()
	if err != nil {
		return
	}
	if err := c.rdb.Del(ctx, "precio:"+sku, idKey).Err(); err != nil {
		log.Debug().Err(err).Str("sku", sku).Msg("precio cache: invalidate failed")
	}
}
