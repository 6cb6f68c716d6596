// README: Redis cache for resolved rates keyed by country.
package rates

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const rateKeyPrefix = "rates:country:%s"

type RedisCache struct {
	redis *redis.Client
	ttl   time.Duration
}

func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{redis: client, ttl: ttl}
}

func (c *RedisCache) Get(ctx context.Context, countryID string) (Rate, bool, error) {
	val, err := c.redis.Get(ctx, rateKey(countryID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Rate{}, false, nil
	}
	if err != nil {
		return Rate{}, false, err
	}
	var r Rate
	if err := json.Unmarshal(val, &r); err != nil {
		return Rate{}, false, err
	}
	return r, true, nil
}

func (c *RedisCache) Set(ctx context.Context, countryID string, r Rate) error {
	data, err := json.Marshal(r)
	if err != nil {
		return err
	}
	return c.redis.Set(ctx, rateKey(countryID), data, c.ttl).Err()
}

func rateKey(countryID string) string {
	if countryID == "" {
		countryID = "_global"
	}
	return fmt.Sprintf(rateKeyPrefix, countryID)
}
