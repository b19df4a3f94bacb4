package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/geocoder89/accounthub/internal/domain/user"
	"github.com/redis/go-redis/v9"
)

// Users is a cache-aside layer over the sanitized user view: a short
// in-process TTL map in front of redis. Every profile mutation must
// invalidate. Redis being down degrades to the local layer only.
type Users struct {
	local *Local
	rdb   *redis.Client
	ttl   time.Duration
	log   *slog.Logger
}

func NewUsers(rdb *redis.Client, ttl time.Duration, log *slog.Logger) *Users {
	if ttl <= 0 {
		ttl = 60 * time.Second
	}

	return &Users{
		local: NewLocal(5 * time.Second),
		rdb:   rdb,
		ttl:   ttl,
		log:   log,
	}
}

func userKey(id string) string {
	return "user:public:" + id
}

func (c *Users) Get(ctx context.Context, id string) (user.Public, bool) {
	if v, ok := c.local.Get(userKey(id)); ok {
		if p, ok := v.(user.Public); ok {
			return p, true
		}
	}

	if c.rdb == nil {
		return user.Public{}, false
	}

	raw, err := c.rdb.Get(ctx, userKey(id)).Result()

	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.log.Warn("user cache read failed", "err", err)
		}
		return user.Public{}, false
	}

	var p user.Public

	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return user.Public{}, false
	}

	c.local.Set(userKey(id), p)

	return p, true
}

func (c *Users) Set(ctx context.Context, p user.Public) {
	c.local.Set(userKey(p.ID), p)

	if c.rdb == nil {
		return
	}

	b, err := json.Marshal(p)

	if err != nil {
		return
	}

	if err := c.rdb.Set(ctx, userKey(p.ID), b, c.ttl).Err(); err != nil {
		c.log.Warn("user cache write failed", "err", err)
	}
}

func (c *Users) Invalidate(ctx context.Context, id string) {
	c.local.Delete(userKey(id))

	if c.rdb == nil {
		return
	}

	if err := c.rdb.Del(ctx, userKey(id)).Err(); err != nil {
		c.log.Warn("user cache invalidate failed", "err", err)
	}
}
