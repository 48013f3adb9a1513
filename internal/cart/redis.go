package cart

import (
	"context"
	"encoding/json"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// Session TTL in Redis. Abandoned carts eventually age out; anything a
// seller touches gets its TTL refreshed on every mutation.
const redisSessionTTL = 14 * 24 * time.Hour

type RedisPersister struct {
	client *redis.Client
}

func NewRedisPersister(addr string, password string, db int) *RedisPersister {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	return &RedisPersister{client: client}
}

func (p *RedisPersister) Ping(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

func (p *RedisPersister) Close() error {
	return p.client.Close()
}

func (p *RedisPersister) Load(ctx context.Context, key string) (*Session, bool, error) {
	val, err := p.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var session Session
	if err := json.Unmarshal([]byte(val), &session); err != nil {
		return nil, false, err
	}
	return &session, true, nil
}

func (p *RedisPersister) Save(ctx context.Context, key string, session *Session) error {
	if session == nil {
		return nil
	}
	payload, err := json.Marshal(session)
	if err != nil {
		return err
	}
	return p.client.Set(ctx, key, payload, redisSessionTTL).Err()
}

func (p *RedisPersister) Delete(ctx context.Context, key string) error {
	return p.client.Del(ctx, key).Err()
}
