package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"cartengine/internal/domain/model"
	"cartengine/internal/usecase"

	"github.com/redis/go-redis/v9"
)

// CartView の読み取りキャッシュ。変更が確定したらusecase側でDeleteする
type RedisCartCache struct {
	client  *redis.Client
	baseTTL time.Duration
}

func NewRedisCartCache(client *redis.Client, ttl time.Duration) *RedisCartCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &RedisCartCache{client: client, baseTTL: ttl}
}

// 見つからなければ (_, false, nil)
func (c *RedisCartCache) Get(ctx context.Context, owner model.Owner) (usecase.CartView, bool, error) {
	data, err := c.client.Get(ctx, cacheKey(owner)).Bytes()
	if errors.Is(err, redis.Nil) {
		return usecase.CartView{}, false, nil
	}
	if err != nil {
		return usecase.CartView{}, false, fmt.Errorf("redis get failed: %w", err)
	}

	var view usecase.CartView
	if err := json.Unmarshal(data, &view); err != nil {
		return usecase.CartView{}, false, fmt.Errorf("unmarshal cart view failed: %w", err)
	}
	return view, true, nil
}

// 世代の保持期間。表示キャッシュより十分長ければよい
const versionTTL = 24 * time.Hour

// 世代キーが無ければ0
func (c *RedisCartCache) Version(ctx context.Context, owner model.Owner) (int64, error) {
	v, err := c.client.Get(ctx, versionKey(owner)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("redis get version failed: %w", err)
	}
	return v, nil
}

// SetIfVersion は世代キーをWATCHし、version のままならMULTIで保存する。
// 途中でDeleteが世代を進めたら保存せず false
func (c *RedisCartCache) SetIfVersion(ctx context.Context, owner model.Owner, version int64, view usecase.CartView) (bool, error) {
	data, err := json.Marshal(view)
	if err != nil {
		return false, fmt.Errorf("marshal cart view failed: %w", err)
	}

	// 同時に切れないように少しずらす
	jitter := time.Duration(rand.Int63n(int64(c.baseTTL/5) + 1))
	vkey := versionKey(owner)
	stored := false

	err = c.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, vkey).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if current != version {
			return nil
		}
		if _, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, cacheKey(owner), data, c.baseTTL+jitter)
			return nil
		}); err != nil {
			return err
		}
		stored = true
		return nil
	}, vkey)
	if errors.Is(err, redis.TxFailedErr) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("redis set failed: %w", err)
	}
	return stored, nil
}

// Delete は世代を進めてから表示を消す
func (c *RedisCartCache) Delete(ctx context.Context, owners ...model.Owner) error {
	if len(owners) == 0 {
		return nil
	}
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, o := range owners {
			pipe.Incr(ctx, versionKey(o))
			pipe.Expire(ctx, versionKey(o), versionTTL)
			pipe.Del(ctx, cacheKey(o))
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

// cart:user:1 / cart:guest:<uuid>
func cacheKey(owner model.Owner) string {
	return "cart:" + owner.String()
}

// cart_ver:user:1
func versionKey(owner model.Owner) string {
	return "cart_ver:" + owner.String()
}
