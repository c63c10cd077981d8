package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// SummaryRepository 在 Redis 中缓存文档摘要。
type SummaryRepository interface {
	// Get 返回缓存的摘要；未命中时 ok 为 false。
	Get(ctx context.Context, hash string) (summary string, ok bool, err error)
	Set(ctx context.Context, hash, summary string) error
}

type summaryRepository struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewSummaryRepository 创建一个新的 SummaryRepository。ttl 为 0 表示永不过期。
func NewSummaryRepository(rdb *redis.Client, ttl time.Duration) SummaryRepository {
	return &summaryRepository{rdb: rdb, ttl: ttl}
}

func summaryKey(hash string) string {
	return fmt.Sprintf("doc:%s:summary", hash)
}

func (r *summaryRepository) Get(ctx context.Context, hash string) (string, bool, error) {
	val, err := r.rdb.Get(ctx, summaryKey(hash)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

func (r *summaryRepository) Set(ctx context.Context, hash, summary string) error {
	return r.rdb.Set(ctx, summaryKey(hash), summary, r.ttl).Err()
}
