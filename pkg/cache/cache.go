package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// TTL 상수 정의
const (
	TTLProfile = 10 * time.Minute // 사용자 프로필 (변경 빈도 낮음)
	TTLMembers = 2 * time.Minute  // 회사 구성원 목록
	TTLDefault = 5 * time.Minute
)

// 캐시 키 접두사
const (
	PrefixProfile = "messenger:profile:"
	PrefixMembers = "messenger:members:"
)

// ErrMiss is returned by Get when the key is absent or redis is not configured
var ErrMiss = errors.New("cache miss")

// Service Redis 캐시 서비스 인터페이스
type Service interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error

	GetProfile(ctx context.Context, userID string, dest interface{}) error
	SetProfile(ctx context.Context, userID string, data interface{}) error
	InvalidateProfile(ctx context.Context, userID string) error

	GetMembers(ctx context.Context, companyID string, dest interface{}) error
	SetMembers(ctx context.Context, companyID string, data interface{}) error
	InvalidateMembers(ctx context.Context, companyID string) error

	IsAvailable() bool
}

// redisCache Redis 기반 캐시 구현
type redisCache struct {
	client *redis.Client
}

// NewService returns a cache backed by client. A nil client yields a cache that
// always misses and silently drops writes.
func NewService(client *redis.Client) Service {
	return &redisCache{client: client}
}

// IsAvailable Redis 연결 가능 여부
func (c *redisCache) IsAvailable() bool {
	return c.client != nil
}

// Get 캐시에서 값 조회
func (c *redisCache) Get(ctx context.Context, key string, dest interface{}) error {
	if c.client == nil {
		return ErrMiss
	}

	data, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrMiss
	}
	if err != nil {
		return fmt.Errorf("cache get %s: %w", key, err)
	}

	return json.Unmarshal(data, dest)
}

// Set 캐시에 값 저장
func (c *redisCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if c.client == nil {
		return nil // Redis 없으면 무시
	}

	data, err := json.Marshal(value)
	if err != nil {
		return err
	}

	return c.client.Set(ctx, key, data, ttl).Err()
}

// Delete 캐시 삭제
func (c *redisCache) Delete(ctx context.Context, keys ...string) error {
	if c.client == nil {
		return nil
	}
	return c.client.Del(ctx, keys...).Err()
}

// ========================================
// 프로필 캐시
// ========================================

func (c *redisCache) GetProfile(ctx context.Context, userID string, dest interface{}) error {
	return c.Get(ctx, PrefixProfile+userID, dest)
}

func (c *redisCache) SetProfile(ctx context.Context, userID string, data interface{}) error {
	return c.Set(ctx, PrefixProfile+userID, data, TTLProfile)
}

func (c *redisCache) InvalidateProfile(ctx context.Context, userID string) error {
	return c.Delete(ctx, PrefixProfile+userID)
}

// ========================================
// 구성원 캐시
// ========================================

func (c *redisCache) GetMembers(ctx context.Context, companyID string, dest interface{}) error {
	return c.Get(ctx, PrefixMembers+companyID, dest)
}

func (c *redisCache) SetMembers(ctx context.Context, companyID string, data interface{}) error {
	return c.Set(ctx, PrefixMembers+companyID, data, TTLMembers)
}

func (c *redisCache) InvalidateMembers(ctx context.Context, companyID string) error {
	return c.Delete(ctx, PrefixMembers+companyID)
}
