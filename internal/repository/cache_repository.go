package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/lms-report-api/internal/models"
	appErrors "github.com/noah-isme/lms-report-api/pkg/errors"
)

// CachedExecution is the serialized form of one rendered execution.
type CachedExecution struct {
	Table  *models.TabularResult `json:"table"`
	Charts []models.Chart        `json:"charts,omitempty"`
}

// CacheRepository caches rendered executions in Redis, keyed by report id
// plus a fingerprint of the request context. Keys expire on TTL and are
// invalidated as a group whenever the report changes.
type CacheRepository struct {
	client *redis.Client
	ttl    time.Duration
}

func NewCacheRepository(client *redis.Client, ttl time.Duration) *CacheRepository {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &CacheRepository{client: client, ttl: ttl}
}

func (r *CacheRepository) key(reportID, fingerprint string) string {
	return fmt.Sprintf("report:result:%s:%s", reportID, fingerprint)
}

func (r *CacheRepository) GetResult(ctx context.Context, reportID, fingerprint string) (*CachedExecution, error) {
	raw, err := r.client.Get(ctx, r.key(reportID, fingerprint)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, appErrors.Clone(appErrors.ErrCacheMiss, "")
		}
		return nil, fmt.Errorf("cache get: %w", err)
	}
	var out CachedExecution
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("cache decode: %w", err)
	}
	return &out, nil
}

func (r *CacheRepository) SetResult(ctx context.Context, reportID, fingerprint string, exec *CachedExecution) error {
	raw, err := json.Marshal(exec)
	if err != nil {
		return fmt.Errorf("cache encode: %w", err)
	}
	if err := r.client.Set(ctx, r.key(reportID, fingerprint), raw, r.ttl).Err(); err != nil {
		return fmt.Errorf("cache set: %w", err)
	}
	return nil
}

// InvalidateReport drops every cached execution of one report.
func (r *CacheRepository) InvalidateReport(ctx context.Context, reportID string) error {
	pattern := r.key(reportID, "*")
	var cursor uint64
	for {
		keys, next, err := r.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return fmt.Errorf("cache scan: %w", err)
		}
		if len(keys) > 0 {
			if err := r.client.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("cache del: %w", err)
			}
		}
		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}
