package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"trialdesk/internal/config"
	"trialdesk/internal/models"

	"github.com/redis/go-redis/v9"
)

// RedisFlowRepository stores family payment flow state in redis so the
// multi-step flow survives process restarts.
type RedisFlowRepository struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisClient создает новый клиент Redis на основе конфигурации
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	options := &redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	}

	return redis.NewClient(options)
}

func NewRedisFlowRepository(client *redis.Client, ttl time.Duration) *RedisFlowRepository {
	if ttl <= 0 {
		ttl = models.DefaultFlowTTL
	}
	return &RedisFlowRepository{
		client: client,
		ttl:    ttl,
	}
}

func flowKey(familyID string) string {
	return fmt.Sprintf("family_flow:%s", familyID)
}

func (r *RedisFlowRepository) GetFlow(ctx context.Context, familyID string) (*models.FamilyPaymentFlow, error) {
	if r.client == nil {
		return nil, fmt.Errorf("redis client is nil")
	}
	val, err := r.client.Get(ctx, flowKey(familyID)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get flow from redis: %w", err)
	}

	var flow models.FamilyPaymentFlow
	if err := json.Unmarshal([]byte(val), &flow); err != nil {
		return nil, fmt.Errorf("failed to unmarshal flow: %w", err)
	}

	return &flow, nil
}

func (r *RedisFlowRepository) SetFlow(ctx context.Context, flow *models.FamilyPaymentFlow) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	data, err := json.Marshal(flow)
	if err != nil {
		return fmt.Errorf("failed to marshal flow: %w", err)
	}

	if err := r.client.Set(ctx, flowKey(flow.FamilyID), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set flow in redis: %w", err)
	}
	return nil
}

func (r *RedisFlowRepository) ClearFlow(ctx context.Context, familyID string) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	if err := r.client.Del(ctx, flowKey(familyID)).Err(); err != nil {
		return fmt.Errorf("failed to clear flow in redis: %w", err)
	}
	return nil
}
