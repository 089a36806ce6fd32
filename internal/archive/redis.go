package archive

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ClusterLabs/pcs-sub012/internal/codec"
	"github.com/ClusterLabs/pcs-sub012/internal/config"
	"github.com/ClusterLabs/pcs-sub012/pkg/types"
)

// RedisArchive stores snapshots as JSON strings under <prefix>task:<ident>.
type RedisArchive struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	codec  codec.Codec
}

// NewRedis connects to Redis and verifies the connection.
func NewRedis(ctx context.Context, cfg config.ArchiveConfig) (*RedisArchive, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", cfg.Addr, err)
	}
	return NewRedisWithClient(client, cfg.Prefix, cfg.TTL), nil
}

// NewRedisWithClient wraps an existing client.
func NewRedisWithClient(client *redis.Client, prefix string, ttl time.Duration) *RedisArchive {
	return &RedisArchive{client: client, prefix: prefix, ttl: ttl, codec: codec.JSON()}
}

// Key returns the Redis key of a task.
func (a *RedisArchive) Key(taskIdent string) string {
	return a.prefix + "task:" + taskIdent
}

// Store writes dto as JSON under Key(dto.TaskIdent) with the configured TTL.
func (a *RedisArchive) Store(ctx context.Context, dto types.TaskDTO) error {
	data, err := a.codec.Marshal(dto)
	if err != nil {
		return fmt.Errorf("encode task %s: %w", dto.TaskIdent, err)
	}
	return a.client.Set(ctx, a.Key(dto.TaskIdent), data, a.ttl).Err()
}

// Load returns ErrNotArchived when the key is missing or expired.
func (a *RedisArchive) Load(ctx context.Context, taskIdent string) (types.TaskDTO, error) {
	data, err := a.client.Get(ctx, a.Key(taskIdent)).Bytes()
	if errors.Is(err, redis.Nil) {
		return types.TaskDTO{}, ErrNotArchived
	}
	if err != nil {
		return types.TaskDTO{}, fmt.Errorf("get task %s: %w", taskIdent, err)
	}

	var dto types.TaskDTO
	if err := a.codec.Unmarshal(data, &dto); err != nil {
		return types.TaskDTO{}, fmt.Errorf("decode task %s: %w", taskIdent, err)
	}
	return dto, nil
}

// Close closes the Redis client.
func (a *RedisArchive) Close() error {
	return a.client.Close()
}
