package events

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisConfig 描述 Redis 发布端的连接参数。
type RedisConfig struct {
	Address  string
	Password string
	DB       int
	List     string
}

// RedisPublisher 使用 Redis list 广播周期事件。
type RedisPublisher struct {
	client *redis.Client
	list   string
}

// NewRedisPublisher 创建 Redis 发布器。
func NewRedisPublisher(cfg RedisConfig) (*RedisPublisher, error) {
	if cfg.Address == "" {
		return nil, errors.New("Redis address 不能为空")
	}
	list := cfg.List
	if list == "" {
		list = "dustmite:cycles"
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("连接 Redis 失败: %w", err)
	}
	return &RedisPublisher{client: client, list: list}, nil
}

// Publish 将事件推入 Redis list。
func (p *RedisPublisher) Publish(ctx context.Context, event CycleEvent) error {
	payload, err := Encode(event)
	if err != nil {
		return err
	}
	if err := p.client.LPush(ctx, p.list, payload).Err(); err != nil {
		return fmt.Errorf("Redis 发布事件失败: %w", err)
	}
	return nil
}

// Close 关闭 Redis 连接。
func (p *RedisPublisher) Close() error {
	if p == nil || p.client == nil {
		return nil
	}
	return p.client.Close()
}

var _ Publisher = (*RedisPublisher)(nil)
