package task

import (
	"context"
	"fmt"
	"strings"

	"AgentKit-Chain/internal/config"
)

// Handler 处理来自消息队列的任务 ID。返回错误表示需要由队列重新投递。
type Handler func(ctx context.Context, taskID string) error

// Producer 负责向队列投递任务。
type Producer interface {
	Publish(ctx context.Context, taskID string) error
	Close() error
}

// Consumer 负责从队列中消费任务，阻塞直到 ctx 结束或出现不可恢复的错误。
type Consumer interface {
	Consume(ctx context.Context, workerCount int, handler Handler) error
	Close() error
}

// Queue 同时具备生产者与消费者能力。
type Queue interface {
	Producer
	Consumer
}

// NewQueue 按配置的驱动创建任务队列。
func NewQueue(cfg config.QueueConfig) (Queue, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", "memory":
		return NewMemoryQueue(cfg.Size), nil
	case "redis":
		return NewRedisQueue(RedisQueueConfig{
			Address:   cfg.Redis.Address,
			Password:  cfg.Redis.Password,
			DB:        cfg.Redis.DB,
			Queue:     cfg.Redis.Queue,
			BlockWait: cfg.Wait,
		})
	case "rabbitmq":
		return NewRabbitMQQueue(RabbitMQConfig{
			URL:      cfg.RabbitMQ.URL,
			Queue:    cfg.RabbitMQ.Queue,
			Prefetch: cfg.RabbitMQ.Prefetch,
			Durable:  cfg.RabbitMQ.Durable,
		})
	default:
		return nil, fmt.Errorf("不支持的任务队列驱动: %s", cfg.Driver)
	}
}

// NewStore 按配置的驱动创建任务存储。
func NewStore(ctx context.Context, cfg config.TaskStoreConfig) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", "memory":
		return NewMemoryStore(), nil
	case "mysql":
		return NewMySQLStore(ctx, MySQLConfig{DSN: cfg.DSN})
	default:
		return nil, fmt.Errorf("不支持的任务存储驱动: %s", cfg.Driver)
	}
}
