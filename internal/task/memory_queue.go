package task

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"AgentKit-Chain/pkg/logger"
)

// ErrQueueClosed 表示队列已关闭，不再接受投递。
var ErrQueueClosed = errors.New("任务队列已关闭")

// MemoryQueue 使用带缓冲的 channel 实现进程内队列。
type MemoryQueue struct {
	ch     chan string
	mu     sync.RWMutex
	closed bool
}

// NewMemoryQueue 创建一个内存队列，size 非正时使用 64。
func NewMemoryQueue(size int) *MemoryQueue {
	if size <= 0 {
		size = 64
	}
	return &MemoryQueue{ch: make(chan string, size)}
}

// Publish 将任务投递到队列，缓冲区满时阻塞直到 ctx 结束。
func (q *MemoryQueue) Publish(ctx context.Context, taskID string) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrQueueClosed
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case q.ch <- taskID:
		return nil
	}
}

// Consume 启动指定数量的工作协程消费队列中的任务。
// 处理失败的任务只记录日志，重试由处理器重新投递。
func (q *MemoryQueue) Consume(ctx context.Context, workerCount int, handler Handler) error {
	if workerCount <= 0 {
		workerCount = 1
	}
	var wg sync.WaitGroup
	for i := 0; i < workerCount; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case taskID, ok := <-q.ch:
					if !ok {
						return
					}
					if err := handler(ctx, taskID); err != nil {
						logger.L().Warn("内存队列任务处理失败", slog.String("task_id", taskID), slog.Any("error", err))
					}
				}
			}
		}()
	}
	wg.Wait()
	if err := ctx.Err(); err != nil {
		return err
	}
	return ErrQueueClosed
}

// Close 关闭内存队列，正在运行的消费者在取完缓冲后退出。
func (q *MemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.closed {
		close(q.ch)
		q.closed = true
	}
	return nil
}
