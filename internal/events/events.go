// Package events 将每个资金调度周期的结果广播给下游系统。
// 发布失败不会影响周期本身, 由调用方决定是否降级为日志。
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// CycleEvent 表示一次周期结束后对外发布的消息体。
type CycleEvent struct {
	CycleID     string  `json:"cycle_id"`
	Timestamp   int64   `json:"timestamp"`
	Action      string  `json:"action"`
	Amount      string  `json:"amount"`
	Reason      string  `json:"reason"`
	APYSnapshot float64 `json:"apy_snapshot"`
	TxHash      string  `json:"tx_hash,omitempty"`
	Outcome     string  `json:"outcome"`
}

// Publisher 抽象周期事件的发布端。
type Publisher interface {
	Publish(ctx context.Context, event CycleEvent) error
	Close() error
}

// Encode 将事件序列化为 JSON。
func Encode(event CycleEvent) ([]byte, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("序列化周期事件失败: %w", err)
	}
	return payload, nil
}

// MemoryPublisher 将事件保留在内存中, 用于测试与单机部署。
type MemoryPublisher struct {
	mu     sync.Mutex
	events []CycleEvent
}

// NewMemoryPublisher 创建内存发布器。
func NewMemoryPublisher() *MemoryPublisher {
	return &MemoryPublisher{}
}

// Publish 记录事件。
func (p *MemoryPublisher) Publish(_ context.Context, event CycleEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	if len(p.events) > 512 {
		p.events = p.events[len(p.events)-512:]
	}
	return nil
}

// Events 返回已发布事件的副本。
func (p *MemoryPublisher) Events() []CycleEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]CycleEvent, len(p.events))
	copy(out, p.events)
	return out
}

// Close 实现 Publisher 接口。
func (p *MemoryPublisher) Close() error { return nil }

var _ Publisher = (*MemoryPublisher)(nil)
