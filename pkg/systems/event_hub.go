package systems

import (
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/RaccoonTwigs/vsmod-AnimationManagerLib/pkg/animation"
)

// EventType 动画管理器事件类型
type EventType int

const (
	// EventRunStarted 新的运行开始执行第一个请求
	EventRunStarted EventType = iota
	// EventRunAdvanced 运行推进到下一个请求
	EventRunAdvanced
	// EventRunFinished 运行的所有请求执行完毕
	EventRunFinished
	// EventRunStopped 运行被停止或被其他运行接管
	EventRunStopped
	// EventTargetInvalidated 目标失效，其所有运行被清理
	EventTargetInvalidated
)

func (e EventType) String() string {
	switch e {
	case EventRunStarted:
		return "run_started"
	case EventRunAdvanced:
		return "run_advanced"
	case EventRunFinished:
		return "run_finished"
	case EventRunStopped:
		return "run_stopped"
	case EventTargetInvalidated:
		return "target_invalidated"
	default:
		return fmt.Sprintf("EventType(%d)", int(e))
	}
}

// Event 动画管理器事件
type Event struct {
	Type   EventType
	RunID  uuid.UUID
	Target animation.Target
	// Request 当前请求（RunStarted / RunAdvanced）
	Request animation.Request
}

// EventHub 事件分发
// 订阅者按订阅顺序被同步调用（在模拟线程上）
type EventHub struct {
	mu          sync.Mutex
	nextID      int
	subscribers map[int]func(Event)
	closed      bool
}

// NewEventHub 创建事件分发器
func NewEventHub() *EventHub {
	return &EventHub{subscribers: make(map[int]func(Event))}
}

// Subscribe 订阅事件，返回取消订阅函数
// 已关闭的分发器返回空操作
func (h *EventHub) Subscribe(fn func(Event)) (unsubscribe func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed || fn == nil {
		return func() {}
	}
	id := h.nextID
	h.nextID++
	h.subscribers[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subscribers, id)
			h.mu.Unlock()
		})
	}
}

// Publish 分发事件
func (h *EventHub) Publish(e Event) {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	ids := make([]int, 0, len(h.subscribers))
	for id := range h.subscribers {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	fns := make([]func(Event), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, h.subscribers[id])
	}
	h.mu.Unlock()

	for _, fn := range fns {
		fn(e)
	}
}

// SubscriberCount 当前订阅者数量
func (h *EventHub) SubscriberCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subscribers)
}

// Close 移除所有订阅者，之后的 Publish 不再分发
func (h *EventHub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	h.subscribers = make(map[int]func(Event))
}
