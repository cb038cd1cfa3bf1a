package netsync

import (
	"sync"

	"github.com/RaccoonTwigs/vsmod-AnimationManagerLib/pkg/animation"
)

// Loopback 进程内同步器
// 两个 Loopback 互为对端：一端发出的包进入另一端的入站队列。
// 用于测试和单机多视图演示。
type Loopback struct {
	mu     sync.Mutex
	peer   *Loopback
	queue  chan inbound
	closed bool
}

// NewLoopbackPair 创建一对互联的同步器
func NewLoopbackPair() (*Loopback, *Loopback) {
	a := &Loopback{queue: make(chan inbound, DefaultQueueSize)}
	b := &Loopback{queue: make(chan inbound, DefaultQueueSize)}
	a.peer, b.peer = b, a
	return a, b
}

// SyncRun 把运行包投递到对端
func (l *Loopback) SyncRun(packet RunPacket) error {
	p := packet
	p.Requests = append([]animation.Request(nil), packet.Requests...)
	return l.peer.deliver(inbound{run: &p})
}

// SyncStop 把停止包投递到对端
func (l *Loopback) SyncStop(packet StopPacket) error {
	p := packet
	return l.peer.deliver(inbound{stop: &p})
}

func (l *Loopback) deliver(msg inbound) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return ErrClosed
	}
	select {
	case l.queue <- msg:
		return nil
	default:
		return ErrQueueFull
	}
}

// Pump 排空本端入站队列
func (l *Loopback) Pump(handler Handler) int {
	return drain(l.queue, handler)
}

// Close 关闭本端，之后投递到本端的包返回 ErrClosed
func (l *Loopback) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
}
