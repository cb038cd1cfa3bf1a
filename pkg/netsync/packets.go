// Package netsync 动画运行的网络同步约定
//
// 本地发起且需要同步的运行通过 Synchronizer 发出 RunPacket，
// 运行结束或被停止时发出 StopPacket。
// 收到的包在模拟线程上通过 Pump 交给 Handler，远端来的运行不会再次同步。
package netsync

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/RaccoonTwigs/vsmod-AnimationManagerLib/pkg/animation"
)

// ErrQueueFull 入站队列已满，包被丢弃
var ErrQueueFull = errors.New("netsync: inbound queue full")

// ErrClosed 同步器已关闭
var ErrClosed = errors.New("netsync: synchronizer closed")

// DefaultQueueSize 入站队列默认容量
const DefaultQueueSize = 256

// RunPacket 运行开始
type RunPacket struct {
	RunID    uuid.UUID           `json:"run_id"`
	Target   animation.Target    `json:"target"`
	Requests []animation.Request `json:"requests"`
}

// StopPacket 运行停止
type StopPacket struct {
	RunID uuid.UUID `json:"run_id"`
}

// Synchronizer 出站同步
type Synchronizer interface {
	SyncRun(packet RunPacket) error
	SyncStop(packet StopPacket) error
}

// Handler 入站处理（由 AnimationManager 实现）
type Handler interface {
	OnRemoteRun(packet RunPacket)
	OnRemoteStop(packet StopPacket)
}

// Pumper 在模拟线程上排空入站队列，返回处理的包数
type Pumper interface {
	Pump(handler Handler) int
}

// 信封类型
const (
	envelopeRun  = "run"
	envelopeStop = "stop"
)

// envelope 线上格式：{"type": "...", "payload": {...}}
type envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// inbound 解码后的入站包，run 与 stop 二选一
type inbound struct {
	run  *RunPacket
	stop *StopPacket
}

func encodeEnvelope(kind string, payload any) (envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return envelope{}, fmt.Errorf("failed to encode %s packet: %w", kind, err)
	}
	return envelope{Type: kind, Payload: raw}, nil
}

func decodeEnvelope(env envelope) (inbound, error) {
	switch env.Type {
	case envelopeRun:
		var p RunPacket
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return inbound{}, fmt.Errorf("failed to decode run packet: %w", err)
		}
		return inbound{run: &p}, nil
	case envelopeStop:
		var p StopPacket
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return inbound{}, fmt.Errorf("failed to decode stop packet: %w", err)
		}
		return inbound{stop: &p}, nil
	default:
		return inbound{}, fmt.Errorf("unknown envelope type: %s", env.Type)
	}
}

func dispatch(msg inbound, handler Handler) {
	switch {
	case msg.run != nil:
		handler.OnRemoteRun(*msg.run)
	case msg.stop != nil:
		handler.OnRemoteStop(*msg.stop)
	}
}

// drain 非阻塞地排空队列
func drain(queue <-chan inbound, handler Handler) int {
	count := 0
	for {
		select {
		case msg, ok := <-queue:
			if !ok {
				return count
			}
			dispatch(msg, handler)
			count++
		default:
			return count
		}
	}
}
