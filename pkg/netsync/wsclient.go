package netsync

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const writeWait = 5 * time.Second

// WSClient 通过 websocket 中继同步动画运行
// 读协程只负责解码并入队，处理在模拟线程的 Pump 中进行。
type WSClient struct {
	conn    *websocket.Conn
	writeMu sync.Mutex

	queue     chan inbound
	done      chan struct{}
	closing   chan struct{}
	closeOnce sync.Once
}

// DialWS 连接到中继
func DialWS(ctx context.Context, url string) (*WSClient, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to dial relay '%s': %w", url, err)
	}

	c := &WSClient{
		conn:    conn,
		queue:   make(chan inbound, DefaultQueueSize),
		done:    make(chan struct{}),
		closing: make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

// SyncRun 发送运行包
func (c *WSClient) SyncRun(packet RunPacket) error {
	return c.send(envelopeRun, packet)
}

// SyncStop 发送停止包
func (c *WSClient) SyncStop(packet StopPacket) error {
	return c.send(envelopeStop, packet)
}

func (c *WSClient) send(kind string, payload any) error {
	select {
	case <-c.done:
		return ErrClosed
	default:
	}

	env, err := encodeEnvelope(kind, payload)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	if err := c.conn.WriteJSON(env); err != nil {
		return fmt.Errorf("failed to send %s packet: %w", kind, err)
	}
	return nil
}

func (c *WSClient) readLoop() {
	defer close(c.done)
	defer close(c.queue)

	for {
		var env envelope
		if err := c.conn.ReadJSON(&env); err != nil {
			select {
			case <-c.closing:
			default:
				log.Printf("[NetSync] Connection closed: %v", err)
			}
			return
		}

		msg, err := decodeEnvelope(env)
		if err != nil {
			log.Printf("[NetSync] Warning: dropping packet: %v", err)
			continue
		}

		select {
		case c.queue <- msg:
		default:
			log.Printf("[NetSync] Warning: %v, dropping %s packet", ErrQueueFull, env.Type)
		}
	}
}

// Pump 排空入站队列
func (c *WSClient) Pump(handler Handler) int {
	return drain(c.queue, handler)
}

// Done 读协程退出后关闭
func (c *WSClient) Done() <-chan struct{} {
	return c.done
}

// Close 关闭连接
func (c *WSClient) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closing)
		c.writeMu.Lock()
		_ = c.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(writeWait),
		)
		c.writeMu.Unlock()
		err = c.conn.Close()
	})
	return err
}
