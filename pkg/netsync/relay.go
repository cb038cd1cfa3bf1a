package netsync

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

type relayPeer struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func (p *relayPeer) write(data []byte) error {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	if err := p.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return p.conn.WriteMessage(websocket.TextMessage, data)
}

// Relay websocket 中继
// 把每个对端发来的合法信封原样转发给其他所有对端，不做任何动画计算。
type Relay struct {
	upgrader websocket.Upgrader

	mu    sync.Mutex
	peers map[*relayPeer]struct{}
}

// NewRelay 创建中继
func NewRelay() *Relay {
	return &Relay{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(_ *http.Request) bool { return true },
		},
		peers: make(map[*relayPeer]struct{}),
	}
}

// ServeHTTP 升级连接并转发消息直到连接断开
func (r *Relay) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	conn, err := r.upgrader.Upgrade(w, req, nil)
	if err != nil {
		log.Printf("[Relay] Upgrade failed: %v", err)
		return
	}

	peer := &relayPeer{conn: conn}
	r.add(peer)
	defer func() {
		r.remove(peer)
		_ = conn.Close()
	}()

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var env envelope
		if err := json.Unmarshal(payload, &env); err != nil {
			log.Printf("[Relay] Warning: dropping malformed message: %v", err)
			continue
		}
		if _, err := decodeEnvelope(env); err != nil {
			log.Printf("[Relay] Warning: dropping invalid envelope: %v", err)
			continue
		}

		r.broadcast(peer, payload)
	}
}

func (r *Relay) add(peer *relayPeer) {
	r.mu.Lock()
	r.peers[peer] = struct{}{}
	count := len(r.peers)
	r.mu.Unlock()
	log.Printf("[Relay] Peer connected (%d total)", count)
}

func (r *Relay) remove(peer *relayPeer) {
	r.mu.Lock()
	delete(r.peers, peer)
	count := len(r.peers)
	r.mu.Unlock()
	log.Printf("[Relay] Peer disconnected (%d total)", count)
}

func (r *Relay) broadcast(from *relayPeer, payload []byte) {
	r.mu.Lock()
	targets := make([]*relayPeer, 0, len(r.peers))
	for p := range r.peers {
		if p != from {
			targets = append(targets, p)
		}
	}
	r.mu.Unlock()

	for _, p := range targets {
		if err := p.write(payload); err != nil {
			log.Printf("[Relay] Write failed, closing peer: %v", err)
			_ = p.conn.Close()
		}
	}
}

// PeerCount 当前连接数
func (r *Relay) PeerCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.peers)
}

// Close 断开所有对端
func (r *Relay) Close() {
	r.mu.Lock()
	peers := make([]*relayPeer, 0, len(r.peers))
	for p := range r.peers {
		peers = append(peers, p)
	}
	r.mu.Unlock()

	for _, p := range peers {
		_ = p.conn.Close()
	}
}
