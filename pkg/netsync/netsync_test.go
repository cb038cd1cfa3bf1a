package netsync

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/RaccoonTwigs/vsmod-AnimationManagerLib/pkg/animation"
)

type recordingHandler struct {
	runs  []RunPacket
	stops []StopPacket
}

func (h *recordingHandler) OnRemoteRun(p RunPacket)   { h.runs = append(h.runs, p) }
func (h *recordingHandler) OnRemoteStop(p StopPacket) { h.stops = append(h.stops, p) }

func samplePacket() RunPacket {
	id := animation.NewAnimationId(animation.NewCategory("locomotion", animation.BlendAverage), "walk")
	return RunPacket{
		RunID:    uuid.New(),
		Target:   animation.EntityTarget(42),
		Requests: animation.RequestsFor(id, animation.EaseIn(500*time.Millisecond, 4, animation.ModifierLinear)),
	}
}

func TestLoopbackDelivery(t *testing.T) {
	a, b := NewLoopbackPair()
	packet := samplePacket()

	if err := a.SyncRun(packet); err != nil {
		t.Fatalf("SyncRun failed: %v", err)
	}
	if err := a.SyncStop(StopPacket{RunID: packet.RunID}); err != nil {
		t.Fatalf("SyncStop failed: %v", err)
	}

	// 发送端自己的队列为空
	var self recordingHandler
	if n := a.Pump(&self); n != 0 {
		t.Errorf("Expected sender queue to be empty, pumped %d", n)
	}

	var h recordingHandler
	if n := b.Pump(&h); n != 2 {
		t.Fatalf("Expected 2 packets, got %d", n)
	}
	if len(h.runs) != 1 || h.runs[0].RunID != packet.RunID {
		t.Errorf("Expected run packet %s, got %v", packet.RunID, h.runs)
	}
	if h.runs[0].Target != packet.Target {
		t.Errorf("Expected target %v, got %v", packet.Target, h.runs[0].Target)
	}
	if len(h.stops) != 1 || h.stops[0].RunID != packet.RunID {
		t.Errorf("Expected stop packet %s, got %v", packet.RunID, h.stops)
	}
}

func TestLoopbackQueueFullAndClose(t *testing.T) {
	a, b := NewLoopbackPair()
	for i := 0; i < DefaultQueueSize; i++ {
		if err := a.SyncStop(StopPacket{RunID: uuid.New()}); err != nil {
			t.Fatalf("Unexpected error at %d: %v", i, err)
		}
	}
	if err := a.SyncStop(StopPacket{RunID: uuid.New()}); err != ErrQueueFull {
		t.Errorf("Expected ErrQueueFull, got %v", err)
	}

	b.Close()
	if err := a.SyncStop(StopPacket{}); err != ErrClosed {
		t.Errorf("Expected ErrClosed, got %v", err)
	}
}

func TestEnvelopeRoundTrip(t *testing.T) {
	packet := samplePacket()
	env, err := encodeEnvelope(envelopeRun, packet)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	msg, err := decodeEnvelope(env)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if msg.run == nil {
		t.Fatal("Expected run packet")
	}
	got := msg.run.Requests[0]
	want := packet.Requests[0]
	if got.Animation != want.Animation {
		t.Errorf("Expected animation %v, got %v", want.Animation, got.Animation)
	}
	if got.Parameters.Duration != want.Parameters.Duration || *got.Parameters.TargetFrame != 4 {
		t.Errorf("Expected parameters %v, got %v", want.Parameters, got.Parameters)
	}

	if _, err := decodeEnvelope(envelope{Type: "dance"}); err == nil {
		t.Error("Expected error for unknown envelope type")
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("Timed out waiting for condition")
}

// TestRelayForwardsToOtherPeers 中继只转发给其他对端
func TestRelayForwardsToOtherPeers(t *testing.T) {
	relay := NewRelay()
	server := httptest.NewServer(relay)
	defer server.Close()
	defer relay.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	a, err := DialWS(ctx, url)
	if err != nil {
		t.Fatalf("DialWS a failed: %v", err)
	}
	defer a.Close()
	b, err := DialWS(ctx, url)
	if err != nil {
		t.Fatalf("DialWS b failed: %v", err)
	}
	defer b.Close()

	waitFor(t, func() bool { return relay.PeerCount() == 2 })

	packet := samplePacket()
	if err := a.SyncRun(packet); err != nil {
		t.Fatalf("SyncRun failed: %v", err)
	}
	if err := a.SyncStop(StopPacket{RunID: packet.RunID}); err != nil {
		t.Fatalf("SyncStop failed: %v", err)
	}

	var h recordingHandler
	waitFor(t, func() bool {
		b.Pump(&h)
		return len(h.runs) == 1 && len(h.stops) == 1
	})
	if h.runs[0].RunID != packet.RunID {
		t.Errorf("Expected run id %s, got %s", packet.RunID, h.runs[0].RunID)
	}

	var self recordingHandler
	a.Pump(&self)
	if len(self.runs) != 0 {
		t.Errorf("Expected sender not to receive its own packet, got %d", len(self.runs))
	}
}

func TestWSClientClose(t *testing.T) {
	relay := NewRelay()
	server := httptest.NewServer(relay)
	defer server.Close()

	c, err := DialWS(context.Background(), "ws"+strings.TrimPrefix(server.URL, "http"))
	if err != nil {
		t.Fatalf("DialWS failed: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
	select {
	case <-c.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("Expected read loop to exit after Close")
	}
	if err := c.SyncStop(StopPacket{}); err != ErrClosed {
		t.Errorf("Expected ErrClosed after Close, got %v", err)
	}
}
