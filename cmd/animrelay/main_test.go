package main

import (
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/RaccoonTwigs/vsmod-AnimationManagerLib/pkg/netsync"
)

func TestPeersHandler(t *testing.T) {
	relay := netsync.NewRelay()
	defer relay.Close()

	rec := httptest.NewRecorder()
	buildPeersHandler(relay)(rec, httptest.NewRequest("GET", "/debug/peers", nil))

	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Expected application/json, got %q", ct)
	}
	var body map[string]int
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("Failed to decode body: %v", err)
	}
	if body["peers"] != 0 {
		t.Errorf("Expected 0 peers, got %d", body["peers"])
	}
}
