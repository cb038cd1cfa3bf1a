// animrelay 同步中继：在多个查看器之间转发动画运行/停止包
//
// 用法：
//
//	go run ./cmd/animrelay -addr :8765
//	go run . -relay ws://localhost:8765/sync
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/RaccoonTwigs/vsmod-AnimationManagerLib/pkg/netsync"
)

var (
	addr     = flag.String("addr", ":8765", "监听地址")
	syncPath = flag.String("path", "/sync", "websocket 路径")
)

func main() {
	flag.Parse()

	relay := netsync.NewRelay()

	mux := http.NewServeMux()
	mux.Handle(*syncPath, relay)
	mux.HandleFunc("/debug/peers", buildPeersHandler(relay))

	server := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		log.Printf("[Relay] Shutting down")
		relay.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	log.Printf("[Relay] Listening on %s%s", *addr, *syncPath)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("[Relay] Listen failed: %v", err)
	}
}

func buildPeersHandler(relay *netsync.Relay) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]int{"peers": relay.PeerCount()})
	}
}
