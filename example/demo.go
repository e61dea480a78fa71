// Demo wiring a full offline queue service against an in-process fake
// backend: mutations are made while "offline", then replayed once the
// prober sees the backend again.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	offline "github.com/c0deZ3R0/go-offline-kit"
	"github.com/c0deZ3R0/go-offline-kit/executor/httpexec"
	"github.com/c0deZ3R0/go-offline-kit/logging"
	"github.com/c0deZ3R0/go-offline-kit/storage/jsonfile"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	ctx := context.Background()

	// Fake events backend. The reachable flag stands in for the network.
	var reachable atomic.Bool
	var nextID atomic.Int64
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !reachable.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		if r.Method == http.MethodPost && r.URL.Path == "/events" {
			id := fmt.Sprintf("evt-%d", nextID.Add(1))
			json.NewEncoder(w).Encode(map[string]string{"id": id})
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer backend.Close()

	dir, err := os.MkdirTemp("", "offline-demo")
	if err != nil {
		return err
	}
	defer os.RemoveAll(dir)

	store, err := jsonfile.New(jsonfile.Config{Path: filepath.Join(dir, "actions.json")})
	if err != nil {
		return err
	}

	logger := logging.NewLogger(logging.Config{Level: "info", Format: "text"})
	exec := httpexec.NewClient(backend.URL, httpexec.WithTimeout(2*time.Second))

	svc := offline.NewService(store, exec,
		offline.WithServiceLogger(logger),
		offline.WithServiceProberOptions(
			offline.WithProbeEndpoints(backend.URL, backend.URL),
			offline.WithProbeTimeouts(time.Second, time.Second),
			offline.WithProbeInterval(2*time.Second),
		),
	)
	defer svc.Close()

	if err := svc.Start(ctx); err != nil {
		return err
	}

	// Phase 1: backend down. Every mutation lands in the durable log.
	reachable.Store(false)
	svc.Prober().Check(ctx)

	queue := svc.Queue()
	if _, err := queue.AddEvent(ctx, map[string]interface{}{
		"titre": "Match de foot",
		"sport": "Foot",
		"lieu":  "Parc central",
	}); err != nil {
		return err
	}
	if err := queue.JoinEvent(ctx, "evt-existing", "alice"); err != nil {
		return err
	}
	if err := queue.JoinEvent(ctx, "evt-existing", "bob"); err != nil {
		return err
	}

	printStatus(svc.Status(ctx))

	// Phase 2: backend back. The prober notices and the orchestrator
	// replays the queue.
	reachable.Store(true)
	svc.Prober().Wake()

	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) && queue.Len(ctx) > 0 {
		time.Sleep(200 * time.Millisecond)
	}

	printStatus(svc.Status(ctx))
	if n := queue.Len(ctx); n > 0 {
		return fmt.Errorf("%d action(s) never replayed", n)
	}

	fmt.Println("all queued actions replayed")
	return nil
}

func printStatus(s offline.Status) {
	fmt.Printf("[%s] %s (%d pending)\n", s.State, s.Message, s.Pending)
}
