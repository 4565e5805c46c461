// testserver starts an osrmd API server with a scripted engine for E2E
// testing. Usage: go run ./cmd/testserver
package main

import (
	"log"
	"log/slog"
	"os"
	"time"

	osrm "github.com/biddyweb/go-osrm"
	"github.com/biddyweb/go-osrm/engine"
	"github.com/biddyweb/go-osrm/engine/enginetest"
	"github.com/biddyweb/go-osrm/internal/api"
	"github.com/biddyweb/go-osrm/internal/store"
	"github.com/biddyweb/go-osrm/request"
)

func main() {
	addr := ":8080"
	if v := os.Getenv("OSRM_LISTEN_ADDR"); v != "" {
		addr = v
	}

	db, err := store.NewSQLiteStore(":memory:")
	if err != nil {
		log.Fatalf("failed to open query journal: %v", err)
	}
	defer db.Close()

	eng := &enginetest.Engine{
		Delay: 250 * time.Millisecond,
		Replies: map[string][]byte{
			request.ServiceRoute:   []byte(`{"status":0,"status_message":"Found route between points","route_geometry":"_p~iF~ps|U_ulLnnqC","route_instructions":[],"route_summary":{"total_distance":5921,"total_time":310},"found_alternative":false}`),
			request.ServiceLocate:  []byte(`{"status":0,"mapped_coordinate":[52.500005,13.250003]}`),
			request.ServiceNearest: []byte(`{"status":0,"mapped_coordinate":[52.500005,13.250003],"name":"Friedrichstraße"}`),
			request.ServiceTable:   []byte(`{"status":0,"distance_table":[[0,2480],[2603,0]]}`),
		},
	}

	reg := engine.NewRegistry()
	reg.Register("stub", "scripted engine with canned replies", eng.Opener())

	o, err := osrm.New(eng.Opener())
	if err != nil {
		log.Fatalf("failed to open engine: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	srv := api.NewServer(addr, db, reg, o, logger, 0)

	logger.Info("testserver: starting", "addr", addr)
	if err := srv.Run(); err != nil {
		log.Fatalf("server error: %v", err)
	}

	if err := o.Close(); err != nil {
		logger.Error("testserver: engine close", "error", err)
	}
}
