package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/biddyweb/go-osrm/engine/enginetest"
	"github.com/biddyweb/go-osrm/internal/model"
	"github.com/biddyweb/go-osrm/request"
)

func TestGetStats(t *testing.T) {
	eng := &enginetest.Engine{}
	srv := newTestServer(t, eng)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	// Two successful route queries, one failed after the script flips.
	for i := 0; i < 2; i++ {
		resp := postJSON(t, ts.URL+"/v1/route", routeBody)
		resp.Body.Close()
	}
	eng.Err = errTestEngine
	resp := postJSON(t, ts.URL+"/v1/nearest", `[52.5,13.25]`)
	resp.Body.Close()

	statsResp, err := http.Get(ts.URL + "/v1/stats")
	if err != nil {
		t.Fatalf("GET /v1/stats: %v", err)
	}
	defer statsResp.Body.Close()

	if statsResp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", statsResp.StatusCode)
	}

	var stats statsResponse
	if err := json.NewDecoder(statsResp.Body).Decode(&stats); err != nil {
		t.Fatalf("decode stats: %v", err)
	}

	if stats.Total != 3 {
		t.Errorf("total = %d, want 3", stats.Total)
	}
	if stats.ByStatus[model.StatusCompleted] != 2 {
		t.Errorf("completed = %d, want 2", stats.ByStatus[model.StatusCompleted])
	}
	if stats.ByStatus[model.StatusFailed] != 1 {
		t.Errorf("failed = %d, want 1", stats.ByStatus[model.StatusFailed])
	}
	if stats.ByService[request.ServiceRoute] != 2 {
		t.Errorf("route = %d, want 2", stats.ByService[request.ServiceRoute])
	}
	if stats.ByService[request.ServiceNearest] != 1 {
		t.Errorf("nearest = %d, want 1", stats.ByService[request.ServiceNearest])
	}
}

func TestGetStatsEmpty(t *testing.T) {
	srv := newTestServer(t, &enginetest.Engine{})
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/v1/stats")
	if err != nil {
		t.Fatalf("GET /v1/stats: %v", err)
	}
	defer resp.Body.Close()

	var stats statsResponse
	json.NewDecoder(resp.Body).Decode(&stats)

	if stats.Total != 0 {
		t.Errorf("total = %d, want 0", stats.Total)
	}
}
