package e2e

import (
	"bufio"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"syscall"
	"testing"
	"time"
)

func getJSON(t *testing.T, url string, out any) int {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s response: %v", url, err)
		}
	}
	return resp.StatusCode
}

func postJSON(t *testing.T, url, body string, out any) int {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s response: %v", url, err)
		}
	}
	return resp.StatusCode
}

func TestDaemonStartsAndServesHealth(t *testing.T) {
	sp := startDaemon(t)

	var body map[string]string
	if status := getJSON(t, sp.url+"/healthz", &body); status != http.StatusOK {
		t.Errorf("status = %d, want 200", status)
	}
	if body["status"] != "ok" {
		t.Errorf("status = %q, want %q", body["status"], "ok")
	}
}

func TestDaemonServesMetrics(t *testing.T) {
	sp := startDaemon(t)

	resp, err := http.Get(sp.url + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}

	bodyBytes, _ := io.ReadAll(resp.Body)
	body := string(bodyBytes)

	if !strings.Contains(body, "osrm_http_requests_total") {
		t.Error("metrics output missing osrm_http_requests_total")
	}
	if !strings.Contains(body, "osrm_http_request_duration_seconds") {
		t.Error("metrics output missing osrm_http_request_duration_seconds")
	}
}

func TestDaemonRejectsInvalidQueryDocument(t *testing.T) {
	sp := startDaemon(t)

	var body map[string]string
	status := postJSON(t, sp.url+"/v1/route", routeDoc([2]float64{52.5, 13.25}), &body)
	if status != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", status)
	}
	if got, want := body["error"], "at least two coordinates must be provided"; got != want {
		t.Errorf("error = %q, want %q", got, want)
	}
}

func TestDaemonReportsEngineFailure(t *testing.T) {
	sp := startDaemon(t)

	doc := routeDoc([2]float64{52.5, 13.25}, [2]float64{52.75, 13.5})

	var errBody map[string]string
	status := postJSON(t, sp.url+"/v1/route", doc, &errBody)
	if status != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", status)
	}
	if !strings.Contains(errBody["error"], "connection refused") {
		t.Errorf("error = %q, want connection refused", errBody["error"])
	}

	// The failed query must still land in the journal.
	var list struct {
		Queries []map[string]any `json:"queries"`
		Total   int              `json:"total"`
	}
	if status := getJSON(t, sp.url+"/v1/queries", &list); status != http.StatusOK {
		t.Fatalf("list status = %d, want 200", status)
	}
	if list.Total != 1 {
		t.Fatalf("total = %d, want 1", list.Total)
	}
	rec := list.Queries[0]
	if rec["status"] != "failed" {
		t.Errorf("journal status = %v, want failed", rec["status"])
	}
	if wp, _ := rec["waypoints"].(float64); int(wp) != 2 {
		t.Errorf("waypoints = %v, want 2", rec["waypoints"])
	}
	if errText, _ := rec["error"].(string); errText == "" {
		t.Error("journal record has no error text")
	}

	var stats struct {
		Total    int            `json:"total"`
		ByStatus map[string]int `json:"by_status"`
	}
	if status := getJSON(t, sp.url+"/v1/stats", &stats); status != http.StatusOK {
		t.Fatalf("stats status = %d, want 200", status)
	}
	if stats.Total != 1 || stats.ByStatus["failed"] != 1 {
		t.Errorf("stats = %+v, want one failed query", stats)
	}
}

func TestDaemonLegacyValidationMessages(t *testing.T) {
	sp := startDaemon(t)

	var body map[string]string
	if status := getJSON(t, sp.url+"/viaroute", &body); status != http.StatusBadRequest {
		t.Errorf("viaroute status = %d, want 400", status)
	}
	if got, want := body["error"], "must provide a coordinates property"; got != want {
		t.Errorf("viaroute error = %q, want %q", got, want)
	}

	if status := getJSON(t, sp.url+"/locate", &body); status != http.StatusBadRequest {
		t.Errorf("locate status = %d, want 400", status)
	}
	if got, want := body["error"], "first argument must be an array of lat, long"; got != want {
		t.Errorf("locate error = %q, want %q", got, want)
	}
}

func TestDaemonListsEngines(t *testing.T) {
	sp := startDaemon(t)

	var engines []struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	if status := getJSON(t, sp.url+"/v1/engines", &engines); status != http.StatusOK {
		t.Fatalf("status = %d, want 200", status)
	}
	if len(engines) != 1 || engines[0].Name != "remote" {
		t.Errorf("engines = %+v, want single remote entry", engines)
	}
}

func TestDaemonWritesStructuredLogs(t *testing.T) {
	sp := startDaemon(t)

	resp, err := http.Get(sp.url + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	resp.Body.Close()

	// Poll for log output with a deadline.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if strings.Contains(sp.stdout.String(), `"msg":"request"`) {
			break
		}
		time.Sleep(50 * time.Millisecond)
	}

	scanner := bufio.NewScanner(strings.NewReader(sp.stdout.String()))
	foundRequestLog := false
	for scanner.Scan() {
		var entry map[string]any
		if err := json.Unmarshal([]byte(scanner.Text()), &entry); err != nil {
			continue
		}
		if msg, ok := entry["msg"].(string); ok && msg == "request" {
			foundRequestLog = true
			for _, key := range []string{"method", "path", "status", "duration_ms"} {
				if _, ok := entry[key]; !ok {
					t.Errorf("request log missing field %q", key)
				}
			}
		}
	}
	if !foundRequestLog {
		t.Errorf("no structured request log found in stdout\noutput:\n%s", sp.stdout.String())
	}
}

func TestDaemonShutsDownGracefully(t *testing.T) {
	sp := startDaemon(t)

	if err := sp.cmd.Process.Signal(syscall.SIGTERM); err != nil {
		t.Fatalf("signal: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- sp.cmd.Wait() }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("daemon exited with error: %v\nstdout:\n%s", err, sp.stdout.String())
		}
	case <-time.After(startupTimeout):
		t.Fatalf("daemon did not exit after SIGTERM\nstdout:\n%s", sp.stdout.String())
	}

	if out := sp.stdout.String(); !strings.Contains(out, "shutdown complete") {
		t.Errorf("stdout missing shutdown message:\n%s", out)
	}
}
