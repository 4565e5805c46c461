// Package e2e exercises the built binaries over a real TCP socket: the
// osrmd daemon wired to an unreachable engine server, and the testserver
// binary with its scripted engine.
package e2e

import (
	"bytes"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"
)

const (
	startupTimeout = 10 * time.Second
	pollInterval   = 100 * time.Millisecond
)

// lockedBuffer collects subprocess output from multiple goroutines.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (lb *lockedBuffer) Write(p []byte) (int, error) {
	lb.mu.Lock()
	defer lb.mu.Unlock()
	return lb.buf.Write(p)
}

func (lb *lockedBuffer) String() string {
	lb.mu.Lock()
	defer lb.mu.Unlock()
	return lb.buf.String()
}

// serverProc holds a running server subprocess and its captured output.
type serverProc struct {
	cmd    *exec.Cmd
	stdout *lockedBuffer
	url    string
}

var (
	buildMu  sync.Mutex
	binaries = map[string]string{}
	buildDir string
)

// buildBinary compiles the named command once per test run and returns the
// binary path.
func buildBinary(t *testing.T, name string) string {
	t.Helper()
	buildMu.Lock()
	defer buildMu.Unlock()

	if bin, ok := binaries[name]; ok {
		return bin
	}
	if buildDir == "" {
		dir, err := os.MkdirTemp("", "osrm-e2e-*")
		if err != nil {
			t.Fatalf("mkdtemp: %v", err)
		}
		buildDir = dir
	}

	bin := filepath.Join(buildDir, name)
	cmd := exec.Command("go", "build", "-o", bin, "./cmd/"+name)
	cmd.Dir = findRepoRoot(t)
	if out, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("go build ./cmd/%s failed: %v\n%s", name, err, out)
	}
	binaries[name] = bin
	return bin
}

func findRepoRoot(t *testing.T) string {
	t.Helper()
	dir, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			t.Fatal("could not find repo root")
		}
		dir = parent
	}
}

// freeAddr reserves a loopback port and releases it so a subprocess can bind
// it. The port may also serve as a guaranteed-closed endpoint.
func freeAddr(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("find free port: %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()
	return addr
}

// startDaemon launches the osrmd binary with a throwaway database and an
// engine URL that refuses connections, then waits for /healthz. Extra
// KEY=VALUE pairs override the defaults.
func startDaemon(t *testing.T, extraEnv ...string) *serverProc {
	t.Helper()

	addr := freeAddr(t)
	deadPort := freeAddr(t)
	dbPath := filepath.Join(t.TempDir(), "e2e.db")

	env := append(os.Environ(),
		"OSRM_LISTEN_ADDR="+addr,
		"OSRM_DB_PATH="+dbPath,
		"OSRM_LOG_LEVEL=info",
		"OSRM_REMOTE_URL=http://"+deadPort,
	)
	env = append(env, extraEnv...)

	return startProcess(t, buildBinary(t, "osrmd"), addr, env)
}

// startStubServer launches the testserver binary, which serves canned engine
// replies from an in-memory journal.
func startStubServer(t *testing.T) *serverProc {
	t.Helper()

	addr := freeAddr(t)
	env := append(os.Environ(), "OSRM_LISTEN_ADDR="+addr)
	return startProcess(t, buildBinary(t, "testserver"), addr, env)
}

func startProcess(t *testing.T, binary, addr string, env []string) *serverProc {
	t.Helper()

	stdout := &lockedBuffer{}
	cmd := exec.Command(binary)
	cmd.Env = env
	cmd.Stdout = stdout
	cmd.Stderr = stdout

	if err := cmd.Start(); err != nil {
		t.Fatalf("start %s: %v", binary, err)
	}

	sp := &serverProc{
		cmd:    cmd,
		stdout: stdout,
		url:    "http://" + addr,
	}

	t.Cleanup(func() {
		cmd.Process.Kill()
		cmd.Wait()
	})

	deadline := time.Now().Add(startupTimeout)
	for time.Now().Before(deadline) {
		resp, err := http.Get(sp.url + "/healthz")
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return sp
			}
		}
		time.Sleep(pollInterval)
	}
	t.Fatalf("server did not become ready within %v\nstdout:\n%s", startupTimeout, stdout.String())
	return nil
}

// routeDoc builds a two-waypoint route document from coordinate pairs.
func routeDoc(pairs ...[2]float64) string {
	var b bytes.Buffer
	b.WriteString(`{"coordinates":[`)
	for i, p := range pairs {
		if i > 0 {
			b.WriteByte(',')
		}
		fmt.Fprintf(&b, "[%s,%s]",
			strconv.FormatFloat(p[0], 'f', -1, 64),
			strconv.FormatFloat(p[1], 'f', -1, 64))
	}
	b.WriteString(`]}`)
	return b.String()
}
