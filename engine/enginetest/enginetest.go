// Package enginetest provides a scripted engine implementation for tests and
// for running the server without a live routing backend.
package enginetest

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/biddyweb/go-osrm/engine"
	"github.com/biddyweb/go-osrm/request"
)

// Engine is a scripted engine.Engine. Configure the exported fields before
// issuing queries; the zero value answers every query with a minimal status
// document.
type Engine struct {
	// Reply and Err script the outcome for services without a per-service
	// entry. Err wins when both are set.
	Reply []byte
	Err   error

	// Replies scripts per-service payloads, keyed by service tag.
	Replies map[string][]byte

	// Delay postpones each query before it completes.
	Delay time.Duration

	// Unblock, when non-nil, makes each query wait until the channel is
	// closed before completing.
	Unblock <-chan struct{}

	// PanicWith, when non-nil, makes each query panic with this value.
	PanicWith any

	queries atomic.Int64
	closes  atomic.Int64

	mu   sync.Mutex
	cfg  engine.Config
	reqs []*request.Request
}

func (e *Engine) RunQuery(_ context.Context, req *request.Request) ([]byte, error) {
	e.queries.Add(1)
	e.mu.Lock()
	e.reqs = append(e.reqs, req)
	e.mu.Unlock()
	if e.Delay > 0 {
		time.Sleep(e.Delay)
	}
	if e.Unblock != nil {
		<-e.Unblock
	}
	if e.PanicWith != nil {
		panic(e.PanicWith)
	}
	if e.Err != nil {
		return nil, e.Err
	}
	if r, ok := e.Replies[req.Service]; ok {
		return r, nil
	}
	if e.Reply != nil {
		return e.Reply, nil
	}
	return fmt.Appendf(nil, `{"status":0,"service":%q}`, req.Service), nil
}

func (e *Engine) Close() error {
	e.closes.Add(1)
	return nil
}

// Queries reports how many queries the engine has served.
func (e *Engine) Queries() int { return int(e.queries.Load()) }

// LastRequest returns the most recently served request, or nil when the
// engine has not been queried.
func (e *Engine) LastRequest() *request.Request {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.reqs) == 0 {
		return nil
	}
	return e.reqs[len(e.reqs)-1]
}

// Closes reports how many times Close has run.
func (e *Engine) Closes() int { return int(e.closes.Load()) }

// Config returns the configuration captured when Opener constructed the
// engine.
func (e *Engine) Config() engine.Config {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cfg
}

// Opener adapts the stub to the construction contract, capturing the config
// it is opened with.
func (e *Engine) Opener() engine.Opener {
	return func(cfg engine.Config) (engine.Engine, error) {
		e.mu.Lock()
		e.cfg = cfg
		e.mu.Unlock()
		return e, nil
	}
}

// FailingOpener returns an Opener that always fails with err, for exercising
// construction error paths.
func FailingOpener(err error) engine.Opener {
	return func(engine.Config) (engine.Engine, error) {
		return nil, err
	}
}
