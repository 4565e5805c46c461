package bridge

import (
	"sync/atomic"

	"github.com/biddyweb/go-osrm/engine"
	"github.com/biddyweb/go-osrm/request"
)

// Callback receives a task's outcome exactly once: an engine error, or the
// raw reply payload.
type Callback func(err error, reply []byte)

// Task lifecycle states. Transitions are one-way and enforced with
// compare-and-swap, so an outcome can never be delivered twice.
const (
	taskCreated int32 = iota
	taskSubmitted
	taskRunning
	taskCompleted
	taskDispatched
	taskDestroyed
)

// Task is one deferred query: the typed request, the completion callback,
// and the engine handle it retains until its callback has been dispatched.
type Task struct {
	req    *request.Request
	cb     Callback
	handle *engine.Handle

	reply []byte
	err   error

	state atomic.Int32
}

// NewTask pairs a built request with its completion callback and the handle
// of the engine that will serve it.
func NewTask(req *request.Request, cb Callback, h *engine.Handle) *Task {
	return &Task{req: req, cb: cb, handle: h}
}

func (t *Task) transition(from, to int32) bool {
	return t.state.CompareAndSwap(from, to)
}
