package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"

	"github.com/biddyweb/go-osrm/request"
)

// QueryError is a failed engine query. It carries the message captured at
// the execute boundary and wraps the engine's own error when there was one.
type QueryError struct {
	Message string
	Err     error
}

func (e *QueryError) Error() string { return e.Message }

// Unwrap exposes the underlying engine error, if any.
func (e *QueryError) Unwrap() error { return e.Err }

// Handle owns one engine instance and keeps it alive while tasks reference
// it. The count starts at one for the owning wrapper; every in-flight task
// retains the handle for its duration. The final release closes the instance
// if it is an io.Closer.
type Handle struct {
	eng  Engine
	refs atomic.Int64
}

// NewHandle wraps an engine instance with an initial reference count of one.
func NewHandle(eng Engine) *Handle {
	h := &Handle{eng: eng}
	h.refs.Store(1)
	return h
}

// Retain adds a reference.
func (h *Handle) Retain() {
	h.refs.Add(1)
}

// Release drops a reference. The final release closes the instance and
// returns its close error.
func (h *Handle) Release() error {
	if h.refs.Add(-1) != 0 {
		return nil
	}
	if c, ok := h.eng.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// Execute runs one query through the engine. Engine errors and panics are
// both captured as a *QueryError; nothing propagates past the handle.
func (h *Handle) Execute(ctx context.Context, req *request.Request) (reply []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			reply = nil
			err = &QueryError{Message: fmt.Sprint(r)}
		}
	}()
	reply, err = h.eng.RunQuery(ctx, req)
	if err != nil {
		var qe *QueryError
		if errors.As(err, &qe) {
			return nil, qe
		}
		return nil, &QueryError{Message: err.Error(), Err: err}
	}
	return reply, nil
}
