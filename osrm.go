package osrm

import (
	"errors"
	"log/slog"
	"sync/atomic"

	"github.com/biddyweb/go-osrm/engine"
	"github.com/biddyweb/go-osrm/internal/bridge"
	"github.com/biddyweb/go-osrm/request"
)

// ErrClosed is returned by dispatch operations after Close.
var ErrClosed = errors.New("osrm: wrapper is closed")

// Callback receives a query outcome exactly once: an engine error, or the
// raw reply payload. Callbacks run serially on the wrapper's dispatch
// goroutine; a slow callback delays later completions.
type Callback func(err error, reply []byte)

// FatalHandler receives a panic raised inside a completion callback. The
// default handler logs the panic and re-raises it.
type FatalHandler func(v any, stack []byte)

// ConfigurationError reports unusable construction arguments, including an
// engine that refused to open.
type ConfigurationError struct {
	Msg string
	Err error
}

func (e *ConfigurationError) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

// Unwrap exposes the opener's error, if any.
func (e *ConfigurationError) Unwrap() error { return e.Err }

// Config carries the full construction surface. New covers the common
// shapes; NewWith is for callers that need the rest.
type Config struct {
	// BasePath points the engine at a prepared dataset; UseSharedMemory
	// attaches to one already loaded by osrm-datastore. Exactly one of the
	// two must be set.
	BasePath        string
	UseSharedMemory bool

	// Opener constructs the engine instance. Required.
	Opener engine.Opener

	// Logger may be nil for a silent wrapper.
	Logger *slog.Logger

	// Fatal handles callback panics; nil means log and re-panic.
	Fatal FatalHandler

	// QueueSize caps the completion queue; zero selects the default.
	QueueSize int
}

// OSRM asynchronously dispatches queries against one routing engine
// instance. Wrappers are safe for concurrent use and stay alive until Close
// returns, even while queries are in flight.
type OSRM struct {
	handle *engine.Handle
	sched  *bridge.Scheduler
	logger *slog.Logger
	closed atomic.Bool
}

// New builds a wrapper with an engine opened from zero or one configuration
// arguments: no path attaches to a shared-memory dataset, one path sets the
// dataset base path. Any other shape is a ConfigurationError.
func New(open engine.Opener, paths ...string) (*OSRM, error) {
	cfg := Config{Opener: open}
	switch len(paths) {
	case 0:
		cfg.UseSharedMemory = true
	case 1:
		cfg.BasePath = paths[0]
	default:
		return nil, &ConfigurationError{Msg: "construction takes at most one base path"}
	}
	return NewWith(cfg)
}

// NewWith builds a wrapper from a full Config.
func NewWith(cfg Config) (*OSRM, error) {
	if cfg.Opener == nil {
		return nil, &ConfigurationError{Msg: "an engine opener is required"}
	}
	if cfg.UseSharedMemory && cfg.BasePath != "" {
		return nil, &ConfigurationError{Msg: "base path and shared memory are mutually exclusive"}
	}
	if !cfg.UseSharedMemory && cfg.BasePath == "" {
		return nil, &ConfigurationError{Msg: "OSRM base path must be a non-empty string"}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	eng, err := cfg.Opener(engine.Config{
		BasePath:        cfg.BasePath,
		UseSharedMemory: cfg.UseSharedMemory,
	})
	if err != nil {
		return nil, &ConfigurationError{Msg: "open engine", Err: err}
	}

	o := &OSRM{
		handle: engine.NewHandle(eng),
		logger: logger,
	}
	o.sched = bridge.NewScheduler(bridge.Config{
		QueueSize: cfg.QueueSize,
		Fatal:     bridge.FatalHandler(cfg.Fatal),
		Logger:    logger,
	})

	logger.Debug("engine ready",
		"base_path", cfg.BasePath,
		"shared_memory", cfg.UseSharedMemory)
	return o, nil
}

// Route dispatches a "viaroute" query from a loose JSON document. Document
// problems return synchronously as a *request.ValidationError; otherwise the
// callback fires exactly once with the outcome.
func (o *OSRM) Route(doc []byte, cb Callback) error {
	req, err := request.Route(doc)
	if err != nil {
		return err
	}
	return o.dispatch(req, cb)
}

// Locate dispatches a "locate" query from a [lat, lon] document.
func (o *OSRM) Locate(doc []byte, cb Callback) error {
	req, err := request.Locate(doc)
	if err != nil {
		return err
	}
	return o.dispatch(req, cb)
}

// Nearest dispatches a "nearest" query from a [lat, lon] document.
func (o *OSRM) Nearest(doc []byte, cb Callback) error {
	req, err := request.Nearest(doc)
	if err != nil {
		return err
	}
	return o.dispatch(req, cb)
}

// Table dispatches a "table" distance-matrix query.
func (o *OSRM) Table(doc []byte, cb Callback) error {
	req, err := request.Table(doc)
	if err != nil {
		return err
	}
	return o.dispatch(req, cb)
}

// dispatch validates the callback, then hands the request to the scheduler.
// The callback check runs after document validation; a bad document wins
// when both are wrong.
func (o *OSRM) dispatch(req *request.Request, cb Callback) error {
	if cb == nil {
		return &request.ValidationError{Msg: "last argument must be a callback function"}
	}
	task := bridge.NewTask(req, bridge.Callback(cb), o.handle)
	if err := o.sched.Submit(task); err != nil {
		if errors.Is(err, bridge.ErrSchedulerClosed) {
			return ErrClosed
		}
		return err
	}
	return nil
}

// Close stops intake and blocks until every in-flight query has dispatched,
// then drops the wrapper's engine reference. The engine instance is closed
// once the last reference is gone. Close is idempotent.
func (o *OSRM) Close() error {
	if !o.closed.CompareAndSwap(false, true) {
		return nil
	}
	o.sched.Shutdown()
	return o.handle.Release()
}
