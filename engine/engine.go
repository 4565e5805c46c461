package engine

import (
	"context"

	"github.com/biddyweb/go-osrm/request"
)

// Engine is the synchronous routing engine behind the bridge. Implementations
// must be safe for concurrent use; each query blocks its calling goroutine
// until the engine produces a reply.
type Engine interface {
	// RunQuery executes one routing query and returns the raw reply payload.
	RunQuery(ctx context.Context, req *request.Request) ([]byte, error)
}

// Config carries the construction arguments for an engine instance. Exactly
// one data source is set: a dataset base path, or shared memory.
type Config struct {
	BasePath        string
	UseSharedMemory bool
}

// Opener constructs an engine instance from its configuration. Construction
// failures surface synchronously to the caller building the wrapper.
type Opener func(cfg Config) (Engine, error)
