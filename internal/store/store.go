package store

import (
	"context"
	"errors"

	"github.com/biddyweb/go-osrm/internal/model"
)

// ErrInvalidTransition is returned when a query status transition is not allowed.
var ErrInvalidTransition = errors.New("invalid status transition")

// QueryStats holds aggregate journal statistics.
type QueryStats struct {
	Total          int            `json:"total"`
	CountByStatus  map[string]int `json:"count_by_status"`
	CountByService map[string]int `json:"count_by_service"`
	AvgDurationMS  float64        `json:"avg_duration_ms"`
}

// Store defines the persistence operations for the query journal.
type Store interface {
	CreateQuery(ctx context.Context, q *model.Query) error
	FinishQuery(ctx context.Context, q *model.Query) error
	GetQuery(ctx context.Context, id string) (*model.Query, error)
	ListQueries(ctx context.Context, limit, offset int) ([]*model.Query, int, error)
	GetQueryStats(ctx context.Context) (*QueryStats, error)
	Ping(ctx context.Context) error
	Close() error
}
