// Package remote adapts an osrm-routed HTTP server to the engine contract.
// Queries are rendered onto the legacy query-string wire format and block
// until the server responds. The adapter sets no client-side timeout:
// in-flight queries are never cancelled.
package remote

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/biddyweb/go-osrm/engine"
	"github.com/biddyweb/go-osrm/request"
)

const (
	// httpMaxIdleConns bounds the keep-alive pool toward the engine server.
	httpMaxIdleConns = 32

	// httpIdleConnTimeout is how long an idle connection stays pooled.
	httpIdleConnTimeout = 90 * time.Second
)

// Engine is a blocking client for an osrm-routed server.
type Engine struct {
	base   *url.URL
	client *http.Client
}

// New builds an adapter for the server at baseURL. A nil client gets a
// pooled transport without timeouts.
func New(baseURL string, client *http.Client) (*Engine, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("remote: parse base url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("remote: base url %q must be absolute", baseURL)
	}
	if client == nil {
		client = &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        httpMaxIdleConns,
				MaxIdleConnsPerHost: httpMaxIdleConns,
				IdleConnTimeout:     httpIdleConnTimeout,
			},
		}
	}
	return &Engine{base: base, client: client}, nil
}

// NewOpener adapts New to the construction contract. The dataset named by
// the engine configuration lives on the remote server, so the config is not
// consulted here.
func NewOpener(baseURL string, client *http.Client) engine.Opener {
	return func(_ engine.Config) (engine.Engine, error) {
		return New(baseURL, client)
	}
}

// RunQuery renders the request onto the query string and performs one
// blocking GET against the server. The reply body is returned opaque.
func (e *Engine) RunQuery(ctx context.Context, req *request.Request) ([]byte, error) {
	u := *e.base
	u.Path = strings.TrimSuffix(u.Path, "/") + "/" + req.Service
	u.RawQuery = queryValues(req).Encode()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("remote: create request: %w", err)
	}

	resp, err := e.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("remote: %s: %w", req.Service, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("remote: %s: read reply: %w", req.Service, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("remote: %s: server returned %s", req.Service, resp.Status)
	}
	return body, nil
}

// queryValues renders the typed request as legacy osrm-routed parameters.
// Hints are emitted for every coordinate once any hint is present, so the
// server-side pairing of loc and hint stays aligned.
func queryValues(req *request.Request) url.Values {
	emitHints := false
	for _, h := range req.Hints {
		if h != "" {
			emitHints = true
			break
		}
	}

	q := url.Values{}
	for i, c := range req.Coordinates {
		q.Add("loc", formatCoordinate(c))
		if emitHints && i < len(req.Hints) {
			q.Add("hint", req.Hints[i])
		}
	}
	q.Set("z", strconv.Itoa(int(req.ZoomLevel)))
	q.Set("output", req.OutputFormat)
	q.Set("instructions", strconv.FormatBool(req.PrintInstructions))
	q.Set("alt", strconv.FormatBool(req.AlternateRoute))
	q.Set("geometry", strconv.FormatBool(req.Geometry))
	q.Set("compression", strconv.FormatBool(req.Compression))
	if req.Checksum != 0 {
		q.Set("checksum", strconv.FormatUint(uint64(req.Checksum), 10))
	}
	if req.JSONPParameter != "" {
		q.Set("jsonp", req.JSONPParameter)
	}
	return q
}

func formatCoordinate(c request.Coordinate) string {
	return strconv.FormatFloat(c.Latitude(), 'f', 6, 64) + "," + strconv.FormatFloat(c.Longitude(), 'f', 6, 64)
}
