package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	osrm "github.com/biddyweb/go-osrm"
	"github.com/biddyweb/go-osrm/internal/model"
	"github.com/biddyweb/go-osrm/request"
)

const maxBodySize = 1 << 20 // 1 MB

// queryResult carries one callback outcome across the goroutine boundary.
type queryResult struct {
	err   error
	reply []byte
}

func (s *Server) handleQueryRoute(w http.ResponseWriter, r *http.Request) {
	doc, ok := s.readDoc(w, r)
	if !ok {
		return
	}
	s.serveQuery(w, r, request.ServiceRoute, doc, "")
}

func (s *Server) handleQueryLocate(w http.ResponseWriter, r *http.Request) {
	doc, ok := s.readDoc(w, r)
	if !ok {
		return
	}
	s.serveQuery(w, r, request.ServiceLocate, doc, "")
}

func (s *Server) handleQueryNearest(w http.ResponseWriter, r *http.Request) {
	doc, ok := s.readDoc(w, r)
	if !ok {
		return
	}
	s.serveQuery(w, r, request.ServiceNearest, doc, "")
}

func (s *Server) handleQueryTable(w http.ResponseWriter, r *http.Request) {
	doc, ok := s.readDoc(w, r)
	if !ok {
		return
	}
	s.serveQuery(w, r, request.ServiceTable, doc, "")
}

func (s *Server) handleViaroute(w http.ResponseWriter, r *http.Request) {
	doc, jsonp, ok := s.legacyDoc(w, r)
	if !ok {
		return
	}
	s.serveQuery(w, r, request.ServiceRoute, doc, jsonp)
}

func (s *Server) handleLocate(w http.ResponseWriter, r *http.Request) {
	doc, ok := s.legacyPointDoc(w, r)
	if !ok {
		return
	}
	s.serveQuery(w, r, request.ServiceLocate, doc, "")
}

func (s *Server) handleNearest(w http.ResponseWriter, r *http.Request) {
	doc, ok := s.legacyPointDoc(w, r)
	if !ok {
		return
	}
	s.serveQuery(w, r, request.ServiceNearest, doc, "")
}

func (s *Server) handleTable(w http.ResponseWriter, r *http.Request) {
	doc, jsonp, ok := s.legacyDoc(w, r)
	if !ok {
		return
	}
	s.serveQuery(w, r, request.ServiceTable, doc, jsonp)
}

// serveQuery dispatches one engine query, waits for its callback and maps the
// outcome onto the HTTP response. Dispatched queries are journaled; queries
// rejected at the door are not.
func (s *Server) serveQuery(w http.ResponseWriter, r *http.Request, service string, doc []byte, jsonp string) {
	_, span := s.tracer.Start(r.Context(), "osrm."+service)
	defer span.End()

	rec := &model.Query{
		ID:        model.NewID(),
		Service:   service,
		Status:    model.StatusPending,
		Waypoints: waypointCount(service, doc),
		CreatedAt: time.Now().UTC(),
	}
	span.SetAttributes(
		attribute.String("osrm.service", service),
		attribute.String("osrm.query_id", rec.ID),
		attribute.Int("osrm.waypoints", rec.Waypoints),
	)

	results := make(chan queryResult, 1)
	start := time.Now()
	err := s.dispatchOp(service)(doc, func(err error, reply []byte) {
		results <- queryResult{err: err, reply: reply}
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())

		var verr *request.ValidationError
		if errors.As(err, &verr) {
			s.writeError(w, http.StatusBadRequest, verr.Msg)
			return
		}
		if errors.Is(err, osrm.ErrClosed) {
			s.writeError(w, http.StatusServiceUnavailable, "engine is shut down")
			return
		}
		s.logger.Error("dispatch query", "service", service, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to dispatch query")
		return
	}

	// Journal writes use a background context: they must land even when the
	// client goes away mid-query.
	if err := s.store.CreateQuery(context.Background(), rec); err != nil {
		s.logger.Error("journal query", "id", rec.ID, "error", err)
	}

	res := <-results
	duration := int(time.Since(start).Milliseconds())
	s.finishRecord(rec, res, duration)

	if res.err != nil {
		span.RecordError(res.err)
		span.SetStatus(codes.Error, res.err.Error())
		s.writeError(w, http.StatusBadGateway, res.err.Error())
		return
	}

	contentType := "application/json"
	if jsonp != "" {
		contentType = "application/javascript"
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(res.reply); err != nil {
		s.logger.Error("write reply", "id", rec.ID, "error", err)
	}
}

// dispatchOp returns the wrapper operation for a service name.
func (s *Server) dispatchOp(service string) func([]byte, osrm.Callback) error {
	switch service {
	case request.ServiceLocate:
		return s.osrm.Locate
	case request.ServiceNearest:
		return s.osrm.Nearest
	case request.ServiceTable:
		return s.osrm.Table
	default:
		return s.osrm.Route
	}
}

// finishRecord moves the journal record to its terminal status.
func (s *Server) finishRecord(rec *model.Query, res queryResult, durationMS int) {
	now := time.Now().UTC()
	rec.DurationMS = &durationMS
	rec.FinishedAt = &now
	if res.err != nil {
		rec.Status = model.StatusFailed
		rec.Error = res.err.Error()
	} else {
		rec.Status = model.StatusCompleted
		size := len(res.reply)
		rec.ReplyBytes = &size
	}
	if err := s.store.FinishQuery(context.Background(), rec); err != nil {
		s.logger.Error("finish journal record", "id", rec.ID, "error", err)
	}
}

// readDoc reads the loose request document from the body.
func (s *Server) readDoc(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	doc, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "failed to read request body")
		return nil, false
	}
	return doc, true
}

// legacyDoc renders the OSRM 4.x query string onto the loose JSON document
// the request binding consumes: loc pairs become coordinates, hint strings
// become hints, and z/alt/instructions/checksum/jsonp map onto their option
// names.
func (s *Server) legacyDoc(w http.ResponseWriter, r *http.Request) ([]byte, string, bool) {
	q := r.URL.Query()
	doc := []byte(`{}`)

	for _, loc := range q["loc"] {
		lat, lon, err := parseLoc(loc)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid loc parameter")
			return nil, "", false
		}
		doc, _ = sjson.SetBytes(doc, "coordinates.-1", []float64{lat, lon})
	}
	for _, hint := range q["hint"] {
		doc, _ = sjson.SetBytes(doc, "hints.-1", hint)
	}
	if v := q.Get("z"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			doc, _ = sjson.SetBytes(doc, "zoomLevel", n)
		}
	}
	if v := q.Get("alt"); v != "" {
		doc, _ = sjson.SetBytes(doc, "alternateRoute", v == "true")
	}
	if v := q.Get("instructions"); v != "" {
		doc, _ = sjson.SetBytes(doc, "printInstructions", v == "true")
	}
	if v := q.Get("checksum"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 32); err == nil {
			doc, _ = sjson.SetBytes(doc, "checksum", n)
		}
	}
	jsonp := q.Get("jsonp")
	if jsonp != "" {
		doc, _ = sjson.SetBytes(doc, "jsonpParameter", jsonp)
	}

	return doc, jsonp, true
}

// legacyPointDoc renders a single loc parameter as the bare [lat, lon] array
// the point query binding consumes. A missing loc yields an empty object so
// the binding reports its canonical message.
func (s *Server) legacyPointDoc(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	loc := r.URL.Query().Get("loc")
	if loc == "" {
		return []byte(`{}`), true
	}
	lat, lon, err := parseLoc(loc)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid loc parameter")
		return nil, false
	}
	doc, _ := sjson.SetBytes([]byte(`[]`), "-1", lat)
	doc, _ = sjson.SetBytes(doc, "-1", lon)
	return doc, true
}

// parseLoc splits an OSRM 4.x "lat,lon" pair.
func parseLoc(s string) (float64, float64, error) {
	latStr, lonStr, ok := strings.Cut(s, ",")
	if !ok {
		return 0, 0, errors.New("missing comma")
	}
	lat, err := strconv.ParseFloat(latStr, 64)
	if err != nil {
		return 0, 0, err
	}
	lon, err := strconv.ParseFloat(lonStr, 64)
	if err != nil {
		return 0, 0, err
	}
	return lat, lon, nil
}

// waypointCount pulls the coordinate count out of the loose document.
func waypointCount(service string, doc []byte) int {
	switch service {
	case request.ServiceLocate, request.ServiceNearest:
		return 1
	}
	return int(gjson.GetBytes(doc, "coordinates.#").Int())
}
