// Package v1 exposes the navigation server's HTTP JSON surface.
package v1

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/dpup/prefab/logging"
	"github.com/paulmach/orb"
	"github.com/samber/lo"

	"github.com/ifsp/robotnav/server/internal/journal"
	"github.com/ifsp/robotnav/server/internal/lib/geo"
	"github.com/ifsp/robotnav/server/internal/lib/naverr"
	"github.com/ifsp/robotnav/server/internal/lib/session"
	"github.com/ifsp/robotnav/server/internal/services"
)

const (
	defaultEventLimit = 20
	maxEventLimit     = 200
	maxBodyBytes      = 64 << 10
)

// Navigator is the navigation behaviour the handlers expose
type Navigator interface {
	ComputeRoute(ctx context.Context, start, end orb.Point) (*services.RouteResult, error)
	IngestFix(ctx context.Context, fix orb.Point) error
	IngestNMEA(ctx context.Context, text string) (int, error)
	ReportObstacle(ctx context.Context, hit bool)
	Live() services.LiveStatus
	ActiveRoute() (*session.Route, bool)
	RecentEvents(ctx context.Context, limit int) ([]journal.Event, error)
}

// Handlers serves the HTTP API
type Handlers struct {
	nav        Navigator
	livePeriod time.Duration
	health     func() Health
}

// Route pairs a path with its handler
type Route struct {
	Path    string
	Handler http.HandlerFunc
}

// NewHandlers creates the API handlers. livePeriod paces the live websocket stream.
func NewHandlers(nav Navigator, livePeriod time.Duration, opts ...Option) *Handlers {
	if livePeriod <= 0 {
		livePeriod = time.Second
	}
	h := &Handlers{nav: nav, livePeriod: livePeriod}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Routes lists every endpoint served by the API
func (h *Handlers) Routes() []Route {
	return []Route{
		{Path: "/", Handler: h.Home},
		{Path: "/gps", Handler: h.PostGPS},
		{Path: "/gps/nmea", Handler: h.PostNMEA},
		{Path: "/gps/live", Handler: h.GetLive},
		{Path: "/gps/live/ws", Handler: h.LiveStream},
		{Path: "/route", Handler: h.PostRoute},
		{Path: "/route.kml", Handler: h.GetRouteKML},
		{Path: "/obstacle", Handler: h.PostObstacle},
		{Path: "/events", Handler: h.GetEvents},
		{Path: "/health", Handler: h.GetHealth},
	}
}

// Mux returns a ServeMux with every route registered. Outside prefab, requests
// carry no logger, so one is attached here.
func (h *Handlers) Mux() *http.ServeMux {
	mux := http.NewServeMux()
	for _, route := range h.Routes() {
		mux.HandleFunc(route.Path, withLogger(route.Handler))
	}
	return mux
}

func withLogger(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		next(w, r.WithContext(logging.EnsureLogger(r.Context())))
	}
}

type gpsRequest struct {
	Pos []float64 `json:"pos"`
}

type routeRequest struct {
	Coordinates [][]float64 `json:"coordinates"`
}

type obstacleRequest struct {
	Hit *bool `json:"hit"`
}

type statusResponse struct {
	Status string `json:"status"`
	Fixes  int    `json:"fixes,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// PostGPS ingests a raw fix: {"pos": [lng, lat]}
func (h *Handlers) PostGPS(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}

	var req gpsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(r.Context(), w, err)
		return
	}
	if req.Pos == nil {
		writeError(r.Context(), w, naverr.Missing("missing pos"))
		return
	}
	fix, err := toPoint(req.Pos)
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}

	if err := h.nav.IngestFix(r.Context(), fix); err != nil {
		writeError(r.Context(), w, err)
		return
	}
	writeJSON(r.Context(), w, http.StatusOK, statusResponse{Status: "ok"})
}

// PostNMEA ingests newline separated NMEA sentences from the request body
func (h *Handlers) PostNMEA(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeError(r.Context(), w, naverr.Missing("failed to read body: %v", err))
		return
	}

	n, err := h.nav.IngestNMEA(r.Context(), string(body))
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	writeJSON(r.Context(), w, http.StatusOK, statusResponse{Status: "ok", Fixes: n})
}

// GetLive reports the smoothed position and current target
func (h *Handlers) GetLive(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	writeJSON(r.Context(), w, http.StatusOK, h.nav.Live())
}

// PostRoute computes a route: {"coordinates": [[lng, lat], [lng, lat]]}
func (h *Handlers) PostRoute(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}

	var req routeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(r.Context(), w, err)
		return
	}
	if req.Coordinates == nil {
		writeError(r.Context(), w, naverr.Missing("missing coordinates"))
		return
	}
	if len(req.Coordinates) != 2 {
		writeError(r.Context(), w, naverr.Missing("need exactly 2 coordinates, got %d", len(req.Coordinates)))
		return
	}

	points := make([]orb.Point, 0, 2)
	for _, pair := range req.Coordinates {
		p, err := toPoint(pair)
		if err != nil {
			writeError(r.Context(), w, err)
			return
		}
		points = append(points, p)
	}

	result, err := h.nav.ComputeRoute(r.Context(), points[0], points[1])
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	writeJSON(r.Context(), w, http.StatusOK, result)
}

// PostObstacle sets or clears the obstacle flag: {"hit": true|false}
func (h *Handlers) PostObstacle(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}

	var req obstacleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(r.Context(), w, err)
		return
	}
	if req.Hit == nil {
		writeError(r.Context(), w, naverr.Missing("missing hit"))
		return
	}

	h.nav.ReportObstacle(r.Context(), *req.Hit)
	writeJSON(r.Context(), w, http.StatusOK, statusResponse{Status: "ok"})
}

// GetEvents lists recent journal events, newest first
func (h *Handlers) GetEvents(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	limit := defaultEventLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			writeError(r.Context(), w, naverr.Missing("invalid limit %q", raw))
			return
		}
		limit = lo.Clamp(parsed, 1, maxEventLimit)
	}

	events, err := h.nav.RecentEvents(r.Context(), limit)
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	writeJSON(r.Context(), w, http.StatusOK, map[string]interface{}{"events": events})
}

func toPoint(pair []float64) (orb.Point, error) {
	if len(pair) != 2 {
		return orb.Point{}, naverr.Missing("coordinate must be [lng, lat], got %d values", len(pair))
	}
	p, err := geo.NewPoint(pair[0], pair[1])
	if err != nil {
		return orb.Point{}, naverr.Missing("%v", err)
	}
	return p, nil
}

func requireMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method == method {
		return true
	}
	w.Header().Set("Allow", method)
	writeJSON(r.Context(), w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
	return false
}

func decodeJSON(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(v); err != nil {
		return naverr.Missing("invalid JSON body: %v", err)
	}
	return nil
}

func writeJSON(ctx context.Context, w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Errorw(ctx, "Failed to write response", "error", err)
	}
}

func writeError(ctx context.Context, w http.ResponseWriter, err error) {
	status := naverr.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		logging.Errorw(ctx, "Request failed", "status", status, "error", err)
	}
	writeJSON(ctx, w, status, errorResponse{Error: message(err)})
}

func message(err error) string {
	if naverr.Is(err, naverr.MissingInput) || naverr.Is(err, naverr.ProviderError) {
		return err.Error()
	}
	return fmt.Sprintf("internal error: %v", err)
}
