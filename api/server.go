// Package api exposes the dispatch operations over HTTP. The handlers are a
// thin boundary: all state transitions happen in the engine.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/urbanpulse/fleetops/core/broadcast"
	"github.com/urbanpulse/fleetops/core/dispatch"
	"github.com/urbanpulse/fleetops/core/fleet"
	"github.com/urbanpulse/fleetops/core/geo"
	"github.com/urbanpulse/fleetops/core/logger"
	"github.com/urbanpulse/fleetops/core/model"
	"github.com/urbanpulse/fleetops/core/store"
)

// Geocoder resolves an address to a coordinate; nil means not found.
type Geocoder interface {
	Geocode(ctx context.Context, address string) (*geo.Point, error)
}

// Router fetches a display polyline between two [lng, lat] coordinates.
type Router interface {
	Route(ctx context.Context, start, end [2]float64) ([][2]float64, error)
}

// Server wires the HTTP surface to the engine and its collaborators.
type Server struct {
	engine   *dispatch.Engine
	store    store.FleetStore
	hub      *broadcast.Hub
	geocoder Geocoder
	router   Router
	log      logger.Logger
}

// NewServer creates the API server. Geocoder and router are optional; the
// endpoints depending on them answer 503 when absent.
func NewServer(engine *dispatch.Engine, s store.FleetStore, hub *broadcast.Hub, geocoder Geocoder, router Router, log logger.Logger) *Server {
	return &Server{engine: engine, store: s, hub: hub, geocoder: geocoder, router: router, log: log}
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleHealth)
	mux.HandleFunc("POST /api/v1/incidents", s.handleCreateIncident)
	mux.HandleFunc("GET /api/v1/incidents", s.handleListIncidents)
	mux.HandleFunc("POST /api/v1/incidents/{id}/dispatch", s.handleDispatch)
	mux.HandleFunc("POST /api/v1/incidents/{id}/resolve", s.handleResolve)
	mux.HandleFunc("POST /api/v1/incident-by-address", s.handleIncidentByAddress)
	mux.HandleFunc("GET /api/v1/fleet", s.handleFleet)
	mux.HandleFunc("GET /api/v1/units/nearest", s.handleNearestUnits)
	mux.HandleFunc("GET /api/v1/route", s.handleRoute)
	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "OK", "system": "fleetops"})
}

type createIncidentRequest struct {
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Lat         float64        `json:"lat"`
	Lng         float64        `json:"lng"`
	Priority    model.Priority `json:"priority"`
}

func (s *Server) handleCreateIncident(w http.ResponseWriter, r *http.Request) {
	var req createIncidentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid body: %v", err))
		return
	}
	incident, err := s.engine.CreateIncident(r.Context(), model.Incident{
		Title:       req.Title,
		Description: req.Description,
		Priority:    req.Priority,
		Location:    geo.Point{Lat: req.Lat, Lng: req.Lng},
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, incident)
}

func (s *Server) handleListIncidents(w http.ResponseWriter, r *http.Request) {
	incidents, err := s.engine.ListIncidents(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, incidents)
}

type dispatchRequest struct {
	UnitType string `json:"unit_type"`
}

func (s *Server) handleDispatch(w http.ResponseWriter, r *http.Request) {
	var req dispatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid body: %v", err))
		return
	}
	if req.UnitType == "" {
		writeError(w, http.StatusBadRequest, "unit_type is required")
		return
	}
	unitType := model.UnitType(strings.ToUpper(req.UnitType))
	if !unitType.Valid() {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown unit type %q", req.UnitType))
		return
	}
	result, err := s.engine.Dispatch(r.Context(), r.PathValue("id"), unitType)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type resolveResponse struct {
	OK         bool         `json:"ok"`
	FreedUnits []model.Unit `json:"freed_units"`
}

func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	freed, err := s.engine.Resolve(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if freed == nil {
		freed = []model.Unit{}
	}
	writeJSON(w, http.StatusOK, resolveResponse{OK: true, FreedUnits: freed})
}

type incidentByAddressRequest struct {
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Address     string         `json:"address"`
	Priority    model.Priority `json:"priority"`
}

func (s *Server) handleIncidentByAddress(w http.ResponseWriter, r *http.Request) {
	if s.geocoder == nil {
		writeError(w, http.StatusServiceUnavailable, "geocoding is not configured")
		return
	}
	var req incidentByAddressRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid body: %v", err))
		return
	}
	if req.Address == "" {
		writeError(w, http.StatusBadRequest, "address is required")
		return
	}
	point, err := s.geocoder.Geocode(r.Context(), req.Address)
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	if point == nil {
		writeError(w, http.StatusNotFound, "address not found")
		return
	}
	incident, err := s.engine.CreateIncident(r.Context(), model.Incident{
		Title:       req.Title,
		Description: req.Description,
		Priority:    req.Priority,
		Location:    *point,
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, incident)
}

func (s *Server) handleFleet(w http.ResponseWriter, r *http.Request) {
	snap, err := s.hub.Snapshot(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleNearestUnits(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	unitType := model.UnitType(strings.ToUpper(q.Get("type")))
	if !unitType.Valid() {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown unit type %q", q.Get("type")))
		return
	}
	lat, err1 := strconv.ParseFloat(q.Get("lat"), 64)
	lng, err2 := strconv.ParseFloat(q.Get("lng"), 64)
	if err1 != nil || err2 != nil {
		writeError(w, http.StatusBadRequest, "lat and lng are required")
		return
	}
	k := 5
	if v := q.Get("k"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			k = parsed
		}
	}
	units, err := s.store.NearestIdleUnits(r.Context(), unitType, geo.Point{Lat: lat, Lng: lng}, k)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if units == nil {
		units = []model.Unit{}
	}
	writeJSON(w, http.StatusOK, units)
}

func (s *Server) handleRoute(w http.ResponseWriter, r *http.Request) {
	if s.router == nil {
		writeError(w, http.StatusServiceUnavailable, "routing is not configured")
		return
	}
	start, err := parseLngLat(r.URL.Query().Get("start"))
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("start: %v", err))
		return
	}
	end, err := parseLngLat(r.URL.Query().Get("end"))
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("end: %v", err))
		return
	}
	route, err := s.router.Route(r.Context(), start, end)
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, route)
}

// parseLngLat parses a "lng,lat" query parameter.
func parseLngLat(v string) ([2]float64, error) {
	parts := strings.Split(v, ",")
	if len(parts) != 2 {
		return [2]float64{}, fmt.Errorf("expected lng,lat got %q", v)
	}
	lng, err := strconv.ParseFloat(parts[0], 64)
	if err != nil {
		return [2]float64{}, fmt.Errorf("invalid longitude %q", parts[0])
	}
	lat, err := strconv.ParseFloat(parts[1], 64)
	if err != nil {
		return [2]float64{}, fmt.Errorf("invalid latitude %q", parts[1])
	}
	return [2]float64{lng, lat}, nil
}

// writeDomainError maps engine errors onto HTTP status codes.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrIncidentNotFound), errors.Is(err, store.ErrUnitNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, fleet.ErrIncidentResolved):
		writeError(w, http.StatusConflict, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
