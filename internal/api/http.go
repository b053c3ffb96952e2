// Package api exposes the HTTP surface: home registry, interval intake,
// aggregation and estimation, and the EFL validation review queue.
package api

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/intelliwatt/intelliwatt/internal/plancost"
	"github.com/intelliwatt/intelliwatt/internal/storage"
	"github.com/intelliwatt/intelliwatt/internal/usage"
	"github.com/intelliwatt/intelliwatt/internal/validate"
)

// Server bundles the service dependencies behind the HTTP handlers.
type Server struct {
	store      storage.Storage
	aggregator *usage.Aggregator
	estimator  *usage.EstimateBuilder
	validation *validate.Service
	cal        *usage.Calendar
}

// NewServer wires the handlers. All dependencies are required except
// validation, which may be nil when the validator is not configured.
func NewServer(store storage.Storage, agg *usage.Aggregator, est *usage.EstimateBuilder, val *validate.Service, cal *usage.Calendar) *Server {
	return &Server{store: store, aggregator: agg, estimator: est, validation: val, cal: cal}
}

// NewMux builds the route table.
func (s *Server) NewMux() *http.ServeMux {
	mux := http.NewServeMux()

	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/readyz", s.handleReady)

	mux.HandleFunc("GET /api/v1/homes", s.handleListHomes)
	mux.HandleFunc("POST /api/v1/homes", s.handleUpsertHome)
	mux.HandleFunc("POST /api/v1/homes/{id}/readings", s.handleInsertReadings)
	mux.HandleFunc("POST /api/v1/homes/{id}/aggregate", s.handleAggregate)
	mux.HandleFunc("GET /api/v1/homes/{id}/estimate", s.handleEstimate)

	mux.HandleFunc("POST /api/v1/validations", s.handleValidate)
	mux.HandleFunc("GET /api/v1/validations", s.handleListValidations)

	return mux
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if p, ok := s.store.(*storage.GormStorage); ok {
		if err := p.Ping(r.Context()); err != nil {
			log.Printf("[api] readyz: db ping failed: %v", err)
			http.Error(w, "db not ready", http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleListHomes(w http.ResponseWriter, r *http.Request) {
	homes, err := s.store.ListHomes(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, homes)
}

func (s *Server) handleUpsertHome(w http.ResponseWriter, r *http.Request) {
	var h storage.Home
	if err := json.NewDecoder(r.Body).Decode(&h); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if h.Esiid == "" {
		writeErrorMsg(w, http.StatusBadRequest, "esiid is required")
		return
	}
	if h.ID == "" {
		h.ID = uuid.NewString()
	}
	if h.CreatedAt.IsZero() {
		h.CreatedAt = time.Now().UTC()
	}
	if err := s.store.UpsertHome(r.Context(), h); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, h)
}

func (s *Server) handleInsertReadings(w http.ResponseWriter, r *http.Request) {
	home := s.lookupHome(w, r)
	if home == nil {
		return
	}

	var body []struct {
		Timestamp time.Time `json:"timestamp"`
		Kwh       float64   `json:"kwh"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	readings := make([]storage.IntervalReading, 0, len(body))
	for _, b := range body {
		if b.Timestamp.IsZero() {
			writeErrorMsg(w, http.StatusBadRequest, "reading timestamp is required")
			return
		}
		readings = append(readings, storage.IntervalReading{
			Esiid:     home.Esiid,
			Timestamp: b.Timestamp.UTC(),
			Kwh:       b.Kwh,
		})
	}
	if err := s.store.InsertIntervalReadings(r.Context(), readings); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"inserted": len(readings)})
}

func (s *Server) handleAggregate(w http.ResponseWriter, r *http.Request) {
	home := s.lookupHome(w, r)
	if home == nil {
		return
	}

	var body struct {
		Start time.Time `json:"start"`
		End   time.Time `json:"end"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	res, err := s.aggregator.Aggregate(r.Context(), home.ID, home.Esiid, body.Start, body.End)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleEstimate(w http.ResponseWriter, r *http.Request) {
	home := s.lookupHome(w, r)
	if home == nil {
		return
	}

	windowEnd := time.Now()
	if raw := r.URL.Query().Get("windowEnd"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeErrorMsg(w, http.StatusBadRequest, "windowEnd must be RFC3339")
			return
		}
		windowEnd = t
	}

	est, err := s.estimator.BuildEstimate(r.Context(), home.ID, home.Esiid, windowEnd)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, est)
}

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	if s.validation == nil {
		writeErrorMsg(w, http.StatusServiceUnavailable, "validation is not configured")
		return
	}

	var body struct {
		PlanID  string             `json:"planId"`
		Rules   plancost.PlanRules `json:"rules"`
		EflText string             `json:"eflText"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	res, err := s.validation.Run(r.Context(), validate.Input{
		PlanID:  body.PlanID,
		Rules:   body.Rules,
		EflText: body.EflText,
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleListValidations(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			limit = v
		}
	}
	recs, err := s.store.ListValidations(r.Context(), status, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, recs)
}

// lookupHome resolves the {id} path segment. A nil return means the error
// response is already written.
func (s *Server) lookupHome(w http.ResponseWriter, r *http.Request) *storage.Home {
	id := r.PathValue("id")
	if id == "" {
		writeErrorMsg(w, http.StatusBadRequest, "home id is required")
		return nil
	}
	home, err := s.store.GetHome(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return nil
	}
	if home == nil {
		writeErrorMsg(w, http.StatusNotFound, "home not found")
		return nil
	}
	return home
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[api] encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeErrorMsg(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
