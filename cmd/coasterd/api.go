package main

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/dreamware/coasterd/internal/cluster"
	"github.com/dreamware/coasterd/internal/replicate"
	"github.com/dreamware/coasterd/internal/status"
	"github.com/dreamware/coasterd/internal/store"
)

// server is the HTTP front end: thin glue between the routes and the
// propagator/store/reporter underneath.
type server struct {
	store      store.Store
	propagator *replicate.Propagator
	reporter   *status.Reporter
	coord      *cluster.Coordinator
	logger     *zap.Logger
}

func newServer(s store.Store, p *replicate.Propagator, r *status.Reporter, c *cluster.Coordinator, logger *zap.Logger) *server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &server{store: s, propagator: p, reporter: r, coord: c, logger: logger}
}

func (s *server) router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/api/coasters", s.handleCreateCoaster).Methods(http.MethodPost)
	r.HandleFunc("/api/coasters", s.handleListCoasters).Methods(http.MethodGet)
	r.HandleFunc("/api/coasters/{id}", s.handleGetCoaster).Methods(http.MethodGet)
	r.HandleFunc("/api/coasters/{id}", s.handleUpdateCoaster).Methods(http.MethodPut)
	r.HandleFunc("/api/coasters/{id}/wagons", s.handleAddWagon).Methods(http.MethodPost)
	r.HandleFunc("/api/coasters/{id}/wagons", s.handleListWagons).Methods(http.MethodGet)
	r.HandleFunc("/api/coasters/{id}/wagons/{wagonId}", s.handleRemoveWagon).Methods(http.MethodDelete)
	r.HandleFunc("/api/status", s.handleStatus).Methods(http.MethodGet)
	r.HandleFunc("/api/cluster", s.handleCluster).Methods(http.MethodGet)
	r.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}).Methods(http.MethodGet)
	return r
}

func (s *server) handleCreateCoaster(w http.ResponseWriter, r *http.Request) {
	var c store.Coaster
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	created, err := s.propagator.CreateCoaster(r.Context(), c)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, created)
}

func (s *server) handleListCoasters(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.store.ListCoasters())
}

func (s *server) handleGetCoaster(w http.ResponseWriter, r *http.Request) {
	c, ok := s.store.GetCoaster(mux.Vars(r)["id"])
	if !ok {
		http.Error(w, "coaster not found", http.StatusNotFound)
		return
	}
	s.writeJSON(w, http.StatusOK, c)
}

func (s *server) handleUpdateCoaster(w http.ResponseWriter, r *http.Request) {
	var patch store.CoasterPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	updated, err := s.propagator.UpdateCoaster(r.Context(), mux.Vars(r)["id"], patch)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, updated)
}

func (s *server) handleAddWagon(w http.ResponseWriter, r *http.Request) {
	var wagon store.Wagon
	if err := json.NewDecoder(r.Body).Decode(&wagon); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	created, err := s.propagator.AddWagon(r.Context(), mux.Vars(r)["id"], wagon)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, created)
}

func (s *server) handleListWagons(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if _, ok := s.store.GetCoaster(id); !ok {
		http.Error(w, "coaster not found", http.StatusNotFound)
		return
	}
	s.writeJSON(w, http.StatusOK, s.store.ListWagons(id))
}

func (s *server) handleRemoveWagon(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if err := s.propagator.RemoveWagon(r.Context(), vars["id"], vars["wagonId"]); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.reporter.Report())
}

func (s *server) handleCluster(w http.ResponseWriter, _ *http.Request) {
	snap := s.coord.Snapshot()
	s.writeJSON(w, http.StatusOK, map[string]any{
		"nodeId":         snap.NodeID,
		"role":           snap.Role.String(),
		"masterId":       snap.MasterID,
		"nodes":          snap.Nodes,
		"connectedNodes": snap.ConnectedNodes,
		"isMasterNode":   snap.IsMaster,
		"standalone":     snap.Standalone,
	})
}

// writeError maps the mutation API's error taxonomy onto HTTP statuses.
func (s *server) writeError(w http.ResponseWriter, err error) {
	var verr *store.ValidationError
	switch {
	case errors.As(err, &verr):
		http.Error(w, verr.Error(), http.StatusBadRequest)
	case errors.Is(err, replicate.ErrCoasterNotFound), errors.Is(err, replicate.ErrWagonNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	default:
		s.logger.Error("request failed", zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func (s *server) writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to encode response", zap.Error(err))
	}
}
