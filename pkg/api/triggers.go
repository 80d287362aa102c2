package api

import (
	"fmt"
	"net/http"
)

// handleIngest runs a synchronous financial ingestion for one company and
// answers the created snapshot.
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	if s.ingestor == nil {
		s.writeError(w, r, http.StatusServiceUnavailable, fmt.Errorf("ingestion not configured"))
		return
	}
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	snap, err := s.ingestor.IngestLatestFinancials(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, snap)
}

// handleCreateThesis creates the next thesis version synchronously.
func (s *Server) handleCreateThesis(w http.ResponseWriter, r *http.Request) {
	if s.theses == nil {
		s.writeError(w, r, http.StatusServiceUnavailable, fmt.Errorf("thesis generation not configured"))
		return
	}
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	version, err := s.theses.CreateThesisVersion(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, version)
}

// handleSweep runs one filing-discovery pass and answers how many ingestion
// jobs it dispatched.
func (s *Server) handleSweep(w http.ResponseWriter, r *http.Request) {
	if s.sweeper == nil {
		s.writeError(w, r, http.StatusServiceUnavailable, fmt.Errorf("filing sweep not configured"))
		return
	}
	dispatched, err := s.sweeper.SweepForNewFilings(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]int{"dispatched": dispatched})
}
