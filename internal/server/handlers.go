// Package server provides the HTTP server and routing for LoanLens.
package server

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/gralix-technologies/loanlens/internal/domain"
	"github.com/gralix-technologies/loanlens/internal/modules/records"
	"github.com/gralix-technologies/loanlens/internal/modules/snapshots"
)

// widgetRequest is the payload for single-product widget endpoints
type widgetRequest struct {
	WidgetType string              `json:"widget_type,omitempty"`
	ProductID  int64               `json:"product_id"`
	Config     domain.WidgetConfig `json:"config"`
	Filters    *records.FilterSpec `json:"filters,omitempty"`
}

// portfolioRequest is the payload for cross-product widget endpoints
type portfolioRequest struct {
	WidgetType string              `json:"widget_type,omitempty"`
	ProductIDs []int64             `json:"product_ids"`
	Config     domain.WidgetConfig `json:"config"`
}

// evaluateRequest is the payload for ad-hoc formula evaluation
type evaluateRequest struct {
	Expression string              `json:"expression"`
	ProductID  int64               `json:"product_id"`
	Filters    *records.FilterSpec `json:"filters,omitempty"`
}

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"status":  "healthy",
		"version": "1.0.0",
		"service": "loanlens",
	}

	s.writeJSON(w, http.StatusOK, response)
}

// handleWidgetKPI computes a KPI for a single product.
// Evaluation failures are reported inside the result payload, not as
// HTTP errors; dashboard widgets render their own error states.
func (s *Server) handleWidgetKPI(w http.ResponseWriter, r *http.Request) {
	var req widgetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, "invalid request body")
		return
	}

	result := s.container.ChartService.ComputeKPI(req.Config, req.ProductID, req.Filters)
	s.writeJSON(w, http.StatusOK, result)
}

// handleWidgetChart computes chart data for a single product
func (s *Server) handleWidgetChart(w http.ResponseWriter, r *http.Request) {
	var req widgetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, "invalid request body")
		return
	}

	result := s.container.ChartService.ComputeChart(req.WidgetType, req.Config, req.ProductID, req.Filters)
	s.writeJSON(w, http.StatusOK, result)
}

// handlePortfolioKPI computes a KPI across multiple products
func (s *Server) handlePortfolioKPI(w http.ResponseWriter, r *http.Request) {
	var req portfolioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, "invalid request body")
		return
	}

	result := s.container.PortfolioService.ComputeKPI(req.Config, req.ProductIDs)
	s.writeJSON(w, http.StatusOK, result)
}

// handlePortfolioChart computes chart data across multiple products
func (s *Server) handlePortfolioChart(w http.ResponseWriter, r *http.Request) {
	var req portfolioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, "invalid request body")
		return
	}

	result := s.container.PortfolioService.ComputeChart(req.WidgetType, req.Config, req.ProductIDs)
	s.writeJSON(w, http.StatusOK, result)
}

// handleEvaluateFormula evaluates an ad-hoc expression against a product's records
func (s *Server) handleEvaluateFormula(w http.ResponseWriter, r *http.Request) {
	var req evaluateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, "invalid request body")
		return
	}
	if req.Expression == "" {
		s.writeError(w, "expression is required")
		return
	}

	recs, err := s.container.RecordRepo.Fetch(req.ProductID, req.Filters)
	if err != nil {
		s.log.Error().Err(err).Int64("product_id", req.ProductID).Msg("Record fetch failed")
		s.writeError(w, "failed to load records")
		return
	}

	value, err := s.container.Evaluator.EvaluateChecked(req.Expression, recs)
	if err != nil {
		s.writeJSON(w, http.StatusOK, map[string]interface{}{
			"value": 0.0,
			"error": err.Error(),
		})
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"value":        value,
		"record_count": len(recs),
	})
}

// handleSaveFormula creates or updates a named formula
func (s *Server) handleSaveFormula(w http.ResponseWriter, r *http.Request) {
	var f domain.Formula
	if err := json.NewDecoder(r.Body).Decode(&f); err != nil {
		s.writeError(w, "invalid request body")
		return
	}
	if f.Name == "" || f.Expression == "" {
		s.writeError(w, "name and expression are required")
		return
	}

	if err := s.container.FormulaRepo.Save(&f); err != nil {
		s.log.Error().Err(err).Str("name", f.Name).Msg("Formula save failed")
		s.writeError(w, "failed to save formula")
		return
	}

	s.writeJSON(w, http.StatusOK, f)
}

// handleRegisterSnapshot registers a widget for scheduled precomputation
func (s *Server) handleRegisterSnapshot(w http.ResponseWriter, r *http.Request) {
	var spec snapshots.WidgetSpec
	if err := json.NewDecoder(r.Body).Decode(&spec); err != nil {
		s.writeError(w, "invalid request body")
		return
	}

	if err := s.container.SnapshotService.Register(spec); err != nil {
		s.writeError(w, err.Error())
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"registered": true,
		"name":       spec.Name,
	})
}

// handleGetSnapshot returns the cached result for a registered widget
func (s *Server) handleGetSnapshot(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	snap, err := s.container.SnapshotService.Get(name)
	if err != nil {
		s.log.Error().Err(err).Str("name", name).Msg("Snapshot lookup failed")
		s.writeError(w, "failed to load snapshot")
		return
	}
	if snap == nil {
		s.writeError(w, "snapshot not found")
		return
	}

	s.writeJSON(w, http.StatusOK, snap)
}

// writeJSON writes a JSON response
func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// writeError writes an error payload. Widget endpoints intentionally
// answer 200 with an error body; the frontend treats transport errors
// and computation errors differently.
func (s *Server) writeError(w http.ResponseWriter, msg string) {
	s.writeJSON(w, http.StatusOK, map[string]string{"error": msg})
}
