package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"thesisengine/pkg/models"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// CompanyRequest is the create/update payload for the company registry.
type CompanyRequest struct {
	Ticker   string `json:"ticker" validate:"required,max=12"`
	Name     string `json:"name" validate:"required"`
	Exchange string `json:"exchange" validate:"required,oneof=NYSE NASDAQ TSX TSXV"`
	Sector   string `json:"sector"`
	Industry string `json:"industry"`
	Currency string `json:"currency" validate:"required,oneof=USD CAD"`
	CIK      string `json:"cik" validate:"omitempty,numeric"`
	SedarID  string `json:"sedar_id"`
	IsActive *bool  `json:"is_active"`
}

func decodeCompany(r *http.Request) (*CompanyRequest, error) {
	var req CompanyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, fmt.Errorf("invalid request body: %w", err)
	}
	req.Ticker = strings.ToUpper(strings.TrimSpace(req.Ticker))
	if err := validate.Struct(&req); err != nil {
		return nil, err
	}
	if req.CIK == "" && req.SedarID == "" {
		return nil, errors.New("either cik or sedar_id is required")
	}
	return &req, nil
}

func (s *Server) handleCreateCompany(w http.ResponseWriter, r *http.Request) {
	req, err := decodeCompany(r)
	if err != nil {
		s.writeError(w, r, http.StatusBadRequest, err)
		return
	}

	company := &models.Company{
		Ticker:   req.Ticker,
		Name:     req.Name,
		Exchange: req.Exchange,
		Sector:   req.Sector,
		Industry: req.Industry,
		Currency: req.Currency,
		CIK:      req.CIK,
		SedarID:  req.SedarID,
		IsActive: true,
	}
	if req.IsActive != nil {
		company.IsActive = *req.IsActive
	}

	if err := s.store.CreateCompany(r.Context(), company); err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, company)
}

func (s *Server) handleListCompanies(w http.ResponseWriter, r *http.Request) {
	companies, err := s.store.ListCompanies(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, companies)
}

func (s *Server) handleGetCompany(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	company, err := s.store.GetCompany(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, company)
}

func (s *Server) handleGetCompanyByTicker(w http.ResponseWriter, r *http.Request) {
	ticker := strings.ToUpper(r.PathValue("ticker"))
	company, err := s.store.GetCompanyByTicker(r.Context(), ticker)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, company)
}

func (s *Server) handleUpdateCompany(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	req, err := decodeCompany(r)
	if err != nil {
		s.writeError(w, r, http.StatusBadRequest, err)
		return
	}

	company, err := s.store.GetCompany(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	company.Ticker = req.Ticker
	company.Name = req.Name
	company.Exchange = req.Exchange
	company.Sector = req.Sector
	company.Industry = req.Industry
	company.Currency = req.Currency
	company.CIK = req.CIK
	company.SedarID = req.SedarID
	if req.IsActive != nil {
		company.IsActive = *req.IsActive
	}

	if err := s.store.UpdateCompany(r.Context(), company); err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, company)
}
