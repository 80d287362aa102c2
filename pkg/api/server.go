// Package api exposes the engine over HTTP: company registry CRUD, read
// endpoints for every derived artifact, and synchronous pipeline triggers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"thesisengine/pkg/core/marketdata"
	"thesisengine/pkg/core/snapshot"
	"thesisengine/pkg/core/storage"
	"thesisengine/pkg/core/store"
	"thesisengine/pkg/core/thesis"
	"thesisengine/pkg/models"
)

// Store is the read and registry surface the handlers need. Satisfied by
// store.Store.
type Store interface {
	CreateCompany(ctx context.Context, c *models.Company) error
	GetCompany(ctx context.Context, id uuid.UUID) (*models.Company, error)
	GetCompanyByTicker(ctx context.Context, ticker string) (*models.Company, error)
	ListCompanies(ctx context.Context) ([]models.Company, error)
	UpdateCompany(ctx context.Context, c *models.Company) error

	LatestSnapshot(ctx context.Context, companyID uuid.UUID) (*models.FinancialSnapshot, error)
	ListSnapshots(ctx context.Context, companyID uuid.UUID) ([]models.FinancialSnapshot, error)
	ListSegments(ctx context.Context, snapshotID uuid.UUID) ([]models.Segment, error)

	CurrentProfile(ctx context.Context, companyID uuid.UUID) (*models.BusinessProfile, error)
	ListProfiles(ctx context.Context, companyID uuid.UUID) ([]models.BusinessProfile, error)

	LatestThesis(ctx context.Context, companyID uuid.UUID) (*models.ThesisVersion, error)
	GetThesis(ctx context.Context, id uuid.UUID) (*models.ThesisVersion, error)
	ListTheses(ctx context.Context, companyID uuid.UUID) ([]models.ThesisVersion, error)

	ListUpdates(ctx context.Context, companyID uuid.UUID) ([]models.QuarterlyUpdate, error)

	GetDocument(ctx context.Context, id uuid.UUID) (*models.Document, error)
	ListDocuments(ctx context.Context, companyID uuid.UUID) ([]models.Document, error)

	ListJobs(ctx context.Context, companyID uuid.UUID) ([]models.IngestionJob, error)
}

// Ingestor triggers an on-demand financial ingestion. Satisfied by
// snapshot.Ingestor.
type Ingestor interface {
	IngestLatestFinancials(ctx context.Context, companyID uuid.UUID) (*models.FinancialSnapshot, error)
}

// ThesisService triggers synchronous thesis creation. Satisfied by
// thesis.Service.
type ThesisService interface {
	CreateThesisVersion(ctx context.Context, companyID uuid.UUID) (*models.ThesisVersion, error)
}

// FilingSweeper triggers one filing-discovery sweep. Satisfied by
// pipeline.Sweeper.
type FilingSweeper interface {
	SweepForNewFilings(ctx context.Context) (int, error)
}

// QuoteSource answers live price quotes. Satisfied by marketdata.Gateway.
type QuoteSource interface {
	GetQuote(ctx context.Context, symbol string) (*marketdata.Quote, error)
}

// Server wires all HTTP handlers. Optional collaborators may be nil; the
// matching endpoints then answer 503.
type Server struct {
	store    Store
	ingestor Ingestor
	theses   ThesisService
	sweeper  FilingSweeper
	quotes   QuoteSource
	blobs    storage.BlobStore
	ping     func(ctx context.Context) error
	log      *zap.Logger
}

func NewServer(st Store, ingestor Ingestor, theses ThesisService, sweeper FilingSweeper, quotes QuoteSource, blobs storage.BlobStore, ping func(ctx context.Context) error, log *zap.Logger) *Server {
	return &Server{
		store:    st,
		ingestor: ingestor,
		theses:   theses,
		sweeper:  sweeper,
		quotes:   quotes,
		blobs:    blobs,
		ping:     ping,
		log:      log,
	}
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/health", s.handleHealth)

	mux.HandleFunc("POST /api/companies", s.handleCreateCompany)
	mux.HandleFunc("GET /api/companies", s.handleListCompanies)
	mux.HandleFunc("GET /api/companies/{id}", s.handleGetCompany)
	mux.HandleFunc("PUT /api/companies/{id}", s.handleUpdateCompany)
	mux.HandleFunc("GET /api/companies/ticker/{ticker}", s.handleGetCompanyByTicker)

	mux.HandleFunc("GET /api/companies/{id}/snapshots", s.handleListSnapshots)
	mux.HandleFunc("GET /api/companies/{id}/snapshots/latest", s.handleLatestSnapshot)

	mux.HandleFunc("GET /api/companies/{id}/profile", s.handleCurrentProfile)
	mux.HandleFunc("GET /api/companies/{id}/profiles", s.handleListProfiles)

	mux.HandleFunc("GET /api/companies/{id}/theses", s.handleListTheses)
	mux.HandleFunc("GET /api/companies/{id}/theses/latest", s.handleLatestThesis)
	mux.HandleFunc("GET /api/theses/{id}", s.handleGetThesis)
	mux.HandleFunc("GET /api/theses/{id}/html", s.handleThesisHTML)

	mux.HandleFunc("GET /api/companies/{id}/updates", s.handleListUpdates)
	mux.HandleFunc("GET /api/companies/{id}/quote", s.handleGetQuote)
	mux.HandleFunc("GET /api/companies/{id}/documents", s.handleListDocuments)
	mux.HandleFunc("GET /api/documents/{id}/url", s.handleDocumentURL)
	mux.HandleFunc("GET /api/documents/{id}/content", s.handleDocumentContent)
	mux.HandleFunc("GET /api/companies/{id}/jobs", s.handleListJobs)

	mux.HandleFunc("POST /api/companies/{id}/ingest", s.handleIngest)
	mux.HandleFunc("POST /api/companies/{id}/thesis", s.handleCreateThesis)
	mux.HandleFunc("POST /api/sweep", s.handleSweep)

	return s.withLogging(mux)
}

func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r)
		s.log.Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path))
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.ping != nil {
		if err := s.ping(r.Context()); err != nil {
			s.writeError(w, r, http.StatusServiceUnavailable, err)
			return
		}
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// writeJSON encodes v as the response body.
func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error("response encode failed", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, status int, err error) {
	if status >= http.StatusInternalServerError {
		s.log.Error("request failed",
			zap.String("path", r.URL.Path),
			zap.Error(err))
	}
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}

// fail maps domain sentinels to HTTP statuses. Anything unmapped is a 500.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		s.writeError(w, r, http.StatusNotFound, err)
	case errors.Is(err, snapshot.ErrDuplicatePeriod):
		s.writeError(w, r, http.StatusConflict, err)
	case errors.Is(err, snapshot.ErrNoData):
		s.writeError(w, r, http.StatusUnprocessableEntity, err)
	case errors.Is(err, thesis.ErrMissingSnapshot):
		s.writeError(w, r, http.StatusConflict, err)
	case errors.Is(err, thesis.ErrMissingProfile):
		s.writeError(w, r, http.StatusPreconditionFailed, err)
	case errors.Is(err, marketdata.ErrRateLimited):
		s.writeError(w, r, http.StatusServiceUnavailable, err)
	case errors.Is(err, storage.ErrNotFound):
		s.writeError(w, r, http.StatusNotFound, err)
	default:
		s.writeError(w, r, http.StatusInternalServerError, err)
	}
}

// pathID parses the {id} path segment.
func (s *Server) pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, http.StatusBadRequest, errors.New("invalid id"))
		return uuid.Nil, false
	}
	return id, true
}
