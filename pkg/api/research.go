package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"thesisengine/pkg/core/marketdata"
	"thesisengine/pkg/core/narrative"
	"thesisengine/pkg/core/numeric"
	"thesisengine/pkg/models"
)

// signedURLTTL bounds how long a presigned document link stays valid.
const signedURLTTL = 15 * time.Minute

func (s *Server) handleListSnapshots(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	snapshots, err := s.store.ListSnapshots(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, snapshots)
}

// snapshotDetail pairs a snapshot with its segment rows.
type snapshotDetail struct {
	models.FinancialSnapshot
	Segments []models.Segment `json:"segments"`
}

func (s *Server) handleLatestSnapshot(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	snap, err := s.store.LatestSnapshot(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	segments, err := s.store.ListSegments(r.Context(), snap.ID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, snapshotDetail{FinancialSnapshot: *snap, Segments: segments})
}

func (s *Server) handleCurrentProfile(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	profile, err := s.store.CurrentProfile(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, profile)
}

func (s *Server) handleListProfiles(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	profiles, err := s.store.ListProfiles(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, profiles)
}

func (s *Server) handleListTheses(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	theses, err := s.store.ListTheses(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, theses)
}

func (s *Server) handleLatestThesis(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	version, err := s.store.LatestThesis(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, version)
}

func (s *Server) handleGetThesis(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	version, err := s.store.GetThesis(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, version)
}

// handleThesisHTML renders a thesis version as a standalone HTML document.
func (s *Server) handleThesisHTML(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	version, err := s.store.GetThesis(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	html, err := narrative.RenderMarkdown(thesisMarkdown(version))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, html)
}

// thesisMarkdown lays out one version as a markdown report.
func thesisMarkdown(t *models.ThesisVersion) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Investment Thesis v%d\n\n", t.Version)

	fmt.Fprintf(&b, "## Bull Case (target: %s)\n\n%s\n\n", numeric.Display(t.BullTarget), t.BullCase)
	fmt.Fprintf(&b, "## Base Case (target: %s)\n\n%s\n\n", numeric.Display(t.BaseTarget), t.BaseCase)
	fmt.Fprintf(&b, "## Bear Case (target: %s)\n\n%s\n\n", numeric.Display(t.BearTarget), t.BearCase)

	writeList(&b, "Key Drivers", t.KeyDrivers)
	writeList(&b, "Key Risks", t.KeyRisks)
	writeList(&b, "Catalysts", t.Catalysts)

	if t.DriftSummary != "" {
		fmt.Fprintf(&b, "## Drift (conviction %s)\n\n%s\n\n", t.ConvictionDirection, t.DriftSummary)
	}
	if t.IntegrityRationale != "" {
		fmt.Fprintf(&b, "## Integrity (%s/10)\n\n%s\n", numeric.Display(t.IntegrityScore), t.IntegrityRationale)
	}
	return b.String()
}

// writeList expands a stored JSON array into a markdown bullet list. A value
// that fails to parse is emitted verbatim rather than dropped.
func writeList(b *strings.Builder, heading, jsonText string) {
	if jsonText == "" || jsonText == "[]" {
		return
	}
	fmt.Fprintf(b, "## %s\n\n", heading)

	var items []string
	if err := json.Unmarshal([]byte(jsonText), &items); err != nil {
		fmt.Fprintf(b, "%s\n\n", jsonText)
		return
	}
	for _, item := range items {
		fmt.Fprintf(b, "- %s\n", item)
	}
	b.WriteString("\n")
}

func (s *Server) handleListUpdates(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	updates, err := s.store.ListUpdates(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, updates)
}

// handleGetQuote answers the live quote for a company's exchange-qualified
// symbol. A company no provider can quote answers 404.
func (s *Server) handleGetQuote(w http.ResponseWriter, r *http.Request) {
	if s.quotes == nil {
		s.writeError(w, r, http.StatusServiceUnavailable, fmt.Errorf("market data not configured"))
		return
	}
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	company, err := s.store.GetCompany(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	symbol := marketdata.ResolveSymbol(company.Ticker, company.Exchange)
	quote, err := s.quotes.GetQuote(r.Context(), symbol)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if quote == nil {
		s.writeError(w, r, http.StatusNotFound, fmt.Errorf("no quote for %s", symbol))
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"symbol":      symbol,
		"price":       numeric.Display(quote.Price),
		"change":      numeric.Display(quote.Change),
		"change_pct":  numeric.Display(quote.ChangePct),
		"prev_close":  numeric.Display(quote.PrevClose),
		"trading_day": quote.TradingDay,
	})
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	documents, err := s.store.ListDocuments(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, documents)
}

// handleDocumentURL answers a short-lived download link for an archived
// filing. Documents whose raw body was never stored answer 404.
func (s *Server) handleDocumentURL(w http.ResponseWriter, r *http.Request) {
	if s.blobs == nil {
		s.writeError(w, r, http.StatusServiceUnavailable, fmt.Errorf("document storage not configured"))
		return
	}
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	doc, err := s.store.GetDocument(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if doc.StorageKey == "" {
		s.writeError(w, r, http.StatusNotFound, fmt.Errorf("document %s has no stored body", doc.ID))
		return
	}
	url, err := s.blobs.SignedURL(r.Context(), doc.StorageKey, signedURLTTL)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"url": url})
}

// handleDocumentContent serves an archived filing body straight from blob
// storage, for callers that cannot follow a presigned URL.
func (s *Server) handleDocumentContent(w http.ResponseWriter, r *http.Request) {
	if s.blobs == nil {
		s.writeError(w, r, http.StatusServiceUnavailable, fmt.Errorf("document storage not configured"))
		return
	}
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	doc, err := s.store.GetDocument(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if doc.StorageKey == "" {
		s.writeError(w, r, http.StatusNotFound, fmt.Errorf("document %s has no stored body", doc.ID))
		return
	}
	body, err := s.blobs.Get(r.Context(), doc.StorageKey)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(body)
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	jobs, err := s.store.ListJobs(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, jobs)
}
