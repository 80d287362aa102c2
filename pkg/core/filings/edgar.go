package filings

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	secSubmissionsURL = "https://data.sec.gov/submissions/CIK%s.json"
	secArchiveURL     = "https://www.sec.gov/Archives/edgar/data/%s/%s"
)

// EDGARSource retrieves US filings from the SEC EDGAR submissions API.
// The SEC requires a descriptive User-Agent on every request.
type EDGARSource struct {
	userAgent      string
	httpClient     *http.Client
	submissionsURL string // format string taking the zero-padded CIK
	archiveURL     string // format string taking CIK and document path
}

var _ Source = (*EDGARSource)(nil)

// NewEDGARSource creates a client identifying itself with userAgent,
// e.g. "ThesisEngine admin@example.com".
func NewEDGARSource(userAgent string) *EDGARSource {
	return &EDGARSource{
		userAgent:      userAgent,
		httpClient:     &http.Client{Timeout: 30 * time.Second},
		submissionsURL: secSubmissionsURL,
		archiveURL:     secArchiveURL,
	}
}

func (s *EDGARSource) Name() string { return "edgar" }

// secSubmissions is the submissions API response. Filing attributes arrive as
// parallel arrays indexed together.
type secSubmissions struct {
	CIK     string `json:"cik"`
	Filings struct {
		Recent struct {
			AccessionNumber []string `json:"accessionNumber"`
			FilingDate      []string `json:"filingDate"`
			Form            []string `json:"form"`
			PrimaryDocument []string `json:"primaryDocument"`
		} `json:"recent"`
	} `json:"filings"`
}

// ListRecent returns up to MaxFilings filings of the given form type, newest
// first (the submissions feed is already ordered newest-first).
func (s *EDGARSource) ListRecent(ctx context.Context, cik, filingType string) ([]Filing, error) {
	if cik == "" {
		return nil, nil
	}

	// Zero-pad CIK to 10 digits as the submissions endpoint requires.
	padded := fmt.Sprintf("%010s", strings.TrimLeft(cik, "0"))

	var info secSubmissions
	if err := s.getJSON(ctx, fmt.Sprintf(s.submissionsURL, padded), &info); err != nil {
		return nil, fmt.Errorf("edgar submissions for CIK %s: %w", cik, err)
	}

	recent := info.Filings.Recent
	filings := make([]Filing, 0, MaxFilings)
	for i := range recent.AccessionNumber {
		if recent.Form[i] != filingType {
			continue
		}
		// Archive URL: /Archives/edgar/data/{cik}/{accession-no-dashes}/{document}
		noDashes := strings.ReplaceAll(recent.AccessionNumber[i], "-", "")
		docPath := noDashes + "/" + recent.PrimaryDocument[i]
		filings = append(filings, Filing{
			Ref:        recent.AccessionNumber[i],
			Type:       recent.Form[i],
			FilingDate: recent.FilingDate[i],
			URL:        fmt.Sprintf(s.archiveURL, strings.TrimLeft(info.CIK, "0"), docPath),
		})
		if len(filings) >= MaxFilings {
			break
		}
	}
	return filings, nil
}

// Download fetches the raw filing document bytes.
func (s *EDGARSource) Download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", s.userAgent)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("edgar download failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("edgar returned status %d for %s", resp.StatusCode, url)
	}
	return io.ReadAll(resp.Body)
}

func (s *EDGARSource) getJSON(ctx context.Context, url string, into any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", s.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if err := json.Unmarshal(body, into); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	return nil
}
