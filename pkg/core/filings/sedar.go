package filings

import (
	"context"
	"fmt"
)

// SedarSource covers SEDAR+ for TSX-listed companies. The integration is not
// implemented; listings return empty so the sweep treats Canadian filers as
// having nothing new, and the orchestrator falls back to synthesized context.
type SedarSource struct{}

var _ Source = (*SedarSource)(nil)

func NewSedarSource() *SedarSource { return &SedarSource{} }

func (s *SedarSource) Name() string { return "sedar" }

func (s *SedarSource) ListRecent(ctx context.Context, sedarID, filingType string) ([]Filing, error) {
	return nil, nil
}

func (s *SedarSource) Download(ctx context.Context, url string) ([]byte, error) {
	return nil, fmt.Errorf("sedar download not supported")
}
