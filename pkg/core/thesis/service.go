package thesis

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"thesisengine/pkg/core/marketdata"
	"thesisengine/pkg/core/store"
	"thesisengine/pkg/models"
)

// MarketContextSource supplies optional recent market context for the prompt.
// Satisfied by marketdata.AlphaVantageClient.
type MarketContextSource interface {
	GetMarketContext(ctx context.Context, ticker string) *marketdata.MarketContext
}

// Service is the synchronous thesis trigger exposed to the API layer.
// Unlike the pipeline path, it requires an existing profile: a caller asking
// for a thesis on a company with no profile gets ErrMissingProfile instead of
// a silently degraded narrative.
type Service struct {
	store  *store.Store
	gen    Generator
	market MarketContextSource // may be nil
	log    *zap.Logger
}

func NewService(st *store.Store, gen Generator, market MarketContextSource, log *zap.Logger) *Service {
	return &Service{store: st, gen: gen, market: market, log: log}
}

// CreateThesisVersion generates the next version from the latest snapshot and
// current profile. Fails with ErrMissingSnapshot or ErrMissingProfile.
func (s *Service) CreateThesisVersion(ctx context.Context, companyID uuid.UUID) (*models.ThesisVersion, error) {
	company, err := s.store.GetCompany(ctx, companyID)
	if err != nil {
		return nil, err
	}

	snap, err := s.store.LatestSnapshot(ctx, companyID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("company %s: %w", company.Ticker, ErrMissingSnapshot)
		}
		return nil, err
	}

	profile, err := s.store.CurrentProfile(ctx, companyID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("company %s: %w", company.Ticker, ErrMissingProfile)
		}
		return nil, err
	}

	var marketContext string
	if s.market != nil {
		if mc := s.market.GetMarketContext(ctx, company.Ticker); mc != nil {
			marketContext = mc.FormatForPrompt()
		}
	}

	var created *models.ThesisVersion
	err = s.store.InTx(ctx, func(tx *store.Tx) error {
		created, err = CreateVersion(ctx, tx, s.gen, company, snap, profile, marketContext)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("thesis version created",
		zap.String("ticker", company.Ticker),
		zap.Int("version", created.Version),
		zap.String("conviction", created.ConvictionDirection))
	return created, nil
}
