package narrative

import (
	"bytes"
	"context"
	"fmt"
	"text/template"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"thesisengine/pkg/core/llm"
	"thesisengine/pkg/core/numeric"
)

// Generator produces the three narrative artifact types through one shared
// call pattern.
type Generator struct {
	provider llm.Provider
	validate *validator.Validate
	log      *zap.Logger
}

func NewGenerator(provider llm.Provider, log *zap.Logger) *Generator {
	return &Generator{
		provider: provider,
		validate: validator.New(),
		log:      log,
	}
}

// Model reports the underlying model identifier for provenance columns.
func (g *Generator) Model() string {
	return g.provider.Model()
}

func (g *Generator) generate(ctx context.Context, kind, system string, tmpl *template.Template, data any, schema any) error {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return fmt.Errorf("render %s prompt: %w", kind, err)
	}

	raw, err := g.provider.Generate(ctx, system, buf.String())
	if err != nil {
		return fmt.Errorf("generate %s: %w", kind, err)
	}

	if err := parseResponse(raw, schema); err != nil {
		g.log.Error("unparseable model response",
			zap.String("artifact", kind),
			zap.String("model", g.provider.Model()),
			zap.Int("response_len", len(raw)))
		return fmt.Errorf("parse %s response: %w", kind, err)
	}
	if err := g.validate.Struct(schema); err != nil {
		return fmt.Errorf("invalid %s response: %w", kind, err)
	}
	return nil
}

// GenerateBusinessProfile writes a business profile from annual filing text.
func (g *Generator) GenerateBusinessProfile(ctx context.Context, company CompanyInfo, filingText string) (*ProfileResult, error) {
	data := struct {
		Company    CompanyInfo
		FilingText string
	}{company, filingText}

	var draft profileDraft
	if err := g.generate(ctx, "profile", profileSystemPrompt, profileUserTmpl, data, &draft); err != nil {
		return nil, err
	}

	return &ProfileResult{
		Description:         draft.Description,
		BusinessModel:       draft.BusinessModel,
		CompetitivePosition: draft.CompetitivePosition,
		KeyProducts:         toJSONText(draft.KeyProducts, "[]"),
		GeographicMix:       toJSONText(draft.GeographicMix, "{}"),
		MoatAssessment:      draft.MoatAssessment,
		MoatSources:         toJSONText(draft.MoatSources, "[]"),
	}, nil
}

// GenerateThesis writes a three-scenario thesis. prior may be nil for the
// first version; when present its case summaries are truncated before
// prompting so drift grounding stays inside the context budget.
func (g *Generator) GenerateThesis(ctx context.Context, company CompanyInfo, figures SnapshotFigures, profile ProfileContext, prior *PriorThesis, marketContext string) (*ThesisResult, error) {
	if prior != nil {
		clipped := *prior
		clipped.BullCase = clip(clipped.BullCase, PriorCaseLimit)
		clipped.BaseCase = clip(clipped.BaseCase, PriorCaseLimit)
		clipped.BearCase = clip(clipped.BearCase, PriorCaseLimit)
		prior = &clipped
	}

	data := struct {
		Company       CompanyInfo
		Figures       SnapshotFigures
		HasProfile    bool
		Profile       ProfileContext
		Prior         *PriorThesis
		MarketContext string
	}{company, figures, profile != (ProfileContext{}), profile, prior, marketContext}

	var draft thesisDraft
	if err := g.generate(ctx, "thesis", thesisSystemPrompt, thesisUserTmpl, data, &draft); err != nil {
		return nil, err
	}

	result := &ThesisResult{
		BullCase:           draft.BullCase,
		BullTarget:         numeric.Money(numeric.FromAny(draft.BullTarget)),
		BaseCase:           draft.BaseCase,
		BaseTarget:         numeric.Money(numeric.FromAny(draft.BaseTarget)),
		BearCase:           draft.BearCase,
		BearTarget:         numeric.Money(numeric.FromAny(draft.BearTarget)),
		KeyDrivers:         toJSONText(draft.KeyDrivers, "[]"),
		KeyRisks:           toJSONText(draft.KeyRisks, "[]"),
		Catalysts:          toJSONText(draft.Catalysts, "[]"),
		IntegrityScore:     numeric.FromAny(draft.IntegrityScore),
		IntegrityRationale: draft.IntegrityRationale,
	}
	if prior != nil {
		result.DriftSummary = draft.DriftSummary
		result.ConvictionDirection = draft.ConvictionDirection
	}
	return result, nil
}

// GenerateQuarterlySummary writes the narrative diff for a quarterly filing.
// prior may be nil when no earlier snapshot exists.
func (g *Generator) GenerateQuarterlySummary(ctx context.Context, filingText string, prior *SnapshotFigures) (*UpdateResult, error) {
	data := struct {
		FilingText string
		HasPrior   bool
		Prior      *SnapshotFigures
	}{filingText, prior != nil, prior}

	var draft updateDraft
	if err := g.generate(ctx, "update", updateSystemPrompt, updateUserTmpl, data, &draft); err != nil {
		return nil, err
	}

	return &UpdateResult{
		ExecutiveSummary:     draft.ExecutiveSummary,
		KeyChanges:           toJSONText(draft.KeyChanges, "[]"),
		GuidanceUpdate:       draft.GuidanceUpdate,
		ManagementCommentary: draft.ManagementCommentary,
	}, nil
}

// clip cuts s at the limit, backing up to the nearest rune boundary so
// clipped text stays valid UTF-8.
func clip(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	for limit > 0 && !utf8.RuneStart(s[limit]) {
		limit--
	}
	return s[:limit]
}
