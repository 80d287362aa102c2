package narrative

import "text/template"

const profileSystemPrompt = `You are an equity research analyst writing an objective business profile of a public company from its annual filing.
Respond with a single JSON object and nothing else. Use exactly these keys:
"description" (2-3 paragraph overview), "business_model" (how the company makes money), "competitive_position" (market standing relative to peers), "key_products" (array of strings), "geographic_mix" (object mapping region to approximate revenue share as a string), "moat_assessment" (one of: none, narrow, wide, with a short justification), "moat_sources" (array of strings).
Base every statement on the provided filing text. Do not speculate beyond it.`

const thesisSystemPrompt = `You are an equity research analyst constructing a three-scenario investment thesis from reported financials and a business profile.
Do NOT provide buy, sell, or hold recommendations, ratings, position sizing, or any other directional investment advice. Describe scenarios and the conditions under which each plays out; the reader draws their own conclusions.
Respond with a single JSON object and nothing else. Use exactly these keys:
"bull_case" (prose), "bull_target" (numeric price target or null), "base_case" (prose), "base_target" (numeric or null), "bear_case" (prose), "bear_target" (numeric or null), "key_drivers" (array of strings), "key_risks" (array of strings), "catalysts" (array of strings), "thesis_integrity_score" (0-10, one decimal, your self-critique of how well the evidence supports the thesis), "integrity_rationale" (why you gave that score).
When a prior thesis version is provided, also include "drift_summary" (what changed since that version and why) and "conviction_direction" (exactly one of: strengthened, weakened, unchanged). When no prior version is provided, omit both drift keys.
Treat "N/A" figures as unavailable data, not as zero.`

const updateSystemPrompt = `You are an equity research analyst summarizing a quarterly filing against the prior quarter.
Do NOT provide buy, sell, or hold recommendations or any other directional investment advice.
Respond with a single JSON object and nothing else. Use exactly these keys:
"executive_summary" (one paragraph), "key_changes" (array of strings, the most material quarter-over-quarter changes), "guidance_update" (management guidance changes, or an empty string if none were given), "management_commentary" (notable management statements, or an empty string).
Treat "N/A" figures as unavailable data, not as zero.`

var profileUserTmpl = template.Must(template.New("profile").Parse(`Company: {{.Company.Name}} ({{.Company.Ticker}}), {{.Company.Exchange}}
Sector: {{.Company.Sector}} / {{.Company.Industry}}

Filing text:
{{.FilingText}}`))

var thesisUserTmpl = template.Must(template.New("thesis").Parse(`Company: {{.Company.Name}} ({{.Company.Ticker}})
Sector: {{.Company.Sector}} / {{.Company.Industry}}

Latest reported financials ({{.Figures.FiscalPeriod}}):
- Revenue: {{.Figures.Revenue}}
- Net income: {{.Figures.NetIncome}}
- EBITDA: {{.Figures.EBITDA}}
- Diluted EPS: {{.Figures.EPSDiluted}}
- Gross margin: {{.Figures.GrossMargin}}
- Operating margin: {{.Figures.OperatingMargin}}
- Free cash flow: {{.Figures.FreeCashFlow}}
- Total debt: {{.Figures.TotalDebt}}
- Cash and equivalents: {{.Figures.CashAndEquivalents}}
- Debt to equity: {{.Figures.DebtToEquity}}
{{if .HasProfile}}
Business profile:
- Description: {{.Profile.Description}}
- Business model: {{.Profile.BusinessModel}}
- Competitive position: {{.Profile.CompetitivePosition}}
- Moat assessment: {{.Profile.MoatAssessment}}
{{end}}{{if .Prior}}
Prior thesis (version {{.Prior.Version}}):
- Bull case: {{.Prior.BullCase}}
- Base case: {{.Prior.BaseCase}}
- Bear case: {{.Prior.BearCase}}

Assess how the new financials change the prior thesis and report the drift fields.
{{end}}{{if .MarketContext}}
Recent market context:
{{.MarketContext}}
{{end}}`))

var updateUserTmpl = template.Must(template.New("update").Parse(`Quarterly filing text:
{{.FilingText}}
{{if .HasPrior}}
Prior quarter for comparison ({{.Prior.FiscalPeriod}}):
- Revenue: {{.Prior.Revenue}}
- Net income: {{.Prior.NetIncome}}
- Diluted EPS: {{.Prior.EPSDiluted}}
{{end}}`))
