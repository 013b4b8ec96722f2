package scoring

import (
	"context"
	"fmt"
	"strings"

	"adreview-backend/internal/llm"
	"adreview-backend/internal/rag"
	"adreview-backend/internal/shared/telemetry"
)

// Options toggle the optional AI stages for a single analysis.
type Options struct {
	UseAI  bool `json:"useAi"`
	UseRAG bool `json:"useRag"`
}

// Outcome is the complete result of analyzing one text.
// RiskLevel and Judgment are derived from RiskScore by the band table and are
// never assigned anywhere else.
type Outcome struct {
	RiskScore       int            `json:"riskScore"`
	RiskLevel       string         `json:"riskLevel"`
	Judgment        string         `json:"judgment"`
	IsAdvertisement bool           `json:"isAdvertisement"`
	KeywordScore    int            `json:"keywordScore"`
	KeywordMatches  []KeywordMatch `json:"keywordMatches"`
	AIContribution  int            `json:"aiContribution"`
	Narrative       string         `json:"narrative,omitempty"`
	Violations      []Violation    `json:"violations"`
	Summary         string         `json:"summary"`
	UsedAI          bool           `json:"usedAi"`
	UsedRAG         bool           `json:"usedRag"`
	VerdictValid    bool           `json:"verdictValid"`
}

// Engine runs the three analysis stages: keyword scan, narrative review and
// verdict extraction. The keyword scan always runs; the AI stages degrade to
// a keyword-only result on any failure.
type Engine struct {
	LLM       llm.Client
	Retriever rag.Retriever
	RetrieveK int
}

// Analyze scores a single text. The returned error is non-nil only when the
// context is done; every stage failure degrades instead of failing.
func (e *Engine) Analyze(ctx context.Context, text string, opts Options) (Outcome, error) {
	if err := ctx.Err(); err != nil {
		return Outcome{}, err
	}

	kw := ScoreKeywords(text)
	outcome := Outcome{
		KeywordScore:   kw.Score,
		KeywordMatches: kw.Matches,
		Violations:     []Violation{},
	}
	if outcome.KeywordMatches == nil {
		outcome.KeywordMatches = []KeywordMatch{}
	}

	useAI := opts.UseAI && e.LLM != nil
	if !useAI {
		return finishKeywordOnly(outcome, kw), nil
	}

	passages := e.retrievePassages(ctx, text, opts)
	outcome.UsedRAG = len(passages) > 0

	narrative, err := e.LLM.AnalyzeNarrative(ctx, llm.NarrativeInput{Text: text, Passages: passages})
	if err != nil {
		if ctx.Err() != nil {
			return Outcome{}, ctx.Err()
		}
		telemetry.Warn("scoring.narrative_degraded", map[string]any{"error": err.Error()})
		return finishKeywordOnly(outcome, kw), nil
	}
	outcome.UsedAI = true
	outcome.Narrative = narrative

	raw, err := e.LLM.ExtractVerdict(ctx, llm.VerdictInput{
		Text:      text,
		Narrative: narrative,
		Schema:    BuildVerdictJSONSchema(),
	})
	if err != nil {
		if ctx.Err() != nil {
			return Outcome{}, ctx.Err()
		}
		telemetry.Warn("scoring.verdict_degraded", map[string]any{"error": err.Error()})
		return finishKeywordOnly(outcome, kw), nil
	}

	verdict, ok := ParseVerdict(raw)
	if !ok {
		// One repair attempt: hand the malformed output back to the provider
		// before giving up on the verdict stage.
		raw, err = e.LLM.ExtractVerdict(llm.WithFixJSON(ctx, string(raw)), llm.VerdictInput{
			Text:      text,
			Narrative: narrative,
			Schema:    BuildVerdictJSONSchema(),
		})
		if err != nil {
			if ctx.Err() != nil {
				return Outcome{}, ctx.Err()
			}
			telemetry.Warn("scoring.verdict_degraded", map[string]any{"error": err.Error()})
			return finishKeywordOnly(outcome, kw), nil
		}
		verdict, ok = ParseVerdict(raw)
		if !ok {
			telemetry.Warn("scoring.verdict_degraded", map[string]any{"error": "schema mismatch"})
			return finishKeywordOnly(outcome, kw), nil
		}
	}

	outcome.VerdictValid = true
	outcome.AIContribution = verdict.RiskContribution
	outcome.Violations = verdict.Violations
	outcome.Summary = verdict.Summary

	// The sentinel survives only when the keyword scan saw no ad signal and
	// the model agrees the text is not an advertisement.
	if kw.Score == ScoreNotAdvertisement && !verdict.IsAdvertisement {
		outcome.RiskScore = ScoreNotAdvertisement
		outcome.IsAdvertisement = false
		outcome.RiskLevel, outcome.Judgment = Derive(outcome.RiskScore)
		if outcome.Summary == "" {
			outcome.Summary = "Not an advertisement; no review needed."
		}
		return outcome, nil
	}

	base := kw.Score
	if base < 0 {
		base = 0
	}
	outcome.RiskScore = ClampScore(base + verdict.RiskContribution)
	outcome.IsAdvertisement = true
	outcome.RiskLevel, outcome.Judgment = Derive(outcome.RiskScore)
	if outcome.Summary == "" {
		outcome.Summary = keywordSummary(kw)
	}
	return outcome, nil
}

// finishKeywordOnly completes an outcome from the stage-one result alone.
func finishKeywordOnly(outcome Outcome, kw KeywordResult) Outcome {
	outcome.RiskScore = kw.Score
	outcome.IsAdvertisement = kw.Score != ScoreNotAdvertisement
	outcome.RiskLevel, outcome.Judgment = Derive(outcome.RiskScore)
	if outcome.Summary == "" {
		if kw.Score == ScoreNotAdvertisement {
			outcome.Summary = "Not an advertisement; no review needed."
		} else {
			outcome.Summary = keywordSummary(kw)
		}
	}
	return outcome
}

func (e *Engine) retrievePassages(ctx context.Context, text string, opts Options) []string {
	if !opts.UseRAG || e.Retriever == nil {
		return nil
	}
	k := e.RetrieveK
	if k <= 0 {
		k = 3
	}
	passages, err := e.Retriever.Retrieve(ctx, text, k)
	if err != nil {
		// Retrieval is best-effort context; analysis continues without it.
		telemetry.Warn("scoring.retrieve_failed", map[string]any{"error": err.Error()})
		return nil
	}
	return rag.ContextTexts(passages, 4000)
}

func keywordSummary(kw KeywordResult) string {
	if len(kw.Matches) == 0 {
		return "No regulated terms detected."
	}
	terms := make([]string, 0, len(kw.Matches))
	for i, m := range kw.Matches {
		if i == 3 {
			break
		}
		terms = append(terms, fmt.Sprintf("%q", m.Term))
	}
	suffix := ""
	if len(kw.Matches) > 3 {
		suffix = fmt.Sprintf(" and %d more", len(kw.Matches)-3)
	}
	return fmt.Sprintf("Detected regulated terms %s%s.", strings.Join(terms, ", "), suffix)
}
