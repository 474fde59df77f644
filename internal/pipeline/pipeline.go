package pipeline

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/labelsense/labelsense/internal/config"
	"github.com/labelsense/labelsense/internal/model"
	"github.com/labelsense/labelsense/pkg/anthropic"
)

// degradedEvidenceNote is appended to the explanation whenever the evidence
// index could not contribute passages, so the caller can see the assessment
// ran with reduced grounding.
const degradedEvidenceNote = "Note: clinical evidence was unavailable for this analysis; the assessment relies on the health profile and label values only."

// EvidenceSource retrieves formatted evidence passages for a set of
// ingredient terms. degraded is true when the index was unreachable or
// returned nothing usable.
type EvidenceSource interface {
	Retrieve(ctx context.Context, terms []string, k int) (text string, degraded bool)
}

// Pipeline orchestrates one label analysis: extraction, numeric validation,
// and layered risk classification. It holds only read-only collaborators and
// is safe for concurrent use.
type Pipeline struct {
	oracle   anthropic.Client
	evidence EvidenceSource
	aiCfg    config.AnthropicConfig
	cfg      config.AnalysisConfig
}

// New assembles a pipeline. evidence may be nil, in which case every
// classification runs without retrieved passages and is marked degraded.
func New(oracle anthropic.Client, evidence EvidenceSource, aiCfg config.AnthropicConfig, cfg config.AnalysisConfig) *Pipeline {
	return &Pipeline{
		oracle:   oracle,
		evidence: evidence,
		aiCfg:    aiCfg,
		cfg:      cfg,
	}
}

// Analyze runs the fallback state machine over one label text:
//
//	unified call -> decomposed extract -> decomposed classify -> default Low
//
// Each failure transition is one-shot; there are no retries. Only a failure
// of both extraction paths surfaces as an error — every later failure
// degrades to a conservative result. language overrides the configured
// default when non-empty.
func (p *Pipeline) Analyze(ctx context.Context, rawText string, profile model.HealthProfile, language string) (*model.AnalysisResult, error) {
	if language == "" {
		language = p.cfg.Language
	}

	unified, err := p.runUnified(ctx, rawText, profile, language)
	if err == nil {
		validated := Validate(unified.ProvisionalExtraction)
		risks := Classify(unified.Ingredients, validated, profile, unified.DraftRisks)
		p.logStage(StageUnified, unified.Ingredients, risks)
		return &model.AnalysisResult{
			Ingredients:        unified.Ingredients,
			Nutrition:          validated,
			Risks:              risks,
			SummaryExplanation: unified.SummaryExplanation,
			SummaryRisk:        model.OverallRisk(risks),
		}, nil
	}
	zap.L().Warn("pipeline: unified path failed, falling back",
		zap.Error(err),
	)

	extraction, err := p.runParse(ctx, rawText)
	if err != nil {
		// Both extraction paths are gone; nothing conservative remains.
		return nil, err
	}
	validated := Validate(*extraction)

	evidence, degraded := p.retrieveEvidence(ctx, extraction.Ingredients)

	stage := StageDecomposedClassify
	draft, err := p.runClassify(ctx, extraction.Ingredients, profile, evidence, language)
	if err != nil {
		zap.L().Warn("pipeline: classification failed, defaulting to low",
			zap.Error(err),
		)
		draft = nil
		stage = StageDefaultLow
	}

	risks := Classify(extraction.Ingredients, validated, profile, draft)
	p.logStage(stage, extraction.Ingredients, risks)

	explanation := ""
	if degraded && stage != StageDefaultLow {
		explanation = degradedEvidenceNote
	}
	return &model.AnalysisResult{
		Ingredients:        extraction.Ingredients,
		Nutrition:          validated,
		Risks:              risks,
		SummaryExplanation: explanation,
		SummaryRisk:        model.OverallRisk(risks),
	}, nil
}

func (p *Pipeline) runUnified(ctx context.Context, rawText string, profile model.HealthProfile, language string) (*UnifiedExtraction, error) {
	ctx, cancel := p.oracleContext(ctx)
	defer cancel()
	return ExtractUnified(ctx, rawText, profile, language, p.oracle, p.aiCfg)
}

func (p *Pipeline) runParse(ctx context.Context, rawText string) (*model.ProvisionalExtraction, error) {
	ctx, cancel := p.oracleContext(ctx)
	defer cancel()
	return ExtractParse(ctx, rawText, p.oracle, p.aiCfg)
}

func (p *Pipeline) runClassify(ctx context.Context, ingredients []string, profile model.HealthProfile, evidence, language string) (map[string]model.RiskLabel, error) {
	ctx, cancel := p.oracleContext(ctx)
	defer cancel()
	return ClassifyOracle(ctx, ingredients, profile, evidence, language, p.oracle, p.aiCfg)
}

// retrieveEvidence queries the vector index under its own timeout. A nil
// source or an unreachable index degrades to no evidence rather than failing
// the analysis.
func (p *Pipeline) retrieveEvidence(ctx context.Context, terms []string) (string, bool) {
	if p.evidence == nil {
		return "", true
	}
	if p.cfg.RetrievalTimeoutSecs > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(p.cfg.RetrievalTimeoutSecs)*time.Second)
		defer cancel()
	}
	return p.evidence.Retrieve(ctx, terms, p.cfg.EvidenceTopK)
}

func (p *Pipeline) oracleContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if p.cfg.OracleTimeoutSecs <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, time.Duration(p.cfg.OracleTimeoutSecs)*time.Second)
}

func (p *Pipeline) logStage(stage Stage, ingredients []string, risks map[string]model.RiskLabel) {
	zap.L().Info("pipeline: analysis complete",
		zap.String("stage", string(stage)),
		zap.Int("ingredients", len(ingredients)),
		zap.String("summary_risk", string(model.OverallRisk(risks))),
	)
}
