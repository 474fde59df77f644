package pipeline

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/labelsense/labelsense/internal/config"
	"github.com/labelsense/labelsense/internal/model"
	"github.com/labelsense/labelsense/pkg/anthropic"
)

// oracleTemperature pins extraction calls to deterministic decoding.
var oracleTemperature = 0.0

// UnifiedExtraction is the output of the single-call path: a provisional
// record plus the oracle's draft risk assessment, which the classifier
// treats as a prior, never as ground truth.
type UnifiedExtraction struct {
	model.ProvisionalExtraction
	DraftRisks         map[string]model.RiskLabel
	SummaryExplanation string
	SummaryRisk        model.RiskLabel
}

// ExtractUnified performs the single-call extraction+draft-classification.
// Any connectivity or schema failure is reported as ErrExtraction so the
// orchestrator can fall back to the decomposed path.
func ExtractUnified(ctx context.Context, rawText string, profile model.HealthProfile, language string, oracle anthropic.Client, aiCfg config.AnthropicConfig) (*UnifiedExtraction, error) {
	raw, err := callOracleJSON(ctx, oracle, aiCfg, ErrExtraction, "unified",
		buildSystemPromptUnified(language),
		buildUserPromptUnified(rawText, profile.PromptText(), language))
	if err != nil {
		return nil, err
	}

	var resp struct {
		Ingredients        json.RawMessage `json:"ingredients"`
		NutritionData      json.RawMessage `json:"nutrition_data"`
		Risks              json.RawMessage `json:"risks"`
		SummaryExplanation string          `json:"summary_explanation"`
		SummaryRisk        string          `json:"summary_risk"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, eris.Wrap(ErrExtraction, "unified response shape: "+err.Error())
	}

	ingredients := ingredientList(resp.Ingredients)
	if len(ingredients) == 0 {
		return nil, eris.Wrap(ErrExtraction, "unified response carried no ingredients")
	}

	out := &UnifiedExtraction{
		ProvisionalExtraction: model.ProvisionalExtraction{
			Ingredients: ingredients,
			Nutrition:   normalizeNutrition(resp.NutritionData),
		},
		DraftRisks:         riskMap(resp.Risks),
		SummaryExplanation: strings.TrimSpace(resp.SummaryExplanation),
	}
	if l, ok := model.ParseRiskLabel(resp.SummaryRisk); ok {
		out.SummaryRisk = l
	}
	return out, nil
}

// ExtractParse performs the decomposed extraction-only call.
func ExtractParse(ctx context.Context, rawText string, oracle anthropic.Client, aiCfg config.AnthropicConfig) (*model.ProvisionalExtraction, error) {
	raw, err := callOracleJSON(ctx, oracle, aiCfg, ErrExtraction, "parse",
		buildSystemPromptParse(),
		buildUserPromptParse(rawText))
	if err != nil {
		return nil, err
	}

	var resp struct {
		IngredientsPlainText json.RawMessage `json:"ingredients_plain_text"`
		NutritionData        json.RawMessage `json:"nutrition_data"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, eris.Wrap(ErrExtraction, "parse response shape: "+err.Error())
	}

	ingredients := ingredientList(resp.IngredientsPlainText)
	if len(ingredients) == 0 {
		return nil, eris.Wrap(ErrExtraction, "parse response carried no ingredients")
	}

	return &model.ProvisionalExtraction{
		Ingredients: ingredients,
		Nutrition:   normalizeNutrition(resp.NutritionData),
	}, nil
}

// callOracleJSON runs one oracle call and returns the cleaned JSON payload.
// The large system prompt is sent with a cache breakpoint so repeated
// analyses read it from the prompt cache.
// Failures wrap the caller's stage sentinel so the orchestrator can route
// the fallback transition.
func callOracleJSON(ctx context.Context, oracle anthropic.Client, aiCfg config.AnthropicConfig, sentinel error, phase, systemPrompt, userPrompt string) (json.RawMessage, error) {
	resp, err := oracle.CreateMessage(ctx, anthropic.MessageRequest{
		Model:       aiCfg.Model,
		MaxTokens:   aiCfg.MaxTokens,
		System:      anthropic.BuildCachedSystemBlocks(systemPrompt),
		Messages:    []anthropic.Message{{Role: "user", Content: userPrompt}},
		Temperature: &oracleTemperature,
	})
	if err != nil {
		zap.L().Warn("pipeline: oracle call failed",
			zap.String("phase", phase),
			zap.Error(err),
		)
		return nil, eris.Wrap(sentinel, err.Error())
	}
	resp.Usage.LogUsage(aiCfg.Model, phase)

	cleaned := cleanJSON(resp.Text())
	if !json.Valid([]byte(cleaned)) {
		zap.L().Warn("pipeline: oracle returned non-JSON content",
			zap.String("phase", phase),
			zap.String("snippet", snippet(cleaned, 200)),
		)
		return nil, eris.Wrap(sentinel, "oracle did not return valid JSON")
	}
	return json.RawMessage(cleaned), nil
}

// cleanJSON extracts a JSON object from text that may contain markdown code
// fences or surrounding prose.
func cleanJSON(text string) string {
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "```json") {
		text = strings.TrimPrefix(text, "```json")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	} else if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		text = text[start : end+1]
	}

	return strings.TrimSpace(text)
}

// ingredientList accepts the two shapes the oracle emits for ingredients —
// a JSON array of names or one comma-joined string — and normalizes both
// into a cleaned, ordered slice.
func ingredientList(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}

	var arr []any
	if err := json.Unmarshal(raw, &arr); err == nil {
		var out []string
		for _, item := range arr {
			switch v := item.(type) {
			case string:
				if s := strings.TrimSpace(v); s != "" {
					out = append(out, s)
				}
			case float64:
				out = append(out, strconv.FormatFloat(v, 'f', -1, 64))
			}
		}
		return out
	}

	var joined string
	if err := json.Unmarshal(raw, &joined); err == nil {
		var out []string
		for _, token := range strings.Split(joined, ",") {
			if s := strings.TrimSpace(token); s != "" {
				out = append(out, s)
			}
		}
		return out
	}

	return nil
}

// riskMap parses the oracle's draft risk object, dropping entries outside
// the canonical vocabulary.
func riskMap(raw json.RawMessage) map[string]model.RiskLabel {
	if len(raw) == 0 {
		return nil
	}
	var m map[string]string
	if err := json.Unmarshal(raw, &m); err != nil {
		// Some responses double-encode the risk object as a string.
		var nested string
		if err := json.Unmarshal(raw, &nested); err != nil {
			return nil
		}
		if err := json.Unmarshal([]byte(nested), &m); err != nil {
			return nil
		}
	}
	out := make(map[string]model.RiskLabel, len(m))
	for name, label := range m {
		if l, ok := model.ParseRiskLabel(label); ok {
			out[strings.TrimSpace(name)] = l
		}
	}
	return out
}

// normalizeNutrition converts the duck-typed nutrition_data shapes into the
// canonical provisional block: the payload may arrive as an object or a
// double-encoded JSON string, and individual values as numbers or numeric
// strings. Anything unrecognized degrades to an empty block.
func normalizeNutrition(raw json.RawMessage) model.ProvisionalNutrition {
	out := model.ProvisionalNutrition{
		Basis:  model.BasisUnknown,
		Values: make(map[model.NutrientKey]*float64, len(model.MacroKeys)),
	}
	if len(raw) == 0 {
		return out
	}

	var body struct {
		Basis        string         `json:"basis"`
		IsNormalized bool           `json:"is_normalized_100g"`
		Values       map[string]any `json:"values"`
		Micros       map[string]any `json:"micros"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		var nested string
		if err := json.Unmarshal(raw, &nested); err != nil {
			return out
		}
		if err := json.Unmarshal([]byte(nested), &body); err != nil {
			return out
		}
	}

	out.Basis = model.ParseBasis(body.Basis)
	out.IsNormalized = body.IsNormalized

	for _, key := range model.MacroKeys {
		out.Values[key] = coerceNumber(body.Values[string(key)])
	}

	// micros arrives either as a sibling of values or nested inside it.
	micros := body.Micros
	if nested, ok := body.Values["micros"].(map[string]any); ok && len(micros) == 0 {
		micros = nested
	}
	if len(micros) > 0 {
		out.Micros = make(map[string]float64, len(micros))
		for name, v := range micros {
			if f := coerceNumber(v); f != nil {
				out.Micros[name] = *f
			}
		}
		if len(out.Micros) == 0 {
			out.Micros = nil
		}
	}

	return out
}

// coerceNumber accepts numbers and numeric-looking strings (including
// Turkish decimal commas); anything else is null.
func coerceNumber(v any) *float64 {
	switch n := v.(type) {
	case float64:
		return &n
	case string:
		s := strings.ReplaceAll(strings.TrimSpace(n), ",", ".")
		if s == "" {
			return nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil
		}
		return &f
	}
	return nil
}

func snippet(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
