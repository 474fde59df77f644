package pipeline

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/labelsense/labelsense/internal/config"
	"github.com/labelsense/labelsense/internal/model"
	"github.com/labelsense/labelsense/internal/textnorm"
	"github.com/labelsense/labelsense/pkg/anthropic"
)

// Nutrition thresholds per 100g/ml that escalate condition-specific risk.
const (
	sugarHighThreshold = 15.0
	saltHighThreshold  = 1.5
	carbHighThreshold  = 10.0
)

// Profile keyword groups. Condition and preference strings arrive free-form
// in Turkish or English; matching is over normalized text.
var (
	diabetesTerms     = []string{"diyabet", "diabetes", "seker hastaligi"}
	hypertensionTerms = []string{"hipertansiyon", "hypertension", "yuksek tansiyon"}
	heartTerms        = []string{"kalp", "kardiyovaskuler", "heart", "cardiovascular"}
	veganTerms        = []string{"vegan", "bitkisel", "vejetaryen", "vegetarian"}
	ketoTerms         = []string{"keto", "dusuk karbonhidrat", "low carb"}
	halalTerms        = []string{"helal", "halal"}
)

// Ingredient keyword groups, normalized form. Substring matching mirrors the
// allergy override so "kristal şeker" hits "seker".
var (
	sugarIngredients  = []string{"seker", "glikoz", "fruktoz", "surup", "bal", "invert", "sugar", "glucose", "fructose", "syrup"}
	saltIngredients   = []string{"tuz", "sodyum", "salt", "sodium"}
	transIngredients  = []string{"trans yag", "hidrojenize", "hydrogenated"}
	fatIngredients    = []string{"yag", "fat", "oil", "margarin"}
	animalIngredients = []string{"sut", "yumurta", "bal", "jelatin", "peynir", "krema", "tereyag", "et", "milk", "egg", "honey", "gelatin", "cheese", "cream", "butter", "meat", "whey"}
	carbIngredients   = []string{"seker", "un", "nisasta", "pirinc", "makarna", "sugar", "flour", "starch", "rice", "pasta"}
	haramIngredients  = []string{"domuz", "alkol", "etanol", "pork", "lard", "alcohol", "ethanol"}
)

// IsAllergenMatch reports whether an ingredient name matches any profile
// allergy term after normalization: either the token sets intersect or one
// normalized string contains the other. This is the deterministic override
// layer; a match always forces High.
func IsAllergenMatch(ingredient string, allergies []string) bool {
	ing := textnorm.Normalize(ingredient)
	if ing == "" {
		return false
	}
	for _, term := range allergies {
		norm := textnorm.Normalize(term)
		if norm == "" {
			continue
		}
		if textnorm.TokensIntersect(ingredient, term) {
			return true
		}
		if strings.Contains(ing, norm) || strings.Contains(norm, ing) {
			return true
		}
	}
	return false
}

// Classify merges the risk layers for every ingredient, in precedence order:
// allergy override, then the higher of the oracle draft and the local
// threshold heuristics, then Low. The draft map may be nil (decomposed path
// after a classification failure) or partial; missing entries default to Low.
func Classify(ingredients []string, nutrition model.NutritionFact, profile model.HealthProfile, draft map[string]model.RiskLabel) map[string]model.RiskLabel {
	risks := make(map[string]model.RiskLabel, len(ingredients))
	for _, ing := range ingredients {
		label := model.RiskLow
		if l, ok := draft[ing]; ok && l.Valid() {
			label = l
		}
		label = model.MaxRisk(label, heuristicRisk(ing, nutrition, profile))
		if IsAllergenMatch(ing, profile.Allergies) {
			label = model.RiskHigh
		}
		risks[ing] = label
	}
	return risks
}

// heuristicRisk applies the deterministic threshold rules from the validated
// nutrition figures and the profile's conditions and preferences. It returns
// the highest tier any rule fires; Low when none apply.
func heuristicRisk(ingredient string, nutrition model.NutritionFact, profile model.HealthProfile) model.RiskLabel {
	ing := textnorm.Normalize(ingredient)
	if ing == "" {
		return model.RiskLow
	}
	risk := model.RiskLow

	// Any trans fat on the label is flagged regardless of the profile. A
	// non-zero reading escalates the fat-like ingredients, not the whole list.
	if matchAny(ing, transIngredients) {
		risk = model.RiskHigh
	} else if trans, ok := nutrition.Value(model.FatTransG); ok && trans > 0 && matchAny(ing, fatIngredients) {
		risk = model.RiskHigh
	}

	if profileHasAny(profile.Conditions, diabetesTerms) && matchAny(ing, sugarIngredients) {
		if sugar, ok := nutrition.Value(model.SugarG); ok && sugar > sugarHighThreshold {
			risk = model.RiskHigh
		} else {
			risk = model.MaxRisk(risk, model.RiskMedium)
		}
	}
	if profileHasAny(profile.Conditions, hypertensionTerms) && matchAny(ing, saltIngredients) {
		if salt, ok := nutrition.Value(model.SaltG); ok && salt > saltHighThreshold {
			risk = model.RiskHigh
		} else {
			risk = model.MaxRisk(risk, model.RiskMedium)
		}
	}
	if profileHasAny(profile.Conditions, heartTerms) {
		if sat, ok := nutrition.Value(model.FatSatG); ok && sat > 5 && matchAny(ing, fatIngredients) {
			risk = model.MaxRisk(risk, model.RiskMedium)
		}
	}

	if profileHasAny(profile.DietaryPreferences, veganTerms) && matchAny(ing, animalIngredients) {
		risk = model.RiskHigh
	}
	if profileHasAny(profile.DietaryPreferences, ketoTerms) && matchAny(ing, carbIngredients) {
		if carb, ok := nutrition.Value(model.CarbG); !ok || carb > carbHighThreshold {
			risk = model.RiskHigh
		} else {
			risk = model.MaxRisk(risk, model.RiskMedium)
		}
	}
	if profileHasAny(profile.DietaryPreferences, halalTerms) && matchAny(ing, haramIngredients) {
		risk = model.RiskHigh
	}

	return risk
}

func matchAny(normalized string, terms []string) bool {
	for _, t := range terms {
		if strings.Contains(normalized, t) {
			return true
		}
	}
	return false
}

func profileHasAny(entries []string, terms []string) bool {
	for _, e := range entries {
		norm := textnorm.Normalize(e)
		for _, t := range terms {
			if strings.Contains(norm, t) {
				return true
			}
		}
	}
	return false
}

// ClassifyOracle runs the decomposed contextual risk call: the whole oracle
// response is one JSON object mapping ingredient names to labels. Evidence
// passages, when available, are framed into the prompt to ground the call.
// Failures wrap ErrClassification so the orchestrator can default to Low.
func ClassifyOracle(ctx context.Context, ingredients []string, profile model.HealthProfile, evidence, language string, oracle anthropic.Client, aiCfg config.AnthropicConfig) (map[string]model.RiskLabel, error) {
	raw, err := callOracleJSON(ctx, oracle, aiCfg, ErrClassification, "risk",
		buildSystemPromptRisk(language),
		buildUserPromptRisk(ingredients, profile.PromptText(), evidence))
	if err != nil {
		return nil, err
	}

	draft := riskMap(raw)
	if len(draft) == 0 {
		return nil, eris.Wrap(ErrClassification, "risk response carried no labels")
	}
	return draft, nil
}
