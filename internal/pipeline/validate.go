package pipeline

import (
	"go.uber.org/zap"

	"github.com/labelsense/labelsense/internal/model"
)

// Plausibility bounds for per-100g/ml values. Readings outside these are OCR
// artifacts, not real label data.
const (
	maxEnergyKcal = 900.0
	maxSaltG      = 5.0
	kjPerKcal     = 4.184
)

// Validate applies the numeric sanity rules to a provisional extraction and
// returns a new validated record. It is pure and deterministic: the input is
// never mutated, and re-validating an already-validated record is a no-op.
//
// Rules, in order:
//  1. absent/non-numeric values stay null (coercion happened at the oracle
//     boundary);
//  2. sugar > carbohydrate is impossible — the two fields were swapped by
//     OCR, swap them back;
//  3. saturated fat > total fat — total cannot be inferred safely, null it;
//  4. energy outside [0, 900] kcal — reinterpret as kJ when plausible,
//     otherwise null;
//  5. salt outside [0, 5] g — repair a missing decimal point when plausible,
//     otherwise null;
//  6. micros pass through untouched.
func Validate(extraction model.ProvisionalExtraction) model.NutritionFact {
	in := extraction.Nutrition

	out := model.NutritionFact{
		Basis:        in.Basis,
		IsNormalized: in.IsNormalized,
		Values:       make(map[model.NutrientKey]*float64, len(model.MacroKeys)),
	}
	for _, key := range model.MacroKeys {
		if v, ok := in.Values[key]; ok && v != nil {
			val := *v
			out.Values[key] = &val
		} else {
			out.Values[key] = nil
		}
	}
	if len(in.Micros) > 0 {
		out.Micros = make(map[string]float64, len(in.Micros))
		for k, v := range in.Micros {
			out.Micros[k] = v
		}
	}

	// Negative readings are always artifacts.
	for _, key := range model.MacroKeys {
		if v := out.Values[key]; v != nil && *v < 0 {
			anomaly(key, *v, "negative value nulled")
			out.Values[key] = nil
		}
	}

	// Sugar is a subset of carbohydrate; a reversed pair is an OCR swap.
	if sugar, carb := out.Values[model.SugarG], out.Values[model.CarbG]; sugar != nil && carb != nil && *sugar > *carb {
		anomaly(model.SugarG, *sugar, "sugar exceeds carbohydrate, swapping fields")
		out.Values[model.SugarG], out.Values[model.CarbG] = carb, sugar
	}

	// Saturated fat above total fat: the total cannot be trusted or inferred.
	if sat, total := out.Values[model.FatSatG], out.Values[model.FatTotalG]; sat != nil && total != nil && *sat > *total {
		anomaly(model.FatTotalG, *total, "saturated fat exceeds total, nulling total")
		out.Values[model.FatTotalG] = nil
	}

	// Energy outside plausibility is usually a kJ reading labeled as kcal.
	if e := out.Values[model.EnergyKcal]; e != nil && *e > maxEnergyKcal {
		if converted := *e / kjPerKcal; converted <= maxEnergyKcal {
			anomaly(model.EnergyKcal, *e, "implausible kcal reinterpreted as kJ")
			out.Values[model.EnergyKcal] = &converted
		} else {
			anomaly(model.EnergyKcal, *e, "implausible energy nulled")
			out.Values[model.EnergyKcal] = nil
		}
	}

	// Salt above 5g per 100g is usually a missing decimal point.
	if s := out.Values[model.SaltG]; s != nil && *s > maxSaltG {
		if repaired := *s / 10; repaired <= maxSaltG {
			anomaly(model.SaltG, *s, "implausible salt repaired as missing decimal")
			out.Values[model.SaltG] = &repaired
		} else {
			anomaly(model.SaltG, *s, "implausible salt nulled")
			out.Values[model.SaltG] = nil
		}
	}

	return out
}

// Revalidate re-runs the rules over an already-validated record. Used by
// tests to assert idempotence and by callers loading persisted records.
func Revalidate(fact model.NutritionFact) model.NutritionFact {
	return Validate(model.ProvisionalExtraction{
		Nutrition: model.ProvisionalNutrition{
			Basis:        fact.Basis,
			IsNormalized: fact.IsNormalized,
			Values:       fact.Values,
			Micros:       fact.Micros,
		},
	})
}

// anomaly logs one fired validation rule. Anomalies are corrected locally
// and never surfaced to the caller.
func anomaly(key model.NutrientKey, value float64, msg string) {
	zap.L().Info("validate: anomaly corrected",
		zap.String("nutrient", string(key)),
		zap.Float64("value", value),
		zap.String("rule", msg),
	)
}
