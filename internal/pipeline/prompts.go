package pipeline

import (
	"encoding/json"
	"strings"
)

// languageName maps a request language code to the name used in prompts.
func languageName(code string) string {
	if strings.EqualFold(code, "tr") {
		return "Turkish"
	}
	return "English"
}

// fewShotExamples holds worked examples over real Turkish food labels. They
// teach the oracle ingredient-section detection, OCR repair, the 100g/ml
// column priority rule, and the numeric self-checks the validator enforces
// again afterwards.
const fewShotExamples = `
=== EXAMPLE 1: COMPLETE TURKISH LABEL (Ingredients + Nutrition) ===

INPUT OCR (Noisy, mixed Turkish/English):
"İçindekiler: Buğday unu(gluten), me Suyu, maya, bitkisel yağ (değişen miktarlarda palm, pamuk, ayçiçek), şeker, emülgatör (sodyum stearok2 laktilat), tuz, gluten, kouyucu (kalsiyum propiyonat)
ENERJİ VE BESİN ÖĞELERİ 100 g için
Enerji(Kcal/kj) 259kcal/1095 kj
Yağ(g) 3.2
Doymuş yağ(g) 1.2
Karbonhidrat (g) 46.6
Şekerler(g) 2.8
Lif (g) 3.1
Protein (g) 9.5
Tuz (g) 0.9"

THINKING PROCESS:
1. INGREDIENTS SECTION: Found "İçindekiler:" - extract everything after it until nutrition table starts
2. Clean OCR errors: "me Suyu" → "su", "kouyucu" → "koruyucu", "stearok2" → "stearoil"
3. NUTRITION SECTION: Found "100 g için" - this is the standard basis, use it
4. Energy: Both kJ (1095) and kcal (259) given - use kcal value (259)

OUTPUT JSON:
{
  "_thinking_process": "Found ingredients after 'İçindekiler:' keyword. Corrected OCR errors. Found nutrition table with '100 g için' basis. Extracted all macro values.",
  "ingredients_plain_text": "buğday unu (gluten), su, maya, bitkisel yağ (palm, pamuk, ayçiçek), şeker, emülgatör (sodyum stearoil laktilat), tuz, gluten, koruyucu (kalsiyum propiyonat)",
  "nutrition_data": {
    "basis": "100g",
    "is_normalized_100g": true,
    "values": {
      "energy_kcal": 259,
      "fat_total_g": 3.2,
      "fat_saturated_g": 1.2,
      "fat_trans_g": null,
      "carbohydrate_g": 46.6,
      "sugar_g": 2.8,
      "fiber_g": 3.1,
      "protein_g": 9.5,
      "salt_g": 0.9,
      "micros": null
    }
  }
}

=== EXAMPLE 2: PRIORITY RULE (100ml vs Portion) ===

INPUT OCR:
"İçindekiler: su, portakal suyu konsantresi, şeker, karbondioksit, C vitamini
Enerji ve Besin Öğeleri
100 ml için: Enerji: 127 kJ /30 kcal, Yağ: 0g, Karbonhidrat: 7,3 g, Şekerler: 7,3 g, Protein: 0g, Tuz: 0,02g
1 porsiyon için (250 ml): Enerji: 318 kJ/75 kcal, Karbonhidrat: 18,3 g, Şekerler: 18,3 g, Tuz: 0,05 g"

THINKING PROCESS:
1. NUTRITION: Found TWO columns - "100 ml için" and "1 porsiyon için (250 ml)"
2. PRIORITY RULE: ALWAYS use "100 ml" or "100 g" column when available. IGNORE portion column.
3. Energy: 127 is kJ, 30 is kcal → use 30

OUTPUT JSON:
{
  "_thinking_process": "Found ingredients list. Found two nutrition columns: 100ml and portion. Applied PRIORITY RULE: using 100ml column only, ignoring portion.",
  "ingredients_plain_text": "su, portakal suyu konsantresi, şeker, karbondioksit, C vitamini",
  "nutrition_data": {
    "basis": "100ml",
    "is_normalized_100g": true,
    "values": {
      "energy_kcal": 30,
      "fat_total_g": 0,
      "fat_saturated_g": null,
      "fat_trans_g": null,
      "carbohydrate_g": 7.3,
      "sugar_g": 7.3,
      "fiber_g": null,
      "protein_g": 0,
      "salt_g": 0.02,
      "micros": null
    }
  }
}

=== EXAMPLE 3: LOGIC CHECK & DECIMAL FIX ===

INPUT OCR:
"İçindekiler: Şeker, Bitkisel Yağlar, FINDIK (%16), Kakao Tozu
100g için: Enerji: 2240/535 kj/kcal, Yağ: 30,5g, Doymuş Yağ: 6,4g, Karbonhidrat: 49,8g, Şeker: 58,1g, Protein: 8,2g, Tuz: 02g"

THINKING PROCESS:
1. LOGIC CHECK FAILED: Sugar (58.1g) > Carbohydrate (49.8g) - IMPOSSIBLE!
2. CORRECTION: OCR likely swapped Carb and Sugar values. Swap them: Carb=58.1, Sugar=49.8
3. DECIMAL FIX: "02g" for salt is likely "0.2g" (missing decimal point)
4. Energy: 2240 is kJ, 535 is kcal → use 535

OUTPUT JSON:
{
  "_thinking_process": "Found ingredients. Extracted nutrition from 100g column. LOGIC ERROR DETECTED: Sugar > Carb is impossible. SWAPPED values. Fixed salt decimal: 02g → 0.2g",
  "ingredients_plain_text": "şeker, bitkisel yağlar, fındık (%16), kakao tozu",
  "nutrition_data": {
    "basis": "100g",
    "is_normalized_100g": true,
    "values": {
      "energy_kcal": 535,
      "fat_total_g": 30.5,
      "fat_saturated_g": 6.4,
      "fat_trans_g": null,
      "carbohydrate_g": 58.1,
      "sugar_g": 49.8,
      "fiber_g": null,
      "protein_g": 8.2,
      "salt_g": 0.2,
      "micros": null
    }
  }
}

=== EXAMPLE 4: MISSING FAT_TOTAL (Common OCR Issue) ===

INPUT OCR:
"İçindekiler: Buğday unu, şeker, yumurta, palm yağı
Enerji ve Besin Öğeleri (100g): Enerji: 1644/392 kJ/kcal, Doymuş yağ: 30g, Karbonhidrat: 48g, Şeker: 27g, Protein: 19g, Tuz: 1.1g"

THINKING PROCESS:
1. MISSING DATA: "Yağ" (total fat) is NOT listed, but "Doymuş yağ" (saturated fat) is 30g
2. Total fat MUST be >= Saturated fat, and we cannot infer it accurately.
3. SOLUTION: Set fat_total_g to null

OUTPUT JSON:
{
  "_thinking_process": "Found ingredients. Nutrition table missing 'Yağ' (total fat) but has saturated fat. Cannot infer total fat accurately, setting to null.",
  "ingredients_plain_text": "buğday unu, şeker, yumurta, palm yağı",
  "nutrition_data": {
    "basis": "100g",
    "is_normalized_100g": true,
    "values": {
      "energy_kcal": 392,
      "fat_total_g": null,
      "fat_saturated_g": 30,
      "fat_trans_g": null,
      "carbohydrate_g": 48,
      "sugar_g": 27,
      "fiber_g": null,
      "protein_g": 19,
      "salt_g": 1.1,
      "micros": null
    }
  }
}
`

// riskExamples holds worked risk-assessment examples for the unified prompt.
const riskExamples = `
=== RISK ANALYSIS EXAMPLES ===

EXAMPLE 1: Diabetic Profile + High Sugar Product
PROFILE:
- Health Conditions: diyabet (diabetes)

PRODUCT:
İçindekiler: su, şeker, portakal suyu konsantresi
Besin Değerleri: Şeker: 18.3g/100ml

RISK LOGIC:
1. "şeker" in ingredients → HIGH RISK (diabetes patient)
2. Sugar content 18.3g/100ml → Very high
3. "portakal suyu konsantresi" → Contains natural sugars → MEDIUM RISK

RISKS OUTPUT:
{
  "şeker": "High",
  "portakal suyu konsantresi": "Medium",
  "su": "Low"
}

EXAMPLE 2: Hypertension + High Salt Product
PROFILE:
- Health Conditions: hipertansiyon (hypertension)

PRODUCT:
İçindekiler: buğday unu, tuz, su
Besin Değerleri: Tuz: 1.8g/100g

RISKS OUTPUT:
{
  "tuz": "High",
  "buğday unu": "Low",
  "su": "Low"
}

EXAMPLE 3: Vegan + Animal Products
PROFILE:
- Diet: vegan, bitkisel

PRODUCT:
İçindekiler: su, süt tozu, yumurta, bitkisel yağ

RISKS OUTPUT:
{
  "süt tozu": "High",
  "yumurta": "High",
  "bitkisel yağ": "Low",
  "su": "Low"
}
`

// buildSystemPromptParse is the system prompt for the decomposed extraction
// call (ingredients + nutrition only, no risk assessment).
func buildSystemPromptParse() string {
	return "You are an expert Turkish Food Label Parser AI specialized in extracting structured data from noisy OCR text.\n\n" +
		"=== YOUR TASK ===\n" +
		"Extract TWO things from Turkish food labels:\n" +
		"1. INGREDIENTS LIST (İçindekiler) - The complete comma-separated list\n" +
		"2. NUTRITION DATA (Besin Değerleri) - Macro nutrients from the standard 100g/100ml column\n\n" +
		"=== LEARN FROM EXAMPLES ===\n" +
		fewShotExamples + "\n\n" +
		"=== CRITICAL RULES ===\n\n" +
		"**INGREDIENTS EXTRACTION:**\n" +
		"1. Look for keywords: 'İçindekiler:', 'Ingredients:', 'İçerik:', 'Tarkibi:', 'Composition:'\n" +
		"2. Extract everything after the keyword until you hit the nutrition table or another section\n" +
		"3. Clean OCR errors and keep Turkish ingredient names (do NOT translate)\n" +
		"4. Preserve percentages and details in parentheses: 'fındık (%16)', 'bitkisel yağ (palm, ayçiçek)'\n" +
		"5. Return as comma-separated plain text string; empty string \"\" if unreadable\n\n" +
		"**NUTRITION EXTRACTION:**\n" +
		"1. PRIORITY RULE: If a '100g' or '100ml' column exists, use ONLY that column. IGNORE 'Porsiyon'/'Portion'/'Serving' columns completely.\n" +
		"2. Energy: ALWAYS extract kcal (not kJ). If only kJ is given, convert (kJ ÷ 4.184 ≈ kcal)\n" +
		"3. Set missing fields to null\n\n" +
		"**LOGIC CHECKS (CRITICAL!):**\n" +
		"1. Carbohydrate >= Sugar. If Sugar > Carb, SWAP them.\n" +
		"2. Total Fat >= Saturated Fat. If Saturated > Total, there's an OCR error.\n" +
		"3. Salt is usually 0-5g. '18g' salt is likely '1.8g' (missing decimal).\n" +
		"4. Energy is usually 0-900 kcal per 100g. If > 1000, it's probably kJ not kcal.\n\n" +
		"**OUTPUT FORMAT:**\n" +
		"Return STRICT JSON with this exact schema:\n" +
		"{\n" +
		"  \"_thinking_process\": \"Explain your extraction logic, any corrections made, column selection\",\n" +
		"  \"ingredients_plain_text\": \"comma, separated, ingredient, list\",\n" +
		"  \"nutrition_data\": {\n" +
		"    \"basis\": \"100g\" or \"100ml\",\n" +
		"    \"is_normalized_100g\": true,\n" +
		"    \"values\": {\n" +
		"      \"energy_kcal\": number, \"fat_total_g\": number or null, \"fat_saturated_g\": number or null,\n" +
		"      \"fat_trans_g\": number or null, \"carbohydrate_g\": number or null, \"sugar_g\": number or null,\n" +
		"      \"fiber_g\": number or null, \"protein_g\": number or null, \"salt_g\": number or null,\n" +
		"      \"micros\": null\n" +
		"    }\n" +
		"  }\n" +
		"}\n\n" +
		"Return ONLY the JSON object. No markdown fencing, no prose."
}

// buildUserPromptParse frames the raw OCR text for the decomposed extraction call.
func buildUserPromptParse(rawText string) string {
	return "=== RAW OCR TEXT FROM FOOD LABEL ===\n" +
		rawText + "\n\n" +
		"=== YOUR TASK ===\n" +
		"1. Extract INGREDIENTS: find the 'İçindekiler:' section, clean OCR errors, return as comma-separated string\n" +
		"2. Extract NUTRITION: find the '100g' or '100ml' column, extract all macro values, apply logic checks\n" +
		"3. Return STRICT JSON following the exact schema from the examples\n\n" +
		"Output JSON now:"
}

// buildSystemPromptUnified is the system prompt for the single-call path:
// extraction plus a personalized draft risk map.
func buildSystemPromptUnified(language string) string {
	langName := languageName(language)
	return "You are an expert Nutrition Analyst AI specialized in personalized risk assessment.\n\n" +
		"=== YOUR TASK ===\n" +
		"1. Extract ingredients and nutrition data\n" +
		"2. Perform PERSONALIZED risk analysis based on the user's health profile\n" +
		"3. Provide a risk level (Low/Medium/High) for EACH ingredient\n" +
		"4. Generate a summary explanation\n\n" +
		"=== LEARN FROM PARSING EXAMPLES ===\n" +
		fewShotExamples + "\n\n" +
		"=== LEARN FROM RISK ANALYSIS EXAMPLES ===\n" +
		riskExamples + "\n\n" +
		"=== CRITICAL RISK ASSESSMENT RULES ===\n\n" +
		"**1. ALLERGENS → Always HIGH**\n" +
		"   - If an ingredient matches the user's allergies → HIGH RISK\n" +
		"   - Check variations: 'süt', 'süt tozu', 'inek sütü' all match a 'süt' allergy\n\n" +
		"**2. HEALTH CONDITIONS → Specific Ingredients HIGH**\n" +
		"   - DIABETES: şeker, glikoz, fruktoz, şurup, bal, invert şeker → HIGH; sugar >10g/100g → HIGH\n" +
		"   - HYPERTENSION: tuz, sodyum → HIGH; salt >1.5g/100g → HIGH\n" +
		"   - HEART DISEASE: trans yağ, hidrojenize yağ, doymuş yağ → HIGH; palm yağı → MEDIUM\n\n" +
		"**3. DIETARY PREFERENCES → Specific Ingredients HIGH**\n" +
		"   - VEGAN: süt, yumurta, bal, jelatin, peynir, krema, tereyağı and any animal-derived ingredient → HIGH\n" +
		"   - KETO: şeker, un, nişasta, pirinç, makarna → HIGH; carbs >10g/100g → HIGH\n" +
		"   - HALAL: domuz yağı, domuz eti, alkol, etanol → HIGH\n\n" +
		"**4. NUTRITION VALUE THRESHOLDS (per 100g/ml)**\n" +
		"   - Sugar: >15g → HIGH, 10-15g → MEDIUM\n" +
		"   - Salt: >1.5g → HIGH, 0.5-1.5g → MEDIUM\n" +
		"   - Saturated Fat: >5g → HIGH, 2-5g → MEDIUM\n" +
		"   - Trans Fat: >0g → HIGH (any amount)\n\n" +
		"**5. DEFAULT**: an ingredient matching no profile concern → LOW; if unsure → MEDIUM\n\n" +
		"=== OUTPUT FORMAT ===\n" +
		"Return STRICT JSON:\n" +
		"{\n" +
		"  \"ingredients\": [\"ing1\", \"ing2\"] (in " + langName + "),\n" +
		"  \"nutrition_data\": {\n" +
		"    \"basis\": \"100g\" or \"100ml\",\n" +
		"    \"is_normalized_100g\": true,\n" +
		"    \"values\": { \"energy_kcal\": number, ... }\n" +
		"  },\n" +
		"  \"risks\": { \"ingredient_name\": \"High/Medium/Low\" } (ALL ingredients, keys in " + langName + ", values in English),\n" +
		"  \"summary_explanation\": \"Explain why this product is risky for THIS user in " + langName + "\",\n" +
		"  \"summary_risk\": \"High/Medium/Low\"\n" +
		"}\n\n" +
		"CRITICAL: Assign a risk level to EVERY ingredient. Return ONLY the JSON object."
}

// buildUserPromptUnified frames the label text and profile for the unified call.
func buildUserPromptUnified(rawText, profileText, language string) string {
	langName := languageName(language)
	return "=== USER HEALTH PROFILE ===\n" +
		profileText + "\n" +
		"=== PRODUCT LABEL TEXT ===\n" +
		rawText + "\n\n" +
		"=== YOUR TASK ===\n" +
		"1. Extract ingredients and nutrition data from the label\n" +
		"2. For EACH ingredient, determine the risk level (High/Medium/Low) for this user\n" +
		"3. Write a summary in " + langName + " explaining why this product is risky for THIS specific user\n\n" +
		"Output STRICT JSON with keys: ingredients, nutrition_data, risks, summary_explanation, summary_risk."
}

// buildSystemPromptRisk is the terse system prompt for the decomposed risk
// call.
func buildSystemPromptRisk(language string) string {
	return "Analyze ingredients based on the profile and the clinical evidence provided. " +
		"Return a JSON object mapping every ingredient to a risk level (Low/Medium/High). " +
		"Ingredient names in " + languageName(language) + ". Risk values always in English. " +
		"Return ONLY the JSON object."
}

// buildUserPromptRisk frames the ingredients, profile, and retrieved evidence
// for the decomposed risk call.
func buildUserPromptRisk(ingredients []string, profileText, evidence string) string {
	names, _ := json.Marshal(ingredients)
	var b strings.Builder
	b.WriteString(profileText)
	if evidence != "" {
		b.WriteString("\n=== CLINICAL EVIDENCE ===\n")
		b.WriteString(evidence)
		b.WriteString("\n")
	}
	b.WriteString("\nIngredients: ")
	b.Write(names)
	return b.String()
}
