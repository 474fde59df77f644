package model

// ReferenceCategory names one of the static lookup tables built offline from
// taxonomy files.
type ReferenceCategory string

const (
	CategoryAdditives  ReferenceCategory = "additives"
	CategoryAllergens  ReferenceCategory = "allergens"
	CategoryNutrients  ReferenceCategory = "nutrients"
	CategoryVitamins   ReferenceCategory = "vitamins"
	CategoryMinerals   ReferenceCategory = "minerals"
	CategoryFoodGroups ReferenceCategory = "food_groups"
	CategoryNovaGroups ReferenceCategory = "nova_groups"
)

// ReferenceCategories lists every catalog category in load order.
var ReferenceCategories = []ReferenceCategory{
	CategoryAdditives, CategoryAllergens, CategoryNutrients,
	CategoryVitamins, CategoryMinerals, CategoryFoodGroups, CategoryNovaGroups,
}

// ReferenceEntry is one canonical entity of a reference table. Many synonym
// strings map onto one entry; the entry itself is read-only after load.
type ReferenceEntry struct {
	ID              string            `json:"id"`
	NameEN          string            `json:"name_en"`
	NameTR          string            `json:"name_tr,omitempty"`
	FunctionalClass string            `json:"functional_class,omitempty"`
	Synonyms        []string          `json:"synonyms,omitempty"`
	Category        ReferenceCategory `json:"-"`
}
