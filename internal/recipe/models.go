package recipe

import (
	"encoding/json"
	"fmt"
	"math"
)

type Ingredient struct {
	Name     string  `json:"name"`
	Quantity float64 `json:"quantity"`
	// QuantityText keeps a quantity written as text, e.g. "1 knsp". Quantity
	// then holds its leading amount, or zero.
	QuantityText      string `json:"-"`
	Unit              string `json:"unit"`
	DanishAlternative string `json:"danish_alternative,omitempty"`
}

func (i *Ingredient) UnmarshalJSON(data []byte) error {
	type plain Ingredient
	aux := struct {
		*plain
		Quantity number `json:"quantity"`
	}{plain: (*plain)(i)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	i.Quantity, i.QuantityText = aux.Quantity.value, aux.Quantity.text
	return nil
}

// Nutrition keys follow the prompt, units in the key name.
type Nutrition struct {
	EnergyKcal     float64 `json:"Energi_kcal"`
	ProteinG       float64 `json:"Protein_g"`
	FatG           float64 `json:"Fedt_g"`
	SaturatedFatG  float64 `json:"Heraf_Mættet_Fedt_g"`
	CarbohydratesG float64 `json:"Kulhydrater_g"`
	SugarsG        float64 `json:"Heraf_Sukkerarter_g"`
	SaltG          float64 `json:"Salt_g"`
}

func (n *Nutrition) UnmarshalJSON(data []byte) error {
	var aux struct {
		EnergyKcal     number `json:"Energi_kcal"`
		ProteinG       number `json:"Protein_g"`
		FatG           number `json:"Fedt_g"`
		SaturatedFatG  number `json:"Heraf_Mættet_Fedt_g"`
		CarbohydratesG number `json:"Kulhydrater_g"`
		SugarsG        number `json:"Heraf_Sukkerarter_g"`
		SaltG          number `json:"Salt_g"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*n = Nutrition{
		EnergyKcal:     aux.EnergyKcal.value,
		ProteinG:       aux.ProteinG.value,
		FatG:           aux.FatG.value,
		SaturatedFatG:  aux.SaturatedFatG.value,
		CarbohydratesG: aux.CarbohydratesG.value,
		SugarsG:        aux.SugarsG.value,
		SaltG:          aux.SaltG.value,
	}
	return nil
}

type NutritionalSummary struct {
	TotalRecipe Nutrition `json:"total_recipe"`
	PerPortion  Nutrition `json:"per_portion"`
}

type Recipe struct {
	Title              string             `json:"title"`
	MealType           string             `json:"meal_type"`
	Portions           int                `json:"portions"`
	Ingredients        []Ingredient       `json:"ingredients"`
	Equipment          []string           `json:"equipment"`
	Instructions       []string           `json:"instructions"`
	ServingSuggestions []string           `json:"serving_suggestions"`
	NutritionalSummary NutritionalSummary `json:"nutritional_summary"`
}

func (r *Recipe) UnmarshalJSON(data []byte) error {
	type plain Recipe
	aux := struct {
		*plain
		Portions number `json:"portions"`
	}{plain: (*plain)(r)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	r.Portions = int(math.Round(aux.Portions.value))
	return nil
}

// Decode reads a canonical recipe document. Unknown keys are ignored and
// numbers may be written as text ("2 personer", "1,5").
func Decode(data []byte) (Recipe, error) {
	var r Recipe
	if err := json.Unmarshal(data, &r); err != nil {
		return Recipe{}, fmt.Errorf("decode recipe: %w", err)
	}
	return r, nil
}

// NutritionRows lists the nutrition values in prompt order as
// (label, total, per portion).
func (r Recipe) NutritionRows() []NutritionRow {
	t, p := r.NutritionalSummary.TotalRecipe, r.NutritionalSummary.PerPortion
	return []NutritionRow{
		{"Energi_kcal", t.EnergyKcal, p.EnergyKcal},
		{"Protein_g", t.ProteinG, p.ProteinG},
		{"Fedt_g", t.FatG, p.FatG},
		{"Heraf_Mættet_Fedt_g", t.SaturatedFatG, p.SaturatedFatG},
		{"Kulhydrater_g", t.CarbohydratesG, p.CarbohydratesG},
		{"Heraf_Sukkerarter_g", t.SugarsG, p.SugarsG},
		{"Salt_g", t.SaltG, p.SaltG},
	}
}

type NutritionRow struct {
	Label      string
	Total      float64
	PerPortion float64
}
