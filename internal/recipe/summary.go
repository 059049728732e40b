package recipe

import "strings"

// Summary is the short overview printed after a successful conversion.
type Summary struct {
	Title             string  `json:"title"`
	MealType          string  `json:"meal_type"`
	Portions          int     `json:"portions"`
	IngredientCount   int     `json:"ingredient_count"`
	SubstitutionCount int     `json:"substitution_count"`
	StepCount         int     `json:"step_count"`
	EquipmentCount    int     `json:"equipment_count"`
	KcalPerPortion    float64 `json:"kcal_per_portion"`
}

func Summarize(r Recipe) Summary {
	subs := 0
	for _, ing := range r.Ingredients {
		if strings.TrimSpace(ing.DanishAlternative) != "" {
			subs++
		}
	}
	kcal := r.NutritionalSummary.PerPortion.EnergyKcal
	if kcal == 0 && r.Portions > 0 {
		kcal = r.NutritionalSummary.TotalRecipe.EnergyKcal / float64(r.Portions)
	}
	return Summary{
		Title:             strings.TrimSpace(r.Title),
		MealType:          strings.TrimSpace(r.MealType),
		Portions:          r.Portions,
		IngredientCount:   len(r.Ingredients),
		SubstitutionCount: subs,
		StepCount:         len(r.Instructions),
		EquipmentCount:    len(r.Equipment),
		KcalPerPortion:    kcal,
	}
}
