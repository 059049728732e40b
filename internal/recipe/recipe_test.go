package recipe

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const pastaJSON = `{
  "title": "Cremet pasta",
  "meal_type": "Aftensmad",
  "portions": 2,
  "ingredients": [
    {"name": "Pasta", "quantity": 200, "unit": "g"},
    {"name": "Pecorino", "quantity": 40, "unit": "g", "danish_alternative": "Parmesan"}
  ],
  "equipment": ["Gryde", "Pande"],
  "instructions": ["Kog vand", "Tilsæt pasta", "Vend med ost"],
  "serving_suggestions": ["Grøn salat"],
  "nutritional_summary": {
    "total_recipe": {"Energi_kcal": 1100, "Protein_g": 40, "Heraf_Mættet_Fedt_g": 12.5, "Salt_g": 2},
    "per_portion": {"Energi_kcal": 550, "Protein_g": 20, "Heraf_Mættet_Fedt_g": 6.25, "Salt_g": 1}
  },
  "source": "ignored"
}`

func TestDecode(t *testing.T) {
	r, err := Decode([]byte(pastaJSON))
	require.NoError(t, err)

	assert.Equal(t, "Cremet pasta", r.Title)
	assert.Equal(t, 2, r.Portions)
	require.Len(t, r.Ingredients, 2)
	assert.Equal(t, "Parmesan", r.Ingredients[1].DanishAlternative)
	assert.InDelta(t, 6.25, r.NutritionalSummary.PerPortion.SaturatedFatG, 1e-9)
}

func TestDecodeRejectsWrongShape(t *testing.T) {
	for _, doc := range []string{`{"ingredients": "many"}`, `{"portions": [2]}`, `[1,2]`} {
		_, err := Decode([]byte(doc))
		assert.Error(t, err, doc)
	}
}

func TestDecodeAcceptsNumbersWrittenAsText(t *testing.T) {
	r, err := Decode([]byte(`{
  "portions": "4 personer",
  "ingredients": [
    {"name": "Salt", "quantity": "1 knsp"},
    {"name": "Mælk", "quantity": "1,5", "unit": "dl"},
    {"name": "Smør", "quantity": "1/2 spsk"},
    {"name": "Peber", "quantity": "efter smag"},
    {"name": "Løg", "quantity": null}
  ],
  "nutritional_summary": {"per_portion": {"Energi_kcal": "ca. 450", "Protein_g": "20"}}
}`))
	require.NoError(t, err)

	assert.Equal(t, 4, r.Portions)
	require.Len(t, r.Ingredients, 5)
	assert.InDelta(t, 1, r.Ingredients[0].Quantity, 1e-9)
	assert.Equal(t, "1 knsp", r.Ingredients[0].QuantityText)
	assert.InDelta(t, 1.5, r.Ingredients[1].Quantity, 1e-9)
	assert.Empty(t, r.Ingredients[1].QuantityText)
	assert.Equal(t, "dl", r.Ingredients[1].Unit)
	assert.InDelta(t, 0.5, r.Ingredients[2].Quantity, 1e-9)
	assert.Zero(t, r.Ingredients[3].Quantity)
	assert.Equal(t, "efter smag", r.Ingredients[3].QuantityText)
	assert.Zero(t, r.Ingredients[4].Quantity)
	assert.Zero(t, r.NutritionalSummary.PerPortion.EnergyKcal)
	assert.InDelta(t, 20, r.NutritionalSummary.PerPortion.ProteinG, 1e-9)
}

func TestSummarize(t *testing.T) {
	r, err := Decode([]byte(pastaJSON))
	require.NoError(t, err)

	s := Summarize(r)
	assert.Equal(t, Summary{
		Title:             "Cremet pasta",
		MealType:          "Aftensmad",
		Portions:          2,
		IngredientCount:   2,
		SubstitutionCount: 1,
		StepCount:         3,
		EquipmentCount:    2,
		KcalPerPortion:    550,
	}, s)
}

func TestSummarizeDerivesKcalPerPortion(t *testing.T) {
	r := Recipe{Portions: 4}
	r.NutritionalSummary.TotalRecipe.EnergyKcal = 2000

	assert.InDelta(t, 500, Summarize(r).KcalPerPortion, 1e-9)
	assert.Zero(t, Summarize(Recipe{}).KcalPerPortion)
}

func TestNutritionRowsOrder(t *testing.T) {
	r, err := Decode([]byte(pastaJSON))
	require.NoError(t, err)

	rows := r.NutritionRows()
	require.Len(t, rows, 7)
	assert.Equal(t, "Energi_kcal", rows[0].Label)
	assert.Equal(t, "Salt_g", rows[6].Label)
	assert.InDelta(t, 1100, rows[0].Total, 1e-9)
	assert.InDelta(t, 1, rows[6].PerPortion, 1e-9)
}
