package export

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
	"reel-recipe-go/internal/logger"
	"reel-recipe-go/internal/recipe"
)

const (
	SheetRecipe      = "Recipe"
	SheetIngredients = "Ingredients"
	SheetNutrition   = "Nutrition"
)

// PathFor returns the workbook path next to a canonical recipe document.
func PathFor(documentPath string) string {
	return strings.TrimSuffix(documentPath, filepath.Ext(documentPath)) + ".xlsx"
}

// FromDocument reads a canonical recipe document and writes it as a workbook.
func FromDocument(documentPath, xlsxPath string) error {
	data, err := os.ReadFile(documentPath)
	if err != nil {
		return fmt.Errorf("read recipe: %w", err)
	}
	r, err := recipe.Decode(data)
	if err != nil {
		return err
	}
	return Write(r, xlsxPath)
}

// Write saves r as a workbook with Recipe, Ingredients and Nutrition sheets.
func Write(r recipe.Recipe, path string) error {
	log := logger.New().WithField("component", "export.xlsx").WithField("path", path)

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetRecipe); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	for _, name := range []string{SheetIngredients, SheetNutrition} {
		if _, err := f.NewSheet(name); err != nil {
			return fmt.Errorf("new sheet %s: %w", name, err)
		}
	}

	if err := writeOverview(f, r); err != nil {
		return err
	}
	if err := writeIngredients(f, r); err != nil {
		return err
	}
	if err := writeNutrition(f, r); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create export dir: %w", err)
	}
	if err := f.SaveAs(path); err != nil {
		log.WithError(err).Error("save workbook failed")
		return fmt.Errorf("save workbook: %w", err)
	}
	log.WithField("ingredients", len(r.Ingredients)).Info("recipe workbook saved")
	return nil
}

func writeOverview(f *excelize.File, r recipe.Recipe) error {
	rows := [][]any{
		{"Titel", r.Title},
		{"Måltid", r.MealType},
		{"Portioner", r.Portions},
	}
	rows = appendList(rows, "Udstyr", r.Equipment)
	rows = appendList(rows, "Fremgangsmåde", numbered(r.Instructions))
	rows = appendList(rows, "Serveringsforslag", r.ServingSuggestions)
	if err := writeRows(f, SheetRecipe, rows); err != nil {
		return err
	}
	return f.SetColWidth(SheetRecipe, "A", "A", 20)
}

func writeIngredients(f *excelize.File, r recipe.Recipe) error {
	rows := [][]any{{"Navn", "Mængde", "Enhed", "Dansk alternativ"}}
	for _, ing := range r.Ingredients {
		var quantity any = ing.Quantity
		if ing.QuantityText != "" {
			quantity = ing.QuantityText
		}
		rows = append(rows, []any{ing.Name, quantity, ing.Unit, ing.DanishAlternative})
	}
	if err := writeRows(f, SheetIngredients, rows); err != nil {
		return err
	}
	return f.SetColWidth(SheetIngredients, "A", "D", 24)
}

func writeNutrition(f *excelize.File, r recipe.Recipe) error {
	rows := [][]any{{"Næringsindhold", "Hele opskriften", "Per portion"}}
	for _, n := range r.NutritionRows() {
		rows = append(rows, []any{n.Label, n.Total, n.PerPortion})
	}
	if err := writeRows(f, SheetNutrition, rows); err != nil {
		return err
	}
	return f.SetColWidth(SheetNutrition, "A", "C", 22)
}

func writeRows(f *excelize.File, sheet string, rows [][]any) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		values := row
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return fmt.Errorf("write %s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}

func appendList(rows [][]any, label string, items []string) [][]any {
	if len(items) == 0 {
		return rows
	}
	rows = append(rows, []any{})
	rows = append(rows, []any{label})
	for _, item := range items {
		rows = append(rows, []any{"", item})
	}
	return rows
}

func numbered(steps []string) []string {
	out := make([]string, len(steps))
	for i, s := range steps {
		out[i] = fmt.Sprintf("%d. %s", i+1, strings.TrimSpace(s))
	}
	return out
}
