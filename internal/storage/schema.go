package storage

import (
	"strconv"
	"time"

	"github.com/IshaanNene/NutriGoat/internal/types"
)

// SchemaVersion identifies the column layout below. Renaming or reordering a
// column is a breaking change for existing datasets.
const SchemaVersion = 1

// Columns is the fixed dataset header, in file order.
var Columns = []string{
	"url",
	"product_name",
	"category",
	"portion_value",
	"portion_unit",
	"calories_kcal",
	"carbohydrates_g",
	"protein_g",
	"total_fat_g",
	"saturated_fat_g",
	"fiber_g",
	"sugar_g",
	"sodium_mg",
	"collected_at",
}

// Row renders a record in Columns order.
func Row(r *types.NutritionRecord) []string {
	return []string{
		r.URL,
		r.ProductName,
		r.Category,
		formatFloat(r.Portion.Value),
		r.Portion.Unit,
		formatFloat(r.Calories),
		formatFloat(r.Carbohydrates),
		formatFloat(r.Protein),
		formatFloat(r.TotalFat),
		formatFloat(r.SaturatedFat),
		formatFloat(r.Fiber),
		formatFloat(r.Sugar),
		formatFloat(r.Sodium),
		r.CollectedAt.UTC().Format(time.RFC3339),
	}
}

// headerIndex maps column names to positions.
func headerIndex(header []string) map[string]int {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[h] = i
	}
	return idx
}

// parseRow decodes a row using a header index. Unparseable numbers read as 0.
func parseRow(idx map[string]int, row []string) *types.NutritionRecord {
	get := func(col string) string {
		i, ok := idx[col]
		if !ok || i >= len(row) {
			return ""
		}
		return row[i]
	}
	num := func(col string) float64 {
		v, err := strconv.ParseFloat(get(col), 64)
		if err != nil {
			return 0
		}
		return v
	}

	rec := &types.NutritionRecord{
		URL:           get("url"),
		ProductName:   get("product_name"),
		Category:      get("category"),
		Portion:       types.Portion{Value: num("portion_value"), Unit: get("portion_unit")},
		Calories:      num("calories_kcal"),
		Carbohydrates: num("carbohydrates_g"),
		Protein:       num("protein_g"),
		TotalFat:      num("total_fat_g"),
		SaturatedFat:  num("saturated_fat_g"),
		Fiber:         num("fiber_g"),
		Sugar:         num("sugar_g"),
		Sodium:        num("sodium_mg"),
	}
	if t, err := time.Parse(time.RFC3339, get("collected_at")); err == nil {
		rec.CollectedAt = t
	}
	return rec
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
