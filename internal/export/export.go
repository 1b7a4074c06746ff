// Package export transcodes the dataset into downloadable files.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"

	"github.com/IshaanNene/NutriGoat/internal/storage"
	"github.com/IshaanNene/NutriGoat/internal/types"
)

// SheetName is the worksheet the XLSX export writes to.
const SheetName = "Dados Nutricionais"

const (
	ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	ContentTypeCSV  = "text/csv; charset=utf-8"
)

// textColumns hold strings; every other column is numeric.
var textColumns = map[string]bool{
	"url":          true,
	"product_name": true,
	"category":     true,
	"portion_unit": true,
	"collected_at": true,
}

// WriteXLSX writes records as a single-sheet workbook. Each column is as
// wide as its longest value plus two characters.
func WriteXLSX(w io.Writer, records []*types.NutritionRecord) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	rows := make([][]string, len(records))
	widths := make([]int, len(storage.Columns))
	for i, col := range storage.Columns {
		widths[i] = utf8.RuneCountInString(col)
	}
	for i, r := range records {
		rows[i] = storage.Row(r)
		for j, v := range rows[i] {
			if n := utf8.RuneCountInString(v); n > widths[j] {
				widths[j] = n
			}
		}
	}

	sw, err := f.NewStreamWriter(SheetName)
	if err != nil {
		return fmt.Errorf("stream writer: %w", err)
	}
	// widths must be set before the first row
	for i, width := range widths {
		if err := sw.SetColWidth(i+1, i+1, float64(width+2)); err != nil {
			return fmt.Errorf("column width: %w", err)
		}
	}

	header := make([]any, len(storage.Columns))
	for i, col := range storage.Columns {
		header[i] = col
	}
	if err := sw.SetRow("A1", header); err != nil {
		return err
	}

	for i, r := range records {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := sw.SetRow(cell, cells(r, rows[i])); err != nil {
			return err
		}
	}
	if err := sw.Flush(); err != nil {
		return err
	}
	return f.Write(w)
}

func cells(r *types.NutritionRecord, text []string) []any {
	nums := []float64{
		r.Portion.Value,
		r.Calories,
		r.Carbohydrates,
		r.Protein,
		r.TotalFat,
		r.SaturatedFat,
		r.Fiber,
		r.Sugar,
		r.Sodium,
	}
	out := make([]any, len(storage.Columns))
	n := 0
	for i, col := range storage.Columns {
		if textColumns[col] {
			out[i] = text[i]
			continue
		}
		out[i] = nums[n]
		n++
	}
	return out
}

// WriteCSV writes records in the dataset's own column layout.
func WriteCSV(w io.Writer, records []*types.NutritionRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(storage.Columns); err != nil {
		return err
	}
	for _, r := range records {
		if err := cw.Write(storage.Row(r)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
