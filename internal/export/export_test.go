package export

import (
	"bytes"
	"encoding/csv"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/IshaanNene/NutriGoat/internal/storage"
	"github.com/IshaanNene/NutriGoat/internal/types"
)

func sample() []*types.NutritionRecord {
	at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	return []*types.NutritionRecord{
		{
			URL:         "https://www.paodeacucar.com/produto/460707/aveia-em-flocos-finos-quaker",
			ProductName: "Aveia em Flocos Finos Quaker 450g",
			Category:    "Cereais",
			Portion:     types.Portion{Value: 30, Unit: "g"},
			Calories:    117,
			Protein:     4.4,
			CollectedAt: at,
		},
		{
			URL:         "https://www.paodeacucar.com/produto/1/picanha",
			ProductName: "Picanha",
			Category:    "Açougue",
			Sodium:      55,
			CollectedAt: at,
		},
	}
}

func TestWriteXLSX(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteXLSX(&buf, sample()); err != nil {
		t.Fatalf("write: %v", err)
	}

	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()

	if name := f.GetSheetName(0); name != SheetName {
		t.Fatalf("sheet = %q, want %q", name, SheetName)
	}

	rows, err := f.GetRows(SheetName)
	if err != nil {
		t.Fatalf("rows: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected header + 2 rows, got %d", len(rows))
	}
	if rows[0][0] != "url" || rows[0][len(storage.Columns)-1] != "collected_at" {
		t.Errorf("unexpected header: %v", rows[0])
	}
	if rows[1][1] != "Aveia em Flocos Finos Quaker 450g" || rows[1][5] != "117" || rows[1][7] != "4.4" {
		t.Errorf("unexpected row: %v", rows[1])
	}
	if rows[2][2] != "Açougue" {
		t.Errorf("category = %q", rows[2][2])
	}

	width, err := f.GetColWidth(SheetName, "A")
	if err != nil {
		t.Fatalf("width: %v", err)
	}
	want := float64(len("https://www.paodeacucar.com/produto/460707/aveia-em-flocos-finos-quaker") + 2)
	if width != want {
		t.Errorf("column A width = %v, want %v", width, want)
	}
}

func TestWriteXLSXEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteXLSX(&buf, nil); err != nil {
		t.Fatalf("write: %v", err)
	}
	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()
	rows, _ := f.GetRows(SheetName)
	if len(rows) != 1 {
		t.Errorf("expected only the header row, got %d", len(rows))
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, sample()); err != nil {
		t.Fatalf("write: %v", err)
	}
	rows, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}
	if rows[2][12] != "55" {
		t.Errorf("sodium = %q", rows[2][12])
	}
	if rows[1][13] != "2025-03-01T12:00:00Z" {
		t.Errorf("collected_at = %q", rows[1][13])
	}
}
