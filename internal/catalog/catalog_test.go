package catalog

import (
	"errors"
	"testing"

	"github.com/IshaanNene/NutriGoat/internal/types"
)

func TestDefaults(t *testing.T) {
	cats := Defaults("https://www.paodeacucar.com/")
	if len(cats) != 13 {
		t.Fatalf("expected 13 categories, got %d", len(cats))
	}
	if cats[0].ID != "1" || cats[0].DisplayName != "Açougue" {
		t.Errorf("first category = %+v", cats[0])
	}
	if cats[0].ListingURL != "https://www.paodeacucar.com/categoria/alimentos/acougue" {
		t.Errorf("listing url = %q", cats[0].ListingURL)
	}
	if cats[12].ID != "13" || cats[12].DisplayName != "Salgadinhos e Aperitivos" {
		t.Errorf("last category = %+v", cats[12])
	}
}

func TestResolve(t *testing.T) {
	c := New(nil, "https://www.paodeacucar.com")

	got, err := c.Resolve([]string{"7", "1", "7"})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if len(got) != 2 || got[0].DisplayName != "Doces e Sobremesas" || got[1].DisplayName != "Açougue" {
		t.Errorf("unexpected order: %+v", got)
	}

	if _, err := c.Resolve(nil); !errors.Is(err, types.ErrNoCategories) {
		t.Errorf("expected ErrNoCategories, got %v", err)
	}
	if _, err := c.Resolve([]string{"1", "99"}); !errors.Is(err, types.ErrUnknownCategory) {
		t.Errorf("expected ErrUnknownCategory, got %v", err)
	}
}

func TestCustomCatalog(t *testing.T) {
	c := New([]types.CategoryRef{{ID: "x", DisplayName: "Bebidas", ListingURL: "https://example.com/bebidas"}}, "")
	if len(c.All()) != 1 {
		t.Fatalf("expected custom list to replace defaults")
	}
	if cat, ok := c.Get("x"); !ok || cat.DisplayName != "Bebidas" {
		t.Errorf("get = %+v, %v", cat, ok)
	}
	if _, ok := c.Get("1"); ok {
		t.Error("defaults should not be merged into a custom catalog")
	}
}
