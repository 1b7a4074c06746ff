// Package catalog holds the static list of category listings a run can target.
package catalog

import (
	"fmt"
	"strings"

	"github.com/IshaanNene/NutriGoat/internal/types"
)

var defaultSlugs = []struct{ name, slug string }{
	{"Açougue", "acougue"},
	{"Alimentos Congelados", "alimentos-congelados"},
	{"Alimentos Refrigerados", "alimentos-refrigerados"},
	{"Básicos da Despensa", "basico-da-despensa"},
	{"Cereais", "cereais"},
	{"Complemento da Despensa", "complemento-da-despensa"},
	{"Doces e Sobremesas", "doces-e-sobremesas"},
	{"Hortifruti", "hortifruti"},
	{"Mercearia Salgada", "mercearia-salgada"},
	{"Padaria", "padaria"},
	{"Peixaria", "peixaria"},
	{"Rotisserie", "rotisserie"},
	{"Salgadinhos e Aperitivos", "salgadinhos-e-aperitivos"},
}

// Defaults returns the store's food categories, numbered from "1".
func Defaults(baseURL string) []types.CategoryRef {
	base := strings.TrimRight(baseURL, "/")
	out := make([]types.CategoryRef, len(defaultSlugs))
	for i, c := range defaultSlugs {
		out[i] = types.CategoryRef{
			ID:          fmt.Sprintf("%d", i+1),
			DisplayName: c.name,
			ListingURL:  base + "/categoria/alimentos/" + c.slug,
		}
	}
	return out
}

// Catalog is an immutable, ordered set of categories.
type Catalog struct {
	list []types.CategoryRef
	byID map[string]types.CategoryRef
}

// New builds a catalog. An empty list falls back to Defaults(baseURL).
func New(categories []types.CategoryRef, baseURL string) *Catalog {
	if len(categories) == 0 {
		categories = Defaults(baseURL)
	}
	c := &Catalog{
		list: append([]types.CategoryRef(nil), categories...),
		byID: make(map[string]types.CategoryRef, len(categories)),
	}
	for _, cat := range c.list {
		c.byID[cat.ID] = cat
	}
	return c
}

// All returns every category in catalog order.
func (c *Catalog) All() []types.CategoryRef {
	return append([]types.CategoryRef(nil), c.list...)
}

// Get looks up one category by id.
func (c *Catalog) Get(id string) (types.CategoryRef, bool) {
	cat, ok := c.byID[id]
	return cat, ok
}

// Resolve maps ids to categories in caller order, dropping repeats.
func (c *Catalog) Resolve(ids []string) ([]types.CategoryRef, error) {
	if len(ids) == 0 {
		return nil, types.ErrNoCategories
	}
	seen := make(map[string]bool, len(ids))
	out := make([]types.CategoryRef, 0, len(ids))
	for _, raw := range ids {
		id := strings.TrimSpace(raw)
		if seen[id] {
			continue
		}
		cat, ok := c.byID[id]
		if !ok {
			return nil, fmt.Errorf("%w: %q", types.ErrUnknownCategory, raw)
		}
		seen[id] = true
		out = append(out, cat)
	}
	return out, nil
}
