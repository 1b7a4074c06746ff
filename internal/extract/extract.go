// Package extract turns a rendered product page into a NutritionRecord.
package extract

import (
	"context"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"

	"github.com/IshaanNene/NutriGoat/internal/browser"
	"github.com/IshaanNene/NutriGoat/internal/normalize"
	"github.com/IshaanNene/NutriGoat/internal/types"
)

// ExpandLabel is the text of the button that reveals the nutrition table.
const ExpandLabel = "tabela nutricional"

const structuredJS = `() => {
	const d = window.digitalData;
	if (d && d.product && d.product.nutritionalMap) return d.product.nutritionalMap;
	return null;
}`

const visibleTextXPath = `//body//text()[not(ancestor::script) and not(ancestor::style) and not(ancestor::noscript)]`

// tableMarkers identify the nutrition table by its header, compared folded.
var tableMarkers = []string{
	"qtde. por porcao",
	"quantidade por porcao",
	"amount per serving",
	"valores diarios",
}

var portionRe = regexp.MustCompile(`(?:porcao|serving size)(?: de)?\s*:?\s*(\d+(?:[.,]\d+)?)\s*(kg|mg|ml|g|l)\b`)

type structuredMap struct {
	Attributes []struct {
		Label string `json:"label"`
		Value string `json:"value"`
	} `json:"attributes"`
}

type freeTextRule struct {
	field normalize.Field
	re    *regexp.Regexp
}

// freeTextRules follow the synonym table order. Unit synonyms such as "kcal"
// are skipped since the number after them belongs to the next label.
var freeTextRules = func() []freeTextRule {
	var rules []freeTextRule
	for _, syn := range normalize.Synonyms() {
		if syn.Text == string(syn.Field.Unit) {
			continue
		}
		rules = append(rules, freeTextRule{
			field: syn.Field,
			re:    regexp.MustCompile(regexp.QuoteMeta(syn.Text) + `[^0-9]{0,40}?(\d+(?:[.,]\d+)?\s*(?:kcal|mg|g)?)`),
		})
	}
	return rules
}()

// Extractor reads nutrition facts from product pages.
type Extractor struct {
	settleDelay time.Duration
	logger      *slog.Logger
}

// New creates an Extractor that waits settleDelay after expanding the table.
func New(settleDelay time.Duration, logger *slog.Logger) *Extractor {
	return &Extractor{
		settleDelay: settleDelay,
		logger:      logger.With("component", "extractor"),
	}
}

// Extract navigates page to ref.URL and builds its record. Fields the page
// does not expose stay zero. Faults come back as *types.ExtractError with a
// nil record.
func (e *Extractor) Extract(ctx context.Context, page browser.Page, ref types.ProductReference) (*types.NutritionRecord, error) {
	fail := func(phase string, err error) (*types.NutritionRecord, error) {
		e.logger.Warn("extraction failed", "url", ref.URL, "phase", phase, "error", err)
		return nil, &types.ExtractError{URL: ref.URL, Phase: phase, Err: err}
	}

	if err := page.Navigate(ctx, ref.URL); err != nil {
		return fail("navigate", err)
	}

	if _, err := page.ExpandSection(ctx, ExpandLabel); err != nil {
		if ctx.Err() != nil {
			return fail("expand", err)
		}
		e.logger.Debug("could not expand nutrition table", "url", ref.URL, "error", err)
	}
	if err := browser.Sleep(ctx, e.settleDelay); err != nil {
		return fail("expand", err)
	}

	rec := types.NewNutritionRecord(ref)

	found := e.structuredLayer(ctx, page, rec)
	if ctx.Err() != nil {
		return fail("structured", ctx.Err())
	}

	raw, err := page.HTML(ctx)
	if err != nil {
		return fail("html", err)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return fail("html", err)
	}
	root, err := htmlquery.Parse(strings.NewReader(raw))
	if err != nil {
		return fail("html", err)
	}
	text := visibleText(root)

	if found == 0 {
		found = tableLayer(doc, rec)
	}
	if found == 0 {
		found = freeTextLayer(text, rec)
	}

	rec.ProductName = productName(doc, ref.URL)
	rec.Portion = findPortion(text)

	e.logger.Debug("product extracted",
		"url", ref.URL,
		"name", rec.ProductName,
		"fields", found,
	)
	return rec, nil
}

// structuredLayer reads the client-side nutrition object when the page has one.
func (e *Extractor) structuredLayer(ctx context.Context, page browser.Page, rec *types.NutritionRecord) int {
	var m *structuredMap
	if err := page.Eval(ctx, structuredJS, &m); err != nil {
		e.logger.Debug("structured nutrition data unavailable", "url", rec.URL, "error", err)
		return 0
	}
	if m == nil {
		return 0
	}
	n := 0
	for _, attr := range m.Attributes {
		if apply(rec, attr.Label, attr.Value) {
			n++
		}
	}
	return n
}

// tableLayer scans tables whose header carries a per-serving marker.
func tableLayer(doc *goquery.Document, rec *types.NutritionRecord) int {
	n := 0
	doc.Find("table").Each(func(_ int, table *goquery.Selection) {
		header := table.Find("th").Text()
		if strings.TrimSpace(header) == "" {
			header = table.Find("tr").First().Text()
		}
		if !hasMarker(normalize.Fold(header)) {
			return
		}
		table.Find("tr").Each(func(_ int, row *goquery.Selection) {
			cells := row.Find("td")
			if cells.Length() < 2 {
				return
			}
			label := strings.TrimSpace(cells.Eq(0).Text())
			value := strings.TrimSpace(cells.Eq(1).Text())
			if apply(rec, label, value) {
				n++
			}
		})
	})
	return n
}

// freeTextLayer looks for "label ... number" runs in the visible text.
func freeTextLayer(text string, rec *types.NutritionRecord) int {
	folded := normalize.Fold(text)
	n := 0
	for _, rule := range freeTextRules {
		m := rule.re.FindStringSubmatch(folded)
		if m == nil {
			continue
		}
		v := normalize.ExtractNumericValue(m[1], rule.field.Unit)
		if normalize.Set(rec, rule.field.Key, v, true) {
			n++
		}
	}
	return n
}

// apply maps one label/value pair onto rec, keeping the first value per field.
func apply(rec *types.NutritionRecord, label, value string) bool {
	field, ok := normalize.NormalizeLabel(label)
	if !ok {
		return false
	}
	v := normalize.ExtractNumericValue(value, field.Unit)
	return normalize.Set(rec, field.Key, v, true)
}

func hasMarker(folded string) bool {
	for _, m := range tableMarkers {
		if strings.Contains(folded, m) {
			return true
		}
	}
	return false
}

func visibleText(root *html.Node) string {
	nodes, err := htmlquery.QueryAll(root, visibleTextXPath)
	if err != nil {
		return ""
	}
	parts := make([]string, 0, len(nodes))
	for _, n := range nodes {
		if t := strings.TrimSpace(n.Data); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " ")
}

func productName(doc *goquery.Document, rawURL string) string {
	if h1 := strings.Join(strings.Fields(doc.Find("h1").First().Text()), " "); h1 != "" {
		return h1
	}
	return normalize.NameFromURL(rawURL)
}

func findPortion(text string) types.Portion {
	m := portionRe.FindStringSubmatch(normalize.Fold(text))
	if m == nil {
		return types.Portion{}
	}
	v, err := strconv.ParseFloat(strings.Replace(m[1], ",", ".", 1), 64)
	if err != nil {
		return types.Portion{}
	}
	return types.Portion{Value: v, Unit: m[2]}
}
