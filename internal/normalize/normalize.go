// Package normalize maps heterogeneous nutrition labels onto the canonical
// record fields and turns their printed values into numbers.
package normalize

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/IshaanNene/NutriGoat/internal/types"
)

// Unit is the unit a canonical field is stored in.
type Unit string

const (
	Kcal       Unit = "kcal"
	Grams      Unit = "g"
	Milligrams Unit = "mg"
)

// Canonical field keys.
const (
	Calories      = "calories"
	Carbohydrates = "carbohydrates"
	Protein       = "protein"
	TotalFat      = "total_fat"
	SaturatedFat  = "saturated_fat"
	Fiber         = "fiber"
	Sugar         = "sugar"
	Sodium        = "sodium"
)

// Field is a canonical nutrient and its storage unit.
type Field struct {
	Key  string
	Unit Unit
}

// Synonym binds a folded label fragment to a canonical field.
type Synonym struct {
	Text  string
	Field Field
}

var (
	fCalories      = Field{Calories, Kcal}
	fCarbohydrates = Field{Carbohydrates, Grams}
	fProtein       = Field{Protein, Grams}
	fTotalFat      = Field{TotalFat, Grams}
	fSaturatedFat  = Field{SaturatedFat, Grams}
	fFiber         = Field{Fiber, Grams}
	fSugar         = Field{Sugar, Grams}
	fSodium        = Field{Sodium, Milligrams}
)

// synonyms is scanned in order and the first hit wins, so more specific
// fragments ("gorduras saturadas") sit above the ones they contain ("gordura").
var synonyms = []Synonym{
	{"valor energetico", fCalories},
	{"calorias", fCalories},
	{"energia", fCalories},
	{"kcal", fCalories},
	{"calor", fCalories},
	{"energy", fCalories},
	{"carboidrato", fCarbohydrates},
	{"carbohydrate", fCarbohydrates},
	{"proteina", fProtein},
	{"protein", fProtein},
	{"gorduras saturadas", fSaturatedFat},
	{"gordura saturada", fSaturatedFat},
	{"saturated fat", fSaturatedFat},
	{"gorduras totais", fTotalFat},
	{"gordura total", fTotalFat},
	{"total fat", fTotalFat},
	{"lipidios", fTotalFat},
	{"fibra", fFiber},
	{"fiber", fFiber},
	{"fibre", fFiber},
	{"acucar", fSugar},
	{"sugar", fSugar},
	{"sodio", fSodium},
	{"sodium", fSodium},
}

// Synonyms returns the ordered synonym table.
func Synonyms() []Synonym {
	out := make([]Synonym, len(synonyms))
	copy(out, synonyms)
	return out
}

// Fields lists every canonical field in dataset column order.
func Fields() []Field {
	return []Field{fCalories, fCarbohydrates, fProtein, fTotalFat, fSaturatedFat, fFiber, fSugar, fSodium}
}

// Fold lowercases s and strips diacritics, so "Sódio" and "sodio" compare equal.
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.ToLower(out)
}

// NormalizeLabel maps a free-form label to its canonical field.
// It returns false when no synonym matches.
func NormalizeLabel(label string) (Field, bool) {
	folded := Fold(label)
	for _, syn := range synonyms {
		if strings.Contains(folded, syn.Text) {
			return syn.Field, true
		}
	}
	return Field{}, false
}

var (
	numberRe   = regexp.MustCompile(`\d+(?:[.,]\d+)?`)
	kcalRe     = regexp.MustCompile(`(\d+(?:[.,]\d+)?)\s*kcal`)
	unitTokRe  = regexp.MustCompile(`^\s*([a-zµ]+)`)
	mgWordRe   = regexp.MustCompile(`\d\s*mg\b`)
	gramWordRe = regexp.MustCompile(`\d\s*g\b`)
)

// ExtractNumericValue pulls the first decimal number out of text and
// reconciles it with the target unit. A comma is read as the decimal
// separator. Text without digits yields 0.
func ExtractNumericValue(text string, target Unit) float64 {
	folded := Fold(text)

	loc := []int(nil)
	if target == Kcal {
		if m := kcalRe.FindStringSubmatchIndex(folded); m != nil {
			loc = m[2:4]
		}
	}
	if loc == nil {
		loc = numberRe.FindStringIndex(folded)
	}
	if loc == nil {
		return 0
	}

	v, err := strconv.ParseFloat(strings.Replace(folded[loc[0]:loc[1]], ",", ".", 1), 64)
	if err != nil {
		return 0
	}

	unit := ""
	if m := unitTokRe.FindStringSubmatch(folded[loc[1]:]); m != nil {
		unit = m[1]
	}

	switch target {
	case Grams:
		if unit == "mg" || (unit == "" && mgWordRe.MatchString(folded)) {
			v /= 1000
		}
	case Milligrams:
		if unit == "g" || (unit == "" && gramWordRe.MatchString(folded) && !mgWordRe.MatchString(folded)) {
			v *= 1000
		}
	}
	return round(v)
}

func round(v float64) float64 {
	return math.Round(v*10000) / 10000
}

// Value returns the current value of a canonical field on rec.
func Value(rec *types.NutritionRecord, key string) float64 {
	if p := fieldPtr(rec, key); p != nil {
		return *p
	}
	return 0
}

// Set writes v into the canonical field of rec. With onlyIfDefault it leaves
// fields that already hold a non-zero value untouched. It reports whether
// the field was written.
func Set(rec *types.NutritionRecord, key string, v float64, onlyIfDefault bool) bool {
	p := fieldPtr(rec, key)
	if p == nil {
		return false
	}
	if onlyIfDefault && *p != 0 {
		return false
	}
	*p = v
	return true
}

func fieldPtr(rec *types.NutritionRecord, key string) *float64 {
	switch key {
	case Calories:
		return &rec.Calories
	case Carbohydrates:
		return &rec.Carbohydrates
	case Protein:
		return &rec.Protein
	case TotalFat:
		return &rec.TotalFat
	case SaturatedFat:
		return &rec.SaturatedFat
	case Fiber:
		return &rec.Fiber
	case Sugar:
		return &rec.Sugar
	case Sodium:
		return &rec.Sodium
	}
	return nil
}
