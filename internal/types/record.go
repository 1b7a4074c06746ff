package types

import (
	"encoding/json"
	"strconv"
	"time"
)

// CategoryRef is a static listing page of the site, defined at startup.
type CategoryRef struct {
	ID          string `json:"id"          mapstructure:"id"           yaml:"id"`
	DisplayName string `json:"name"        mapstructure:"name"         yaml:"name"`
	ListingURL  string `json:"url"         mapstructure:"url"          yaml:"url"`
}

// ProductReference is a product link discovered on a category listing.
// Its identity is the exact URL string.
type ProductReference struct {
	URL              string    `json:"url"`
	DisplayName      string    `json:"name"`
	Category         string    `json:"category"`
	DiscoveredAtPage int       `json:"page"`
	CollectedAt      time.Time `json:"collected_at"`
}

// Portion is a serving size as printed on the label.
type Portion struct {
	Value float64 `json:"value"`
	Unit  string  `json:"unit"`
}

// String renders the portion the way it is stored, e.g. "30g".
func (p Portion) String() string {
	if p.Value == 0 {
		return "0"
	}
	return strconv.FormatFloat(p.Value, 'f', -1, 64) + p.Unit
}

// NutritionRecord is one row of the dataset. Nutrient fields are zero when
// the page did not expose them; a zero is not distinguished from a true zero.
type NutritionRecord struct {
	URL           string    `json:"url"            bson:"url"`
	ProductName   string    `json:"product_name"   bson:"product_name"`
	Category      string    `json:"category"       bson:"category"`
	Portion       Portion   `json:"portion"        bson:"portion"`
	Calories      float64   `json:"calories"       bson:"calories"`
	Carbohydrates float64   `json:"carbohydrates"  bson:"carbohydrates"`
	Protein       float64   `json:"protein"        bson:"protein"`
	TotalFat      float64   `json:"total_fat"      bson:"total_fat"`
	SaturatedFat  float64   `json:"saturated_fat"  bson:"saturated_fat"`
	Fiber         float64   `json:"fiber"          bson:"fiber"`
	Sugar         float64   `json:"sugar"          bson:"sugar"`
	Sodium        float64   `json:"sodium"         bson:"sodium"`
	CollectedAt   time.Time `json:"collected_at"   bson:"collected_at"`
}

// NewNutritionRecord creates an all-zero record for a discovered product.
func NewNutritionRecord(ref ProductReference) *NutritionRecord {
	return &NutritionRecord{
		URL:         ref.URL,
		ProductName: ref.DisplayName,
		Category:    ref.Category,
		CollectedAt: time.Now(),
	}
}

// HasNutrients reports whether any nutrient field is non-zero.
func (r *NutritionRecord) HasNutrients() bool {
	return r.Calories != 0 || r.Carbohydrates != 0 || r.Protein != 0 ||
		r.TotalFat != 0 || r.SaturatedFat != 0 || r.Fiber != 0 ||
		r.Sugar != 0 || r.Sodium != 0
}

// ToJSON serializes the record to JSON bytes.
func (r *NutritionRecord) ToJSON() ([]byte, error) {
	return json.Marshal(r)
}
