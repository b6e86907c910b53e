package meal

import (
	"math"
	"strconv"
	"time"

	"github.com/smarteating/tray/internal/cafeteria"
)

// ChartSlice is one wedge of the plate chart.
type ChartSlice struct {
	ID         int64   `json:"id"`
	Percentage int     `json:"percentage"`
	ImageSrc   string  `json:"imageSrc"`
	Label      string  `json:"label"`
	Details    string  `json:"details"`
	Weight     float64 `json:"weight"`
}

// ProcessedMeal is the display model derived from a MealSnapshot.
type ProcessedMeal struct {
	ID               int64                       `json:"id"`
	CreatedAt        time.Time                   `json:"createdAt"`
	Finished         bool                        `json:"finished"`
	FinalPrice       float64                     `json:"finalPrice"`
	TotalCalories    float64                     `json:"totalCalories"`
	TotalCarbs       float64                     `json:"totalCarbs"`
	TotalFat         float64                     `json:"totalFat"`
	TotalProtein     float64                     `json:"totalProtein"`
	TotalWeight      float64                     `json:"totalWeight"`
	FoodMeasurements []cafeteria.FoodMeasurement `json:"foodMeasurements"`
	ChartSlices      []ChartSlice                `json:"chartSlices"`
}

// Empty reports whether p carries no meal.
func (p ProcessedMeal) Empty() bool {
	return p.ID == 0 && len(p.ChartSlices) == 0
}

// Process converts a raw snapshot into its display model. A nil snapshot
// yields the zero meal with empty (non-nil) slices. The result depends on raw
// alone, so calling it again on the same input yields an equal value.
func Process(raw *cafeteria.MealSnapshot) ProcessedMeal {
	if raw == nil {
		return ProcessedMeal{
			FoodMeasurements: []cafeteria.FoodMeasurement{},
			ChartSlices:      []ChartSlice{},
		}
	}

	slices := make([]ChartSlice, 0, len(raw.FoodMeasurements))
	for _, m := range raw.FoodMeasurements {
		slices = append(slices, ChartSlice{
			ID:         m.ID,
			Percentage: Percent(m.Weight, raw.TotalWeight),
			ImageSrc:   m.Food.Photo,
			Label:      m.Food.Name,
			Details:    Grams(m.Weight),
			Weight:     m.Weight,
		})
	}

	measurements := make([]cafeteria.FoodMeasurement, len(raw.FoodMeasurements))
	copy(measurements, raw.FoodMeasurements)

	return ProcessedMeal{
		ID:               raw.ID,
		CreatedAt:        raw.ParsedCreatedAt(),
		Finished:         raw.Finished,
		FinalPrice:       raw.FinalPrice,
		TotalCalories:    raw.TotalCalories,
		TotalCarbs:       raw.TotalCarbs,
		TotalFat:         raw.TotalFat,
		TotalProtein:     raw.TotalProtein,
		TotalWeight:      raw.TotalWeight,
		FoodMeasurements: measurements,
		ChartSlices:      slices,
	}
}

// Percent returns round(part/total*100), or 0 when total is not positive.
func Percent(part, total float64) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(part / total * 100))
}

// Grams formats a weight as a whole-gram label, e.g. "150g".
func Grams(weight float64) string {
	return strconv.FormatFloat(math.Round(weight), 'f', 0, 64) + "g"
}

// ImageURLs returns the distinct non-empty slice photos in slice order.
func (p ProcessedMeal) ImageURLs() []string {
	seen := make(map[string]struct{}, len(p.ChartSlices))
	urls := make([]string, 0, len(p.ChartSlices))
	for _, slice := range p.ChartSlices {
		if slice.ImageSrc == "" {
			continue
		}
		if _, ok := seen[slice.ImageSrc]; ok {
			continue
		}
		seen[slice.ImageSrc] = struct{}{}
		urls = append(urls, slice.ImageSrc)
	}
	return urls
}
