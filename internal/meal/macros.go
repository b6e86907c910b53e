package meal

import "math"

// Energy per gram of each macronutrient.
const (
	kcalPerGramProtein = 4
	kcalPerGramCarbs   = 4
	kcalPerGramFat     = 9
)

// Macro is one nutrient card: grams on the plate, share of all macro grams,
// and the calories those grams contribute.
type Macro struct {
	Label      string  `json:"label"`
	Grams      float64 `json:"grams"`
	Percentage int     `json:"percentage"`
	Calories   int     `json:"calories"`
}

// MacroBreakdown groups the three macro cards shown under the plate.
type MacroBreakdown struct {
	Protein Macro `json:"protein"`
	Carbs   Macro `json:"carbs"`
	Fat     Macro `json:"fat"`
}

// All returns the macros in display order.
func (b MacroBreakdown) All() []Macro {
	return []Macro{b.Protein, b.Carbs, b.Fat}
}

// Macros derives the macro cards from a processed meal.
func Macros(p ProcessedMeal) MacroBreakdown {
	total := p.TotalProtein + p.TotalCarbs + p.TotalFat
	return MacroBreakdown{
		Protein: macro("Proteínas", p.TotalProtein, total, kcalPerGramProtein),
		Carbs:   macro("Carboidratos", p.TotalCarbs, total, kcalPerGramCarbs),
		Fat:     macro("Gorduras", p.TotalFat, total, kcalPerGramFat),
	}
}

func macro(label string, grams, total, kcalPerGram float64) Macro {
	return Macro{
		Label:      label,
		Grams:      grams,
		Percentage: Percent(grams, total),
		Calories:   int(math.Round(grams * kcalPerGram)),
	}
}
