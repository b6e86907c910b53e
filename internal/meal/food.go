package meal

import "github.com/smarteating/tray/internal/cafeteria"

// Food is a catalog entry annotated with whether it can be served. A food is
// active while a scale is attached to it.
type Food struct {
	cafeteria.Food
	Active bool `json:"isActive"`
}

// FoodStats counts active and inactive foods.
type FoodStats struct {
	Total    int `json:"total"`
	Active   int `json:"active"`
	Inactive int `json:"inactive"`
}

// ProcessFood marks a single food.
func ProcessFood(food cafeteria.Food) Food {
	return Food{Food: food, Active: food.Scale != nil}
}

// ProcessFoods marks every food in order.
func ProcessFoods(foods []cafeteria.Food) []Food {
	out := make([]Food, 0, len(foods))
	for _, food := range foods {
		out = append(out, ProcessFood(food))
	}
	return out
}

// ActiveFoods keeps the foods with a scale attached.
func ActiveFoods(foods []Food) []Food {
	return filter(foods, true)
}

// InactiveFoods keeps the foods without a scale.
func InactiveFoods(foods []Food) []Food {
	return filter(foods, false)
}

// Stats counts foods by activity.
func Stats(foods []Food) FoodStats {
	active := len(ActiveFoods(foods))
	return FoodStats{Total: len(foods), Active: active, Inactive: len(foods) - active}
}

func filter(foods []Food, active bool) []Food {
	out := make([]Food, 0, len(foods))
	for _, food := range foods {
		if food.Active == active {
			out = append(out, food)
		}
	}
	return out
}
