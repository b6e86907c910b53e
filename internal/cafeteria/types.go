package cafeteria

import "time"

const backendTimestampLayout = "2006-01-02 15:04:05"

// Scale is the weighing device a food is attached to.
type Scale struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Serial string `json:"serial"`
}

// Food is a catalog entry. Nutrients are per 100 g.
type Food struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Photo       string  `json:"photo"`
	Protein     float64 `json:"protein"`
	Carbs       float64 `json:"carbs"`
	Fat         float64 `json:"fat"`
	Calories    float64 `json:"calories"`
	Scale       *Scale  `json:"scale"`
}

// FoodMeasurement is one weighing of a food onto the active plate.
type FoodMeasurement struct {
	ID     int64   `json:"id"`
	Food   Food    `json:"food"`
	Weight float64 `json:"weight"`
}

// MealSnapshot mirrors GET /auth/meals/current. The backend owns it; the
// agent only ever holds the latest polled copy.
type MealSnapshot struct {
	ID               int64             `json:"id"`
	CreatedAt        string            `json:"created_at"`
	Finished         bool              `json:"finished"`
	FinalPrice       float64           `json:"final_price"`
	TotalCalories    float64           `json:"total_calories"`
	TotalCarbs       float64           `json:"total_carbs"`
	TotalFat         float64           `json:"total_fat"`
	TotalProtein     float64           `json:"total_protein"`
	TotalWeight      float64           `json:"total_weight"`
	FoodMeasurements []FoodMeasurement `json:"food_measurements"`
}

// ParsedCreatedAt returns the parsed CreatedAt timestamp.
func (m MealSnapshot) ParsedCreatedAt() time.Time {
	return parseTime(m.CreatedAt)
}

// InitializeRequest is the body of POST /auth/meals/initialize.
type InitializeRequest struct {
	PlateIdentifier string `json:"plate_identifier"`
}

// InitializeResponse acknowledges a plate being bound to a new meal.
type InitializeResponse struct {
	ID              int64  `json:"id"`
	PlateIdentifier string `json:"plate_identifier"`
	UserID          int64  `json:"user_id"`
	Status          string `json:"status"`
	CreatedAt       string `json:"created_at"`
	UpdatedAt       string `json:"updated_at"`
}

// PageOptions describes the position of a page within a listing.
type PageOptions struct {
	Page    int `json:"page"`
	Pages   int `json:"pages"`
	Results int `json:"results"`
	Size    int `json:"size"`
}

// Page is the envelope every paginated endpoint returns.
type Page[T any] struct {
	Data    []T         `json:"data"`
	Options PageOptions `json:"options"`
}

// HasNext reports whether another page follows this one.
func (p Page[T]) HasNext() bool {
	return p.Options.Page < p.Options.Pages
}

// NextPage returns the page number to request next, or 0 when this is the last page.
func (p Page[T]) NextPage() int {
	if !p.HasNext() {
		return 0
	}
	return p.Options.Page + 1
}

func parseTime(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05.999999"} {
		if t, err := time.Parse(layout, value); err == nil {
			return t
		}
	}
	if t, err := time.ParseInLocation(backendTimestampLayout, value, time.Local); err == nil {
		return t
	}
	return time.Time{}
}
