package ui

import (
	"fmt"
	"strings"
)

// truncate shortens value to limit runes, adding an ellipsis.
func truncate(value string, limit int) string {
	value = strings.TrimSpace(value)
	if limit <= 0 {
		return ""
	}
	runes := []rune(value)
	if len(runes) <= limit {
		return value
	}
	if limit <= 3 {
		return string(runes[:limit])
	}
	return string(runes[:limit-3]) + "..."
}

// truncateMiddle keeps both ends of value, which suits file paths.
func truncateMiddle(value string, limit int) string {
	runes := []rune(value)
	if limit <= 0 || len(runes) <= limit {
		return value
	}
	if limit <= 5 {
		return string(runes[:limit])
	}
	tail := (limit - 3) * 2 / 3
	head := limit - 3 - tail
	return string(runes[:head]) + "..." + string(runes[len(runes)-tail:])
}

// formatBRL renders a price the way the cafeteria prints it: R$ 23,50.
func formatBRL(value float64) string {
	return "R$ " + decimalComma(fmt.Sprintf("%.2f", value))
}

// formatKg renders kilograms with three decimals: 0,400 kg.
func formatKg(value float64) string {
	return decimalComma(fmt.Sprintf("%.3f", value)) + " kg"
}

func decimalComma(s string) string {
	return strings.Replace(s, ".", ",", 1)
}

// padRight pads s with spaces to width runes.
func padRight(s string, width int) string {
	n := len([]rune(s))
	if n >= width {
		return s
	}
	return s + strings.Repeat(" ", width-n)
}
