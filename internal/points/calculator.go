package points

import (
	"fmt"
	"math"
	"strings"

	"recycling-rewards/internal/models"
)

// ErrInvalidMaterialCategory is returned when an order carries a material
// category the rate table does not know. Unknown categories are rejected
// rather than scored as zero so data errors cannot hide as missing points.
type ErrInvalidMaterialCategory struct {
	Category string
}

func (e *ErrInvalidMaterialCategory) Error() string {
	return fmt.Sprintf("invalid material category: %q", e.Category)
}

// Calculator maps a completed order's material composition to an integer
// point award. It is pure: no I/O, no clock, no mutation of its inputs.
type Calculator struct {
	rates map[string]float64
}

// NewCalculator creates a calculator from a per-category rate table
// (points per unit of quantity). Category keys are matched case-insensitively.
func NewCalculator(rates map[string]float64) *Calculator {
	normalized := make(map[string]float64, len(rates))
	for category, rate := range rates {
		normalized[strings.ToLower(strings.TrimSpace(category))] = rate
	}
	return &Calculator{rates: normalized}
}

// OrderPoints computes the point award for an order's materials. Each line
// item contributes rate(category) * quantity; the sum is floored once at the
// end, never per item, so rounding cannot inflate the award. An order with no
// materials earns 0.
func (c *Calculator) OrderPoints(materials []models.Material) (int64, error) {
	var total float64
	for _, m := range materials {
		rate, ok := c.rates[strings.ToLower(strings.TrimSpace(m.Category))]
		if !ok {
			return 0, &ErrInvalidMaterialCategory{Category: m.Category}
		}
		total += rate * m.Quantity
	}

	if total < 0 {
		total = 0
	}

	return int64(math.Floor(total)), nil
}

// Rate returns the per-unit rate for a category and whether it is known
func (c *Calculator) Rate(category string) (float64, bool) {
	rate, ok := c.rates[strings.ToLower(strings.TrimSpace(category))]
	return rate, ok
}
