package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseRates(t *testing.T) {
	rates := parseRates("plastic=2, Glass = 1.5,metal=3")

	assert.Equal(t, map[string]float64{
		"plastic": 2,
		"glass":   1.5,
		"metal":   3,
	}, rates)
}

func TestParseRatesSkipsMalformedPairs(t *testing.T) {
	rates := parseRates("plastic=2,bogus,paper=abc,organic=-1,glass=1.5,")

	assert.Equal(t, map[string]float64{
		"plastic": 2,
		"glass":   1.5,
	}, rates)
}

func TestParseRatesDefaults(t *testing.T) {
	rates := parseRates(defaultRates)

	assert.Len(t, rates, 6)
	assert.Equal(t, float64(2), rates["plastic"])
	assert.Equal(t, float64(10), rates["electronics"])
}
