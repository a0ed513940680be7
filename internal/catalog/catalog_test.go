package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"checkout-engine/internal/domain"
)

func TestComputeQuoteStarterNoAddOns(t *testing.T) {
	quote, err := ComputeQuote("starter", nil)
	require.NoError(t, err)

	assert.Equal(t, int64(499900), quote.BasePrice)
	assert.Equal(t, int64(0), quote.AddOnAmount)
	assert.Equal(t, int64(89982), quote.TaxAmount)
	assert.Equal(t, int64(589882), quote.Total)
	assert.Equal(t, "INR", quote.Currency)
}

func TestComputeQuoteAdditivity(t *testing.T) {
	cases := []struct {
		plan   string
		addOns []string
	}{
		{"verification", nil},
		{"starter", []string{"seo-boost"}},
		{"growth", []string{"seo-boost", "logo-design", "content-pack"}},
		{"custom", []string{"express-build"}},
	}
	for _, tc := range cases {
		quote, err := ComputeQuote(tc.plan, tc.addOns)
		require.NoError(t, err)
		assert.Equal(t, quote.Total, quote.BasePrice+quote.AddOnAmount+quote.TaxAmount,
			"total must equal the sum of its parts for %s", tc.plan)
	}
}

func TestComputeQuoteDeterministic(t *testing.T) {
	first, err := ComputeQuote("growth", []string{"logo-design", "seo-boost"})
	require.NoError(t, err)
	second, err := ComputeQuote("growth", []string{"logo-design", "seo-boost"})
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestComputeQuoteDeduplicatesAddOns(t *testing.T) {
	once, err := ComputeQuote("starter", []string{"seo-boost"})
	require.NoError(t, err)
	twice, err := ComputeQuote("starter", []string{"seo-boost", "seo-boost"})
	require.NoError(t, err)
	assert.Equal(t, once.AddOnAmount, twice.AddOnAmount)
	assert.Equal(t, once.Total, twice.Total)
}

func TestComputeQuoteUnknownIDs(t *testing.T) {
	_, err := ComputeQuote("platinum", nil)
	assert.ErrorIs(t, err, domain.ErrUnknownPlan)

	_, err = ComputeQuote("starter", []string{"time-machine"})
	assert.ErrorIs(t, err, domain.ErrUnknownAddOn)
}

func TestRoundHalfUp(t *testing.T) {
	// 499900 * 0.18 = 89982 exactly.
	assert.Equal(t, int64(89982), roundHalfUpBasisPoints(499900, 1800))
	// 3 * 18% = 0.54 -> 1 after half-up.
	assert.Equal(t, int64(1), roundHalfUpBasisPoints(3, 1800))
	// 2 * 18% = 0.36 -> 0.
	assert.Equal(t, int64(0), roundHalfUpBasisPoints(2, 1800))
	// 25 * 18% = 4.5 -> 5, half rounds up.
	assert.Equal(t, int64(5), roundHalfUpBasisPoints(25, 1800))
}
