package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func tier(start string, end *string, rate string) TariffTier {
	t := TariffTier{
		StartVolume: decimal.RequireFromString(start),
		RatePerUnit: decimal.RequireFromString(rate),
	}
	if end != nil {
		v := decimal.RequireFromString(*end)
		t.EndVolume = &v
	}
	return t
}

func str(s string) *string { return &s }

func TestPriceFlatRate(t *testing.T) {
	tariff := &Tariff{
		FixedCharge: decimal.Zero,
		Tiers:       []TariffTier{tier("0", nil, "50")},
	}

	quote := tariff.Price(decimal.RequireFromString("35"))
	assert.True(t, quote.Total.Equal(decimal.RequireFromString("1750")), quote.Total.String())
	assert.True(t, quote.AverageRate.Equal(decimal.RequireFromString("50")))
}

func TestPriceTieredWithSpillover(t *testing.T) {
	// 0-10 @ 2, 10-30 @ 5, 30+ @ 9, fixed 15
	tariff := &Tariff{
		FixedCharge: decimal.RequireFromString("15"),
		Tiers: []TariffTier{
			tier("0", str("10"), "2"),
			tier("10", str("30"), "5"),
			tier("30", nil, "9"),
		},
	}

	// 42 units: 10*2 + 20*5 + 12*9 = 20 + 100 + 108 = 228
	quote := tariff.Price(decimal.RequireFromString("42"))
	assert.True(t, quote.VolumetricAmount.Equal(decimal.RequireFromString("228")), quote.VolumetricAmount.String())
	assert.True(t, quote.Total.Equal(decimal.RequireFromString("243")))

	// consumption inside the first band only
	quote = tariff.Price(decimal.RequireFromString("7"))
	assert.True(t, quote.VolumetricAmount.Equal(decimal.RequireFromString("14")))

	// band boundary is exclusive of the next band
	quote = tariff.Price(decimal.RequireFromString("10"))
	assert.True(t, quote.VolumetricAmount.Equal(decimal.RequireFromString("20")))
}

func TestPriceZeroConsumptionChargesFixedOnly(t *testing.T) {
	tariff := &Tariff{
		FixedCharge: decimal.RequireFromString("15"),
		Tiers:       []TariffTier{tier("0", nil, "50")},
	}

	quote := tariff.Price(decimal.Zero)
	assert.True(t, quote.VolumetricAmount.IsZero())
	assert.True(t, quote.Total.Equal(decimal.RequireFromString("15")))
	assert.True(t, quote.AverageRate.IsZero())
}
