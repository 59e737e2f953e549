package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// Tariff is a priced rate plan for one customer class. A plan takes
// effect at EffectiveFrom; the newest active plan at billing time wins.
type Tariff struct {
	ID            snowflake.ID    `json:"id" gorm:"primaryKey"`
	Name          string          `json:"name" gorm:"type:text;not null"`
	CustomerClass string          `json:"customer_class" gorm:"type:text;not null;index:ix_tariffs_class"`
	FixedCharge   decimal.Decimal `json:"fixed_charge" gorm:"type:numeric;not null;default:0"`
	Active        bool            `json:"active" gorm:"not null;default:true"`
	EffectiveFrom time.Time       `json:"effective_from" gorm:"not null"`
	CreatedAt     time.Time       `json:"created_at" gorm:"not null"`
	UpdatedAt     time.Time       `json:"updated_at" gorm:"not null"`

	Tiers []TariffTier `json:"tiers" gorm:"-"`
}

// TableName sets the database table name.
func (Tariff) TableName() string { return "tariffs" }

// TariffTier prices one consumption band. EndVolume nil means the band
// is open-ended. Bands are walked in ascending StartVolume order and
// each band absorbs only the volume that falls inside it.
type TariffTier struct {
	ID          snowflake.ID     `json:"id" gorm:"primaryKey"`
	TariffID    snowflake.ID     `json:"tariff_id" gorm:"not null;index:ix_tariff_tiers_tariff"`
	StartVolume decimal.Decimal  `json:"start_volume" gorm:"type:numeric;not null"`
	EndVolume   *decimal.Decimal `json:"end_volume" gorm:"type:numeric"`
	RatePerUnit decimal.Decimal  `json:"rate_per_unit" gorm:"type:numeric;not null"`
}

// TableName sets the database table name.
func (TariffTier) TableName() string { return "tariff_tiers" }

// Quote is the outcome of pricing a consumption volume against a tariff.
// AverageRate is the volumetric amount divided by consumption and is what
// bills persist as the applied rate.
type Quote struct {
	Consumption      decimal.Decimal
	VolumetricAmount decimal.Decimal
	FixedCharge      decimal.Decimal
	Total            decimal.Decimal
	AverageRate      decimal.Decimal
}

// Price walks the tiers ascending, caps each band at its threshold and
// spills the remainder into the next one, then adds the fixed charge.
func (t *Tariff) Price(consumption decimal.Decimal) Quote {
	volumetric := decimal.Zero
	for _, tier := range t.Tiers {
		if consumption.LessThanOrEqual(tier.StartVolume) {
			break
		}
		upper := consumption
		if tier.EndVolume != nil && tier.EndVolume.LessThan(upper) {
			upper = *tier.EndVolume
		}
		band := upper.Sub(tier.StartVolume)
		if band.IsPositive() {
			volumetric = volumetric.Add(band.Mul(tier.RatePerUnit))
		}
	}

	averageRate := decimal.Zero
	if consumption.IsPositive() {
		averageRate = volumetric.Div(consumption)
	}

	return Quote{
		Consumption:      consumption,
		VolumetricAmount: volumetric,
		FixedCharge:      t.FixedCharge,
		Total:            volumetric.Add(t.FixedCharge),
		AverageRate:      averageRate,
	}
}
