package seed

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	customerdomain "github.com/tirtabill/tirtabill/internal/customer/domain"
	tariffdomain "github.com/tirtabill/tirtabill/internal/tariff/domain"
)

type tierSpec struct {
	start string
	end   string // empty = open-ended
	rate  string
}

type tariffSpec struct {
	name        string
	class       string
	fixedCharge string
	tiers       []tierSpec
}

// Default plans, in rupiah per cubic meter. Residential gets the usual
// increasing-block layout so basic consumption stays affordable.
var defaultTariffs = []tariffSpec{
	{
		name:        "Residential standard",
		class:       customerdomain.ClassResidential,
		fixedCharge: "10000",
		tiers: []tierSpec{
			{start: "0", end: "10", rate: "3500"},
			{start: "10", end: "20", rate: "5000"},
			{start: "20", rate: "7000"},
		},
	},
	{
		name:        "Commercial standard",
		class:       customerdomain.ClassCommercial,
		fixedCharge: "25000",
		tiers: []tierSpec{
			{start: "0", rate: "8000"},
		},
	},
	{
		name:        "Industrial standard",
		class:       customerdomain.ClassIndustrial,
		fixedCharge: "50000",
		tiers: []tierSpec{
			{start: "0", rate: "10000"},
		},
	},
}

// EnsureDefaultTariffs seeds one active plan per customer class so a
// fresh install can bill from the first reading. Classes that already
// have any tariff are left alone.
func EnsureDefaultTariffs(db *gorm.DB) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		return err
	}

	ctx := context.Background()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, spec := range defaultTariffs {
			if err := ensureTariffTx(ctx, tx, node, spec); err != nil {
				return err
			}
		}
		return nil
	})
}

func ensureTariffTx(ctx context.Context, tx *gorm.DB, node *snowflake.Node, spec tariffSpec) error {
	var count int64
	err := tx.WithContext(ctx).Model(&tariffdomain.Tariff{}).
		Where("customer_class = ?", spec.class).
		Count(&count).Error
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	fixedCharge, err := decimal.NewFromString(spec.fixedCharge)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	tariff := &tariffdomain.Tariff{
		ID:            node.Generate(),
		Name:          spec.name,
		CustomerClass: spec.class,
		FixedCharge:   fixedCharge,
		Active:        true,
		EffectiveFrom: now,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := tx.WithContext(ctx).Create(tariff).Error; err != nil {
		return err
	}

	for _, tier := range spec.tiers {
		start, err := decimal.NewFromString(tier.start)
		if err != nil {
			return err
		}
		rate, err := decimal.NewFromString(tier.rate)
		if err != nil {
			return err
		}

		row := &tariffdomain.TariffTier{
			ID:          node.Generate(),
			TariffID:    tariff.ID,
			StartVolume: start,
			RatePerUnit: rate,
		}
		if tier.end != "" {
			end, err := decimal.NewFromString(tier.end)
			if err != nil {
				return err
			}
			row.EndVolume = &end
		}
		if err := tx.WithContext(ctx).Create(row).Error; err != nil {
			return err
		}
	}
	return nil
}
