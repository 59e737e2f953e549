package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	tariffdomain "github.com/tirtabill/tirtabill/internal/tariff/domain"
	"gorm.io/gorm"
)

const tariffColumns = `id, name, customer_class, fixed_charge, active, effective_from, created_at, updated_at`
const tierColumns = `id, tariff_id, start_volume, end_volume, rate_per_unit`

type repo struct{}

func Provide() tariffdomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, t *tariffdomain.Tariff) error {
	err := db.WithContext(ctx).Exec(
		`INSERT INTO tariffs (`+tariffColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID,
		t.Name,
		t.CustomerClass,
		t.FixedCharge,
		t.Active,
		t.EffectiveFrom,
		t.CreatedAt,
		t.UpdatedAt,
	).Error
	if err != nil {
		return err
	}

	for _, tier := range t.Tiers {
		err = db.WithContext(ctx).Exec(
			`INSERT INTO tariff_tiers (`+tierColumns+`) VALUES (?, ?, ?, ?, ?)`,
			tier.ID,
			tier.TariffID,
			tier.StartVolume,
			tier.EndVolume,
			tier.RatePerUnit,
		).Error
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, t *tariffdomain.Tariff) error {
	return db.WithContext(ctx).Exec(
		`UPDATE tariffs SET name = ?, active = ?, updated_at = ? WHERE id = ?`,
		t.Name,
		t.Active,
		t.UpdatedAt,
		t.ID,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*tariffdomain.Tariff, error) {
	return r.findOne(ctx, db, `WHERE id = ?`, id)
}

func (r *repo) FindActiveForClass(ctx context.Context, db *gorm.DB, customerClass string, at time.Time) (*tariffdomain.Tariff, error) {
	return r.findOne(ctx, db,
		`WHERE customer_class = ? AND active = ? AND effective_from <= ?
		 ORDER BY effective_from DESC, id DESC LIMIT 1`,
		customerClass, true, at,
	)
}

func (r *repo) findOne(ctx context.Context, db *gorm.DB, where string, args ...any) (*tariffdomain.Tariff, error) {
	var tariff tariffdomain.Tariff
	err := db.WithContext(ctx).Raw(
		`SELECT `+tariffColumns+` FROM tariffs `+where,
		args...,
	).Scan(&tariff).Error
	if err != nil {
		return nil, err
	}
	if tariff.ID == 0 {
		return nil, nil
	}
	if err := r.loadTiers(ctx, db, &tariff); err != nil {
		return nil, err
	}
	return &tariff, nil
}

func (r *repo) loadTiers(ctx context.Context, db *gorm.DB, tariff *tariffdomain.Tariff) error {
	return db.WithContext(ctx).Raw(
		`SELECT `+tierColumns+` FROM tariff_tiers WHERE tariff_id = ? ORDER BY start_volume ASC`,
		tariff.ID,
	).Scan(&tariff.Tiers).Error
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter tariffdomain.ListFilter) ([]*tariffdomain.Tariff, error) {
	query := `SELECT ` + tariffColumns + ` FROM tariffs WHERE 1=1`
	args := []any{}

	if filter.CustomerClass != "" {
		query += ` AND customer_class = ?`
		args = append(args, filter.CustomerClass)
	}
	if filter.Active != nil {
		query += ` AND active = ?`
		args = append(args, *filter.Active)
	}
	query += ` ORDER BY effective_from DESC, id DESC`

	var tariffs []*tariffdomain.Tariff
	if err := db.WithContext(ctx).Raw(query, args...).Scan(&tariffs).Error; err != nil {
		return nil, err
	}
	for _, tariff := range tariffs {
		if err := r.loadTiers(ctx, db, tariff); err != nil {
			return nil, err
		}
	}
	return tariffs, nil
}
