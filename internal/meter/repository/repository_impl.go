package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	meterdomain "github.com/tirtabill/tirtabill/internal/meter/domain"
	pkgdb "github.com/tirtabill/tirtabill/pkg/db"
	"gorm.io/gorm"
)

const meterColumns = `id, meter_number, customer_id, meter_type, installation_date, last_reading, last_reading_date, billed_through_reading_id, billed_through_date, active, created_at, updated_at`

type repo struct{}

func Provide() meterdomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, m *meterdomain.Meter) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO meters (`+meterColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID,
		m.MeterNumber,
		m.CustomerID,
		m.MeterType,
		m.InstallationDate,
		m.LastReading,
		m.LastReadingDate,
		m.BilledThroughReadingID,
		m.BilledThroughDate,
		m.Active,
		m.CreatedAt,
		m.UpdatedAt,
	).Error
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, m *meterdomain.Meter) error {
	return db.WithContext(ctx).Exec(
		`UPDATE meters
		 SET meter_type = ?, last_reading = ?, last_reading_date = ?, billed_through_reading_id = ?, billed_through_date = ?, active = ?, updated_at = ?
		 WHERE id = ?`,
		m.MeterType,
		m.LastReading,
		m.LastReadingDate,
		m.BilledThroughReadingID,
		m.BilledThroughDate,
		m.Active,
		m.UpdatedAt,
		m.ID,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*meterdomain.Meter, error) {
	return r.findOne(ctx, db, `WHERE id = ?`, id)
}

func (r *repo) FindByIDForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*meterdomain.Meter, error) {
	return r.findOne(ctx, db, `WHERE id = ?`+pkgdb.LockClause(db), id)
}

func (r *repo) FindByNumber(ctx context.Context, db *gorm.DB, number string) (*meterdomain.Meter, error) {
	return r.findOne(ctx, db, `WHERE meter_number = ?`, number)
}

func (r *repo) findOne(ctx context.Context, db *gorm.DB, where string, args ...any) (*meterdomain.Meter, error) {
	var meter meterdomain.Meter
	err := db.WithContext(ctx).Raw(
		`SELECT `+meterColumns+` FROM meters `+where,
		args...,
	).Scan(&meter).Error
	if err != nil {
		return nil, err
	}
	if meter.ID == 0 {
		return nil, nil
	}
	return &meter, nil
}

func (r *repo) ListByCustomer(ctx context.Context, db *gorm.DB, filter meterdomain.ListFilter) ([]*meterdomain.Meter, error) {
	query := `SELECT ` + meterColumns + ` FROM meters WHERE customer_id = ?`
	args := []any{filter.CustomerID}

	if filter.Active != nil {
		query += ` AND active = ?`
		args = append(args, *filter.Active)
	}
	if filter.Cursor != nil {
		query += ` AND (created_at < ? OR (created_at = ? AND id < ?))`
		args = append(args, filter.Cursor.CreatedAt, filter.Cursor.CreatedAt, filter.Cursor.ID)
	}

	query += ` ORDER BY created_at DESC, id DESC LIMIT ?`
	args = append(args, filter.Limit)

	var meters []*meterdomain.Meter
	if err := db.WithContext(ctx).Raw(query, args...).Scan(&meters).Error; err != nil {
		return nil, err
	}
	return meters, nil
}
