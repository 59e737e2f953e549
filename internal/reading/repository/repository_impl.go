package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	readingdomain "github.com/tirtabill/tirtabill/internal/reading/domain"
	"gorm.io/gorm"
)

const readingColumns = `id, meter_id, reading_value, reading_date, recorded_by, notes, billed_at, created_at`

type repo struct{}

func Provide() readingdomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, reading *readingdomain.MeterReading) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO meter_readings (`+readingColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		reading.ID,
		reading.MeterID,
		reading.ReadingValue,
		reading.ReadingDate,
		reading.RecordedBy,
		reading.Notes,
		reading.BilledAt,
		reading.CreatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*readingdomain.MeterReading, error) {
	return r.findOne(ctx, db, `WHERE id = ?`, id)
}

func (r *repo) FindFirstByMeter(ctx context.Context, db *gorm.DB, meterID snowflake.ID) (*readingdomain.MeterReading, error) {
	return r.findOne(ctx, db, `WHERE meter_id = ? ORDER BY reading_date ASC, id ASC LIMIT 1`, meterID)
}

func (r *repo) FindLatestByMeter(ctx context.Context, db *gorm.DB, meterID snowflake.ID) (*readingdomain.MeterReading, error) {
	return r.findOne(ctx, db, `WHERE meter_id = ? ORDER BY reading_date DESC, id DESC LIMIT 1`, meterID)
}

func (r *repo) findOne(ctx context.Context, db *gorm.DB, where string, args ...any) (*readingdomain.MeterReading, error) {
	var reading readingdomain.MeterReading
	err := db.WithContext(ctx).Raw(
		`SELECT `+readingColumns+` FROM meter_readings `+where,
		args...,
	).Scan(&reading).Error
	if err != nil {
		return nil, err
	}
	if reading.ID == 0 {
		return nil, nil
	}
	return &reading, nil
}

// MarkBilledThrough stamps every unbilled reading up to and including
// the period end date. Leaving interior readings unstamped would make
// the meter look billable forever.
func (r *repo) MarkBilledThrough(ctx context.Context, db *gorm.DB, meterID snowflake.ID, through, at time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE meter_readings SET billed_at = ? WHERE meter_id = ? AND reading_date <= ? AND billed_at IS NULL`,
		at,
		meterID,
		through,
	).Error
}

func (r *repo) ListByMeter(ctx context.Context, db *gorm.DB, filter readingdomain.ListFilter) ([]*readingdomain.MeterReading, error) {
	query := `SELECT ` + readingColumns + ` FROM meter_readings WHERE meter_id = ?`
	args := []any{filter.MeterID}

	if filter.Cursor != nil {
		query += ` AND (created_at < ? OR (created_at = ? AND id < ?))`
		args = append(args, filter.Cursor.CreatedAt, filter.Cursor.CreatedAt, filter.Cursor.ID)
	}

	query += ` ORDER BY created_at DESC, id DESC LIMIT ?`
	args = append(args, filter.Limit)

	var readings []*readingdomain.MeterReading
	if err := db.WithContext(ctx).Raw(query, args...).Scan(&readings).Error; err != nil {
		return nil, err
	}
	return readings, nil
}
