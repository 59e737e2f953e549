package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	billingdomain "github.com/tirtabill/tirtabill/internal/billing/domain"
	pkgdb "github.com/tirtabill/tirtabill/pkg/db"
	"gorm.io/gorm"
)

const billColumns = `id, bill_number, customer_id, meter_id, period_start_reading_id, period_end_reading_id, consumption, rate_applied, fixed_charge, total_amount, amount_paid, status, due_date, created_at, updated_at`

type repo struct{}

func Provide() billingdomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, b *billingdomain.Bill) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO bills (`+billColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID,
		b.BillNumber,
		b.CustomerID,
		b.MeterID,
		b.PeriodStartReadingID,
		b.PeriodEndReadingID,
		b.Consumption,
		b.RateApplied,
		b.FixedCharge,
		b.TotalAmount,
		b.AmountPaid,
		b.Status,
		b.DueDate,
		b.CreatedAt,
		b.UpdatedAt,
	).Error
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, b *billingdomain.Bill) error {
	return db.WithContext(ctx).Exec(
		`UPDATE bills SET amount_paid = ?, status = ?, updated_at = ? WHERE id = ?`,
		b.AmountPaid,
		b.Status,
		b.UpdatedAt,
		b.ID,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*billingdomain.Bill, error) {
	return r.findOne(ctx, db, `WHERE id = ?`, id)
}

func (r *repo) FindByIDForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*billingdomain.Bill, error) {
	return r.findOne(ctx, db, `WHERE id = ?`+pkgdb.LockClause(db), id)
}

func (r *repo) FindByEndReadingID(ctx context.Context, db *gorm.DB, readingID snowflake.ID) (*billingdomain.Bill, error) {
	return r.findOne(ctx, db, `WHERE period_end_reading_id = ?`, readingID)
}

func (r *repo) findOne(ctx context.Context, db *gorm.DB, where string, args ...any) (*billingdomain.Bill, error) {
	var bill billingdomain.Bill
	err := db.WithContext(ctx).Raw(
		`SELECT `+billColumns+` FROM bills `+where,
		args...,
	).Scan(&bill).Error
	if err != nil {
		return nil, err
	}
	if bill.ID == 0 {
		return nil, nil
	}
	return &bill, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter billingdomain.ListFilter) ([]*billingdomain.Bill, error) {
	query := `SELECT ` + billColumns + ` FROM bills WHERE 1=1`
	args := []any{}

	if filter.CustomerID != 0 {
		query += ` AND customer_id = ?`
		args = append(args, filter.CustomerID)
	}
	if filter.MeterID != 0 {
		query += ` AND meter_id = ?`
		args = append(args, filter.MeterID)
	}
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, filter.Status)
	}
	if filter.Cursor != nil {
		query += ` AND (created_at < ? OR (created_at = ? AND id < ?))`
		args = append(args, filter.Cursor.CreatedAt, filter.Cursor.CreatedAt, filter.Cursor.ID)
	}

	query += ` ORDER BY created_at DESC, id DESC LIMIT ?`
	args = append(args, filter.Limit)

	var bills []*billingdomain.Bill
	if err := db.WithContext(ctx).Raw(query, args...).Scan(&bills).Error; err != nil {
		return nil, err
	}
	return bills, nil
}

func (r *repo) BillableMeterIDs(ctx context.Context, db *gorm.DB, limit int) ([]snowflake.ID, error) {
	var ids []snowflake.ID
	err := db.WithContext(ctx).Raw(
		`SELECT id FROM meters
		 WHERE active = ?
		   AND EXISTS (
		     SELECT 1 FROM meter_readings
		     WHERE meter_readings.meter_id = meters.id AND meter_readings.billed_at IS NULL
		   )
		 ORDER BY id ASC LIMIT ?`+pkgdb.SkipLockedClause(db),
		true,
		limit,
	).Scan(&ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *repo) OverdueBillIDs(ctx context.Context, db *gorm.DB, before time.Time, limit int) ([]snowflake.ID, error) {
	var ids []snowflake.ID
	err := db.WithContext(ctx).Raw(
		`SELECT id FROM bills
		 WHERE status IN (?, ?) AND due_date < ?
		 ORDER BY due_date ASC LIMIT ?`,
		billingdomain.StatusPending,
		billingdomain.StatusPartiallyPaid,
		before,
		limit,
	).Scan(&ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}
