package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	paymentdomain "github.com/tirtabill/tirtabill/internal/payment/domain"
	"gorm.io/gorm"
)

const paymentColumns = `id, bill_id, amount, method, paid_at, transaction_reference, notes, received_by, created_at`

type repo struct{}

func Provide() paymentdomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, p *paymentdomain.Payment) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO payments (`+paymentColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID,
		p.BillID,
		p.Amount,
		p.Method,
		p.PaidAt,
		p.TransactionReference,
		p.Notes,
		p.ReceivedBy,
		p.CreatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*paymentdomain.Payment, error) {
	var payment paymentdomain.Payment
	err := db.WithContext(ctx).Raw(
		`SELECT `+paymentColumns+` FROM payments WHERE id = ?`,
		id,
	).Scan(&payment).Error
	if err != nil {
		return nil, err
	}
	if payment.ID == 0 {
		return nil, nil
	}
	return &payment, nil
}

func (r *repo) ListByBill(ctx context.Context, db *gorm.DB, filter paymentdomain.ListFilter) ([]*paymentdomain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE bill_id = ?`
	args := []any{filter.BillID}

	if filter.Cursor != nil {
		query += ` AND (created_at < ? OR (created_at = ? AND id < ?))`
		args = append(args, filter.Cursor.CreatedAt, filter.Cursor.CreatedAt, filter.Cursor.ID)
	}

	query += ` ORDER BY created_at DESC, id DESC LIMIT ?`
	args = append(args, filter.Limit)

	var payments []*paymentdomain.Payment
	if err := db.WithContext(ctx).Raw(query, args...).Scan(&payments).Error; err != nil {
		return nil, err
	}
	return payments, nil
}
