package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	customerdomain "github.com/tirtabill/tirtabill/internal/customer/domain"
	pkgdb "github.com/tirtabill/tirtabill/pkg/db"
	"gorm.io/gorm"
)

const customerColumns = `id, customer_number, name, email, phone, address, customer_class, credit_balance, active, created_at, updated_at`

type repo struct{}

func Provide() customerdomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, c *customerdomain.Customer) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO customers (`+customerColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID,
		c.CustomerNumber,
		c.Name,
		c.Email,
		c.Phone,
		c.Address,
		c.CustomerClass,
		c.CreditBalance,
		c.Active,
		c.CreatedAt,
		c.UpdatedAt,
	).Error
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, c *customerdomain.Customer) error {
	return db.WithContext(ctx).Exec(
		`UPDATE customers
		 SET name = ?, email = ?, phone = ?, address = ?, customer_class = ?, credit_balance = ?, active = ?, updated_at = ?
		 WHERE id = ?`,
		c.Name,
		c.Email,
		c.Phone,
		c.Address,
		c.CustomerClass,
		c.CreditBalance,
		c.Active,
		c.UpdatedAt,
		c.ID,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*customerdomain.Customer, error) {
	return r.findOne(ctx, db, `WHERE id = ?`, id)
}

func (r *repo) FindByIDForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*customerdomain.Customer, error) {
	return r.findOne(ctx, db, `WHERE id = ?`+pkgdb.LockClause(db), id)
}

func (r *repo) FindByNumber(ctx context.Context, db *gorm.DB, number string) (*customerdomain.Customer, error) {
	return r.findOne(ctx, db, `WHERE customer_number = ?`, number)
}

func (r *repo) findOne(ctx context.Context, db *gorm.DB, where string, args ...any) (*customerdomain.Customer, error) {
	var customer customerdomain.Customer
	err := db.WithContext(ctx).Raw(
		`SELECT `+customerColumns+` FROM customers `+where,
		args...,
	).Scan(&customer).Error
	if err != nil {
		return nil, err
	}
	if customer.ID == 0 {
		return nil, nil
	}
	return &customer, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter customerdomain.ListFilter) ([]*customerdomain.Customer, error) {
	query := `SELECT ` + customerColumns + ` FROM customers WHERE 1=1`
	args := []any{}

	if filter.Active != nil {
		query += ` AND active = ?`
		args = append(args, *filter.Active)
	}
	if filter.Class != "" {
		query += ` AND customer_class = ?`
		args = append(args, filter.Class)
	}
	if filter.Cursor != nil {
		query += ` AND (created_at < ? OR (created_at = ? AND id < ?))`
		args = append(args, filter.Cursor.CreatedAt, filter.Cursor.CreatedAt, filter.Cursor.ID)
	}

	query += ` ORDER BY created_at DESC, id DESC LIMIT ?`
	args = append(args, filter.Limit)

	var customers []*customerdomain.Customer
	if err := db.WithContext(ctx).Raw(query, args...).Scan(&customers).Error; err != nil {
		return nil, err
	}
	return customers, nil
}

func (r *repo) DeactivateMeters(ctx context.Context, db *gorm.DB, customerID snowflake.ID, at time.Time) (int64, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE meters SET active = ?, updated_at = ? WHERE customer_id = ? AND active = ?`,
		false,
		at,
		customerID,
		true,
	)
	return result.RowsAffected, result.Error
}
