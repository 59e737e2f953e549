package numbering

import (
	"context"
	"fmt"
	"strings"

	pkgdb "github.com/tirtabill/tirtabill/pkg/db"
	"gorm.io/gorm"
)

// Sequence backs the human-facing customer, meter and bill numbers.
// Allocation happens inside the caller's transaction under a row lock,
// so a rolled-back insert never burns a number for a committed one.
type Sequence struct {
	Scope     string `gorm:"primaryKey;type:text"`
	NextValue int64  `gorm:"not null;default:1"`
}

func (Sequence) TableName() string { return "number_sequences" }

const (
	ScopeCustomer = "customer"
	ScopeMeter    = "meter"
	ScopeBill     = "bill"
)

type Allocator struct{}

func NewAllocator() *Allocator {
	return &Allocator{}
}

// Next reserves the next number in scope and formats it as PREFIX-000042.
// Must be called with an open transaction.
func (a *Allocator) Next(ctx context.Context, tx *gorm.DB, scope, prefix string) (string, error) {
	scope = strings.TrimSpace(scope)
	if scope == "" {
		return "", fmt.Errorf("numbering: empty scope")
	}

	value, err := a.claim(ctx, tx, scope)
	if err != nil {
		return "", err
	}

	return fmt.Sprintf("%s-%06d", strings.TrimSpace(prefix), value), nil
}

func (a *Allocator) claim(ctx context.Context, tx *gorm.DB, scope string) (int64, error) {
	var row Sequence
	err := tx.WithContext(ctx).Raw(
		`SELECT scope, next_value FROM number_sequences WHERE scope = ?`+pkgdb.LockClause(tx),
		scope,
	).Scan(&row).Error
	if err != nil {
		return 0, err
	}

	if row.Scope == "" {
		insertErr := tx.WithContext(ctx).Exec(
			`INSERT INTO number_sequences (scope, next_value) VALUES (?, 1)`,
			scope,
		).Error
		if insertErr != nil && !pkgdb.IsDuplicateKeyErr(insertErr) {
			return 0, insertErr
		}
		err = tx.WithContext(ctx).Raw(
			`SELECT scope, next_value FROM number_sequences WHERE scope = ?`+pkgdb.LockClause(tx),
			scope,
		).Scan(&row).Error
		if err != nil {
			return 0, err
		}
	}

	value := row.NextValue
	err = tx.WithContext(ctx).Exec(
		`UPDATE number_sequences SET next_value = ? WHERE scope = ?`,
		value+1,
		scope,
	).Error
	if err != nil {
		return 0, err
	}

	return value, nil
}
