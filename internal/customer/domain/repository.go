package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Cursor struct {
	ID        snowflake.ID
	CreatedAt time.Time
}

type ListFilter struct {
	Active *bool
	Class  string
	Cursor *Cursor
	Limit  int
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, customer *Customer) error
	Update(ctx context.Context, db *gorm.DB, customer *Customer) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Customer, error)
	FindByIDForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Customer, error)
	FindByNumber(ctx context.Context, db *gorm.DB, number string) (*Customer, error)
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]*Customer, error)
	DeactivateMeters(ctx context.Context, db *gorm.DB, customerID snowflake.ID, at time.Time) (int64, error)
}
