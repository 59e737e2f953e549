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
	CustomerID snowflake.ID
	Active     *bool
	Cursor     *Cursor
	Limit      int
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, meter *Meter) error
	Update(ctx context.Context, db *gorm.DB, meter *Meter) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Meter, error)
	FindByIDForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Meter, error)
	FindByNumber(ctx context.Context, db *gorm.DB, number string) (*Meter, error)
	ListByCustomer(ctx context.Context, db *gorm.DB, filter ListFilter) ([]*Meter, error)
}
