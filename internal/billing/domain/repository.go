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
	MeterID    snowflake.ID
	Status     string
	Cursor     *Cursor
	Limit      int
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, bill *Bill) error
	Update(ctx context.Context, db *gorm.DB, bill *Bill) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Bill, error)
	FindByIDForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Bill, error)
	FindByEndReadingID(ctx context.Context, db *gorm.DB, readingID snowflake.ID) (*Bill, error)
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]*Bill, error)
	// BillableMeterIDs selects meters with readings newer than the
	// watermark, skipping rows locked by a concurrent sweep.
	BillableMeterIDs(ctx context.Context, db *gorm.DB, limit int) ([]snowflake.ID, error)
	OverdueBillIDs(ctx context.Context, db *gorm.DB, before time.Time, limit int) ([]snowflake.ID, error)
}
