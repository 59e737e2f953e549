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
	MeterID snowflake.ID
	Cursor  *Cursor
	Limit   int
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, reading *MeterReading) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*MeterReading, error)
	FindFirstByMeter(ctx context.Context, db *gorm.DB, meterID snowflake.ID) (*MeterReading, error)
	FindLatestByMeter(ctx context.Context, db *gorm.DB, meterID snowflake.ID) (*MeterReading, error)
	MarkBilledThrough(ctx context.Context, db *gorm.DB, meterID snowflake.ID, through, at time.Time) error
	ListByMeter(ctx context.Context, db *gorm.DB, filter ListFilter) ([]*MeterReading, error)
}
