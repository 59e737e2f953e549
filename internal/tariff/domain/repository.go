package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type ListFilter struct {
	CustomerClass string
	Active        *bool
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, tariff *Tariff) error
	Update(ctx context.Context, db *gorm.DB, tariff *Tariff) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Tariff, error)
	FindActiveForClass(ctx context.Context, db *gorm.DB, customerClass string, at time.Time) (*Tariff, error)
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]*Tariff, error)
}
