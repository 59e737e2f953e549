package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// Cursor marks a position in the feed; ID breaks created_at ties.
type Cursor struct {
	ID        snowflake.ID
	CreatedAt time.Time
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, entry *ActivityLog) error
	ListRecent(ctx context.Context, db *gorm.DB, cursor *Cursor, limit int) ([]*ActivityLog, error)
}
