package repository

import (
	"context"

	activitydomain "github.com/tirtabill/tirtabill/internal/activity/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() activitydomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, entry *activitydomain.ActivityLog) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO activity_logs (id, activity_type, description, details, user_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		entry.ID,
		entry.ActivityType,
		entry.Description,
		entry.Details,
		entry.UserID,
		entry.CreatedAt,
	).Error
}

func (r *repo) ListRecent(ctx context.Context, db *gorm.DB, cursor *activitydomain.Cursor, limit int) ([]*activitydomain.ActivityLog, error) {
	query := `SELECT id, activity_type, description, details, user_id, created_at
	 FROM activity_logs`
	args := []any{}

	if cursor != nil {
		query += ` WHERE created_at < ? OR (created_at = ? AND id < ?)`
		args = append(args, cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
	}

	query += ` ORDER BY created_at DESC, id DESC LIMIT ?`
	args = append(args, limit)

	var entries []*activitydomain.ActivityLog
	if err := db.WithContext(ctx).Raw(query, args...).Scan(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}
