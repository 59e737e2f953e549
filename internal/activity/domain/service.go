package domain

import (
	"context"
	"errors"

	"github.com/tirtabill/tirtabill/pkg/db/pagination"
)

// Service records activity entries and serves the reverse-chronological feed.
// Record is best-effort: a failed write must never fail the caller's
// operation, so it returns nothing and recovery happens in the background.
type Service interface {
	Record(ctx context.Context, req RecordRequest)
	ListRecent(ctx context.Context, req ListRequest) (ListResponse, error)
}

type RecordRequest struct {
	ActivityType string
	Description  string
	Details      map[string]any
	UserID       string
}

type ListRequest struct {
	PageSize  int32  `form:"page_size"`
	PageToken string `form:"page_token"`
}

type ListResponse struct {
	Activities []ActivityLog       `json:"activities"`
	PageInfo   pagination.PageInfo `json:"page_info"`
}

var (
	ErrInvalidPageToken = errors.New("invalid_page_token")
)
