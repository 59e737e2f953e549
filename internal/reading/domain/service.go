package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/tirtabill/tirtabill/pkg/db/pagination"
)

type Service interface {
	Record(ctx context.Context, req RecordRequest) (*Response, error)
	ListByMeter(ctx context.Context, req ListRequest) (ListResponse, error)
}

type RecordRequest struct {
	MeterID      string     `json:"-"`
	ReadingValue string     `json:"reading_value"`
	ReadingDate  *time.Time `json:"reading_date"`
	Notes        string     `json:"notes"`
	UserID       string     `json:"-"`
}

type ListRequest struct {
	MeterID   string
	PageSize  int32
	PageToken string
}

type ListResponse struct {
	Readings []Response          `json:"readings"`
	PageInfo pagination.PageInfo `json:"page_info"`
}

type Response struct {
	ID           string     `json:"id"`
	MeterID      string     `json:"meter_id"`
	ReadingValue string     `json:"reading_value"`
	ReadingDate  time.Time  `json:"reading_date"`
	RecordedBy   string     `json:"recorded_by"`
	Notes        string     `json:"notes"`
	BilledAt     *time.Time `json:"billed_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

var (
	ErrInvalidID           = errors.New("invalid_id")
	ErrInvalidValue        = errors.New("invalid_reading_value")
	ErrInvalidPageToken    = errors.New("invalid_page_token")
	ErrMeterNotFound       = errors.New("meter_not_found")
	ErrNonMonotonicReading = errors.New("non_monotonic_reading")
)

func ParseID(value string) (snowflake.ID, error) {
	return snowflake.ParseString(value)
}
