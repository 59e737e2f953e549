package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/tirtabill/tirtabill/pkg/db/pagination"
)

type Service interface {
	Create(ctx context.Context, req CreateRequest) (*Response, error)
	GetByID(ctx context.Context, id string) (*Response, error)
	GetByNumber(ctx context.Context, number string) (*Response, error)
	ListByCustomer(ctx context.Context, req ListRequest) (ListResponse, error)
	Update(ctx context.Context, req UpdateRequest) (*Response, error)
	Deactivate(ctx context.Context, id string, userID string) (*Response, error)
}

type CreateRequest struct {
	CustomerID       string     `json:"customer_id"`
	MeterType        string     `json:"meter_type"`
	InstallationDate *time.Time `json:"installation_date"`
	UserID           string     `json:"-"`
}

type UpdateRequest struct {
	ID        string  `json:"id"`
	MeterType *string `json:"meter_type,omitempty"`
	UserID    string  `json:"-"`
}

type ListRequest struct {
	CustomerID string
	Active     *bool
	PageSize   int32
	PageToken  string
}

type ListResponse struct {
	Meters   []Response          `json:"meters"`
	PageInfo pagination.PageInfo `json:"page_info"`
}

type Response struct {
	ID                     string     `json:"id"`
	MeterNumber            string     `json:"meter_number"`
	CustomerID             string     `json:"customer_id"`
	MeterType              string     `json:"meter_type"`
	InstallationDate       time.Time  `json:"installation_date"`
	LastReading            string     `json:"last_reading"`
	LastReadingDate        *time.Time `json:"last_reading_date,omitempty"`
	BilledThroughReadingID string     `json:"billed_through_reading_id,omitempty"`
	BilledThroughDate      *time.Time `json:"billed_through_date,omitempty"`
	Active                 bool       `json:"active"`
	CreatedAt              time.Time  `json:"created_at"`
	UpdatedAt              time.Time  `json:"updated_at"`
}

var (
	ErrInvalidCustomer  = errors.New("invalid_customer")
	ErrInvalidType      = errors.New("invalid_meter_type")
	ErrInvalidID        = errors.New("invalid_id")
	ErrInvalidPageToken = errors.New("invalid_page_token")
	ErrNotFound         = errors.New("not_found")
	ErrCustomerNotFound = errors.New("customer_not_found")
)

func ParseID(value string) (snowflake.ID, error) {
	return snowflake.ParseString(value)
}
