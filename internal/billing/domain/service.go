package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/tirtabill/tirtabill/pkg/db/pagination"
)

// Generation triggers, recorded on the bills_generated counter.
const (
	TriggerManual = "manual"
	TriggerSweep  = "sweep"
)

type Service interface {
	// Generate bills the consumption up to the given end reading. An
	// empty PeriodEndReadingID bills up to the meter's newest reading.
	// Calling it again for the same end reading returns the existing
	// bill without creating a new one.
	Generate(ctx context.Context, req GenerateRequest) (*Response, error)
	Cancel(ctx context.Context, req CancelRequest) (*Response, error)
	GetByID(ctx context.Context, id string) (*Response, error)
	ListByCustomer(ctx context.Context, req ListRequest) (ListResponse, error)
	ListByMeter(ctx context.Context, req ListRequest) (ListResponse, error)

	// BillableMeterIDs lists meters holding readings newer than their
	// billing watermark. The sweep feeds these back into Generate.
	BillableMeterIDs(ctx context.Context, limit int) ([]snowflake.ID, error)
	// OverdueBillIDs lists open bills whose due date has passed.
	OverdueBillIDs(ctx context.Context, before time.Time, limit int) ([]snowflake.ID, error)
	// MarkOverdue flips one past-due open bill to overdue. Amounts and
	// recorded payments are untouched.
	MarkOverdue(ctx context.Context, id snowflake.ID, userID string) (*Response, error)
}

type GenerateRequest struct {
	MeterID            string `json:"-"`
	PeriodEndReadingID string `json:"period_end_reading_id"`
	Trigger            string `json:"-"`
	UserID             string `json:"-"`
}

type CancelRequest struct {
	ID     string `json:"-"`
	Reason string `json:"reason"`
	UserID string `json:"-"`
}

type ListRequest struct {
	CustomerID string
	MeterID    string
	Status     string
	PageSize   int32
	PageToken  string
}

type ListResponse struct {
	Bills    []Response          `json:"bills"`
	PageInfo pagination.PageInfo `json:"page_info"`
}

type Response struct {
	ID                   string    `json:"id"`
	BillNumber           string    `json:"bill_number"`
	CustomerID           string    `json:"customer_id"`
	MeterID              string    `json:"meter_id"`
	PeriodStartReadingID string    `json:"period_start_reading_id,omitempty"`
	PeriodEndReadingID   string    `json:"period_end_reading_id"`
	Consumption          string    `json:"consumption"`
	RateApplied          string    `json:"rate_applied"`
	FixedCharge          string    `json:"fixed_charge"`
	TotalAmount          string    `json:"total_amount"`
	AmountPaid           string    `json:"amount_paid"`
	Status               string    `json:"status"`
	DueDate              time.Time `json:"due_date"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}

var (
	ErrInvalidID           = errors.New("invalid_id")
	ErrInvalidStatus       = errors.New("invalid_status")
	ErrInvalidPageToken    = errors.New("invalid_page_token")
	ErrNotFound            = errors.New("not_found")
	ErrMeterNotFound       = errors.New("meter_not_found")
	ErrReadingNotFound     = errors.New("reading_not_found")
	ErrInsufficientData    = errors.New("insufficient_data")
	ErrAlreadyBilled       = errors.New("already_billed")
	ErrNegativeConsumption = errors.New("negative_consumption")
	ErrNoActiveTariff      = errors.New("no_active_tariff")
	ErrBillClosed          = errors.New("bill_closed")
)

func ParseID(value string) (snowflake.ID, error) {
	return snowflake.ParseString(value)
}

func ValidStatus(status string) bool {
	switch status {
	case StatusPending, StatusPartiallyPaid, StatusPaid, StatusOverdue, StatusCancelled:
		return true
	default:
		return false
	}
}
