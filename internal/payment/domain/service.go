package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/tirtabill/tirtabill/pkg/db/pagination"
)

type Service interface {
	// Apply books a payment against an open bill and moves the bill
	// through partially_paid/paid. Overpayment handling follows the
	// configured policy: reject the payment, or cap the bill and book
	// the surplus as customer credit.
	Apply(ctx context.Context, req ApplyRequest) (*Response, error)
	GetByID(ctx context.Context, id string) (*Response, error)
	ListByBill(ctx context.Context, req ListRequest) (ListResponse, error)
}

type ApplyRequest struct {
	BillID               string     `json:"-"`
	Amount               string     `json:"amount"`
	Method               string     `json:"method"`
	PaidAt               *time.Time `json:"paid_at"`
	TransactionReference string     `json:"transaction_reference"`
	Notes                string     `json:"notes"`
	UserID               string     `json:"-"`
}

type ListRequest struct {
	BillID    string
	PageSize  int32
	PageToken string
}

type ListResponse struct {
	Payments []Response          `json:"payments"`
	PageInfo pagination.PageInfo `json:"page_info"`
}

type Response struct {
	ID                   string    `json:"id"`
	BillID               string    `json:"bill_id"`
	Amount               string    `json:"amount"`
	Method               string    `json:"method"`
	PaidAt               time.Time `json:"paid_at"`
	TransactionReference string    `json:"transaction_reference"`
	Notes                string    `json:"notes"`
	ReceivedBy           string    `json:"received_by"`
	BillStatus           string    `json:"bill_status"`
	BillAmountPaid       string    `json:"bill_amount_paid"`
	CreditedAmount       string    `json:"credited_amount,omitempty"`
	CreatedAt            time.Time `json:"created_at"`
}

var (
	ErrInvalidID        = errors.New("invalid_id")
	ErrInvalidAmount    = errors.New("invalid_amount")
	ErrInvalidMethod    = errors.New("invalid_method")
	ErrInvalidPageToken = errors.New("invalid_page_token")
	ErrNotFound         = errors.New("not_found")
	ErrBillNotFound     = errors.New("bill_not_found")
	ErrBillClosed       = errors.New("bill_closed")
	ErrOverpayment      = errors.New("overpayment")
)

func ParseID(value string) (snowflake.ID, error) {
	return snowflake.ParseString(value)
}
