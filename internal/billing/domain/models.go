package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// Bill statuses. Overdue can only become paid, and only through a
// payment reaching the total. Cancelled is terminal.
const (
	StatusPending       = "pending"
	StatusPartiallyPaid = "partially_paid"
	StatusPaid          = "paid"
	StatusOverdue       = "overdue"
	StatusCancelled     = "cancelled"
)

// Bill charges the consumption between two readings. The unique index
// on PeriodEndReadingID makes generation idempotent per end reading even
// under concurrent requests.
type Bill struct {
	ID                   snowflake.ID    `json:"id" gorm:"primaryKey"`
	BillNumber           string          `json:"bill_number" gorm:"type:text;not null;uniqueIndex:ux_bills_number"`
	CustomerID           snowflake.ID    `json:"customer_id" gorm:"not null;index:ix_bills_customer"`
	MeterID              snowflake.ID    `json:"meter_id" gorm:"not null;index:ix_bills_meter"`
	PeriodStartReadingID *snowflake.ID   `json:"period_start_reading_id"`
	PeriodEndReadingID   snowflake.ID    `json:"period_end_reading_id" gorm:"not null;uniqueIndex:ux_bills_end_reading"`
	Consumption          decimal.Decimal `json:"consumption" gorm:"type:numeric;not null"`
	RateApplied          decimal.Decimal `json:"rate_applied" gorm:"type:numeric;not null"`
	FixedCharge          decimal.Decimal `json:"fixed_charge" gorm:"type:numeric;not null"`
	TotalAmount          decimal.Decimal `json:"total_amount" gorm:"type:numeric;not null"`
	AmountPaid           decimal.Decimal `json:"amount_paid" gorm:"type:numeric;not null;default:0"`
	Status               string          `json:"status" gorm:"type:text;not null;default:pending;index:ix_bills_status"`
	DueDate              time.Time       `json:"due_date" gorm:"not null"`
	CreatedAt            time.Time       `json:"created_at" gorm:"not null"`
	UpdatedAt            time.Time       `json:"updated_at" gorm:"not null"`
}

// TableName sets the database table name.
func (Bill) TableName() string { return "bills" }

// Open reports whether the bill still accepts payments.
func (b *Bill) Open() bool {
	switch b.Status {
	case StatusPending, StatusPartiallyPaid, StatusOverdue:
		return true
	default:
		return false
	}
}
