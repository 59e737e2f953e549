package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// Payment methods accepted at the counter and via channels.
const (
	MethodCash     = "cash"
	MethodTransfer = "transfer"
	MethodQRIS     = "qris"
	MethodVA       = "virtual_account"
)

// Payment is one immutable ledger entry against a bill.
type Payment struct {
	ID                   snowflake.ID    `json:"id" gorm:"primaryKey"`
	BillID               snowflake.ID    `json:"bill_id" gorm:"not null;index:ix_payments_bill"`
	Amount               decimal.Decimal `json:"amount" gorm:"type:numeric;not null"`
	Method               string          `json:"method" gorm:"type:text;not null"`
	PaidAt               time.Time       `json:"paid_at" gorm:"not null"`
	TransactionReference string          `json:"transaction_reference" gorm:"type:text;not null"`
	Notes                string          `json:"notes" gorm:"type:text"`
	ReceivedBy           string          `json:"received_by" gorm:"type:text"`
	CreatedAt            time.Time       `json:"created_at" gorm:"not null"`
}

// TableName sets the database table name.
func (Payment) TableName() string { return "payments" }

func ValidMethod(method string) bool {
	switch method {
	case MethodCash, MethodTransfer, MethodQRIS, MethodVA:
		return true
	default:
		return false
	}
}
