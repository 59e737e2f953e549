package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// Meter types accepted at registration.
const (
	TypeMechanical = "mechanical"
	TypeUltrasonic = "ultrasonic"
	TypeSmart      = "smart"
)

// Meter is a physical water meter installed at a customer's premises.
// LastReading/LastReadingDate mirror the newest accepted reading so
// monotonicity checks avoid a scan of meter_readings. The billed-through
// fields mark the newest reading already consumed by a bill.
type Meter struct {
	ID                     snowflake.ID    `json:"id" gorm:"primaryKey"`
	MeterNumber            string          `json:"meter_number" gorm:"type:text;not null;uniqueIndex:ux_meters_number"`
	CustomerID             snowflake.ID    `json:"customer_id" gorm:"not null;index:ix_meters_customer"`
	MeterType              string          `json:"meter_type" gorm:"type:text;not null;default:mechanical"`
	InstallationDate       time.Time       `json:"installation_date" gorm:"not null"`
	LastReading            decimal.Decimal `json:"last_reading" gorm:"type:numeric;not null;default:0"`
	LastReadingDate        *time.Time      `json:"last_reading_date"`
	BilledThroughReadingID *snowflake.ID   `json:"billed_through_reading_id"`
	BilledThroughDate      *time.Time      `json:"billed_through_date"`
	Active                 bool            `json:"active" gorm:"not null;default:true"`
	CreatedAt              time.Time       `json:"created_at" gorm:"not null"`
	UpdatedAt              time.Time       `json:"updated_at" gorm:"not null"`
}

// TableName sets the database table name.
func (Meter) TableName() string { return "meters" }

func ValidType(meterType string) bool {
	switch meterType {
	case TypeMechanical, TypeUltrasonic, TypeSmart:
		return true
	default:
		return false
	}
}
