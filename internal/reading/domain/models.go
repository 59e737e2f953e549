package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// MeterReading is a single accepted meter observation. BilledAt is set
// once a bill consumes the reading as its period end; after that the
// row is immutable.
type MeterReading struct {
	ID           snowflake.ID    `json:"id" gorm:"primaryKey"`
	MeterID      snowflake.ID    `json:"meter_id" gorm:"not null;index:ix_meter_readings_meter"`
	ReadingValue decimal.Decimal `json:"reading_value" gorm:"type:numeric;not null"`
	ReadingDate  time.Time       `json:"reading_date" gorm:"not null"`
	RecordedBy   string          `json:"recorded_by" gorm:"type:text"`
	Notes        string          `json:"notes" gorm:"type:text"`
	BilledAt     *time.Time      `json:"billed_at"`
	CreatedAt    time.Time       `json:"created_at" gorm:"not null"`
}

// TableName sets the database table name.
func (MeterReading) TableName() string { return "meter_readings" }
