package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// ActivityLog is one append-only entry in the customer activity feed.
type ActivityLog struct {
	ID           snowflake.ID      `json:"id" gorm:"primaryKey"`
	ActivityType string            `json:"activity_type" gorm:"type:text;not null"`
	Description  string            `json:"description" gorm:"type:text;not null"`
	Details      datatypes.JSONMap `json:"details" gorm:"type:jsonb"`
	UserID       string            `json:"user_id" gorm:"type:text;not null"`
	CreatedAt    time.Time         `json:"created_at" gorm:"not null;index:ix_activity_logs_created_at"`
}

// TableName sets the database table name.
func (ActivityLog) TableName() string { return "activity_logs" }

// Activity types emitted by the platform.
const (
	TypeCustomerCreated     = "customer_created"
	TypeCustomerUpdated     = "customer_updated"
	TypeCustomerDeactivated = "customer_deactivated"
	TypeMeterRegistered     = "meter_registered"
	TypeMeterUpdated        = "meter_updated"
	TypeMeterDeactivated    = "meter_deactivated"
	TypeReadingRecorded     = "reading_recorded"
	TypeBillGenerated       = "bill_generated"
	TypeBillCancelled       = "bill_cancelled"
	TypeBillOverdue         = "bill_overdue"
	TypePaymentReceived     = "payment_received"
)
