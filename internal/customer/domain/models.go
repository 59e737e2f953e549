package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// Customer classes drive tariff selection.
const (
	ClassResidential = "residential"
	ClassCommercial  = "commercial"
	ClassIndustrial  = "industrial"
)

// Customer is a billable water service account.
type Customer struct {
	ID             snowflake.ID    `json:"id" gorm:"primaryKey"`
	CustomerNumber string          `json:"customer_number" gorm:"type:text;not null;uniqueIndex:ux_customers_number"`
	Name           string          `json:"name" gorm:"type:text;not null"`
	Email          string          `json:"email" gorm:"type:text"`
	Phone          string          `json:"phone" gorm:"type:text"`
	Address        string          `json:"address" gorm:"type:text"`
	CustomerClass  string          `json:"customer_class" gorm:"type:text;not null;default:residential"`
	CreditBalance  decimal.Decimal `json:"credit_balance" gorm:"type:numeric;not null;default:0"`
	Active         bool            `json:"active" gorm:"not null;default:true"`
	CreatedAt      time.Time       `json:"created_at" gorm:"not null"`
	UpdatedAt      time.Time       `json:"updated_at" gorm:"not null"`
}

// TableName sets the database table name.
func (Customer) TableName() string { return "customers" }

func ValidClass(class string) bool {
	switch class {
	case ClassResidential, ClassCommercial, ClassIndustrial:
		return true
	default:
		return false
	}
}
