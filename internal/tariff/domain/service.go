package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

type Service interface {
	Create(ctx context.Context, req CreateRequest) (*Response, error)
	GetByID(ctx context.Context, id string) (*Response, error)
	List(ctx context.Context, req ListRequest) ([]Response, error)
	Update(ctx context.Context, req UpdateRequest) (*Response, error)
	// ResolveActive returns the newest active tariff for the class whose
	// effective_from is at or before the given instant.
	ResolveActive(ctx context.Context, customerClass string, at time.Time) (*Tariff, error)
}

type TierRequest struct {
	StartVolume string  `json:"start_volume"`
	EndVolume   *string `json:"end_volume,omitempty"`
	RatePerUnit string  `json:"rate_per_unit"`
}

type CreateRequest struct {
	Name          string        `json:"name"`
	CustomerClass string        `json:"customer_class"`
	FixedCharge   string        `json:"fixed_charge"`
	EffectiveFrom *time.Time    `json:"effective_from"`
	Tiers         []TierRequest `json:"tiers"`
	UserID        string        `json:"-"`
}

type UpdateRequest struct {
	ID     string  `json:"id"`
	Name   *string `json:"name,omitempty"`
	Active *bool   `json:"active,omitempty"`
	UserID string  `json:"-"`
}

type ListRequest struct {
	CustomerClass string
	Active        *bool
}

type TierResponse struct {
	ID          string  `json:"id"`
	StartVolume string  `json:"start_volume"`
	EndVolume   *string `json:"end_volume,omitempty"`
	RatePerUnit string  `json:"rate_per_unit"`
}

type Response struct {
	ID            string         `json:"id"`
	Name          string         `json:"name"`
	CustomerClass string         `json:"customer_class"`
	FixedCharge   string         `json:"fixed_charge"`
	Active        bool           `json:"active"`
	EffectiveFrom time.Time      `json:"effective_from"`
	Tiers         []TierResponse `json:"tiers"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

var (
	ErrInvalidName   = errors.New("invalid_name")
	ErrInvalidClass  = errors.New("invalid_customer_class")
	ErrInvalidCharge = errors.New("invalid_fixed_charge")
	ErrInvalidTiers  = errors.New("invalid_tiers")
	ErrInvalidID     = errors.New("invalid_id")
	ErrNotFound      = errors.New("not_found")
	ErrNoActive      = errors.New("no_active_tariff")
)

func ParseID(value string) (snowflake.ID, error) {
	return snowflake.ParseString(value)
}
