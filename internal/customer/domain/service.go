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
	List(ctx context.Context, req ListRequest) (ListResponse, error)
	Update(ctx context.Context, req UpdateRequest) (*Response, error)
	Deactivate(ctx context.Context, id string, userID string) (*Response, error)
}

type CreateRequest struct {
	Name          string `json:"name"`
	Email         string `json:"email"`
	Phone         string `json:"phone"`
	Address       string `json:"address"`
	CustomerClass string `json:"customer_class"`
	UserID        string `json:"-"`
}

type UpdateRequest struct {
	ID            string  `json:"id"`
	Name          *string `json:"name,omitempty"`
	Email         *string `json:"email,omitempty"`
	Phone         *string `json:"phone,omitempty"`
	Address       *string `json:"address,omitempty"`
	CustomerClass *string `json:"customer_class,omitempty"`
	UserID        string  `json:"-"`
}

type ListRequest struct {
	Active    *bool
	Class     string
	PageSize  int32
	PageToken string
}

type ListResponse struct {
	Customers []Response          `json:"customers"`
	PageInfo  pagination.PageInfo `json:"page_info"`
}

type Response struct {
	ID             string    `json:"id"`
	CustomerNumber string    `json:"customer_number"`
	Name           string    `json:"name"`
	Email          string    `json:"email"`
	Phone          string    `json:"phone"`
	Address        string    `json:"address"`
	CustomerClass  string    `json:"customer_class"`
	CreditBalance  string    `json:"credit_balance"`
	Active         bool      `json:"active"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

var (
	ErrInvalidName      = errors.New("invalid_name")
	ErrInvalidClass     = errors.New("invalid_customer_class")
	ErrInvalidID        = errors.New("invalid_id")
	ErrInvalidPageToken = errors.New("invalid_page_token")
	ErrNotFound         = errors.New("not_found")
	ErrNotActive        = errors.New("customer_not_active")
)

func ParseID(value string) (snowflake.ID, error) {
	return snowflake.ParseString(value)
}
