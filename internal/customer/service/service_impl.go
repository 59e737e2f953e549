package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	activitydomain "github.com/tirtabill/tirtabill/internal/activity/domain"
	"github.com/tirtabill/tirtabill/internal/clock"
	"github.com/tirtabill/tirtabill/internal/config"
	customerdomain "github.com/tirtabill/tirtabill/internal/customer/domain"
	"github.com/tirtabill/tirtabill/internal/numbering"
	"github.com/tirtabill/tirtabill/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	GenID     *snowflake.Node
	Repo      customerdomain.Repository
	Allocator *numbering.Allocator
	Clock     clock.Clock
	Policy    *config.BillingPolicyHolder
	Activity  activitydomain.Service
}

type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	genID     *snowflake.Node
	repo      customerdomain.Repository
	allocator *numbering.Allocator
	clock     clock.Clock
	policy    *config.BillingPolicyHolder
	activity  activitydomain.Service
}

func New(p Params) customerdomain.Service {
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("customer.service"),
		genID:     p.GenID,
		repo:      p.Repo,
		allocator: p.Allocator,
		clock:     p.Clock,
		policy:    p.Policy,
		activity:  p.Activity,
	}
}

func (s *Service) Create(ctx context.Context, req customerdomain.CreateRequest) (*customerdomain.Response, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, customerdomain.ErrInvalidName
	}

	class := strings.TrimSpace(req.CustomerClass)
	if class == "" {
		class = customerdomain.ClassResidential
	}
	if !customerdomain.ValidClass(class) {
		return nil, customerdomain.ErrInvalidClass
	}

	now := s.clock.Now()
	customer := &customerdomain.Customer{
		ID:            s.genID.Generate(),
		Name:          name,
		Email:         strings.TrimSpace(req.Email),
		Phone:         strings.TrimSpace(req.Phone),
		Address:       strings.TrimSpace(req.Address),
		CustomerClass: class,
		CreditBalance: decimal.Zero,
		Active:        true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		number, err := s.allocator.Next(ctx, tx, numbering.ScopeCustomer, s.policy.Get().CustomerNumberPrefix)
		if err != nil {
			return err
		}
		customer.CustomerNumber = number
		return s.repo.Insert(ctx, tx, customer)
	})
	if err != nil {
		return nil, err
	}

	s.activity.Record(ctx, activitydomain.RecordRequest{
		ActivityType: activitydomain.TypeCustomerCreated,
		Description:  "customer " + customer.CustomerNumber + " created",
		Details: map[string]any{
			"customer_id":     customer.ID.String(),
			"customer_number": customer.CustomerNumber,
			"customer_class":  customer.CustomerClass,
		},
		UserID: req.UserID,
	})

	return s.toResponse(customer), nil
}

func (s *Service) GetByID(ctx context.Context, id string) (*customerdomain.Response, error) {
	customerID, err := customerdomain.ParseID(strings.TrimSpace(id))
	if err != nil {
		return nil, customerdomain.ErrInvalidID
	}

	customer, err := s.repo.FindByID(ctx, s.db, customerID)
	if err != nil {
		return nil, err
	}
	if customer == nil {
		return nil, customerdomain.ErrNotFound
	}

	return s.toResponse(customer), nil
}

func (s *Service) GetByNumber(ctx context.Context, number string) (*customerdomain.Response, error) {
	number = strings.TrimSpace(number)
	if number == "" {
		return nil, customerdomain.ErrNotFound
	}

	customer, err := s.repo.FindByNumber(ctx, s.db, number)
	if err != nil {
		return nil, err
	}
	if customer == nil {
		return nil, customerdomain.ErrNotFound
	}

	return s.toResponse(customer), nil
}

func (s *Service) List(ctx context.Context, req customerdomain.ListRequest) (customerdomain.ListResponse, error) {
	var cursor *customerdomain.Cursor
	if strings.TrimSpace(req.PageToken) != "" {
		decoded, err := pagination.DecodeCursor(req.PageToken)
		if err != nil {
			return customerdomain.ListResponse{}, customerdomain.ErrInvalidPageToken
		}
		createdAt, err := time.Parse(time.RFC3339Nano, decoded.CreatedAt)
		if err != nil {
			return customerdomain.ListResponse{}, customerdomain.ErrInvalidPageToken
		}
		id, err := snowflake.ParseString(strings.TrimSpace(decoded.ID))
		if err != nil || id == 0 {
			return customerdomain.ListResponse{}, customerdomain.ErrInvalidPageToken
		}
		cursor = &customerdomain.Cursor{ID: id, CreatedAt: createdAt}
	}

	class := strings.TrimSpace(req.Class)
	if class != "" && !customerdomain.ValidClass(class) {
		return customerdomain.ListResponse{}, customerdomain.ErrInvalidClass
	}

	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}
	if pageSize > 250 {
		pageSize = 250
	}

	items, err := s.repo.List(ctx, s.db, customerdomain.ListFilter{
		Active: req.Active,
		Class:  class,
		Cursor: cursor,
		Limit:  int(pageSize) + 1,
	})
	if err != nil {
		return customerdomain.ListResponse{}, err
	}

	pageInfo := pagination.BuildCursorPageInfo(items, pageSize, func(item *customerdomain.Customer) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        item.ID.String(),
			CreatedAt: item.CreatedAt.Format(time.RFC3339Nano),
		})
		if err != nil {
			return ""
		}
		return token
	})
	if pageInfo.HasMore && len(items) > int(pageSize) {
		items = items[:pageSize]
	}

	customers := make([]customerdomain.Response, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		customers = append(customers, *s.toResponse(item))
	}

	return customerdomain.ListResponse{
		Customers: customers,
		PageInfo:  *pageInfo,
	}, nil
}

func (s *Service) Update(ctx context.Context, req customerdomain.UpdateRequest) (*customerdomain.Response, error) {
	customerID, err := customerdomain.ParseID(strings.TrimSpace(req.ID))
	if err != nil {
		return nil, customerdomain.ErrInvalidID
	}

	customer, err := s.repo.FindByID(ctx, s.db, customerID)
	if err != nil {
		return nil, err
	}
	if customer == nil {
		return nil, customerdomain.ErrNotFound
	}

	changed := false
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, customerdomain.ErrInvalidName
		}
		if customer.Name != name {
			customer.Name = name
			changed = true
		}
	}
	if req.Email != nil && customer.Email != strings.TrimSpace(*req.Email) {
		customer.Email = strings.TrimSpace(*req.Email)
		changed = true
	}
	if req.Phone != nil && customer.Phone != strings.TrimSpace(*req.Phone) {
		customer.Phone = strings.TrimSpace(*req.Phone)
		changed = true
	}
	if req.Address != nil && customer.Address != strings.TrimSpace(*req.Address) {
		customer.Address = strings.TrimSpace(*req.Address)
		changed = true
	}
	if req.CustomerClass != nil {
		class := strings.TrimSpace(*req.CustomerClass)
		if !customerdomain.ValidClass(class) {
			return nil, customerdomain.ErrInvalidClass
		}
		if customer.CustomerClass != class {
			customer.CustomerClass = class
			changed = true
		}
	}
	if !changed {
		return s.toResponse(customer), nil
	}

	customer.UpdatedAt = s.clock.Now()
	if err := s.repo.Update(ctx, s.db, customer); err != nil {
		return nil, err
	}

	s.activity.Record(ctx, activitydomain.RecordRequest{
		ActivityType: activitydomain.TypeCustomerUpdated,
		Description:  "customer " + customer.CustomerNumber + " updated",
		Details: map[string]any{
			"customer_id":     customer.ID.String(),
			"customer_number": customer.CustomerNumber,
		},
		UserID: req.UserID,
	})

	return s.toResponse(customer), nil
}

func (s *Service) Deactivate(ctx context.Context, id string, userID string) (*customerdomain.Response, error) {
	customerID, err := customerdomain.ParseID(strings.TrimSpace(id))
	if err != nil {
		return nil, customerdomain.ErrInvalidID
	}

	var customer *customerdomain.Customer
	var metersClosed int64
	var deactivated bool
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		customer, err = s.repo.FindByIDForUpdate(ctx, tx, customerID)
		if err != nil {
			return err
		}
		if customer == nil {
			return customerdomain.ErrNotFound
		}
		if !customer.Active {
			return nil
		}

		now := s.clock.Now()
		customer.Active = false
		customer.UpdatedAt = now
		deactivated = true
		if err := s.repo.Update(ctx, tx, customer); err != nil {
			return err
		}

		metersClosed, err = s.repo.DeactivateMeters(ctx, tx, customer.ID, now)
		return err
	})
	if err != nil {
		return nil, err
	}
	if !deactivated {
		return s.toResponse(customer), nil
	}

	s.activity.Record(ctx, activitydomain.RecordRequest{
		ActivityType: activitydomain.TypeCustomerDeactivated,
		Description:  "customer " + customer.CustomerNumber + " deactivated",
		Details: map[string]any{
			"customer_id":        customer.ID.String(),
			"customer_number":    customer.CustomerNumber,
			"meters_deactivated": metersClosed,
		},
		UserID: userID,
	})

	return s.toResponse(customer), nil
}

func (s *Service) toResponse(c *customerdomain.Customer) *customerdomain.Response {
	return &customerdomain.Response{
		ID:             c.ID.String(),
		CustomerNumber: c.CustomerNumber,
		Name:           c.Name,
		Email:          c.Email,
		Phone:          c.Phone,
		Address:        c.Address,
		CustomerClass:  c.CustomerClass,
		CreditBalance:  c.CreditBalance.String(),
		Active:         c.Active,
		CreatedAt:      c.CreatedAt,
		UpdatedAt:      c.UpdatedAt,
	}
}
