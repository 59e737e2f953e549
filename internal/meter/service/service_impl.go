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
	meterdomain "github.com/tirtabill/tirtabill/internal/meter/domain"
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
	Repo      meterdomain.Repository
	Customers customerdomain.Repository
	Allocator *numbering.Allocator
	Clock     clock.Clock
	Policy    *config.BillingPolicyHolder
	Activity  activitydomain.Service
}

type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	genID     *snowflake.Node
	repo      meterdomain.Repository
	customers customerdomain.Repository
	allocator *numbering.Allocator
	clock     clock.Clock
	policy    *config.BillingPolicyHolder
	activity  activitydomain.Service
}

func New(p Params) meterdomain.Service {
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("meter.service"),
		genID:     p.GenID,
		repo:      p.Repo,
		customers: p.Customers,
		allocator: p.Allocator,
		clock:     p.Clock,
		policy:    p.Policy,
		activity:  p.Activity,
	}
}

func (s *Service) Create(ctx context.Context, req meterdomain.CreateRequest) (*meterdomain.Response, error) {
	customerID, err := meterdomain.ParseID(strings.TrimSpace(req.CustomerID))
	if err != nil || customerID == 0 {
		return nil, meterdomain.ErrInvalidCustomer
	}

	meterType := strings.TrimSpace(req.MeterType)
	if meterType == "" {
		meterType = meterdomain.TypeMechanical
	}
	if !meterdomain.ValidType(meterType) {
		return nil, meterdomain.ErrInvalidType
	}

	now := s.clock.Now()
	installedAt := now
	if req.InstallationDate != nil {
		installedAt = *req.InstallationDate
	}

	meter := &meterdomain.Meter{
		ID:               s.genID.Generate(),
		CustomerID:       customerID,
		MeterType:        meterType,
		InstallationDate: installedAt,
		LastReading:      decimal.Zero,
		Active:           true,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		customer, err := s.customers.FindByID(ctx, tx, customerID)
		if err != nil {
			return err
		}
		if customer == nil || !customer.Active {
			return meterdomain.ErrCustomerNotFound
		}

		number, err := s.allocator.Next(ctx, tx, numbering.ScopeMeter, s.policy.Get().MeterNumberPrefix)
		if err != nil {
			return err
		}
		meter.MeterNumber = number
		return s.repo.Insert(ctx, tx, meter)
	})
	if err != nil {
		return nil, err
	}

	s.activity.Record(ctx, activitydomain.RecordRequest{
		ActivityType: activitydomain.TypeMeterRegistered,
		Description:  "meter " + meter.MeterNumber + " registered",
		Details: map[string]any{
			"meter_id":     meter.ID.String(),
			"meter_number": meter.MeterNumber,
			"customer_id":  meter.CustomerID.String(),
			"meter_type":   meter.MeterType,
		},
		UserID: req.UserID,
	})

	return s.toResponse(meter), nil
}

func (s *Service) GetByID(ctx context.Context, id string) (*meterdomain.Response, error) {
	meterID, err := meterdomain.ParseID(strings.TrimSpace(id))
	if err != nil {
		return nil, meterdomain.ErrInvalidID
	}

	meter, err := s.repo.FindByID(ctx, s.db, meterID)
	if err != nil {
		return nil, err
	}
	if meter == nil {
		return nil, meterdomain.ErrNotFound
	}

	return s.toResponse(meter), nil
}

func (s *Service) GetByNumber(ctx context.Context, number string) (*meterdomain.Response, error) {
	number = strings.TrimSpace(number)
	if number == "" {
		return nil, meterdomain.ErrNotFound
	}

	meter, err := s.repo.FindByNumber(ctx, s.db, number)
	if err != nil {
		return nil, err
	}
	if meter == nil {
		return nil, meterdomain.ErrNotFound
	}

	return s.toResponse(meter), nil
}

func (s *Service) ListByCustomer(ctx context.Context, req meterdomain.ListRequest) (meterdomain.ListResponse, error) {
	customerID, err := meterdomain.ParseID(strings.TrimSpace(req.CustomerID))
	if err != nil || customerID == 0 {
		return meterdomain.ListResponse{}, meterdomain.ErrInvalidCustomer
	}

	var cursor *meterdomain.Cursor
	if strings.TrimSpace(req.PageToken) != "" {
		decoded, err := pagination.DecodeCursor(req.PageToken)
		if err != nil {
			return meterdomain.ListResponse{}, meterdomain.ErrInvalidPageToken
		}
		createdAt, err := time.Parse(time.RFC3339Nano, decoded.CreatedAt)
		if err != nil {
			return meterdomain.ListResponse{}, meterdomain.ErrInvalidPageToken
		}
		id, err := snowflake.ParseString(strings.TrimSpace(decoded.ID))
		if err != nil || id == 0 {
			return meterdomain.ListResponse{}, meterdomain.ErrInvalidPageToken
		}
		cursor = &meterdomain.Cursor{ID: id, CreatedAt: createdAt}
	}

	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}
	if pageSize > 250 {
		pageSize = 250
	}

	items, err := s.repo.ListByCustomer(ctx, s.db, meterdomain.ListFilter{
		CustomerID: customerID,
		Active:     req.Active,
		Cursor:     cursor,
		Limit:      int(pageSize) + 1,
	})
	if err != nil {
		return meterdomain.ListResponse{}, err
	}

	pageInfo := pagination.BuildCursorPageInfo(items, pageSize, func(item *meterdomain.Meter) string {
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

	meters := make([]meterdomain.Response, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		meters = append(meters, *s.toResponse(item))
	}

	return meterdomain.ListResponse{
		Meters:   meters,
		PageInfo: *pageInfo,
	}, nil
}

func (s *Service) Update(ctx context.Context, req meterdomain.UpdateRequest) (*meterdomain.Response, error) {
	meterID, err := meterdomain.ParseID(strings.TrimSpace(req.ID))
	if err != nil {
		return nil, meterdomain.ErrInvalidID
	}

	meter, err := s.repo.FindByID(ctx, s.db, meterID)
	if err != nil {
		return nil, err
	}
	if meter == nil {
		return nil, meterdomain.ErrNotFound
	}

	changed := false
	if req.MeterType != nil {
		meterType := strings.TrimSpace(*req.MeterType)
		if !meterdomain.ValidType(meterType) {
			return nil, meterdomain.ErrInvalidType
		}
		if meter.MeterType != meterType {
			meter.MeterType = meterType
			changed = true
		}
	}
	if !changed {
		return s.toResponse(meter), nil
	}

	meter.UpdatedAt = s.clock.Now()
	if err := s.repo.Update(ctx, s.db, meter); err != nil {
		return nil, err
	}

	s.activity.Record(ctx, activitydomain.RecordRequest{
		ActivityType: activitydomain.TypeMeterUpdated,
		Description:  "meter " + meter.MeterNumber + " updated",
		Details: map[string]any{
			"meter_id":     meter.ID.String(),
			"meter_number": meter.MeterNumber,
		},
		UserID: req.UserID,
	})

	return s.toResponse(meter), nil
}

func (s *Service) Deactivate(ctx context.Context, id string, userID string) (*meterdomain.Response, error) {
	meterID, err := meterdomain.ParseID(strings.TrimSpace(id))
	if err != nil {
		return nil, meterdomain.ErrInvalidID
	}

	var meter *meterdomain.Meter
	var deactivated bool
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		meter, err = s.repo.FindByIDForUpdate(ctx, tx, meterID)
		if err != nil {
			return err
		}
		if meter == nil {
			return meterdomain.ErrNotFound
		}
		if !meter.Active {
			return nil
		}

		meter.Active = false
		meter.UpdatedAt = s.clock.Now()
		deactivated = true
		return s.repo.Update(ctx, tx, meter)
	})
	if err != nil {
		return nil, err
	}
	if !deactivated {
		return s.toResponse(meter), nil
	}

	s.activity.Record(ctx, activitydomain.RecordRequest{
		ActivityType: activitydomain.TypeMeterDeactivated,
		Description:  "meter " + meter.MeterNumber + " deactivated",
		Details: map[string]any{
			"meter_id":     meter.ID.String(),
			"meter_number": meter.MeterNumber,
		},
		UserID: userID,
	})

	return s.toResponse(meter), nil
}

func (s *Service) toResponse(m *meterdomain.Meter) *meterdomain.Response {
	resp := &meterdomain.Response{
		ID:                m.ID.String(),
		MeterNumber:       m.MeterNumber,
		CustomerID:        m.CustomerID.String(),
		MeterType:         m.MeterType,
		InstallationDate:  m.InstallationDate,
		LastReading:       m.LastReading.String(),
		LastReadingDate:   m.LastReadingDate,
		BilledThroughDate: m.BilledThroughDate,
		Active:            m.Active,
		CreatedAt:         m.CreatedAt,
		UpdatedAt:         m.UpdatedAt,
	}
	if m.BilledThroughReadingID != nil {
		resp.BilledThroughReadingID = m.BilledThroughReadingID.String()
	}
	return resp
}
