package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	activitydomain "github.com/tirtabill/tirtabill/internal/activity/domain"
	billingdomain "github.com/tirtabill/tirtabill/internal/billing/domain"
	"github.com/tirtabill/tirtabill/internal/clock"
	"github.com/tirtabill/tirtabill/internal/config"
	customerdomain "github.com/tirtabill/tirtabill/internal/customer/domain"
	meterdomain "github.com/tirtabill/tirtabill/internal/meter/domain"
	"github.com/tirtabill/tirtabill/internal/numbering"
	"github.com/tirtabill/tirtabill/internal/observability/metrics"
	readingdomain "github.com/tirtabill/tirtabill/internal/reading/domain"
	tariffdomain "github.com/tirtabill/tirtabill/internal/tariff/domain"
	pkgdb "github.com/tirtabill/tirtabill/pkg/db"
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
	Repo      billingdomain.Repository
	Meters    meterdomain.Repository
	Readings  readingdomain.Repository
	Customers customerdomain.Repository
	Tariffs   tariffdomain.Repository
	Allocator *numbering.Allocator
	Clock     clock.Clock
	Policy    *config.BillingPolicyHolder
	Metrics   *metrics.Metrics `optional:"true"`
	Activity  activitydomain.Service
}

type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	genID     *snowflake.Node
	repo      billingdomain.Repository
	meters    meterdomain.Repository
	readings  readingdomain.Repository
	customers customerdomain.Repository
	tariffs   tariffdomain.Repository
	allocator *numbering.Allocator
	clock     clock.Clock
	policy    *config.BillingPolicyHolder
	metrics   *metrics.Metrics
	activity  activitydomain.Service
}

func New(p Params) billingdomain.Service {
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("billing.service"),
		genID:     p.GenID,
		repo:      p.Repo,
		meters:    p.Meters,
		readings:  p.Readings,
		customers: p.Customers,
		tariffs:   p.Tariffs,
		allocator: p.Allocator,
		clock:     p.Clock,
		policy:    p.Policy,
		metrics:   p.Metrics,
		activity:  p.Activity,
	}
}

func (s *Service) Generate(ctx context.Context, req billingdomain.GenerateRequest) (*billingdomain.Response, error) {
	meterID, err := billingdomain.ParseID(strings.TrimSpace(req.MeterID))
	if err != nil || meterID == 0 {
		return nil, billingdomain.ErrInvalidID
	}

	var requestedReadingID snowflake.ID
	if strings.TrimSpace(req.PeriodEndReadingID) != "" {
		requestedReadingID, err = billingdomain.ParseID(strings.TrimSpace(req.PeriodEndReadingID))
		if err != nil || requestedReadingID == 0 {
			return nil, billingdomain.ErrInvalidID
		}
	}

	trigger := req.Trigger
	if trigger == "" {
		trigger = billingdomain.TriggerManual
	}

	now := s.clock.Now()
	var bill *billingdomain.Bill
	var existing bool
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		meter, err := s.meters.FindByIDForUpdate(ctx, tx, meterID)
		if err != nil {
			return err
		}
		if meter == nil {
			return billingdomain.ErrMeterNotFound
		}

		endReading, err := s.resolveEndReading(ctx, tx, meter, requestedReadingID)
		if err != nil {
			return err
		}

		// a bill for this end reading already exists: hand it back
		if prior, err := s.repo.FindByEndReadingID(ctx, tx, endReading.ID); err != nil {
			return err
		} else if prior != nil {
			bill = prior
			existing = true
			return nil
		}

		if meter.BilledThroughDate != nil && !endReading.ReadingDate.After(*meter.BilledThroughDate) {
			return billingdomain.ErrAlreadyBilled
		}
		if endReading.BilledAt != nil {
			return billingdomain.ErrAlreadyBilled
		}

		startReading, err := s.resolveStartReading(ctx, tx, meter)
		if err != nil {
			return err
		}

		startValue := endReading.ReadingValue
		var startReadingID *snowflake.ID
		if startReading != nil && startReading.ID != endReading.ID {
			startValue = startReading.ReadingValue
			startReadingID = &startReading.ID
		}

		consumption := endReading.ReadingValue.Sub(startValue)
		if consumption.IsNegative() {
			return billingdomain.ErrNegativeConsumption
		}

		customer, err := s.customers.FindByID(ctx, tx, meter.CustomerID)
		if err != nil {
			return err
		}
		if customer == nil {
			return billingdomain.ErrMeterNotFound
		}

		tariff, err := s.tariffs.FindActiveForClass(ctx, tx, customer.CustomerClass, now)
		if err != nil {
			return err
		}
		if tariff == nil {
			return billingdomain.ErrNoActiveTariff
		}
		quote := tariff.Price(consumption)

		policy := s.policy.Get()
		number, err := s.allocator.Next(ctx, tx, numbering.ScopeBill, policy.BillNumberPrefix)
		if err != nil {
			return err
		}

		bill = &billingdomain.Bill{
			ID:                   s.genID.Generate(),
			BillNumber:           number,
			CustomerID:           meter.CustomerID,
			MeterID:              meter.ID,
			PeriodStartReadingID: startReadingID,
			PeriodEndReadingID:   endReading.ID,
			Consumption:          consumption,
			RateApplied:          quote.AverageRate,
			FixedCharge:          quote.FixedCharge,
			TotalAmount:          quote.Total,
			AmountPaid:           decimal.Zero,
			Status:               billingdomain.StatusPending,
			DueDate:              now.AddDate(0, 0, policy.DueGracePeriodDays),
			CreatedAt:            now,
			UpdatedAt:            now,
		}
		if err := s.repo.Insert(ctx, tx, bill); err != nil {
			return err
		}

		if err := s.readings.MarkBilledThrough(ctx, tx, meter.ID, endReading.ReadingDate, now); err != nil {
			return err
		}

		meter.BilledThroughReadingID = &endReading.ID
		meter.BilledThroughDate = &endReading.ReadingDate
		meter.UpdatedAt = now
		return s.meters.Update(ctx, tx, meter)
	})
	if err != nil {
		// lost an insert race on the unique end-reading index: the
		// winner's bill is the answer
		if pkgdb.IsDuplicateKeyErr(err) && requestedReadingID != 0 {
			if prior, findErr := s.repo.FindByEndReadingID(ctx, s.db, requestedReadingID); findErr == nil && prior != nil {
				return s.toResponse(prior), nil
			}
		}
		return nil, err
	}

	if existing {
		return s.toResponse(bill), nil
	}

	s.metrics.RecordBillGenerated(trigger)
	s.activity.Record(ctx, activitydomain.RecordRequest{
		ActivityType: activitydomain.TypeBillGenerated,
		Description:  "bill " + bill.BillNumber + " generated",
		Details: map[string]any{
			"bill_id":      bill.ID.String(),
			"bill_number":  bill.BillNumber,
			"meter_id":     bill.MeterID.String(),
			"customer_id":  bill.CustomerID.String(),
			"consumption":  bill.Consumption.String(),
			"total_amount": bill.TotalAmount.String(),
			"trigger":      trigger,
		},
		UserID: req.UserID,
	})

	return s.toResponse(bill), nil
}

func (s *Service) resolveEndReading(ctx context.Context, tx *gorm.DB, meter *meterdomain.Meter, requested snowflake.ID) (*readingdomain.MeterReading, error) {
	if requested != 0 {
		reading, err := s.readings.FindByID(ctx, tx, requested)
		if err != nil {
			return nil, err
		}
		if reading == nil || reading.MeterID != meter.ID {
			return nil, billingdomain.ErrReadingNotFound
		}
		return reading, nil
	}

	reading, err := s.readings.FindLatestByMeter(ctx, tx, meter.ID)
	if err != nil {
		return nil, err
	}
	if reading == nil {
		return nil, billingdomain.ErrInsufficientData
	}
	return reading, nil
}

// resolveStartReading picks the watermark reading, or the meter's first
// reading for a meter that has never been billed.
func (s *Service) resolveStartReading(ctx context.Context, tx *gorm.DB, meter *meterdomain.Meter) (*readingdomain.MeterReading, error) {
	if meter.BilledThroughReadingID != nil {
		reading, err := s.readings.FindByID(ctx, tx, *meter.BilledThroughReadingID)
		if err != nil {
			return nil, err
		}
		if reading != nil {
			return reading, nil
		}
	}
	return s.readings.FindFirstByMeter(ctx, tx, meter.ID)
}

func (s *Service) Cancel(ctx context.Context, req billingdomain.CancelRequest) (*billingdomain.Response, error) {
	billID, err := billingdomain.ParseID(strings.TrimSpace(req.ID))
	if err != nil {
		return nil, billingdomain.ErrInvalidID
	}

	var bill *billingdomain.Bill
	var cancelled bool
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		bill, err = s.repo.FindByIDForUpdate(ctx, tx, billID)
		if err != nil {
			return err
		}
		if bill == nil {
			return billingdomain.ErrNotFound
		}
		if bill.Status == billingdomain.StatusCancelled {
			return nil
		}
		if bill.Status == billingdomain.StatusPaid {
			return billingdomain.ErrBillClosed
		}

		bill.Status = billingdomain.StatusCancelled
		bill.UpdatedAt = s.clock.Now()
		cancelled = true
		return s.repo.Update(ctx, tx, bill)
	})
	if err != nil {
		return nil, err
	}

	if cancelled {
		s.activity.Record(ctx, activitydomain.RecordRequest{
			ActivityType: activitydomain.TypeBillCancelled,
			Description:  "bill " + bill.BillNumber + " cancelled",
			Details: map[string]any{
				"bill_id":     bill.ID.String(),
				"bill_number": bill.BillNumber,
				"reason":      strings.TrimSpace(req.Reason),
				"amount_paid": bill.AmountPaid.String(),
				"residual":    bill.TotalAmount.Sub(bill.AmountPaid).String(),
			},
			UserID: req.UserID,
		})
	}

	return s.toResponse(bill), nil
}

func (s *Service) GetByID(ctx context.Context, id string) (*billingdomain.Response, error) {
	billID, err := billingdomain.ParseID(strings.TrimSpace(id))
	if err != nil {
		return nil, billingdomain.ErrInvalidID
	}

	bill, err := s.repo.FindByID(ctx, s.db, billID)
	if err != nil {
		return nil, err
	}
	if bill == nil {
		return nil, billingdomain.ErrNotFound
	}

	return s.toResponse(bill), nil
}

func (s *Service) ListByCustomer(ctx context.Context, req billingdomain.ListRequest) (billingdomain.ListResponse, error) {
	customerID, err := billingdomain.ParseID(strings.TrimSpace(req.CustomerID))
	if err != nil || customerID == 0 {
		return billingdomain.ListResponse{}, billingdomain.ErrInvalidID
	}
	return s.list(ctx, req, billingdomain.ListFilter{CustomerID: customerID})
}

func (s *Service) ListByMeter(ctx context.Context, req billingdomain.ListRequest) (billingdomain.ListResponse, error) {
	meterID, err := billingdomain.ParseID(strings.TrimSpace(req.MeterID))
	if err != nil || meterID == 0 {
		return billingdomain.ListResponse{}, billingdomain.ErrInvalidID
	}
	return s.list(ctx, req, billingdomain.ListFilter{MeterID: meterID})
}

func (s *Service) list(ctx context.Context, req billingdomain.ListRequest, filter billingdomain.ListFilter) (billingdomain.ListResponse, error) {
	status := strings.TrimSpace(req.Status)
	if status != "" && !billingdomain.ValidStatus(status) {
		return billingdomain.ListResponse{}, billingdomain.ErrInvalidStatus
	}
	filter.Status = status

	if strings.TrimSpace(req.PageToken) != "" {
		decoded, err := pagination.DecodeCursor(req.PageToken)
		if err != nil {
			return billingdomain.ListResponse{}, billingdomain.ErrInvalidPageToken
		}
		createdAt, err := time.Parse(time.RFC3339Nano, decoded.CreatedAt)
		if err != nil {
			return billingdomain.ListResponse{}, billingdomain.ErrInvalidPageToken
		}
		id, err := snowflake.ParseString(strings.TrimSpace(decoded.ID))
		if err != nil || id == 0 {
			return billingdomain.ListResponse{}, billingdomain.ErrInvalidPageToken
		}
		filter.Cursor = &billingdomain.Cursor{ID: id, CreatedAt: createdAt}
	}

	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}
	if pageSize > 250 {
		pageSize = 250
	}
	filter.Limit = int(pageSize) + 1

	items, err := s.repo.List(ctx, s.db, filter)
	if err != nil {
		return billingdomain.ListResponse{}, err
	}

	pageInfo := pagination.BuildCursorPageInfo(items, pageSize, func(item *billingdomain.Bill) string {
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

	bills := make([]billingdomain.Response, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		bills = append(bills, *s.toResponse(item))
	}

	return billingdomain.ListResponse{
		Bills:    bills,
		PageInfo: *pageInfo,
	}, nil
}

func (s *Service) BillableMeterIDs(ctx context.Context, limit int) ([]snowflake.ID, error) {
	if limit <= 0 {
		limit = 100
	}
	return s.repo.BillableMeterIDs(ctx, s.db, limit)
}

func (s *Service) OverdueBillIDs(ctx context.Context, before time.Time, limit int) ([]snowflake.ID, error) {
	if limit <= 0 {
		limit = 100
	}
	return s.repo.OverdueBillIDs(ctx, s.db, before, limit)
}

func (s *Service) MarkOverdue(ctx context.Context, id snowflake.ID, userID string) (*billingdomain.Response, error) {
	var bill *billingdomain.Bill
	var flipped bool
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		bill, err = s.repo.FindByIDForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}
		if bill == nil {
			return billingdomain.ErrNotFound
		}
		switch bill.Status {
		case billingdomain.StatusPending, billingdomain.StatusPartiallyPaid:
		default:
			return nil
		}
		if !bill.DueDate.Before(s.clock.Now()) {
			return nil
		}

		bill.Status = billingdomain.StatusOverdue
		bill.UpdatedAt = s.clock.Now()
		flipped = true
		return s.repo.Update(ctx, tx, bill)
	})
	if err != nil {
		return nil, err
	}

	if flipped {
		s.activity.Record(ctx, activitydomain.RecordRequest{
			ActivityType: activitydomain.TypeBillOverdue,
			Description:  "bill " + bill.BillNumber + " marked overdue",
			Details: map[string]any{
				"bill_id":     bill.ID.String(),
				"bill_number": bill.BillNumber,
				"due_date":    bill.DueDate.Format(time.RFC3339),
			},
			UserID: userID,
		})
	}

	return s.toResponse(bill), nil
}

func (s *Service) toResponse(b *billingdomain.Bill) *billingdomain.Response {
	resp := &billingdomain.Response{
		ID:                 b.ID.String(),
		BillNumber:         b.BillNumber,
		CustomerID:         b.CustomerID.String(),
		MeterID:            b.MeterID.String(),
		PeriodEndReadingID: b.PeriodEndReadingID.String(),
		Consumption:        b.Consumption.String(),
		RateApplied:        b.RateApplied.String(),
		FixedCharge:        b.FixedCharge.String(),
		TotalAmount:        b.TotalAmount.String(),
		AmountPaid:         b.AmountPaid.String(),
		Status:             b.Status,
		DueDate:            b.DueDate,
		CreatedAt:          b.CreatedAt,
		UpdatedAt:          b.UpdatedAt,
	}
	if b.PeriodStartReadingID != nil {
		resp.PeriodStartReadingID = b.PeriodStartReadingID.String()
	}
	return resp
}
