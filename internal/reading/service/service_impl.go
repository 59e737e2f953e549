package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	activitydomain "github.com/tirtabill/tirtabill/internal/activity/domain"
	"github.com/tirtabill/tirtabill/internal/clock"
	meterdomain "github.com/tirtabill/tirtabill/internal/meter/domain"
	"github.com/tirtabill/tirtabill/internal/observability/metrics"
	readingdomain "github.com/tirtabill/tirtabill/internal/reading/domain"
	"github.com/tirtabill/tirtabill/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Repo     readingdomain.Repository
	Meters   meterdomain.Repository
	Clock    clock.Clock
	Metrics  *metrics.Metrics `optional:"true"`
	Activity activitydomain.Service
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	repo     readingdomain.Repository
	meters   meterdomain.Repository
	clock    clock.Clock
	metrics  *metrics.Metrics
	activity activitydomain.Service
}

func New(p Params) readingdomain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("reading.service"),
		genID:    p.GenID,
		repo:     p.Repo,
		meters:   p.Meters,
		clock:    p.Clock,
		metrics:  p.Metrics,
		activity: p.Activity,
	}
}

// Record accepts one observation. The meter row stays locked for the
// whole check-insert-update so two concurrent submissions for the same
// meter serialize; readings for different meters do not contend.
func (s *Service) Record(ctx context.Context, req readingdomain.RecordRequest) (*readingdomain.Response, error) {
	meterID, err := readingdomain.ParseID(strings.TrimSpace(req.MeterID))
	if err != nil || meterID == 0 {
		s.metrics.RecordReading("rejected")
		return nil, readingdomain.ErrInvalidID
	}

	value, err := decimal.NewFromString(strings.TrimSpace(req.ReadingValue))
	if err != nil || value.IsNegative() {
		s.metrics.RecordReading("rejected")
		return nil, readingdomain.ErrInvalidValue
	}

	now := s.clock.Now()
	readingDate := now
	if req.ReadingDate != nil {
		readingDate = *req.ReadingDate
	}

	reading := &readingdomain.MeterReading{
		ID:           s.genID.Generate(),
		MeterID:      meterID,
		ReadingValue: value,
		ReadingDate:  readingDate,
		RecordedBy:   strings.TrimSpace(req.UserID),
		Notes:        strings.TrimSpace(req.Notes),
		CreatedAt:    now,
	}

	var meter *meterdomain.Meter
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		meter, err = s.meters.FindByIDForUpdate(ctx, tx, meterID)
		if err != nil {
			return err
		}
		if meter == nil || !meter.Active {
			return readingdomain.ErrMeterNotFound
		}

		if value.LessThan(meter.LastReading) {
			return readingdomain.ErrNonMonotonicReading
		}
		if meter.LastReadingDate != nil && readingDate.Before(*meter.LastReadingDate) {
			return readingdomain.ErrNonMonotonicReading
		}

		if err := s.repo.Insert(ctx, tx, reading); err != nil {
			return err
		}

		meter.LastReading = value
		meter.LastReadingDate = &readingDate
		meter.UpdatedAt = now
		return s.meters.Update(ctx, tx, meter)
	})
	if err != nil {
		s.metrics.RecordReading("rejected")
		return nil, err
	}

	s.metrics.RecordReading("accepted")
	s.activity.Record(ctx, activitydomain.RecordRequest{
		ActivityType: activitydomain.TypeReadingRecorded,
		Description:  "reading " + value.String() + " recorded for meter " + meter.MeterNumber,
		Details: map[string]any{
			"reading_id":    reading.ID.String(),
			"meter_id":      meter.ID.String(),
			"meter_number":  meter.MeterNumber,
			"reading_value": value.String(),
			"reading_date":  readingDate.Format(time.RFC3339),
		},
		UserID: req.UserID,
	})

	return s.toResponse(reading), nil
}

func (s *Service) ListByMeter(ctx context.Context, req readingdomain.ListRequest) (readingdomain.ListResponse, error) {
	meterID, err := readingdomain.ParseID(strings.TrimSpace(req.MeterID))
	if err != nil || meterID == 0 {
		return readingdomain.ListResponse{}, readingdomain.ErrInvalidID
	}

	var cursor *readingdomain.Cursor
	if strings.TrimSpace(req.PageToken) != "" {
		decoded, err := pagination.DecodeCursor(req.PageToken)
		if err != nil {
			return readingdomain.ListResponse{}, readingdomain.ErrInvalidPageToken
		}
		createdAt, err := time.Parse(time.RFC3339Nano, decoded.CreatedAt)
		if err != nil {
			return readingdomain.ListResponse{}, readingdomain.ErrInvalidPageToken
		}
		id, err := snowflake.ParseString(strings.TrimSpace(decoded.ID))
		if err != nil || id == 0 {
			return readingdomain.ListResponse{}, readingdomain.ErrInvalidPageToken
		}
		cursor = &readingdomain.Cursor{ID: id, CreatedAt: createdAt}
	}

	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}
	if pageSize > 250 {
		pageSize = 250
	}

	items, err := s.repo.ListByMeter(ctx, s.db, readingdomain.ListFilter{
		MeterID: meterID,
		Cursor:  cursor,
		Limit:   int(pageSize) + 1,
	})
	if err != nil {
		return readingdomain.ListResponse{}, err
	}

	pageInfo := pagination.BuildCursorPageInfo(items, pageSize, func(item *readingdomain.MeterReading) string {
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

	readings := make([]readingdomain.Response, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		readings = append(readings, *s.toResponse(item))
	}

	return readingdomain.ListResponse{
		Readings: readings,
		PageInfo: *pageInfo,
	}, nil
}

func (s *Service) toResponse(r *readingdomain.MeterReading) *readingdomain.Response {
	return &readingdomain.Response{
		ID:           r.ID.String(),
		MeterID:      r.MeterID.String(),
		ReadingValue: r.ReadingValue.String(),
		ReadingDate:  r.ReadingDate,
		RecordedBy:   r.RecordedBy,
		Notes:        r.Notes,
		BilledAt:     r.BilledAt,
		CreatedAt:    r.CreatedAt,
	}
}
