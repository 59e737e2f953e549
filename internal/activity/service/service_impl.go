package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	activitydomain "github.com/tirtabill/tirtabill/internal/activity/domain"
	"github.com/tirtabill/tirtabill/internal/clock"
	"github.com/tirtabill/tirtabill/internal/observability/metrics"
	"github.com/tirtabill/tirtabill/internal/observability/obscontext"
	"github.com/tirtabill/tirtabill/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	maxPendingEntries = 1024
	retryInterval     = 5 * time.Second
)

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Repo    activitydomain.Repository
	Clock   clock.Clock
	Metrics *metrics.Metrics `optional:"true"`
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	repo    activitydomain.Repository
	clock   clock.Clock
	metrics *metrics.Metrics

	mu      sync.Mutex
	pending []*activitydomain.ActivityLog
	wake    chan struct{}
}

func New(p Params) *Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("activity.service"),
		genID:   p.GenID,
		repo:    p.Repo,
		clock:   p.Clock,
		metrics: p.Metrics,
		wake:    make(chan struct{}, 1),
	}
}

// Record appends one feed entry. A storage failure is logged and the
// entry is parked for the background flusher; the caller never sees it.
func (s *Service) Record(ctx context.Context, req activitydomain.RecordRequest) {
	activityType := strings.TrimSpace(req.ActivityType)
	if activityType == "" {
		s.log.Warn("dropping activity entry without type")
		return
	}

	userID := strings.TrimSpace(req.UserID)
	if userID == "" {
		userID = obscontext.UserIDFromContext(ctx)
	}
	if userID == "" {
		userID = "system"
	}

	details := map[string]any{}
	for key, value := range req.Details {
		if key == "" {
			continue
		}
		details[key] = value
	}
	if requestID := obscontext.RequestIDFromContext(ctx); requestID != "" {
		details["request_id"] = requestID
	}

	entry := &activitydomain.ActivityLog{
		ID:           s.genID.Generate(),
		ActivityType: activityType,
		Description:  strings.TrimSpace(req.Description),
		Details:      datatypes.JSONMap(details),
		UserID:       userID,
		CreatedAt:    s.clock.Now(),
	}

	if err := s.repo.Insert(ctx, s.db, entry); err != nil {
		s.log.Warn("activity write failed, parked for retry",
			zap.String("activity_type", activityType),
			zap.Error(err),
		)
		s.park(entry)
	}
}

func (s *Service) ListRecent(ctx context.Context, req activitydomain.ListRequest) (activitydomain.ListResponse, error) {
	var cursor *activitydomain.Cursor
	if strings.TrimSpace(req.PageToken) != "" {
		decoded, err := pagination.DecodeCursor(req.PageToken)
		if err != nil {
			return activitydomain.ListResponse{}, activitydomain.ErrInvalidPageToken
		}
		createdAt, err := time.Parse(time.RFC3339Nano, decoded.CreatedAt)
		if err != nil {
			return activitydomain.ListResponse{}, activitydomain.ErrInvalidPageToken
		}
		id, err := snowflake.ParseString(strings.TrimSpace(decoded.ID))
		if err != nil || id == 0 {
			return activitydomain.ListResponse{}, activitydomain.ErrInvalidPageToken
		}
		cursor = &activitydomain.Cursor{ID: id, CreatedAt: createdAt}
	}

	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}
	if pageSize > 250 {
		pageSize = 250
	}

	items, err := s.repo.ListRecent(ctx, s.db, cursor, int(pageSize)+1)
	if err != nil {
		return activitydomain.ListResponse{}, err
	}

	pageInfo := pagination.BuildCursorPageInfo(items, pageSize, func(item *activitydomain.ActivityLog) string {
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

	activities := make([]activitydomain.ActivityLog, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		activities = append(activities, *item)
	}

	return activitydomain.ListResponse{
		Activities: activities,
		PageInfo:   *pageInfo,
	}, nil
}

// PendingCount reports the retry backlog.
func (s *Service) PendingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// FlushPending retries every parked entry once. Entries that fail again
// go back to the queue.
func (s *Service) FlushPending(ctx context.Context) {
	s.mu.Lock()
	batch := s.pending
	s.pending = nil
	s.mu.Unlock()

	if len(batch) == 0 {
		s.reportDepth()
		return
	}

	flushed := 0
	for _, entry := range batch {
		if err := s.repo.Insert(ctx, s.db, entry); err != nil {
			s.park(entry)
			continue
		}
		flushed++
	}
	if flushed > 0 {
		s.log.Info("flushed parked activity entries", zap.Int("count", flushed))
	}
	s.reportDepth()
}

// RunFlusher retries parked entries until ctx is cancelled.
func (s *Service) RunFlusher(ctx context.Context) {
	ticker := time.NewTicker(retryInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-s.wake:
		}
		s.FlushPending(ctx)
	}
}

func (s *Service) park(entry *activitydomain.ActivityLog) {
	s.mu.Lock()
	if len(s.pending) >= maxPendingEntries {
		dropped := s.pending[0]
		s.pending = s.pending[1:]
		s.log.Warn("activity retry queue full, dropping oldest entry",
			zap.String("activity_type", dropped.ActivityType),
		)
	}
	s.pending = append(s.pending, entry)
	s.mu.Unlock()

	s.reportDepth()
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Service) reportDepth() {
	s.metrics.SetActivityRetryDepth(s.PendingCount())
}
