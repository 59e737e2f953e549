package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	activitydomain "github.com/tirtabill/tirtabill/internal/activity/domain"
	"github.com/tirtabill/tirtabill/internal/activity/repository"
	"github.com/tirtabill/tirtabill/internal/clock"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type flakyRepo struct {
	inner    activitydomain.Repository
	failures int
}

func (r *flakyRepo) Insert(ctx context.Context, db *gorm.DB, entry *activitydomain.ActivityLog) error {
	if r.failures > 0 {
		r.failures--
		return errors.New("storage unavailable")
	}
	return r.inner.Insert(ctx, db, entry)
}

func (r *flakyRepo) ListRecent(ctx context.Context, db *gorm.DB, cursor *activitydomain.Cursor, limit int) ([]*activitydomain.ActivityLog, error) {
	return r.inner.ListRecent(ctx, db, cursor, limit)
}

func newTestService(t *testing.T, repo activitydomain.Repository) (*Service, *clock.FakeClock) {
	t.Helper()

	conn, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&activitydomain.ActivityLog{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	fakeClock := clock.NewFakeClock(time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC))
	if repo == nil {
		repo = repository.Provide()
	}

	svc := New(Params{
		DB:    conn,
		Log:   zap.NewNop(),
		GenID: node,
		Repo:  repo,
		Clock: fakeClock,
	})
	return svc, fakeClock
}

func TestRecordAndListRecent(t *testing.T) {
	svc, fakeClock := newTestService(t, nil)
	ctx := context.Background()

	svc.Record(ctx, activitydomain.RecordRequest{
		ActivityType: activitydomain.TypeCustomerCreated,
		Description:  "customer CUST-000001 created",
		Details:      map[string]any{"customer_number": "CUST-000001"},
		UserID:       "clerk-7",
	})
	fakeClock.Advance(time.Minute)
	svc.Record(ctx, activitydomain.RecordRequest{
		ActivityType: activitydomain.TypeReadingRecorded,
		Description:  "reading recorded",
	})

	resp, err := svc.ListRecent(ctx, activitydomain.ListRequest{PageSize: 10})
	require.NoError(t, err)
	require.Len(t, resp.Activities, 2)

	// newest first
	assert.Equal(t, activitydomain.TypeReadingRecorded, resp.Activities[0].ActivityType)
	assert.Equal(t, "system", resp.Activities[0].UserID)
	assert.Equal(t, activitydomain.TypeCustomerCreated, resp.Activities[1].ActivityType)
	assert.Equal(t, "clerk-7", resp.Activities[1].UserID)
	assert.False(t, resp.PageInfo.HasMore)
}

func TestListRecentPaginates(t *testing.T) {
	svc, fakeClock := newTestService(t, nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		svc.Record(ctx, activitydomain.RecordRequest{
			ActivityType: activitydomain.TypeReadingRecorded,
			Description:  fmt.Sprintf("reading %d", i),
		})
		fakeClock.Advance(time.Minute)
	}

	first, err := svc.ListRecent(ctx, activitydomain.ListRequest{PageSize: 2})
	require.NoError(t, err)
	require.Len(t, first.Activities, 2)
	assert.True(t, first.PageInfo.HasMore)
	assert.Equal(t, "reading 2", first.Activities[0].Description)

	second, err := svc.ListRecent(ctx, activitydomain.ListRequest{
		PageSize:  2,
		PageToken: first.PageInfo.NextPageToken,
	})
	require.NoError(t, err)
	require.Len(t, second.Activities, 1)
	assert.Equal(t, "reading 0", second.Activities[0].Description)
	assert.False(t, second.PageInfo.HasMore)
}

func TestListRecentRejectsBadToken(t *testing.T) {
	svc, _ := newTestService(t, nil)

	_, err := svc.ListRecent(context.Background(), activitydomain.ListRequest{PageToken: "???"})
	assert.ErrorIs(t, err, activitydomain.ErrInvalidPageToken)
}

func TestRecordParksFailedWritesAndFlushRecovers(t *testing.T) {
	repo := &flakyRepo{inner: repository.Provide(), failures: 1}
	svc, _ := newTestService(t, repo)
	ctx := context.Background()

	svc.Record(ctx, activitydomain.RecordRequest{
		ActivityType: activitydomain.TypePaymentReceived,
		Description:  "payment received",
	})
	assert.Equal(t, 1, svc.PendingCount())

	// primary flow was not failed: the entry is only parked
	resp, err := svc.ListRecent(ctx, activitydomain.ListRequest{})
	require.NoError(t, err)
	assert.Empty(t, resp.Activities)

	svc.FlushPending(ctx)
	assert.Equal(t, 0, svc.PendingCount())

	resp, err = svc.ListRecent(ctx, activitydomain.ListRequest{})
	require.NoError(t, err)
	require.Len(t, resp.Activities, 1)
	assert.Equal(t, activitydomain.TypePaymentReceived, resp.Activities[0].ActivityType)
}

func TestFlushRequeuesPersistentFailures(t *testing.T) {
	repo := &flakyRepo{inner: repository.Provide(), failures: 2}
	svc, _ := newTestService(t, repo)
	ctx := context.Background()

	svc.Record(ctx, activitydomain.RecordRequest{
		ActivityType: activitydomain.TypeBillGenerated,
		Description:  "bill generated",
	})
	require.Equal(t, 1, svc.PendingCount())

	svc.FlushPending(ctx)
	assert.Equal(t, 1, svc.PendingCount())

	svc.FlushPending(ctx)
	assert.Equal(t, 0, svc.PendingCount())
}
