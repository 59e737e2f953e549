package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	activitydomain "github.com/tirtabill/tirtabill/internal/activity/domain"
	"github.com/tirtabill/tirtabill/internal/clock"
	"github.com/tirtabill/tirtabill/internal/config"
	customerdomain "github.com/tirtabill/tirtabill/internal/customer/domain"
	"github.com/tirtabill/tirtabill/internal/customer/repository"
	meterdomain "github.com/tirtabill/tirtabill/internal/meter/domain"
	"github.com/tirtabill/tirtabill/internal/numbering"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type recordedActivity struct {
	entries []activitydomain.RecordRequest
}

func (r *recordedActivity) Record(_ context.Context, req activitydomain.RecordRequest) {
	r.entries = append(r.entries, req)
}

func (r *recordedActivity) ListRecent(context.Context, activitydomain.ListRequest) (activitydomain.ListResponse, error) {
	return activitydomain.ListResponse{}, nil
}

func (r *recordedActivity) countByType(activityType string) int {
	n := 0
	for _, entry := range r.entries {
		if entry.ActivityType == activityType {
			n++
		}
	}
	return n
}

func newTestService(t *testing.T) (customerdomain.Service, *gorm.DB, *recordedActivity, *clock.FakeClock) {
	t.Helper()

	conn, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(
		&customerdomain.Customer{},
		&meterdomain.Meter{},
		&numbering.Sequence{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	activity := &recordedActivity{}
	fakeClock := clock.NewFakeClock(time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC))

	svc := New(Params{
		DB:        conn,
		Log:       zap.NewNop(),
		GenID:     node,
		Repo:      repository.Provide(),
		Allocator: numbering.NewAllocator(),
		Clock:     fakeClock,
		Policy:    config.NewStaticBillingPolicyHolder(config.DefaultBillingPolicy()),
		Activity:  activity,
	})
	return svc, conn, activity, fakeClock
}

func TestCreateAllocatesNumberAndDefaults(t *testing.T) {
	svc, _, activity, _ := newTestService(t)
	ctx := context.Background()

	first, err := svc.Create(ctx, customerdomain.CreateRequest{Name: "  Dewi Lestari  ", UserID: "clerk-7"})
	require.NoError(t, err)
	assert.Equal(t, "CUST-000001", first.CustomerNumber)
	assert.Equal(t, "Dewi Lestari", first.Name)
	assert.Equal(t, customerdomain.ClassResidential, first.CustomerClass)
	assert.Equal(t, "0", first.CreditBalance)
	assert.True(t, first.Active)

	second, err := svc.Create(ctx, customerdomain.CreateRequest{
		Name:          "PT Tirta Jaya",
		CustomerClass: customerdomain.ClassCommercial,
	})
	require.NoError(t, err)
	assert.Equal(t, "CUST-000002", second.CustomerNumber)
	assert.Equal(t, customerdomain.ClassCommercial, second.CustomerClass)

	require.Len(t, activity.entries, 2)
	assert.Equal(t, activitydomain.TypeCustomerCreated, activity.entries[0].ActivityType)
	assert.Equal(t, "clerk-7", activity.entries[0].UserID)
}

func TestCreateRejectsBadInput(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, customerdomain.CreateRequest{Name: "   "})
	assert.ErrorIs(t, err, customerdomain.ErrInvalidName)

	_, err = svc.Create(ctx, customerdomain.CreateRequest{Name: "Budi", CustomerClass: "agricultural"})
	assert.ErrorIs(t, err, customerdomain.ErrInvalidClass)
}

func TestGetByIDAndNumber(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, customerdomain.CreateRequest{Name: "Budi Santoso"})
	require.NoError(t, err)

	byID, err := svc.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.CustomerNumber, byID.CustomerNumber)

	byNumber, err := svc.GetByNumber(ctx, created.CustomerNumber)
	require.NoError(t, err)
	assert.Equal(t, created.ID, byNumber.ID)

	_, err = svc.GetByID(ctx, "123456789")
	assert.ErrorIs(t, err, customerdomain.ErrNotFound)

	_, err = svc.GetByID(ctx, "not-a-number")
	assert.ErrorIs(t, err, customerdomain.ErrInvalidID)
}

func TestListFiltersAndPaginates(t *testing.T) {
	svc, _, _, fakeClock := newTestService(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := svc.Create(ctx, customerdomain.CreateRequest{Name: fmt.Sprintf("Customer %d", i)})
		require.NoError(t, err)
		fakeClock.Advance(time.Minute)
	}
	commercial, err := svc.Create(ctx, customerdomain.CreateRequest{
		Name:          "Warung Kopi",
		CustomerClass: customerdomain.ClassCommercial,
	})
	require.NoError(t, err)

	first, err := svc.List(ctx, customerdomain.ListRequest{PageSize: 2})
	require.NoError(t, err)
	require.Len(t, first.Customers, 2)
	assert.True(t, first.PageInfo.HasMore)
	assert.Equal(t, "Warung Kopi", first.Customers[0].Name)

	second, err := svc.List(ctx, customerdomain.ListRequest{
		PageSize:  2,
		PageToken: first.PageInfo.NextPageToken,
	})
	require.NoError(t, err)
	require.Len(t, second.Customers, 2)
	assert.False(t, second.PageInfo.HasMore)

	byClass, err := svc.List(ctx, customerdomain.ListRequest{Class: customerdomain.ClassCommercial})
	require.NoError(t, err)
	require.Len(t, byClass.Customers, 1)
	assert.Equal(t, commercial.ID, byClass.Customers[0].ID)

	_, err = svc.List(ctx, customerdomain.ListRequest{PageToken: "???"})
	assert.ErrorIs(t, err, customerdomain.ErrInvalidPageToken)
}

func TestUpdateKeepsCustomerNumber(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, customerdomain.CreateRequest{Name: "Budi Santoso"})
	require.NoError(t, err)

	newName := "Budi S. Wibowo"
	newPhone := "+62-811-000-111"
	updated, err := svc.Update(ctx, customerdomain.UpdateRequest{
		ID:    created.ID,
		Name:  &newName,
		Phone: &newPhone,
	})
	require.NoError(t, err)
	assert.Equal(t, newName, updated.Name)
	assert.Equal(t, newPhone, updated.Phone)
	assert.Equal(t, created.CustomerNumber, updated.CustomerNumber)

	badClass := "agricultural"
	_, err = svc.Update(ctx, customerdomain.UpdateRequest{ID: created.ID, CustomerClass: &badClass})
	assert.ErrorIs(t, err, customerdomain.ErrInvalidClass)
}

func TestDeactivateCascadesToMeters(t *testing.T) {
	svc, conn, activity, fakeClock := newTestService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, customerdomain.CreateRequest{Name: "Budi Santoso"})
	require.NoError(t, err)

	customerID, err := customerdomain.ParseID(created.ID)
	require.NoError(t, err)
	node, err := snowflake.NewNode(2)
	require.NoError(t, err)
	for i := 0; i < 2; i++ {
		require.NoError(t, conn.Create(&meterdomain.Meter{
			ID:               node.Generate(),
			MeterNumber:      fmt.Sprintf("MTR-00000%d", i+1),
			CustomerID:       customerID,
			MeterType:        meterdomain.TypeMechanical,
			InstallationDate: fakeClock.Now(),
			Active:           true,
			CreatedAt:        fakeClock.Now(),
			UpdatedAt:        fakeClock.Now(),
		}).Error)
	}

	deactivated, err := svc.Deactivate(ctx, created.ID, "supervisor-1")
	require.NoError(t, err)
	assert.False(t, deactivated.Active)

	var activeMeters int64
	require.NoError(t, conn.Model(&meterdomain.Meter{}).Where("active = ?", true).Count(&activeMeters).Error)
	assert.Zero(t, activeMeters)

	last := activity.entries[len(activity.entries)-1]
	assert.Equal(t, activitydomain.TypeCustomerDeactivated, last.ActivityType)
	assert.Equal(t, "supervisor-1", last.UserID)
	assert.EqualValues(t, 2, last.Details["meters_deactivated"])

	// repeat call is a no-op and must not land in the feed again
	again, err := svc.Deactivate(ctx, created.ID, "supervisor-1")
	require.NoError(t, err)
	assert.False(t, again.Active)
	assert.Equal(t, 1, activity.countByType(activitydomain.TypeCustomerDeactivated))
}

func TestNoChangeUpdateEmitsNoEvent(t *testing.T) {
	svc, _, activity, fakeClock := newTestService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, customerdomain.CreateRequest{Name: "Budi Santoso"})
	require.NoError(t, err)

	fakeClock.Advance(time.Hour)

	sameName := created.Name
	updated, err := svc.Update(ctx, customerdomain.UpdateRequest{ID: created.ID, Name: &sameName})
	require.NoError(t, err)
	assert.True(t, updated.UpdatedAt.Equal(created.UpdatedAt))
	assert.Equal(t, 0, activity.countByType(activitydomain.TypeCustomerUpdated))
}
