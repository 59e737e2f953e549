package scheduler

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	activitydomain "github.com/tirtabill/tirtabill/internal/activity/domain"
	billingdomain "github.com/tirtabill/tirtabill/internal/billing/domain"
	billingrepo "github.com/tirtabill/tirtabill/internal/billing/repository"
	billingservice "github.com/tirtabill/tirtabill/internal/billing/service"
	"github.com/tirtabill/tirtabill/internal/clock"
	"github.com/tirtabill/tirtabill/internal/config"
	customerdomain "github.com/tirtabill/tirtabill/internal/customer/domain"
	customerrepo "github.com/tirtabill/tirtabill/internal/customer/repository"
	meterdomain "github.com/tirtabill/tirtabill/internal/meter/domain"
	meterrepo "github.com/tirtabill/tirtabill/internal/meter/repository"
	"github.com/tirtabill/tirtabill/internal/numbering"
	"github.com/tirtabill/tirtabill/internal/observability/metrics"
	readingdomain "github.com/tirtabill/tirtabill/internal/reading/domain"
	readingrepo "github.com/tirtabill/tirtabill/internal/reading/repository"
	readingservice "github.com/tirtabill/tirtabill/internal/reading/service"
	tariffdomain "github.com/tirtabill/tirtabill/internal/tariff/domain"
	tariffrepo "github.com/tirtabill/tirtabill/internal/tariff/repository"
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

type fixture struct {
	sched    *Scheduler
	billing  billingdomain.Service
	readings readingdomain.Service
	conn     *gorm.DB
	clock    *clock.FakeClock
	meter    *meterdomain.Meter
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()
	metrics.ResetSchedulerMetricsForTest()

	conn, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(
		&customerdomain.Customer{},
		&meterdomain.Meter{},
		&readingdomain.MeterReading{},
		&tariffdomain.Tariff{},
		&tariffdomain.TariffTier{},
		&billingdomain.Bill{},
		&numbering.Sequence{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	activity := &recordedActivity{}
	fakeClock := clock.NewFakeClock(time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC))

	customer := &customerdomain.Customer{
		ID:             node.Generate(),
		CustomerNumber: "CUST-000001",
		Name:           "Siti Rahma",
		CustomerClass:  customerdomain.ClassResidential,
		CreditBalance:  decimal.Zero,
		Active:         true,
		CreatedAt:      fakeClock.Now(),
		UpdatedAt:      fakeClock.Now(),
	}
	require.NoError(t, conn.Create(customer).Error)

	meter := &meterdomain.Meter{
		ID:               node.Generate(),
		MeterNumber:      "MTR-000001",
		CustomerID:       customer.ID,
		MeterType:        meterdomain.TypeMechanical,
		InstallationDate: fakeClock.Now(),
		LastReading:      decimal.Zero,
		Active:           true,
		CreatedAt:        fakeClock.Now(),
		UpdatedAt:        fakeClock.Now(),
	}
	require.NoError(t, conn.Create(meter).Error)

	tariff := &tariffdomain.Tariff{
		ID:            node.Generate(),
		Name:          "Residential flat",
		CustomerClass: customerdomain.ClassResidential,
		FixedCharge:   decimal.Zero,
		Active:        true,
		EffectiveFrom: fakeClock.Now().AddDate(-1, 0, 0),
		CreatedAt:     fakeClock.Now(),
		UpdatedAt:     fakeClock.Now(),
	}
	require.NoError(t, conn.Create(tariff).Error)
	require.NoError(t, conn.Create(&tariffdomain.TariffTier{
		ID:          node.Generate(),
		TariffID:    tariff.ID,
		StartVolume: decimal.Zero,
		RatePerUnit: decimal.NewFromInt(50),
	}).Error)

	readings := readingservice.New(readingservice.Params{
		DB:       conn,
		Log:      zap.NewNop(),
		GenID:    node,
		Repo:     readingrepo.Provide(),
		Meters:   meterrepo.Provide(),
		Clock:    fakeClock,
		Activity: activity,
	})

	billing := billingservice.New(billingservice.Params{
		DB:        conn,
		Log:       zap.NewNop(),
		GenID:     node,
		Repo:      billingrepo.Provide(),
		Meters:    meterrepo.Provide(),
		Readings:  readingrepo.Provide(),
		Customers: customerrepo.Provide(),
		Tariffs:   tariffrepo.Provide(),
		Allocator: numbering.NewAllocator(),
		Clock:     fakeClock,
		Policy:    config.NewStaticBillingPolicyHolder(config.DefaultBillingPolicy()),
		Activity:  activity,
	})

	sched := New(Params{
		Log:     zap.NewNop(),
		Billing: billing,
		Clock:   fakeClock,
		Config:  cfg,
	})

	return &fixture{
		sched:    sched,
		billing:  billing,
		readings: readings,
		conn:     conn,
		clock:    fakeClock,
		meter:    meter,
	}
}

func (f *fixture) record(t *testing.T, value string) {
	t.Helper()
	_, err := f.readings.Record(context.Background(), readingdomain.RecordRequest{
		MeterID:      f.meter.ID.String(),
		ReadingValue: value,
	})
	require.NoError(t, err)
	f.clock.Advance(24 * time.Hour)
}

func (f *fixture) bills(t *testing.T) []billingdomain.Bill {
	t.Helper()
	var bills []billingdomain.Bill
	require.NoError(t, f.conn.Order("id asc").Find(&bills).Error)
	return bills
}

func TestRunOnceGeneratesBills(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()

	// nothing to sweep yet
	require.NoError(t, f.sched.RunOnce(ctx))
	assert.Empty(t, f.bills(t))

	f.record(t, "100")
	f.record(t, "135")

	require.NoError(t, f.sched.RunOnce(ctx))

	bills := f.bills(t)
	require.Len(t, bills, 1)
	assert.Equal(t, billingdomain.StatusPending, bills[0].Status)
	assert.True(t, bills[0].TotalAmount.Equal(decimal.NewFromInt(1750)))
}

func TestRunOnceIsIdempotent(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()

	f.record(t, "100")
	f.record(t, "135")

	require.NoError(t, f.sched.RunOnce(ctx))
	require.NoError(t, f.sched.RunOnce(ctx))
	assert.Len(t, f.bills(t), 1)

	// a fresh reading opens a new period
	f.record(t, "150")
	require.NoError(t, f.sched.RunOnce(ctx))
	assert.Len(t, f.bills(t), 2)
}

func TestRunOnceMarksOverdue(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()

	f.record(t, "100")
	f.record(t, "135")
	require.NoError(t, f.sched.RunOnce(ctx))

	// still inside the grace period
	require.NoError(t, f.sched.RunOnce(ctx))
	bills := f.bills(t)
	require.Len(t, bills, 1)
	assert.Equal(t, billingdomain.StatusPending, bills[0].Status)

	f.clock.Advance(30 * 24 * time.Hour)
	require.NoError(t, f.sched.RunOnce(ctx))

	bills = f.bills(t)
	require.Len(t, bills, 1)
	assert.Equal(t, billingdomain.StatusOverdue, bills[0].Status)
	assert.True(t, bills[0].AmountPaid.IsZero())
	assert.True(t, bills[0].TotalAmount.Equal(decimal.NewFromInt(1750)))
}

func TestRunOnceHonorsEnabledJobs(t *testing.T) {
	f := newFixture(t, Config{EnabledJobs: []string{JobOverdueSweep}})
	ctx := context.Background()

	f.record(t, "100")
	f.record(t, "135")

	require.NoError(t, f.sched.RunOnce(ctx))
	assert.Empty(t, f.bills(t))
}

func TestRunOnceRespectsBatchSize(t *testing.T) {
	f := newFixture(t, Config{BatchSize: 1})
	ctx := context.Background()

	node, err := snowflake.NewNode(2)
	require.NoError(t, err)

	// a second metered connection for the same customer
	second := &meterdomain.Meter{
		ID:               node.Generate(),
		MeterNumber:      "MTR-000002",
		CustomerID:       f.meter.CustomerID,
		MeterType:        meterdomain.TypeMechanical,
		InstallationDate: f.clock.Now(),
		LastReading:      decimal.Zero,
		Active:           true,
		CreatedAt:        f.clock.Now(),
		UpdatedAt:        f.clock.Now(),
	}
	require.NoError(t, f.conn.Create(second).Error)

	f.record(t, "100")
	_, err = f.readings.Record(ctx, readingdomain.RecordRequest{
		MeterID:      second.ID.String(),
		ReadingValue: "40",
	})
	require.NoError(t, err)

	require.NoError(t, f.sched.RunOnce(ctx))
	assert.Len(t, f.bills(t), 1)

	require.NoError(t, f.sched.RunOnce(ctx))
	assert.Len(t, f.bills(t), 2)
}

func TestConfigDefaults(t *testing.T) {
	cfg := Config{}.withDefaults()
	assert.Equal(t, defaultRunInterval, cfg.RunInterval)
	assert.Equal(t, defaultBatchSize, cfg.BatchSize)
	assert.Equal(t, defaultJobTimeout, cfg.JobTimeout)

	assert.True(t, cfg.jobEnabled(JobBillingSweep))
	cfg.EnabledJobs = []string{JobBillingSweep}
	assert.True(t, cfg.jobEnabled(JobBillingSweep))
	assert.False(t, cfg.jobEnabled(JobOverdueSweep))
}
