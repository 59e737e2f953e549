package service

import (
	"context"
	"fmt"
	"strings"
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
	"github.com/tirtabill/tirtabill/internal/clock"
	"github.com/tirtabill/tirtabill/internal/config"
	customerdomain "github.com/tirtabill/tirtabill/internal/customer/domain"
	customerrepo "github.com/tirtabill/tirtabill/internal/customer/repository"
	paymentdomain "github.com/tirtabill/tirtabill/internal/payment/domain"
	"github.com/tirtabill/tirtabill/internal/payment/repository"
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
	svc      paymentdomain.Service
	conn     *gorm.DB
	node     *snowflake.Node
	activity *recordedActivity
	clock    *clock.FakeClock
	customer *customerdomain.Customer
	bill     *billingdomain.Bill
}

func newFixture(t *testing.T, policy config.BillingPolicy) *fixture {
	t.Helper()

	conn, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(
		&customerdomain.Customer{},
		&billingdomain.Bill{},
		&paymentdomain.Payment{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	activity := &recordedActivity{}
	fakeClock := clock.NewFakeClock(time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC))

	customer := &customerdomain.Customer{
		ID:             node.Generate(),
		CustomerNumber: "CUST-000001",
		Name:           "Budi Santoso",
		CustomerClass:  customerdomain.ClassResidential,
		CreditBalance:  decimal.Zero,
		Active:         true,
		CreatedAt:      fakeClock.Now(),
		UpdatedAt:      fakeClock.Now(),
	}
	require.NoError(t, conn.Create(customer).Error)

	bill := &billingdomain.Bill{
		ID:                 node.Generate(),
		BillNumber:         "BILL-000001",
		CustomerID:         customer.ID,
		MeterID:            node.Generate(),
		PeriodEndReadingID: node.Generate(),
		Consumption:        decimal.NewFromInt(35),
		RateApplied:        decimal.NewFromInt(50),
		FixedCharge:        decimal.Zero,
		TotalAmount:        decimal.NewFromInt(1750),
		AmountPaid:         decimal.Zero,
		Status:             billingdomain.StatusPending,
		DueDate:            fakeClock.Now().AddDate(0, 0, 20),
		CreatedAt:          fakeClock.Now(),
		UpdatedAt:          fakeClock.Now(),
	}
	require.NoError(t, conn.Create(bill).Error)

	svc := New(Params{
		DB:        conn,
		Log:       zap.NewNop(),
		GenID:     node,
		Repo:      repository.Provide(),
		Bills:     billingrepo.Provide(),
		Customers: customerrepo.Provide(),
		Clock:     fakeClock,
		Policy:    config.NewStaticBillingPolicyHolder(policy),
		Activity:  activity,
	})

	return &fixture{
		svc:      svc,
		conn:     conn,
		node:     node,
		activity: activity,
		clock:    fakeClock,
		customer: customer,
		bill:     bill,
	}
}

func (f *fixture) reloadBill(t *testing.T) *billingdomain.Bill {
	t.Helper()
	var bill billingdomain.Bill
	require.NoError(t, f.conn.First(&bill, "id = ?", f.bill.ID).Error)
	return &bill
}

func TestApplyWalksStatuses(t *testing.T) {
	f := newFixture(t, config.DefaultBillingPolicy())
	ctx := context.Background()

	// 1750 total: 1000 then 750
	first, err := f.svc.Apply(ctx, paymentdomain.ApplyRequest{
		BillID: f.bill.ID.String(),
		Amount: "1000",
		Method: paymentdomain.MethodCash,
		UserID: "cashier-2",
	})
	require.NoError(t, err)
	assert.Equal(t, billingdomain.StatusPartiallyPaid, first.BillStatus)
	assert.Equal(t, "1000", first.BillAmountPaid)
	assert.NotEmpty(t, first.TransactionReference)

	second, err := f.svc.Apply(ctx, paymentdomain.ApplyRequest{
		BillID: f.bill.ID.String(),
		Amount: "750",
		Method: paymentdomain.MethodTransfer,
	})
	require.NoError(t, err)
	assert.Equal(t, billingdomain.StatusPaid, second.BillStatus)
	assert.Equal(t, "1750", second.BillAmountPaid)

	require.Len(t, f.activity.entries, 2)
	assert.Equal(t, activitydomain.TypePaymentReceived, f.activity.entries[0].ActivityType)
	assert.Equal(t, "cashier-2", f.activity.entries[0].UserID)
}

func TestApplyValidatesInput(t *testing.T) {
	f := newFixture(t, config.DefaultBillingPolicy())
	ctx := context.Background()

	_, err := f.svc.Apply(ctx, paymentdomain.ApplyRequest{BillID: f.bill.ID.String(), Amount: "0"})
	assert.ErrorIs(t, err, paymentdomain.ErrInvalidAmount)

	_, err = f.svc.Apply(ctx, paymentdomain.ApplyRequest{BillID: f.bill.ID.String(), Amount: "-10"})
	assert.ErrorIs(t, err, paymentdomain.ErrInvalidAmount)

	_, err = f.svc.Apply(ctx, paymentdomain.ApplyRequest{BillID: f.bill.ID.String(), Amount: "10", Method: "barter"})
	assert.ErrorIs(t, err, paymentdomain.ErrInvalidMethod)

	_, err = f.svc.Apply(ctx, paymentdomain.ApplyRequest{BillID: "123456789", Amount: "10"})
	assert.ErrorIs(t, err, paymentdomain.ErrBillNotFound)
}

func TestApplyRejectsClosedBills(t *testing.T) {
	f := newFixture(t, config.DefaultBillingPolicy())
	ctx := context.Background()

	for _, status := range []string{billingdomain.StatusPaid, billingdomain.StatusCancelled} {
		require.NoError(t, f.conn.Model(&billingdomain.Bill{}).
			Where("id = ?", f.bill.ID).Update("status", status).Error)
		_, err := f.svc.Apply(ctx, paymentdomain.ApplyRequest{BillID: f.bill.ID.String(), Amount: "10"})
		assert.ErrorIs(t, err, paymentdomain.ErrBillClosed, status)
	}
}

func TestApplyRejectsOverpaymentByDefault(t *testing.T) {
	f := newFixture(t, config.DefaultBillingPolicy())
	ctx := context.Background()

	_, err := f.svc.Apply(ctx, paymentdomain.ApplyRequest{BillID: f.bill.ID.String(), Amount: "2000"})
	assert.ErrorIs(t, err, paymentdomain.ErrOverpayment)

	// nothing was booked
	bill := f.reloadBill(t)
	assert.True(t, bill.AmountPaid.IsZero())
	assert.Equal(t, billingdomain.StatusPending, bill.Status)

	var count int64
	require.NoError(t, f.conn.Model(&paymentdomain.Payment{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestApplyCreditsOverpaymentWhenConfigured(t *testing.T) {
	policy := config.DefaultBillingPolicy()
	policy.OverpaymentPolicy = config.OverpaymentCredit
	f := newFixture(t, policy)
	ctx := context.Background()

	resp, err := f.svc.Apply(ctx, paymentdomain.ApplyRequest{BillID: f.bill.ID.String(), Amount: "2000"})
	require.NoError(t, err)
	assert.Equal(t, billingdomain.StatusPaid, resp.BillStatus)
	assert.Equal(t, "1750", resp.BillAmountPaid)
	assert.Equal(t, "250", resp.CreditedAmount)

	var customer customerdomain.Customer
	require.NoError(t, f.conn.First(&customer, "id = ?", f.customer.ID).Error)
	assert.True(t, customer.CreditBalance.Equal(decimal.NewFromInt(250)))
}

func TestApplyPartialOnOverdueKeepsOverdue(t *testing.T) {
	f := newFixture(t, config.DefaultBillingPolicy())
	ctx := context.Background()

	require.NoError(t, f.conn.Model(&billingdomain.Bill{}).
		Where("id = ?", f.bill.ID).Update("status", billingdomain.StatusOverdue).Error)

	partial, err := f.svc.Apply(ctx, paymentdomain.ApplyRequest{BillID: f.bill.ID.String(), Amount: "1000"})
	require.NoError(t, err)
	assert.Equal(t, billingdomain.StatusOverdue, partial.BillStatus)

	full, err := f.svc.Apply(ctx, paymentdomain.ApplyRequest{BillID: f.bill.ID.String(), Amount: "750"})
	require.NoError(t, err)
	assert.Equal(t, billingdomain.StatusPaid, full.BillStatus)
}

func TestConcurrentApplySettlesExactly(t *testing.T) {
	f := newFixture(t, config.DefaultBillingPolicy())
	ctx := context.Background()

	// Two cashiers settle the 1750 bill at the same time. On postgres the
	// bill row lock serializes the read-modify-write; sqlite serializes
	// whole transactions instead and surfaces contention as a busy error,
	// so the loser retries the way a blocked row lock would wait.
	apply := func(amount string) error {
		for {
			_, err := f.svc.Apply(ctx, paymentdomain.ApplyRequest{
				BillID: f.bill.ID.String(),
				Amount: amount,
				Method: paymentdomain.MethodCash,
			})
			if err != nil && isSQLiteContention(err) {
				continue
			}
			return err
		}
	}

	start := make(chan struct{})
	errs := make(chan error, 2)
	for _, amount := range []string{"1000", "750"} {
		go func() {
			<-start
			errs <- apply(amount)
		}()
	}
	close(start)
	require.NoError(t, <-errs)
	require.NoError(t, <-errs)

	bill := f.reloadBill(t)
	assert.Equal(t, billingdomain.StatusPaid, bill.Status)
	assert.True(t, bill.AmountPaid.Equal(decimal.NewFromInt(1750)))

	var count int64
	require.NoError(t, f.conn.Model(&paymentdomain.Payment{}).Count(&count).Error)
	assert.EqualValues(t, 2, count)
}

func isSQLiteContention(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "locked") || strings.Contains(msg, "busy")
}

func TestListByBillPaginates(t *testing.T) {
	f := newFixture(t, config.DefaultBillingPolicy())
	ctx := context.Background()

	for _, amount := range []string{"500", "600", "650"} {
		_, err := f.svc.Apply(ctx, paymentdomain.ApplyRequest{BillID: f.bill.ID.String(), Amount: amount})
		require.NoError(t, err)
		f.clock.Advance(time.Minute)
	}

	first, err := f.svc.ListByBill(ctx, paymentdomain.ListRequest{
		BillID:   f.bill.ID.String(),
		PageSize: 2,
	})
	require.NoError(t, err)
	require.Len(t, first.Payments, 2)
	assert.True(t, first.PageInfo.HasMore)
	assert.Equal(t, "650", first.Payments[0].Amount)

	second, err := f.svc.ListByBill(ctx, paymentdomain.ListRequest{
		BillID:    f.bill.ID.String(),
		PageSize:  2,
		PageToken: first.PageInfo.NextPageToken,
	})
	require.NoError(t, err)
	require.Len(t, second.Payments, 1)
	assert.Equal(t, "500", second.Payments[0].Amount)
	assert.False(t, second.PageInfo.HasMore)
}
