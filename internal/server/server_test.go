package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	activitydomain "github.com/tirtabill/tirtabill/internal/activity/domain"
	activityrepo "github.com/tirtabill/tirtabill/internal/activity/repository"
	activityservice "github.com/tirtabill/tirtabill/internal/activity/service"
	billingdomain "github.com/tirtabill/tirtabill/internal/billing/domain"
	billingrepo "github.com/tirtabill/tirtabill/internal/billing/repository"
	billingservice "github.com/tirtabill/tirtabill/internal/billing/service"
	"github.com/tirtabill/tirtabill/internal/clock"
	"github.com/tirtabill/tirtabill/internal/config"
	customerdomain "github.com/tirtabill/tirtabill/internal/customer/domain"
	customerrepo "github.com/tirtabill/tirtabill/internal/customer/repository"
	customerservice "github.com/tirtabill/tirtabill/internal/customer/service"
	meterdomain "github.com/tirtabill/tirtabill/internal/meter/domain"
	meterrepo "github.com/tirtabill/tirtabill/internal/meter/repository"
	meterservice "github.com/tirtabill/tirtabill/internal/meter/service"
	"github.com/tirtabill/tirtabill/internal/numbering"
	paymentdomain "github.com/tirtabill/tirtabill/internal/payment/domain"
	paymentrepo "github.com/tirtabill/tirtabill/internal/payment/repository"
	paymentservice "github.com/tirtabill/tirtabill/internal/payment/service"
	readingdomain "github.com/tirtabill/tirtabill/internal/reading/domain"
	readingrepo "github.com/tirtabill/tirtabill/internal/reading/repository"
	readingservice "github.com/tirtabill/tirtabill/internal/reading/service"
	"github.com/tirtabill/tirtabill/internal/scheduler"
	tariffdomain "github.com/tirtabill/tirtabill/internal/tariff/domain"
	tariffrepo "github.com/tirtabill/tirtabill/internal/tariff/repository"
	tariffservice "github.com/tirtabill/tirtabill/internal/tariff/service"
)

type testServer struct {
	engine *gin.Engine
	conn   *gorm.DB
	clock  *clock.FakeClock
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	conn, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(
		&customerdomain.Customer{},
		&meterdomain.Meter{},
		&readingdomain.MeterReading{},
		&tariffdomain.Tariff{},
		&tariffdomain.TariffTier{},
		&billingdomain.Bill{},
		&paymentdomain.Payment{},
		&activitydomain.ActivityLog{},
		&numbering.Sequence{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	fakeClock := clock.NewFakeClock(time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC))
	log := zap.NewNop()
	policy := config.NewStaticBillingPolicyHolder(config.DefaultBillingPolicy())
	allocator := numbering.NewAllocator()

	activitySvc := activityservice.New(activityservice.Params{
		DB:    conn,
		Log:   log,
		GenID: node,
		Repo:  activityrepo.Provide(),
		Clock: fakeClock,
	})

	customerSvc := customerservice.New(customerservice.Params{
		DB:        conn,
		Log:       log,
		GenID:     node,
		Repo:      customerrepo.Provide(),
		Allocator: allocator,
		Clock:     fakeClock,
		Policy:    policy,
		Activity:  activitySvc,
	})

	meterSvc := meterservice.New(meterservice.Params{
		DB:        conn,
		Log:       log,
		GenID:     node,
		Repo:      meterrepo.Provide(),
		Customers: customerrepo.Provide(),
		Allocator: allocator,
		Clock:     fakeClock,
		Policy:    policy,
		Activity:  activitySvc,
	})

	readingSvc := readingservice.New(readingservice.Params{
		DB:       conn,
		Log:      log,
		GenID:    node,
		Repo:     readingrepo.Provide(),
		Meters:   meterrepo.Provide(),
		Clock:    fakeClock,
		Activity: activitySvc,
	})

	tariffSvc := tariffservice.New(tariffservice.Params{
		DB:    conn,
		Log:   log,
		GenID: node,
		Repo:  tariffrepo.Provide(),
		Clock: fakeClock,
	})

	billingSvc := billingservice.New(billingservice.Params{
		DB:        conn,
		Log:       log,
		GenID:     node,
		Repo:      billingrepo.Provide(),
		Meters:    meterrepo.Provide(),
		Readings:  readingrepo.Provide(),
		Customers: customerrepo.Provide(),
		Tariffs:   tariffrepo.Provide(),
		Allocator: allocator,
		Clock:     fakeClock,
		Policy:    policy,
		Activity:  activitySvc,
	})

	paymentSvc := paymentservice.New(paymentservice.Params{
		DB:        conn,
		Log:       log,
		GenID:     node,
		Repo:      paymentrepo.Provide(),
		Bills:     billingrepo.Provide(),
		Customers: customerrepo.Provide(),
		Clock:     fakeClock,
		Policy:    policy,
		Activity:  activitySvc,
	})

	sched := scheduler.New(scheduler.Params{
		Log:     log,
		Billing: billingSvc,
		Clock:   fakeClock,
	})

	engine := gin.New()
	engine.Use(ErrorHandlingMiddleware())

	NewServer(ServerParams{
		Gin:         engine,
		Cfg:         config.Config{},
		Log:         log,
		CustomerSvc: customerSvc,
		MeterSvc:    meterSvc,
		ReadingSvc:  readingSvc,
		TariffSvc:   tariffSvc,
		BillingSvc:  billingSvc,
		PaymentSvc:  paymentSvc,
		ActivitySvc: activitySvc,
		Sched:       sched,
	})

	return &testServer{engine: engine, conn: conn, clock: fakeClock}
}

func (ts *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	rec := httptest.NewRecorder()
	ts.engine.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func (ts *testServer) createCustomer(t *testing.T) customerdomain.Response {
	rec := ts.do(t, http.MethodPost, "/api/customers", gin.H{"name": "Budi Santoso"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[customerdomain.Response](t, rec)
}

func (ts *testServer) createMeter(t *testing.T, customerID string) meterdomain.Response {
	rec := ts.do(t, http.MethodPost, "/api/meters", gin.H{"customer_id": customerID})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[meterdomain.Response](t, rec)
}

func (ts *testServer) createFlatTariff(t *testing.T) tariffdomain.Response {
	rec := ts.do(t, http.MethodPost, "/api/tariffs", gin.H{
		"name":           "Residential flat",
		"customer_class": customerdomain.ClassResidential,
		"tiers":          []gin.H{{"start_volume": "0", "rate_per_unit": "50"}},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[tariffdomain.Response](t, rec)
}

func (ts *testServer) recordReading(t *testing.T, meterID, value string) readingdomain.Response {
	rec := ts.do(t, http.MethodPost, "/api/meters/"+meterID+"/readings", gin.H{"reading_value": value})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	ts.clock.Advance(24 * time.Hour)
	return decode[readingdomain.Response](t, rec)
}

func TestCustomerAndMeterEndpoints(t *testing.T) {
	ts := newTestServer(t)

	customer := ts.createCustomer(t)
	assert.Equal(t, "CUST-000001", customer.CustomerNumber)
	assert.Equal(t, customerdomain.ClassResidential, customer.CustomerClass)

	meter := ts.createMeter(t, customer.ID)
	assert.Equal(t, "MTR-000001", meter.MeterNumber)

	rec := ts.do(t, http.MethodGet, "/api/customers/by-number/CUST-000001", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, customer.ID, decode[customerdomain.Response](t, rec).ID)

	rec = ts.do(t, http.MethodPatch, "/api/customers/"+customer.ID, gin.H{"name": "Budi S."})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Budi S.", decode[customerdomain.Response](t, rec).Name)

	rec = ts.do(t, http.MethodGet, "/api/customers/"+customer.ID+"/meters", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[meterdomain.ListResponse](t, rec).Meters, 1)

	// deactivation cascades to the customer's meters
	rec = ts.do(t, http.MethodPost, "/api/customers/"+customer.ID+"/deactivate", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decode[customerdomain.Response](t, rec).Active)

	rec = ts.do(t, http.MethodGet, "/api/meters/"+meter.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decode[meterdomain.Response](t, rec).Active)
}

func TestReadingBillingPaymentFlow(t *testing.T) {
	ts := newTestServer(t)

	customer := ts.createCustomer(t)
	meter := ts.createMeter(t, customer.ID)
	ts.createFlatTariff(t)

	ts.recordReading(t, meter.ID, "100")
	ts.recordReading(t, meter.ID, "135")

	rec := ts.do(t, http.MethodPost, "/api/meters/"+meter.ID+"/bills", nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	bill := decode[billingdomain.Response](t, rec)
	assert.Equal(t, "BILL-000001", bill.BillNumber)
	assert.Equal(t, "35", bill.Consumption)
	assert.Equal(t, "1750", bill.TotalAmount)
	assert.Equal(t, billingdomain.StatusPending, bill.Status)

	// partial payment
	rec = ts.do(t, http.MethodPost, "/api/bills/"+bill.ID+"/payments", gin.H{
		"amount": "1000",
		"method": "cash",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = ts.do(t, http.MethodGet, "/api/bills/"+bill.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, billingdomain.StatusPartiallyPaid, decode[billingdomain.Response](t, rec).Status)

	// overpayment is rejected under the default policy
	rec = ts.do(t, http.MethodPost, "/api/bills/"+bill.ID+"/payments", gin.H{"amount": "1000"})
	assert.Equal(t, http.StatusConflict, rec.Code, rec.Body.String())

	// settle exactly
	rec = ts.do(t, http.MethodPost, "/api/bills/"+bill.ID+"/payments", gin.H{"amount": "750"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = ts.do(t, http.MethodGet, "/api/bills/"+bill.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	paid := decode[billingdomain.Response](t, rec)
	assert.Equal(t, billingdomain.StatusPaid, paid.Status)
	assert.Equal(t, "1750", paid.AmountPaid)

	rec = ts.do(t, http.MethodGet, "/api/bills/"+bill.ID+"/payments", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/activity", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	feed := decode[activitydomain.ListResponse](t, rec)
	assert.NotEmpty(t, feed.Activities)
}

func TestErrorMapping(t *testing.T) {
	ts := newTestServer(t)

	// malformed body
	req := httptest.NewRequest(http.MethodPost, "/api/customers", bytes.NewBufferString("{"))
	rec := httptest.NewRecorder()
	ts.engine.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// missing required field
	rec = ts.do(t, http.MethodPost, "/api/customers", gin.H{"name": "  "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// unknown resource
	rec = ts.do(t, http.MethodGet, "/api/customers/999999", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// state conflict: reading below the last recorded value
	customer := ts.createCustomer(t)
	meter := ts.createMeter(t, customer.ID)
	ts.recordReading(t, meter.ID, "100")
	rec = ts.do(t, http.MethodPost, "/api/meters/"+meter.ID+"/readings", gin.H{"reading_value": "90"})
	assert.Equal(t, http.StatusConflict, rec.Code, rec.Body.String())

	// billing with nothing to bill
	ts.createFlatTariff(t)
	freshMeter := ts.createMeter(t, customer.ID)
	rec = ts.do(t, http.MethodPost, "/api/meters/"+freshMeter.ID+"/bills", nil)
	assert.Equal(t, http.StatusConflict, rec.Code, rec.Body.String())
}

func TestSweepEndpoints(t *testing.T) {
	ts := newTestServer(t)

	customer := ts.createCustomer(t)
	meter := ts.createMeter(t, customer.ID)
	ts.createFlatTariff(t)
	ts.recordReading(t, meter.ID, "100")
	ts.recordReading(t, meter.ID, "135")

	rec := ts.do(t, http.MethodPost, "/api/sweeps/billing", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = ts.do(t, http.MethodGet, "/api/meters/"+meter.ID+"/bills", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	bills := decode[billingdomain.ListResponse](t, rec).Bills
	require.Len(t, bills, 1)
	assert.Equal(t, billingdomain.StatusPending, bills[0].Status)

	ts.clock.Advance(30 * 24 * time.Hour)
	rec = ts.do(t, http.MethodPost, "/api/sweeps/overdue", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = ts.do(t, http.MethodGet, "/api/bills/"+bills[0].ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, billingdomain.StatusOverdue, decode[billingdomain.Response](t, rec).Status)
}
