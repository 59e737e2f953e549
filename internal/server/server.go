package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/tirtabill/tirtabill/internal/activity"
	activitydomain "github.com/tirtabill/tirtabill/internal/activity/domain"
	"github.com/tirtabill/tirtabill/internal/billing"
	billingdomain "github.com/tirtabill/tirtabill/internal/billing/domain"
	"github.com/tirtabill/tirtabill/internal/config"
	"github.com/tirtabill/tirtabill/internal/customer"
	customerdomain "github.com/tirtabill/tirtabill/internal/customer/domain"
	"github.com/tirtabill/tirtabill/internal/meter"
	meterdomain "github.com/tirtabill/tirtabill/internal/meter/domain"
	"github.com/tirtabill/tirtabill/internal/numbering"
	"github.com/tirtabill/tirtabill/internal/observability"
	obslogger "github.com/tirtabill/tirtabill/internal/observability/logger"
	obsmetrics "github.com/tirtabill/tirtabill/internal/observability/metrics"
	"github.com/tirtabill/tirtabill/internal/payment"
	paymentdomain "github.com/tirtabill/tirtabill/internal/payment/domain"
	"github.com/tirtabill/tirtabill/internal/ratelimit"
	"github.com/tirtabill/tirtabill/internal/reading"
	readingdomain "github.com/tirtabill/tirtabill/internal/reading/domain"
	"github.com/tirtabill/tirtabill/internal/scheduler"
	"github.com/tirtabill/tirtabill/internal/tariff"
	tariffdomain "github.com/tirtabill/tirtabill/internal/tariff/domain"
)

var Module = fx.Module("http.server",
	numbering.Module,
	activity.Module,
	customer.Module,
	meter.Module,
	reading.Module,
	tariff.Module,
	billing.Module,
	payment.Module,
	ratelimit.Module,
	fx.Provide(registerGin),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obslogger.GinMiddleware(obslogger.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	return NewEngine(obsCfg, httpMetrics)
}

type Server struct {
	engine         *gin.Engine
	cfg            config.Config
	log            *zap.Logger
	customerSvc    customerdomain.Service
	meterSvc       meterdomain.Service
	readingSvc     readingdomain.Service
	tariffSvc      tariffdomain.Service
	billingSvc     billingdomain.Service
	paymentSvc     paymentdomain.Service
	activitySvc    activitydomain.Service
	readingLimiter *ratelimit.ReadingIngestLimiter
	obsMetrics     *obsmetrics.Metrics
	sched          *scheduler.Scheduler
}

type ServerParams struct {
	fx.In

	Gin            *gin.Engine
	Cfg            config.Config
	Log            *zap.Logger
	CustomerSvc    customerdomain.Service
	MeterSvc       meterdomain.Service
	ReadingSvc     readingdomain.Service
	TariffSvc      tariffdomain.Service
	BillingSvc     billingdomain.Service
	PaymentSvc     paymentdomain.Service
	ActivitySvc    activitydomain.Service
	ReadingLimiter *ratelimit.ReadingIngestLimiter `optional:"true"`
	ObsMetrics     *obsmetrics.Metrics             `optional:"true"`
	Sched          *scheduler.Scheduler            `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	s := &Server{
		engine:         p.Gin,
		cfg:            p.Cfg,
		log:            p.Log.Named("http.server"),
		customerSvc:    p.CustomerSvc,
		meterSvc:       p.MeterSvc,
		readingSvc:     p.ReadingSvc,
		tariffSvc:      p.TariffSvc,
		billingSvc:     p.BillingSvc,
		paymentSvc:     p.PaymentSvc,
		activitySvc:    p.ActivitySvc,
		readingLimiter: p.ReadingLimiter,
		obsMetrics:     p.ObsMetrics,
		sched:          p.Sched,
	}

	s.registerAPIRoutes()

	return s
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api")

	// -------- Customers --------
	api.POST("/customers", s.CreateCustomer)
	api.GET("/customers", s.ListCustomers)
	api.GET("/customers/:id", s.GetCustomerByID)
	api.GET("/customers/by-number/:number", s.GetCustomerByNumber)
	api.PATCH("/customers/:id", s.UpdateCustomer)
	api.POST("/customers/:id/deactivate", s.DeactivateCustomer)
	api.GET("/customers/:id/meters", s.ListCustomerMeters)
	api.GET("/customers/:id/bills", s.ListCustomerBills)

	// -------- Meters --------
	api.POST("/meters", s.CreateMeter)
	api.GET("/meters/:id", s.GetMeterByID)
	api.GET("/meters/by-number/:number", s.GetMeterByNumber)
	api.PATCH("/meters/:id", s.UpdateMeter)
	api.POST("/meters/:id/deactivate", s.DeactivateMeter)

	// -------- Readings --------
	api.POST("/meters/:id/readings", s.ReadingIngestRateLimit(), s.RecordReading)
	api.GET("/meters/:id/readings", s.ListReadings)

	// -------- Bills --------
	api.POST("/meters/:id/bills", s.GenerateBill)
	api.GET("/meters/:id/bills", s.ListMeterBills)
	api.GET("/bills/:id", s.GetBillByID)
	api.POST("/bills/:id/cancel", s.CancelBill)

	// -------- Payments --------
	api.POST("/bills/:id/payments", s.ApplyPayment)
	api.GET("/bills/:id/payments", s.ListBillPayments)
	api.GET("/payments/:id", s.GetPaymentByID)

	// -------- Tariffs --------
	api.POST("/tariffs", s.CreateTariff)
	api.GET("/tariffs", s.ListTariffs)
	api.GET("/tariffs/:id", s.GetTariffByID)
	api.PATCH("/tariffs/:id", s.UpdateTariff)

	// -------- Activity --------
	api.GET("/activity", s.ListActivity)

	// -------- Sweeps --------
	api.POST("/sweeps/billing", s.RunBillingSweep)
	api.POST("/sweeps/overdue", s.RunOverdueSweep)
}

func run(lc fx.Lifecycle, cfg config.Config, log *zap.Logger, r *gin.Engine) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatal("http server failed", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}
