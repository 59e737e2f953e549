package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"
	activitydomain "github.com/tirtabill/tirtabill/internal/activity/domain"
	billingdomain "github.com/tirtabill/tirtabill/internal/billing/domain"
	"github.com/tirtabill/tirtabill/internal/clock"
	"github.com/tirtabill/tirtabill/internal/config"
	customerdomain "github.com/tirtabill/tirtabill/internal/customer/domain"
	"github.com/tirtabill/tirtabill/internal/observability/metrics"
	paymentdomain "github.com/tirtabill/tirtabill/internal/payment/domain"
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
	Repo      paymentdomain.Repository
	Bills     billingdomain.Repository
	Customers customerdomain.Repository
	Clock     clock.Clock
	Policy    *config.BillingPolicyHolder
	Metrics   *metrics.Metrics `optional:"true"`
	Activity  activitydomain.Service
}

type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	genID     *snowflake.Node
	repo      paymentdomain.Repository
	bills     billingdomain.Repository
	customers customerdomain.Repository
	clock     clock.Clock
	policy    *config.BillingPolicyHolder
	metrics   *metrics.Metrics
	activity  activitydomain.Service
}

func New(p Params) paymentdomain.Service {
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("payment.service"),
		genID:     p.GenID,
		repo:      p.Repo,
		bills:     p.Bills,
		customers: p.Customers,
		clock:     p.Clock,
		policy:    p.Policy,
		metrics:   p.Metrics,
		activity:  p.Activity,
	}
}

func (s *Service) Apply(ctx context.Context, req paymentdomain.ApplyRequest) (*paymentdomain.Response, error) {
	billID, err := paymentdomain.ParseID(strings.TrimSpace(req.BillID))
	if err != nil || billID == 0 {
		return nil, paymentdomain.ErrInvalidID
	}

	amount, err := decimal.NewFromString(strings.TrimSpace(req.Amount))
	if err != nil || !amount.IsPositive() {
		return nil, paymentdomain.ErrInvalidAmount
	}

	method := strings.TrimSpace(req.Method)
	if method == "" {
		method = paymentdomain.MethodCash
	}
	if !paymentdomain.ValidMethod(method) {
		return nil, paymentdomain.ErrInvalidMethod
	}

	now := s.clock.Now()
	paidAt := now
	if req.PaidAt != nil {
		paidAt = *req.PaidAt
	}

	reference := strings.TrimSpace(req.TransactionReference)
	if reference == "" {
		reference = ulid.Make().String()
	}

	payment := &paymentdomain.Payment{
		ID:                   s.genID.Generate(),
		BillID:               billID,
		Amount:               amount,
		Method:               method,
		PaidAt:               paidAt,
		TransactionReference: reference,
		Notes:                strings.TrimSpace(req.Notes),
		ReceivedBy:           strings.TrimSpace(req.UserID),
		CreatedAt:            now,
	}

	var bill *billingdomain.Bill
	credited := decimal.Zero
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		bill, err = s.bills.FindByIDForUpdate(ctx, tx, billID)
		if err != nil {
			return err
		}
		if bill == nil {
			return paymentdomain.ErrBillNotFound
		}
		if !bill.Open() {
			return paymentdomain.ErrBillClosed
		}

		totalPaid := bill.AmountPaid.Add(amount)
		if totalPaid.GreaterThan(bill.TotalAmount) {
			if s.policy.Get().OverpaymentPolicy != config.OverpaymentCredit {
				return paymentdomain.ErrOverpayment
			}
			credited = totalPaid.Sub(bill.TotalAmount)
			totalPaid = bill.TotalAmount
		}

		bill.AmountPaid = totalPaid
		switch {
		case totalPaid.Equal(bill.TotalAmount):
			bill.Status = billingdomain.StatusPaid
		case bill.Status == billingdomain.StatusOverdue:
			// partial payment leaves an overdue bill overdue
		default:
			bill.Status = billingdomain.StatusPartiallyPaid
		}
		bill.UpdatedAt = now

		if err := s.repo.Insert(ctx, tx, payment); err != nil {
			return err
		}
		if err := s.bills.Update(ctx, tx, bill); err != nil {
			return err
		}

		if credited.IsPositive() {
			customer, err := s.customers.FindByIDForUpdate(ctx, tx, bill.CustomerID)
			if err != nil {
				return err
			}
			if customer == nil {
				return paymentdomain.ErrBillNotFound
			}
			customer.CreditBalance = customer.CreditBalance.Add(credited)
			customer.UpdatedAt = now
			if err := s.customers.Update(ctx, tx, customer); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordPaymentApplied(bill.Status)
	details := map[string]any{
		"payment_id":  payment.ID.String(),
		"bill_id":     bill.ID.String(),
		"bill_number": bill.BillNumber,
		"amount":      payment.Amount.String(),
		"method":      payment.Method,
		"bill_status": bill.Status,
		"reference":   payment.TransactionReference,
	}
	if credited.IsPositive() {
		details["credited_amount"] = credited.String()
	}
	s.activity.Record(ctx, activitydomain.RecordRequest{
		ActivityType: activitydomain.TypePaymentReceived,
		Description:  "payment of " + payment.Amount.String() + " received for bill " + bill.BillNumber,
		Details:      details,
		UserID:       req.UserID,
	})

	resp := s.toResponse(payment)
	resp.BillStatus = bill.Status
	resp.BillAmountPaid = bill.AmountPaid.String()
	if credited.IsPositive() {
		resp.CreditedAmount = credited.String()
	}
	return resp, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (*paymentdomain.Response, error) {
	paymentID, err := paymentdomain.ParseID(strings.TrimSpace(id))
	if err != nil {
		return nil, paymentdomain.ErrInvalidID
	}

	payment, err := s.repo.FindByID(ctx, s.db, paymentID)
	if err != nil {
		return nil, err
	}
	if payment == nil {
		return nil, paymentdomain.ErrNotFound
	}

	return s.toResponse(payment), nil
}

func (s *Service) ListByBill(ctx context.Context, req paymentdomain.ListRequest) (paymentdomain.ListResponse, error) {
	billID, err := paymentdomain.ParseID(strings.TrimSpace(req.BillID))
	if err != nil || billID == 0 {
		return paymentdomain.ListResponse{}, paymentdomain.ErrInvalidID
	}

	var cursor *paymentdomain.Cursor
	if strings.TrimSpace(req.PageToken) != "" {
		decoded, err := pagination.DecodeCursor(req.PageToken)
		if err != nil {
			return paymentdomain.ListResponse{}, paymentdomain.ErrInvalidPageToken
		}
		createdAt, err := time.Parse(time.RFC3339Nano, decoded.CreatedAt)
		if err != nil {
			return paymentdomain.ListResponse{}, paymentdomain.ErrInvalidPageToken
		}
		id, err := snowflake.ParseString(strings.TrimSpace(decoded.ID))
		if err != nil || id == 0 {
			return paymentdomain.ListResponse{}, paymentdomain.ErrInvalidPageToken
		}
		cursor = &paymentdomain.Cursor{ID: id, CreatedAt: createdAt}
	}

	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}
	if pageSize > 250 {
		pageSize = 250
	}

	items, err := s.repo.ListByBill(ctx, s.db, paymentdomain.ListFilter{
		BillID: billID,
		Cursor: cursor,
		Limit:  int(pageSize) + 1,
	})
	if err != nil {
		return paymentdomain.ListResponse{}, err
	}

	pageInfo := pagination.BuildCursorPageInfo(items, pageSize, func(item *paymentdomain.Payment) string {
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

	payments := make([]paymentdomain.Response, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		payments = append(payments, *s.toResponse(item))
	}

	return paymentdomain.ListResponse{
		Payments: payments,
		PageInfo: *pageInfo,
	}, nil
}

func (s *Service) toResponse(p *paymentdomain.Payment) *paymentdomain.Response {
	return &paymentdomain.Response{
		ID:                   p.ID.String(),
		BillID:               p.BillID.String(),
		Amount:               p.Amount.String(),
		Method:               p.Method,
		PaidAt:               p.PaidAt,
		TransactionReference: p.TransactionReference,
		Notes:                p.Notes,
		ReceivedBy:           p.ReceivedBy,
		CreatedAt:            p.CreatedAt,
	}
}
