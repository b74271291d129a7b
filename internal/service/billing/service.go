// Package billing sells subscription plans through the payment gateway and
// applies its callbacks.
package billing

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nuwa-agi/nuwa/internal/analytics/mq"
	"github.com/nuwa-agi/nuwa/internal/audit/chain"
	"github.com/nuwa-agi/nuwa/internal/broadcast"
	"github.com/nuwa-agi/nuwa/internal/payment"
	"github.com/nuwa-agi/nuwa/internal/ports"
	"github.com/nuwa-agi/nuwa/internal/telemetry"
	"github.com/zeromicro/go-zero/core/logx"
)

// SubscriptionWindow is how long a finished payment keeps a plan active.
const SubscriptionWindow = 30 * 24 * time.Hour

// Prices is the fixed USD price table.
var Prices = map[ports.Plan]float64{
	ports.PlanBasic:      9,
	ports.PlanPro:        29,
	ports.PlanTeam:       99,
	ports.PlanEnterprise: 299,
	ports.PlanGlobal:     999,
	ports.PlanUnlimited:  2499,
}

type PlanPrice struct {
	Plan     ports.Plan `json:"plan"`
	Amount   float64    `json:"amount"`
	Currency string     `json:"currency"`
}

type Emitter interface {
	Emit(ch broadcast.Channel, event string, payload any)
}

type Auditor interface {
	Log(kind, actor, target string, meta map[string]string) error
}

type Service struct {
	payments ports.PaymentsRepository
	gateway  payment.Gateway
	bus      Emitter
	queue    mq.Queue
	audit    Auditor
	metrics  *telemetry.SimMetrics
	cfg      payment.Config
	now      func() time.Time
}

func NewService(payments ports.PaymentsRepository, gateway payment.Gateway, bus Emitter, queue mq.Queue,
	audit Auditor, metrics *telemetry.SimMetrics, cfg payment.Config) *Service {
	if queue == nil {
		queue = mq.NewNoop()
	}
	if audit == nil {
		audit = (*chain.Writer)(nil)
	}
	if cfg.Currency == "" {
		cfg.Currency = "usd"
	}
	return &Service{payments: payments, gateway: gateway, bus: bus, queue: queue, audit: audit, metrics: metrics, cfg: cfg, now: time.Now}
}

// Plans lists the price table, cheapest first.
func (s *Service) Plans() []PlanPrice {
	out := make([]PlanPrice, 0, len(Prices))
	for p, amt := range Prices {
		out = append(out, PlanPrice{Plan: p, Amount: amt, Currency: s.cfg.Currency})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Amount < out[j].Amount })
	return out
}

// Create records a pending payment and opens a gateway invoice for it. The
// payment's own id is the invoice order id.
func (s *Service) Create(ctx context.Context, id ports.Identity, plan ports.Plan) (p *ports.Payment, err error) {
	ctx, span := telemetry.StartSpan(ctx, "billing.create", telemetry.PlanKey.String(string(plan)))
	defer func() { telemetry.EndSpan(span, err) }()

	if id.PrincipalID == "" {
		return nil, ports.ErrUnauthenticated
	}
	plan = ports.Plan(strings.ToLower(strings.TrimSpace(string(plan))))
	amount, ok := Prices[plan]
	if !ok {
		return nil, fmt.Errorf("%w: unknown plan %q", ports.ErrInvalidInput, plan)
	}
	p = &ports.Payment{
		ID:       uuid.NewString(),
		UserID:   id.PrincipalID,
		Plan:     plan,
		Amount:   amount,
		Currency: s.cfg.Currency,
		Status:   ports.PaymentPending,
	}
	if err := s.payments.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("create payment: %w", err)
	}
	checkout, err := s.gateway.CreateInvoice(ctx, payment.Invoice{
		OrderID:     p.ID,
		Description: fmt.Sprintf("NUWA %s plan", plan),
		Amount:      amount,
		Currency:    p.Currency,
	})
	if err != nil {
		if serr := s.payments.SetStatus(ctx, p.ID, ports.PaymentFailed); serr != nil {
			logx.WithContext(ctx).Errorf("mark payment %s failed: %v", p.ID, serr)
		}
		s.metrics.Payment(ctx, string(plan), "gateway_error")
		if !errors.Is(err, ports.ErrUpstreamFailure) {
			err = fmt.Errorf("%w: %v", ports.ErrUpstreamFailure, err)
		}
		return nil, err
	}
	if err := s.payments.AttachCheckout(ctx, p.ID, checkout.ProviderID, checkout.URL); err != nil {
		return nil, fmt.Errorf("store checkout: %w", err)
	}
	p.ProviderPaymentID, p.CheckoutURL = checkout.ProviderID, checkout.URL
	s.metrics.Payment(ctx, string(plan), string(ports.PaymentPending))
	mq.PublishPayment(s.queue, s.record(p, "created"))
	return p, nil
}

type CallbackResult struct {
	PaymentID string              `json:"paymentId"`
	Status    ports.PaymentStatus `json:"status"`
	Changed   bool                `json:"changed"`
}

// SubscriptionEvent is the subscription-updated payload.
type SubscriptionEvent struct {
	UserID     string                   `json:"userId"`
	Plan       ports.Plan               `json:"plan"`
	Status     ports.SubscriptionStatus `json:"status"`
	ValidUntil time.Time                `json:"validUntil"`
	PaymentID  string                   `json:"paymentId"`
}

// Callback applies a gateway notification. Signature checks run before the
// body is trusted; unknown payments are reported without any mutation.
func (s *Service) Callback(ctx context.Context, raw []byte, signature string) (res CallbackResult, err error) {
	ctx, span := telemetry.StartSpan(ctx, "billing.callback")
	defer func() { telemetry.EndSpan(span, err) }()

	if err := s.checkSignature(raw, signature); err != nil {
		if aerr := s.audit.Log(chain.KindCallbackRejected, "gateway", "", map[string]string{"reason": err.Error()}); aerr != nil {
			logx.WithContext(ctx).Errorf("audit callback rejection: %v", aerr)
		}
		return CallbackResult{}, err
	}
	n, err := payment.ParseNotification(raw)
	if err != nil {
		return CallbackResult{}, err
	}
	p, err := s.lookup(ctx, n)
	if err != nil {
		return CallbackResult{}, err
	}
	res = CallbackResult{PaymentID: p.ID, Status: p.Status}

	switch n.Status {
	case "finished":
		validUntil := s.now().Add(SubscriptionWindow).UTC()
		changed, err := s.payments.Complete(ctx, p.ID, validUntil)
		if err != nil {
			return CallbackResult{}, fmt.Errorf("complete payment: %w", err)
		}
		res.Status, res.Changed = ports.PaymentCompleted, changed
		if !changed {
			return res, nil
		}
		p.Status = ports.PaymentCompleted
		s.metrics.Payment(ctx, string(p.Plan), string(ports.PaymentCompleted))
		if err := s.audit.Log(chain.KindPaymentCompleted, p.UserID, p.ID, map[string]string{
			"plan":       string(p.Plan),
			"validUntil": validUntil.Format(time.RFC3339),
		}); err != nil {
			logx.WithContext(ctx).Errorf("audit payment: %v", err)
		}
		s.bus.Emit(broadcast.UserChannel(p.UserID), broadcast.EventSubscriptionUpdated, SubscriptionEvent{
			UserID:     p.UserID,
			Plan:       p.Plan,
			Status:     ports.SubscriptionActive,
			ValidUntil: validUntil,
			PaymentID:  p.ID,
		})
		mq.PublishPayment(s.queue, s.record(p, n.Status))
	case "failed", "expired", "refunded":
		if p.Status == ports.PaymentFailed {
			return res, nil
		}
		if err := s.payments.SetStatus(ctx, p.ID, ports.PaymentFailed); err != nil {
			return CallbackResult{}, fmt.Errorf("fail payment: %w", err)
		}
		p.Status = ports.PaymentFailed
		res.Status, res.Changed = ports.PaymentFailed, true
		s.metrics.Payment(ctx, string(p.Plan), string(ports.PaymentFailed))
		if err := s.audit.Log(chain.KindPaymentFailed, p.UserID, p.ID, map[string]string{"gatewayStatus": n.Status}); err != nil {
			logx.WithContext(ctx).Errorf("audit payment: %v", err)
		}
		mq.PublishPayment(s.queue, s.record(p, n.Status))
	default:
		logx.WithContext(ctx).Infow("payment callback acknowledged",
			logx.Field("paymentId", p.ID), logx.Field("gatewayStatus", n.Status))
	}
	return res, nil
}

func (s *Service) checkSignature(raw []byte, signature string) error {
	if s.cfg.IPNSecret == "" {
		if s.cfg.AllowUnsigned {
			return nil
		}
		return fmt.Errorf("%w: callback secret not configured", ports.ErrAccessDenied)
	}
	if !payment.Verify(raw, signature, s.cfg.IPNSecret) {
		return fmt.Errorf("%w: bad callback signature", ports.ErrAccessDenied)
	}
	return nil
}

// lookup resolves by durable id first, then by the gateway's identifiers.
func (s *Service) lookup(ctx context.Context, n payment.Notification) (*ports.Payment, error) {
	if n.OrderID != "" {
		p, err := s.payments.Get(ctx, n.OrderID)
		if err == nil {
			return p, nil
		}
		if !errors.Is(err, ports.ErrNotFound) {
			return nil, err
		}
	}
	for _, ref := range []string{n.InvoiceID, n.PaymentID} {
		if ref == "" {
			continue
		}
		p, err := s.payments.GetByProviderID(ctx, ref)
		if err == nil {
			return p, nil
		}
		if !errors.Is(err, ports.ErrNotFound) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("payment %s: %w", firstNonEmpty(n.OrderID, n.InvoiceID, n.PaymentID), ports.ErrNotFound)
}

func (s *Service) record(p *ports.Payment, gatewayStatus string) map[string]any {
	return map[string]any{
		"paymentId":     p.ID,
		"userId":        p.UserID,
		"plan":          string(p.Plan),
		"amount":        p.Amount,
		"currency":      p.Currency,
		"status":        string(p.Status),
		"gatewayStatus": gatewayStatus,
		"at":            s.now().UTC().Format(time.RFC3339Nano),
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
