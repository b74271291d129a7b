package billing

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/nuwa-agi/nuwa/internal/broadcast"
	"github.com/nuwa-agi/nuwa/internal/payment"
	"github.com/nuwa-agi/nuwa/internal/ports"
	paymentsgorm "github.com/nuwa-agi/nuwa/internal/repo/gorm/payments"
	usersgorm "github.com/nuwa-agi/nuwa/internal/repo/gorm/users"
	"gorm.io/gorm"
)

const secret = "ipn-secret"

type fakeGateway struct {
	err  error
	last payment.Invoice
}

func (g *fakeGateway) CreateInvoice(_ context.Context, inv payment.Invoice) (payment.Checkout, error) {
	g.last = inv
	if g.err != nil {
		return payment.Checkout{}, g.err
	}
	return payment.Checkout{ProviderID: "inv-" + inv.OrderID[:8], URL: "https://pay.example/" + inv.OrderID}, nil
}

type busRecorder struct {
	mu     sync.Mutex
	events []string
}

func (b *busRecorder) Emit(ch broadcast.Channel, event string, _ any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, ch.String()+"/"+event)
}

type fixture struct {
	svc   *Service
	users *usersgorm.Repo
	gw    *fakeGateway
	bus   *busRecorder
	user  *ports.User
}

func newFixture(t *testing.T, cfg payment.Config) *fixture {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1)
	if err := usersgorm.AutoMigrate(db); err != nil {
		t.Fatal(err)
	}
	if err := paymentsgorm.AutoMigrate(db); err != nil {
		t.Fatal(err)
	}
	f := &fixture{users: usersgorm.New(db), gw: &fakeGateway{}, bus: &busRecorder{}}
	f.user = &ports.User{Username: "ada", Email: "ada@example.com", TeamID: "t1", Role: ports.RoleEditor}
	if err := f.users.Create(context.Background(), f.user, "pw"); err != nil {
		t.Fatalf("create user: %v", err)
	}
	f.svc = NewService(paymentsgorm.NewRepo(db), f.gw, f.bus, nil, nil, nil, cfg)
	return f
}

func signed(t *testing.T, body string) (raw []byte, sig string) {
	t.Helper()
	raw = []byte(body)
	sig, err := payment.Sign(raw, secret)
	if err != nil {
		t.Fatal(err)
	}
	return raw, sig
}

func TestCreatePayment(t *testing.T) {
	f := newFixture(t, payment.Config{IPNSecret: secret})
	ctx := context.Background()
	p, err := f.svc.Create(ctx, f.user.Identity(), "Pro")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if p.Amount != 29 || p.Plan != ports.PlanPro || p.Status != ports.PaymentPending || p.CheckoutURL == "" || p.ProviderPaymentID == "" {
		t.Fatalf("unexpected payment: %+v", p)
	}
	if f.gw.last.OrderID != p.ID {
		t.Fatalf("order id %q, want payment id %q", f.gw.last.OrderID, p.ID)
	}
	if _, err := f.svc.Create(ctx, f.user.Identity(), "platinum"); !errors.Is(err, ports.ErrInvalidInput) {
		t.Fatalf("unknown plan: %v", err)
	}

	f.gw.err = errors.New("gateway timeout")
	if _, err := f.svc.Create(ctx, f.user.Identity(), ports.PlanBasic); !errors.Is(err, ports.ErrUpstreamFailure) {
		t.Fatalf("gateway failure: %v", err)
	}
	if plans := f.svc.Plans(); len(plans) != 6 || plans[0].Plan != ports.PlanBasic || plans[5].Plan != ports.PlanUnlimited {
		t.Fatalf("plans: %+v", plans)
	}
}

func TestFinishedCallbackActivatesSubscription(t *testing.T) {
	f := newFixture(t, payment.Config{IPNSecret: secret})
	ctx := context.Background()
	p, err := f.svc.Create(ctx, f.user.Identity(), ports.PlanTeam)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	raw, sig := signed(t, `{"payment_id":5077125051,"payment_status":"finished","order_id":"`+p.ID+`"}`)
	before := time.Now()
	res, err := f.svc.Callback(ctx, raw, sig)
	if err != nil || !res.Changed || res.Status != ports.PaymentCompleted {
		t.Fatalf("callback: %+v %v", res, err)
	}
	u, _ := f.users.Get(ctx, f.user.ID)
	if u.Subscription.Status != ports.SubscriptionActive || u.Subscription.Plan != ports.PlanTeam {
		t.Fatalf("subscription not active: %+v", u.Subscription)
	}
	want := before.Add(SubscriptionWindow)
	if d := u.Subscription.ValidUntil.Sub(want); d < -time.Minute || d > time.Minute {
		t.Fatalf("validUntil %v not within a minute of %v", u.Subscription.ValidUntil, want)
	}
	if len(f.bus.events) != 1 || f.bus.events[0] != "user:"+f.user.ID+"/subscription-updated" {
		t.Fatalf("events: %v", f.bus.events)
	}

	// replay does not extend or re-broadcast
	first := *u.Subscription.ValidUntil
	res, err = f.svc.Callback(ctx, raw, sig)
	if err != nil || res.Changed {
		t.Fatalf("replay: %+v %v", res, err)
	}
	u, _ = f.users.Get(ctx, f.user.ID)
	if !u.Subscription.ValidUntil.Equal(first) || len(f.bus.events) != 1 {
		t.Fatalf("replay mutated state")
	}
}

func TestCallbackFallsBackToProviderID(t *testing.T) {
	f := newFixture(t, payment.Config{IPNSecret: secret})
	ctx := context.Background()
	p, err := f.svc.Create(ctx, f.user.Identity(), ports.PlanBasic)
	if err != nil {
		t.Fatal(err)
	}
	raw, sig := signed(t, `{"invoice_id":"`+p.ProviderPaymentID+`","payment_status":"expired","order_id":"forged|pro|someone"}`)
	res, err := f.svc.Callback(ctx, raw, sig)
	if err != nil || res.PaymentID != p.ID || res.Status != ports.PaymentFailed {
		t.Fatalf("fallback: %+v %v", res, err)
	}
}

func TestCallbackRejections(t *testing.T) {
	f := newFixture(t, payment.Config{IPNSecret: secret})
	ctx := context.Background()

	raw, sig := signed(t, `{"payment_id":"999","payment_status":"finished","order_id":"missing"}`)
	if _, err := f.svc.Callback(ctx, raw, sig); !errors.Is(err, ports.ErrNotFound) {
		t.Fatalf("unknown payment: %v", err)
	}
	u, _ := f.users.Get(ctx, f.user.ID)
	if u.Subscription.Status == ports.SubscriptionActive {
		t.Fatal("unknown payment activated a subscription")
	}

	if _, err := f.svc.Callback(ctx, raw, "deadbeef"); !errors.Is(err, ports.ErrAccessDenied) {
		t.Fatalf("bad signature: %v", err)
	}
	if _, err := f.svc.Callback(ctx, raw, ""); !errors.Is(err, ports.ErrAccessDenied) {
		t.Fatalf("missing signature: %v", err)
	}

	open := newFixture(t, payment.Config{AllowUnsigned: true})
	if _, err := open.svc.Callback(ctx, raw, ""); !errors.Is(err, ports.ErrNotFound) {
		t.Fatalf("unsigned allowed: want ErrNotFound, got %v", err)
	}
	closed := newFixture(t, payment.Config{})
	if _, err := closed.svc.Callback(ctx, raw, ""); !errors.Is(err, ports.ErrAccessDenied) {
		t.Fatalf("no secret configured: %v", err)
	}
}
