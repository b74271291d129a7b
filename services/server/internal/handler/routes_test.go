package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/nuwa-agi/nuwa/internal/ai"
	"github.com/nuwa-agi/nuwa/internal/engine"
	"github.com/nuwa-agi/nuwa/internal/payment"
	"github.com/nuwa-agi/nuwa/services/server/internal/config"
	"github.com/nuwa-agi/nuwa/services/server/internal/svc"
	"github.com/zeromicro/go-zero/core/conf"
	"github.com/zeromicro/go-zero/rest"
)

const testConfig = `
Name: nuwa-test
Host: 127.0.0.1
Port: 18888
Log:
  Mode: console
  Level: severe
Database:
  DSN: ":memory:"
Auth:
  JWTSecret: test-secret
Payment:
  IPNSecret: ipn-secret
`

type echoGenerator struct{}

func (echoGenerator) Generate(_ context.Context, req ai.Request) (ai.Completion, error) {
	return ai.Completion{Text: "echo: " + req.Prompt, Tokens: 7}, nil
}

type stubGateway struct{}

func (stubGateway) CreateInvoice(_ context.Context, inv payment.Invoice) (payment.Checkout, error) {
	return payment.Checkout{ProviderID: "np-" + inv.OrderID, URL: "https://pay.example/" + inv.OrderID}, nil
}

type api struct {
	t      *testing.T
	server *rest.Server
}

func newAPI(t *testing.T) *api {
	t.Helper()
	var c config.Config
	if err := conf.LoadFromYamlBytes([]byte(testConfig), &c); err != nil {
		t.Fatalf("load config: %v", err)
	}
	ctx, err := svc.New(c, svc.Overrides{
		Generator:     echoGenerator{},
		Gateway:       stubGateway{},
		EngineOptions: []engine.Option{engine.WithScheduler(engine.NewManualScheduler())},
	})
	if err != nil {
		t.Fatalf("service context: %v", err)
	}
	t.Cleanup(ctx.Close)
	server := rest.MustNewServer(c.RestConf)
	RegisterHandlers(server, ctx)
	return &api{t: t, server: server}
}

func (a *api) do(method, path, token string, body any, headers ...string) (int, map[string]any) {
	a.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if raw, ok := body.([]byte); ok {
			buf.Write(raw)
		} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
			a.t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	a.server.ServeHTTP(rec, req)
	out := map[string]any{}
	if rec.Body.Len() > 0 {
		_ = json.Unmarshal(rec.Body.Bytes(), &out)
	}
	return rec.Code, out
}

type account struct {
	id    string
	token string
}

func (a *api) register(username, team, role string) account {
	a.t.Helper()
	code, body := a.do(http.MethodPost, "/api/auth/register", "", map[string]any{
		"username": username,
		"password": "correct-horse",
		"teamId":   team,
		"role":     role,
	})
	if code != http.StatusCreated {
		a.t.Fatalf("register %s: %d %v", username, code, body)
	}
	user := body["user"].(map[string]any)
	return account{id: user["id"].(string), token: body["token"].(string)}
}

func TestSharingScenarioOverHTTP(t *testing.T) {
	a := newAPI(t)
	alice := a.register("alice", "team-a", "editor")
	bob := a.register("bob", "team-b", "editor")
	carol := a.register("carol", "team-a", "viewer")

	code, sim := a.do(http.MethodPost, "/api/simulations", alice.token, map[string]any{
		"name":       "Harbor",
		"domainType": "city",
		"parameters": map[string]any{"population": 5000},
	})
	if code != http.StatusCreated || sim["status"] != "idle" {
		t.Fatalf("create: %d %v", code, sim)
	}
	id := sim["id"].(string)
	base := "/api/simulations/" + id

	if code, _ := a.do(http.MethodGet, base, bob.token, nil); code != http.StatusForbidden {
		t.Fatalf("outsider read: %d", code)
	}
	code, view := a.do(http.MethodGet, base, carol.token, nil)
	if code != http.StatusOK || view["capability"] != "viewer" {
		t.Fatalf("teammate read: %d %v", code, view)
	}
	if code, _ := a.do(http.MethodPost, base+"/start", carol.token, nil); code != http.StatusForbidden {
		t.Fatalf("viewer start: %d", code)
	}

	code, _ = a.do(http.MethodPut, base+"/collaborators", alice.token, map[string]any{"principalId": bob.id, "role": "editor"})
	if code != http.StatusOK {
		t.Fatalf("share: %d", code)
	}
	code, st := a.do(http.MethodPost, base+"/start", bob.token, map[string]any{"parameters": map[string]any{"energy": 80}})
	if code != http.StatusOK || st["status"] != "running" {
		t.Fatalf("collaborator start: %d %v", code, st)
	}
	if code, _ := a.do(http.MethodPost, base+"/start", alice.token, nil); code != http.StatusConflict {
		t.Fatalf("second start: %d", code)
	}

	code, _ = a.do(http.MethodDelete, base+"/collaborators/"+bob.id, alice.token, nil)
	if code != http.StatusOK {
		t.Fatalf("unshare: %d", code)
	}
	if code, _ := a.do(http.MethodPost, base+"/pause", bob.token, nil); code != http.StatusForbidden {
		t.Fatalf("revoked pause: %d", code)
	}
	code, st = a.do(http.MethodPost, base+"/stop", alice.token, nil)
	if code != http.StatusOK || st["status"] != "idle" {
		t.Fatalf("owner stop: %d %v", code, st)
	}

	code, list := a.do(http.MethodGet, "/api/simulations", bob.token, nil)
	if code != http.StatusOK || len(list["simulations"].([]any)) != 0 {
		t.Fatalf("outsider list: %d %v", code, list)
	}
}

func TestCredentialRejections(t *testing.T) {
	a := newAPI(t)
	if code, _ := a.do(http.MethodGet, "/api/simulations", "", nil); code != http.StatusUnauthorized {
		t.Fatalf("missing token: %d", code)
	}
	if code, _ := a.do(http.MethodGet, "/api/simulations", "not-a-token", nil); code != http.StatusForbidden {
		t.Fatalf("bad token: %d", code)
	}
	a.register("dana", "", "")
	code, _ := a.do(http.MethodPost, "/api/auth/login", "", map[string]any{"username": "dana", "password": "wrong-password"})
	if code != http.StatusUnauthorized {
		t.Fatalf("wrong password: %d", code)
	}
	code, body := a.do(http.MethodPost, "/api/auth/login", "", map[string]any{"username": "dana", "password": "correct-horse"})
	if code != http.StatusOK {
		t.Fatalf("login: %d %v", code, body)
	}
	code, me := a.do(http.MethodGet, "/api/auth/me", body["token"].(string), nil)
	if code != http.StatusOK || me["teamId"] != "default" || me["role"] != "viewer" {
		t.Fatalf("me: %d %v", code, me)
	}
}

func TestPremiumEngineUnlocksAfterPayment(t *testing.T) {
	a := newAPI(t)
	erin := a.register("erin", "team-e", "editor")
	_, sim := a.do(http.MethodPost, "/api/simulations", erin.token, map[string]any{"name": "Orbit", "domainType": "space"})
	query := map[string]any{"simulationId": sim["id"], "engine": "advanced", "prompt": "how long to Mars?"}

	if code, _ := a.do(http.MethodPost, "/api/ai/query", erin.token, query); code != http.StatusForbidden {
		t.Fatalf("premium without subscription: %d", code)
	}

	code, pay := a.do(http.MethodPost, "/api/payments", erin.token, map[string]any{"plan": "pro"})
	if code != http.StatusCreated || pay["status"] != "pending" || !strings.HasPrefix(pay["checkoutUrl"].(string), "https://pay.example/") {
		t.Fatalf("create payment: %d %v", code, pay)
	}

	raw := []byte(`{"payment_status":"finished","order_id":"` + pay["id"].(string) + `","payment_id":4411}`)
	if code, _ := a.do(http.MethodPost, "/api/payments/callback", "", raw, payment.SignatureHeader, "deadbeef"); code != http.StatusForbidden {
		t.Fatalf("forged callback: %d", code)
	}
	sig, err := payment.Sign(raw, "ipn-secret")
	if err != nil {
		t.Fatal(err)
	}
	code, res := a.do(http.MethodPost, "/api/payments/callback", "", raw, payment.SignatureHeader, sig)
	if code != http.StatusOK || res["changed"] != true || res["status"] != "completed" {
		t.Fatalf("callback: %d %v", code, res)
	}

	code, me := a.do(http.MethodGet, "/api/auth/me", erin.token, nil)
	sub := me["subscription"].(map[string]any)
	if code != http.StatusOK || sub["active"] != true || sub["plan"] != "pro" {
		t.Fatalf("subscription: %d %v", code, me)
	}

	code, ans := a.do(http.MethodPost, "/api/ai/query", erin.token, query)
	if code != http.StatusOK || ans["response"] != "echo: how long to Mars?" {
		t.Fatalf("premium query: %d %v", code, ans)
	}
	code, sessions := a.do(http.MethodGet, "/api/simulations/"+sim["id"].(string)+"/ai-sessions", erin.token, nil)
	if code != http.StatusOK || len(sessions["sessions"].([]any)) != 1 {
		t.Fatalf("sessions: %d %v", code, sessions)
	}
}

func TestHealthz(t *testing.T) {
	a := newAPI(t)
	code, body := a.do(http.MethodGet, "/healthz", "", nil)
	if code != http.StatusOK || body["status"] != "ok" {
		t.Fatalf("healthz: %d %v", code, body)
	}
}
