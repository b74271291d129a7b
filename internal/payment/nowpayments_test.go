package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/nuwa-agi/nuwa/internal/ports"
)

func TestCreateInvoice(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/invoice" || r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}
		if r.Header.Get("x-api-key") != "key" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":4522625843,"order_id":"pay-1","invoice_url":"https://nowpayments.io/payment/?iid=4522625843"}`))
	}))
	defer srv.Close()

	g := NewNOWPayments(Config{APIKey: "key", BaseURL: srv.URL + "/", Currency: "usd", CallbackURL: "https://nuwa.example/api/payments/callback"})
	out, err := g.CreateInvoice(context.Background(), Invoice{OrderID: "pay-1", Description: "pro plan", Amount: 29})
	if err != nil {
		t.Fatalf("invoice: %v", err)
	}
	if out.ProviderID != "4522625843" || out.URL == "" {
		t.Fatalf("unexpected checkout: %+v", out)
	}
	if body["order_id"] != "pay-1" || body["price_amount"] != float64(29) || body["price_currency"] != "usd" {
		t.Fatalf("unexpected request body: %v", body)
	}
}

func TestCreateInvoiceUpstreamFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	g := NewNOWPayments(Config{APIKey: "key", BaseURL: srv.URL})
	_, err := g.CreateInvoice(context.Background(), Invoice{OrderID: "pay-1", Description: "basic plan", Amount: 9, Currency: "usd"})
	if !errors.Is(err, ports.ErrUpstreamFailure) {
		t.Fatalf("want ErrUpstreamFailure, got %v", err)
	}
}

func TestSignVerify(t *testing.T) {
	raw := []byte(`{"payment_status":"finished","order_id":"pay-1","payment_id":5077125051,"price_amount":29}`)
	reordered := []byte(`{"price_amount":29,"payment_id":5077125051,"order_id":"pay-1","payment_status":"finished"}`)

	sig, err := Sign(raw, "secret")
	if err != nil {
		t.Fatal(err)
	}
	if !Verify(reordered, sig, "secret") {
		t.Fatal("signature must not depend on key order")
	}
	if Verify(raw, sig, "other") {
		t.Fatal("wrong secret accepted")
	}
	if Verify([]byte(`{"payment_status":"failed","order_id":"pay-1","payment_id":5077125051,"price_amount":29}`), sig, "secret") {
		t.Fatal("tampered body accepted")
	}
	if Verify(raw, "", "secret") {
		t.Fatal("empty signature accepted")
	}
}

func TestSignDoesNotEscapeHTML(t *testing.T) {
	raw := []byte(`{"order_description":"R&D <pro>","order_id":"pay-1","payment_status":"finished"}`)
	sig, err := Sign(raw, "secret")
	if err != nil {
		t.Fatal(err)
	}
	mac := hmac.New(sha512.New, []byte("secret"))
	mac.Write(raw)
	if want := hex.EncodeToString(mac.Sum(nil)); sig != want {
		t.Fatalf("signature computed over an escaped body")
	}
	if !Verify(raw, sig, "secret") {
		t.Fatal("gateway signature rejected")
	}
}

func TestParseNotification(t *testing.T) {
	n, err := ParseNotification([]byte(`{"payment_status":"Finished","order_id":"pay-1","payment_id":5077125051,"invoice_id":"42"}`))
	if err != nil {
		t.Fatal(err)
	}
	if n.Status != "finished" || n.OrderID != "pay-1" || n.PaymentID != "5077125051" || n.InvoiceID != "42" {
		t.Fatalf("unexpected: %+v", n)
	}
	if _, err := ParseNotification([]byte(`{"order_id":"x"}`)); !errors.Is(err, ports.ErrInvalidInput) {
		t.Fatalf("missing status: %v", err)
	}
	if _, err := ParseNotification([]byte(`nope`)); !errors.Is(err, ports.ErrInvalidInput) {
		t.Fatalf("bad json: %v", err)
	}
}
