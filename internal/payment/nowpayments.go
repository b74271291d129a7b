// Package payment is the client side of the crypto payment gateway.
package payment

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/nuwa-agi/nuwa/internal/ports"
	"github.com/zeromicro/go-zero/rest/httpc"
)

// SignatureHeader carries the callback signature.
const SignatureHeader = "x-nowpayments-sig"

type Config struct {
	APIKey        string        `json:",optional,env=NOWPAYMENTS_API_KEY"`
	BaseURL       string        `json:",default=https://api.nowpayments.io"`
	IPNSecret     string        `json:",optional,env=NOWPAYMENTS_IPN_SECRET"`
	AllowUnsigned bool          `json:",optional"`
	CallbackURL   string        `json:",optional"`
	SuccessURL    string        `json:",optional"`
	Currency      string        `json:",default=usd"`
	Timeout       time.Duration `json:",default=15s"`
}

// Invoice is what the gateway is asked to collect.
type Invoice struct {
	OrderID     string
	Description string
	Amount      float64
	Currency    string
}

// Checkout is the gateway's answer: its own id plus the hosted payment page.
type Checkout struct {
	ProviderID string
	URL        string
}

type Gateway interface {
	CreateInvoice(ctx context.Context, inv Invoice) (Checkout, error)
}

type NOWPayments struct {
	c Config
}

func NewNOWPayments(c Config) *NOWPayments {
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	return &NOWPayments{c: c}
}

type invoiceRequest struct {
	APIKey         string  `header:"x-api-key"`
	PriceAmount    float64 `json:"price_amount"`
	PriceCurrency  string  `json:"price_currency"`
	OrderID        string  `json:"order_id"`
	OrderDesc      string  `json:"order_description"`
	IPNCallbackURL string  `json:"ipn_callback_url,optional"`
	SuccessURL     string  `json:"success_url,optional"`
}

func (g *NOWPayments) CreateInvoice(ctx context.Context, inv Invoice) (Checkout, error) {
	if g.c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.c.Timeout)
		defer cancel()
	}
	cur := inv.Currency
	if cur == "" {
		cur = g.c.Currency
	}
	resp, err := httpc.Do(ctx, http.MethodPost, g.c.BaseURL+"/v1/invoice", invoiceRequest{
		APIKey:         g.c.APIKey,
		PriceAmount:    inv.Amount,
		PriceCurrency:  strings.ToLower(cur),
		OrderID:        inv.OrderID,
		OrderDesc:      inv.Description,
		IPNCallbackURL: g.c.CallbackURL,
		SuccessURL:     g.c.SuccessURL,
	})
	if err != nil {
		return Checkout{}, fmt.Errorf("%w: invoice: %v", ports.ErrUpstreamFailure, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Checkout{}, fmt.Errorf("%w: invoice: %v", ports.ErrUpstreamFailure, err)
	}
	if resp.StatusCode/100 != 2 {
		return Checkout{}, fmt.Errorf("%w: invoice status %d", ports.ErrUpstreamFailure, resp.StatusCode)
	}
	m, err := decode(body)
	if err != nil {
		return Checkout{}, fmt.Errorf("%w: invoice: %v", ports.ErrUpstreamFailure, err)
	}
	out := Checkout{ProviderID: str(m["id"]), URL: str(m["invoice_url"])}
	if out.ProviderID == "" || out.URL == "" {
		return Checkout{}, fmt.Errorf("%w: invoice response missing id or url", ports.ErrUpstreamFailure)
	}
	return out, nil
}

// Notification is a decoded gateway callback.
type Notification struct {
	OrderID   string
	PaymentID string
	InvoiceID string
	Status    string
}

// ParseNotification decodes a callback body. Ids may arrive as numbers or strings.
func ParseNotification(raw []byte) (Notification, error) {
	m, err := decode(raw)
	if err != nil {
		return Notification{}, fmt.Errorf("%w: callback body: %v", ports.ErrInvalidInput, err)
	}
	n := Notification{
		OrderID:   str(m["order_id"]),
		PaymentID: str(m["payment_id"]),
		InvoiceID: str(m["invoice_id"]),
		Status:    strings.ToLower(str(m["payment_status"])),
	}
	if n.Status == "" {
		return Notification{}, fmt.Errorf("%w: callback missing payment_status", ports.ErrInvalidInput)
	}
	return n, nil
}

// Sign returns hex(HMAC-SHA512(secret, body re-encoded with sorted keys)).
func Sign(raw []byte, secret string) (string, error) {
	m, err := decode(raw)
	if err != nil {
		return "", err
	}
	sorted, err := canonical(m)
	if err != nil {
		return "", err
	}
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write(sorted)
	return hex.EncodeToString(mac.Sum(nil)), nil
}

// canonical encodes m with sorted keys and without HTML escaping, matching
// the gateway's JSON.stringify of the sorted body.
func canonical(m map[string]any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(m); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// Verify checks sig against raw in constant time.
func Verify(raw []byte, sig, secret string) bool {
	if sig == "" || secret == "" {
		return false
	}
	want, err := Sign(raw, secret)
	if err != nil {
		return false
	}
	return hmac.Equal([]byte(want), []byte(strings.ToLower(strings.TrimSpace(sig))))
}

func decode(raw []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var m map[string]any
	if err := dec.Decode(&m); err != nil {
		return nil, err
	}
	if m == nil {
		return nil, fmt.Errorf("empty object")
	}
	return m, nil
}

func str(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	default:
		return fmt.Sprint(t)
	}
}
