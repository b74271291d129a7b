package handler

import (
	"io"
	"net/http"

	"github.com/nuwa-agi/nuwa/internal/payment"
	"github.com/nuwa-agi/nuwa/services/server/internal/logic"
	"github.com/nuwa-agi/nuwa/services/server/internal/svc"
	"github.com/nuwa-agi/nuwa/services/server/internal/types"
	"github.com/zeromicro/go-zero/rest/httpx"
)

const maxCallbackBody = 64 << 10

func PaymentPlansHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		l := logic.NewPaymentLogic(r.Context(), svcCtx)
		httpx.OkJsonCtx(r.Context(), w, l.Plans())
	}
}

func PaymentCreateHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req types.PaymentCreateRequest
		if err := httpx.Parse(r, &req); err != nil {
			parseError(r.Context(), w, err)
			return
		}

		l := logic.NewPaymentLogic(r.Context(), svcCtx)
		resp, err := l.Create(&req)
		if err != nil {
			writeError(r.Context(), w, err)
			return
		}
		httpx.WriteJsonCtx(r.Context(), w, http.StatusCreated, resp)
	}
}

// PaymentCallbackHandler keeps the body raw: the signature covers its exact
// contents, so it is not routed through httpx.Parse.
func PaymentCallbackHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw, err := io.ReadAll(io.LimitReader(r.Body, maxCallbackBody))
		if err != nil {
			parseError(r.Context(), w, err)
			return
		}

		l := logic.NewPaymentLogic(r.Context(), svcCtx)
		resp, err := l.Callback(raw, r.Header.Get(payment.SignatureHeader))
		if err != nil {
			writeError(r.Context(), w, err)
			return
		}
		httpx.OkJsonCtx(r.Context(), w, resp)
	}
}
