package handler

import (
	"net/http"

	"github.com/nuwa-agi/nuwa/services/server/internal/logic"
	"github.com/nuwa-agi/nuwa/services/server/internal/svc"
	"github.com/nuwa-agi/nuwa/services/server/internal/types"
	"github.com/zeromicro/go-zero/rest/httpx"
)

func AIQueryHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req types.AIQueryRequest
		if err := httpx.Parse(r, &req); err != nil {
			parseError(r.Context(), w, err)
			return
		}

		l := logic.NewAIQueryLogic(r.Context(), svcCtx)
		resp, err := l.AIQuery(&req)
		if err != nil {
			writeError(r.Context(), w, err)
			return
		}
		httpx.OkJsonCtx(r.Context(), w, resp)
	}
}

func AIEnginesHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		l := logic.NewAIQueryLogic(r.Context(), svcCtx)
		httpx.OkJsonCtx(r.Context(), w, l.AIEngines())
	}
}

func AISessionsHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req types.AISessionsRequest
		if err := httpx.Parse(r, &req); err != nil {
			parseError(r.Context(), w, err)
			return
		}

		l := logic.NewAISessionsLogic(r.Context(), svcCtx)
		resp, err := l.AISessions(&req)
		if err != nil {
			writeError(r.Context(), w, err)
			return
		}
		httpx.OkJsonCtx(r.Context(), w, resp)
	}
}
