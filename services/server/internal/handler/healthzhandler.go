package handler

import (
	"net/http"

	"github.com/nuwa-agi/nuwa/services/server/internal/logic"
	"github.com/nuwa-agi/nuwa/services/server/internal/svc"
	"github.com/zeromicro/go-zero/rest/httpx"
)

func HealthzHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		l := logic.NewHealthzLogic(r.Context(), svcCtx)
		resp, err := l.Healthz()
		if err != nil {
			httpx.WriteJsonCtx(r.Context(), w, http.StatusServiceUnavailable, map[string]any{
				"code":    http.StatusServiceUnavailable,
				"message": "unavailable",
			})
			return
		}
		httpx.OkJsonCtx(r.Context(), w, resp)
	}
}
