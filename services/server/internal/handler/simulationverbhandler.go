package handler

import (
	"net/http"

	"github.com/nuwa-agi/nuwa/internal/engine"
	"github.com/nuwa-agi/nuwa/services/server/internal/logic"
	"github.com/nuwa-agi/nuwa/services/server/internal/svc"
	"github.com/nuwa-agi/nuwa/services/server/internal/types"
	"github.com/zeromicro/go-zero/rest/httpx"
)

func SimulationStartHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req types.SimulationStartRequest
		if err := httpx.Parse(r, &req); err != nil {
			parseError(r.Context(), w, err)
			return
		}

		l := logic.NewSimulationVerbLogic(r.Context(), svcCtx)
		resp, err := l.Start(&req)
		if err != nil {
			writeError(r.Context(), w, err)
			return
		}
		httpx.OkJsonCtx(r.Context(), w, resp)
	}
}

func SimulationPauseHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return simulationVerb(svcCtx, (*logic.SimulationVerbLogic).Pause)
}

func SimulationResumeHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return simulationVerb(svcCtx, (*logic.SimulationVerbLogic).Resume)
}

func SimulationStopHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return simulationVerb(svcCtx, (*logic.SimulationVerbLogic).Stop)
}

func SimulationStateHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return simulationVerb(svcCtx, (*logic.SimulationVerbLogic).State)
}

func simulationVerb(svcCtx *svc.ServiceContext,
	fn func(*logic.SimulationVerbLogic, *types.SimulationPathRequest) (*engine.State, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req types.SimulationPathRequest
		if err := httpx.Parse(r, &req); err != nil {
			parseError(r.Context(), w, err)
			return
		}

		resp, err := fn(logic.NewSimulationVerbLogic(r.Context(), svcCtx), &req)
		if err != nil {
			writeError(r.Context(), w, err)
			return
		}
		httpx.OkJsonCtx(r.Context(), w, resp)
	}
}
