package handler

import (
	"net/http"

	"github.com/nuwa-agi/nuwa/services/server/internal/logic"
	"github.com/nuwa-agi/nuwa/services/server/internal/svc"
	"github.com/nuwa-agi/nuwa/services/server/internal/types"
	"github.com/zeromicro/go-zero/rest/httpx"
)

func SimulationCreateHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req types.SimulationCreateRequest
		if err := httpx.Parse(r, &req); err != nil {
			parseError(r.Context(), w, err)
			return
		}

		l := logic.NewSimulationCreateLogic(r.Context(), svcCtx)
		resp, err := l.SimulationCreate(&req)
		if err != nil {
			writeError(r.Context(), w, err)
			return
		}
		httpx.WriteJsonCtx(r.Context(), w, http.StatusCreated, resp)
	}
}

func SimulationListHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		l := logic.NewSimulationListLogic(r.Context(), svcCtx)
		resp, err := l.SimulationList()
		if err != nil {
			writeError(r.Context(), w, err)
			return
		}
		httpx.OkJsonCtx(r.Context(), w, map[string]any{"simulations": resp})
	}
}

func SimulationGetHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req types.SimulationPathRequest
		if err := httpx.Parse(r, &req); err != nil {
			parseError(r.Context(), w, err)
			return
		}

		l := logic.NewSimulationGetLogic(r.Context(), svcCtx)
		resp, err := l.SimulationGet(&req)
		if err != nil {
			writeError(r.Context(), w, err)
			return
		}
		httpx.OkJsonCtx(r.Context(), w, resp)
	}
}

func SimulationUpdateHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req types.SimulationUpdateRequest
		if err := httpx.Parse(r, &req); err != nil {
			parseError(r.Context(), w, err)
			return
		}

		l := logic.NewSimulationUpdateLogic(r.Context(), svcCtx)
		resp, err := l.SimulationUpdate(&req)
		if err != nil {
			writeError(r.Context(), w, err)
			return
		}
		httpx.OkJsonCtx(r.Context(), w, resp)
	}
}

func CollaboratorSetHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req types.CollaboratorSetRequest
		if err := httpx.Parse(r, &req); err != nil {
			parseError(r.Context(), w, err)
			return
		}

		l := logic.NewCollaboratorLogic(r.Context(), svcCtx)
		resp, err := l.Set(&req)
		if err != nil {
			writeError(r.Context(), w, err)
			return
		}
		httpx.OkJsonCtx(r.Context(), w, resp)
	}
}

func CollaboratorRemoveHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req types.CollaboratorRemoveRequest
		if err := httpx.Parse(r, &req); err != nil {
			parseError(r.Context(), w, err)
			return
		}

		l := logic.NewCollaboratorLogic(r.Context(), svcCtx)
		resp, err := l.Remove(&req)
		if err != nil {
			writeError(r.Context(), w, err)
			return
		}
		httpx.OkJsonCtx(r.Context(), w, resp)
	}
}
