package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/nuwa-agi/nuwa/internal/ports"
	"github.com/zeromicro/go-zero/core/logx"
	"github.com/zeromicro/go-zero/rest/httpx"
)

var statusByCode = map[string]int{
	"not_found":          http.StatusNotFound,
	"access_denied":      http.StatusForbidden,
	"unauthenticated":    http.StatusUnauthorized,
	"invalid_input":      http.StatusBadRequest,
	"already_active":     http.StatusConflict,
	"upstream_failure":   http.StatusBadGateway,
	"inconsistent_state": http.StatusInternalServerError,
}

// writeError maps a domain error onto the JSON error envelope. Unclassified
// errors are logged and reported as a bare internal error.
func writeError(ctx context.Context, w http.ResponseWriter, err error) {
	status, ok := statusByCode[ports.ErrorCode(err)]
	msg := err.Error()
	if !ok {
		status = http.StatusInternalServerError
		msg = "internal error"
		logx.WithContext(ctx).Errorf("request failed: %v", err)
	} else if errors.Is(err, ports.ErrInconsistentState) || errors.Is(err, ports.ErrUpstreamFailure) {
		logx.WithContext(ctx).Errorf("request failed: %v", err)
	}
	httpx.WriteJsonCtx(ctx, w, status, map[string]any{
		"code":    status,
		"message": msg,
	})
}

// parseError reports a malformed request as invalid input.
func parseError(ctx context.Context, w http.ResponseWriter, err error) {
	httpx.WriteJsonCtx(ctx, w, http.StatusBadRequest, map[string]any{
		"code":    http.StatusBadRequest,
		"message": err.Error(),
	})
}
