package middleware

import (
	"net/http"

	"github.com/nuwa-agi/nuwa/internal/auth/token"
	"github.com/nuwa-agi/nuwa/internal/ports"
	"github.com/zeromicro/go-zero/core/logx"
	"github.com/zeromicro/go-zero/rest/httpx"
)

// Verifier decodes a bearer credential. *token.Manager satisfies it.
type Verifier interface {
	Verify(tok string) (ports.Identity, error)
}

// AuthMiddleware decodes the caller's identity and stores it in the request
// context. A missing credential is 401, an unusable one 403.
type AuthMiddleware struct {
	verifier Verifier
}

func NewAuthMiddleware(v Verifier) *AuthMiddleware {
	return &AuthMiddleware{verifier: v}
}

func (m *AuthMiddleware) Handle(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tok := token.FromHeader(r.Header.Get("Authorization"))
		if tok == "" {
			httpx.WriteJsonCtx(r.Context(), w, http.StatusUnauthorized, map[string]any{
				"code":    http.StatusUnauthorized,
				"message": "unauthorized",
			})
			return
		}
		id, err := m.verifier.Verify(tok)
		if err != nil {
			logx.WithContext(r.Context()).Infof("rejected credential: %v", err)
			httpx.WriteJsonCtx(r.Context(), w, http.StatusForbidden, map[string]any{
				"code":    http.StatusForbidden,
				"message": "invalid token",
			})
			return
		}
		next(w, r.WithContext(ports.WithIdentity(r.Context(), id)))
	}
}
