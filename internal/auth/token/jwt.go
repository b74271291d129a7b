package token

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/nuwa-agi/nuwa/internal/ports"
)

var (
	ErrMissing = errors.New("token missing")
	ErrInvalid = errors.New("token invalid")
)

// Manager issues and verifies HS256 credentials carrying an identity.
type Manager struct {
	secret []byte
	issuer string
	now    func() time.Time
}

func NewManager(secret string) *Manager {
	return &Manager{secret: []byte(secret), issuer: "nuwa", now: time.Now}
}

type claims struct {
	Handle string `json:"handle,omitempty"`
	Team   string `json:"team,omitempty"`
	Role   string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// Sign returns a token for id that expires after ttl.
func (m *Manager) Sign(id ports.Identity, ttl time.Duration) (string, error) {
	if id.PrincipalID == "" {
		return "", fmt.Errorf("sign: empty principal")
	}
	now := m.now()
	c := claims{
		Handle: id.Handle,
		Team:   id.TeamID,
		Role:   string(id.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.PrincipalID,
			Issuer:    m.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(m.secret)
}

// Verify decodes tok into an identity. Any failure is reported as ErrInvalid.
func (m *Manager) Verify(tok string) (ports.Identity, error) {
	tok = strings.TrimSpace(tok)
	if tok == "" {
		return ports.Identity{}, ErrMissing
	}
	var c claims
	_, err := jwt.ParseWithClaims(tok, &c, func(*jwt.Token) (any, error) {
		return m.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithIssuer(m.issuer), jwt.WithTimeFunc(m.now))
	if err != nil {
		return ports.Identity{}, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if c.Subject == "" {
		return ports.Identity{}, fmt.Errorf("%w: no subject", ErrInvalid)
	}
	role := ports.Role(c.Role)
	if !role.Valid() {
		role = ports.RoleViewer
	}
	return ports.Identity{PrincipalID: c.Subject, Handle: c.Handle, TeamID: c.Team, Role: role}, nil
}

// FromHeader extracts a bearer token from an Authorization header value.
func FromHeader(authz string) string {
	if len(authz) > 7 && strings.EqualFold(authz[:7], "bearer ") {
		return strings.TrimSpace(authz[7:])
	}
	return ""
}
