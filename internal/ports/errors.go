package ports

import "errors"

// Outcome taxonomy shared by the engine, the services and the transports.
// Callers wrap these with fmt.Errorf("...: %w") and test with errors.Is.
var (
	ErrNotFound          = errors.New("not found")
	ErrAccessDenied      = errors.New("access denied")
	ErrAlreadyActive     = errors.New("simulation already active")
	ErrInvalidInput      = errors.New("invalid input")
	ErrUpstreamFailure   = errors.New("upstream failure")
	ErrInconsistentState = errors.New("inconsistent state")
	ErrUnauthenticated   = errors.New("unauthenticated")
)

// ErrorCode returns the stable wire code for err's outcome class.
func ErrorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrAccessDenied):
		return "access_denied"
	case errors.Is(err, ErrUnauthenticated):
		return "unauthenticated"
	case errors.Is(err, ErrAlreadyActive):
		return "already_active"
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, ErrUpstreamFailure):
		return "upstream_failure"
	case errors.Is(err, ErrInconsistentState):
		return "inconsistent_state"
	default:
		return "internal"
	}
}
