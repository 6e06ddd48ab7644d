package bridge

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/eliteGoblin/shield/internal/domain"
	"github.com/eliteGoblin/shield/internal/infra"
)

// ErrUnsupported is returned for operations this daemon was started without.
var ErrUnsupported = errors.New("not supported")

func errUnsupported(what string) error {
	return fmt.Errorf("%w: %s", ErrUnsupported, what)
}

// statusFor maps an operation error to an HTTP status.
func statusFor(err error) int {
	var dup *domain.DuplicateProfileError
	switch {
	case errors.As(err, &dup), errors.Is(err, infra.ErrNoStagedUpdate):
		return http.StatusConflict
	case errors.Is(err, domain.ErrInvalidArgument), errors.Is(err, domain.ErrInvalidProfile):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrFeatureNotFound),
		errors.Is(err, domain.ErrModuleNotFound),
		errors.Is(err, domain.ErrActionNotFound),
		errors.Is(err, domain.ErrProfileNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrSystemProfile):
		return http.StatusForbidden
	case errors.Is(err, ErrUnsupported):
		return http.StatusNotImplemented
	case errors.Is(err, domain.ErrInvocationFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// errorBody is the wire form of every failure.
type errorBody struct {
	Error       string `json:"error"`
	DuplicateOf string `json:"duplicateOf,omitempty"`
}

func newErrorBody(op string, err error) errorBody {
	body := errorBody{Error: fmt.Sprintf("%s failed: %v", op, err)}
	var dup *domain.DuplicateProfileError
	if errors.As(err, &dup) {
		body.DuplicateOf = dup.DuplicateOf
	}
	return body
}
