package powrouter

import "github.com/pkg/errors"

// ErrAllBackendsFailed means a fan-out reached every healthy backend and
// none of them accepted the request.
var ErrAllBackendsFailed = errors.New("all backends failed")

// BadRequestError marks a client-side problem that should surface as a 400
// rather than an upstream failure.
type BadRequestError struct {
	Message string
}

func (e *BadRequestError) Error() string {
	return e.Message
}

func NewBadRequestError(message string) *BadRequestError {
	return &BadRequestError{Message: message}
}
