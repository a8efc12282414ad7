package mgmt

import (
	"errors"
	"fmt"
)

var (
	ErrRemote             = errors.New("mgmt: remote error")
	ErrMalformed          = errors.New("mgmt: malformed message")
	ErrUnexpectedResponse = errors.New("mgmt: unexpected response")
	ErrClosed             = errors.New("mgmt: client closed")
)

// HTTP-style status codes, as used by AMQP management.
const (
	StatusBadRequest uint32 = 400
	StatusNotFound   uint32 = 404
	StatusConflict   uint32 = 409
	StatusInternal   uint32 = 500
)

// RemoteError is an error reported by the router. It matches ErrRemote.
type RemoteError struct {
	Code    uint32
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("mgmt: remote error %d: %s", e.Code, e.Message)
}

func (e *RemoteError) Is(target error) bool {
	return target == ErrRemote
}

// StatusCoder is implemented by handlers that classify their own errors.
// Handlers without it report StatusInternal for every failure.
type StatusCoder interface {
	StatusCode(err error) uint32
}
