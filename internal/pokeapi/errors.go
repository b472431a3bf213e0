package pokeapi

import (
	"errors"
	"fmt"
)

// ErrNotFound is wrapped by errors for entities the upstream does not know.
var ErrNotFound = errors.New("pokeapi: not found")

// ErrCircuitOpen is wrapped when the breaker rejects a call.
var ErrCircuitOpen = errors.New("pokeapi: circuit open")

// UpstreamError describes a failed upstream call.
type UpstreamError struct {
	Op         string // list | detail
	StatusCode int    // 0 when no response was received
	Detail     string // truncated response body, if any
	Err        error
}

func (e *UpstreamError) Error() string {
	msg := "pokeapi " + e.Op
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(": status %d", e.StatusCode)
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// IsNotFound reports whether err is an upstream 404.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
