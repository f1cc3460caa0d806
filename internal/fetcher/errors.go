package fetcher

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrEnvelopeMalformed is returned when the relay answers with an envelope we cannot unwrap.
	ErrEnvelopeMalformed = errors.New("relay envelope malformed")

	// ErrRelayDisabled is returned as the relay cause when no relay may be used.
	ErrRelayDisabled = errors.New("relay disabled")

	// ErrBodyTooLarge is returned when a response exceeds the configured size cap.
	ErrBodyTooLarge = errors.New("response body too large")
)

// StatusError is a non-2xx answer from the origin, either directly or as
// reported by the relay.
type StatusError struct {
	URL        string
	StatusCode int
	Relay      bool
	Body       []byte
}

func (e *StatusError) Error() string {
	via := "direct"
	if e.Relay {
		via = "relay"
	}
	return fmt.Sprintf("%s fetch returned %d %s", via, e.StatusCode, http.StatusText(e.StatusCode))
}

// TransportError means every transport path failed for Target.
type TransportError struct {
	Target string
	Direct error
	Relay  error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("fetch %s failed: direct: %v; relay: %v", e.Target, e.Direct, e.Relay)
}

// Unwrap exposes both causes to errors.Is and errors.As.
func (e *TransportError) Unwrap() []error {
	var errs []error
	if e.Direct != nil {
		errs = append(errs, e.Direct)
	}
	if e.Relay != nil {
		errs = append(errs, e.Relay)
	}
	return errs
}

// Warning is a short human-readable description for degraded mode notices.
// The relay cause is preferred since it was the last path tried.
func (e *TransportError) Warning() string {
	switch {
	case e.Relay != nil && !errors.Is(e.Relay, ErrRelayDisabled):
		if e.Direct != nil {
			return fmt.Sprintf("%v (after direct fetch failed: %v)", e.Relay, e.Direct)
		}
		return e.Relay.Error()
	case e.Direct != nil:
		return e.Direct.Error()
	default:
		return "all fetch paths failed"
	}
}

// StatusCode returns the most specific upstream status code, or 0.
func (e *TransportError) StatusCode() int {
	var se *StatusError
	if e.Relay != nil && errors.As(e.Relay, &se) {
		return se.StatusCode
	}
	if e.Direct != nil && errors.As(e.Direct, &se) {
		return se.StatusCode
	}
	return 0
}
