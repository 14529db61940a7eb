package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"syscall"
)

var (
	// ErrParse marks a document whose body could not be turned into text.
	ErrParse = errors.New("fetch: parse document")
	// ErrEmpty marks a document that parsed but yielded no text.
	ErrEmpty = errors.New("fetch: no extractable text")
	// ErrUnsupported marks identifiers the fetcher will not attempt.
	ErrUnsupported = errors.New("fetch: unsupported source")
)

// StatusError is a non-success HTTP answer from a fetch path.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string { return fmt.Sprintf("unexpected status: %d", e.Code) }

// IsTransient reports whether err is worth retrying: connection-level failures,
// timeouts, 429 and 5xx. Parent context cancellation is never transient.
func IsTransient(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code == 429 || (se.Code >= 500 && se.Code <= 599)
	}
	if errors.Is(err, ErrParse) || errors.Is(err, ErrEmpty) || errors.Is(err, ErrUnsupported) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.ECONNREFUSED) {
		return true
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	var oe *net.OpError
	return errors.As(err, &oe)
}
