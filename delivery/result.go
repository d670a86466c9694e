package delivery

import (
	"context"
	"errors"
	"net"
	"time"
)

/* FailureClass categorizes a delivery attempt outcome
 * The class, not the raw error, drives the retry-vs-abandon decision
 */
type FailureClass int

const (
	NoFailure FailureClass = iota
	ConfigInvalid
	UnsupportedFormat
	NetworkError
	TimeoutError
	ClientError // 3xx/4xx response other than 429
	ServerError // 5xx response
	Throttled   // 429 response
	InternalError
)

// String returns the string representation of the failure class
func (c FailureClass) String() string {
	switch c {
	case NoFailure:
		return "none"
	case ConfigInvalid:
		return "config_invalid"
	case UnsupportedFormat:
		return "unsupported_format"
	case NetworkError:
		return "network_error"
	case TimeoutError:
		return "timeout"
	case ClientError:
		return "client_error"
	case ServerError:
		return "server_error"
	case Throttled:
		return "throttled"
	case InternalError:
		return "internal_error"
	default:
		return "unknown"
	}
}

/* Retryable reports whether another attempt may succeed for this class
 * Transient transport and server failures are retryable; config,
 * format and other 4xx failures are terminal
 */
func (c FailureClass) Retryable() bool {
	switch c {
	case NetworkError, TimeoutError, ServerError, Throttled:
		return true
	default:
		return false
	}
}

/* Result represents the outcome of a single delivery attempt
 * Immutable once created; each attempt yields a new Result keyed
 * by (delivery id, attempt number)
 */
type Result struct {
	Success      bool
	StatusCode   int // 0 when no response was received
	ResponseBody string
	Latency      time.Duration
	Error        string
	Class        FailureClass
}

// ClassifyStatus maps an HTTP status code to a failure class
func ClassifyStatus(statusCode int) FailureClass {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return NoFailure
	case statusCode == 429:
		return Throttled
	case statusCode >= 500:
		return ServerError
	default:
		return ClientError
	}
}

/* ClassifyError maps a transport error to a failure class
 * Timeouts are distinguished so operators can tell a slow destination
 * from an unreachable one
 */
func ClassifyError(err error) FailureClass {
	if err == nil {
		return NoFailure
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return TimeoutError
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return TimeoutError
	}
	return NetworkError
}

// StatusResult builds the Result for a completed HTTP exchange
func StatusResult(statusCode int, body string, latency time.Duration) Result {
	class := ClassifyStatus(statusCode)
	return Result{
		Success:      class == NoFailure,
		StatusCode:   statusCode,
		ResponseBody: body,
		Latency:      latency,
		Class:        class,
	}
}

// ErrorResult builds the Result for an attempt that produced no HTTP response
func ErrorResult(class FailureClass, err error, latency time.Duration) Result {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return Result{
		Latency: latency,
		Error:   msg,
		Class:   class,
	}
}
