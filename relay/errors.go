package relay

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind int

const (
	KindInternal Kind = iota
	KindBadRequest
	KindNotFound
	// KindUpstream means the provider answered but broke its contract.
	KindUpstream
	// KindUnreachable means the outbound call itself failed, timeouts included.
	KindUnreachable
	// KindCanceled means the client went away before the upstream call finished.
	KindCanceled
)

// StatusClientClosedRequest is the nginx status for a request the client
// abandoned.
const StatusClientClosedRequest = 499

func (k Kind) String() string {
	switch k {
	case KindBadRequest:
		return "bad_request"
	case KindNotFound:
		return "not_found"
	case KindUpstream:
		return "upstream_error"
	case KindUnreachable:
		return "upstream_unreachable"
	case KindCanceled:
		return "canceled"
	default:
		return "internal"
	}
}

// StatusCode is the HTTP status a client sees for this kind of failure.
func (k Kind) StatusCode() int {
	switch k {
	case KindBadRequest:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindUpstream:
		return http.StatusBadGateway
	case KindUnreachable:
		return http.StatusGatewayTimeout
	case KindCanceled:
		return StatusClientClosedRequest
	default:
		return http.StatusInternalServerError
	}
}

// Error is a failure detected by the relay itself. Upstream replies are never
// turned into an Error; they are relayed as they are.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func badRequest(msg string) error {
	return &Error{Kind: KindBadRequest, Message: msg}
}

func notFound(msg string) error {
	return &Error{Kind: KindNotFound, Message: msg}
}

func upstreamError(msg string) error {
	return &Error{Kind: KindUpstream, Message: msg}
}

func unreachable(err error) error {
	return &Error{Kind: KindUnreachable, Message: "upstream unreachable", Err: err}
}

func canceled(err error) error {
	return &Error{Kind: KindCanceled, Message: "request canceled", Err: err}
}

func internal(msg string, err error) error {
	return &Error{Kind: KindInternal, Message: msg, Err: err}
}

// KindOf reports the kind of err, KindInternal for foreign errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

var (
	ErrSessionNotFound = errors.New("upload session not found")
	ErrMalformedFileID = errors.New("file_id not found in upload location")
)
