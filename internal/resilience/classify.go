package resilience

import (
	"context"
	"errors"
	"net"

	sdk "github.com/anthropics/anthropic-sdk-go"
	openai "github.com/sashabaranov/go-openai"
	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Classify maps err onto the failure taxonomy. Explicit TransientError and
// PermanentError markers win; otherwise provider SDK errors are read for
// their HTTP status, and network errors fall back to the IsTransient checks.
// Unknown errors are permanent.
func Classify(err error) FailureKind {
	if err == nil {
		return KindNone
	}

	var pe *PermanentError
	if errors.As(err, &pe) {
		return KindPermanent
	}
	var te *TransientError
	if errors.As(err, &te) {
		if te.Kind != KindNone {
			return te.Kind
		}
		return kindForStatus(te.StatusCode)
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	if errors.Is(err, ErrCircuitOpen) {
		return KindServer
	}

	if status, ok := StatusCode(err); ok {
		if IsTransientHTTPStatus(status) {
			return kindForStatus(status)
		}
		if status >= 400 {
			return KindPermanent
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}
	if IsTransient(err) {
		return KindNetwork
	}
	return KindPermanent
}

// StatusCode extracts the HTTP status from a provider SDK error.
func StatusCode(err error) (int, bool) {
	var ae *sdk.Error
	if errors.As(err, &ae) {
		return ae.StatusCode, true
	}
	var oe *openai.APIError
	if errors.As(err, &oe) {
		return oe.HTTPStatusCode, true
	}
	var re *openai.RequestError
	if errors.As(err, &re) {
		return re.HTTPStatusCode, true
	}
	var ge *googleapi.Error
	if errors.As(err, &ge) {
		return ge.Code, true
	}
	if st, ok := status.FromError(err); ok && st.Code() != codes.OK {
		if code, ok := grpcStatus[st.Code()]; ok {
			return code, true
		}
	}
	return 0, false
}

// grpcStatus maps the gRPC codes Gemini returns onto HTTP statuses.
var grpcStatus = map[codes.Code]int{
	codes.InvalidArgument:    400,
	codes.FailedPrecondition: 400,
	codes.Unauthenticated:    401,
	codes.PermissionDenied:   403,
	codes.NotFound:           404,
	codes.DeadlineExceeded:   408,
	codes.ResourceExhausted:  429,
	codes.Internal:           500,
	codes.Unavailable:        503,
}

// Normalize wraps err in the TransientError or PermanentError its
// classification calls for, so callers can rely on IsTransient alone.
func Normalize(err error) error {
	if err == nil {
		return nil
	}
	var pe *PermanentError
	var te *TransientError
	if errors.As(err, &pe) || errors.As(err, &te) {
		return err
	}
	status, _ := StatusCode(err)
	kind := Classify(err)
	if kind.Transient() {
		return &TransientError{Err: err, StatusCode: status, Kind: kind}
	}
	return &PermanentError{Err: err, StatusCode: status, Reason: "rejected"}
}
