package recommendations

import (
	"errors"
	"fmt"

	"github.com/rubberart7/GameDex-sub001/internal/catalog"
)

var (
	// ErrAuthenticationRequired indicates the request carried no authenticated user.
	ErrAuthenticationRequired = errors.New("authentication_required")
	// ErrConfigurationMissing indicates the generative provider is not configured.
	ErrConfigurationMissing = errors.New("configuration_missing")
	// ErrUpstreamUnavailable indicates the generative provider failed or timed out.
	ErrUpstreamUnavailable = errors.New("upstream_unavailable")
	// ErrResponseFormatInvalid indicates the generative output broke the output contract.
	ErrResponseFormatInvalid = errors.New("response_format_invalid")
	// ErrNotFoundUpstream indicates the catalog has no record for an identifier.
	ErrNotFoundUpstream = errors.New("not_found_upstream")
	// ErrUnexpectedInternal covers store failures and other internal faults.
	ErrUnexpectedInternal = errors.New("unexpected_internal_error")
)

// ServiceError pairs a stable "<operation>.<reason>" code with an error kind and cause.
type ServiceError struct {
	code string
	kind error
	err  error
}

func (e *ServiceError) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

// Unwrap exposes both the kind and the cause to errors.Is and errors.As.
func (e *ServiceError) Unwrap() []error {
	if e.err == nil {
		return []error{e.kind}
	}
	return []error{e.kind, e.err}
}

// Code returns the stable error code.
func (e *ServiceError) Code() string {
	return e.code
}

// Kind returns the taxonomy sentinel of the error.
func (e *ServiceError) Kind() error {
	return e.kind
}

func newServiceError(operation, reason string, kind, cause error) error {
	return &ServiceError{code: fmt.Sprintf("%s.%s", operation, reason), kind: kind, err: cause}
}

var kinds = []error{
	ErrAuthenticationRequired,
	ErrConfigurationMissing,
	ErrUpstreamUnavailable,
	ErrResponseFormatInvalid,
	ErrNotFoundUpstream,
	ErrUnexpectedInternal,
}

// KindOf classifies err into one of the taxonomy sentinels.
func KindOf(err error) error {
	for _, kind := range kinds {
		if errors.Is(err, kind) {
			return kind
		}
	}
	if errors.Is(err, catalog.ErrNotFound) {
		return ErrNotFoundUpstream
	}
	return ErrUnexpectedInternal
}
