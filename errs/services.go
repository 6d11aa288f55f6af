package errs

import (
	"errors"
	"fmt"
	"net/http"
)

// Mail delivery errors
var (
	ErrDelivery         = errors.New("delivery failed")
	ErrNoRecipient      = errors.New("email must have at least one recipient")
	ErrTemplateRender   = errors.New("failed to render email template")
	ErrTransportOffline = errors.New("mail transport not connected")
)

var ErrMisconfiguration = errors.New("server misconfiguration")

// ErrTranslationDegraded is never written to a client; it only tags the
// reason a translation fell back.
var ErrTranslationDegraded = errors.New("translation degraded")

// NewDeliveryError wraps a transport rejection. The diagnostic is exposed to
// the client in the details field.
func NewDeliveryError(transport, diagnostic string, cause error) *ApiErr {
	if diagnostic == "" && cause != nil {
		diagnostic = cause.Error()
	}
	return &ApiErr{
		StatusCode: http.StatusInternalServerError,
		err:        fmt.Errorf("%s: %w", transport, ErrDelivery),
		kind:       ErrDelivery,
		Details:    diagnostic,
		Cause:      cause,
		Field:      "transport",
	}
}

// NewMisconfigurationError reports a required server-side setting that is absent.
func NewMisconfigurationError(setting string) *ApiErr {
	return &ApiErr{
		StatusCode: http.StatusInternalServerError,
		err:        fmt.Errorf("Server misconfiguration: %s not set", setting),
		kind:       ErrMisconfiguration,
		Field:      setting,
	}
}

func IsDeliveryError(err error) bool {
	return errors.Is(err, ErrDelivery)
}

func IsMisconfigurationError(err error) bool {
	return errors.Is(err, ErrMisconfiguration)
}

func IsTranslationDegraded(err error) bool {
	return errors.Is(err, ErrTranslationDegraded)
}

// NewUserDeliveryError is returned when the requester's own email could not
// be delivered. The transport diagnostic is kept in details.
func NewUserDeliveryError(cause error) *ApiErr {
	details := ""
	var apiErr *ApiErr
	switch {
	case errors.As(cause, &apiErr):
		details = apiErr.Details
	case cause != nil:
		details = cause.Error()
	}
	return &ApiErr{
		StatusCode: http.StatusInternalServerError,
		err:        errors.New("Failed to send email to user"),
		kind:       ErrDelivery,
		Details:    details,
		Cause:      cause,
	}
}
