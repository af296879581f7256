package errors

import (
	stderrors "errors"
	"fmt"
	"time"
)

// ErrorType represents the type of error
type ErrorType string

const (
	// ErrorTypeInvalidURL is returned before any network call for malformed URLs
	ErrorTypeInvalidURL ErrorType = "invalid_url"
	// ErrorTypeUnsupportedPlatform is returned when no extraction strategy is registered
	ErrorTypeUnsupportedPlatform ErrorType = "unsupported_platform"
	// ErrorTypeNetworkTransient represents a 503, timeout or connection failure
	ErrorTypeNetworkTransient ErrorType = "network_transient"
	// ErrorTypeNetworkPermanent represents any other non-200 response
	ErrorTypeNetworkPermanent ErrorType = "network_permanent"
	// ErrorTypeRetriesExhausted is returned once every attempt failed transiently
	ErrorTypeRetriesExhausted ErrorType = "retries_exhausted"
	// ErrorTypeRateLimit represents a 429 response or a blocked host
	ErrorTypeRateLimit ErrorType = "rate_limit"
	// ErrorTypeExtractionFailed means the page had no recognisable price
	ErrorTypeExtractionFailed ErrorType = "extraction_failed"
	// ErrorTypeInvalidPrice means a price was found but is not finite and positive
	ErrorTypeInvalidPrice ErrorType = "invalid_price"
	// ErrorTypeStoreWriteFailed represents a persistence failure
	ErrorTypeStoreWriteFailed ErrorType = "store_write_failed"
	// ErrorTypeNotification represents an alert delivery failure
	ErrorTypeNotification ErrorType = "notification"
	// ErrorTypeCancelled is returned when the caller's context ends
	ErrorTypeCancelled ErrorType = "cancelled"
	// ErrorTypeParsing represents an HTML parsing failure
	ErrorTypeParsing ErrorType = "parsing"
	// ErrorTypeConfiguration represents configuration errors
	ErrorTypeConfiguration ErrorType = "configuration"
	// ErrorTypeInternal represents unexpected failures such as recovered panics
	ErrorTypeInternal ErrorType = "internal"
)

// CheckError is the error returned by every stage of a price check
type CheckError struct {
	Type       ErrorType
	URL        string
	Message    string
	StatusCode int
	Attempts   int
	Err        error
	Time       time.Time
}

// Error implements the error interface
func (e *CheckError) Error() string {
	target := e.URL
	if target == "" {
		target = "-"
	}
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %s - %v", e.Type, target, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Type, target, e.Message)
}

// Unwrap returns the underlying error
func (e *CheckError) Unwrap() error {
	return e.Err
}

// IsRetryable returns true if the error is retryable
func (e *CheckError) IsRetryable() bool {
	return e.Type == ErrorTypeNetworkTransient
}

// UserMessage returns a short actionable message for end users
func (e *CheckError) UserMessage() string {
	switch e.Type {
	case ErrorTypeInvalidURL:
		return "The URL is not valid. Use a full http(s) product link."
	case ErrorTypeUnsupportedPlatform:
		return "This platform is not supported. Supported platforms are amazon and ebay."
	case ErrorTypeNetworkTransient, ErrorTypeRetriesExhausted:
		return "The site is temporarily unavailable. Try again later."
	case ErrorTypeNetworkPermanent:
		if e.StatusCode != 0 {
			return fmt.Sprintf("The site refused the request (HTTP %d). Check that the link is still valid.", e.StatusCode)
		}
		return "The site refused the request. Check that the link is still valid."
	case ErrorTypeRateLimit:
		return "The site is rate limiting requests. Checks will resume after a pause."
	case ErrorTypeExtractionFailed, ErrorTypeParsing:
		return "No price could be found on the page. The page layout may have changed."
	case ErrorTypeInvalidPrice:
		return "The price on the page is not a valid amount."
	case ErrorTypeStoreWriteFailed:
		return "The price could not be saved. Check the database."
	case ErrorTypeNotification:
		return "The price alert could not be delivered."
	case ErrorTypeCancelled:
		return "The check was cancelled."
	case ErrorTypeConfiguration:
		return "The configuration is invalid."
	default:
		return "An unexpected error occurred."
	}
}

// New creates a new CheckError
func New(errType ErrorType, url, message string, err error) *CheckError {
	return &CheckError{
		Type:    errType,
		URL:     url,
		Message: message,
		Err:     err,
		Time:    time.Now(),
	}
}

// TypeOf returns the ErrorType of the first CheckError in err's chain, or "" when there is none
func TypeOf(err error) ErrorType {
	var ce *CheckError
	if stderrors.As(err, &ce) {
		return ce.Type
	}
	return ""
}

// Is reports whether err carries a CheckError of the given type
func Is(err error, errType ErrorType) bool {
	var ce *CheckError
	for e := err; e != nil; {
		if !stderrors.As(e, &ce) {
			return false
		}
		if ce.Type == errType {
			return true
		}
		e = ce.Err
	}
	return false
}

// NewInvalidURL creates a new invalid URL error
func NewInvalidURL(url string) *CheckError {
	return New(ErrorTypeInvalidURL, url, "not an absolute http(s) URL", nil)
}

// NewUnsupportedPlatform creates a new unsupported platform error
func NewUnsupportedPlatform(platform string) *CheckError {
	return New(ErrorTypeUnsupportedPlatform, "", fmt.Sprintf("unsupported platform %q", platform), nil)
}

// NewNetworkTransient creates a new transient network error
func NewNetworkTransient(url string, status int, err error) *CheckError {
	e := New(ErrorTypeNetworkTransient, url, "transient fetch failure", err)
	e.StatusCode = status
	if status != 0 {
		e.Message = fmt.Sprintf("transient status code: %d", status)
	}
	return e
}

// NewNetworkPermanent creates a new permanent network error
func NewNetworkPermanent(url string, status int, err error) *CheckError {
	e := New(ErrorTypeNetworkPermanent, url, fmt.Sprintf("unexpected status code: %d", status), err)
	e.StatusCode = status
	return e
}

// NewRetriesExhausted wraps the last transient failure once attempts run out
func NewRetriesExhausted(url string, attempts int, last error) *CheckError {
	e := New(ErrorTypeRetriesExhausted, url, fmt.Sprintf("gave up after %d attempts", attempts), last)
	e.Attempts = attempts
	return e
}

// NewRateLimit creates a new rate limit error
func NewRateLimit(url string, duration time.Duration) *CheckError {
	return New(ErrorTypeRateLimit, url, fmt.Sprintf("rate limited for %v", duration), nil)
}

// NewExtractionFailed creates a new extraction error
func NewExtractionFailed(url, message string) *CheckError {
	return New(ErrorTypeExtractionFailed, url, message, nil)
}

// NewInvalidPrice creates a new invalid price error
func NewInvalidPrice(url string, price float64) *CheckError {
	return New(ErrorTypeInvalidPrice, url, fmt.Sprintf("invalid price value %v", price), nil)
}

// NewStoreWrite creates a new store write error
func NewStoreWrite(url, message string, err error) *CheckError {
	return New(ErrorTypeStoreWriteFailed, url, message, err)
}

// NewNotification creates a new notification error
func NewNotification(url string, err error) *CheckError {
	return New(ErrorTypeNotification, url, "failed to deliver alert", err)
}

// NewCancelled creates a new cancellation error
func NewCancelled(url string, err error) *CheckError {
	return New(ErrorTypeCancelled, url, "check cancelled", err)
}

// NewParsing creates a new parsing error
func NewParsing(url, message string, err error) *CheckError {
	return New(ErrorTypeParsing, url, message, err)
}

// NewConfiguration creates a new configuration error
func NewConfiguration(message string, err error) *CheckError {
	return New(ErrorTypeConfiguration, "", message, err)
}

// NewInternal creates a new internal error
func NewInternal(url, message string, err error) *CheckError {
	return New(ErrorTypeInternal, url, message, err)
}
