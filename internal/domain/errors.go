package domain

import "errors"

// RetriableError defines an interface for errors that can be retried
type RetriableError interface {
	error
	IsRetriable() bool
}

// IsRetriable checks if an error is retriable
func IsRetriable(err error) bool {
	var re RetriableError
	if errors.As(err, &re) {
		return re.IsRetriable()
	}
	return false
}

// NetworkError represents a transport-level failure talking to an upstream
type NetworkError struct {
	Op        string // Operation that failed (e.g., "fetch markets", "fetch feed")
	Err       error  // Underlying error
	Retriable bool   // Whether this error is retriable
}

func (e *NetworkError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *NetworkError) IsRetriable() bool {
	return e.Retriable
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// NewNetworkError creates a new retriable network error
func NewNetworkError(op string, err error) *NetworkError {
	return &NetworkError{Op: op, Err: err, Retriable: true}
}

// NewFatalNetworkError creates a non-retriable network error
func NewFatalNetworkError(op string, err error) *NetworkError {
	return &NetworkError{Op: op, Err: err, Retriable: false}
}

// UpstreamError reports that an upstream source could not deliver data.
// It always matches ErrUpstreamUnavailable with errors.Is.
type UpstreamError struct {
	Source string // "markets" or "news"
	Err    error
}

func (e *UpstreamError) Error() string {
	if e.Err == nil {
		return "upstream " + e.Source + " unavailable"
	}
	return "upstream " + e.Source + " unavailable: " + e.Err.Error()
}

func (e *UpstreamError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrUpstreamUnavailable}
	}
	return []error{ErrUpstreamUnavailable, e.Err}
}

// NewUpstreamError wraps err as an upstream failure of source.
func NewUpstreamError(source string, err error) *UpstreamError {
	return &UpstreamError{Source: source, Err: err}
}

// InputError reports a caller-supplied value that was rejected.
// It always matches ErrInvalidInput with errors.Is.
type InputError struct {
	Field string
	Err   error
}

func (e *InputError) Error() string {
	return "invalid " + e.Field + ": " + e.Err.Error()
}

func (e *InputError) Unwrap() []error {
	return []error{ErrInvalidInput, e.Err}
}

// NewInputError creates an InputError for field.
func NewInputError(field string, err error) *InputError {
	return &InputError{Field: field, Err: err}
}

// ConfigError represents a configuration error (never retriable)
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	return "config error [" + e.Field + "]: " + e.Err.Error()
}

func (e *ConfigError) IsRetriable() bool {
	return false
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

var (
	// ErrUpstreamUnavailable is returned when the market source fails and no cached entry exists.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")

	// ErrNotFound is returned when a ticker is not in the current snapshot.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput is returned for out-of-range caller parameters.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnknownCategory is returned when a category name does not resolve.
	ErrUnknownCategory = errors.New("unknown category")

	// ErrOutOfRange is returned when a numeric parameter is outside its domain.
	ErrOutOfRange = errors.New("value out of range")

	// ErrArchiveDisabled is returned by history queries when no archive is configured.
	ErrArchiveDisabled = errors.New("history archive disabled")

	// ErrConfigNotFound is returned when configuration file is missing
	ErrConfigNotFound = errors.New("configuration not found")
)
