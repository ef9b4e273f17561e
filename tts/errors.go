package tts

import (
	"errors"
	"fmt"
	"time"
)

// Errors returned by the speech backends and the session controller.
var (
	// Configuration errors
	ErrNotConfigured = errors.New("azure settings are not configured")
	ErrInvalidConfig = errors.New("invalid configuration")

	// Cloud errors
	ErrUnauthorized  = errors.New("azure rejected the subscription key")
	ErrRateLimited   = errors.New("azure rate limit exceeded")
	ErrNetwork       = errors.New("azure speech service is unreachable")
	ErrRequestFailed = errors.New("speech synthesis request failed")

	// Engine errors
	ErrUnsupported = errors.New("speech engine is not available")
	ErrEngine      = errors.New("speech engine failed")

	// Audio errors
	ErrInvalidAudio = errors.New("invalid audio payload")
	ErrAssetClosed  = errors.New("audio asset has been released")

	// Controller errors
	ErrEmptyText      = errors.New("no text to read")
	ErrStaleSession   = errors.New("session was superseded")
	ErrNoSession      = errors.New("no active session")
	ErrControllerDone = errors.New("controller has been closed")
)

// ErrorKind classifies a failure for reporting.
type ErrorKind int

const (
	// KindUnknown is any error outside the taxonomy.
	KindUnknown ErrorKind = iota
	// KindConfiguration is a missing credential or region.
	KindConfiguration
	// KindAuth is a 401 or 403 from the cloud service.
	KindAuth
	// KindRateLimit is a 429 from the cloud service.
	KindRateLimit
	// KindNetwork is a connectivity failure.
	KindNetwork
	// KindUnsupported means the local engine is absent or lacks a capability.
	KindUnsupported
	// KindEngine is an utterance or playback failure.
	KindEngine
)

// String returns the taxonomy name of the kind.
func (k ErrorKind) String() string {
	switch k {
	case KindConfiguration:
		return "ConfigurationError"
	case KindAuth:
		return "AuthError"
	case KindRateLimit:
		return "RateLimitError"
	case KindNetwork:
		return "NetworkError"
	case KindUnsupported:
		return "UnsupportedCapabilityError"
	case KindEngine:
		return "EngineError"
	default:
		return "Error"
	}
}

// KindOf classifies err.
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return KindUnknown
	case errors.Is(err, ErrNotConfigured), errors.Is(err, ErrInvalidConfig):
		return KindConfiguration
	case errors.Is(err, ErrUnauthorized):
		return KindAuth
	case errors.Is(err, ErrRateLimited):
		return KindRateLimit
	case errors.Is(err, ErrNetwork):
		return KindNetwork
	case errors.Is(err, ErrUnsupported):
		return KindUnsupported
	case errors.Is(err, ErrEngine), errors.Is(err, ErrInvalidAudio), errors.Is(err, ErrAssetClosed):
		return KindEngine
	default:
		return KindUnknown
	}
}

// Describe turns err into the short message shown to the user.
func Describe(err error) string {
	var te *TTSError
	switch KindOf(err) {
	case KindConfiguration:
		return "Azure settings are not configured."
	case KindAuth:
		return "Azure rejected the subscription key. Check your speech settings."
	case KindRateLimit:
		return "Azure rate limit reached."
	case KindNetwork:
		return "Could not reach the Azure speech service."
	case KindUnsupported:
		return "The system speech engine is not available."
	case KindEngine:
		return "Speech playback failed: " + err.Error()
	}
	if errors.As(err, &te) && te.Status != 0 {
		return fmt.Sprintf("Failed to synthesize speech (status %d).", te.Status)
	}
	return "Failed to synthesize speech: " + err.Error()
}

// TTSError provides detailed error information.
type TTSError struct {
	Err       error          // The underlying error
	Component string         // Component that generated the error
	Action    string         // Action being performed when error occurred
	Status    int            // HTTP status, if any
	Body      string         // Response body, if any
	Timestamp time.Time      // When the error occurred
	Context   map[string]any // Additional context
}

// Error implements the error interface.
func (e *TTSError) Error() string {
	msg := "unknown speech error"
	if e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Status != 0 {
		msg = fmt.Sprintf("%s: status %d", msg, e.Status)
		if e.Body != "" {
			msg += ": " + e.Body
		}
	}
	if e.Component != "" {
		msg = e.Component + ": " + msg
	}
	return msg
}

// Unwrap returns the underlying error.
func (e *TTSError) Unwrap() error {
	return e.Err
}

// NewTTSError creates a new error with context.
func NewTTSError(err error, component, action string) *TTSError {
	return &TTSError{
		Err:       err,
		Component: component,
		Action:    action,
		Timestamp: time.Now(),
	}
}

// WithStatus records the response status and body.
func (e *TTSError) WithStatus(status int, body string) *TTSError {
	e.Status = status
	e.Body = body
	return e
}

// WithContext adds context to the error.
func (e *TTSError) WithContext(key string, value any) *TTSError {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}
