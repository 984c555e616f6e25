package errors

import (
	"errors"
	"fmt"
	"net/http"
	"runtime"
	"strings"
)

// ErrorType represents the type of error
type ErrorType string

const (
	// Construction errors
	ErrorTypeConfiguration ErrorType = "configuration"

	// Lifecycle errors
	ErrorTypeActivation       ErrorType = "activation"
	ErrorTypeAlreadyActivated ErrorType = "already_activated"
	ErrorTypeClosed           ErrorType = "closed"

	// Registration errors
	ErrorTypeDuplicatePlugin    ErrorType = "duplicate_plugin"
	ErrorTypeDuplicateNamespace ErrorType = "duplicate_namespace"

	// Delivery errors
	ErrorTypeMalformedEvent  ErrorType = "malformed_event"
	ErrorTypeUndeclaredEvent ErrorType = "undeclared_event"
	ErrorTypeHookRejected    ErrorType = "hook_rejected"
	ErrorTypeHandler         ErrorType = "handler"

	// Lookup errors
	ErrorTypeNotFound ErrorType = "not_found"

	// System errors
	ErrorTypeInternal ErrorType = "internal"
	ErrorTypeUnknown  ErrorType = "unknown"
)

// Kind sentinels. AppError.Is matches on Type, so
// errors.Is(err, ErrDuplicatePlugin) holds for every duplicate_plugin error.
var (
	ErrConfiguration      = &AppError{Type: ErrorTypeConfiguration}
	ErrActivation         = &AppError{Type: ErrorTypeActivation}
	ErrAlreadyActivated   = &AppError{Type: ErrorTypeAlreadyActivated}
	ErrClosed             = &AppError{Type: ErrorTypeClosed}
	ErrDuplicatePlugin    = &AppError{Type: ErrorTypeDuplicatePlugin}
	ErrDuplicateNamespace = &AppError{Type: ErrorTypeDuplicateNamespace}
	ErrMalformedEvent     = &AppError{Type: ErrorTypeMalformedEvent}
	ErrUndeclaredEvent    = &AppError{Type: ErrorTypeUndeclaredEvent}
	ErrHookRejected       = &AppError{Type: ErrorTypeHookRejected}
	ErrHandler            = &AppError{Type: ErrorTypeHandler}
	ErrNotFound           = &AppError{Type: ErrorTypeNotFound}
	ErrInternal           = &AppError{Type: ErrorTypeInternal}
)

// AppError represents a structured error raised by the bus and its plugins
type AppError struct {
	Type       ErrorType      `json:"type"`
	Code       string         `json:"code"`
	Message    string         `json:"message"`
	Details    map[string]any `json:"details,omitempty"`
	InnerError error          `json:"-"`
	Stack      []string       `json:"-"`
	HTTPStatus int            `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	switch {
	case e.Message == "" && e.InnerError != nil:
		return e.InnerError.Error()
	case e.Message == "":
		return string(e.Type)
	case e.InnerError != nil:
		return e.Message + ": " + e.InnerError.Error()
	default:
		return e.Message
	}
}

// Unwrap returns the inner error
func (e *AppError) Unwrap() error {
	return e.InnerError
}

// WithMessage adds a message to the error
func (e *AppError) WithMessage(msg string) *AppError {
	e.Message = msg
	return e
}

// WithCode adds a code to the error
func (e *AppError) WithCode(code string) *AppError {
	e.Code = code
	return e
}

// WithDetail adds a detail to the error
func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// WithHTTPStatus sets the HTTP status code
func (e *AppError) WithHTTPStatus(status int) *AppError {
	e.HTTPStatus = status
	return e
}

// WithInnerError sets the inner error
func (e *AppError) WithInnerError(err error) *AppError {
	e.InnerError = err
	return e
}

// WithStack captures the call stack
func (e *AppError) WithStack() *AppError {
	e.Stack = captureStack(3)
	return e
}

// Is checks if this error is of a specific type
func (e *AppError) Is(target error) bool {
	if targetApp, ok := target.(*AppError); ok {
		return e.Type == targetApp.Type
	}
	return false
}

// New creates a new AppError
func New(errType ErrorType, message string) *AppError {
	return &AppError{
		Type:    errType,
		Message: message,
		Code:    string(errType),
	}
}

// Newf creates a new AppError with a formatted message
func Newf(errType ErrorType, format string, args ...any) *AppError {
	return New(errType, fmt.Sprintf(format, args...))
}

// FromError converts a standard error to AppError
func FromError(err error) *AppError {
	if err == nil {
		return nil
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	return &AppError{
		Type:       ErrorTypeUnknown,
		InnerError: err,
	}
}

// WrapWithType wraps an error with a specific type
func WrapWithType(err error, errType ErrorType, message string) *AppError {
	return &AppError{
		Type:       errType,
		Message:    message,
		InnerError: err,
		Code:       string(errType),
	}
}

// TypeOf returns the ErrorType of err, or ErrorTypeUnknown for foreign errors.
func TypeOf(err error) ErrorType {
	if err == nil {
		return ""
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type
	}
	return ErrorTypeUnknown
}

// Configuration errors
func NewConfiguration(message string) *AppError {
	return New(ErrorTypeConfiguration, message).WithHTTPStatus(http.StatusBadRequest)
}

// Lifecycle errors
func NewActivation(plugin string, cause error) *AppError {
	return WrapWithType(cause, ErrorTypeActivation, fmt.Sprintf("plugin %q activation failed", plugin)).
		WithDetail("plugin", plugin).
		WithHTTPStatus(http.StatusInternalServerError)
}

func NewAlreadyActivated(plugin string) *AppError {
	return New(ErrorTypeAlreadyActivated, fmt.Sprintf("plugin %q is already activated", plugin)).
		WithDetail("plugin", plugin).
		WithHTTPStatus(http.StatusConflict)
}

func NewClosed(message string) *AppError {
	return New(ErrorTypeClosed, message).WithHTTPStatus(http.StatusServiceUnavailable)
}

// Registration errors
func NewDuplicatePlugin(plugin, signature string) *AppError {
	return New(ErrorTypeDuplicatePlugin, fmt.Sprintf("plugin %q already registered", plugin)).
		WithDetail("plugin", plugin).
		WithDetail("signature", signature).
		WithHTTPStatus(http.StatusConflict)
}

func NewDuplicateNamespace(alias string) *AppError {
	return New(ErrorTypeDuplicateNamespace, fmt.Sprintf("namespace %q already registered", alias)).
		WithDetail("alias", alias).
		WithHTTPStatus(http.StatusConflict)
}

// Delivery errors
func NewMalformedEvent(field, reason string) *AppError {
	return New(ErrorTypeMalformedEvent, fmt.Sprintf("malformed event: %s %s", field, reason)).
		WithDetail("field", field).
		WithHTTPStatus(http.StatusBadRequest)
}

func NewUndeclaredEvent(plugin, eventType string) *AppError {
	return New(ErrorTypeUndeclaredEvent, fmt.Sprintf("plugin %q did not declare event %q", plugin, eventType)).
		WithDetail("plugin", plugin).
		WithDetail("event", eventType).
		WithHTTPStatus(http.StatusForbidden)
}

func NewHookRejected(hook, eventType string, cause error) *AppError {
	return WrapWithType(cause, ErrorTypeHookRejected, fmt.Sprintf("hook %q rejected event %q", hook, eventType)).
		WithDetail("hook", hook).
		WithDetail("event", eventType).
		WithHTTPStatus(http.StatusForbidden)
}

func NewHandler(stage, eventType string, cause error) *AppError {
	return WrapWithType(cause, ErrorTypeHandler, fmt.Sprintf("%s handler failed for event %q", stage, eventType)).
		WithDetail("stage", stage).
		WithDetail("event", eventType).
		WithHTTPStatus(http.StatusInternalServerError)
}

// Lookup errors
func NewNotFound(resource string, id any) *AppError {
	return New(ErrorTypeNotFound, fmt.Sprintf("%s %v not found", resource, id)).
		WithDetail("resource", resource).
		WithDetail("id", id).
		WithHTTPStatus(http.StatusNotFound)
}

// System errors
func NewInternal(message string) *AppError {
	return New(ErrorTypeInternal, message).WithHTTPStatus(http.StatusInternalServerError)
}

// Recover converts a recovered panic value into an AppError carrying the stack.
// It returns nil for a nil value.
func Recover(r any) *AppError {
	if r == nil {
		return nil
	}
	var appErr *AppError
	switch v := r.(type) {
	case error:
		appErr = WrapWithType(v, ErrorTypeInternal, "panic recovered")
	case string:
		appErr = WrapWithType(errors.New(v), ErrorTypeInternal, "panic recovered")
	default:
		appErr = WrapWithType(fmt.Errorf("%v", v), ErrorTypeInternal, "panic recovered")
	}
	appErr.Stack = captureStack(3)
	return appErr.WithDetail("panic", fmt.Sprint(r))
}

// StatusOf returns the HTTP status carried by err, defaulting to 500.
func StatusOf(err error) int {
	appErr := FromError(err)
	if appErr == nil {
		return http.StatusOK
	}
	if appErr.HTTPStatus > 0 {
		return appErr.HTTPStatus
	}
	return http.StatusInternalServerError
}

// ErrorResponse represents the error part of an HTTP response
type ErrorResponse struct {
	Type    string         `json:"type"`
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// ToResponse converts an error to its HTTP body
func ToResponse(err error) ErrorResponse {
	appErr := FromError(err)
	return ErrorResponse{
		Type:    string(appErr.Type),
		Code:    appErr.Code,
		Message: appErr.Error(),
		Details: appErr.Details,
	}
}

// captureStack captures the call stack
func captureStack(skip int) []string {
	var stack []string
	for i := skip; i < skip+16; i++ {
		pc, file, line, ok := runtime.Caller(i)
		if !ok {
			break
		}

		fn := runtime.FuncForPC(pc)
		if fn == nil {
			continue
		}

		funcName := fn.Name()
		if idx := strings.LastIndex(funcName, "/"); idx >= 0 {
			funcName = funcName[idx+1:]
		}

		stack = append(stack, fmt.Sprintf("%s:%d %s", file, line, funcName))
	}
	return stack
}

// ErrorChain represents a chain of errors
type ErrorChain struct {
	errors []*AppError
}

// NewErrorChain creates a new error chain
func NewErrorChain() *ErrorChain {
	return &ErrorChain{
		errors: make([]*AppError, 0),
	}
}

// Add adds an error to the chain
func (c *ErrorChain) Add(err error) *ErrorChain {
	if err != nil {
		c.errors = append(c.errors, FromError(err))
	}
	return c
}

// HasErrors checks if the chain has errors
func (c *ErrorChain) HasErrors() bool {
	return len(c.errors) > 0
}

// Error returns the combined error message
func (c *ErrorChain) Error() string {
	if !c.HasErrors() {
		return ""
	}

	messages := make([]string, 0, len(c.errors))
	for _, err := range c.errors {
		messages = append(messages, err.Error())
	}
	return strings.Join(messages, " | ")
}

// Errors returns all errors in the chain
func (c *ErrorChain) Errors() []*AppError {
	return c.errors
}

// Unwrap exposes the chained errors to errors.Is and errors.As.
func (c *ErrorChain) Unwrap() []error {
	out := make([]error, len(c.errors))
	for i, err := range c.errors {
		out[i] = err
	}
	return out
}

// ErrOrNil returns the chain as an error, or nil when empty.
func (c *ErrorChain) ErrOrNil() error {
	if !c.HasErrors() {
		return nil
	}
	return c
}

// HasType checks if the chain has an error of the specified type
func (c *ErrorChain) HasType(errType ErrorType) bool {
	for _, err := range c.errors {
		if err.Type == errType {
			return true
		}
	}
	return false
}
