// Package errors provides structured, coded errors for sweep.
// Every fatal condition of a run carries a code and the operation that failed.
package errors

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Code classifies an error for programmatic handling.
type Code string

const (
	// Run parameter errors (1xx), reported before any processing.
	CodeConfiguration Code = "E101"

	// Variation discovery errors (2xx).
	CodeDiscovery Code = "E201"

	// Event loop errors (3xx).
	CodeLoad    Code = "E301"
	CodeApply   Code = "E302"
	CodeProcess Code = "E303"

	// System errors (4xx).
	CodeCanceled Code = "E401"

	// Run summary and history backends (5xx).
	CodeBackend Code = "E501"

	CodeUnknown Code = "E999"
)

// Context keys shared by the loop and its diagnostics.
const (
	KeyOperation      = "operation"
	KeyEvent          = "event"
	KeyVariation      = "variation"
	KeyVariationIndex = "variation_index"
	KeyPath           = "path"
)

// SweepError is the base error type for all sweep errors.
type SweepError struct {
	Code    Code
	Message string
	Cause   error
	Context map[string]interface{}
}

// Error implements the error interface.
// Context keys are rendered in sorted order so diagnostics are stable.
func (e *SweepError) Error() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("[%s] %s", e.Code, e.Message))

	if len(e.Context) > 0 {
		keys := make([]string, 0, len(e.Context))
		for k := range e.Context {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		sb.WriteString(" (")
		for i, k := range keys {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(fmt.Sprintf("%s=%v", k, e.Context[k]))
		}
		sb.WriteString(")")
	}

	if e.Cause != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Cause.Error())
	}

	return sb.String()
}

// Unwrap returns the underlying cause.
func (e *SweepError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is a SweepError with the same code.
func (e *SweepError) Is(target error) bool {
	if t, ok := target.(*SweepError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithContext adds context to the error.
func (e *SweepError) WithContext(key string, value interface{}) *SweepError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// Operation returns the failed operation recorded in the context, if any.
func (e *SweepError) Operation() string {
	if op, ok := e.Context[KeyOperation].(string); ok {
		return op
	}
	return ""
}

// New creates a new SweepError.
func New(code Code, message string) *SweepError {
	return &SweepError{Code: code, Message: message}
}

// Wrap wraps an existing error with a code and message.
func Wrap(err error, code Code, message string) *SweepError {
	if err == nil {
		return nil
	}

	return &SweepError{Code: code, Message: message, Cause: err}
}

// Wrapf wraps an error with a formatted message.
func Wrapf(err error, code Code, format string, args ...interface{}) *SweepError {
	return Wrap(err, code, fmt.Sprintf(format, args...))
}

// --- Convenience constructors ---

// Configuration reports a bad or missing run parameter.
func Configuration(param string, format string, args ...interface{}) *SweepError {
	return New(CodeConfiguration, fmt.Sprintf(format, args...)).
		WithContext("param", param)
}

// Discovery reports a failure to resolve the variation set.
func Discovery(err error) *SweepError {
	return Wrap(err, CodeDiscovery, "variation discovery failed").
		WithContext(KeyOperation, "recommended variations")
}

// Load reports a failure of the event source.
func Load(err error, operation string, index int64) *SweepError {
	e := Wrap(err, CodeLoad, "event source failed").
		WithContext(KeyOperation, operation)
	if index >= 0 {
		e.WithContext(KeyEvent, index)
	}
	return e
}

// Apply reports a failure to apply a variation before analysis.
func Apply(err error, index int64, variation string, variationIndex int) *SweepError {
	return Wrap(err, CodeApply, "apply variation failed").
		WithContext(KeyOperation, "apply variation").
		WithContext(KeyEvent, index).
		WithContext(KeyVariation, variation).
		WithContext(KeyVariationIndex, variationIndex)
}

// Process reports a failure of the analysis step.
func Process(err error, index int64, variation string, variationIndex int) *SweepError {
	return Wrap(err, CodeProcess, "analysis step failed").
		WithContext(KeyOperation, "process event").
		WithContext(KeyEvent, index).
		WithContext(KeyVariation, variation).
		WithContext(KeyVariationIndex, variationIndex)
}

// Canceled reports a run interrupted between events.
func Canceled(err error, index int64) *SweepError {
	return Wrap(err, CodeCanceled, "run canceled").
		WithContext(KeyOperation, "event loop").
		WithContext(KeyEvent, index)
}

// Backend reports a failure of a summary or history backend.
func Backend(err error, backend string) *SweepError {
	return Wrap(err, CodeBackend, "backend failed").
		WithContext("backend", backend)
}

// --- Error checking utilities ---

// IsCode checks if an error has a specific code.
func IsCode(err error, code Code) bool {
	var sErr *SweepError
	if errors.As(err, &sErr) {
		return sErr.Code == code
	}
	return false
}

// GetCode extracts the error code from an error.
func GetCode(err error) Code {
	var sErr *SweepError
	if errors.As(err, &sErr) {
		return sErr.Code
	}
	return CodeUnknown
}

// IsFatal returns true if the error terminates a run.
// Nothing in the event loop is retried.
func IsFatal(err error) bool {
	switch GetCode(err) {
	case CodeConfiguration, CodeDiscovery, CodeLoad, CodeApply, CodeProcess, CodeCanceled:
		return true
	default:
		return false
	}
}

// MultiError collects multiple errors.
type MultiError struct {
	Errors []error
}

// Error implements the error interface.
func (m *MultiError) Error() string {
	if len(m.Errors) == 0 {
		return "no errors"
	}
	if len(m.Errors) == 1 {
		return m.Errors[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d errors occurred:\n", len(m.Errors)))
	for i, err := range m.Errors {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// Unwrap exposes the collected errors to errors.Is and errors.As.
func (m *MultiError) Unwrap() []error {
	return m.Errors
}

// Add adds an error to the collection.
func (m *MultiError) Add(err error) {
	if err != nil {
		m.Errors = append(m.Errors, err)
	}
}

// Combined returns nil if no errors, the single error if one, or the MultiError.
func (m *MultiError) Combined() error {
	switch len(m.Errors) {
	case 0:
		return nil
	case 1:
		return m.Errors[0]
	default:
		return m
	}
}
