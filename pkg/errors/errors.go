package errors

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUserStop is returned when a run halts at a step boundary because stop was requested.
var ErrUserStop = errors.New("stopped by user")

// Reasoner is implemented by step-level failures that carry a short display reason.
type Reasoner interface {
	Reason() string
}

// Reason returns the display reason for err, falling back to its message.
func Reason(err error) string {
	if err == nil {
		return ""
	}
	var r Reasoner
	if errors.As(err, &r) {
		return r.Reason()
	}
	return err.Error()
}

// ParseError represents a YAML parsing failure with optional line metadata.
type ParseError struct {
	Path    string
	Line    int
	Message string
	Err     error
}

// NewParseError constructs a ParseError.
func NewParseError(path string, line int, err error) error {
	message := ""
	if err != nil {
		message = err.Error()
	}
	return &ParseError{Path: path, Line: line, Message: message, Err: err}
}

func (e *ParseError) Error() string {
	if e == nil {
		return ""
	}

	if e.Line > 0 {
		return fmt.Sprintf("parse error: %s:%d: %s", e.Path, e.Line, e.Message)
	}
	return fmt.Sprintf("parse error: %s: %s", e.Path, e.Message)
}

// Unwrap exposes the underlying error.
func (e *ParseError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// ValidationError captures configuration validation issues.
type ValidationError struct {
	Field   string
	Message string
	Err     error
}

// NewValidationError constructs a ValidationError.
func NewValidationError(field, message string, err error) error {
	return &ValidationError{Field: field, Message: message, Err: err}
}

func (e *ValidationError) Error() string {
	if e == nil {
		return ""
	}
	if e.Field != "" {
		return fmt.Sprintf("validation error: %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation error: %s", e.Message)
}

// Unwrap exposes the underlying error.
func (e *ValidationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// TemplateError reports a control file that could not be decoded or rewritten.
type TemplateError struct {
	Path string
	Err  error
}

// NewTemplateError constructs a TemplateError.
func NewTemplateError(path string, err error) error {
	return &TemplateError{Path: path, Err: err}
}

func (e *TemplateError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("template error: %s: %v", e.Path, e.Err)
}

// Reason implements Reasoner.
func (e *TemplateError) Reason() string {
	return fmt.Sprintf("template error: %v", e.Err)
}

// Unwrap exposes the underlying error.
func (e *TemplateError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// LaunchError indicates the engine executable could not be started.
type LaunchError struct {
	Engine string
	Err    error
}

// NewLaunchError constructs a LaunchError.
func NewLaunchError(engine string, err error) error {
	return &LaunchError{Engine: engine, Err: err}
}

func (e *LaunchError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("launch error [%s]: %v", e.Engine, e.Err)
}

// Reason implements Reasoner.
func (e *LaunchError) Reason() string {
	return fmt.Sprintf("engine launch failed: %v", e.Err)
}

// Unwrap exposes the underlying error.
func (e *LaunchError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// EngineRuntimeError is raised when the engine output contains a fatal diagnostic
// or the engine exits with a non-zero status.
type EngineRuntimeError struct {
	Classification string
	Line           string
}

// NewEngineRuntimeError constructs an EngineRuntimeError.
func NewEngineRuntimeError(classification, line string) error {
	return &EngineRuntimeError{Classification: classification, Line: line}
}

func (e *EngineRuntimeError) Error() string {
	if e == nil {
		return ""
	}
	if e.Line != "" {
		return fmt.Sprintf("engine error: %s (%s)", e.Classification, strings.TrimSpace(e.Line))
	}
	return fmt.Sprintf("engine error: %s", e.Classification)
}

// Reason implements Reasoner.
func (e *EngineRuntimeError) Reason() string {
	return e.Classification
}

// ConvergenceError reports that the shift magnitude stopped decreasing.
type ConvergenceError struct {
	Rises  int
	Equals int
}

// NewConvergenceError constructs a ConvergenceError from the final counter values.
func NewConvergenceError(rises, equals int) error {
	return &ConvergenceError{Rises: rises, Equals: equals}
}

func (e *ConvergenceError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("not converging: shift rose %d times, repeated %d times", e.Rises, e.Equals)
}

// Reason implements Reasoner.
func (e *ConvergenceError) Reason() string {
	return "not converging"
}

// BlockedError reports that no iteration marker appeared within the stall interval.
type BlockedError struct {
	Idle string
}

// NewBlockedError constructs a BlockedError.
func NewBlockedError(idle string) error {
	return &BlockedError{Idle: idle}
}

func (e *BlockedError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("blocked: no shift marker for %s", e.Idle)
}

// Reason implements Reasoner.
func (e *BlockedError) Reason() string {
	return "blocked"
}

// TimeoutError reports that the engine exceeded its hard wall-clock limit.
type TimeoutError struct {
	Limit string
}

// NewTimeoutError constructs a TimeoutError.
func NewTimeoutError(limit string) error {
	return &TimeoutError{Limit: limit}
}

func (e *TimeoutError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("process timeout after %s", e.Limit)
}

// Reason implements Reasoner.
func (e *TimeoutError) Reason() string {
	return "process timeout"
}

// ValidationFailure carries post-run parameter range violations.
type ValidationFailure struct {
	Violations []string
}

// NewValidationFailure constructs a ValidationFailure.
func NewValidationFailure(violations []string) error {
	return &ValidationFailure{Violations: append([]string(nil), violations...)}
}

func (e *ValidationFailure) Error() string {
	if e == nil {
		return ""
	}
	return "validation failure: " + strings.Join(e.Violations, "; ")
}

// Reason implements Reasoner.
func (e *ValidationFailure) Reason() string {
	return "parameter range violation: " + strings.Join(e.Violations, "; ")
}

// SkipError reports that the step was abandoned by a skip request.
type SkipError struct {
	Cause string
}

// NewSkipError constructs a SkipError; an empty cause means a user request.
func NewSkipError(cause string) error {
	if cause == "" {
		cause = "user skip"
	}
	return &SkipError{Cause: cause}
}

func (e *SkipError) Error() string {
	if e == nil {
		return ""
	}
	return "skipped: " + e.Cause
}

// Reason implements Reasoner.
func (e *SkipError) Reason() string {
	return e.Cause
}
