package common

import (
	"errors"
	"fmt"
)

// AppError represents application-specific errors
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is matches the sentinel registered for the error code, so callers can use
// errors.Is(err, common.ErrPollTimeout) without losing the cause chain.
func (e *AppError) Is(target error) bool {
	sentinel, ok := sentinels[e.Code]
	return ok && sentinel == target
}

// Error codes.
const (
	CodeNotFound          = "NOT_FOUND"
	CodeInvalidInput      = "INVALID_INPUT"
	CodeConfig            = "CONFIG_ERROR"
	CodePhaseOrder        = "PHASE_ORDER"
	CodeUpstream          = "UPSTREAM_ERROR"
	CodeUpstreamJobFailed = "UPSTREAM_JOB_FAILED"
	CodePollTimeout       = "POLL_TIMEOUT"
	CodeDownload          = "DOWNLOAD_ERROR"
	CodeStorage           = "STORAGE_ERROR"
	CodeAlreadyRunning    = "ALREADY_RUNNING"
	CodeDatabase          = "DATABASE_ERROR"
)

// Common application errors
var (
	ErrNotFound          = errors.New("resource not found")
	ErrInvalidInput      = errors.New("invalid input")
	ErrDatabase          = errors.New("database error")
	ErrPhaseOrder        = errors.New("phase order violated")
	ErrUpstream          = errors.New("upstream request failed")
	ErrUpstreamJobFailed = errors.New("upstream job failed")
	ErrPollTimeout       = errors.New("poll attempts exhausted")
	ErrDownload          = errors.New("artifact download failed")
	ErrStorage           = errors.New("artifact storage failed")
	ErrAlreadyRunning    = errors.New("run already in progress")
)

var sentinels = map[string]error{
	CodeNotFound:          ErrNotFound,
	CodeInvalidInput:      ErrInvalidInput,
	CodeConfig:            ErrInvalidInput,
	CodeDatabase:          ErrDatabase,
	CodePhaseOrder:        ErrPhaseOrder,
	CodeUpstream:          ErrUpstream,
	CodeUpstreamJobFailed: ErrUpstreamJobFailed,
	CodePollTimeout:       ErrPollTimeout,
	CodeDownload:          ErrDownload,
	CodeStorage:           ErrStorage,
	CodeAlreadyRunning:    ErrAlreadyRunning,
}

// Error constructors
func NewAppError(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

func NotFoundf(format string, args ...any) error {
	return NewAppError(CodeNotFound, fmt.Sprintf(format, args...), nil)
}

func InvalidInputf(format string, args ...any) error {
	return NewAppError(CodeInvalidInput, fmt.Sprintf(format, args...), nil)
}

func PhaseOrderf(format string, args ...any) error {
	return NewAppError(CodePhaseOrder, fmt.Sprintf(format, args...), nil)
}

func AlreadyRunningf(format string, args ...any) error {
	return NewAppError(CodeAlreadyRunning, fmt.Sprintf(format, args...), nil)
}

func UpstreamError(message string, cause error) error {
	return NewAppError(CodeUpstream, message, cause)
}

// UpstreamJobFailed carries the upstream error message verbatim.
func UpstreamJobFailed(message string) error {
	if message == "" {
		message = "unknown error"
	}
	return NewAppError(CodeUpstreamJobFailed, message, nil)
}

func PollTimeout(message string, last error) error {
	return NewAppError(CodePollTimeout, message, last)
}

func DownloadError(message string, cause error) error {
	return NewAppError(CodeDownload, message, cause)
}

func StorageError(message string, cause error) error {
	return NewAppError(CodeStorage, message, cause)
}

func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// CodeOf returns the code of the first AppError in the chain, or "".
func CodeOf(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}
