package shared

import (
	"errors"
	"fmt"
	"net/http"
)

// Error kinds surfaced by the progression engine. DUPLICATE_EVENT and
// OUT_OF_ORDER never leave the state machine as errors; they exist so logs
// and metrics can tell a benign replay from a classifier bug.
const (
	KindDuplicateEvent   = "DUPLICATE_EVENT"
	KindOutOfOrder       = "OUT_OF_ORDER"
	KindStoreUnavailable = "STORE_UNAVAILABLE"
	KindSyncUnreachable  = "SYNC_UNREACHABLE"
	KindMalformedEvent   = "MALFORMED_EVENT"
	KindNotFound         = "NOT_FOUND"
	KindConflict         = "CONFLICT"
	KindUnauthorized     = "UNAUTHORIZED"
	KindRateLimited      = "RATE_LIMITED"
	KindInternal         = "INTERNAL"
)

type AppError struct {
	StatusCode int         `json:"code"`
	Kind       string      `json:"kind"`
	Message    string      `json:"message"`
	Data       interface{} `json:"data,omitempty"`
	Err        error       `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func GetAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

func NewBadRequestError(err error, message string) *AppError {
	return &AppError{StatusCode: http.StatusBadRequest, Kind: KindMalformedEvent, Message: message, Err: err}
}

func NewUnauthorizedError(message string) *AppError {
	return &AppError{StatusCode: http.StatusUnauthorized, Kind: KindUnauthorized, Message: message}
}

func NewNotFoundError(err error, message string) *AppError {
	return &AppError{StatusCode: http.StatusNotFound, Kind: KindNotFound, Message: message, Err: err}
}

func NewConflictError(err error, message string) *AppError {
	return &AppError{StatusCode: http.StatusConflict, Kind: KindConflict, Message: message, Err: err}
}

func NewTooManyRequestsError(message string) *AppError {
	return &AppError{StatusCode: http.StatusTooManyRequests, Kind: KindRateLimited, Message: message}
}

func NewStoreUnavailableError(err error) *AppError {
	return &AppError{StatusCode: http.StatusServiceUnavailable, Kind: KindStoreUnavailable, Message: "store unavailable", Err: err}
}

func NewInternalError(err error) *AppError {
	return &AppError{StatusCode: http.StatusInternalServerError, Kind: KindInternal, Message: "Internal Server Error", Err: err}
}
