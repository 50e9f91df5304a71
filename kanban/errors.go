package kanban

import (
	"errors"
	"fmt"
)

// ErrorCode classifies a rejected lifecycle operation. All codes are
// rejections of the request, not crashes; the HTTP layer maps them to
// status codes.
type ErrorCode string

const (
	CodeCardNotFound         ErrorCode = "CARD_NOT_FOUND"
	CodeCardDeactivated      ErrorCode = "CARD_DEACTIVATED"
	CodeInvalidTransition    ErrorCode = "INVALID_TRANSITION"
	CodeRoleNotAllowed       ErrorCode = "ROLE_NOT_ALLOWED"
	CodeLoopTypeIncompatible ErrorCode = "LOOP_TYPE_INCOMPATIBLE"
	CodeMethodNotAllowed     ErrorCode = "METHOD_NOT_ALLOWED"
	CodeMissingLinkedOrder   ErrorCode = "MISSING_LINKED_ORDER"
	CodeScanConflict         ErrorCode = "SCAN_CONFLICT"
	CodeScanDuplicate        ErrorCode = "SCAN_DUPLICATE"
	CodeTenantMismatch       ErrorCode = "TENANT_MISMATCH"
	CodeUnknownError         ErrorCode = "UNKNOWN_ERROR"
)

// LifecycleError is a typed, user-facing rejection.
type LifecycleError struct {
	Code    ErrorCode
	Message string
}

func (e *LifecycleError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func NewLifecycleError(code ErrorCode, format string, args ...any) *LifecycleError {
	return &LifecycleError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// CodeOf extracts the error code, or UNKNOWN_ERROR for unclassified errors.
func CodeOf(err error) ErrorCode {
	var le *LifecycleError
	if errors.As(err, &le) {
		return le.Code
	}
	return CodeUnknownError
}

func IsCode(err error, code ErrorCode) bool {
	return CodeOf(err) == code
}
