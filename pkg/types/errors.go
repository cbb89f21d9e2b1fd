package types

import (
	"errors"
	"fmt"
)

// ErrorType represents different categories of errors
type ErrorType string

const (
	ErrorTypeValidation        ErrorType = "validation"
	ErrorTypeNotFound          ErrorType = "not_found"
	ErrorTypeConflict          ErrorType = "conflict"
	ErrorTypeInsufficientStock ErrorType = "insufficient_stock"
	ErrorTypeExternal          ErrorType = "external"
	ErrorTypeInternal          ErrorType = "internal"
)

// HospitalError represents a structured error in the hospital system
type HospitalError struct {
	Type    ErrorType              `json:"type"`
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
	Cause   error                  `json:"-"`
}

// Error implements the error interface
func (e *HospitalError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause error
func (e *HospitalError) Unwrap() error {
	return e.Cause
}

// NewValidationError creates a new validation error
func NewValidationError(code, message string, details map[string]interface{}) *HospitalError {
	return &HospitalError{
		Type:    ErrorTypeValidation,
		Code:    code,
		Message: message,
		Details: details,
	}
}

// NewNotFoundError creates a new not found error
func NewNotFoundError(code, message string) *HospitalError {
	return &HospitalError{
		Type:    ErrorTypeNotFound,
		Code:    code,
		Message: message,
	}
}

// NewConflictError creates a new conflict error
func NewConflictError(code, message string) *HospitalError {
	return &HospitalError{
		Type:    ErrorTypeConflict,
		Code:    code,
		Message: message,
	}
}

// NewInsufficientStockError creates a new insufficient stock error
func NewInsufficientStockError(code, message string, details map[string]interface{}) *HospitalError {
	return &HospitalError{
		Type:    ErrorTypeInsufficientStock,
		Code:    code,
		Message: message,
		Details: details,
	}
}

// NewExternalError creates a new external service error
func NewExternalError(code, message string, cause error) *HospitalError {
	return &HospitalError{
		Type:    ErrorTypeExternal,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// NewInternalError creates a new internal error
func NewInternalError(code, message string, cause error) *HospitalError {
	return &HospitalError{
		Type:    ErrorTypeInternal,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// TypeOf returns the error type of err, or ErrorTypeInternal for errors
// that are not HospitalErrors.
func TypeOf(err error) ErrorType {
	var he *HospitalError
	if errors.As(err, &he) {
		return he.Type
	}
	return ErrorTypeInternal
}

// IsValidation reports whether err is a validation error
func IsValidation(err error) bool { return TypeOf(err) == ErrorTypeValidation }

// IsNotFound reports whether err is a not found error
func IsNotFound(err error) bool { return TypeOf(err) == ErrorTypeNotFound }

// IsConflict reports whether err is a conflict error
func IsConflict(err error) bool { return TypeOf(err) == ErrorTypeConflict }

// IsInsufficientStock reports whether err is an insufficient stock error
func IsInsufficientStock(err error) bool { return TypeOf(err) == ErrorTypeInsufficientStock }

// Common error codes
const (
	ErrCodeInvalidInput         = "INVALID_INPUT"
	ErrCodeDrugNotFound         = "DRUG_NOT_FOUND"
	ErrCodePrescriptionNotFound = "PRESCRIPTION_NOT_FOUND"
	ErrCodeAlreadyDispensed     = "ALREADY_DISPENSED"
	ErrCodeInsufficientStock    = "INSUFFICIENT_STOCK"
	ErrCodeExternalError        = "EXTERNAL_ERROR"
	ErrCodeInternalError        = "INTERNAL_ERROR"
)
