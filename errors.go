package genops

import (
	"errors"
	"fmt"
)

// ErrorType represents the type/category of error
type ErrorType string

const (
	ErrorTypeNotFound        ErrorType = "not_found"
	ErrorTypeValidation      ErrorType = "validation"
	ErrorTypeRateLimit       ErrorType = "rate_limit"
	ErrorTypeBudget          ErrorType = "budget"
	ErrorTypePricing         ErrorType = "pricing"
	ErrorTypeConflict        ErrorType = "conflict"
	ErrorTypeInternal        ErrorType = "internal"
	ErrorTypeExternal        ErrorType = "external"
	ErrorTypePolicyViolation ErrorType = "policy_violation"
)

// DomainError represents a structured error with additional context
type DomainError struct {
	Type    ErrorType
	Message string
	Err     error
	Details map[string]interface{}
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Type == t.Type
}

// WithDetail adds a detail to the error
func (e *DomainError) WithDetail(key string, value interface{}) *DomainError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// NewDomainError creates a new domain error
func NewDomainError(errType ErrorType, message string, err error) *DomainError {
	return &DomainError{
		Type:    errType,
		Message: message,
		Err:     err,
		Details: make(map[string]interface{}),
	}
}

// Domain error variables

var (
	// Not Found Errors
	ErrPolicyNotFound = NewDomainError(ErrorTypeNotFound, "policy not found", nil)
	ErrBudgetNotFound = NewDomainError(ErrorTypeNotFound, "budget not found", nil)

	// Validation Errors
	ErrInvalidInput        = NewDomainError(ErrorTypeValidation, "invalid input", nil)
	ErrInvalidPolicyConfig = NewDomainError(ErrorTypeValidation, "invalid policy configuration", nil)
	ErrInvalidModel        = NewDomainError(ErrorTypeValidation, "invalid model specified", nil)
	ErrInvalidProvider     = NewDomainError(ErrorTypeValidation, "invalid provider specified", nil)
	ErrNotInitialized      = NewDomainError(ErrorTypeValidation, "client not initialized, call Init first", nil)

	// Rate Limit Errors
	ErrRateLimitExceeded = NewDomainError(ErrorTypeRateLimit, "rate limit exceeded", nil)

	// Budget Errors
	ErrBudgetExceeded = NewDomainError(ErrorTypeBudget, "budget exceeded", nil)

	// Pricing Errors
	ErrPricingUnknown = NewDomainError(ErrorTypePricing, "no pricing known for model", nil)

	// Conflict Errors
	ErrDuplicatePolicy = NewDomainError(ErrorTypeConflict, "policy already registered", nil)

	// External Provider Errors
	ErrProviderUnavailable = NewDomainError(ErrorTypeExternal, "LLM provider unavailable", nil)

	// Policy Violation Errors
	ErrPolicyViolation = NewDomainError(ErrorTypePolicyViolation, "policy violation", nil)
	ErrModelNotAllowed = NewDomainError(ErrorTypePolicyViolation, "model not allowed by policy", nil)
)

// Error type checking helper functions

// IsNotFoundError checks if an error is a not found error
func IsNotFoundError(err error) bool {
	return errorTypeOf(err) == ErrorTypeNotFound
}

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool {
	return errorTypeOf(err) == ErrorTypeValidation
}

// IsRateLimitError checks if an error is a rate limit error
func IsRateLimitError(err error) bool {
	return errorTypeOf(err) == ErrorTypeRateLimit
}

// IsBudgetError checks if an error is a budget error
func IsBudgetError(err error) bool {
	return errorTypeOf(err) == ErrorTypeBudget
}

// IsPolicyViolationError checks if an error is a policy violation error
func IsPolicyViolationError(err error) bool {
	return errorTypeOf(err) == ErrorTypePolicyViolation
}

// GetErrorType returns the ErrorType of a domain error, or empty string if not a domain error
func GetErrorType(err error) ErrorType {
	return errorTypeOf(err)
}

// GetErrorDetails returns the details map of a domain error, or nil if not a domain error
func GetErrorDetails(err error) map[string]interface{} {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Details
	}
	return nil
}

func errorTypeOf(err error) ErrorType {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type
	}
	return ""
}

// WrapError wraps an error with additional context
func WrapError(errType ErrorType, message string, err error) error {
	return NewDomainError(errType, message, err)
}

// WrapInternal wraps an error as an internal error
func WrapInternal(message string, err error) error {
	return NewDomainError(ErrorTypeInternal, message, err)
}
