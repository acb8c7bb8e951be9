// Package errors provides structured error types for the partwise engine.
// All errors include a category, code, message, and retryable flag for
// consistent error handling across components.
package errors

import (
	"errors"
	"fmt"
)

// ErrorCategory classifies errors by system component.
type ErrorCategory string

const (
	ErrCategoryTypes      ErrorCategory = "TYPES"
	ErrCategoryDescriptor ErrorCategory = "DESCRIPTOR"
	ErrCategoryRouting    ErrorCategory = "ROUTING"
	ErrCategoryCreation   ErrorCategory = "CREATION"
	ErrCategoryCatalog    ErrorCategory = "CATALOG"
	ErrCategoryArchive    ErrorCategory = "ARCHIVE"
	ErrCategoryInternal   ErrorCategory = "INTERNAL"
)

// Error codes for each category.
const (
	// Types codes
	CodeIncompatibleTypes = "INCOMPATIBLE_TYPES"
	CodeNoComparator      = "NO_COMPARATOR"
	CodeNoHashFunction    = "NO_HASH_FUNCTION"
	CodeBadEncoding       = "BAD_ENCODING"

	// Descriptor codes
	CodeNotPartitioned    = "NOT_PARTITIONED"
	CodeWrongStrategy     = "WRONG_STRATEGY"
	CodeEmptyPartitionSet = "EMPTY_PARTITION_SET"
	CodeRangeOverlap      = "RANGE_OVERLAP"
	CodeInvalidRange      = "INVALID_RANGE"

	// Routing codes
	CodeNoSuchPartition       = "NO_SUCH_PARTITION"
	CodePartitionNotFound     = "PARTITION_NOT_FOUND"
	CodeInvalidIndex          = "INVALID_INDEX"
	CodeInvalidPartitionCount = "INVALID_PARTITION_COUNT"

	// Creation codes
	CodeDdlFailed           = "DDL_FAILED"
	CodeConstraintViolation = "CONSTRAINT_VIOLATION"

	// Catalog codes
	CodeCatalogIO       = "CATALOG_IO"
	CodeDuplicateChild  = "DUPLICATE_CHILD"
	CodeUnknownRelation = "UNKNOWN_RELATION"

	// Archive codes
	CodeExportFailed = "EXPORT_FAILED"
	CodeImportFailed = "IMPORT_FAILED"

	// Internal codes
	CodeUnexpected = "UNEXPECTED"
)

// PartwiseError is the structured error type used throughout the system.
type PartwiseError struct {
	Category  ErrorCategory
	Code      string
	Message   string
	Details   map[string]interface{}
	Cause     error
	Retryable bool
}

// Error returns a formatted error string.
func (e *PartwiseError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Category, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Category, e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *PartwiseError) Unwrap() error {
	return e.Cause
}

// Is reports whether the target matches this error's category and code.
func (e *PartwiseError) Is(target error) bool {
	var t *PartwiseError
	if errors.As(target, &t) {
		return e.Category == t.Category && e.Code == t.Code
	}
	return false
}

// New creates a new PartwiseError.
func New(category ErrorCategory, code, message string) *PartwiseError {
	return &PartwiseError{
		Category:  category,
		Code:      code,
		Message:   message,
		Retryable: isRetryable(category, code),
	}
}

// Newf creates a new PartwiseError with a formatted message.
func Newf(category ErrorCategory, code, format string, args ...interface{}) *PartwiseError {
	return New(category, code, fmt.Sprintf(format, args...))
}

// Wrap creates a new PartwiseError wrapping an existing error.
func Wrap(category ErrorCategory, code, message string, cause error) *PartwiseError {
	return &PartwiseError{
		Category:  category,
		Code:      code,
		Message:   message,
		Cause:     cause,
		Retryable: isRetryable(category, code),
	}
}

// WithDetails returns a copy of the error with additional details.
func (e *PartwiseError) WithDetails(details map[string]interface{}) *PartwiseError {
	cp := *e
	cp.Details = details
	return &cp
}

// IsRetryable checks whether an error (or its chain) is retryable.
func IsRetryable(err error) bool {
	var pe *PartwiseError
	if errors.As(err, &pe) {
		return pe.Retryable
	}
	return false
}

// GetCategory extracts the error category from an error chain.
// Returns empty string if the error is not a PartwiseError.
func GetCategory(err error) ErrorCategory {
	var pe *PartwiseError
	if errors.As(err, &pe) {
		return pe.Category
	}
	return ""
}

// GetCode extracts the error code from an error chain.
// Returns empty string if the error is not a PartwiseError.
func GetCode(err error) string {
	var pe *PartwiseError
	if errors.As(err, &pe) {
		return pe.Code
	}
	return ""
}

// isRetryable determines if an error code is retryable.
// Only transient infrastructure failures qualify; routing and type-system
// failures are deterministic and retrying cannot change the outcome.
func isRetryable(category ErrorCategory, code string) bool {
	switch {
	case category == ErrCategoryCatalog && code == CodeCatalogIO:
		return true
	case category == ErrCategoryArchive && code == CodeExportFailed:
		return true
	case category == ErrCategoryArchive && code == CodeImportFailed:
		return true
	default:
		return false
	}
}

// Convenience constructors for common errors.

func NewTypesError(code, message string) *PartwiseError {
	return New(ErrCategoryTypes, code, message)
}

func NewDescriptorError(code, message string) *PartwiseError {
	return New(ErrCategoryDescriptor, code, message)
}

func NewRoutingError(code, message string) *PartwiseError {
	return New(ErrCategoryRouting, code, message)
}

func NewCreationError(code, message string, cause error) *PartwiseError {
	return Wrap(ErrCategoryCreation, code, message, cause)
}

func NewCatalogError(code, message string, cause error) *PartwiseError {
	return Wrap(ErrCategoryCatalog, code, message, cause)
}

func NewArchiveError(code, message string, cause error) *PartwiseError {
	return Wrap(ErrCategoryArchive, code, message, cause)
}

func NewInternalError(message string, cause error) *PartwiseError {
	return Wrap(ErrCategoryInternal, CodeUnexpected, message, cause)
}
