// Package errors provides standardized error messaging for the Virel toolchain.
package errors

import (
	"fmt"
	"runtime"
)

// ErrorCategory represents different categories of errors
type ErrorCategory string

const (
	// CategoryReference covers unknown and ambiguous name lookups.
	CategoryReference ErrorCategory = "REFERENCE"
	// CategoryUnsupported covers case-tree shapes the pass does not handle.
	CategoryUnsupported ErrorCategory = "UNSUPPORTED"
	// CategoryInternal covers invariant violations surfaced by an earlier pass.
	CategoryInternal ErrorCategory = "INTERNAL"
	// CategoryAccessibility covers uses of statically inaccessible arguments.
	CategoryAccessibility ErrorCategory = "ACCESSIBILITY"
	CategoryValidation     ErrorCategory = "VALIDATION"
	CategorySystem         ErrorCategory = "SYSTEM"
)

// StandardError provides a consistent error format
type StandardError struct {
	Category ErrorCategory
	Code     string
	Message  string
	Context  map[string]interface{}
	Caller   string
}

// Error implements the error interface
func (e *StandardError) Error() string {
	return fmt.Sprintf("[%s:%s] %s (caller: %s)", e.Category, e.Code, e.Message, e.Caller)
}

// NewStandardError creates a new standardized error
func NewStandardError(category ErrorCategory, code, message string, context map[string]interface{}) *StandardError {
	pc, _, _, ok := runtime.Caller(1)
	caller := "unknown"
	if ok {
		if fn := runtime.FuncForPC(pc); fn != nil {
			caller = fn.Name()
		}
	}

	return &StandardError{
		Category: category,
		Code:     code,
		Message:  message,
		Context:  context,
		Caller:   caller,
	}
}

// Common error constructors

func UnknownReference(name string) *StandardError {
	return NewStandardError(CategoryReference, "UNKNOWN_REFERENCE",
		fmt.Sprintf("no definition for %s", name),
		map[string]interface{}{"name": name})
}

func AmbiguousReference(name string, count int) *StandardError {
	return NewStandardError(CategoryReference, "AMBIGUOUS_REFERENCE",
		fmt.Sprintf("%s resolves to %d definitions", name, count),
		map[string]interface{}{"name": name, "count": count})
}

func UnsupportedConstruct(shape string, where string) *StandardError {
	return NewStandardError(CategoryUnsupported, "UNSUPPORTED_CONSTRUCT",
		fmt.Sprintf("unsupported %s in %s", shape, where),
		map[string]interface{}{"shape": shape, "where": where})
}

func StrayVariable(name string) *StandardError {
	return NewStandardError(CategoryInternal, "STRAY_VARIABLE",
		fmt.Sprintf("stray machine-generated variable %s escaped an earlier pass", name),
		map[string]interface{}{"name": name})
}

func InaccessibleButUsed(name string, indices []int) *StandardError {
	return NewStandardError(CategoryAccessibility, "INACCESSIBLE_BUT_USED",
		fmt.Sprintf("%s: argument(s) %v were proven inaccessible but are used at runtime", name, indices),
		map[string]interface{}{"name": name, "indices": indices})
}
