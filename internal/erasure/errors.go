// Error construction and classification for the usage analyzer. All five
// kinds are fatal to the pass; there is no local recovery.

package erasure

import (
	stderrors "errors"

	verrors "github.com/virel-lang/virel/internal/errors"
)

func errUnknownReference(n Name) error {
	return verrors.UnknownReference(n.String())
}

func errAmbiguousReference(n Name, count int) error {
	return verrors.AmbiguousReference(n.String(), count)
}

func errUnsupported(shape, where string) error {
	return verrors.UnsupportedConstruct(shape, where)
}

func errStrayVariable(n Name) error {
	return verrors.StrayVariable(n.String())
}

func errInaccessibleButUsed(n Name, indices []int) error {
	return verrors.InaccessibleButUsed(n.String(), indices)
}

func hasCategory(err error, cat verrors.ErrorCategory) bool {
	var se *verrors.StandardError
	if !stderrors.As(err, &se) {
		return false
	}
	return se.Category == cat
}

// IsReferenceError reports whether err is an unknown- or
// ambiguous-reference error.
func IsReferenceError(err error) bool {
	return hasCategory(err, verrors.CategoryReference)
}

// IsUnsupportedError reports whether err rejects a case-tree or term shape
// the analyzer does not handle.
func IsUnsupportedError(err error) bool {
	return hasCategory(err, verrors.CategoryUnsupported)
}

// IsStrayVariableError reports whether err flags a machine-generated name
// that escaped an earlier pass.
func IsStrayVariableError(err error) bool {
	return hasCategory(err, verrors.CategoryInternal)
}

// IsAccessibilityError reports whether err is an inaccessible-but-used
// violation.
func IsAccessibilityError(err error) bool {
	return hasCategory(err, verrors.CategoryAccessibility)
}
