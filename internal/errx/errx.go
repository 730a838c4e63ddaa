// Package errx provides small helpers for attaching context to sentinel
// errors while keeping them matchable with errors.Is.
package errx

import "fmt"

// Wrap annotates sentinel with a cause. Both errors remain matchable.
func Wrap(sentinel, cause error) error {
	return fmt.Errorf("%w: %w", sentinel, cause)
}

// With appends formatted context to sentinel. The format string is applied
// verbatim after the sentinel's own message, so it usually starts with ": ".
func With(sentinel error, format string, args ...any) error {
	return fmt.Errorf("%w"+format, append([]any{sentinel}, args...)...)
}
