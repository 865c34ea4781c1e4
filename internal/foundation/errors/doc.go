// Package errors provides the classified error primitives used across notepress.
//
// A ClassifiedError carries a category (what failed), a severity (how badly),
// a message, an optional cause and a small context map. Errors are built with
// a fluent builder:
//
//	err := errors.WrapError(readErr, errors.CategoryContent, "read note").
//		WithContext("path", notePath).
//		Fatal().
//		Build()
//
// The CLI adapter maps categories to process exit codes.
package errors
