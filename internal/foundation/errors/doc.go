// Package errors provides the classified error primitives shared by navindex.
//
// Every failure that reaches a user (CLI exit code, HTTP status) is expected to
// be, or to wrap, a ClassifiedError. Domain packages keep their own sentinel
// and typed errors and convert them with a Classify method.
//
// Key pieces:
//   - ErrorCategory: broad classification (config, content, index, not_found, ...)
//   - ErrorSeverity: impact level (fatal, error, warning, info)
//   - RetryStrategy: whether a caller may retry
//   - ErrorBuilder: fluent construction
//   - CLIErrorAdapter / HTTPErrorAdapter: presentation
//
// Example:
//
//	err := errors.NewError(errors.CategoryContent, "front matter is invalid").
//		WithContext("path", rel).
//		WithCause(yamlErr).
//		Build()
package errors
