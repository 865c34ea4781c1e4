package errors

// ErrorBuilder provides a fluent API for creating ClassifiedError values.
type ErrorBuilder struct {
	category ErrorCategory
	severity ErrorSeverity
	message  string
	cause    error
	context  ErrorContext
}

// NewError starts a builder with the given category and message.
func NewError(category ErrorCategory, message string) *ErrorBuilder {
	return &ErrorBuilder{
		category: category,
		severity: SeverityError,
		message:  message,
		context:  make(ErrorContext),
	}
}

// WrapError starts a builder wrapping an existing error.
func WrapError(err error, category ErrorCategory, message string) *ErrorBuilder {
	b := NewError(category, message)
	b.cause = err
	return b
}

func (b *ErrorBuilder) WithSeverity(severity ErrorSeverity) *ErrorBuilder {
	b.severity = severity
	return b
}

func (b *ErrorBuilder) WithContext(key string, value any) *ErrorBuilder {
	b.context = b.context.Set(key, value)
	return b
}

func (b *ErrorBuilder) WithCause(err error) *ErrorBuilder {
	b.cause = err
	return b
}

func (b *ErrorBuilder) Fatal() *ErrorBuilder   { return b.WithSeverity(SeverityFatal) }
func (b *ErrorBuilder) Warning() *ErrorBuilder { return b.WithSeverity(SeverityWarning) }

// Build creates the ClassifiedError.
func (b *ErrorBuilder) Build() *ClassifiedError {
	return &ClassifiedError{
		category: b.category,
		severity: b.severity,
		message:  b.message,
		cause:    b.cause,
		context:  b.context,
	}
}

// Shorthands for the categories used by the build pipeline.

func ConfigError(message string) *ErrorBuilder     { return NewError(CategoryConfig, message).Fatal() }
func ValidationError(message string) *ErrorBuilder { return NewError(CategoryValidation, message).Fatal() }
func ContentError(message string) *ErrorBuilder    { return NewError(CategoryContent, message).Fatal() }
func RenderError(message string) *ErrorBuilder     { return NewError(CategoryRender, message).Fatal() }
func AssetError(message string) *ErrorBuilder      { return NewError(CategoryAsset, message) }
func ManifestError(message string) *ErrorBuilder   { return NewError(CategoryManifest, message).Fatal() }
func FileSystemError(message string) *ErrorBuilder { return NewError(CategoryFileSystem, message).Fatal() }
func LinkCheckError(message string) *ErrorBuilder  { return NewError(CategoryLinkCheck, message) }
func InternalError(message string) *ErrorBuilder   { return NewError(CategoryInternal, message).Fatal() }
