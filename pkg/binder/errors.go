package binder

import "errors"

var (
	// ErrBinderNotApplicable tells handler.Wrap to skip the binder for this request.
	ErrBinderNotApplicable = errors.New("binder: not applicable")

	ErrUnsupportedMediaType = errors.New("unsupported media type")
	ErrMissingContentType   = errors.New("missing content type")
	ErrFailedToParseJSON    = errors.New("failed to parse JSON request body")
	ErrFailedToParseQuery   = errors.New("failed to parse query parameters")
	ErrFailedToParsePath    = errors.New("failed to parse path parameters")
)
