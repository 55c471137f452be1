package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/dmitrymomot/leveledu/pkg/binder"
	"github.com/dmitrymomot/leveledu/pkg/logger"
	"github.com/dmitrymomot/leveledu/pkg/requestid"
)

// ErrorMapper translates domain errors into HTTPErrors. It returns false for
// errors it does not recognise.
type ErrorMapper func(err error) (HTTPError, bool)

func asValidation(err error, target *ValidationError) bool {
	return errors.As(err, target)
}

// ToHTTPError resolves err to an HTTPError. Validation errors, HTTPErrors and
// binder failures are recognised directly; other errors are offered to
// mappers in order and fall back to ErrInternal.
func ToHTTPError(err error, mappers ...ErrorMapper) HTTPError {
	if err == nil {
		return ErrInternal
	}

	var ve ValidationError
	if asValidation(err, &ve) {
		return HTTPError{
			Status:  http.StatusUnprocessableEntity,
			Code:    "VALIDATION_ERROR",
			Message: "Validation failed",
		}
	}

	var he HTTPError
	if errors.As(err, &he) {
		return he
	}

	for _, m := range mappers {
		if mapped, ok := m(err); ok {
			return mapped
		}
	}

	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		return ErrPayloadTooLarge
	case errors.Is(err, binder.ErrUnsupportedMediaType):
		return ErrUnsupportedType
	case errors.Is(err, binder.ErrMissingContentType),
		errors.Is(err, binder.ErrFailedToParseJSON),
		errors.Is(err, binder.ErrFailedToParseQuery),
		errors.Is(err, binder.ErrFailedToParsePath):
		return ErrBadRequest.WithMessage(err.Error())
	}

	return ErrInternal
}

func logLevel(status int) slog.Level {
	if status < http.StatusInternalServerError {
		return slog.LevelWarn
	}
	return slog.LevelError
}

// ErrorResponder renders errors as JSON envelopes and logs them.
type ErrorResponder struct {
	log     *slog.Logger
	mappers []ErrorMapper
}

// NewErrorResponder creates a responder. A nil logger discards logs.
func NewErrorResponder(log *slog.Logger, mappers ...ErrorMapper) *ErrorResponder {
	if log == nil {
		log = logger.Discard()
	}
	return &ErrorResponder{log: log, mappers: mappers}
}

// Resolve maps err using the responder's mappers.
func (e *ErrorResponder) Resolve(err error) HTTPError {
	return ToHTTPError(err, e.mappers...)
}

// Write renders err to w. It is the error callback for plain middleware.
func (e *ErrorResponder) Write(w http.ResponseWriter, r *http.Request, err error) {
	he := e.Resolve(err)
	e.logError(r.Context(), r, err, he)

	resp := &jsonResponse{
		status: he.Status,
		body:   JSONResponse{Error: errorDetail(err, he)},
	}
	if renderErr := resp.Render(w, r); renderErr != nil {
		e.log.ErrorContext(r.Context(), "failed to render error response",
			logger.Component("error_handler"),
			logger.Error(renderErr),
		)
	}
}

// Handle satisfies ErrorHandler[Context] for Wrap.
func (e *ErrorResponder) Handle(ctx Context, err error) {
	e.Write(ctx.ResponseWriter(), ctx.Request(), err)
}

// Response returns a Response that logs and renders err when rendered.
func (e *ErrorResponder) Response(err error) Response {
	return errorResponse{responder: e, err: err}
}

type errorResponse struct {
	responder *ErrorResponder
	err       error
}

func (r errorResponse) Render(w http.ResponseWriter, req *http.Request) error {
	r.responder.Write(w, req, r.err)
	return nil
}

func (e *ErrorResponder) logError(ctx context.Context, r *http.Request, err error, he HTTPError) {
	e.log.LogAttrs(ctx, logLevel(he.Status), "request error",
		logger.RequestID(requestid.FromContext(ctx)),
		logger.Error(err),
		slog.String("code", he.Code),
		slog.Int("status_code", he.Status),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		logger.Component("error_handler"),
	)
}
