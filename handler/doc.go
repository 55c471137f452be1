// Package handler provides typed HTTP handlers for the JSON API.
//
// A HandlerFunc receives a Context and a request struct populated by binders
// and returns a Response. Wrap turns it into an http.HandlerFunc:
//
//	type createClassRequest struct {
//		Name string `json:"name" validate:"required,min=2"`
//		Code string `json:"code" validate:"required"`
//	}
//
//	func (h *Handlers) createClass(ctx handler.Context, req createClassRequest) handler.Response {
//		class, err := h.school.CreateClass(ctx, req.Name, req.Code)
//		if err != nil {
//			return handler.JSONError(err)
//		}
//		return handler.JSON(class, handler.WithJSONStatus(http.StatusCreated))
//	}
//
//	r.Post("/classes", handler.Wrap(h.createClass,
//		handler.WithBinders[handler.Context, createClassRequest](binder.JSON()),
//		handler.WithErrorHandler[handler.Context, createClassRequest](errs.Handle),
//	))
//
// Every body follows the envelope {"data", "meta", "error"}. Failures are
// described by HTTPError (status, machine-readable code, message, optional
// data) or ValidationError (422 with per-field messages). ErrorResponder maps
// arbitrary errors to that shape for both wrapped handlers and plain
// middleware, logging 4xx at warn and 5xx at error level.
package handler
