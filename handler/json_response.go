package handler

import (
	"encoding/json"
	"net/http"
)

// JSONResponse is the envelope for every JSON body.
type JSONResponse struct {
	Data  any            `json:"data,omitempty"`
	Meta  map[string]any `json:"meta,omitempty"`
	Error *ErrorDetail   `json:"error,omitempty"`
}

// ErrorDetail describes a failure.
type ErrorDetail struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
	Details any    `json:"details,omitempty"`
}

type jsonResponse struct {
	status int
	body   JSONResponse
}

func (j jsonResponse) Render(w http.ResponseWriter, r *http.Request) error {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(j.status)
	return json.NewEncoder(w).Encode(j.body)
}

// JSONOption configures a JSON response.
type JSONOption func(*jsonResponse)

// WithJSONStatus sets the HTTP status code.
func WithJSONStatus(status int) JSONOption {
	return func(r *jsonResponse) { r.status = status }
}

// WithJSONMeta attaches metadata such as pagination.
func WithJSONMeta(meta map[string]any) JSONOption {
	return func(r *jsonResponse) { r.body.Meta = meta }
}

// JSON renders v as data. Passing an error renders it as an error response.
func JSON(v any, opts ...JSONOption) Response {
	r := &jsonResponse{status: http.StatusOK}

	switch val := v.(type) {
	case JSONResponse:
		r.body = val
	case error:
		he := ToHTTPError(val)
		r.status = he.Status
		r.body.Error = errorDetail(val, he)
	default:
		r.body.Data = v
	}

	for _, opt := range opts {
		opt(r)
	}
	return r
}

// JSONError renders err. Unknown errors become a generic 500 so internal
// detail never reaches the client.
func JSONError(err error, opts ...JSONOption) Response {
	he := ToHTTPError(err)
	r := &jsonResponse{
		status: he.Status,
		body:   JSONResponse{Error: errorDetail(err, he)},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func errorDetail(err error, he HTTPError) *ErrorDetail {
	detail := &ErrorDetail{Code: he.Code, Message: he.Message, Details: he.Data}
	var ve ValidationError
	if asValidation(err, &ve) && len(ve) > 0 {
		detail.Details = map[string][]string(ve)
	}
	return detail
}
