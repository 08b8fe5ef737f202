package http

import (
	"bytes"
	"encoding/json"
	"net/http"
)

// ResponseBuilder assembles a JSON API response.
type ResponseBuilder struct {
	statusCode int
	headers    map[string]string
	payload    any
}

// NewResponse creates a builder with a 200 status and no body.
func NewResponse() *ResponseBuilder {
	return &ResponseBuilder{
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

func (b *ResponseBuilder) Status(code int) *ResponseBuilder {
	b.statusCode = code
	return b
}

func (b *ResponseBuilder) Header(name, value string) *ResponseBuilder {
	b.headers[name] = value
	return b
}

// JSON sets the value encoded as the response body.
func (b *ResponseBuilder) JSON(v any) *ResponseBuilder {
	b.payload = v
	return b
}

// Write sends the response. The body is encoded before the status line so an
// encoding failure still yields a 500.
func (b *ResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}

	if b.payload == nil {
		w.WriteHeader(b.statusCode)
		return
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(b.payload); err != nil {
		http.Error(w, `{"error":"encoding failed"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(b.statusCode)
	_, _ = w.Write(buf.Bytes())
}

// ErrorBody is the JSON shape of every API error.
type ErrorBody struct {
	Error  string `json:"error"`
	Status int    `json:"status"`
}

// ErrorResponse builds an error response with message.
func ErrorResponse(statusCode int, message string) *ResponseBuilder {
	return NewResponse().Status(statusCode).JSON(ErrorBody{Error: message, Status: statusCode})
}

func BadRequestError(message string) *ResponseBuilder {
	return ErrorResponse(http.StatusBadRequest, message)
}

func UnauthorizedError() *ResponseBuilder {
	return ErrorResponse(http.StatusUnauthorized, "authentication required").
		Header("WWW-Authenticate", `Bearer realm="financas"`)
}

func NotFoundError(message string) *ResponseBuilder {
	return ErrorResponse(http.StatusNotFound, message)
}

func TooManyRequestsError() *ResponseBuilder {
	return ErrorResponse(http.StatusTooManyRequests, "rate limit exceeded").Header("Retry-After", "60")
}

// ErrorFrom maps err to its status. Messages of 5xx errors are not exposed.
func ErrorFrom(err error) *ResponseBuilder {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		return ErrorResponse(status, "internal error")
	}
	if status == http.StatusUnauthorized {
		return UnauthorizedError().JSON(ErrorBody{Error: err.Error(), Status: status})
	}
	return ErrorResponse(status, err.Error())
}
