package http

import (
	"encoding/json"
	"net/http"

	derrors "resoluciones/internal/errors"
	"resoluciones/internal/log"
)

// JSONResponse builds the API's JSON envelope. Every body carries success
// and message; failures add error_code.
type JSONResponse struct {
	status  int
	fields  map[string]any
	headers map[string]string
}

// NewJSONResponse starts a successful 200 response.
func NewJSONResponse(message string) *JSONResponse {
	return &JSONResponse{
		status:  http.StatusOK,
		fields:  map[string]any{"success": true, "message": message},
		headers: map[string]string{},
	}
}

// ErrorResponse starts a failed response with the given status and code.
func ErrorResponse(status int, code derrors.Code, message string) *JSONResponse {
	r := NewJSONResponse(message).Status(status)
	r.fields["success"] = false
	r.fields["error_code"] = string(code)
	return r
}

// ErrorFrom maps a taxonomy error onto a response. Guidance is passed on.
func ErrorFrom(err error) *JSONResponse {
	e := derrors.Ensure(err, derrors.CodeInternal, "unexpected error")
	r := ErrorResponse(StatusFor(e.Code), e.Code, e.Message)
	if e.Guidance != "" {
		r.Field("guidance", e.Guidance)
	}
	return r
}

func (r *JSONResponse) Status(code int) *JSONResponse {
	r.status = code
	return r
}

func (r *JSONResponse) Field(key string, value any) *JSONResponse {
	r.fields[key] = value
	return r
}

func (r *JSONResponse) Header(name, value string) *JSONResponse {
	r.headers[name] = value
	return r
}

func (r *JSONResponse) Write(w http.ResponseWriter, req *http.Request) {
	writeJSON(w, req, r.status, r.fields, r.headers)
}

// writeJSON encodes body with the given status. Encoding failures are logged
// since the header is already out.
func writeJSON(w http.ResponseWriter, req *http.Request, status int, body any, headers map[string]string) {
	for k, v := range headers {
		w.Header().Set(k, v)
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(body); err != nil {
		log.FromContext(req.Context()).ErrorContext(req.Context(), "encode response failed", log.FieldError, err.Error())
	}
}

// StatusFor is the HTTP status reported for an error code.
func StatusFor(code derrors.Code) int {
	switch code {
	case derrors.CodeValidationFailed, derrors.CodeNormalizationError, derrors.CodeInvalidInputType:
		return http.StatusUnprocessableEntity
	case derrors.CodeRecordNotFound, derrors.CodeTemplateNotFound:
		return http.StatusNotFound
	case derrors.CodeCompilerUnavailable:
		return http.StatusServiceUnavailable
	case derrors.CodeCompilationTimedOut:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func MethodNotAllowed(allowed string) *JSONResponse {
	return ErrorResponse(http.StatusMethodNotAllowed, derrors.CodeInvalidInputType, "method not allowed").
		Header("Allow", allowed)
}
