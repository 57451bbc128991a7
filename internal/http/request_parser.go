package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"resoluciones/internal/core"
	derrors "resoluciones/internal/errors"
)

// maxBodyBytes bounds request bodies; records are small documents.
const maxBodyBytes = 1 << 20

// decodeJSON reads the request body into dst. An empty body leaves dst
// untouched when allowEmpty is set.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any, allowEmpty bool) error {
	if ct := r.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(ct, "application/json") {
		return derrors.Newf(derrors.CodeInvalidInputType, "unsupported content type %q, expected application/json", ct)
	}
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.UseNumber()
	if err := dec.Decode(dst); err != nil {
		var tooBig *http.MaxBytesError
		switch {
		case errors.Is(err, io.EOF) && allowEmpty:
			return nil
		case errors.Is(err, io.EOF):
			return derrors.New(derrors.CodeInvalidInputType, "request body is empty")
		case errors.As(err, &tooBig):
			return derrors.Newf(derrors.CodeInvalidInputType, "request body exceeds %d bytes", tooBig.Limit)
		default:
			return derrors.Wrap(err, derrors.CodeInvalidInputType, "request body is not valid JSON")
		}
	}
	if dec.More() {
		return derrors.New(derrors.CodeInvalidInputType, "request body must hold a single JSON value")
	}
	return nil
}

// decodeRecord reads a record object. JSON numbers are turned back into
// their literal text so amounts keep the string form records use.
func decodeRecord(w http.ResponseWriter, r *http.Request) (map[string]any, error) {
	var record map[string]any
	if err := decodeJSON(w, r, &record, false); err != nil {
		return nil, err
	}
	if record == nil {
		return nil, derrors.New(derrors.CodeInvalidInputType, "record must be a JSON object")
	}
	return normalizeNumbers(record).(map[string]any), nil
}

func normalizeNumbers(v any) any {
	switch t := v.(type) {
	case json.Number:
		return t.String()
	case map[string]any:
		for k, val := range t {
			t[k] = normalizeNumbers(val)
		}
		return t
	case []any:
		for i, val := range t {
			t[i] = normalizeNumbers(val)
		}
		return t
	default:
		return v
	}
}

// parsePeriodParam reads ?period=YYYY-MM, defaulting to the month of now.
func parsePeriodParam(r *http.Request, now time.Time) (core.Period, error) {
	v := strings.TrimSpace(r.URL.Query().Get("period"))
	if v == "" {
		return core.Period{Year: now.Year(), Month: now.Month()}, nil
	}
	p, err := core.ParsePeriod(v)
	if err != nil {
		return core.Period{}, derrors.Wrap(err, derrors.CodeInvalidInputType, fmt.Sprintf("invalid period %q, expected YYYY-MM", v))
	}
	return p, nil
}
