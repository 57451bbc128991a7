package schema

import (
	"encoding/json"
	"fmt"

	derrors "resoluciones/internal/errors"
)

// Normalize returns a deep copy of record in canonical form: the deprecated
// line items alias is moved to the canonical key, or dropped when the
// canonical key is already present. The input is never modified.
func Normalize(record map[string]any) (map[string]any, error) {
	copied, err := DeepCopy(record)
	if err != nil {
		return nil, err
	}
	out := copied.(map[string]any)

	raw, ok := out[KeyAnnex]
	if !ok || raw == nil {
		return out, nil
	}
	annex, ok := raw.(map[string]any)
	if !ok {
		return nil, derrors.Newf(derrors.CodeNormalizationError, "%s must be an object, got %T", KeyAnnex, raw)
	}
	if alias, ok := annex[KeyLineItemsAlias]; ok {
		if _, canonical := annex[KeyLineItems]; !canonical {
			annex[KeyLineItems] = alias
		}
		delete(annex, KeyLineItemsAlias)
	}
	return out, nil
}

// DeepCopy copies a JSON shaped value. Maps and slices are duplicated, and
// scalar leaves are shared. Values that cannot come out of a JSON or YAML
// decoder are rejected with a NormalizationError.
func DeepCopy(v any) (any, error) {
	switch t := v.(type) {
	case nil, string, bool, json.Number,
		float64, float32, int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64:
		return t, nil
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			c, err := DeepCopy(val)
			if err != nil {
				return nil, err
			}
			out[k] = c
		}
		return out, nil
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			c, err := DeepCopy(val)
			if err != nil {
				return nil, err
			}
			out[i] = c
		}
		return out, nil
	case []string:
		out := make([]any, len(t))
		for i, s := range t {
			out[i] = s
		}
		return out, nil
	case []map[string]any:
		out := make([]any, len(t))
		for i, m := range t {
			c, err := DeepCopy(m)
			if err != nil {
				return nil, err
			}
			out[i] = c
		}
		return out, nil
	default:
		return nil, derrors.New(derrors.CodeNormalizationError, fmt.Sprintf("unexpected value of type %T in record", v))
	}
}
