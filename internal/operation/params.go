package operation

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/bcnelson/psm-connector/internal/validation"
)

// Params holds the operation-specific input, decoded from a JSON object.
type Params map[string]any

// DecodeParams decodes a JSON object. Empty input yields empty Params.
func DecodeParams(data []byte) (Params, error) {
	p := Params{}
	if len(strings.TrimSpace(string(data))) == 0 {
		return p, nil
	}
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("decoding params: %w", err)
	}
	return p, nil
}

// String returns the value of key as a trimmed string. Numbers and booleans
// are formatted; anything else, or a missing key, gives "".
func (p Params) String(key string) string {
	return scalar(p[key])
}

// RequireString is String failing with a configuration error when blank.
func (p Params) RequireString(key string) (string, error) {
	v := p.String(key)
	if v == "" {
		return "", validation.NewValidationError(key, "", "field is required but blank")
	}
	return v, nil
}

// List normalizes key to a list. A string is split on commas; a JSON array
// is taken element by element. Elements are trimmed and blanks dropped.
func (p Params) List(key string) []string {
	var raw []string
	switch v := p[key].(type) {
	case nil:
		return nil
	case string:
		raw = strings.Split(v, ",")
	case []string:
		raw = v
	case []any:
		for _, e := range v {
			raw = append(raw, scalar(e))
		}
	default:
		raw = []string{scalar(v)}
	}

	out := make([]string, 0, len(raw))
	for _, s := range raw {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Int returns key as an integer. ok is false when the key is missing or blank.
func (p Params) Int(key string) (n int, ok bool, err error) {
	switch v := p[key].(type) {
	case nil:
		return 0, false, nil
	case float64:
		if v != math.Trunc(v) {
			return 0, true, validation.NewValidationError(key, scalar(v), "must be an integer")
		}
		return int(v), true, nil
	case int:
		return v, true, nil
	default:
		s := scalar(v)
		if s == "" {
			return 0, false, nil
		}
		n, err := strconv.Atoi(s)
		if err != nil {
			return 0, true, validation.NewValidationError(key, s, "must be an integer")
		}
		return n, true, nil
	}
}

// Bool returns key as a boolean, false when missing.
func (p Params) Bool(key string) (bool, error) {
	switch v := p[key].(type) {
	case nil:
		return false, nil
	case bool:
		return v, nil
	default:
		s := scalar(v)
		if s == "" {
			return false, nil
		}
		b, err := strconv.ParseBool(s)
		if err != nil {
			return false, validation.NewValidationError(key, s, "must be true or false")
		}
		return b, nil
	}
}

func scalar(v any) string {
	switch v := v.(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case bool:
		return strconv.FormatBool(v)
	case json.Number:
		return v.String()
	default:
		return ""
	}
}
