package service

import (
	"encoding/json"
	"strings"

	"gorm.io/datatypes"
)

const masked = "***"

var sensitiveKeys = map[string]struct{}{
	"card":                   {},
	"number":                 {},
	"cvc":                    {},
	"billing_details":        {},
	"payment_method_details": {},
}

// maskResponse replaces card and billing details in a JSON connector response. Bodies that
// are not JSON are dropped.
func maskResponse(body []byte) datatypes.JSON {
	if len(body) == 0 {
		return nil
	}
	var v any
	if err := json.Unmarshal(body, &v); err != nil {
		return nil
	}
	out, err := json.Marshal(maskValue(v))
	if err != nil {
		return nil
	}
	return datatypes.JSON(out)
}

func maskValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, val := range t {
			if _, ok := sensitiveKeys[strings.ToLower(k)]; ok {
				t[k] = masked
				continue
			}
			t[k] = maskValue(val)
		}
		return t
	case []any:
		for i := range t {
			t[i] = maskValue(t[i])
		}
		return t
	default:
		return v
	}
}
