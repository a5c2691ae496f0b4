package api

import (
	"fmt"
	"net/url"
	"sort"
	"strconv"
)

// Where is a nested query filter. Logical groups nest under "and"/"or"
// keys; field conditions nest an operator map under the field name,
// e.g. Where{"_status": {"equals": "published"}}.
type Where map[string]any

// And groups conditions that must all hold.
func And(conds ...Where) Where {
	return Where{"and": conds}
}

// Or groups conditions of which at least one must hold.
func Or(conds ...Where) Where {
	return Where{"or": conds}
}

// Equals matches documents whose field equals the value.
func Equals(field string, value any) Where {
	return Where{field: map[string]any{"equals": value}}
}

// Exists matches documents by presence or absence of the field.
func Exists(field string, exists bool) Where {
	return Where{field: map[string]any{"exists": exists}}
}

// GreaterThan matches documents whose field is strictly greater than
// the value.
func GreaterThan(field string, value any) Where {
	return Where{field: map[string]any{"greater_than": value}}
}

// Encode renders the filter into the bracketed querystring convention
// the admin API expects: where[and][0][_status][equals]=published.
// Keys are emitted in sorted order so encodings are stable.
func (w Where) Encode(vals url.Values) {
	encodeQuery("where", map[string]any(w), vals)
}

func encodeQuery(prefix string, v any, vals url.Values) {
	switch val := v.(type) {
	case Where:
		encodeQuery(prefix, map[string]any(val), vals)
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			encodeQuery(prefix+"["+k+"]", val[k], vals)
		}
	case []Where:
		for i, item := range val {
			encodeQuery(prefix+"["+strconv.Itoa(i)+"]", item, vals)
		}
	case []any:
		for i, item := range val {
			encodeQuery(prefix+"["+strconv.Itoa(i)+"]", item, vals)
		}
	case bool:
		vals.Set(prefix, strconv.FormatBool(val))
	case nil:
		vals.Set(prefix, "")
	default:
		vals.Set(prefix, fmt.Sprint(val))
	}
}
