package backend

import (
	"encoding/json"
	"fmt"
)

const (
	MethodEqual       = "equal"
	MethodNotEqual    = "notEqual"
	MethodLimit       = "limit"
	MethodCursorAfter = "cursorAfter"
)

// Query is one list filter or pagination directive. It serializes to the
// backend's JSON query form, e.g. {"method":"equal","attribute":"status","values":["active"]}.
type Query struct {
	Method    string `json:"method"`
	Attribute string `json:"attribute,omitempty"`
	Values    []any  `json:"values,omitempty"`
}

// Equal matches documents whose attribute equals any of values.
func Equal(attribute string, values ...any) Query {
	return Query{Method: MethodEqual, Attribute: attribute, Values: values}
}

// NotEqual matches documents whose attribute differs from every value.
func NotEqual(attribute string, values ...any) Query {
	return Query{Method: MethodNotEqual, Attribute: attribute, Values: values}
}

// Limit caps the page size.
func Limit(n int) Query {
	return Query{Method: MethodLimit, Values: []any{n}}
}

// CursorAfter starts the page after the document with the given ID.
func CursorAfter(id string) Query {
	return Query{Method: MethodCursorAfter, Values: []any{id}}
}

func (q Query) String() string {
	b, err := json.Marshal(q)
	if err != nil {
		return fmt.Sprintf("%s(%s)", q.Method, q.Attribute)
	}
	return string(b)
}

// IsFilter reports whether q restricts which documents match, as opposed to
// shaping the page.
func (q Query) IsFilter() bool {
	return q.Method == MethodEqual || q.Method == MethodNotEqual
}

// Matches evaluates a filter query against document data. Pagination queries
// always match.
func (q Query) Matches(data map[string]any) bool {
	v, ok := data[q.Attribute]
	switch q.Method {
	case MethodEqual:
		if !ok {
			return false
		}
		for _, want := range q.Values {
			if sameValue(v, want) {
				return true
			}
		}
		return false
	case MethodNotEqual:
		if !ok {
			return true
		}
		for _, want := range q.Values {
			if sameValue(v, want) {
				return false
			}
		}
		return true
	default:
		return true
	}
}

// Page holds the pagination directives extracted from a query list.
type Page struct {
	Filters     []Query
	Limit       int // 0 means no limit was requested
	CursorAfter string
}

// SplitQueries separates filters from pagination directives. Later
// pagination directives override earlier ones.
func SplitQueries(queries []Query) (Page, error) {
	var p Page
	for _, q := range queries {
		switch q.Method {
		case MethodEqual, MethodNotEqual:
			if q.Attribute == "" {
				return Page{}, Errorf(KindValidation, "query", "%s requires an attribute", q.Method)
			}
			if len(q.Values) == 0 {
				return Page{}, Errorf(KindValidation, "query", "%s on %q requires at least one value", q.Method, q.Attribute)
			}
			p.Filters = append(p.Filters, q)
		case MethodLimit:
			n, ok := intValue(q.Values)
			if !ok || n < 0 {
				return Page{}, Errorf(KindValidation, "query", "limit requires a non-negative integer")
			}
			p.Limit = n
		case MethodCursorAfter:
			if len(q.Values) != 1 {
				return Page{}, Errorf(KindValidation, "query", "cursorAfter requires a document id")
			}
			id, ok := q.Values[0].(string)
			if !ok || id == "" {
				return Page{}, Errorf(KindValidation, "query", "cursorAfter requires a document id")
			}
			p.CursorAfter = id
		default:
			return Page{}, Errorf(KindValidation, "query", "unsupported query method %q", q.Method)
		}
	}
	return p, nil
}

func intValue(values []any) (int, bool) {
	if len(values) != 1 {
		return 0, false
	}
	switch n := values[0].(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), n == float64(int(n))
	default:
		return 0, false
	}
}

// sameValue compares loosely so that values that went through JSON (where
// every number is a float64) still equal their Go originals.
func sameValue(a, b any) bool {
	return fmt.Sprint(a) == fmt.Sprint(b)
}
