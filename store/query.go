package store

import (
	"fmt"
	"slices"
	"strings"
)

type queryKind int

const (
	kindEqual queryKind = iota
	kindSearch
	kindOrderAsc
	kindOrderDesc
	kindLimit
	kindCursorAfter
)

// Query is one clause of a list call.
type Query struct {
	kind  queryKind
	field string
	value any
	n     int
}

// Equal matches documents whose field equals value. Array fields match when
// they contain value.
func Equal(field string, value any) Query {
	return Query{kind: kindEqual, field: field, value: value}
}

// Search matches documents whose string field contains term, ignoring case.
func Search(field, term string) Query {
	return Query{kind: kindSearch, field: field, value: term}
}

// OrderAsc sorts by field, oldest or smallest first.
func OrderAsc(field string) Query {
	return Query{kind: kindOrderAsc, field: field}
}

// OrderDesc sorts by field, newest or largest first.
func OrderDesc(field string) Query {
	return Query{kind: kindOrderDesc, field: field}
}

// Limit caps the number of returned documents.
func Limit(n int) Query {
	return Query{kind: kindLimit, n: n}
}

// CursorAfter continues a listing after the document with the given id.
func CursorAfter(id string) Query {
	return Query{kind: kindCursorAfter, value: id}
}

// String renders the clause for logs.
func (q Query) String() string {
	switch q.kind {
	case kindEqual:
		return fmt.Sprintf("equal(%s,%v)", q.field, q.value)
	case kindSearch:
		return fmt.Sprintf("search(%s,%v)", q.field, q.value)
	case kindOrderAsc:
		return fmt.Sprintf("orderAsc(%s)", q.field)
	case kindOrderDesc:
		return fmt.Sprintf("orderDesc(%s)", q.field)
	case kindLimit:
		return fmt.Sprintf("limit(%d)", q.n)
	case kindCursorAfter:
		return fmt.Sprintf("cursorAfter(%v)", q.value)
	}
	return "unknown"
}

// plan is a list call split into its filter, order and window clauses.
type plan struct {
	filters []Query
	orders  []Query
	limit   int
	cursor  string
}

func compile(queries []Query) (plan, error) {
	p := plan{limit: DefaultLimit}
	for _, q := range queries {
		switch q.kind {
		case kindEqual, kindSearch:
			if q.field == "" {
				return plan{}, fmt.Errorf("%w: empty field in %s", ErrInvalidQuery, q)
			}
			p.filters = append(p.filters, q)
		case kindOrderAsc, kindOrderDesc:
			p.orders = append(p.orders, q)
		case kindLimit:
			if q.n < 0 {
				return plan{}, fmt.Errorf("%w: negative limit", ErrInvalidQuery)
			}
			p.limit = q.n
		case kindCursorAfter:
			id, _ := q.value.(string)
			if id == "" {
				return plan{}, fmt.Errorf("%w: empty cursor", ErrInvalidQuery)
			}
			p.cursor = id
		}
	}
	return p, nil
}

// apply runs the plan over docs, which must be in the store's natural order.
func (p plan) apply(docs []Document) (DocumentList, error) {
	matched := make([]Document, 0, len(docs))
	for _, doc := range docs {
		if p.matches(doc) {
			matched = append(matched, doc)
		}
	}

	if len(p.orders) > 0 {
		slices.SortStableFunc(matched, func(a, b Document) int {
			for _, o := range p.orders {
				c := compareValues(a[o.field], b[o.field])
				if o.kind == kindOrderDesc {
					c = -c
				}
				if c != 0 {
					return c
				}
			}
			return 0
		})
	}

	total := len(matched)

	if p.cursor != "" {
		idx := slices.IndexFunc(matched, func(d Document) bool { return d.ID() == p.cursor })
		if idx < 0 {
			return DocumentList{}, fmt.Errorf("%w: cursor %q not found", ErrInvalidQuery, p.cursor)
		}
		matched = matched[idx+1:]
	}

	if p.limit < len(matched) {
		matched = matched[:p.limit]
	}

	return DocumentList{Documents: matched, Total: total}, nil
}

func (p plan) matches(doc Document) bool {
	for _, f := range p.filters {
		v, ok := doc[f.field]
		if !ok {
			return false
		}
		switch f.kind {
		case kindEqual:
			if !equalOrContains(v, f.value) {
				return false
			}
		case kindSearch:
			s, ok := v.(string)
			term, _ := f.value.(string)
			if !ok || !strings.Contains(strings.ToLower(s), strings.ToLower(term)) {
				return false
			}
		}
	}
	return true
}

func equalOrContains(v, want any) bool {
	switch list := v.(type) {
	case []string:
		for _, item := range list {
			if compareValues(item, want) == 0 {
				return true
			}
		}
		return false
	case []any:
		for _, item := range list {
			if compareValues(item, want) == 0 {
				return true
			}
		}
		return false
	}
	return compareValues(v, want) == 0
}

// compareValues orders nil first, then numbers, then strings, then anything
// else by its printed form.
func compareValues(a, b any) int {
	if a == nil || b == nil {
		switch {
		case a == nil && b == nil:
			return 0
		case a == nil:
			return -1
		default:
			return 1
		}
	}
	if af, ok := toFloat(a); ok {
		if bf, ok := toFloat(b); ok {
			switch {
			case af < bf:
				return -1
			case af > bf:
				return 1
			}
			return 0
		}
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}
