// Package pager decides when the next page of channel results is fetched. It
// holds the pagination cursor value type and the state machine that combines
// pagination requests with the connectivity signal.
package pager

import "sort"

// DirectiveKind identifies a pagination directive. A cursor holds at most one
// directive per kind; the kind doubles as the flat wire key.
type DirectiveKind string

const (
	KindLimit                DirectiveKind = "limit"
	KindOffset               DirectiveKind = "offset"
	KindIDGreaterThan        DirectiveKind = "id_gt"
	KindIDGreaterThanOrEqual DirectiveKind = "id_gte"
	KindIDLessThan           DirectiveKind = "id_lt"
	KindIDLessThanOrEqual    DirectiveKind = "id_lte"
)

// Directive is a single pagination instruction.
type Directive struct {
	Kind DirectiveKind
	// Int carries the value for limit and offset directives.
	Int int
	// ID carries the value for id comparison directives.
	ID string
}

// Limit builds a page-size directive.
func Limit(n int) Directive {
	return Directive{Kind: KindLimit, Int: n}
}

// Offset builds an offset directive.
func Offset(n int) Directive {
	return Directive{Kind: KindOffset, Int: n}
}

// IDGreaterThan builds an exclusive lower-bound directive.
func IDGreaterThan(id string) Directive {
	return Directive{Kind: KindIDGreaterThan, ID: id}
}

// IDGreaterThanOrEqual builds an inclusive lower-bound directive.
func IDGreaterThanOrEqual(id string) Directive {
	return Directive{Kind: KindIDGreaterThanOrEqual, ID: id}
}

// IDLessThan builds an exclusive upper-bound directive.
func IDLessThan(id string) Directive {
	return Directive{Kind: KindIDLessThan, ID: id}
}

// IDLessThanOrEqual builds an inclusive upper-bound directive.
func IDLessThanOrEqual(id string) Directive {
	return Directive{Kind: KindIDLessThanOrEqual, ID: id}
}

// Cursor is an immutable set of pagination directives keyed by kind.
type Cursor struct {
	directives map[DirectiveKind]Directive
}

// NewCursor builds a cursor from directives. When the same kind appears more
// than once the later directive wins.
func NewCursor(directives ...Directive) Cursor {
	byKind := make(map[DirectiveKind]Directive, len(directives))
	for _, directive := range directives {
		byKind[directive.Kind] = directive
	}
	return Cursor{directives: byKind}
}

// With returns a copy of the cursor with the directive set, replacing any
// existing directive of the same kind.
func (c Cursor) With(directive Directive) Cursor {
	merged := make(map[DirectiveKind]Directive, len(c.directives)+1)
	for kind, existing := range c.directives {
		merged[kind] = existing
	}
	merged[directive.Kind] = directive
	return Cursor{directives: merged}
}

// Merge returns the overwrite-union of the two cursors: other's directives
// replace this cursor's directives of the same kind.
func (c Cursor) Merge(other Cursor) Cursor {
	merged := make(map[DirectiveKind]Directive, len(c.directives)+len(other.directives))
	for kind, directive := range c.directives {
		merged[kind] = directive
	}
	for kind, directive := range other.directives {
		merged[kind] = directive
	}
	return Cursor{directives: merged}
}

// Limit returns the limit directive's value when present.
func (c Cursor) Limit() (int, bool) {
	directive, ok := c.directives[KindLimit]
	if !ok {
		return 0, false
	}
	return directive.Int, true
}

// Offset returns the offset directive's value when present.
func (c Cursor) Offset() (int, bool) {
	directive, ok := c.directives[KindOffset]
	if !ok {
		return 0, false
	}
	return directive.Int, true
}

// Equal reports whether the two cursors hold exactly the same directives,
// order-independent.
func (c Cursor) Equal(other Cursor) bool {
	if len(c.directives) != len(other.directives) {
		return false
	}
	for kind, directive := range c.directives {
		counterpart, ok := other.directives[kind]
		if !ok || counterpart != directive {
			return false
		}
	}
	return true
}

// Directives lists the present directives in a stable order.
func (c Cursor) Directives() []Directive {
	listed := make([]Directive, 0, len(c.directives))
	for _, directive := range c.directives {
		listed = append(listed, directive)
	}
	sort.Slice(listed, func(i, j int) bool {
		return listed[i].Kind < listed[j].Kind
	})
	return listed
}

// Parameters encodes the cursor as flat wire key-value pairs for merging into
// a request's parameter set.
func (c Cursor) Parameters() map[string]any {
	parameters := make(map[string]any, len(c.directives))
	for kind, directive := range c.directives {
		switch kind {
		case KindLimit, KindOffset:
			parameters[string(kind)] = directive.Int
		default:
			parameters[string(kind)] = directive.ID
		}
	}
	return parameters
}
