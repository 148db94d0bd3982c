package pager

import (
	"reflect"
	"testing"
)

func TestCursorUnionAndEquality(t *testing.T) {
	limitOnly := NewCursor(Limit(20))
	combined := limitOnly.Merge(NewCursor(Offset(10)))

	expected := map[string]any{"limit": 20, "offset": 10}
	if !reflect.DeepEqual(combined.Parameters(), expected) {
		t.Fatalf("unexpected parameters %v", combined.Parameters())
	}
	if combined.Equal(limitOnly) {
		t.Fatalf("cursor with offset must not equal limit-only cursor")
	}
	if !combined.Equal(NewCursor(Offset(10), Limit(20))) {
		t.Fatalf("cursor equality must be order-independent")
	}
}

func TestCursorHoldsAtMostOneDirectivePerKind(t *testing.T) {
	cursor := NewCursor(Limit(20)).With(Limit(50))
	limit, ok := cursor.Limit()
	if !ok || limit != 50 {
		t.Fatalf("expected replacing limit directive, got %d (present=%v)", limit, ok)
	}
	if len(cursor.Directives()) != 1 {
		t.Fatalf("expected a single directive, got %v", cursor.Directives())
	}

	merged := NewCursor(Limit(20), Offset(5)).Merge(NewCursor(Limit(30)))
	limit, _ = merged.Limit()
	offset, _ := merged.Offset()
	if limit != 30 || offset != 5 {
		t.Fatalf("overwrite-union produced limit=%d offset=%d", limit, offset)
	}
}

func TestCursorAccessorsReportAbsence(t *testing.T) {
	cursor := NewCursor(IDGreaterThan("m41"))
	if _, ok := cursor.Limit(); ok {
		t.Fatalf("limit accessor must report absence")
	}
	if _, ok := cursor.Offset(); ok {
		t.Fatalf("offset accessor must report absence")
	}
}

func TestCursorParametersWireKeys(t *testing.T) {
	cursor := NewCursor(
		Limit(25),
		Offset(50),
		IDGreaterThan("a"),
		IDGreaterThanOrEqual("b"),
		IDLessThan("c"),
		IDLessThanOrEqual("d"),
	)
	expected := map[string]any{
		"limit":  25,
		"offset": 50,
		"id_gt":  "a",
		"id_gte": "b",
		"id_lt":  "c",
		"id_lte": "d",
	}
	if !reflect.DeepEqual(cursor.Parameters(), expected) {
		t.Fatalf("unexpected wire encoding %v", cursor.Parameters())
	}
}

func TestEmptyCursorBehaves(t *testing.T) {
	var empty Cursor
	if !empty.Equal(NewCursor()) {
		t.Fatalf("zero cursor must equal empty constructed cursor")
	}
	if len(empty.Parameters()) != 0 {
		t.Fatalf("empty cursor must encode no parameters")
	}
	extended := empty.With(Limit(10))
	if limit, ok := extended.Limit(); !ok || limit != 10 {
		t.Fatalf("extending the zero cursor failed")
	}
}
