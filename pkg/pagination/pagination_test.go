package pagination

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestNormalizeLimit(t *testing.T) {
	cases := map[int]int{-1: DefaultLimit, 0: DefaultLimit, 10: 10, MaxLimit + 50: MaxLimit}
	for in, want := range cases {
		if got := NormalizeLimit(in); got != want {
			t.Fatalf("NormalizeLimit(%d) = %d, want %d", in, got, want)
		}
	}
	if LimitWithBuffer(10) != 11 {
		t.Fatalf("expected buffer of one row")
	}
}

func TestCursorRoundTrip(t *testing.T) {
	want := Cursor{CreatedAt: time.Date(2026, 3, 1, 12, 0, 0, 123456789, time.UTC), ID: uuid.New()}
	token := EncodeCursor(want)

	got, err := ParseCursor(token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !got.CreatedAt.Equal(want.CreatedAt) || got.ID != want.ID {
		t.Fatalf("round trip mismatch: %+v vs %+v", got, want)
	}
}

func TestParseCursorEmptyIsFirstPage(t *testing.T) {
	got, err := ParseCursor("  ")
	if err != nil || got != nil {
		t.Fatalf("expected nil cursor, got %+v (%v)", got, err)
	}
}

func TestParseCursorRejectsGarbage(t *testing.T) {
	for _, token := range []string{"%%%", "bm8tc2VwYXJhdG9y", EncodeCursor(Cursor{})[:4]} {
		if _, err := ParseCursor(token); !errors.Is(err, ErrInvalidCursor) {
			t.Fatalf("token %q: expected ErrInvalidCursor, got %v", token, err)
		}
	}
}

func TestTrim(t *testing.T) {
	ids := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}
	key := func(id uuid.UUID) Cursor { return Cursor{ID: id} }

	page, next := Trim(ids, 2, key)
	if len(page) != 2 || next == nil || next.ID != ids[1] {
		t.Fatalf("expected two rows and cursor at second, got %d %+v", len(page), next)
	}
	page, next = Trim(ids[:2], 2, key)
	if len(page) != 2 || next != nil {
		t.Fatalf("expected last page without cursor")
	}
}
