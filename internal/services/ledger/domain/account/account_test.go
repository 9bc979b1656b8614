package account

import (
	"errors"
	"sort"
	"testing"
)

func TestParseRoundTripsString(t *testing.T) {
	for _, id := range []ID{FromIndex(42), FromIndex(0)} {
		parsed, err := Parse(id.String())
		if err != nil {
			t.Fatalf("parse %s: %v", id, err)
		}
		if parsed != id {
			t.Fatalf("parsed = %x, want %x", parsed, id)
		}
	}
}

func TestParseRejectsInvalidInput(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  error
	}{
		{name: "empty", value: "  ", want: ErrEmpty},
		{name: "bad alphabet", value: "0OIl", want: ErrInvalid},
		{name: "short", value: "3mJr7AoUXx2Wqd", want: ErrInvalid},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse(tc.value)
			if !errors.Is(err, tc.want) {
				t.Fatalf("err = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestFromIndexIsDistinctAndOrdered(t *testing.T) {
	ids := []ID{FromIndex(3), FromIndex(1), FromIndex(2)}
	sort.Slice(ids, func(i, j int) bool { return ids[i].Compare(ids[j]) < 0 })
	for i, id := range ids {
		if id != FromIndex(uint64(i+1)) {
			t.Fatalf("ids[%d] = %s, want index %d", i, id, i+1)
		}
	}
	if FromIndex(0).IsZero() != true {
		t.Fatal("expected index zero to be the zero identity")
	}
	if FromIndex(1).IsZero() {
		t.Fatal("expected index one to be non-zero")
	}
}

func TestFromBytesRequiresFullIdentity(t *testing.T) {
	if _, err := FromBytes([]byte{1, 2, 3}); !errors.Is(err, ErrInvalid) {
		t.Fatalf("err = %v, want %v", err, ErrInvalid)
	}
	raw := FromIndex(7).Bytes()
	id, err := FromBytes(raw)
	if err != nil {
		t.Fatalf("from bytes: %v", err)
	}
	raw[Size-1] = 0
	if id != FromIndex(7) {
		t.Fatal("expected FromBytes to copy input")
	}
}

func TestTextMarshalling(t *testing.T) {
	want := FromIndex(9)
	text, err := want.MarshalText()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var got ID
	if err := got.UnmarshalText(text); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got != want {
		t.Fatalf("got %s, want %s", got, want)
	}
}
