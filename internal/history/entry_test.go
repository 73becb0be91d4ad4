package history

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestFilter(t *testing.T) {
	img := Entry{Kind: Image, Content: "data:image/jpeg;base64,AA", Timestamp: 4}
	list := []Entry{
		text("Hello World", 5),
		img,
		text("say hello", 3),
		text("goodbye", 1),
	}

	tests := []struct {
		name string
		term string
		want []Entry
	}{
		{"empty term shows everything", "", list},
		{"case-insensitive substring", "HELLO", []Entry{text("Hello World", 5), text("say hello", 3)}},
		{"any term hides images", "data", []Entry{}},
		{"no match", "zzz", []Entry{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, Filter(list, tt.term)); diff != "" {
				t.Errorf("Filter(%q) (-want +got):\n%s", tt.term, diff)
			}
		})
	}
}

func TestSortNewestFirst(t *testing.T) {
	list := []Entry{text("a", 1), text("c", 3), text("b1", 2), text("b2", 2)}
	SortNewestFirst(list)
	want := []Entry{text("c", 3), text("b1", 2), text("b2", 2), text("a", 1)}
	if diff := cmp.Diff(want, list); diff != "" {
		t.Errorf("SortNewestFirst (-want +got):\n%s", diff)
	}
}

func TestContains(t *testing.T) {
	list := []Entry{text("x", 1), {Kind: Image, Content: "y", Timestamp: 2}}
	tests := []struct {
		kind    Kind
		content string
		want    bool
	}{
		{Text, "x", true},
		{Image, "x", false},
		{Image, "y", true},
		{Text, "z", false},
	}
	for _, tt := range tests {
		if got := Contains(list, tt.kind, tt.content); got != tt.want {
			t.Errorf("Contains(%s, %q) = %v, want %v", tt.kind, tt.content, got, tt.want)
		}
	}
}

func TestEntryJSONShape(t *testing.T) {
	raw, err := json.Marshal(text("hi", 1700000000000))
	if err != nil {
		t.Fatal(err)
	}
	const want = `{"type":"text","content":"hi","timestamp":1700000000000}`
	if string(raw) != want {
		t.Errorf("json = %s, want %s", raw, want)
	}
}

func TestErrorKinds(t *testing.T) {
	base := errors.New("underlying")
	err := fmt.Errorf("outer: %w", Fail(KindQuota, "persist", base))

	if KindOf(err) != KindQuota {
		t.Errorf("KindOf = %q, want %q", KindOf(err), KindQuota)
	}
	if !errors.Is(err, base) {
		t.Error("errors.Is does not reach the wrapped error")
	}
	if KindOf(base) != "" {
		t.Errorf("KindOf(plain error) = %q, want empty", KindOf(base))
	}
	if Report(err) != err {
		t.Error("Report did not return its argument")
	}
	if Report(nil) != nil {
		t.Error("Report(nil) != nil")
	}
}
