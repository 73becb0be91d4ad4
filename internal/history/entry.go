package history

import (
	"slices"
	"strings"
	"time"
)

// Kind identifies what an entry's Content holds.
type Kind string

const (
	// Text entries hold the clipboard text verbatim.
	Text Kind = "text"
	// Image entries hold a data URI of a compressed JPEG thumbnail.
	Image Kind = "image"
)

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool { return k == Text || k == Image }

// Entry is one captured clipboard snapshot. The JSON form is the one used on
// the wire and at rest: {"type":"text","content":"...","timestamp":<ms>}.
type Entry struct {
	Kind      Kind   `json:"type"`
	Content   string `json:"content"`
	Timestamp int64  `json:"timestamp"` // milliseconds since the Unix epoch
}

// NewText returns a text entry captured at t.
func NewText(text string, t time.Time) Entry {
	return Entry{Kind: Text, Content: text, Timestamp: t.UnixMilli()}
}

// NewImage returns an image entry for a thumbnail data URI captured at t.
func NewImage(dataURI string, t time.Time) Entry {
	return Entry{Kind: Image, Content: dataURI, Timestamp: t.UnixMilli()}
}

// CapturedAt returns the capture time.
func (e Entry) CapturedAt() time.Time { return time.UnixMilli(e.Timestamp) }

// SameContent reports whether e and o share the dedup key (kind, content).
func (e Entry) SameContent(o Entry) bool {
	return e.Kind == o.Kind && e.Content == o.Content
}

// Matches reports whether e is exactly the (timestamp, kind, content) triple.
func (e Entry) Matches(timestamp int64, kind Kind, content string) bool {
	return e.Timestamp == timestamp && e.Kind == kind && e.Content == content
}

// Contains reports whether any entry in list has the given dedup key.
func Contains(list []Entry, kind Kind, content string) bool {
	return slices.ContainsFunc(list, func(e Entry) bool {
		return e.Kind == kind && e.Content == content
	})
}

// SortNewestFirst orders list by descending timestamp. Ties keep their order.
func SortNewestFirst(list []Entry) {
	slices.SortStableFunc(list, func(a, b Entry) int {
		switch {
		case a.Timestamp > b.Timestamp:
			return -1
		case a.Timestamp < b.Timestamp:
			return 1
		}
		return 0
	})
}

// Filter returns the entries visible for a search term. Text entries match on
// a case-insensitive substring; image entries are only shown when term is
// empty, so any search hides every image.
func Filter(list []Entry, term string) []Entry {
	needle := strings.ToLower(term)
	out := make([]Entry, 0, len(list))
	for _, e := range list {
		switch e.Kind {
		case Text:
			if strings.Contains(strings.ToLower(e.Content), needle) {
				out = append(out, e)
			}
		default:
			if term == "" {
				out = append(out, e)
			}
		}
	}
	return out
}
