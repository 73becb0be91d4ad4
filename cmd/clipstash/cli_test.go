package main

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"

	"go.klb.dev/clipstash/internal/history"
	"go.klb.dev/clipstash/internal/message"
)

func TestParseOutputFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    outputFormat
		wantErr bool
	}{
		{"", formatTable, false},
		{"table", formatTable, false},
		{"JSON", formatJSON, false},
		{"yaml", formatYAML, false},
		{"csv", "", true},
	}
	for _, tt := range tests {
		got, err := parseOutputFormat(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("parseOutputFormat(%q) = %q, %v", tt.in, got, err)
		}
	}
}

func TestWriteStructuredYAML(t *testing.T) {
	var buf bytes.Buffer
	err := writeStructured(&buf, formatYAML, []listedEntry{{Index: 1, Type: "text", Timestamp: 5, Content: "hi"}})
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"index: 1", "type: text", "content: hi"} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("yaml output missing %q:\n%s", want, buf.String())
		}
	}
}

func TestClientTarget(t *testing.T) {
	tests := map[string]string{
		"0.0.0.0:8752":   "localhost:8752",
		":8752":          "localhost:8752",
		"[::]:8752":      "localhost:8752",
		"10.0.0.2:9000":  "10.0.0.2:9000",
		"not-an-address": "not-an-address",
	}
	for in, want := range tests {
		if got := clientTarget(in); got != want {
			t.Errorf("clientTarget(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestIsContainerID(t *testing.T) {
	tests := map[string]bool{
		"3f4e5d6c7b8a":  true,
		"3F4E5D6C7B8A":  false,
		"laptop":        false,
		"3f4e5d6c7b8ag": false,
	}
	for in, want := range tests {
		if got := isContainerID(in); got != want {
			t.Errorf("isContainerID(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestEntryFromInput(t *testing.T) {
	now := time.UnixMilli(1_700_000_000_000)

	e, err := entryFromInput(strings.NewReader("ignored"), []string{"hello", "world"}, "", now)
	if err != nil || e.Kind != history.Text || e.Content != "hello world" || e.Timestamp != now.UnixMilli() {
		t.Errorf("args entry = %+v, %v", e, err)
	}

	e, err = entryFromInput(strings.NewReader("from stdin\n"), nil, "", now)
	if err != nil || e.Content != "from stdin\n" {
		t.Errorf("stdin entry = %+v, %v", e, err)
	}

	if _, err := entryFromInput(strings.NewReader("  \n"), nil, "", now); err == nil {
		t.Error("blank input accepted")
	}

	path := filepath.Join(t.TempDir(), "shot.png")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := png.Encode(f, image.NewRGBA(image.Rect(0, 0, 8, 8))); err != nil {
		t.Fatal(err)
	}
	f.Close()

	e, err = entryFromInput(nil, nil, path, now)
	if err != nil || e.Kind != history.Image || !strings.HasPrefix(e.Content, "data:image/jpeg;base64,") {
		t.Errorf("image entry kind %q, err %v", e.Kind, err)
	}
	if _, err := entryFromInput(nil, []string{"x"}, path, now); err == nil {
		t.Error("--image with text arguments accepted")
	}
}

func TestPrintList(t *testing.T) {
	color.NoColor = true
	now := time.UnixMilli(1_700_000_000_000)
	items := []history.Entry{
		history.NewText("line one\nline two", now.Add(-90*time.Second)),
		{Kind: history.Image, Content: "data:image/jpeg;base64,!!", Timestamp: now.Add(-2 * time.Hour).UnixMilli()},
	}

	var buf bytes.Buffer
	printList(&buf, items, 4, 50, now)
	out := buf.String()
	for _, want := range []string{"(4/50 items)", "line one line two", "1m ago", "2h ago", "[image,"} {
		if !strings.Contains(out, want) {
			t.Errorf("list output missing %q:\n%s", want, out)
		}
	}

	buf.Reset()
	printList(&buf, nil, 4, 50, now)
	if !strings.Contains(buf.String(), "No matching clipboard items found.") {
		t.Errorf("empty list output:\n%s", buf.String())
	}
}

func TestPreviewTruncates(t *testing.T) {
	got := preview(history.Entry{Kind: history.Text, Content: strings.Repeat("é", 100)}, 10)
	if got != strings.Repeat("é", 7)+"..." {
		t.Errorf("preview = %q", got)
	}
}

func TestPrintStatus(t *testing.T) {
	var buf bytes.Buffer
	printStatus(&buf, &message.StatusInfo{PopupOpen: true, Items: 3, Capacity: 50, Peers: []message.PeerInfo{
		{Name: message.PopupChannel, Source: "laptop", Addr: "@", ConnectedAt: time.Now()},
	}}, "ipc (/run/c.sock)")
	out := buf.String()
	for _, want := range []string{"ipc (/run/c.sock)", "open", "3/50", "NAME", "laptop"} {
		if !strings.Contains(out, want) {
			t.Errorf("status output missing %q:\n%s", want, out)
		}
	}

	buf.Reset()
	printStatus(&buf, &message.StatusInfo{Capacity: 50}, "tcp")
	if !strings.Contains(buf.String(), "No channels connected.") {
		t.Errorf("status output:\n%s", buf.String())
	}
}

type fixedStatus struct {
	st  *message.StatusInfo
	err error
}

func (f fixedStatus) Status(context.Context) (*message.StatusInfo, error) { return f.st, f.err }

func TestDaemonCapacity(t *testing.T) {
	tests := []struct {
		name string
		src  fixedStatus
		want int
	}{
		{"daemon value", fixedStatus{st: &message.StatusInfo{Capacity: 100}}, 100},
		{"unreachable", fixedStatus{err: errors.New("no daemon")}, history.DefaultCapacity},
		{"unset", fixedStatus{st: &message.StatusInfo{}}, history.DefaultCapacity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := daemonCapacity(context.Background(), tt.src); got != tt.want {
				t.Errorf("daemonCapacity = %d, want %d", got, tt.want)
			}
		})
	}
}
