package popup

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"go.klb.dev/clipstash/internal/clip"
	"go.klb.dev/clipstash/internal/history"
	"go.klb.dev/clipstash/internal/message"
	"go.klb.dev/clipstash/internal/storage"
)

// fakeService is a Service over a real in-memory history store.
type fakeService struct {
	store *history.Store

	mu        sync.Mutex
	adds      int
	opened    int
	closed    int
	addErr    error
	itemsErr  error
	deleteHit chan struct{} // when set, Delete waits for a receive
	changes   chan message.Change
	connected context.Context
}

func newFakeService(t *testing.T) *fakeService {
	t.Helper()
	s, err := history.Open(context.Background(), storage.NewMemory(), history.Options{})
	if err != nil {
		t.Fatal(err)
	}
	return &fakeService{store: s}
}

func (f *fakeService) Items(ctx context.Context) ([]history.Entry, error) {
	f.mu.Lock()
	err := f.itemsErr
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return f.store.Get(ctx), nil
}

func (f *fakeService) Add(ctx context.Context, e history.Entry) error {
	f.mu.Lock()
	f.adds++
	err := f.addErr
	f.mu.Unlock()
	if err != nil {
		return err
	}
	f.store.Add(ctx, e)
	return nil
}

func (f *fakeService) Delete(ctx context.Context, e history.Entry) error {
	f.mu.Lock()
	gate := f.deleteHit
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}
	f.store.Delete(ctx, e.Timestamp, e.Kind, e.Content)
	return nil
}

func (f *fakeService) Opened(context.Context) error {
	f.mu.Lock()
	f.opened++
	f.mu.Unlock()
	return nil
}

func (f *fakeService) Closed(context.Context) error {
	f.mu.Lock()
	f.closed++
	f.mu.Unlock()
	return nil
}

func (f *fakeService) Connect(ctx context.Context, name string) (<-chan message.Change, error) {
	if name != message.PopupChannel {
		return nil, errors.New("unexpected channel " + name)
	}
	ch := make(chan message.Change, 4)
	f.mu.Lock()
	f.changes = ch
	f.connected = ctx
	f.mu.Unlock()
	return ch, nil
}

func (f *fakeService) addCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.adds
}

// clock is a manually advanced time source.
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func setup(t *testing.T) (*Controller, *fakeService, *clip.Memory, *clock) {
	t.Helper()
	svc := newFakeService(t)
	cb := &clip.Memory{}
	clk := &clock{now: time.UnixMilli(1_700_000_000_000)}
	return New(svc, cb, Options{Now: clk.Now}), svc, cb, clk
}

func testPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h))); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestCheckCapturesText(t *testing.T) {
	ctx := context.Background()
	c, svc, cb, _ := setup(t)
	_ = cb.WriteText("hello")

	if !c.Check(ctx) {
		t.Fatal("first Check skipped")
	}
	items := c.Items()
	if len(items) != 1 || items[0].Kind != history.Text || items[0].Content != "hello" {
		t.Fatalf("Items after capture = %+v", items)
	}
	if svc.store.Len() != 1 {
		t.Errorf("store Len = %d, want 1", svc.store.Len())
	}
	if c.State() != StateLoaded {
		t.Errorf("State = %v, want loaded (re-fetched after add)", c.State())
	}
}

func TestCheckSkipsBlankText(t *testing.T) {
	for _, s := range []string{" ", "\n\t ", ""} {
		c, svc, cb, _ := setup(t)
		_ = cb.WriteText(s)
		c.Check(context.Background())
		if n := svc.addCount(); n != 0 {
			t.Errorf("text %q: %d adds, want 0", s, n)
		}
	}
}

func TestCheckRateLimit(t *testing.T) {
	ctx := context.Background()
	c, svc, cb, clk := setup(t)

	_ = cb.WriteText("one")
	if !c.Check(ctx) {
		t.Fatal("first Check skipped")
	}

	_ = cb.WriteText("two")
	clk.Advance(500 * time.Millisecond)
	if c.Check(ctx) {
		t.Error("Check ran 500ms after the previous one")
	}
	if n := svc.addCount(); n != 1 {
		t.Errorf("adds = %d, want 1", n)
	}

	clk.Advance(500 * time.Millisecond)
	if !c.Check(ctx) {
		t.Error("Check skipped a full second after the previous one")
	}
	if n := svc.addCount(); n != 2 {
		t.Errorf("adds = %d, want 2", n)
	}
}

func TestCheckDoesNotResubmitCachedContent(t *testing.T) {
	ctx := context.Background()
	c, svc, cb, clk := setup(t)
	_ = cb.WriteText("same")

	for range 3 {
		c.Check(ctx)
		clk.Advance(time.Second)
	}
	if n := svc.addCount(); n != 1 {
		t.Errorf("adds = %d, want 1", n)
	}
}

func TestCheckCapturesImageThumbnail(t *testing.T) {
	ctx := context.Background()
	c, svc, cb, clk := setup(t)
	_ = cb.WriteImage(testPNG(t, 240, 120))

	c.Check(ctx)
	items := c.Items()
	if len(items) != 1 || items[0].Kind != history.Image {
		t.Fatalf("Items = %+v, want one image", items)
	}
	if !strings.HasPrefix(items[0].Content, "data:image/jpeg;base64,") {
		t.Errorf("image content = %.40q, want JPEG data URI", items[0].Content)
	}

	clk.Advance(time.Second)
	c.Check(ctx)
	if n := svc.addCount(); n != 1 {
		t.Errorf("same image submitted %d times, want 1", n)
	}
}

func TestCheckSwallowsClipboardErrors(t *testing.T) {
	c, svc, cb, _ := setup(t)
	cb.Fail(errors.New("document is not focused"))

	if !c.Check(context.Background()) {
		t.Error("Check reported skipped on a read error")
	}
	if n := svc.addCount(); n != 0 {
		t.Errorf("adds = %d, want 0", n)
	}
}

func TestCheckAddFailureKeepsCache(t *testing.T) {
	c, svc, cb, _ := setup(t)
	svc.addErr = history.Fail(history.KindTransport, "addClipboardItem", errors.New("daemon gone"))
	_ = cb.WriteText("lost")

	c.Check(context.Background())
	if len(c.Items()) != 0 {
		t.Errorf("Items = %+v, want empty after failed add", c.Items())
	}
}

func TestFetchStates(t *testing.T) {
	ctx := context.Background()
	c, svc, _, _ := setup(t)
	if c.State() != StateLoading {
		t.Fatalf("initial State = %v, want loading", c.State())
	}

	svc.store.Add(ctx, history.Entry{Kind: history.Text, Content: "old", Timestamp: 1})
	svc.store.Add(ctx, history.Entry{Kind: history.Text, Content: "new", Timestamp: 2})
	if err := c.Fetch(ctx); err != nil {
		t.Fatal(err)
	}
	if c.State() != StateLoaded {
		t.Errorf("State = %v, want loaded", c.State())
	}
	if got := c.Items(); got[0].Content != "new" {
		t.Errorf("Items not newest first: %+v", got)
	}

	svc.itemsErr = errors.New("unreachable")
	if err := c.Fetch(ctx); err == nil {
		t.Fatal("Fetch succeeded with a failing service")
	}
	if c.State() != StateLoaded || len(c.Items()) != 2 {
		t.Errorf("failed Fetch changed state %v / items %d", c.State(), len(c.Items()))
	}
}

func TestFailedFirstFetchEndsLoading(t *testing.T) {
	c, svc, _, _ := setup(t)
	svc.itemsErr = errors.New("daemon unreachable")

	if err := c.Fetch(context.Background()); err == nil {
		t.Fatal("Fetch succeeded with a failing service")
	}
	if c.State() != StateLoaded {
		t.Errorf("State after failed first fetch = %v, want loaded", c.State())
	}
	if items := c.Items(); items == nil || len(items) != 0 {
		t.Errorf("Items = %#v, want empty", items)
	}
}

func TestDeleteIsOptimistic(t *testing.T) {
	ctx := context.Background()
	c, svc, _, _ := setup(t)
	a := history.Entry{Kind: history.Text, Content: "a", Timestamp: 1}
	b := history.Entry{Kind: history.Text, Content: "b", Timestamp: 2}
	svc.store.Add(ctx, a)
	svc.store.Add(ctx, b)
	_ = c.Fetch(ctx)

	gate := make(chan struct{})
	svc.deleteHit = gate
	c.Delete(ctx, a)

	if diff := cmp.Diff([]history.Entry{b}, c.Items()); diff != "" {
		t.Errorf("local cache right after Delete (-want +got):\n%s", diff)
	}
	if svc.store.Len() != 2 {
		t.Errorf("store already changed before the async delete ran")
	}

	close(gate)
	c.Wait()
	if diff := cmp.Diff([]history.Entry{b}, svc.store.Get(ctx)); diff != "" {
		t.Errorf("store after delete (-want +got):\n%s", diff)
	}
}

func TestCopy(t *testing.T) {
	c, _, cb, _ := setup(t)

	msg, err := c.Copy(history.Entry{Kind: history.Text, Content: "back again", Timestamp: 1})
	if err != nil || msg != CopiedMessage {
		t.Fatalf("Copy text = %q, %v", msg, err)
	}
	if got, _ := cb.ReadText(); got != "back again" {
		t.Errorf("clipboard text = %q", got)
	}

	c2, svc, cb2, _ := setup(t)
	_ = cb2.WriteImage(testPNG(t, 30, 20))
	c2.Check(context.Background())
	img := svc.store.Get(context.Background())[0]
	_ = cb2.WriteText("something else")

	if _, err := c2.Copy(img); err != nil {
		t.Fatal(err)
	}
	raw, err := cb2.ReadImage()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := png.Decode(bytes.NewReader(raw)); err != nil {
		t.Errorf("clipboard image is not a PNG: %v", err)
	}
}

func TestCopyBadImage(t *testing.T) {
	c, _, _, _ := setup(t)
	_, err := c.Copy(history.Entry{Kind: history.Image, Content: "not a data uri", Timestamp: 1})
	if history.KindOf(err) != history.KindClipboard {
		t.Errorf("Copy error kind = %q, want %q", history.KindOf(err), history.KindClipboard)
	}
}

func TestMountUnmount(t *testing.T) {
	ctx := context.Background()
	c, svc, _, _ := setup(t)
	svc.store.Add(ctx, history.Entry{Kind: history.Text, Content: "preexisting", Timestamp: 1})

	c.Mount(ctx)
	if svc.opened != 1 {
		t.Errorf("popupOpened sent %d times, want 1", svc.opened)
	}
	if len(c.Items()) != 1 {
		t.Errorf("Mount did not fetch: %+v", c.Items())
	}

	// A change pushed down the channel triggers a re-fetch.
	svc.store.Add(ctx, history.Entry{Kind: history.Text, Content: "from elsewhere", Timestamp: 2})
	svc.changes <- message.Change{Key: history.StorageKey, Count: 2}
	deadline := time.Now().Add(2 * time.Second)
	for len(c.Items()) != 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if len(c.Items()) != 2 {
		t.Errorf("change event did not trigger a fetch")
	}

	c.Unmount()
	if svc.closed != 1 {
		t.Errorf("popupClosed sent %d times, want 1", svc.closed)
	}
	if svc.connected.Err() == nil {
		t.Error("channel context still live after Unmount")
	}
	close(svc.changes)
}

func TestRunStopsWithContext(t *testing.T) {
	c, svc, cb, _ := setup(t)
	c.opts.Now = time.Now
	c.opts.Interval = 10 * time.Millisecond
	c.opts.MinGap = time.Millisecond
	_ = cb.WriteText("captured by the loop")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for svc.addCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatal(err)
	}
	if svc.addCount() != 1 {
		t.Errorf("adds = %d, want 1", svc.addCount())
	}
	if svc.closed != 1 {
		t.Errorf("Run did not unmount")
	}
}

func TestFiltered(t *testing.T) {
	ctx := context.Background()
	c, svc, _, _ := setup(t)
	for _, e := range []history.Entry{
		{Kind: history.Text, Content: "Hello", Timestamp: 1},
		{Kind: history.Image, Content: "data:image/jpeg;base64,AA", Timestamp: 2},
		{Kind: history.Text, Content: "bye", Timestamp: 3},
	} {
		svc.store.Add(ctx, e)
	}
	_ = c.Fetch(ctx)

	if n := len(c.Filtered("")); n != 3 {
		t.Errorf("Filtered(\"\") = %d entries, want 3", n)
	}
	got := c.Filtered("hel")
	if len(got) != 1 || got[0].Content != "Hello" {
		t.Errorf("Filtered(\"hel\") = %+v", got)
	}
}
