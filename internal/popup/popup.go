// Package popup is the capture-and-display controller behind the TUI and the
// headless watch loop. While mounted it polls the system clipboard, submits
// anything new to the history service, and keeps a local newest-first copy of
// the history for display.
//
// The controller knows nothing about rendering. Frontends read Items or
// Filtered after every signal on Updates.
package popup

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"go.klb.dev/clipstash/internal/clip"
	"go.klb.dev/clipstash/internal/history"
	"go.klb.dev/clipstash/internal/message"
	"go.klb.dev/clipstash/internal/thumbnail"
)

// CopiedMessage is returned by a successful Copy.
const CopiedMessage = "Copied to clipboard!"

const (
	DefaultInterval = time.Second
	DefaultMinGap   = time.Second
)

// Service is the subset of the history client the controller drives.
type Service interface {
	Items(ctx context.Context) ([]history.Entry, error)
	Add(ctx context.Context, e history.Entry) error
	Delete(ctx context.Context, e history.Entry) error
	Opened(ctx context.Context) error
	Closed(ctx context.Context) error
	Connect(ctx context.Context, name string) (<-chan message.Change, error)
}

// Clipboard is the system clipboard. clip.Backend satisfies it.
type Clipboard interface {
	ReadText() (string, error)
	ReadImage() ([]byte, error)
	WriteText(text string) error
	WriteImage(png []byte) error
}

// State tracks the local cache's freshness.
type State int

const (
	StateLoading State = iota
	StateLoaded
	StateRefreshing
)

func (s State) String() string {
	switch s {
	case StateLoaded:
		return "loaded"
	case StateRefreshing:
		return "refreshing"
	default:
		return "loading"
	}
}

// Options configures a Controller. Zero values select the defaults.
type Options struct {
	// Interval is the poll tick.
	Interval time.Duration
	// MinGap is the minimum time between two clipboard checks.
	MinGap time.Duration
	// Capacity is shown in the item counter.
	Capacity int
	// Now is the clock; tests replace it.
	Now func() time.Time
}

func (o Options) withDefaults() Options {
	if o.Interval <= 0 {
		o.Interval = DefaultInterval
	}
	if o.MinGap <= 0 {
		o.MinGap = DefaultMinGap
	}
	if o.Capacity <= 0 {
		o.Capacity = history.DefaultCapacity
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// Controller is safe for concurrent use.
type Controller struct {
	svc  Service
	clip Clipboard
	opts Options

	mu        sync.Mutex
	items     []history.Entry
	state     State
	lastCheck time.Time
	cancel    context.CancelFunc

	pending sync.WaitGroup
	updates chan struct{}
}

// New returns an unmounted controller.
func New(svc Service, clip Clipboard, opts Options) *Controller {
	return &Controller{
		svc:     svc,
		clip:    clip,
		opts:    opts.withDefaults(),
		items:   []history.Entry{},
		updates: make(chan struct{}, 1),
	}
}

// Updates signals after every change to the local cache or state. Signals
// coalesce; receivers should re-read the controller.
func (c *Controller) Updates() <-chan struct{} { return c.updates }

// Capacity is the list bound shown in the counter.
func (c *Controller) Capacity() int { return c.opts.Capacity }

// Items returns a copy of the local cache, newest first.
func (c *Controller) Items() []history.Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]history.Entry, len(c.items))
	copy(out, c.items)
	return out
}

// Filtered returns the cached entries matching term.
func (c *Controller) Filtered(term string) []history.Entry {
	return history.Filter(c.Items(), term)
}

// State reports whether the first fetch has completed.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Run mounts the controller, polls every Interval until ctx is done, then
// unmounts.
func (c *Controller) Run(ctx context.Context) error {
	c.Mount(ctx)
	defer c.Unmount()

	t := time.NewTicker(c.opts.Interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			c.Check(ctx)
		}
	}
}

// Mount announces the popup, opens the liveness channel and loads the
// history. Failures are logged; the popup still works with whatever it has.
func (c *Controller) Mount(ctx context.Context) {
	if err := c.svc.Opened(ctx); err != nil {
		history.Report(err)
	}

	chCtx, cancel := context.WithCancel(ctx)
	c.mu.Lock()
	c.cancel = cancel
	c.mu.Unlock()

	changes, err := c.svc.Connect(chCtx, message.PopupChannel)
	if err != nil {
		history.Report(err)
	} else {
		go c.follow(chCtx, changes)
	}

	_ = c.Fetch(ctx)
}

// Unmount closes the liveness channel, tells the daemon the popup went
// away, and waits for outstanding deletes.
func (c *Controller) Unmount() {
	c.mu.Lock()
	cancel := c.cancel
	c.cancel = nil
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}

	ctx, done := context.WithTimeout(context.Background(), 2*time.Second)
	defer done()
	if err := c.svc.Closed(ctx); err != nil {
		history.Report(err)
	}
	c.pending.Wait()
}

func (c *Controller) follow(ctx context.Context, changes <-chan message.Change) {
	for ev := range changes {
		if ev.Key != history.StorageKey {
			continue
		}
		slog.Debug("history changed", "items", ev.Count)
		_ = c.Fetch(ctx)
	}
}

// Fetch replaces the local cache with the service's list. Loading ends
// either way; a failed fetch keeps whatever was cached, which is nothing on
// the first one.
func (c *Controller) Fetch(ctx context.Context) error {
	c.mu.Lock()
	if c.state == StateLoaded {
		c.state = StateRefreshing
	}
	c.mu.Unlock()
	c.notify()

	items, err := c.svc.Items(ctx)
	if err != nil {
		c.mu.Lock()
		c.state = StateLoaded
		c.mu.Unlock()
		c.notify()
		return history.Report(err)
	}
	history.SortNewestFirst(items)

	c.mu.Lock()
	c.items = items
	c.state = StateLoaded
	c.mu.Unlock()
	c.notify()
	return nil
}

// Check reads the clipboard once and submits new text and image content.
// It does nothing if the previous check was less than MinGap ago and
// reports whether it ran.
func (c *Controller) Check(ctx context.Context) bool {
	now := c.opts.Now()
	c.mu.Lock()
	if !c.lastCheck.IsZero() && now.Sub(c.lastCheck) < c.opts.MinGap {
		c.mu.Unlock()
		return false
	}
	c.lastCheck = now
	cached := c.items
	c.mu.Unlock()

	if text, err := c.clip.ReadText(); err != nil {
		readFailed("read text", err)
	} else if strings.TrimSpace(text) != "" && !history.Contains(cached, history.Text, text) {
		c.submit(ctx, history.NewText(text, now))
	}

	if png, err := c.clip.ReadImage(); err != nil {
		readFailed("read image", err)
	} else if len(png) > 0 {
		uri, err := thumbnail.Encode(png)
		if err != nil {
			history.Report(history.Fail(history.KindDecode, "thumbnail", err))
		} else if !history.Contains(cached, history.Image, uri) {
			c.submit(ctx, history.NewImage(uri, now))
		}
	}
	return true
}

// readFailed logs a clipboard read error. An empty clipboard is not one.
func readFailed(op string, err error) {
	if errors.Is(err, clip.ErrEmpty) {
		return
	}
	history.Report(history.Fail(history.KindClipboard, op, err))
}

func (c *Controller) submit(ctx context.Context, e history.Entry) {
	if err := c.svc.Add(ctx, e); err != nil {
		history.Report(err)
		return
	}
	history.LogEntry("captured", "popup", e)
	_ = c.Fetch(ctx)
}

// Delete drops e from the local cache at once and asks the service to
// delete it in the background. There is no rollback if that fails.
func (c *Controller) Delete(ctx context.Context, e history.Entry) {
	c.mu.Lock()
	for i, it := range c.items {
		if it.Matches(e.Timestamp, e.Kind, e.Content) {
			c.items = append(c.items[:i:i], c.items[i+1:]...)
			break
		}
	}
	c.mu.Unlock()
	c.notify()

	c.pending.Add(1)
	go func() {
		defer c.pending.Done()
		if err := c.svc.Delete(context.WithoutCancel(ctx), e); err != nil {
			history.Report(err)
		}
	}()
}

// Wait blocks until background deletes have finished.
func (c *Controller) Wait() { c.pending.Wait() }

// Copy puts e back on the system clipboard and returns the confirmation
// text. Image entries are written as PNG.
func (c *Controller) Copy(e history.Entry) (string, error) {
	var err error
	switch e.Kind {
	case history.Text:
		err = c.clip.WriteText(e.Content)
	case history.Image:
		var png []byte
		if png, err = thumbnail.ToPNG(e.Content); err == nil {
			err = c.clip.WriteImage(png)
		}
	default:
		err = errors.New("unknown entry type " + string(e.Kind))
	}
	if err != nil {
		return "", history.Report(history.Fail(history.KindClipboard, "copy", err))
	}
	return CopiedMessage, nil
}

func (c *Controller) notify() {
	select {
	case c.updates <- struct{}{}:
	default:
	}
}
