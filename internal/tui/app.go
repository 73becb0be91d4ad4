// Package tui renders the popup controller as a terminal UI.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"go.klb.dev/clipstash/internal/history"
	"go.klb.dev/clipstash/internal/popup"
	"go.klb.dev/clipstash/internal/thumbnail"
)

const (
	emptySearch  = "No matching clipboard items found."
	emptyHistory = "Your clipboard history will appear here. Copy something while this popup is open to see it here."
	monitorNote  = "Note: clipboard monitoring only works while this popup is open."

	flashFor = 2 * time.Second
)

type mode int

const (
	modeList mode = iota
	modeSearch
)

type (
	updatedMsg struct{}
	tickMsg    time.Time
	copiedMsg  struct {
		text string
		err  error
	}
	clearFlashMsg struct{ id int }
)

type Model struct {
	ctx  context.Context
	ctrl *popup.Controller

	all      []history.Entry
	filtered []history.Entry
	state    popup.State
	dims     map[string]string // image content -> "WxH"

	cursor int
	offset int
	width  int
	height int

	mode       mode
	search     textinput.Model
	noteHidden bool
	flash      string
	flashID    int

	now func() time.Time
}

// New returns a model over ctrl. The controller must be running (or about
// to be) under ctx; the model only reads it and issues user actions.
func New(ctx context.Context, ctrl *popup.Controller) Model {
	si := textinput.New()
	si.Placeholder = "Search clipboard..."
	si.CharLimit = 200

	m := Model{
		ctx:    ctx,
		ctrl:   ctrl,
		dims:   map[string]string{},
		search: si,
		width:  80,
		height: 24,
		now:    time.Now,
	}
	m.refresh()
	return m
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(waitForUpdate(m.ctrl.Updates()), tick())
}

func waitForUpdate(ch <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		<-ch
		return updatedMsg{}
	}
}

// tick redraws periodically so relative times stay current.
func tick() tea.Cmd {
	return tea.Tick(30*time.Second, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m *Model) refresh() {
	m.all = m.ctrl.Items()
	m.state = m.ctrl.State()
	m.applyFilter()
}

func (m *Model) applyFilter() {
	m.filtered = history.Filter(m.all, m.search.Value())
	if m.cursor >= len(m.filtered) {
		m.cursor = max(0, len(m.filtered)-1)
	}
	m.clampOffset()
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.clampOffset()
		return m, nil

	case updatedMsg:
		m.refresh()
		return m, waitForUpdate(m.ctrl.Updates())

	case tickMsg:
		return m, tick()

	case copiedMsg:
		if msg.err != nil {
			return m, nil
		}
		m.flashID++
		m.flash = msg.text
		id := m.flashID
		return m, tea.Tick(flashFor, func(time.Time) tea.Msg { return clearFlashMsg{id: id} })

	case clearFlashMsg:
		if msg.id == m.flashID {
			m.flash = ""
		}
		return m, nil

	case tea.KeyMsg:
		if m.mode == modeSearch {
			return m.updateSearch(msg)
		}
		return m.updateList(msg)
	}
	return m, nil
}

func (m Model) updateList(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit

	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
			m.clampOffset()
		}

	case "down", "j":
		if m.cursor < len(m.filtered)-1 {
			m.cursor++
			m.clampOffset()
		}

	case "enter", "c":
		if e, ok := m.selected(); ok {
			ctrl := m.ctrl
			return m, func() tea.Msg {
				text, err := ctrl.Copy(e)
				return copiedMsg{text: text, err: err}
			}
		}

	case "d", "delete":
		if e, ok := m.selected(); ok {
			m.ctrl.Delete(m.ctx, e)
			m.refresh()
		}

	case "ctrl+r":
		ctx, ctrl := m.ctx, m.ctrl
		return m, func() tea.Msg {
			_ = ctrl.Fetch(ctx)
			return nil
		}

	case "/":
		m.mode = modeSearch
		cmd := m.search.Focus()
		return m, cmd

	case "esc":
		m.search.SetValue("")
		m.applyFilter()

	case "n":
		m.noteHidden = true
	}
	return m, nil
}

func (m Model) updateSearch(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		m.search.Blur()
		m.mode = modeList
		return m, nil
	case "esc":
		m.search.SetValue("")
		m.search.Blur()
		m.mode = modeList
		m.applyFilter()
		return m, nil
	case "ctrl+c":
		return m, tea.Quit
	}

	var cmd tea.Cmd
	m.search, cmd = m.search.Update(msg)
	m.applyFilter()
	return m, cmd
}

func (m Model) selected() (history.Entry, bool) {
	if m.cursor < 0 || m.cursor >= len(m.filtered) {
		return history.Entry{}, false
	}
	return m.filtered[m.cursor], true
}

func (m Model) View() string {
	var b strings.Builder

	title := titleStyle.Render("Clipboard Manager")
	counter := dimStyle.Render(popup.Counter(len(m.all), m.ctrl.Capacity()))
	b.WriteString(title + counter)
	if m.state == popup.StateRefreshing {
		b.WriteString(dimStyle.Render("  refreshing..."))
	}
	b.WriteString("\n")

	if !m.noteHidden {
		b.WriteString(noteStyle.Render(monitorNote) + helpStyle.Render("  n: dismiss") + "\n")
	}

	switch {
	case m.mode == modeSearch:
		b.WriteString(statusBarStyle.Render("Search:") + " " + m.search.View() + "\n")
	case m.search.Value() != "":
		b.WriteString(statusBarStyle.Render("Search:") + " " + m.search.Value() + helpStyle.Render("  esc: clear") + "\n")
	}
	b.WriteString("\n")

	switch {
	case m.state == popup.StateLoading:
		b.WriteString(dimStyle.Render("  Loading...") + "\n")
	case len(m.filtered) == 0:
		msg := emptyHistory
		if m.search.Value() != "" {
			msg = emptySearch
		}
		b.WriteString(dimStyle.Render(lipgloss.NewStyle().Width(max(20, m.width-4)).Render(msg)) + "\n")
	default:
		end := min(m.offset+m.visibleItems(), len(m.filtered))
		for i := m.offset; i < end; i++ {
			b.WriteString(m.renderItem(m.filtered[i], i == m.cursor) + "\n")
		}
	}

	b.WriteString("\n")
	if m.flash != "" {
		b.WriteString(flashStyle.Render(m.flash) + "\n")
	}
	b.WriteString(helpStyle.Render("  enter/c: copy  d: delete  /: search  ctrl+r: refresh  q: quit"))
	return b.String()
}

func (m Model) renderItem(e history.Entry, selected bool) string {
	var tag string
	switch e.Kind {
	case history.Image:
		tag = imageTag.Render("Image")
	default:
		tag = textTag.Render("Text")
	}
	when := popup.RelativeTime(e.CapturedAt(), m.now())
	preview := truncate(m.preview(e), max(10, m.width-4))

	if selected {
		kind := "Text"
		if e.Kind == history.Image {
			kind = "Image"
		}
		head := selectedStyle.Render(kind + " • " + when)
		body := selectedStyle.Render(preview)
		return lipgloss.PlaceHorizontal(m.width, lipgloss.Left, head) + "\n" +
			lipgloss.PlaceHorizontal(m.width, lipgloss.Left, body)
	}
	return normalStyle.Render(tag+dimStyle.Render(" • "+when)) + "\n" + normalStyle.Render(preview)
}

func (m Model) preview(e history.Entry) string {
	if e.Kind != history.Image {
		return strings.Join(strings.Fields(e.Content), " ")
	}
	d, ok := m.dims[e.Content]
	if !ok {
		d = "?"
		if img, _, err := thumbnail.Decode(e.Content); err == nil {
			b := img.Bounds()
			d = fmt.Sprintf("%dx%d", b.Dx(), b.Dy())
		}
		m.dims[e.Content] = d
	}
	return "[image thumbnail " + d + "]"
}

// visibleItems is how many two-line entries fit under the header.
func (m Model) visibleItems() int {
	chrome := 5
	if !m.noteHidden {
		chrome++
	}
	if m.mode == modeSearch || m.search.Value() != "" {
		chrome++
	}
	if m.flash != "" {
		chrome++
	}
	return max(1, (m.height-chrome)/2)
}

func (m *Model) clampOffset() {
	visible := m.visibleItems()
	if m.cursor < m.offset {
		m.offset = m.cursor
	}
	if m.cursor >= m.offset+visible {
		m.offset = m.cursor - visible + 1
	}
	if m.offset < 0 {
		m.offset = 0
	}
}

func truncate(s string, width int) string {
	r := []rune(s)
	if len(r) <= width {
		return s
	}
	return string(r[:width-2]) + ".."
}
