package ui

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/vanderheijden86/blockmap/pkg/export"
	"github.com/vanderheijden86/blockmap/pkg/host"
	"github.com/vanderheijden86/blockmap/pkg/keys"
	"github.com/vanderheijden86/blockmap/pkg/model"
	"github.com/vanderheijden86/blockmap/pkg/pipeline"
	"github.com/vanderheijden86/blockmap/pkg/render"
)

// Keys handled by the terminal frontend itself rather than the navigation
// dispatcher.
type frontendKeys struct {
	Copy    key.Binding
	SavePNG key.Binding
	SaveSVG key.Binding
	Image   key.Binding
	Quit    key.Binding
}

var localKeys = frontendKeys{
	Copy:    key.NewBinding(key.WithKeys("y"), key.WithHelp("y", "copy document")),
	SavePNG: key.NewBinding(key.WithKeys("p"), key.WithHelp("p", "save png")),
	SaveSVG: key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "save svg")),
	Image:   key.NewBinding(key.WithKeys("i"), key.WithHelp("i", "show image")),
	Quit:    key.NewBinding(key.WithKeys("ctrl+c"), key.WithHelp("ctrl+c", "quit")),
}

// RenderedMsg carries the outcome of a render started by the model.
type RenderedMsg struct {
	Result *pipeline.Result
	Err    error
	// Opened is set for the render that opens the surface.
	Opened bool
}

// HostEventMsg wraps a host notification.
type HostEventMsg struct{ Event host.Event }

// FilesChangedMsg reports changed note files from the graph watcher.
type FilesChangedMsg struct{ Paths []string }

// Options wires a Model.
type Options struct {
	Renderer *pipeline.Renderer
	Engine   *TermEngine
	Keys     keys.KeyMap
	View     render.ViewOptions
	Request  pipeline.Request
	Events   <-chan host.Event
	Changes  <-chan []string
	// ExportDir is where p and s write images. Empty means the working
	// directory.
	ExportDir string
	Theme     *Theme
}

// Model is the bubbletea model of the terminal map view.
type Model struct {
	ctx      context.Context
	renderer *pipeline.Renderer
	engine   *TermEngine
	dispatch *keys.Dispatcher
	keymap   keys.KeyMap
	view     render.ViewOptions
	theme    Theme
	request  pipeline.Request
	events   <-chan host.Event
	changes  <-chan []string
	exportTo string

	width, height int
	helpVP        viewport.Model
	lightbox      string
	status        string
	statusIsError bool
	rendering     bool
	quitting      bool
}

// NewModel returns a model that renders opts.Request on start.
func NewModel(ctx context.Context, opts Options) Model {
	th := DefaultTheme(lipgloss.DefaultRenderer(), opts.View)
	if opts.Theme != nil {
		th = *opts.Theme
	}
	m := Model{
		ctx:      ctx,
		renderer: opts.Renderer,
		engine:   opts.Engine,
		keymap:   opts.Keys,
		view:     opts.View,
		theme:    th,
		request:  opts.Request,
		events:   opts.Events,
		changes:  opts.Changes,
		exportTo: opts.ExportDir,
		width:    80,
		height:   24,
		helpVP:   viewport.New(80, 20),
	}
	m.dispatch = keys.NewDispatcher(opts.Keys, opts.Renderer, keys.Steps{Zoom: opts.View.ZoomStep, Pan: opts.View.PanStep})
	return m
}

func (m Model) renderCmd(req pipeline.Request) tea.Cmd {
	r, ctx := m.renderer, m.ctx
	return func() tea.Msg {
		res, err := r.Render(ctx, req)
		return RenderedMsg{Result: res, Err: err, Opened: true}
	}
}

func (m Model) handleEventCmd(ev host.Event) tea.Cmd {
	r, ctx := m.renderer, m.ctx
	return func() tea.Msg {
		err := r.Handle(ctx, ev)
		return RenderedMsg{Result: r.Last(), Err: err}
	}
}

func (m Model) rerenderCmd() tea.Cmd {
	r, ctx := m.renderer, m.ctx
	return func() tea.Msg {
		res, err := r.Rerender(ctx)
		return RenderedMsg{Result: res, Err: err}
	}
}

// WaitForEventCmd blocks on the next host event.
func WaitForEventCmd(events <-chan host.Event) tea.Cmd {
	if events == nil {
		return nil
	}
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return nil
		}
		return HostEventMsg{Event: ev}
	}
}

// WaitForChangesCmd blocks on the next batch of changed files.
func WaitForChangesCmd(changes <-chan []string) tea.Cmd {
	if changes == nil {
		return nil
	}
	return func() tea.Msg {
		paths, ok := <-changes
		if !ok {
			return nil
		}
		return FilesChangedMsg{Paths: paths}
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.renderCmd(m.request),
		WaitForEventCmd(m.events),
		WaitForChangesCmd(m.changes),
	)
}

func (m Model) bodyHeight() int {
	h := m.height - 2
	if h < 1 {
		h = 1
	}
	return h
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.helpVP.Width = msg.Width
		m.helpVP.Height = m.bodyHeight()
		if m.engine != nil {
			m.engine.Resize(m.width, m.bodyHeight())
			if m.view.AutoFit {
				if s := m.renderer.Session(); s != nil {
					_ = s.Fit()
				}
			}
		}
		if m.dispatch.HelpOpen() {
			m.helpVP.SetContent(RenderHelp(m.keymap, m.width, m.theme.Dark))
		}
		return m, nil

	case RenderedMsg:
		m.rendering = false
		if msg.Err != nil {
			m.setError(msg.Err)
			return m, nil
		}
		if msg.Opened {
			m.dispatch.CloseOverlays()
			m.lightbox = ""
		}
		if msg.Result != nil {
			m.setStatus(fmt.Sprintf("%s · %d nodes · %s", msg.Result.Document.Title, countNodes(msg.Result.Root), msg.Result.Duration.Round(time.Millisecond)))
		}
		return m, nil

	case HostEventMsg:
		return m, tea.Batch(m.handleEventCmd(msg.Event), WaitForEventCmd(m.events))

	case FilesChangedMsg:
		m.setStatus(fmt.Sprintf("%d file(s) changed", len(msg.Paths)))
		return m, tea.Batch(m.rerenderCmd(), WaitForChangesCmd(m.changes))

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, localKeys.Quit) {
		m.quitting = true
		return m, tea.Quit
	}

	if m.dispatch.HelpOpen() {
		switch msg.String() {
		case "up", "down", "pgup", "pgdown", "home", "end":
			var cmd tea.Cmd
			m.helpVP, cmd = m.helpVP.Update(msg)
			return m, cmd
		}
	}

	if !m.dispatch.HelpOpen() && !m.dispatch.LightboxOpen() {
		switch {
		case key.Matches(msg, localKeys.Copy):
			m.copyDocument()
			return m, nil
		case key.Matches(msg, localKeys.SavePNG):
			m.saveImage(export.FormatPNG)
			return m, nil
		case key.Matches(msg, localKeys.SaveSVG):
			m.saveImage(export.FormatSVG)
			return m, nil
		case key.Matches(msg, localKeys.Image):
			m.openImage()
			return m, nil
		}
	}

	overlay := m.dispatch.HelpOpen() || m.dispatch.LightboxOpen()
	cmd, err := m.dispatch.Dispatch(msg.String())
	if err != nil {
		m.setError(err)
		return m, nil
	}
	switch cmd {
	case keys.ToggleHelp:
		if m.dispatch.HelpOpen() {
			m.helpVP.SetContent(RenderHelp(m.keymap, m.width, m.theme.Dark))
			m.helpVP.GotoTop()
		}
	case keys.Dismiss:
		if !overlay {
			m.quitting = true
			return m, tea.Quit
		}
		m.lightbox = ""
	}
	if !m.dispatch.LightboxOpen() {
		m.lightbox = ""
	}
	return m, nil
}

func (m *Model) setStatus(s string) {
	m.status = s
	m.statusIsError = false
}

func (m *Model) setError(err error) {
	m.status = err.Error()
	m.statusIsError = true
}

func (m *Model) copyDocument() {
	last := m.renderer.Last()
	if last == nil {
		m.setError(fmt.Errorf("nothing rendered yet"))
		return
	}
	if err := export.CopyDocument(last.Document); err != nil {
		m.setError(err)
		return
	}
	m.setStatus("document copied")
}

func (m *Model) saveImage(format string) {
	s := m.renderer.Session()
	last := m.renderer.Last()
	if s == nil || last == nil {
		m.setError(fmt.Errorf("nothing rendered yet"))
		return
	}
	path, err := export.SaveSnapshot(s.Root(), export.SnapshotOptions{
		Path:   m.exportTo,
		Format: format,
		Title:  last.Document.Title,
		View:   m.view,
	})
	if err != nil {
		m.setError(err)
		return
	}
	m.setStatus("saved " + path)
}

var (
	mdImageRe   = regexp.MustCompile(`!\[[^\]]*\]\(([^)\s]+)[^)]*\)`)
	htmlImageRe = regexp.MustCompile(`<img[^>]+src="([^"]+)"`)
)

// FirstImage returns the first image URL in the visible labels of root,
// searched breadth first.
func FirstImage(root *model.Node) string {
	queue := []*model.Node{root}
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		if n == nil {
			continue
		}
		for _, re := range []*regexp.Regexp{mdImageRe, htmlImageRe} {
			if m := re.FindStringSubmatch(n.Label); m != nil {
				return m[1]
			}
		}
		if !n.Fold {
			queue = append(queue, n.Children...)
		}
	}
	return ""
}

func (m *Model) openImage() {
	s := m.renderer.Session()
	if s == nil {
		return
	}
	url := FirstImage(s.Root())
	if url == "" {
		m.setStatus("no image in view")
		return
	}
	m.lightbox = url
	m.dispatch.OpenLightbox()
}

func countNodes(n *model.Node) int {
	if n == nil {
		return 0
	}
	c := 0
	n.Walk(func(*model.Node) bool { c++; return true })
	return c
}

// View implements tea.Model.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	header := m.renderHeader()
	var body string
	switch {
	case m.dispatch.HelpOpen():
		body = m.helpVP.View()
	case m.lightbox != "":
		body = m.renderLightbox()
	default:
		body = m.renderMap()
	}
	return lipgloss.JoinVertical(lipgloss.Left, header, body, m.renderFooter())
}

func (m Model) renderHeader() string {
	title := "blockmap"
	if last := m.renderer.Last(); last != nil {
		title = last.Document.Title
	}
	if s := m.renderer.Session(); s != nil {
		cur, total := s.Levels()
		title += fmt.Sprintf("  [%s · level %d/%d]", s.State(), cur, total)
	}
	return m.theme.Header.Width(m.width).Render(truncate(title, m.width-2))
}

func (m Model) renderMap() string {
	h := m.bodyHeight()
	if m.engine == nil || m.engine.Instance() == nil {
		msg := "rendering…"
		if m.statusIsError {
			msg = "nothing to show"
		}
		return lipgloss.Place(m.width, h, lipgloss.Center, lipgloss.Center, m.theme.Status.Render(msg))
	}
	return m.engine.Instance().Draw().Styled(m.theme)
}

func (m Model) renderLightbox() string {
	box := m.theme.Overlay.Render("image\n\n" + truncate(m.lightbox, m.width-6) + "\n\nesc to close")
	return lipgloss.Place(m.width, m.bodyHeight(), lipgloss.Center, lipgloss.Center, box)
}

func (m Model) renderFooter() string {
	if m.status != "" {
		st := m.theme.Status
		if m.statusIsError {
			st = m.theme.Error
		}
		return st.Render(truncate(m.status, m.width))
	}
	var parts []string
	for _, b := range m.keymap.ShortHelp() {
		h := b.Help()
		parts = append(parts, h.Key+" "+h.Desc)
	}
	return m.theme.Footer.Render(truncate(strings.Join(parts, " · "), m.width))
}

// truncate shortens s to maxWidth terminal cells with an ellipsis.
func truncate(s string, maxWidth int) string {
	if maxWidth <= 0 {
		return ""
	}
	if runewidth.StringWidth(s) <= maxWidth {
		return s
	}
	return runewidth.Truncate(s, maxWidth, "…")
}
