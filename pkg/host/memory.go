package host

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/vanderheijden86/blockmap/pkg/model"
)

// Memory is an in-memory host. It backs the graph-directory datasource and
// the tests.
type Memory struct {
	mu        sync.RWMutex
	graph     GraphInfo
	cfg       model.HostConfig
	pages     map[string]*model.Page
	blocks    map[string][]*model.Block // page key -> top-level blocks
	index     map[string]*model.Block   // uuid -> block
	current   string
	curBlock  string
	selected  []string
	favorites []string
	recents   []string
	visible   bool
	subs      []chan Event

	// Fail, when set, is returned by every Reader call.
	Fail error
}

// NewMemory returns an empty host with default markdown config.
func NewMemory() *Memory {
	return &Memory{
		cfg:    model.HostConfig{PreferredFormat: model.FormatMarkdown, DateFormat: "MMM do, yyyy"},
		pages:  make(map[string]*model.Page),
		blocks: make(map[string][]*model.Block),
		index:  make(map[string]*model.Block),
	}
}

// AddPage registers a page and its block forest, replacing any page of the
// same name. Page and block options are parsed from properties here.
func (m *Memory) AddPage(p *model.Page, blocks []*model.Block) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := model.NormalizePageName(p.Name)
	if old, ok := m.blocks[key]; ok {
		m.unindex(old)
	}
	if p.OriginalName == "" {
		p.OriginalName = p.Name
	}
	p.Name = key
	p.Options, _ = model.ParsePageOptions(p.Properties)
	m.pages[key] = p
	m.blocks[key] = blocks
	m.reindex(blocks, key)
}

func (m *Memory) reindex(blocks []*model.Block, page string) {
	for _, b := range blocks {
		if b.PageName == "" {
			b.PageName = page
		}
		b.Options, _ = model.ParseBlockOptions(b.Properties)
		b.Collapsed = b.Collapsed || b.Options.Collapsed
		m.index[b.UUID] = b
		m.reindex(b.Children, page)
	}
}

func (m *Memory) unindex(blocks []*model.Block) {
	for _, b := range blocks {
		delete(m.index, b.UUID)
		m.unindex(b.Children)
	}
}

// RemovePage drops a page and its blocks.
func (m *Memory) RemovePage(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := model.NormalizePageName(name)
	m.unindex(m.blocks[key])
	delete(m.blocks, key)
	delete(m.pages, key)
}

// SetConfig replaces the host config snapshot.
func (m *Memory) SetConfig(cfg model.HostConfig) {
	m.mu.Lock()
	m.cfg = cfg
	m.mu.Unlock()
	m.emit(Event{Kind: SettingsChanged})
}

// SetGraph sets the graph identity.
func (m *Memory) SetGraph(g GraphInfo) {
	m.mu.Lock()
	m.graph = g
	m.mu.Unlock()
}

// SetFavorites sets the favorite page names.
func (m *Memory) SetFavorites(names []string) {
	m.mu.Lock()
	m.favorites = append([]string(nil), names...)
	m.mu.Unlock()
}

// SetSelected sets the selected block UUIDs.
func (m *Memory) SetSelected(uuids ...string) {
	m.mu.Lock()
	m.selected = append([]string(nil), uuids...)
	m.mu.Unlock()
}

// EditBlock marks a block as being edited (the current block).
func (m *Memory) EditBlock(uuid string) {
	m.mu.Lock()
	m.curBlock = uuid
	m.mu.Unlock()
}

// NotifyGraphChanged broadcasts a GraphChanged event.
func (m *Memory) NotifyGraphChanged() {
	m.emit(Event{Kind: GraphChanged})
}

func (m *Memory) check() error {
	if m.Fail != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, m.Fail)
	}
	return nil
}

// CurrentPage implements Reader.
func (m *Memory) CurrentPage(ctx context.Context) (*model.Page, error) {
	m.mu.RLock()
	cur := m.current
	m.mu.RUnlock()
	if cur == "" {
		return nil, nil
	}
	return m.Page(ctx, cur)
}

// Page implements Reader.
func (m *Memory) Page(_ context.Context, name string) (*model.Page, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.check(); err != nil {
		return nil, err
	}
	p, ok := m.pages[model.NormalizePageName(name)]
	if !ok {
		return nil, fmt.Errorf("page %q: %w", name, ErrNotFound)
	}
	cp := *p
	return &cp, nil
}

// PageBlocks implements Reader. Children of collapsed blocks come back as
// stubs, the way a lazily loading host returns them.
func (m *Memory) PageBlocks(_ context.Context, name string) ([]*model.Block, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.check(); err != nil {
		return nil, err
	}
	blocks, ok := m.blocks[model.NormalizePageName(name)]
	if !ok {
		return nil, fmt.Errorf("page %q: %w", name, ErrNotFound)
	}
	return lazyCopy(blocks), nil
}

func lazyCopy(blocks []*model.Block) []*model.Block {
	out := make([]*model.Block, 0, len(blocks))
	for _, b := range blocks {
		cp := b.ShallowCopy()
		for _, c := range b.Children {
			if b.Collapsed {
				cp.Children = append(cp.Children, model.StubBlock(c.UUID))
			} else {
				cp.Children = append(cp.Children, lazyCopy([]*model.Block{c})...)
			}
		}
		out = append(out, cp)
	}
	return out
}

// Block implements Reader.
func (m *Memory) Block(_ context.Context, uuid string, withChildren bool) (*model.Block, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.check(); err != nil {
		return nil, err
	}
	b, ok := m.index[uuid]
	if !ok {
		return nil, nil
	}
	if withChildren {
		return b.Clone(), nil
	}
	cp := b.ShallowCopy()
	for _, c := range b.Children {
		cp.Children = append(cp.Children, model.StubBlock(c.UUID))
	}
	return cp, nil
}

// CurrentBlock implements Reader.
func (m *Memory) CurrentBlock(ctx context.Context) (*model.Block, error) {
	m.mu.RLock()
	uuid := m.curBlock
	m.mu.RUnlock()
	if uuid == "" {
		return nil, nil
	}
	return m.Block(ctx, uuid, true)
}

// SelectedBlocks implements Reader.
func (m *Memory) SelectedBlocks(ctx context.Context) ([]*model.Block, error) {
	m.mu.RLock()
	ids := append([]string(nil), m.selected...)
	m.mu.RUnlock()
	var out []*model.Block
	for _, id := range ids {
		b, err := m.Block(ctx, id, true)
		if err != nil {
			return nil, err
		}
		if b != nil {
			out = append(out, b)
		}
	}
	return out, nil
}

// LinkedReferences implements Reader. A block references a page when its
// content mentions [[name]] or #name.
func (m *Memory) LinkedReferences(_ context.Context, name string) ([]PageRefs, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.check(); err != nil {
		return nil, err
	}
	key := model.NormalizePageName(name)
	var out []PageRefs
	for _, pk := range m.sortedPageKeys() {
		if pk == key {
			continue
		}
		if hits := CollectMentions(m.blocks[pk], key); len(hits) > 0 {
			cp := *m.pages[pk]
			out = append(out, PageRefs{Page: &cp, Blocks: hits})
		}
	}
	return out, nil
}

// CollectMentions returns copies of the outermost blocks that mention the
// normalized page name key. Descendants of a hit are not searched.
func CollectMentions(blocks []*model.Block, key string) []*model.Block {
	var hits []*model.Block
	var walk func([]*model.Block)
	walk = func(bs []*model.Block) {
		for _, b := range bs {
			if MentionsPage(b.Content, key) {
				hits = append(hits, b.Clone())
				continue
			}
			walk(b.Children)
		}
	}
	walk(blocks)
	return hits
}

// MentionsPage reports whether content links to the (normalized) page name.
func MentionsPage(content, key string) bool {
	lc := strings.ToLower(content)
	if strings.Contains(lc, "[["+key+"]]") {
		return true
	}
	if !strings.ContainsAny(key, " \t") {
		for _, f := range strings.Fields(lc) {
			if strings.TrimRight(f, ".,;:!?") == "#"+key {
				return true
			}
		}
	}
	return false
}

// NamespacePages implements Reader.
func (m *Memory) NamespacePages(_ context.Context, namespace string) ([]*model.Page, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.check(); err != nil {
		return nil, err
	}
	prefix := model.NormalizePageName(namespace) + "/"
	var out []*model.Page
	for _, k := range m.sortedPageKeys() {
		if strings.HasPrefix(k, prefix) {
			cp := *m.pages[k]
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *Memory) sortedPageKeys() []string {
	keys := make([]string, 0, len(m.pages))
	for k := range m.pages {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// PageNames returns every page's display name, sorted.
func (m *Memory) PageNames() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []string
	for _, k := range m.sortedPageKeys() {
		out = append(out, m.pages[k].DisplayName())
	}
	return out
}

// Graph implements Reader.
func (m *Memory) Graph(context.Context) (GraphInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.graph, m.check()
}

// Favorites implements Reader.
func (m *Memory) Favorites(context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.favorites...), m.check()
}

// Recents implements Reader.
func (m *Memory) Recents(context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.recents...), m.check()
}

// Config implements Reader.
func (m *Memory) Config(context.Context) (model.HostConfig, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cfg, m.check()
}

// NavigateToPage implements Navigator: it changes the current page, records
// it in recents and emits RouteChanged.
func (m *Memory) NavigateToPage(_ context.Context, name string) error {
	m.mu.Lock()
	key := model.NormalizePageName(name)
	if _, ok := m.pages[key]; !ok {
		m.mu.Unlock()
		return fmt.Errorf("page %q: %w", name, ErrNotFound)
	}
	m.current = key
	m.curBlock = ""
	m.recents = append([]string{m.pages[key].DisplayName()}, removeString(m.recents, m.pages[key].DisplayName())...)
	if len(m.recents) > 20 {
		m.recents = m.recents[:20]
	}
	m.mu.Unlock()
	m.emit(Event{Kind: RouteChanged, Route: key})
	return nil
}

// NavigateToBlock implements Navigator.
func (m *Memory) NavigateToBlock(ctx context.Context, uuid string) error {
	m.mu.RLock()
	b, ok := m.index[uuid]
	m.mu.RUnlock()
	if !ok {
		return fmt.Errorf("block %q: %w", uuid, ErrNotFound)
	}
	if err := m.NavigateToPage(ctx, b.PageName); err != nil {
		return err
	}
	m.EditBlock(uuid)
	return nil
}

// ShowSurface implements Navigator.
func (m *Memory) ShowSurface(context.Context) error {
	m.setVisible(true)
	return nil
}

// HideSurface implements Navigator.
func (m *Memory) HideSurface(context.Context) error {
	m.setVisible(false)
	return nil
}

func (m *Memory) setVisible(v bool) {
	m.mu.Lock()
	changed := m.visible != v
	m.visible = v
	m.mu.Unlock()
	if changed {
		m.emit(Event{Kind: VisibilityChanged, Visible: v})
	}
}

// Visible reports the surface state.
func (m *Memory) Visible() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.visible
}

// Subscribe implements Events. The channel is closed when ctx is done.
func (m *Memory) Subscribe(ctx context.Context) <-chan Event {
	ch := make(chan Event, 16)
	m.mu.Lock()
	m.subs = append(m.subs, ch)
	m.mu.Unlock()
	go func() {
		<-ctx.Done()
		m.mu.Lock()
		defer m.mu.Unlock()
		for i, s := range m.subs {
			if s == ch {
				m.subs = append(m.subs[:i], m.subs[i+1:]...)
				break
			}
		}
		close(ch)
	}()
	return ch
}

func (m *Memory) emit(ev Event) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, s := range m.subs {
		select {
		case s <- ev:
		default:
			// slow subscriber; drop
		}
	}
}

func removeString(list []string, s string) []string {
	out := list[:0:0]
	for _, v := range list {
		if v != s {
			out = append(out, v)
		}
	}
	return out
}

var (
	_ Reader    = (*Memory)(nil)
	_ Navigator = (*Memory)(nil)
	_ Events    = (*Memory)(nil)
)
