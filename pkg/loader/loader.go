// Package loader materializes outline subtrees from the host into concrete
// block trees ready for filtering.
package loader

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vanderheijden86/blockmap/pkg/debug"
	"github.com/vanderheijden86/blockmap/pkg/host"
	"github.com/vanderheijden86/blockmap/pkg/model"
)

// DefaultConcurrency bounds parallel host fetches during materialization.
const DefaultConcurrency = 32

var (
	// ErrNoLinkedReferences is returned when a page has no incoming
	// references in linked-reference mode.
	ErrNoLinkedReferences = errors.New("no linked references")
	// ErrNothingToRender is returned when no page or block is current.
	ErrNothingToRender = errors.New("no current page or block")
)

// Tree is one loaded outline ready for filtering.
type Tree struct {
	Title     string
	Page      *model.Page
	Blocks    []*model.Block
	RootBlock *model.Block // set in block mode
	AsBlock   bool
}

// PageOptions returns the options of the tree's page, or defaults.
func (t *Tree) PageOptions() model.PageOptions {
	if t == nil || t.Page == nil {
		return model.PageOptions{CollapsedMode: model.CollapsedHidden}
	}
	return t.Page.Options
}

// Loader fetches and materializes trees from a host.
type Loader struct {
	host        host.Reader
	concurrency int
}

// New returns a loader reading from r.
func New(r host.Reader) *Loader {
	return &Loader{host: r, concurrency: DefaultConcurrency}
}

// SetConcurrency changes the fetch fan-out limit (minimum 1).
func (l *Loader) SetConcurrency(n int) {
	if n < 1 {
		n = 1
	}
	l.concurrency = n
}

// LoadPage loads a whole page by name.
func (l *Loader) LoadPage(ctx context.Context, name string) (*Tree, error) {
	defer debug.LogEnterExit("loader.LoadPage " + name)()
	page, err := l.host.Page(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("load page %q: %w", name, err)
	}
	return l.loadPage(ctx, page)
}

func (l *Loader) loadPage(ctx context.Context, page *model.Page) (*Tree, error) {
	page = withPageOptions(page)
	blocks, err := l.host.PageBlocks(ctx, page.Name)
	if err != nil {
		return nil, fmt.Errorf("load blocks of %q: %w", page.Name, err)
	}
	blocks, err = l.Materialize(ctx, blocks)
	if err != nil {
		return nil, err
	}
	return &Tree{Title: pageTitle(page), Page: page, Blocks: blocks}, nil
}

// LoadCurrent loads the host's current page.
func (l *Loader) LoadCurrent(ctx context.Context) (*Tree, error) {
	page, err := l.host.CurrentPage(ctx)
	if err != nil {
		return nil, fmt.Errorf("current page: %w", err)
	}
	if page == nil {
		return nil, ErrNothingToRender
	}
	return l.loadPage(ctx, page)
}

// LoadSelection loads the selected or edited block in block mode, falling
// back to the current page when nothing is selected.
func (l *Loader) LoadSelection(ctx context.Context) (*Tree, error) {
	selected, err := l.host.SelectedBlocks(ctx)
	if err != nil {
		return nil, fmt.Errorf("selected blocks: %w", err)
	}
	if len(selected) > 0 {
		return l.LoadBlock(ctx, selected[0].UUID)
	}
	cur, err := l.host.CurrentBlock(ctx)
	if err != nil {
		return nil, fmt.Errorf("current block: %w", err)
	}
	if cur != nil {
		return l.LoadBlock(ctx, cur.UUID)
	}
	return l.LoadCurrent(ctx)
}

// LoadBlock loads a block subtree. The block becomes the title and its
// children the top level.
func (l *Loader) LoadBlock(ctx context.Context, uuid string) (*Tree, error) {
	defer debug.LogEnterExit("loader.LoadBlock " + uuid)()
	root, err := l.host.Block(ctx, uuid, true)
	if err != nil {
		return nil, fmt.Errorf("load block %s: %w", uuid, err)
	}
	if root == nil {
		return nil, fmt.Errorf("load block %s: %w", uuid, host.ErrNotFound)
	}
	root = withBlockOptions(root)
	children, err := l.Materialize(ctx, root.Children)
	if err != nil {
		return nil, err
	}
	t := &Tree{Title: BlockTitle(root), Blocks: children, RootBlock: root, AsBlock: true}
	if root.PageName != "" {
		if page, err := l.host.Page(ctx, root.PageName); err == nil {
			t.Page = withPageOptions(page)
		} else if !errors.Is(err, host.ErrNotFound) {
			return nil, fmt.Errorf("page of block %s: %w", uuid, err)
		}
	}
	return t, nil
}

// Materialize returns a concrete copy of blocks: stubs are fetched from the
// host, unknown stubs are dropped, and options are parsed from properties.
// Top-level subtrees are fetched concurrently; host errors abort the load.
func (l *Loader) Materialize(ctx context.Context, blocks []*model.Block) ([]*model.Block, error) {
	start := time.Now()
	results := make([]*model.Block, len(blocks))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(l.concurrency)
	for i, b := range blocks {
		g.Go(func() error {
			m, err := l.materialize(ctx, b)
			if err != nil {
				return err
			}
			results[i] = m
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := results[:0]
	for _, b := range results {
		if b != nil {
			out = append(out, b)
		}
	}
	debug.LogTiming(fmt.Sprintf("materialize %d blocks", model.CountBlocks(out)), time.Since(start))
	return out, nil
}

func (l *Loader) materialize(ctx context.Context, b *model.Block) (*model.Block, error) {
	if b == nil {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if b.Stub {
		fetched, err := l.host.Block(ctx, b.UUID, true)
		if err != nil {
			return nil, fmt.Errorf("fetch block %s: %w", b.UUID, err)
		}
		if fetched == nil {
			debug.Log("loader: dropping unknown block %s", b.UUID)
			return nil, nil
		}
		b = fetched
	}
	out := withBlockOptions(b)
	out.Children = nil
	for _, c := range b.Children {
		mc, err := l.materialize(ctx, c)
		if err != nil {
			return nil, err
		}
		if mc != nil {
			out.Children = append(out.Children, mc)
		}
	}
	return out, nil
}

func withBlockOptions(b *model.Block) *model.Block {
	cp := *b
	opts, problems := model.ParseBlockOptions(b.Properties)
	for _, p := range problems {
		debug.Log("block %s: %s", b.UUID, p)
	}
	cp.Options = opts
	cp.Collapsed = b.Collapsed || opts.Collapsed
	return &cp
}

func withPageOptions(p *model.Page) *model.Page {
	cp := *p
	opts, problems := model.ParsePageOptions(p.Properties)
	for _, pr := range problems {
		debug.Log("page %s: %s", p.Name, pr)
	}
	cp.Options = opts
	return &cp
}

func pageTitle(p *model.Page) string {
	if p.Options.Title != "" {
		return p.Options.Title
	}
	return p.DisplayName()
}

// BlockTitle returns the first content line of b that is not a property
// assignment, without heading markers.
func BlockTitle(b *model.Block) string {
	for _, line := range strings.Split(b.Content, "\n") {
		s := strings.TrimSpace(line)
		if s == "" || strings.Contains(s, ":: ") || strings.HasSuffix(s, "::") {
			continue
		}
		return strings.TrimSpace(strings.TrimLeft(s, "# "))
	}
	return ""
}
