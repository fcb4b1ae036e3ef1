// Package pipeline runs one render: load, filter, transform, assemble, build
// and seed, then hands the node tree to a fresh navigation session.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vanderheijden86/blockmap/pkg/assemble"
	"github.com/vanderheijden86/blockmap/pkg/debug"
	"github.com/vanderheijden86/blockmap/pkg/filter"
	"github.com/vanderheijden86/blockmap/pkg/host"
	"github.com/vanderheijden86/blockmap/pkg/loader"
	"github.com/vanderheijden86/blockmap/pkg/logging"
	"github.com/vanderheijden86/blockmap/pkg/metrics"
	"github.com/vanderheijden86/blockmap/pkg/mindmap"
	"github.com/vanderheijden86/blockmap/pkg/model"
	"github.com/vanderheijden86/blockmap/pkg/nav"
	"github.com/vanderheijden86/blockmap/pkg/transform"
)

// ErrSuperseded is returned by a render whose result was discarded because a
// newer render started after it.
var ErrSuperseded = errors.New("render superseded")

// Mode selects what a render loads.
type Mode string

const (
	ModeCurrent   Mode = "current"
	ModePage      Mode = "page"
	ModeSelection Mode = "selection"
	ModeBlock     Mode = "block"
	ModeLinked    Mode = "linked"
	ModeNamespace Mode = "namespace"
)

// ParseMode validates a mode name.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case ModeCurrent, ModePage, ModeSelection, ModeBlock, ModeLinked, ModeNamespace:
		return m, nil
	case "":
		return ModeCurrent, nil
	}
	return "", fmt.Errorf("unknown render mode %q", s)
}

// Request is one render trigger. Target is a page name, block uuid or
// namespace depending on Mode.
type Request struct {
	Mode   Mode
	Target string
}

func (r Request) String() string {
	if r.Target == "" {
		return string(r.Mode)
	}
	return string(r.Mode) + ":" + r.Target
}

// Result is everything one successful render produced.
type Result struct {
	Generation uint64
	Request    Request
	Tree       *loader.Tree
	Document   *assemble.Document
	Root       *model.Node
	Features   mindmap.Features
	Session    *nav.Session
	Duration   time.Duration
}

// Renderer owns the current session and replaces it on every successful
// render.
type Renderer struct {
	host   host.Reader
	loader *loader.Loader
	tr     *transform.Transformer
	mm     mindmap.Transformer
	bridge nav.Syncer
	log    *logging.Logger

	gen atomic.Uint64

	mu       sync.Mutex
	last     *Result
	lastReq  Request
	visible  bool
	onResult []func(*Result)
}

// Option configures a Renderer.
type Option func(*Renderer)

// WithLogger sets the operational logger.
func WithLogger(l *logging.Logger) Option {
	return func(r *Renderer) { r.log = l }
}

// WithMarkdown replaces the document-to-tree transformer.
func WithMarkdown(t mindmap.Transformer) Option {
	return func(r *Renderer) { r.mm = t }
}

// WithConcurrency bounds host fetch fan-out.
func WithConcurrency(n int) Option {
	return func(r *Renderer) { r.loader.SetConcurrency(n) }
}

// WithVisible sets the initial surface visibility.
func WithVisible(v bool) Option {
	return func(r *Renderer) { r.visible = v }
}

// New returns a renderer reading from h and drawing through bridge.
func New(h host.Reader, bridge nav.Syncer, opts ...Option) *Renderer {
	r := &Renderer{
		host:    h,
		loader:  loader.New(h),
		tr:      transform.New(h),
		mm:      mindmap.NewGoldmarkTransformer(),
		bridge:  bridge,
		log:     logging.Discard(),
		lastReq: Request{Mode: ModeCurrent},
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// OnResult registers fn to run after each installed render.
func (r *Renderer) OnResult(fn func(*Result)) {
	r.mu.Lock()
	r.onResult = append(r.onResult, fn)
	r.mu.Unlock()
}

// Session returns the session of the last installed render, or nil.
func (r *Renderer) Session() *nav.Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.last == nil {
		return nil
	}
	return r.last.Session
}

// Last returns the last installed result, or nil.
func (r *Renderer) Last() *Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last
}

// Visible reports the tracked surface visibility.
func (r *Renderer) Visible() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.visible
}

// Build runs the pipeline without installing anything. It is safe to call
// concurrently.
func (r *Renderer) Build(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()
	cfg, err := r.host.Config(ctx)
	if err != nil {
		return nil, fmt.Errorf("host config: %w", err)
	}

	stop := metrics.Timer(metrics.HostLoad)
	tree, err := r.load(ctx, req)
	stop()
	if err != nil {
		return nil, err
	}

	blocks := filter.Filter(tree.Blocks)
	stop = metrics.Timer(metrics.Transform)
	labels, err := r.tr.TransformTree(ctx, blocks, cfg)
	stop()
	if err != nil {
		return nil, err
	}

	opts := assemble.Options{Page: tree.PageOptions(), AsBlock: tree.AsBlock}
	if tree.RootBlock != nil {
		opts.RootLimit = tree.RootBlock.Options.SiblingLimit
	}
	stop = metrics.Timer(metrics.Assemble)
	doc := assemble.Assemble(tree.Title, blocks, labels, opts)
	stop()
	debug.Log("pipeline: document for %s\n%s", req, doc.Text)

	stop = metrics.Timer(metrics.Build)
	root, feats, err := mindmap.Build(doc, r.mm)
	stop()
	if err != nil {
		return nil, err
	}
	return &Result{
		Request:  req,
		Tree:     tree,
		Document: doc,
		Root:     root,
		Features: feats,
		Duration: time.Since(start),
	}, nil
}

func (r *Renderer) load(ctx context.Context, req Request) (*loader.Tree, error) {
	switch req.Mode {
	case ModePage:
		return r.loader.LoadPage(ctx, req.Target)
	case ModeBlock:
		return r.loader.LoadBlock(ctx, req.Target)
	case ModeSelection:
		return r.loader.LoadSelection(ctx)
	case ModeLinked:
		return r.loader.LoadLinkedReferences(ctx, req.Target)
	case ModeNamespace:
		return r.loader.LoadNamespace(ctx, req.Target)
	case ModeCurrent, "":
		return r.loader.LoadCurrent(ctx)
	}
	return nil, fmt.Errorf("unknown render mode %q", req.Mode)
}

// Render builds req and, unless a newer render started meanwhile, installs a
// new navigation session and draws it. On error the previous session stays.
func (r *Renderer) Render(ctx context.Context, req Request) (*Result, error) {
	defer metrics.Timer(metrics.Render)()
	gen := r.gen.Add(1)
	r.log.RenderStarted(gen, string(req.Mode), req.Target)

	res, err := r.Build(ctx, req)
	if err != nil {
		r.report(gen, req, err)
		return nil, err
	}
	res.Generation = gen

	r.mu.Lock()
	if gen != r.gen.Load() {
		r.mu.Unlock()
		r.log.RenderAborted(gen, "superseded")
		return nil, ErrSuperseded
	}
	res.Session = nav.NewSession(res.Root, r.bridge, res.Tree.PageOptions().CollapsedMode)
	if err := res.Session.Render(); err != nil {
		r.mu.Unlock()
		r.log.RenderAborted(gen, err.Error())
		return nil, fmt.Errorf("draw: %w", err)
	}
	r.last = res
	r.lastReq = req
	hooks := append([]func(*Result){}, r.onResult...)
	r.mu.Unlock()

	r.log.RenderCompleted(gen, res.Document.Title, nodeCount(res.Root), res.Duration)
	for _, fn := range hooks {
		fn(res)
	}
	return res, nil
}

func (r *Renderer) report(gen uint64, req Request, err error) {
	switch {
	case errors.Is(err, loader.ErrNoLinkedReferences):
		r.log.Warning("no linked references", "page", req.Target)
	case errors.Is(err, loader.ErrNothingToRender):
		r.log.Warning("nothing to render", "request", req.String())
	default:
		r.log.HostError(req.String(), err)
	}
	r.log.RenderAborted(gen, err.Error())
}

func nodeCount(n *model.Node) int {
	c := 0
	n.Walk(func(*model.Node) bool { c++; return true })
	return c
}

// Rerender repeats the last request.
func (r *Renderer) Rerender(ctx context.Context) (*Result, error) {
	r.mu.Lock()
	req := r.lastReq
	r.mu.Unlock()
	return r.Render(ctx, req)
}

// Handle reacts to one host event. Route changes render the current page
// while the surface is visible; graph and settings changes repeat the last
// request while visible; showing the surface renders the last request.
func (r *Renderer) Handle(ctx context.Context, ev host.Event) error {
	r.mu.Lock()
	visible := r.visible
	if ev.Kind == host.VisibilityChanged {
		r.visible = ev.Visible
	}
	r.mu.Unlock()

	var err error
	switch ev.Kind {
	case host.RouteChanged:
		if visible {
			_, err = r.Render(ctx, Request{Mode: ModeCurrent})
		}
	case host.GraphChanged, host.SettingsChanged:
		if visible {
			_, err = r.Rerender(ctx)
		}
	case host.VisibilityChanged:
		if ev.Visible && !visible {
			_, err = r.Rerender(ctx)
		}
	}
	return err
}

// Run handles events until ctx is done or events is closed. Render errors
// are logged by Render and do not stop the loop.
func (r *Renderer) Run(ctx context.Context, events <-chan host.Event) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			debug.Log("pipeline: event %s", ev.Kind)
			_ = r.Handle(ctx, ev)
		}
	}
}
