// Package transform turns raw block content into the markup-bearing label of
// a mind-map node.
//
// The work is an ordered list of named rules. Rules sharing a Group are
// mutually exclusive: after one of them matches, the rest of the group is
// skipped. Unresolvable references degrade to MissMarker; only host failures
// are returned as errors.
package transform

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vanderheijden86/blockmap/pkg/debug"
	"github.com/vanderheijden86/blockmap/pkg/model"
)

// MissMarker replaces a reference that cannot be resolved.
const MissMarker = "⚠ missing reference"

// Anchor schemes understood by the frontends.
const (
	SchemePage  = "page:"
	SchemeBlock = "block:"
	SchemeImage = "image:"
)

// Resolver looks up referenced blocks. Block returns (nil, nil) for an unknown
// UUID.
type Resolver interface {
	Block(ctx context.Context, uuid string, withChildren bool) (*model.Block, error)
}

// Input is what a rule sees besides the text itself.
type Input struct {
	Ctx      context.Context
	Block    *model.Block
	Config   model.HostConfig
	Resolver Resolver
}

// UUID returns the block id, or "" for a title.
func (in *Input) UUID() string {
	if in.Block == nil {
		return ""
	}
	return in.Block.UUID
}

// Options returns the block options, or zero options for a title.
func (in *Input) Options() model.BlockOptions {
	if in.Block == nil {
		return model.BlockOptions{}
	}
	return in.Block.Options
}

// Rule is one named rewrite step.
type Rule struct {
	Name  string
	Group string
	Match func(s string, in *Input) bool
	Apply func(s string, in *Input) (string, error)
}

// Transformer applies the rule list.
type Transformer struct {
	resolver Resolver
	rules    []Rule
}

// New returns a transformer resolving references through r.
func New(r Resolver) *Transformer {
	return &Transformer{resolver: r, rules: DefaultRules()}
}

// Rules returns the rules in application order.
func (t *Transformer) Rules() []Rule {
	return t.rules
}

// Transform rewrites content for block b under cfg. b may be nil when
// transforming a title.
func (t *Transformer) Transform(ctx context.Context, content string, b *model.Block, cfg model.HostConfig) (string, error) {
	in := &Input{Ctx: ctx, Block: b, Config: cfg, Resolver: t.resolver}
	s := content
	matched := make(map[string]bool)
	for _, r := range t.rules {
		if r.Group != "" && matched[r.Group] {
			continue
		}
		if r.Match != nil && !r.Match(s, in) {
			continue
		}
		out, err := r.Apply(s, in)
		if err != nil {
			return "", fmt.Errorf("rule %s on block %s: %w", r.Name, in.UUID(), err)
		}
		if r.Group != "" {
			matched[r.Group] = true
		}
		s = out
	}
	return s, nil
}

// Labels maps each block of a transformed tree to its label.
type Labels map[*model.Block]string

// TransformTree transforms every block of a filtered forest. Top-level
// subtrees run concurrently; each label depends only on its own block and
// the shared read-only config.
func (t *Transformer) TransformTree(ctx context.Context, blocks []*model.Block, cfg model.HostConfig) (Labels, error) {
	start := time.Now()
	labels := make(Labels, model.CountBlocks(blocks))
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(16)
	for _, b := range blocks {
		g.Go(func() error {
			local := make(Labels)
			if err := t.transformSubtree(ctx, b, cfg, local); err != nil {
				return err
			}
			mu.Lock()
			for k, v := range local {
				labels[k] = v
			}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	debug.LogTiming(fmt.Sprintf("transform %d blocks", len(labels)), time.Since(start))
	return labels, nil
}

func (t *Transformer) transformSubtree(ctx context.Context, b *model.Block, cfg model.HostConfig, out Labels) error {
	label, err := t.Transform(ctx, b.Content, b, cfg)
	if err != nil {
		return err
	}
	out[b] = strings.TrimSpace(label)
	for _, c := range b.Children {
		if err := t.transformSubtree(ctx, c, cfg, out); err != nil {
			return err
		}
	}
	return nil
}
