package loader

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/vanderheijden86/blockmap/pkg/model"
)

// LoadLinkedReferences builds a tree of the blocks that reference the named
// page, grouped under one synthetic block per referencing page.
func (l *Loader) LoadLinkedReferences(ctx context.Context, name string) (*Tree, error) {
	page, err := l.host.Page(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("load page %q: %w", name, err)
	}
	page = withPageOptions(page)
	refs, err := l.host.LinkedReferences(ctx, page.Name)
	if err != nil {
		return nil, fmt.Errorf("linked references of %q: %w", name, err)
	}

	var groups []*model.Block
	for _, r := range refs {
		if r.Page == nil || len(r.Blocks) == 0 {
			continue
		}
		blocks, err := l.Materialize(ctx, r.Blocks)
		if err != nil {
			return nil, err
		}
		if len(blocks) == 0 {
			continue
		}
		groups = append(groups, &model.Block{
			UUID:     "refs:" + r.Page.Name,
			Content:  "[[" + r.Page.DisplayName() + "]]",
			Children: blocks,
			PageName: r.Page.Name,
		})
	}
	if len(groups) == 0 {
		return nil, fmt.Errorf("%s: %w", page.DisplayName(), ErrNoLinkedReferences)
	}
	return &Tree{Title: pageTitle(page), Page: page, Blocks: groups}, nil
}

// LoadNamespace builds a tree of page links for the pages under ns. Missing
// intermediate pages still get a link so the hierarchy stays intact.
func (l *Loader) LoadNamespace(ctx context.Context, ns string) (*Tree, error) {
	pages, err := l.host.NamespacePages(ctx, ns)
	if err != nil {
		return nil, fmt.Errorf("namespace %q: %w", ns, err)
	}
	root := strings.TrimSuffix(strings.TrimSpace(ns), "/")
	tree := &Tree{Title: root}
	if p, err := l.host.Page(ctx, root); err == nil {
		tree.Page = withPageOptions(p)
		tree.Title = pageTitle(tree.Page)
	}

	sort.Slice(pages, func(i, j int) bool { return pages[i].DisplayName() < pages[j].DisplayName() })

	byPath := make(map[string]*model.Block)
	for _, p := range pages {
		rel, ok := namespaceRel(p, root)
		if !ok || rel == "" {
			continue
		}
		parts := strings.Split(rel, "/")
		path := root
		var parent *model.Block
		for _, part := range parts {
			path += "/" + part
			key := model.NormalizePageName(path)
			b, ok := byPath[key]
			if !ok {
				b = &model.Block{UUID: "ns:" + key, Content: "[[" + path + "]]", PageName: key}
				byPath[key] = b
				if parent == nil {
					tree.Blocks = append(tree.Blocks, b)
				} else {
					parent.Children = append(parent.Children, b)
				}
			}
			parent = b
		}
	}
	return tree, nil
}

// namespaceRel returns the part of p's name below root, matching root
// case-insensitively. ok is false when p is not under root.
func namespaceRel(p *model.Page, root string) (string, bool) {
	name := p.DisplayName()
	if len(name) > len(root) && name[len(root)] == '/' && strings.EqualFold(name[:len(root)], root) {
		return name[len(root)+1:], true
	}
	return strings.CutPrefix(model.NormalizePageName(p.Name), model.NormalizePageName(root)+"/")
}
