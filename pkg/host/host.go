// Package host declares the outline store blockmap reads from and the events
// it reacts to. Implementations live in this package (Memory) and in
// internal/datasource (graph directory and SQLite index).
package host

import (
	"context"
	"errors"

	"github.com/vanderheijden86/blockmap/pkg/model"
)

var (
	// ErrUnavailable is returned when the host cannot serve a request at all.
	ErrUnavailable = errors.New("host unavailable")
	// ErrNotFound is returned for an unknown page name.
	ErrNotFound = errors.New("not found")
)

// GraphInfo identifies the graph being read.
type GraphInfo struct {
	Name string `json:"name"`
	Path string `json:"path"`
}

// Reader is the read side of the host outline. Block returns (nil, nil) for an
// unknown UUID; a miss is not an error.
type Reader interface {
	CurrentPage(ctx context.Context) (*model.Page, error)
	Page(ctx context.Context, name string) (*model.Page, error)
	// PageBlocks returns the page's top-level blocks. Children of collapsed
	// blocks may be stubs.
	PageBlocks(ctx context.Context, name string) ([]*model.Block, error)
	Block(ctx context.Context, uuid string, withChildren bool) (*model.Block, error)
	CurrentBlock(ctx context.Context) (*model.Block, error)
	SelectedBlocks(ctx context.Context) ([]*model.Block, error)
	// LinkedReferences returns, per referencing page, the blocks that mention
	// the named page.
	LinkedReferences(ctx context.Context, name string) ([]PageRefs, error)
	NamespacePages(ctx context.Context, namespace string) ([]*model.Page, error)
	Graph(ctx context.Context) (GraphInfo, error)
	Favorites(ctx context.Context) ([]string, error)
	Recents(ctx context.Context) ([]string, error)
	Config(ctx context.Context) (model.HostConfig, error)
}

// PageRefs groups the blocks of one page that reference another page.
type PageRefs struct {
	Page   *model.Page
	Blocks []*model.Block
}

// Navigator performs host-side navigation and surface visibility changes.
type Navigator interface {
	NavigateToPage(ctx context.Context, name string) error
	NavigateToBlock(ctx context.Context, uuid string) error
	ShowSurface(ctx context.Context) error
	HideSurface(ctx context.Context) error
}

// EventKind enumerates host notifications.
type EventKind int

const (
	RouteChanged EventKind = iota
	GraphChanged
	SettingsChanged
	VisibilityChanged
)

func (k EventKind) String() string {
	switch k {
	case RouteChanged:
		return "route"
	case GraphChanged:
		return "graph"
	case SettingsChanged:
		return "settings"
	case VisibilityChanged:
		return "visibility"
	default:
		return "unknown"
	}
}

// Event is a single host notification.
type Event struct {
	Kind EventKind
	// Route is the page name for RouteChanged.
	Route string
	// Visible is the new surface state for VisibilityChanged.
	Visible bool
}

// Events is the subscription side of the host.
type Events interface {
	Subscribe(ctx context.Context) <-chan Event
}
