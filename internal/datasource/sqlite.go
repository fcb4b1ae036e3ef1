package datasource

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	_ "modernc.org/sqlite"

	"github.com/vanderheijden86/blockmap/pkg/host"
	"github.com/vanderheijden86/blockmap/pkg/metrics"
	"github.com/vanderheijden86/blockmap/pkg/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS pages (
	name          TEXT PRIMARY KEY,
	original_name TEXT NOT NULL,
	properties    TEXT,
	journal       INTEGER NOT NULL DEFAULT 0,
	rel           TEXT,
	mod_time      INTEGER
);
CREATE TABLE IF NOT EXISTS blocks (
	uuid       TEXT PRIMARY KEY,
	page       TEXT NOT NULL,
	parent     TEXT NOT NULL DEFAULT '',
	position   INTEGER NOT NULL,
	content    TEXT NOT NULL,
	properties TEXT,
	collapsed  INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_blocks_tree ON blocks(page, parent, position);
CREATE INDEX IF NOT EXISTS idx_blocks_parent ON blocks(parent, position);
CREATE TABLE IF NOT EXISTS meta (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`

// meta keys
const (
	metaGraphName    = "graph_name"
	metaGraphPath    = "graph_path"
	metaConfig       = "config"
	metaCurrentPage  = "current_page"
	metaCurrentBlock = "current_block"
	metaSelected     = "selected"
	metaFavorites    = "favorites"
	metaIndexedAt    = "indexed_at"
)

// Store is an SQLite index of a graph. It implements host.Reader.
type Store struct {
	db   *sql.DB
	path string
}

var _ host.Reader = (*Store)(nil)

// OpenStore opens (creating if needed) the index at path.
func OpenStore(path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("cannot open database: %w", err)
	}
	// Best effort; older builds may reject some pragmas.
	for _, pragma := range []string{
		"PRAGMA cache_size = -64000",
		"PRAGMA temp_store = MEMORY",
	} {
		_, _ = db.Exec(pragma)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{db: db, path: path}, nil
}

// Path returns the database file path.
func (s *Store) Path() string { return s.path }

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// IndexStats summarizes a WriteGraph call.
type IndexStats struct {
	Pages  int
	Blocks int
}

// WriteGraph replaces the index contents with g in one transaction.
func (s *Store) WriteGraph(ctx context.Context, g *Graph, cfg model.HostConfig) (IndexStats, error) {
	defer metrics.Timer(metrics.IndexWrite)()
	var stats IndexStats
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return stats, err
	}
	defer tx.Rollback()

	for _, q := range []string{"DELETE FROM blocks", "DELETE FROM pages"} {
		if _, err := tx.ExecContext(ctx, q); err != nil {
			return stats, err
		}
	}
	pageStmt, err := tx.PrepareContext(ctx,
		`INSERT OR REPLACE INTO pages (name, original_name, properties, journal, rel, mod_time) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return stats, err
	}
	defer pageStmt.Close()
	blockStmt, err := tx.PrepareContext(ctx,
		`INSERT OR REPLACE INTO blocks (uuid, page, parent, position, content, properties, collapsed) VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return stats, err
	}
	defer blockStmt.Close()

	for _, p := range g.Pages() {
		key := model.NormalizePageName(p.Page.Name)
		props, err := encodeProps(p.Page.Properties)
		if err != nil {
			return stats, fmt.Errorf("page %q: %w", p.Page.Name, err)
		}
		if _, err := pageStmt.ExecContext(ctx, key, p.Page.DisplayName(), props,
			p.Page.Journal, p.Rel, p.ModTime.Unix()); err != nil {
			return stats, fmt.Errorf("page %q: %w", p.Page.Name, err)
		}
		stats.Pages++

		var insert func(parent string, blocks []*model.Block) error
		insert = func(parent string, blocks []*model.Block) error {
			for i, b := range blocks {
				props, err := encodeProps(b.Properties)
				if err != nil {
					return err
				}
				if _, err := blockStmt.ExecContext(ctx, b.UUID, key, parent, i, b.Content, props, b.Collapsed); err != nil {
					return fmt.Errorf("block %s: %w", b.UUID, err)
				}
				stats.Blocks++
				if err := insert(b.UUID, b.Children); err != nil {
					return err
				}
			}
			return nil
		}
		if err := insert("", p.Blocks); err != nil {
			return stats, err
		}
	}

	cfgJSON, err := json.Marshal(cfg)
	if err != nil {
		return stats, err
	}
	meta := map[string]string{
		metaGraphName: g.Name,
		metaGraphPath: g.Dir,
		metaConfig:    string(cfgJSON),
		metaIndexedAt: time.Now().UTC().Format(time.RFC3339),
	}
	for k, v := range meta {
		if err := setMeta(ctx, tx, k, v); err != nil {
			return stats, err
		}
	}
	if cur := g.defaultPage(); cur != "" {
		if err := setMeta(ctx, tx, metaCurrentPage, model.NormalizePageName(cur)); err != nil {
			return stats, err
		}
	}
	return stats, tx.Commit()
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func setMeta(ctx context.Context, db execer, key, value string) error {
	_, err := db.ExecContext(ctx, `INSERT OR REPLACE INTO meta (key, value) VALUES (?, ?)`, key, value)
	return err
}

func (s *Store) meta(ctx context.Context, key string) (string, error) {
	var v string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = ?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return v, err
}

func (s *Store) metaList(ctx context.Context, key string) ([]string, error) {
	v, err := s.meta(ctx, key)
	if err != nil || v == "" {
		return nil, err
	}
	var out []string
	if err := json.Unmarshal([]byte(v), &out); err != nil {
		return nil, fmt.Errorf("meta %s: %w", key, err)
	}
	return out, nil
}

func (s *Store) setMetaList(ctx context.Context, key string, list []string) error {
	data, err := json.Marshal(list)
	if err != nil {
		return err
	}
	return setMeta(ctx, s.db, key, string(data))
}

// SetCurrentPage records the page the index opens on.
func (s *Store) SetCurrentPage(ctx context.Context, name string) error {
	key := model.NormalizePageName(name)
	if _, err := s.Page(ctx, key); err != nil {
		return err
	}
	if err := setMeta(ctx, s.db, metaCurrentPage, key); err != nil {
		return err
	}
	return setMeta(ctx, s.db, metaCurrentBlock, "")
}

// SetCurrentBlock records the block being edited.
func (s *Store) SetCurrentBlock(ctx context.Context, uuid string) error {
	return setMeta(ctx, s.db, metaCurrentBlock, uuid)
}

// SetSelected records the selected block UUIDs.
func (s *Store) SetSelected(ctx context.Context, uuids ...string) error {
	return s.setMetaList(ctx, metaSelected, uuids)
}

// SetFavorites records the favorite page names.
func (s *Store) SetFavorites(ctx context.Context, names []string) error {
	return s.setMetaList(ctx, metaFavorites, names)
}

// IndexedAt returns when the index was last written.
func (s *Store) IndexedAt(ctx context.Context) (time.Time, error) {
	v, err := s.meta(ctx, metaIndexedAt)
	if err != nil || v == "" {
		return time.Time{}, err
	}
	return time.Parse(time.RFC3339, v)
}

// CountPages returns the number of indexed pages.
func (s *Store) CountPages(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM pages`).Scan(&n)
	return n, err
}

func encodeProps(props map[string]any) (sql.NullString, error) {
	if len(props) == 0 {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(props)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

func decodeProps(s sql.NullString) map[string]any {
	if !s.Valid || s.String == "" {
		return nil
	}
	var props map[string]any
	if err := json.Unmarshal([]byte(s.String), &props); err != nil {
		return nil
	}
	// JSON numbers come back as float64; integral values were ints.
	for k, v := range props {
		if f, ok := v.(float64); ok && f == float64(int(f)) {
			props[k] = int(f)
		}
	}
	return props
}

func (s *Store) wrap(err error) error {
	return fmt.Errorf("%w: %s: %v", host.ErrUnavailable, s.path, err)
}

// CurrentPage implements host.Reader.
func (s *Store) CurrentPage(ctx context.Context) (*model.Page, error) {
	cur, err := s.meta(ctx, metaCurrentPage)
	if err != nil {
		return nil, s.wrap(err)
	}
	if cur == "" {
		return nil, nil
	}
	return s.Page(ctx, cur)
}

const pageColumns = `name, original_name, properties, journal`

func scanPage(row interface{ Scan(...any) error }) (*model.Page, error) {
	var (
		p     model.Page
		props sql.NullString
	)
	if err := row.Scan(&p.Name, &p.OriginalName, &props, &p.Journal); err != nil {
		return nil, err
	}
	p.Properties = decodeProps(props)
	p.Options, _ = model.ParsePageOptions(p.Properties)
	return &p, nil
}

// Page implements host.Reader.
func (s *Store) Page(ctx context.Context, name string) (*model.Page, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+pageColumns+` FROM pages WHERE name = ?`, model.NormalizePageName(name))
	p, err := scanPage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("page %q: %w", name, host.ErrNotFound)
	}
	if err != nil {
		return nil, s.wrap(err)
	}
	return p, nil
}

type blockRow struct {
	block  *model.Block
	parent string
}

const blockColumns = `uuid, page, parent, content, properties, collapsed`

func scanBlock(row interface{ Scan(...any) error }) (blockRow, error) {
	var (
		b     model.Block
		r     blockRow
		props sql.NullString
	)
	if err := row.Scan(&b.UUID, &b.PageName, &r.parent, &b.Content, &props, &b.Collapsed); err != nil {
		return r, err
	}
	b.Properties = decodeProps(props)
	b.Options, _ = model.ParseBlockOptions(b.Properties)
	b.Collapsed = b.Collapsed || b.Options.Collapsed
	r.block = &b
	return r, nil
}

// pageTree loads every block of a page and links them. lazy replaces the
// children of collapsed blocks with stubs.
func (s *Store) pageTree(ctx context.Context, page string, lazy bool) ([]*model.Block, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+blockColumns+` FROM blocks WHERE page = ? ORDER BY parent, position`, page)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var all []blockRow
	byID := make(map[string]*model.Block)
	for rows.Next() {
		r, err := scanBlock(rows)
		if err != nil {
			return nil, err
		}
		all = append(all, r)
		byID[r.block.UUID] = r.block
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var roots []*model.Block
	for _, r := range all {
		if r.parent == "" {
			roots = append(roots, r.block)
			continue
		}
		if p, ok := byID[r.parent]; ok {
			p.Children = append(p.Children, r.block)
		}
	}
	if lazy {
		stubCollapsed(roots)
	}
	return roots, nil
}

func stubCollapsed(blocks []*model.Block) {
	for _, b := range blocks {
		if b.Collapsed {
			for i, c := range b.Children {
				b.Children[i] = model.StubBlock(c.UUID)
			}
			continue
		}
		stubCollapsed(b.Children)
	}
}

// PageBlocks implements host.Reader.
func (s *Store) PageBlocks(ctx context.Context, name string) ([]*model.Block, error) {
	p, err := s.Page(ctx, name)
	if err != nil {
		return nil, err
	}
	blocks, err := s.pageTree(ctx, p.Name, true)
	if err != nil {
		return nil, s.wrap(err)
	}
	return blocks, nil
}

func (s *Store) childIDs(ctx context.Context, parent string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT uuid FROM blocks WHERE parent = ? ORDER BY position`, parent)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *Store) loadChildren(ctx context.Context, b *model.Block) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+blockColumns+` FROM blocks WHERE parent = ? ORDER BY position`, b.UUID)
	if err != nil {
		return err
	}
	var kids []*model.Block
	for rows.Next() {
		r, err := scanBlock(rows)
		if err != nil {
			rows.Close()
			return err
		}
		kids = append(kids, r.block)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}
	for _, k := range kids {
		if err := s.loadChildren(ctx, k); err != nil {
			return err
		}
	}
	b.Children = kids
	return nil
}

// Block implements host.Reader. Without children the direct children come
// back as stubs.
func (s *Store) Block(ctx context.Context, uuid string, withChildren bool) (*model.Block, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+blockColumns+` FROM blocks WHERE uuid = ?`, uuid)
	r, err := scanBlock(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, s.wrap(err)
	}
	b := r.block
	if withChildren {
		if err := s.loadChildren(ctx, b); err != nil {
			return nil, s.wrap(err)
		}
		return b, nil
	}
	ids, err := s.childIDs(ctx, uuid)
	if err != nil {
		return nil, s.wrap(err)
	}
	for _, id := range ids {
		b.Children = append(b.Children, model.StubBlock(id))
	}
	return b, nil
}

// CurrentBlock implements host.Reader.
func (s *Store) CurrentBlock(ctx context.Context) (*model.Block, error) {
	id, err := s.meta(ctx, metaCurrentBlock)
	if err != nil {
		return nil, s.wrap(err)
	}
	if id == "" {
		return nil, nil
	}
	return s.Block(ctx, id, true)
}

// SelectedBlocks implements host.Reader.
func (s *Store) SelectedBlocks(ctx context.Context) ([]*model.Block, error) {
	ids, err := s.metaList(ctx, metaSelected)
	if err != nil {
		return nil, s.wrap(err)
	}
	var out []*model.Block
	for _, id := range ids {
		b, err := s.Block(ctx, id, true)
		if err != nil {
			return nil, err
		}
		if b != nil {
			out = append(out, b)
		}
	}
	return out, nil
}

// LinkedReferences implements host.Reader. Candidate pages come from a LIKE
// scan; the mention rules are then applied to each candidate page tree.
func (s *Store) LinkedReferences(ctx context.Context, name string) ([]host.PageRefs, error) {
	key := model.NormalizePageName(name)
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT page FROM blocks WHERE page != ? AND lower(content) LIKE ? ESCAPE '\' ORDER BY page`,
		key, "%"+escapeLike(key)+"%")
	if err != nil {
		return nil, s.wrap(err)
	}
	var pages []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			rows.Close()
			return nil, s.wrap(err)
		}
		pages = append(pages, p)
	}
	rows.Close()

	var out []host.PageRefs
	for _, pk := range pages {
		blocks, err := s.pageTree(ctx, pk, false)
		if err != nil {
			return nil, s.wrap(err)
		}
		hits := host.CollectMentions(blocks, key)
		if len(hits) == 0 {
			continue
		}
		p, err := s.Page(ctx, pk)
		if err != nil {
			return nil, err
		}
		out = append(out, host.PageRefs{Page: p, Blocks: hits})
	}
	return out, nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// NamespacePages implements host.Reader.
func (s *Store) NamespacePages(ctx context.Context, namespace string) ([]*model.Page, error) {
	prefix := model.NormalizePageName(namespace) + "/"
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+pageColumns+` FROM pages WHERE substr(name, 1, ?) = ? ORDER BY name`, len(prefix), prefix)
	if err != nil {
		return nil, s.wrap(err)
	}
	defer rows.Close()
	var out []*model.Page
	for rows.Next() {
		p, err := scanPage(rows)
		if err != nil {
			return nil, s.wrap(err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// PageNames returns every page's display name ordered by key.
func (s *Store) PageNames(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT original_name FROM pages ORDER BY name`)
	if err != nil {
		return nil, s.wrap(err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, s.wrap(err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// Graph implements host.Reader.
func (s *Store) Graph(ctx context.Context) (host.GraphInfo, error) {
	name, err := s.meta(ctx, metaGraphName)
	if err != nil {
		return host.GraphInfo{}, s.wrap(err)
	}
	path, err := s.meta(ctx, metaGraphPath)
	if err != nil {
		return host.GraphInfo{}, s.wrap(err)
	}
	return host.GraphInfo{Name: name, Path: path}, nil
}

// Favorites implements host.Reader.
func (s *Store) Favorites(ctx context.Context) ([]string, error) {
	list, err := s.metaList(ctx, metaFavorites)
	if err != nil {
		return nil, s.wrap(err)
	}
	return list, nil
}

// Recents implements host.Reader. The index keeps only the current page.
func (s *Store) Recents(ctx context.Context) ([]string, error) {
	p, err := s.CurrentPage(ctx)
	if err != nil || p == nil {
		return nil, err
	}
	return []string{p.DisplayName()}, nil
}

// Config implements host.Reader.
func (s *Store) Config(ctx context.Context) (model.HostConfig, error) {
	cfg := model.HostConfig{PreferredFormat: model.FormatMarkdown}
	v, err := s.meta(ctx, metaConfig)
	if err != nil {
		return cfg, s.wrap(err)
	}
	if v == "" {
		return cfg, nil
	}
	if err := json.Unmarshal([]byte(v), &cfg); err != nil {
		return cfg, s.wrap(err)
	}
	return cfg, nil
}
