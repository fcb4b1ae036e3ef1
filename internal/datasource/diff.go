package datasource

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/vanderheijden86/blockmap/pkg/model"
)

// SourceDiff describes how an index has drifted from its graph directory.
type SourceDiff struct {
	SourceA string
	SourceB string
	// MissingInA holds page keys present in B only.
	MissingInA []string
	// MissingInB holds page keys present in A only.
	MissingInB []string
	// BlockMismatch holds pages whose block counts differ.
	BlockMismatch []BlockDifference
	CountA        int
	CountB        int
}

// BlockDifference is a per-page block count mismatch.
type BlockDifference struct {
	Page   string `json:"page"`
	CountA int    `json:"count_a"`
	CountB int    `json:"count_b"`
}

// HasInconsistencies reports whether the sources differ.
func (d SourceDiff) HasInconsistencies() bool {
	return len(d.MissingInA) > 0 || len(d.MissingInB) > 0 || len(d.BlockMismatch) > 0
}

// Summary returns a human-readable summary of the differences.
func (d SourceDiff) Summary() string {
	if !d.HasInconsistencies() {
		return fmt.Sprintf("Sources match (%d pages each)", d.CountA)
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "Inconsistencies found between %s and %s:\n", d.SourceA, d.SourceB)
	if d.CountA != d.CountB {
		fmt.Fprintf(&sb, "  - Page count mismatch: %d vs %d\n", d.CountA, d.CountB)
	}
	list := func(ids []string, in, notIn string) {
		if len(ids) == 0 {
			return
		}
		fmt.Fprintf(&sb, "  - %d pages in %s but not %s\n", len(ids), in, notIn)
		if len(ids) <= 5 {
			for _, id := range ids {
				fmt.Fprintf(&sb, "    - %s\n", id)
			}
		}
	}
	list(d.MissingInA, d.SourceB, d.SourceA)
	list(d.MissingInB, d.SourceA, d.SourceB)
	if len(d.BlockMismatch) > 0 {
		fmt.Fprintf(&sb, "  - %d pages with different block counts\n", len(d.BlockMismatch))
		if len(d.BlockMismatch) <= 5 {
			for _, m := range d.BlockMismatch {
				fmt.Fprintf(&sb, "    - %s: %d vs %d\n", m.Page, m.CountA, m.CountB)
			}
		}
	}
	return sb.String()
}

// PageCounts maps page keys to their block counts.
type PageCounts map[string]int

// GraphCounts counts the blocks of every parsed page.
func GraphCounts(g *Graph) PageCounts {
	out := make(PageCounts)
	for _, p := range g.Pages() {
		out[model.NormalizePageName(p.Page.Name)] = model.CountBlocks(p.Blocks)
	}
	return out
}

// StoreCounts counts the indexed blocks of every page.
func StoreCounts(ctx context.Context, st *Store) (PageCounts, error) {
	out := make(PageCounts)
	rows, err := st.db.QueryContext(ctx,
		`SELECT p.name, COUNT(b.uuid) FROM pages p LEFT JOIN blocks b ON b.page = p.name GROUP BY p.name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var name string
		var n int
		if err := rows.Scan(&name, &n); err != nil {
			return nil, err
		}
		out[name] = n
	}
	return out, rows.Err()
}

// DiffCounts compares two page count sets.
func DiffCounts(a, b PageCounts, sourceA, sourceB string) SourceDiff {
	d := SourceDiff{SourceA: sourceA, SourceB: sourceB, CountA: len(a), CountB: len(b)}
	for k, na := range a {
		nb, ok := b[k]
		if !ok {
			d.MissingInB = append(d.MissingInB, k)
			continue
		}
		if na != nb {
			d.BlockMismatch = append(d.BlockMismatch, BlockDifference{Page: k, CountA: na, CountB: nb})
		}
	}
	for k := range b {
		if _, ok := a[k]; !ok {
			d.MissingInA = append(d.MissingInA, k)
		}
	}
	sort.Strings(d.MissingInA)
	sort.Strings(d.MissingInB)
	sort.Slice(d.BlockMismatch, func(i, j int) bool { return d.BlockMismatch[i].Page < d.BlockMismatch[j].Page })
	return d
}

// CompareIndex reports how st has drifted from the scanned graph g.
func CompareIndex(ctx context.Context, g *Graph, st *Store) (SourceDiff, error) {
	sc, err := StoreCounts(ctx, st)
	if err != nil {
		return SourceDiff{}, fmt.Errorf("count index: %w", err)
	}
	return DiffCounts(GraphCounts(g), sc, g.Dir, st.Path()), nil
}
