package datasource

import (
	"fmt"
	"net/url"
	"path"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/vanderheijden86/blockmap/pkg/model"
)

// graphSpace namespaces the UUIDs derived for blocks without an id property.
var graphSpace = uuid.MustParse("3d0f7f8e-5a2b-4c61-8e1d-9b4a6c2f7e10")

var (
	mdBulletRe   = regexp.MustCompile(`^([\t ]*)-(?:[ \t](.*))?$`)
	mdPropRe     = regexp.MustCompile(`^([A-Za-z0-9_\-]+):: ?(.*)$`)
	orgHeadRe    = regexp.MustCompile(`^(\*+)[ \t]+(.*)$`)
	orgPropRe    = regexp.MustCompile(`^[ \t]*:([A-Za-z0-9_\-]+):[ \t]*(.*)$`)
	orgKeywordRe = regexp.MustCompile(`^#\+([A-Za-z0-9_\-]+):[ \t]*(.*)$`)
)

// ParsedPage is one note file turned into a page and its block forest.
type ParsedPage struct {
	Rel     string
	Page    *model.Page
	Blocks  []*model.Block
	ModTime time.Time
}

// PageNameFromPath derives the page name from a file path relative to the
// graph root. Journal files are named by their date.
func PageNameFromPath(rel string) (name string, journal bool) {
	base := strings.TrimSuffix(path.Base(rel), path.Ext(rel))
	if strings.HasPrefix(rel, "journals/") {
		if t, err := time.Parse("2006_01_02", base); err == nil {
			return JournalTitle(t), true
		}
	}
	base = strings.ReplaceAll(base, "___", "/")
	if un, err := url.PathUnescape(base); err == nil {
		base = un
	}
	return base, false
}

// JournalTitle formats a journal date like "Jan 2nd, 2024".
func JournalTitle(t time.Time) string {
	return fmt.Sprintf("%s %d%s, %d", t.Format("Jan"), t.Day(), ordinal(t.Day()), t.Year())
}

func ordinal(d int) string {
	if d%100 >= 11 && d%100 <= 13 {
		return "th"
	}
	switch d % 10 {
	case 1:
		return "st"
	case 2:
		return "nd"
	case 3:
		return "rd"
	}
	return "th"
}

// ParseFile parses a markdown or org note.
func ParseFile(rel string, src []byte) (*ParsedPage, error) {
	name, journal := PageNameFromPath(rel)
	text := strings.ReplaceAll(string(src), "\r\n", "\n")

	var (
		props  map[string]any
		blocks []*model.Block
		err    error
	)
	if IsOrg(rel) {
		props, blocks = parseOrg(text)
	} else {
		props, blocks, err = parseMarkdown(text)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", rel, err)
		}
	}

	page := &model.Page{Name: name, OriginalName: name, Properties: props, Journal: journal}
	if title, ok := props["title"].(string); ok && strings.TrimSpace(title) != "" {
		page.Name = strings.TrimSpace(title)
		page.OriginalName = page.Name
	}
	key := model.NormalizePageName(page.Name)
	assignIDs(rel, blocks, "", key)
	return &ParsedPage{Rel: rel, Page: page, Blocks: blocks}, nil
}

// assignIDs derives a stable UUID from the file and tree position for every
// block without an id property, and records the owning page.
func assignIDs(rel string, blocks []*model.Block, prefix, page string) {
	for i, b := range blocks {
		pos := prefix + strconv.Itoa(i)
		if b.UUID == "" {
			b.UUID = uuid.NewSHA1(graphSpace, []byte(rel+"#"+pos)).String()
		}
		b.PageName = page
		assignIDs(rel, b.Children, pos+".", page)
	}
}

// parseValue types a property value: booleans and integers are converted,
// everything else stays a string.
func parseValue(s string) any {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "true":
		return true
	case "false":
		return false
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return s
}

type mdFrame struct {
	width int
	block *model.Block
	lines []string
}

func indentWidth(s string) int {
	w := 0
	for _, r := range s {
		if r == '\t' {
			w += 2
		} else {
			w++
		}
	}
	return w
}

func parseMarkdown(text string) (map[string]any, []*model.Block, error) {
	props := make(map[string]any)

	if strings.HasPrefix(text, "---\n") {
		if end := strings.Index(text[4:], "\n---"); end >= 0 {
			front := text[4 : 4+end]
			if err := yaml.Unmarshal([]byte(front), &props); err != nil {
				return nil, nil, fmt.Errorf("front matter: %w", err)
			}
			text = strings.TrimPrefix(text[4+end+4:], "\n")
		}
	}

	var (
		roots    []*model.Block
		stack    []*mdFrame
		all      []*mdFrame
		preamble []string
		inFence  bool
		started  bool
	)
	for _, line := range strings.Split(text, "\n") {
		if !inFence {
			if m := mdBulletRe.FindStringSubmatch(line); m != nil {
				started = true
				f := &mdFrame{width: indentWidth(m[1]), block: &model.Block{}}
				f.lines = append(f.lines, m[2])
				for len(stack) > 0 && stack[len(stack)-1].width >= f.width {
					stack = stack[:len(stack)-1]
				}
				if len(stack) == 0 {
					roots = append(roots, f.block)
				} else {
					p := stack[len(stack)-1].block
					p.Children = append(p.Children, f.block)
				}
				stack = append(stack, f)
				all = append(all, f)
				inFence = strings.Count(m[2], "```")%2 == 1
				continue
			}
		}
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			inFence = !inFence
		}
		if !started {
			preamble = append(preamble, line)
			continue
		}
		if len(stack) == 0 {
			continue
		}
		f := stack[len(stack)-1]
		f.lines = append(f.lines, continuation(line, f.width))
	}

	var rest []string
	for _, l := range preamble {
		if m := mdPropRe.FindStringSubmatch(strings.TrimSpace(l)); m != nil {
			props[strings.ToLower(m[1])] = parseValue(m[2])
			continue
		}
		rest = append(rest, l)
	}
	if pre := strings.TrimSpace(strings.Join(rest, "\n")); pre != "" {
		roots = append([]*model.Block{{Content: pre}}, roots...)
	}

	for _, f := range all {
		finishBlock(f.block, f.lines)
	}
	return props, roots, nil
}

// continuation strips the bullet indentation plus the two columns of "- ".
func continuation(line string, width int) string {
	want := width + 2
	i, w := 0, 0
	for i < len(line) && w < want && (line[i] == ' ' || line[i] == '\t') {
		if line[i] == '\t' {
			w += 2
		} else {
			w++
		}
		i++
	}
	return line[i:]
}

// finishBlock sets content and properties from the raw lines. The id and
// collapsed properties are host bookkeeping and leave the content.
func finishBlock(b *model.Block, lines []string) {
	var kept []string
	inFence := false
	for _, l := range lines {
		if strings.HasPrefix(strings.TrimSpace(l), "```") {
			inFence = !inFence
		}
		if !inFence {
			if m := mdPropRe.FindStringSubmatch(strings.TrimSpace(l)); m != nil {
				key := strings.ToLower(m[1])
				val := parseValue(m[2])
				switch key {
				case "id":
					b.UUID = strings.TrimSpace(m[2])
					continue
				case "collapsed":
					b.Collapsed = val == true
					continue
				}
				if b.Properties == nil {
					b.Properties = make(map[string]any)
				}
				b.Properties[key] = val
			}
		}
		kept = append(kept, l)
	}
	for len(kept) > 0 && strings.TrimSpace(kept[len(kept)-1]) == "" {
		kept = kept[:len(kept)-1]
	}
	b.Content = strings.Join(kept, "\n")
}

func parseOrg(text string) (map[string]any, []*model.Block) {
	props := make(map[string]any)
	var (
		roots   []*model.Block
		stack   []*mdFrame
		all     []*mdFrame
		started bool
	)
	for _, line := range strings.Split(text, "\n") {
		if m := orgHeadRe.FindStringSubmatch(line); m != nil {
			started = true
			f := &mdFrame{width: len(m[1]), block: &model.Block{}}
			f.lines = append(f.lines, m[2])
			for len(stack) > 0 && stack[len(stack)-1].width >= f.width {
				stack = stack[:len(stack)-1]
			}
			if len(stack) == 0 {
				roots = append(roots, f.block)
			} else {
				p := stack[len(stack)-1].block
				p.Children = append(p.Children, f.block)
			}
			stack = append(stack, f)
			all = append(all, f)
			continue
		}
		if !started {
			if m := orgKeywordRe.FindStringSubmatch(strings.TrimSpace(line)); m != nil {
				props[strings.ToLower(m[1])] = parseValue(m[2])
			}
			continue
		}
		f := stack[len(stack)-1]
		f.lines = append(f.lines, strings.TrimLeft(line, " \t"))
	}
	for _, f := range all {
		finishOrgBlock(f.block, f.lines)
	}
	return props, roots
}

// finishOrgBlock moves the :PROPERTIES: drawer into Properties.
func finishOrgBlock(b *model.Block, lines []string) {
	var kept []string
	inDrawer := false
	for _, l := range lines {
		t := strings.TrimSpace(l)
		switch {
		case strings.EqualFold(t, ":PROPERTIES:"):
			inDrawer = true
			continue
		case inDrawer && strings.EqualFold(t, ":END:"):
			inDrawer = false
			continue
		case inDrawer:
			if m := orgPropRe.FindStringSubmatch(l); m != nil {
				key := strings.ToLower(m[1])
				switch key {
				case "id":
					b.UUID = strings.TrimSpace(m[2])
				case "collapsed":
					b.Collapsed = parseValue(m[2]) == true
				default:
					if b.Properties == nil {
						b.Properties = make(map[string]any)
					}
					b.Properties[key] = parseValue(m[2])
				}
			}
			continue
		}
		kept = append(kept, l)
	}
	for len(kept) > 0 && strings.TrimSpace(kept[len(kept)-1]) == "" {
		kept = kept[:len(kept)-1]
	}
	b.Content = strings.Join(kept, "\n")
}
