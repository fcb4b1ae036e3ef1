package transform

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/vanderheijden86/blockmap/pkg/model"
)

// Rule names.
const (
	RuleStripProperties = "strip-properties"
	RuleTable           = "table"
	RuleAdmonition      = "admonition"
	RuleQuery           = "query"
	RuleBlockquote      = "blockquote"
	RuleMacros          = "macros"
	RuleEquations       = "equations"
	RuleTags            = "tags"
	RuleWorkflow        = "workflow"
	RuleReferences      = "block-references"
	RuleOrg             = "org-format"
	RuleHeadings        = "headings"
	RulePageLinks       = "page-links"
	RuleURLs            = "urls"
	RuleTruncate        = "truncate"
	RuleBackground      = "background"
	RuleCodeFences      = "code-fences"
	RuleFootnotes       = "footnotes"

	groupBlockKind = "block-kind"
)

// DefaultRules returns the rule list in application order.
func DefaultRules() []Rule {
	return []Rule{
		{Name: RuleStripProperties, Apply: pure(model.StripProperties)},
		{Name: RuleTable, Group: groupBlockKind, Match: isTable, Apply: pure(summarizeTable)},
		{Name: RuleAdmonition, Group: groupBlockKind, Match: matches(admonitionRe), Apply: pure(admonition)},
		{Name: RuleQuery, Group: groupBlockKind, Match: isQuery, Apply: query},
		{Name: RuleBlockquote, Match: matches(blockquoteRe), Apply: pure(blockquote)},
		{Name: RuleMacros, Match: contains("{{"), Apply: pure(macros)},
		{Name: RuleEquations, Match: func(s string, in *Input) bool {
			return in.Config.EnableEquations && strings.Contains(s, "$$")
		}, Apply: pure(equations)},
		{Name: RuleTags, Match: contains("#"), Apply: pure(tags)},
		{Name: RuleWorkflow, Match: matches(workflowRe), Apply: workflow},
		{Name: RuleReferences, Match: hasReference, Apply: resolveReferences},
		{Name: RuleOrg, Match: func(_ string, in *Input) bool { return in.Config.IsOrg() }, Apply: orgToMarkdown},
		{Name: RuleHeadings, Match: matches(headingRe), Apply: pure(stripHeading)},
		{Name: RulePageLinks, Match: hasPageLink, Apply: pageLinks},
		{Name: RuleURLs, Match: contains("://"), Apply: pure(bracketURLs)},
		{Name: RuleTruncate, Match: func(_ string, in *Input) bool { return in.Options().TruncateAt > 0 }, Apply: truncateRule},
		{Name: RuleBackground, Match: func(_ string, in *Input) bool { return in.Options().BackgroundColor != "" }, Apply: backgroundRule},
		{Name: RuleCodeFences, Match: func(s string, _ *Input) bool {
			return strings.Contains(s, "```") || strings.Contains(s, "~~~")
		}, Apply: pure(fixFences)},
		{Name: RuleFootnotes, Match: contains("[^"), Apply: pure(escapeFootnotes)},
	}
}

func pure(fn func(string) string) func(string, *Input) (string, error) {
	return func(s string, _ *Input) (string, error) { return fn(s), nil }
}

func matches(re *regexp.Regexp) func(string, *Input) bool {
	return func(s string, _ *Input) bool { return re.MatchString(s) }
}

func contains(sub string) func(string, *Input) bool {
	return func(s string, _ *Input) bool { return strings.Contains(s, sub) }
}

var tableRowRe = regexp.MustCompile(`^\s*\|.*\|\s*$`)

func isTable(s string, _ *Input) bool {
	lines := strings.Split(s, "\n")
	return len(lines) >= 2 && tableRowRe.MatchString(lines[0]) && tableRowRe.MatchString(lines[1])
}

func summarizeTable(s string) string {
	header := strings.Split(s, "\n")[0]
	var cells []string
	for _, c := range strings.Split(strings.Trim(strings.TrimSpace(header), "|"), "|") {
		if c = strings.TrimSpace(c); c != "" {
			cells = append(cells, c)
		}
	}
	return "📊 " + strings.Join(cells, ", ")
}

var admonitionRe = regexp.MustCompile(`(?is)#\+BEGIN_(WARNING|NOTE|TIP|CAUTION|PINNED|IMPORTANT|QUOTE|CENTER)[ \t]*\n?(.*?)\n?[ \t]*#\+END_(?:WARNING|NOTE|TIP|CAUTION|PINNED|IMPORTANT|QUOTE|CENTER)`)

var admonitionIcons = map[string]string{
	"WARNING":   "⚠️",
	"NOTE":      "ℹ️",
	"TIP":       "💡",
	"CAUTION":   "🔥",
	"PINNED":    "📌",
	"IMPORTANT": "❗",
	"QUOTE":     "💬",
	"CENTER":    "↔️",
}

func admonition(s string) string {
	return admonitionRe.ReplaceAllStringFunc(s, func(m string) string {
		sub := admonitionRe.FindStringSubmatch(m)
		inner := strings.Join(strings.Fields(sub[2]), " ")
		return admonitionIcons[strings.ToUpper(sub[1])] + " " + inner
	})
}

var (
	advancedQueryRe = regexp.MustCompile(`(?is)#\+BEGIN_QUERY.*?#\+END_QUERY`)
	simpleQueryRe   = regexp.MustCompile(`\{\{query\s+(.*?)\}\}`)
)

func isQuery(s string, _ *Input) bool {
	return advancedQueryRe.MatchString(s) || simpleQueryRe.MatchString(s)
}

func query(s string, in *Input) (string, error) {
	target := SchemeBlock + in.UUID()
	s = advancedQueryRe.ReplaceAllString(s, "🔍 ["+"query"+"]("+target+")")
	s = simpleQueryRe.ReplaceAllStringFunc(s, func(m string) string {
		expr := simpleQueryRe.FindStringSubmatch(m)[1]
		expr = strings.NewReplacer("[[", "", "]]", "", "[", "", "]", "").Replace(expr)
		return "🔍 [" + strings.TrimSpace(expr) + "](" + target + ")"
	})
	return s, nil
}

var blockquoteRe = regexp.MustCompile(`(?m)^>[ \t]+`)

func blockquote(s string) string {
	return blockquoteRe.ReplaceAllString(s, "💬 ")
}

var (
	rendererRe = regexp.MustCompile(`\{\{renderer\s[^}]*\}\}`)
	clozeRe    = regexp.MustCompile(`\{\{cloze\s+(.*?)\}\}`)
)

func macros(s string) string {
	s = rendererRe.ReplaceAllString(s, "[renderer]")
	return clozeRe.ReplaceAllString(s, "$1")
}

var equationRe = regexp.MustCompile(`(?s)\$\$(.+?)\$\$`)

func equations(s string) string {
	return equationRe.ReplaceAllString(s, "$$$1$$")
}

var (
	bracketTagRe = regexp.MustCompile(`(^|\s)#\[\[([^\[\]]+)\]\]`)
	tagRe        = regexp.MustCompile(`(^|\s)#([^\s#+\[\]()"',.;:!?<>{}]+)`)
)

func tags(s string) string {
	return outsideLinks(s, func(s string) string {
		s = bracketTagRe.ReplaceAllStringFunc(s, func(m string) string {
			sub := bracketTagRe.FindStringSubmatch(m)
			return sub[1] + PageAnchor("#"+sub[2], sub[2])
		})
		return tagRe.ReplaceAllStringFunc(s, func(m string) string {
			sub := tagRe.FindStringSubmatch(m)
			return sub[1] + PageAnchor("#"+sub[2], sub[2])
		})
	})
}

// linkSpanRe matches a linked image, a labeled block reference or a plain
// markdown link or image.
var linkSpanRe = regexp.MustCompile(
	`\[!\[[^\[\]]*\]\([^)]*\)\]\([^)]*\)` +
		`|\[[^\[\]]*\]\(\(\([^()]*\)\)\)` +
		`|!?\[[^\[\]]*\]\([^)]*\)`)

// outsideLinks applies fn to s with every link span swapped for a marker, so
// fn cannot rewrite link text or destinations.
func outsideLinks(s string, fn func(string) string) string {
	var kept []string
	s = linkSpanRe.ReplaceAllStringFunc(s, func(m string) string {
		kept = append(kept, m)
		return linkMarker(len(kept) - 1)
	})
	s = fn(s)
	for i, k := range kept {
		s = strings.Replace(s, linkMarker(i), k, 1)
	}
	return s
}

// Tag and URL patterns stop at the angle brackets around a marker.
func linkMarker(i int) string {
	return "<bmlink" + strconv.Itoa(i) + ">"
}

// PageAnchor renders a navigation link to a page.
func PageAnchor(label, page string) string {
	return "[" + label + "](" + SchemePage + url.PathEscape(page) + ")"
}

// BlockAnchor renders a navigation link to a block.
func BlockAnchor(label, uuid string) string {
	return "[" + label + "](" + SchemeBlock + uuid + ")"
}

// ParseAnchor splits a link destination into scheme and target. ok is false
// for ordinary URLs.
func ParseAnchor(dest string) (scheme, target string, ok bool) {
	for _, sc := range []string{SchemePage, SchemeBlock, SchemeImage} {
		if rest, found := strings.CutPrefix(dest, sc); found {
			if sc == SchemePage {
				if un, err := url.PathUnescape(rest); err == nil {
					rest = un
				}
			}
			return sc, rest, true
		}
	}
	return "", "", false
}

// Workflow badge colors.
var workflowColors = map[string]string{
	"TODO":      "#845EC2",
	"DOING":     "#FF8066",
	"DONE":      "#008B74",
	"NOW":       "#006C9A",
	"LATER":     "#911F27",
	"WAITING":   "#C4A35A",
	"CANCELLED": "#6B6B6B",
	"CANCELED":  "#6B6B6B",
}

var workflowRe = regexp.MustCompile(`^(TODO|DOING|DONE|LATER|NOW|WAITING|CANCELLED|CANCELED) `)

func workflow(s string, in *Input) (string, error) {
	return badge(s, in.UUID()), nil
}

// badge replaces a leading workflow keyword with a colored status badge
// carrying the block id.
func badge(s, uuid string) string {
	return workflowRe.ReplaceAllStringFunc(s, func(m string) string {
		kw := strings.TrimSpace(m)
		return `<code class="status" data-block="` + uuid + `" data-status="` + kw +
			`" style="background: ` + workflowColors[kw] + `; color: #eee">` + kw + `</code> `
	})
}

var headingRe = regexp.MustCompile(`^#{1,6}[ \t]+`)

func stripHeading(s string) string {
	return headingRe.ReplaceAllString(s, "")
}

var (
	pageEmbedRe = regexp.MustCompile(`\{\{embed\s+\[\[([^\[\]]+)\]\]\s*\}\}`)
	pageLinkRe  = regexp.MustCompile(`\[\[([^\[\]]+)\]\]`)
	assetRe     = regexp.MustCompile(`!\[([^\]]*)\]\((?:\.\./)*assets/([^)\s]+)\)`)
)

func hasPageLink(s string, _ *Input) bool {
	return strings.Contains(s, "[[") || assetRe.MatchString(s)
}

func pageLinks(s string, in *Input) (string, error) {
	s = pageEmbedRe.ReplaceAllStringFunc(s, func(m string) string {
		p := pageEmbedRe.FindStringSubmatch(m)[1]
		return "📄 " + PageAnchor(p, p)
	})
	s = assetRe.ReplaceAllStringFunc(s, func(m string) string {
		sub := assetRe.FindStringSubmatch(m)
		path := AssetPath(in.Config.AssetPrefix, sub[2])
		return "[![" + sub[1] + "](" + path + ")](" + SchemeImage + path + ")"
	})
	return pageLinkRe.ReplaceAllStringFunc(s, func(m string) string {
		p := pageLinkRe.FindStringSubmatch(m)[1]
		return PageAnchor(p, p)
	}), nil
}

// AssetPath joins the host asset prefix with a path below assets/.
func AssetPath(prefix, rel string) string {
	prefix = strings.TrimSuffix(prefix, "/")
	if prefix == "" {
		return "assets/" + rel
	}
	return prefix + "/assets/" + rel
}

var urlRe = regexp.MustCompile(`https?://[^\s<>()\[\]"']+`)

func bracketURLs(s string) string {
	return outsideLinks(s, bracketBareURLs)
}

func bracketBareURLs(s string) string {
	locs := urlRe.FindAllStringIndex(s, -1)
	if len(locs) == 0 {
		return s
	}
	var b strings.Builder
	last := 0
	for _, loc := range locs {
		start, end := loc[0], loc[1]
		if start > 0 && strings.ContainsRune("(<\"'=[", rune(s[start-1])) {
			continue
		}
		// trailing sentence punctuation is not part of the URL
		for end > start && strings.ContainsRune(".,;:!?", rune(s[end-1])) {
			end--
		}
		u := s[start:end]
		b.WriteString(s[last:start])
		b.WriteString("[" + u + "](" + u + ")")
		last = end
	}
	b.WriteString(s[last:])
	return b.String()
}

func escapeFootnotes(s string) string {
	return strings.ReplaceAll(s, "[^", `[\^`)
}
