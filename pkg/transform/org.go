package transform

import (
	"fmt"
	"html"
	"regexp"
	"strings"
	"sync"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/strikethrough"

	"github.com/vanderheijden86/blockmap/pkg/debug"
)

var (
	convOnce sync.Once
	conv     *converter.Converter
)

func htmlConverter() *converter.Converter {
	convOnce.Do(func() {
		conv = converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
				strikethrough.NewStrikethroughPlugin(),
			),
		)
	})
	return conv
}

var (
	// spans that earlier rules produced, or that later rules must see
	// untouched
	protectRe = regexp.MustCompile(
		`<code class="status"[^>]*>[^<]*</code>` +
			`|!?\[[^\[\]]*\]\([^)]*\)` +
			`|\[\[[^\[\]]+\]\]` +
			`|\$[^$\n]+\$`)
	orgLinkRe = regexp.MustCompile(`\[\[([^\[\]]+)\]\[([^\[\]]+)\]\]`)
	orgCodeRe = regexp.MustCompile("(^|[\\s(])[~=]([^\\s~=][^~=\n]*?)[~=]($|[\\s).,;:!?])")

	orgInline = []struct {
		re  *regexp.Regexp
		tag string
	}{
		{regexp.MustCompile(`(^|[\s(])\*([^\s*][^*\n]*?)\*($|[\s).,;:!?])`), "strong"},
		{regexp.MustCompile(`(^|[\s(])/([^\s/][^/\n]*?)/($|[\s).,;:!?])`), "em"},
		{regexp.MustCompile(`(^|[\s(])\+([^\s+][^+\n]*?)\+($|[\s).,;:!?])`), "del"},
		{regexp.MustCompile(`(^|[\s(])_([^\s_][^_\n]*?)_($|[\s).,;:!?])`), "em"},
	}
)

func protectMarker(i int) string {
	return fmt.Sprintf("bmkeep%dx", i)
}

// orgToMarkdown converts org inline markup to markdown through HTML. Spans
// that must survive verbatim are swapped for alphanumeric markers first.
func orgToMarkdown(s string, _ *Input) (string, error) {
	var kept []string
	keep := func(v string) string {
		kept = append(kept, v)
		return protectMarker(len(kept) - 1)
	}

	s = orgLinkRe.ReplaceAllStringFunc(s, func(m string) string {
		sub := orgLinkRe.FindStringSubmatch(m)
		if strings.Contains(sub[1], "://") {
			return keep("[" + sub[2] + "](" + sub[1] + ")")
		}
		return keep(PageAnchor(sub[2], sub[1]))
	})
	s = protectRe.ReplaceAllStringFunc(s, keep)

	lines := strings.Split(s, "\n")
	inFence := false
	for i, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "```") || strings.HasPrefix(strings.ToUpper(strings.TrimSpace(line)), "#+BEGIN_SRC") || strings.HasPrefix(strings.ToUpper(strings.TrimSpace(line)), "#+END_SRC") {
			inFence = !inFence
			continue
		}
		if inFence || strings.TrimSpace(line) == "" {
			continue
		}
		lines[i] = convertOrgLine(line)
	}
	s = strings.Join(lines, "\n")

	for i := len(kept) - 1; i >= 0; i-- {
		s = strings.Replace(s, protectMarker(i), kept[i], 1)
	}
	return s, nil
}

func convertOrgLine(line string) string {
	h := html.EscapeString(line)
	h = orgCodeRe.ReplaceAllString(h, "$1<code>$2</code>$3")
	for _, r := range orgInline {
		// twice: adjacent spans share the separating character
		for range 2 {
			h = r.re.ReplaceAllString(h, "$1<"+r.tag+">$2</"+r.tag+">$3")
		}
	}
	md, err := htmlConverter().ConvertString("<p>" + h + "</p>")
	if err != nil {
		debug.Log("org conversion failed, keeping line: %v", err)
		return line
	}
	return strings.TrimSpace(md)
}
