package transform

import (
	"regexp"
	"strings"

	"github.com/vanderheijden86/blockmap/pkg/model"
)

const uuidPattern = `[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}`

var (
	embedRefRe     = regexp.MustCompile(`\{\{embed\s+\(\((` + uuidPattern + `)\)\)\s*\}\}`)
	labeledRefRe   = regexp.MustCompile(`\[([^\[\]]*)\]\(\(\((` + uuidPattern + `)\)\)\)`)
	labeledPageRe  = regexp.MustCompile(`\[([^\[\]]+)\]\(\[\[([^\[\]]+)\]\]\)`)
	bareRefRe      = regexp.MustCompile(`\(\((` + uuidPattern + `)\)\)`)
	innerPageRe    = regexp.MustCompile(`\[\[([^\[\]]+)\]\]`)
	highlightPrefx = "hls__"
)

func hasReference(s string, _ *Input) bool {
	return strings.Contains(s, "((") || labeledPageRe.MatchString(s)
}

// resolveReferences substitutes every block reference form. Each found
// block becomes an anchor around its own display text; anything else
// becomes MissMarker.
func resolveReferences(s string, in *Input) (string, error) {
	var err error
	s, err = replaceErr(embedRefRe, s, func(sub []string) (string, error) {
		return refAnchor(in, sub[1], "")
	})
	if err != nil {
		return "", err
	}
	s, err = replaceErr(labeledRefRe, s, func(sub []string) (string, error) {
		return refAnchor(in, sub[2], sub[1])
	})
	if err != nil {
		return "", err
	}
	s = labeledPageRe.ReplaceAllStringFunc(s, func(m string) string {
		sub := labeledPageRe.FindStringSubmatch(m)
		return PageAnchor(sub[1], sub[2])
	})
	return replaceErr(bareRefRe, s, func(sub []string) (string, error) {
		return refAnchor(in, sub[1], "")
	})
}

func refAnchor(in *Input, uuid, label string) (string, error) {
	if in.Resolver == nil {
		return MissMarker, nil
	}
	b, err := in.Resolver.Block(in.Ctx, uuid, false)
	if err != nil {
		return "", err
	}
	if b == nil || b.Stub {
		return MissMarker, nil
	}
	if img, ok := highlightImage(b, in.Config.AssetPrefix); ok {
		return img, nil
	}
	text := RefText(b)
	if text == "" {
		return MissMarker, nil
	}
	if label != "" {
		text = label
	}
	return BlockAnchor(text, b.UUID), nil
}

// RefText is the display text of a referenced block: its first-level text
// without properties or heading markers, with the status badge applied and
// nested links flattened.
func RefText(b *model.Block) string {
	s := model.StripProperties(b.Content)
	s = stripHeading(s)
	s = badge(s, b.UUID)
	s = innerPageRe.ReplaceAllString(s, "$1")
	s = bareRefRe.ReplaceAllString(s, "")
	s = strings.NewReplacer("[", "", "]", "").Replace(strings.Join(strings.Fields(s), " "))
	return strings.TrimSpace(s)
}

// highlightImage renders a PDF area highlight as a thumbnail anchor.
func highlightImage(b *model.Block, prefix string) (string, bool) {
	if !strings.EqualFold(model.PropString(b.Properties, "hl-type"), "area") {
		return "", false
	}
	page := model.PropString(b.Properties, "hl-page")
	stamp := model.PropString(b.Properties, "hl-stamp")
	key, ok := strings.CutPrefix(b.PageName, highlightPrefx)
	if !ok || page == "" || stamp == "" {
		return "", false
	}
	path := AssetPath(prefix, key+"/"+page+"_"+b.UUID+"_"+stamp+".png")
	return "[![p. " + page + "](" + path + ")](" + SchemeImage + path + ")", true
}

func replaceErr(re *regexp.Regexp, s string, fn func(sub []string) (string, error)) (string, error) {
	locs := re.FindAllStringSubmatchIndex(s, -1)
	if len(locs) == 0 {
		return s, nil
	}
	var b strings.Builder
	last := 0
	for _, loc := range locs {
		sub := make([]string, len(loc)/2)
		for i := range sub {
			if loc[2*i] >= 0 {
				sub[i] = s[loc[2*i]:loc[2*i+1]]
			}
		}
		rep, err := fn(sub)
		if err != nil {
			return "", err
		}
		b.WriteString(s[last:loc[0]])
		b.WriteString(rep)
		last = loc[1]
	}
	b.WriteString(s[last:])
	return b.String(), nil
}
