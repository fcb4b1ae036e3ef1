package model

import (
	"regexp"
	"strings"
)

var (
	propertyLineRe = regexp.MustCompile(`(?m)^[ \t]*[^\s:]+::([ \t].*)?\n?`)
	logbookRe      = regexp.MustCompile(`(?s):LOGBOOK:.*?:END:\n?`)
	drawerRe       = regexp.MustCompile(`(?s):PROPERTIES:.*?:END:\n?`)
)

// StripProperties removes property assignment lines and the LOGBOOK and
// PROPERTIES drawers from block content and returns the trimmed remainder.
func StripProperties(content string) string {
	s := logbookRe.ReplaceAllString(content, "")
	s = drawerRe.ReplaceAllString(s, "")
	s = propertyLineRe.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

// FenceMarker returns the run of backticks or tildes opening a code fence on
// line, or "" when line is not a fence.
func FenceMarker(line string) string {
	t := strings.TrimLeft(line, " \t")
	if len(line)-len(t) > 3 || len(t) < 3 || (t[0] != '`' && t[0] != '~') {
		return ""
	}
	n := 0
	for n < len(t) && t[n] == t[0] {
		n++
	}
	if n < 3 || (t[0] == '`' && strings.ContainsRune(t[n:], '`')) {
		return ""
	}
	return t[:n]
}

// ClosesFence reports whether line closes a fence opened with marker.
func ClosesFence(line, marker string) bool {
	m := FenceMarker(line)
	return m != "" && m[0] == marker[0] && len(m) >= len(marker) &&
		strings.TrimSpace(strings.TrimLeft(line, " \t")[len(m):]) == ""
}

var (
	bulletStartRe  = regexp.MustCompile(`^([-+*])([ \t]|$)`)
	orderedStartRe = regexp.MustCompile(`^(\d{1,9})([.)])([ \t]|$)`)
	headingStartRe = regexp.MustCompile(`^(#{1,6})([ \t]|$)`)
	underlineRe    = regexp.MustCompile(`^(=+|-+)[ \t]*$`)

	// HTML block openers that only end at a matching close or a blank line.
	rawHTMLStartRe = regexp.MustCompile(`(?i)^<(?:(?:pre|script|style|textarea)(?:[ \t>]|$)|!--|\?|![a-z]|!\[CDATA\[)`)
	htmlBlockRe    = regexp.MustCompile(`(?i)^</?(?:address|article|aside|base|basefont|blockquote|body|caption|center|col|colgroup|dd|details|dialog|dir|div|dl|dt|fieldset|figcaption|figure|footer|form|frame|frameset|h[1-6]|head|header|hr|html|iframe|legend|li|link|main|menu|menuitem|nav|noframes|ol|optgroup|option|p|param|search|section|summary|table|tbody|td|tfoot|th|thead|title|tr|track|ul)(?:[ \t>]|/>|$)`)
	loneTagRe      = regexp.MustCompile(`^(?:<[A-Za-z][A-Za-z0-9-]*(?:[ \t]+[^<>]*)?/?>|</[A-Za-z][A-Za-z0-9-]*[ \t]*>)[ \t]*$`)
)

// EscapeBlockStart keeps a label line from opening a list, heading, quote,
// setext underline or HTML block of its own when it is written as part
// of a list item.
func EscapeBlockStart(line string) string {
	trimmed := strings.TrimLeft(line, " \t")
	lead := line[:len(line)-len(trimmed)]
	switch {
	case trimmed == "":
		return line
	case underlineRe.MatchString(trimmed), bulletStartRe.MatchString(trimmed),
		headingStartRe.MatchString(trimmed), strings.HasPrefix(trimmed, ">"),
		rawHTMLStartRe.MatchString(trimmed), htmlBlockRe.MatchString(trimmed),
		loneTagRe.MatchString(trimmed):
		return lead + `\` + trimmed
	case orderedStartRe.MatchString(trimmed):
		return lead + orderedStartRe.ReplaceAllString(trimmed, `$1\$2$3`)
	}
	return line
}
