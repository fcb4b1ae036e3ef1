package model

import (
	"fmt"
	"strconv"
	"strings"
)

// Recognized property keys, in normalized form (see NormalizeKey).
const (
	KeyDisplay         = "markmapdisplay"
	KeyTruncate        = "markmapcut"
	KeyBackgroundColor = "backgroundcolor"
	KeySiblingLimit    = "markmaplimit"
	KeyCollapsed       = "collapsed"

	KeyTitle         = "markmaptitle"
	KeyLimitAll      = "markmaplimitall"
	KeyCollapsedMode = "markmapcollapsed"
)

// CollapsedMode selects how source collapsed flags seed the initial fold.
type CollapsedMode string

const (
	// CollapsedHidden folds nodes whose block is collapsed in the host.
	CollapsedHidden CollapsedMode = "hidden"
	// CollapsedExtend expands everything regardless of host state.
	CollapsedExtend CollapsedMode = "extend"
)

// BlockOptions is the typed view of the block properties blockmap understands.
type BlockOptions struct {
	Hidden          bool
	TruncateAt      int    // 0 = no truncation
	BackgroundColor string // normalized #rrggbb, empty when unset
	SiblingLimit    int    // 0 = unlimited
	Collapsed       bool

	// Extra holds unrecognized properties unchanged.
	Extra map[string]any
}

// PageOptions is the typed view of the page properties blockmap understands.
type PageOptions struct {
	Title           string
	LimitAll        int
	LimitFirstLevel int
	CollapsedMode   CollapsedMode

	Extra map[string]any
}

// NormalizeKey folds property keys so that markmap-display, markMapDisplay and
// markmap_display compare equal.
func NormalizeKey(key string) string {
	key = strings.ToLower(strings.TrimSpace(key))
	key = strings.ReplaceAll(key, "-", "")
	return strings.ReplaceAll(key, "_", "")
}

// ParseBlockOptions validates a raw property bag. Invalid values are dropped
// and reported in the returned problems slice; they are never fatal.
func ParseBlockOptions(props map[string]any) (BlockOptions, []string) {
	var opts BlockOptions
	var problems []string
	for k, v := range props {
		switch NormalizeKey(k) {
		case KeyDisplay:
			opts.Hidden = strings.EqualFold(propString(v), "hidden")
		case KeyTruncate:
			n, err := propInt(v)
			if err != nil || n <= 0 {
				problems = append(problems, fmt.Sprintf("%s: invalid truncation length %v", k, v))
				continue
			}
			opts.TruncateAt = n
		case KeyBackgroundColor:
			c, ok := NormalizeColor(propString(v))
			if !ok {
				problems = append(problems, fmt.Sprintf("%s: invalid color %v", k, v))
				continue
			}
			opts.BackgroundColor = c
		case KeySiblingLimit:
			n, err := propInt(v)
			if err != nil || n <= 0 {
				problems = append(problems, fmt.Sprintf("%s: invalid limit %v", k, v))
				continue
			}
			opts.SiblingLimit = n
		case KeyCollapsed:
			opts.Collapsed = propBool(v)
		default:
			if opts.Extra == nil {
				opts.Extra = make(map[string]any)
			}
			opts.Extra[k] = v
		}
	}
	return opts, problems
}

// ParsePageOptions validates a raw page property bag.
func ParsePageOptions(props map[string]any) (PageOptions, []string) {
	opts := PageOptions{CollapsedMode: CollapsedHidden}
	var problems []string
	for k, v := range props {
		switch NormalizeKey(k) {
		case KeyTitle:
			opts.Title = strings.TrimSpace(propString(v))
		case KeyLimitAll:
			n, err := propInt(v)
			if err != nil || n <= 0 {
				problems = append(problems, fmt.Sprintf("%s: invalid limit %v", k, v))
				continue
			}
			opts.LimitAll = n
		case KeySiblingLimit:
			n, err := propInt(v)
			if err != nil || n <= 0 {
				problems = append(problems, fmt.Sprintf("%s: invalid limit %v", k, v))
				continue
			}
			opts.LimitFirstLevel = n
		case KeyCollapsedMode:
			switch CollapsedMode(strings.ToLower(propString(v))) {
			case CollapsedExtend:
				opts.CollapsedMode = CollapsedExtend
			case CollapsedHidden:
				opts.CollapsedMode = CollapsedHidden
			default:
				problems = append(problems, fmt.Sprintf("%s: unknown mode %v", k, v))
			}
		default:
			if opts.Extra == nil {
				opts.Extra = make(map[string]any)
			}
			opts.Extra[k] = v
		}
	}
	return opts, problems
}

// Prop returns the raw property stored under any spelling of key.
func Prop(props map[string]any, key string) (any, bool) {
	want := NormalizeKey(key)
	for k, v := range props {
		if NormalizeKey(k) == want {
			return v, true
		}
	}
	return nil, false
}

// PropString is Prop coerced to a string ("" when absent).
func PropString(props map[string]any, key string) string {
	v, ok := Prop(props, key)
	if !ok {
		return ""
	}
	return propString(v)
}

func propString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case []any:
		parts := make([]string, 0, len(t))
		for _, p := range t {
			parts = append(parts, propString(p))
		}
		return strings.Join(parts, ", ")
	case []string:
		return strings.Join(t, ", ")
	default:
		return strings.TrimSpace(fmt.Sprint(t))
	}
}

func propInt(v any) (int, error) {
	switch t := v.(type) {
	case int:
		return t, nil
	case int64:
		return int(t), nil
	case float64:
		return int(t), nil
	default:
		return strconv.Atoi(propString(v))
	}
}

func propBool(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	default:
		switch strings.ToLower(propString(v)) {
		case "true", "yes", "1", "on":
			return true
		}
		return false
	}
}
