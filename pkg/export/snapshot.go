package export

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/vanderheijden86/blockmap/pkg/model"
	"github.com/vanderheijden86/blockmap/pkg/render"
)

// Image formats.
const (
	FormatSVG = "svg"
	FormatPNG = "png"
)

// DefaultMargin is the blank border around exported images.
const DefaultMargin = 20

var unsafeFileChars = regexp.MustCompile(`[\x00-\x1f<>:"/\\|?*]+`)

// FileName turns a page title into an export file name with the format's
// extension. Empty titles fall back to "mindmap".
func FileName(title, format string) string {
	name := strings.TrimSpace(unsafeFileChars.ReplaceAllString(title, "_"))
	name = strings.Trim(name, ". ")
	if name == "" {
		name = "mindmap"
	}
	return name + "." + strings.ToLower(format)
}

// SnapshotOptions controls image export.
type SnapshotOptions struct {
	// Path is the output file. When it names an existing directory the file
	// is named after Title inside it.
	Path   string
	Format string // "svg" or "png"; inferred from Path when empty
	Title  string
	Margin float64
	View   render.ViewOptions
}

// ResolveFormat infers the format from the extension of path when format is
// empty. Unknown extensions default to svg.
func ResolveFormat(path, format string) (string, error) {
	format = strings.ToLower(strings.TrimPrefix(format, "."))
	if format == "" {
		switch strings.ToLower(filepath.Ext(path)) {
		case ".png":
			format = FormatPNG
		default:
			format = FormatSVG
		}
	}
	if format != FormatSVG && format != FormatPNG {
		return "", fmt.Errorf("unsupported format %q (want svg or png)", format)
	}
	return format, nil
}

// SaveSnapshot renders the visible part of root at 1:1 and writes it as an
// SVG or PNG file. It returns the path written.
func SaveSnapshot(root *model.Node, opts SnapshotOptions) (string, error) {
	if root == nil {
		return "", fmt.Errorf("nothing to export")
	}
	format, err := ResolveFormat(opts.Path, opts.Format)
	if err != nil {
		return "", err
	}
	path := opts.Path
	if path == "" {
		path = FileName(opts.Title, format)
	} else if info, err := os.Stat(path); err == nil && info.IsDir() {
		path = filepath.Join(path, FileName(opts.Title, format))
	}
	if filepath.Ext(path) == "" {
		path += "." + format
	}
	if opts.Margin <= 0 {
		opts.Margin = DefaultMargin
	}

	inst, err := render.SVGEngine{}.Create(root, opts.View)
	if err != nil {
		return "", err
	}
	svgInst := inst.(*render.SVGInstance)

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create parent dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", path, err)
	}
	w := bufio.NewWriter(f)
	switch format {
	case FormatPNG:
		err = render.WritePNG(w, svgInst, opts.Margin)
	default:
		err = svgInst.WriteContentSVG(w, opts.Margin)
	}
	if err == nil {
		err = w.Flush()
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	return path, nil
}
