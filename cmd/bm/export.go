package main

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vanderheijden86/blockmap/pkg/export"
	"github.com/vanderheijden86/blockmap/pkg/pipeline"
	"github.com/vanderheijden86/blockmap/pkg/render"
)

func newExportCmd(g *globalFlags) *cobra.Command {
	var (
		mode   string
		format string
		out    string
		copyTo bool
		level  int
	)
	cmd := &cobra.Command{
		Use:   "export [target]",
		Short: "Export a map as an image, page or document",
		Long: `Export renders the target and writes it out. Images (svg, png) default
to a file named after the page title; --out may name a file or a directory.
Text formats (html, md, mermaid, json) go to stdout unless --out is set.
--copy also puts the markdown document on the clipboard.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := requestFor(mode, args)
			if err != nil {
				return err
			}
			a, err := setup(cmd.Context(), g)
			if err != nil {
				return err
			}
			defer a.close()

			view, err := a.viewOptions()
			if err != nil {
				return err
			}
			bridge := render.NewBridge(render.SVGEngine{}, view)
			res, err := a.renderer(bridge, true).Render(cmd.Context(), req)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("level") {
				if err := res.Session.SetLevel(level); err != nil {
					return err
				}
			}
			if copyTo {
				if err := export.CopyDocument(res.Document); err != nil {
					return err
				}
				a.log.Info("document copied to clipboard")
			}

			return writeExport(cmd.OutOrStdout(), res, bridge, view, exportFormat(out, format), out)
		},
	}
	f := cmd.Flags()
	f.StringVarP(&mode, "mode", "m", "", "render mode: current, page, block, selection, linked, namespace")
	f.StringVarP(&format, "format", "f", "", "svg, png, html, md, mermaid or json (default from --out, else svg)")
	f.StringVarP(&out, "out", "o", "", "output file or directory")
	f.BoolVar(&copyTo, "copy", false, "copy the markdown document to the clipboard")
	f.IntVarP(&level, "level", "l", 0, "expand the map to this many levels before exporting")
	return cmd
}

// exportFormat returns format, or the one implied by the extension of out.
func exportFormat(out, format string) string {
	if format != "" {
		return strings.ToLower(strings.TrimPrefix(format, "."))
	}
	switch strings.ToLower(filepath.Ext(out)) {
	case ".html", ".htm":
		return "html"
	case ".md", ".markdown":
		return "md"
	case ".mmd", ".mermaid":
		return "mermaid"
	case ".json":
		return "json"
	case ".png":
		return export.FormatPNG
	}
	return export.FormatSVG
}

func writeExport(stdout io.Writer, res *pipeline.Result, bridge *render.Bridge, view render.ViewOptions, format, out string) error {
	root := res.Session.Root()
	switch format {
	case export.FormatSVG, export.FormatPNG:
		path, err := export.SaveSnapshot(root, export.SnapshotOptions{
			Path:   out,
			Format: format,
			Title:  res.Document.Title,
			View:   view,
		})
		if err != nil {
			return err
		}
		fmt.Fprintln(stdout, path)
		return nil
	case "md", "markdown":
		if out != "" {
			return export.SaveDocument(res.Document, out)
		}
		_, err := fmt.Fprintln(stdout, res.Document.Text)
		return err
	}

	var buf bytes.Buffer
	switch format {
	case "html":
		var svg bytes.Buffer
		if inst, ok := bridge.Instance().(*render.SVGInstance); ok {
			if err := inst.WriteContentSVG(&svg, export.DefaultMargin); err != nil {
				return err
			}
		}
		page, err := export.WriteHTML(res.Document, svg.Bytes(), view.Background, view.Foreground)
		if err != nil {
			return err
		}
		buf.Write(page)
	case "mermaid":
		buf.WriteString(export.Mermaid(root))
	case "json":
		if err := export.WriteTree(&buf, root); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown export format %q", format)
	}
	if out == "" {
		_, err := stdout.Write(buf.Bytes())
		return err
	}
	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return err
	}
	return os.WriteFile(out, buf.Bytes(), 0o644)
}
