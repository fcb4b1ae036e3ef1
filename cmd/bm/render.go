package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/vanderheijden86/blockmap/pkg/export"
	"github.com/vanderheijden86/blockmap/pkg/metrics"
	"github.com/vanderheijden86/blockmap/pkg/render"
)

func newRenderCmd(g *globalFlags) *cobra.Command {
	var (
		mode   string
		format string
		level   int
		all     bool
		timings bool
	)
	cmd := &cobra.Command{
		Use:   "render [target]",
		Short: "Render a map and print it as an outline",
		Long: `Render loads the target (the current page when omitted), builds the
mind map and prints it. --format picks the output: the visible outline, the
assembled markdown document, the node tree as JSON, or a mermaid mindmap.`,
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
			r := a.renderer(render.NewBridge(render.SVGEngine{}, view), true)
			res, err := r.Render(cmd.Context(), req)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("level") {
				if err := res.Session.SetLevel(level); err != nil {
					return err
				}
			}

			if timings {
				defer printTimings(cmd.ErrOrStderr())
			}
			root := res.Session.Root()
			out := cmd.OutOrStdout()
			switch format {
			case "outline":
				fmt.Fprint(out, export.Outline(root, !all))
			case "markdown", "md":
				fmt.Fprintln(out, res.Document.Text)
			case "json":
				return export.WriteTree(out, root)
			case "mermaid":
				fmt.Fprint(out, export.Mermaid(root))
			default:
				return fmt.Errorf("unknown format %q (want outline, markdown, json or mermaid)", format)
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVarP(&mode, "mode", "m", "", "render mode: current, page, block, selection, linked, namespace")
	f.StringVarP(&format, "format", "f", "outline", "output: outline, markdown, json, mermaid")
	f.IntVarP(&level, "level", "l", 0, "expand the map to this many levels")
	f.BoolVar(&all, "all", false, "include folded nodes in the outline")
	f.BoolVar(&timings, "timings", false, "print stage timings to stderr")
	return cmd
}

func printTimings(w io.Writer) {
	for _, st := range metrics.Snapshot() {
		fmt.Fprintf(w, "%-14s %4d× avg %8.3fms max %8.3fms\n", st.Name, st.Count, st.AvgMs, st.MaxMs)
	}
}
