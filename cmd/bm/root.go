package main

import (
	"context"
	"fmt"
	"os"
	"runtime/pprof"

	"github.com/spf13/cobra"

	"github.com/vanderheijden86/blockmap/internal/datasource"
	"github.com/vanderheijden86/blockmap/pkg/config"
	"github.com/vanderheijden86/blockmap/pkg/debug"
	"github.com/vanderheijden86/blockmap/pkg/logging"
	"github.com/vanderheijden86/blockmap/pkg/pipeline"
	"github.com/vanderheijden86/blockmap/pkg/render"
)

// globalFlags are the persistent flags shared by every subcommand.
type globalFlags struct {
	configPath string
	graphDir   string
	database   string
	source     string
	logLevel   string
	cpuProfile string
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}
	var stopProfile func()
	root := &cobra.Command{
		Use:   "bm",
		Short: "Mind maps from Logseq-style block outlines",
		Long: `bm reads a graph of markdown or org notes (or an index built from one)
and renders pages, blocks, linked references and namespaces as mind maps.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if g.cpuProfile == "" {
				return nil
			}
			f, err := os.Create(g.cpuProfile)
			if err != nil {
				return fmt.Errorf("could not create CPU profile: %w", err)
			}
			if err := pprof.StartCPUProfile(f); err != nil {
				f.Close()
				return fmt.Errorf("could not start CPU profile: %w", err)
			}
			stopProfile = func() {
				pprof.StopCPUProfile()
				f.Close()
			}
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if stopProfile != nil {
				stopProfile()
			}
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&g.configPath, "config", "", "config file (default "+config.ConfigPath()+")")
	pf.StringVarP(&g.graphDir, "graph", "g", "", "graph directory of markdown/org notes")
	pf.StringVar(&g.database, "db", "", "index database path")
	pf.StringVar(&g.source, "source", "auto", "data source: auto, graph or index")
	pf.StringVar(&g.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	pf.StringVar(&g.cpuProfile, "cpu-profile", "", "write CPU profile to file")

	root.AddCommand(
		newRenderCmd(g),
		newExportCmd(g),
		newTUICmd(g),
		newIndexCmd(g),
		newServeCmd(g),
		newVersionCmd(),
	)
	return root
}

// app is the state shared by subcommands once config is loaded.
type app struct {
	cfg      config.Config
	log      *logging.Logger
	closeLog func()
	src      *datasource.Source
}

// loadApp reads config and applies flag overrides. It does not open a
// source.
func loadApp(g *globalFlags) (*app, error) {
	var (
		cfg config.Config
		err error
	)
	if g.configPath != "" {
		cfg, err = config.LoadFrom(g.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}
	if g.graphDir != "" {
		cfg.GraphDir = g.graphDir
	}
	if g.database != "" {
		cfg.Database = g.database
	}
	if g.logLevel != "" {
		cfg.LogLevel = g.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	l, closeLog, err := cfg.Logger()
	if err != nil {
		return nil, err
	}
	debug.Log("config: graph=%q db=%q", cfg.GraphDir, cfg.DatabasePath())
	return &app{cfg: cfg, log: l, closeLog: closeLog}, nil
}

func (a *app) close() {
	if a.src != nil {
		_ = a.src.Close()
	}
	if a.closeLog != nil {
		a.closeLog()
	}
}

func (a *app) filter() (*datasource.Filter, error) {
	return datasource.NewFilter(a.cfg.Excludes())
}

func (a *app) openOptions(source string) (datasource.OpenOptions, error) {
	f, err := a.filter()
	if err != nil {
		return datasource.OpenOptions{}, err
	}
	opts := datasource.OpenOptions{
		DiscoveryOptions: datasource.DiscoveryOptions{
			GraphDir: a.cfg.GraphDir,
			Database: a.cfg.DatabasePath(),
			Filter:   f,
			Logger:   func(msg string) { a.log.Debug(msg) },
		},
		Host:        a.cfg.Host,
		Concurrency: a.cfg.Concurrency,
	}
	switch source {
	case "", "auto":
	case "graph":
		opts.ForceType = datasource.SourceTypeGraphDir
	case "index":
		opts.ForceType = datasource.SourceTypeSQLite
	default:
		return opts, fmt.Errorf("unknown source %q (want auto, graph or index)", source)
	}
	return opts, nil
}

// open loads the best source.
func (a *app) open(ctx context.Context, source string) error {
	opts, err := a.openOptions(source)
	if err != nil {
		return err
	}
	src, err := datasource.Open(ctx, opts)
	if err != nil {
		return err
	}
	a.log.Info("opened graph", "source", src.Info.String())
	a.src = src
	return nil
}

// viewOptions returns the configured view with its theme applied.
func (a *app) viewOptions() (render.ViewOptions, error) {
	return a.cfg.ViewOptions()
}

// renderer builds a renderer over the open source.
func (a *app) renderer(bridge *render.Bridge, visible bool) *pipeline.Renderer {
	return pipeline.New(a.src.Reader, bridge,
		pipeline.WithLogger(a.log),
		pipeline.WithConcurrency(a.cfg.Concurrency),
		pipeline.WithVisible(visible),
	)
}

// setup loads config and opens the source selected by the global flags.
func setup(ctx context.Context, g *globalFlags) (*app, error) {
	a, err := loadApp(g)
	if err != nil {
		return nil, err
	}
	if err := a.open(ctx, g.source); err != nil {
		a.close()
		return nil, err
	}
	return a, nil
}

// requestFor builds a render request from a --mode flag and an optional
// target argument. A target with no mode renders that page.
func requestFor(mode string, args []string) (pipeline.Request, error) {
	var target string
	if len(args) > 0 {
		target = args[0]
	}
	if mode == "" && target != "" {
		mode = string(pipeline.ModePage)
	}
	m, err := pipeline.ParseMode(mode)
	if err != nil {
		return pipeline.Request{}, err
	}
	switch m {
	case pipeline.ModePage, pipeline.ModeBlock, pipeline.ModeLinked, pipeline.ModeNamespace:
		if target == "" {
			return pipeline.Request{}, fmt.Errorf("mode %s needs a target", m)
		}
	}
	return pipeline.Request{Mode: m, Target: target}, nil
}
