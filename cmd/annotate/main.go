// Command annotate runs the annotation pipeline from the command line.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/dgallion1/docannot/internal/analysis"
	"github.com/dgallion1/docannot/internal/analyzer/rulebased"
	"github.com/dgallion1/docannot/internal/annotate"
	"github.com/dgallion1/docannot/internal/config"
	"github.com/dgallion1/docannot/internal/logging"
	"github.com/dgallion1/docannot/internal/resource"
	"github.com/dgallion1/docannot/internal/store"
)

// UI contains the streams of the command. Tests inject buffers.
type UI struct {
	In  io.Reader
	Out io.Writer
	Err io.Writer
}

func main() {
	ui := UI{In: os.Stdin, Out: os.Stdout, Err: os.Stderr}
	if err := newApp(ui).Run(os.Args); err != nil {
		fmt.Fprintf(ui.Err, "annotate: %v\n", err)
		os.Exit(1)
	}
}

func newApp(ui UI) *cli.App {
	return &cli.App{
		Name:      "annotate",
		Usage:     "linguistic annotation of text and document corpora",
		Reader:    ui.In,
		Writer:    ui.Out,
		ErrWriter: ui.Err,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Usage: "YAML configuration file", EnvVars: []string{"CONFIG_PATH"}},
			&cli.StringFlag{Name: "data-dir", Usage: "language resource directory (overrides config)"},
			&cli.StringFlag{Name: "log-level", Value: "warn", Usage: "debug, info, warn or error"},
		},
		Commands: []*cli.Command{
			textCommand(ui),
			corpusCommand(ui),
		},
	}
}

// env is what every command needs: configuration, a logger and the
// language registry.
type env struct {
	cfg *config.Config
	log *slog.Logger
	reg *resource.Registry
}

func setup(c *cli.Context, ui UI) (*env, error) {
	if path := c.String("config"); path != "" {
		os.Setenv("CONFIG_PATH", path)
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if dir := c.String("data-dir"); dir != "" {
		cfg.Analysis.DataDir = dir
	}
	cfg.Log.Level = c.String("log-level")
	cfg.Log.Format = "text"

	log := logging.NewWriter(ui.Err, cfg.Log)
	reg := resource.NewRegistry(rulebased.NewLoader(cfg.Analysis.DataDir), log, cfg.Analysis.StatsWindow)
	return &env{cfg: cfg, log: log, reg: reg}, nil
}

func (e *env) annotator(st store.Store, workers int, appendLang bool) *annotate.Annotator {
	if workers <= 0 {
		workers = e.cfg.Analysis.SentenceWorkers
	}
	return annotate.New(analysis.New(e.reg, e.log), st, e.log, annotate.Defaults{
		Language:       e.cfg.Analysis.DefaultLanguage,
		OutputSet:      e.cfg.Analysis.OutputSet,
		AppendLanguage: appendLang || e.cfg.Analysis.AppendLanguage,
		Workers:        workers,
	})
}
