package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gosuri/uiprogress"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"github.com/dgallion1/docannot/internal/analysis"
	"github.com/dgallion1/docannot/internal/annotate"
	"github.com/dgallion1/docannot/internal/pipeline"
	"github.com/dgallion1/docannot/internal/source"
	"github.com/dgallion1/docannot/internal/store"
	"github.com/dgallion1/docannot/internal/store/sqlite"
)

// corpusSummary totals a corpus run.
type corpusSummary struct {
	mu          sync.Mutex
	Documents   int
	Annotated   int
	Parsed      int
	Unparsed    int
	Annotations int
	Failed      []string
}

func (s *corpusSummary) add(rep annotate.Report) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Annotated++
	s.Parsed += rep.Parsed
	s.Unparsed += rep.Unparsed
	s.Annotations += rep.Annotations
}

func (s *corpusSummary) fail(path string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Failed = append(s.Failed, fmt.Sprintf("%s: %v", path, err))
}

func corpusCommand(ui UI) *cli.Command {
	return &cli.Command{
		Name:      "corpus",
		Usage:     "import every supported file under a directory into sqlite and annotate it",
		ArgsUsage: "<dir>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "db", Usage: "sqlite database (defaults to the configured store path)"},
			&cli.StringFlag{Name: "lang", Aliases: []string{"l"}, Usage: "language of the corpus"},
			&cli.StringFlag{Name: "set", Usage: "output annotation set"},
			&cli.BoolFlag{Name: "append-language", Usage: "suffix the output set with the language"},
			&cli.IntFlag{Name: "workers", Aliases: []string{"w"}, Usage: "documents annotated concurrently (defaults to the configured worker count)"},
			&cli.BoolFlag{Name: "no-progress", Usage: "disable the progress bar"},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("corpus: expected one directory argument")
			}
			dir := c.Args().First()

			e, err := setup(c, ui)
			if err != nil {
				return err
			}
			defer e.reg.Close()

			files, err := corpusFiles(dir)
			if err != nil {
				return err
			}
			if len(files) == 0 {
				fmt.Fprintf(ui.Out, "No supported files under %s\n", dir)
				return nil
			}

			dbPath := c.String("db")
			if dbPath == "" {
				dbPath = e.cfg.Store.Path
			}
			st, err := sqlite.Open(c.Context, dbPath)
			if err != nil {
				return err
			}
			defer st.Close()

			workers := c.Int("workers")
			if workers <= 0 {
				workers = e.cfg.Pipeline.WorkerCount
			}
			ann := e.annotator(st, 0, c.Bool("append-language"))
			opts := annotate.Options{Language: c.String("lang"), OutputSet: c.String("set")}

			var bar *uiprogress.Bar
			if !c.Bool("no-progress") {
				progress := uiprogress.New()
				progress.Out = ui.Err
				bar = progress.AddBar(len(files))
				bar.AppendCompleted()
				bar.PrependElapsed()
				progress.Start()
				defer progress.Stop()
			}

			sum := &corpusSummary{Documents: len(files)}
			start := time.Now()
			g, ctx := errgroup.WithContext(c.Context)
			g.SetLimit(workers)
			for _, path := range files {
				g.Go(func() error {
					defer func() {
						if bar != nil {
							bar.Incr()
						}
					}()
					rep, err := importAndAnnotate(ctx, st, ann, dir, path, opts, e.cfg.Upload.PDFFallbackPdftotext)
					switch {
					case err == nil:
						sum.add(rep)
					case ctx.Err() != nil:
						return ctx.Err()
					case errors.Is(err, analysis.ErrStageAnalysis):
						e.log.Warn("document skipped", "path", path, "error", err)
						sum.fail(path, err)
					default:
						e.log.Error("document failed", "path", path, "error", err)
						sum.fail(path, err)
					}
					return nil
				})
			}
			if err := g.Wait(); err != nil {
				return err
			}

			fmt.Fprintf(ui.Out, "Annotated %d of %d documents in %s: %d sentences parsed, %d unparsed, %d annotations, %.2fs in analyzers\n",
				sum.Annotated, sum.Documents, time.Since(start).Round(time.Millisecond),
				sum.Parsed, sum.Unparsed, sum.Annotations, e.reg.ProcessingSeconds())
			for _, f := range sum.Failed {
				fmt.Fprintf(ui.Err, "failed: %s\n", f)
			}
			return nil
		},
	}
}

// corpusFiles lists supported files under dir in lexical order.
func corpusFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && source.IsSupported(path) {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

func importAndAnnotate(ctx context.Context, st store.Store, ann *annotate.Annotator, root, path string, opts annotate.Options, pdfFallback bool) (annotate.Report, error) {
	f, err := os.Open(path)
	if err != nil {
		return annotate.Report{}, err
	}
	tree, rendered, err := source.Extract(f, filepath.Base(path), source.Options{PDFFallback: pdfFallback})
	f.Close()
	if err != nil {
		return annotate.Report{}, fmt.Errorf("extract: %w", err)
	}

	name, err := filepath.Rel(root, path)
	if err != nil {
		name = tree.Title
	}
	doc := store.Document{
		ID:        pipeline.NewID(),
		Name:      name,
		Language:  opts.Language,
		Content:   rendered.Text,
		CreatedAt: time.Now().UTC(),
	}
	if err := st.PutDocument(ctx, doc); err != nil {
		return annotate.Report{}, err
	}
	if _, err := annotate.AddSections(ctx, st, doc.ID, rendered.Sections); err != nil {
		return annotate.Report{}, err
	}
	return ann.Annotate(ctx, doc.ID, opts)
}
