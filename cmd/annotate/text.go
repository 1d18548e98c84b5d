package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/dgallion1/docannot/internal/annotate"
	"github.com/dgallion1/docannot/internal/store"
	"github.com/dgallion1/docannot/internal/store/memstore"
)

type textOutput struct {
	Report      annotate.Report    `json:"report"`
	Annotations []store.Annotation `json:"annotations"`
}

func textCommand(ui UI) *cli.Command {
	return &cli.Command{
		Name:      "text",
		Usage:     "annotate text from the arguments, a file or stdin and print JSON",
		ArgsUsage: "[text...]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "lang", Aliases: []string{"l"}, Usage: "language code"},
			&cli.StringFlag{Name: "file", Aliases: []string{"f"}, Usage: "read text from file"},
			&cli.StringFlag{Name: "set", Usage: "output annotation set"},
			&cli.StringFlag{Name: "type", Usage: "print only annotations of this type"},
		},
		Action: func(c *cli.Context) error {
			text, err := readText(c, ui)
			if err != nil {
				return err
			}

			e, err := setup(c, ui)
			if err != nil {
				return err
			}
			defer e.reg.Close()

			ctx := c.Context
			st := memstore.New()
			doc := store.Document{ID: "text", Name: "text", Language: c.String("lang"), Content: text, CreatedAt: time.Now()}
			if err := st.PutDocument(ctx, doc); err != nil {
				return err
			}
			rep, err := e.annotator(st, 0, false).Annotate(ctx, doc.ID, annotate.Options{OutputSet: c.String("set")})
			if err != nil {
				return err
			}
			anns, err := st.AnnotationsByType(ctx, doc.ID, rep.OutputSet, c.String("type"))
			if err != nil {
				return err
			}

			enc := json.NewEncoder(ui.Out)
			enc.SetIndent("", "  ")
			return enc.Encode(textOutput{Report: rep, Annotations: anns})
		},
	}
}

func readText(c *cli.Context, ui UI) (string, error) {
	if c.Args().Present() {
		return strings.Join(c.Args().Slice(), " "), nil
	}
	if path := c.String("file"); path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return "", err
		}
		return string(b), nil
	}
	b, err := io.ReadAll(ui.In)
	if err != nil {
		return "", fmt.Errorf("read stdin: %w", err)
	}
	return string(b), nil
}
