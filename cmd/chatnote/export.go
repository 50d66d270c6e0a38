package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/hurttlocker/chatnote/internal/chat"
	"github.com/hurttlocker/chatnote/internal/config"
	"github.com/hurttlocker/chatnote/internal/export"
	"github.com/hurttlocker/chatnote/internal/watch"
)

func newExportCmd(g *globalFlags) *cobra.Command {
	var (
		format   string
		output   string
		watching bool
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the whole conversation as markdown, docx, pdf or json",
		Example: `  chatnote export --format docx --output chat
  chatnote export --dir ./inbox/alice --format pdf --watch`,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup(cmd, g, flagKeys{"dir": config.KeyMessagesDir, "pdf-font": config.KeyPDFFont})
			if err != nil {
				return err
			}
			// An unknown format fails before any input is read.
			exporter, err := export.ForFormat(format, export.Options{
				Location: e.settings.Location,
				PDFFont:  e.settings.PDFFont,
			})
			if err != nil {
				return err
			}

			dir := e.settings.MessagesDir
			path := export.FileName(output, exporter)
			run := func(context.Context) error {
				n, err := exportOnce(dir, path, exporter)
				if err != nil {
					return err
				}
				if e.json {
					return printJSON(e.out, map[string]any{"format": exporter.Format(), "path": path, "messages": n})
				}
				fmt.Fprintf(e.out, "Exported %d messages to %s\n", n, path)
				return nil
			}

			if !watching {
				return run(cmd.Context())
			}
			opts := chat.LoadOptions{}
			return watch.Dir(cmd.Context(), dir, watch.Options{Match: opts.Matches, Log: e.log}, run)
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "markdown", "output format: markdown, docx, pdf, json")
	cmd.Flags().StringVarP(&output, "output", "o", "messages", "output file name without extension")
	cmd.Flags().String("dir", "", "directory holding message_*.json files")
	cmd.Flags().String("pdf-font", "", "UTF-8 TrueType font for the pdf format")
	cmd.Flags().BoolVarP(&watching, "watch", "w", false, "export again whenever a message file changes")
	return cmd
}

func exportOnce(dir, path string, exporter export.Exporter) (int, error) {
	messages, err := chat.LoadDir(dir, chat.LoadOptions{Repair: true})
	if err != nil {
		return 0, err
	}
	if err := export.WriteFile(path, exporter, messages); err != nil {
		return 0, err
	}
	return len(messages), nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}
