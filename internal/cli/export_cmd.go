// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jeranaias/qbot-tui/internal/export"
	"github.com/jeranaias/qbot-tui/internal/model"
)

// ExportData is returned by export when a file was written.
type ExportData struct {
	Path   string `json:"path"`
	Format string `json:"format"`
	Count  int    `json:"count"`
}

func (a *App) newExportCmd() *cobra.Command {
	var (
		format   string
		output   string
		theme    string
		noHeader bool
	)
	cmd := &cobra.Command{
		Use:   "export [id...]",
		Short: "Save chats as markdown, json or html",
		Long: "Save chats as markdown, json or html.\n\n" +
			"With no ids the whole history is exported, newest first. " +
			"Use -o - to write to stdout.",
		Example: "  qbot export\n" +
			"  qbot export 42 --format html -o ~/Documents\n" +
			"  qbot export --format json -o - | jq '.records[].title'",
		RunE: func(cmd *cobra.Command, args []string) error {
			ids := make([]model.RecordID, 0, len(args))
			for _, arg := range args {
				id, err := parseRecordID(arg)
				if err != nil {
					return err
				}
				ids = append(ids, id)
			}
			opts := export.DefaultOptions()
			opts.IncludeMetadata = !noHeader
			opts.Theme = theme
			exp, err := export.ForFormat(format, opts)
			if err != nil {
				return NewValidationErrorWithExample("--format", format, err.Error(), "qbot export --format markdown")
			}

			return a.withEnv(func(e *env) error {
				sess, err := e.requireSession()
				if err != nil {
					return err
				}
				opts.Owner = sess.User().DisplayName()

				ctx, cancel := e.requestContext(cmd.Context())
				defer cancel()

				var records []model.ChatRecord
				if len(ids) == 0 {
					if records, err = e.chat.FetchHistory(ctx); err != nil {
						return err
					}
				} else {
					for _, id := range ids {
						rec, err := e.chat.OpenChat(ctx, id)
						if err != nil {
							return notFound(err, id)
						}
						records = append(records, rec)
					}
				}
				if len(records) == 0 {
					return NewCommandError("export", "your history is empty", export.ErrNoRecords)
				}

				if output == "-" {
					return export.Write(a.Out, records, exp)
				}
				path, err := export.ToFile(records, exp, output)
				if err != nil {
					return err
				}
				e.log.Info("chats exported", zap.String("path", path), zap.Int("count", len(records)))
				if a.jsonOut {
					return a.printJSON(ExportData{Path: path, Format: strings.TrimPrefix(exp.FileExtension(), "."), Count: len(records)})
				}
				fmt.Fprintf(a.Out, "%s %d %s to %s\n", SuccessStyle.Render("Exported"), len(records), plural(len(records), "chat"), path)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "markdown", "output format: "+strings.Join(export.Formats(), ", "))
	cmd.Flags().StringVarP(&output, "output", "o", ".", "directory to write into, or - for stdout")
	cmd.Flags().StringVar(&theme, "theme", "dark", "html theme: dark or light")
	cmd.Flags().BoolVar(&noHeader, "no-header", false, "omit the metadata header")
	return cmd
}

func plural(n int, word string) string {
	if n == 1 {
		return word
	}
	return word + "s"
}
