// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/jeranaias/qbot-tui/internal/api"
	"github.com/jeranaias/qbot-tui/internal/chat"
	"github.com/jeranaias/qbot-tui/internal/model"
	"github.com/jeranaias/qbot-tui/internal/util"
)

// =============================================================================
// ASK
// =============================================================================

func (a *App) newAskCmd() *cobra.Command {
	var raw bool
	cmd := &cobra.Command{
		Use:   "ask [question...]",
		Short: "Ask a question and print the answer",
		Long: "Ask a question and print the answer.\n\n" +
			"With no arguments the question is read from stdin.",
		Example: "  qbot ask What is a monad?\n" +
			"  cat question.txt | qbot ask",
		RunE: func(cmd *cobra.Command, args []string) error {
			question := strings.Join(args, " ")
			if len(args) == 0 && !isTerminal(a.In) {
				data, err := io.ReadAll(a.reader())
				if err != nil {
					return fmt.Errorf("failed to read question: %w", err)
				}
				question = string(data)
			}
			if chat.NormalizeQuestion(question) == "" {
				return chat.ErrEmptyQuestion
			}

			return a.withEnv(func(e *env) error {
				if _, err := e.requireSession(); err != nil {
					return err
				}
				ctx, cancel := e.requestContext(cmd.Context())
				defer cancel()

				rec, err := e.chat.SubmitQuestion(ctx, question)
				if err != nil {
					return err
				}
				if a.jsonOut {
					return a.printJSON(newRecordData(rec, true))
				}
				a.printAnswer(e, rec, raw)
				fmt.Fprintln(a.Out, DimStyle.Render("id "+rec.ID.String()))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&raw, "raw", false, "print the answer without markdown rendering")
	return cmd
}

// printAnswer renders the answer body the way the chat view does.
func (a *App) printAnswer(e *env, rec model.ChatRecord, raw bool) {
	width := answerWidth(a.Out, e.cfg.UI.WordWrap)
	fmt.Fprintln(a.Out, strings.TrimRight(e.markdown(raw || !isTerminal(a.Out)).Render(rec.Answer, width), "\n"))
}

// =============================================================================
// HISTORY
// =============================================================================

func (a *App) newHistoryCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:     "history",
		Aliases: []string{"ls"},
		Short:   "List your previous questions, newest first",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit < 0 {
				return NewValidationError("--limit", fmt.Sprint(limit), "must not be negative")
			}
			return a.withEnv(func(e *env) error {
				if _, err := e.requireSession(); err != nil {
					return err
				}
				ctx, cancel := e.requestContext(cmd.Context())
				defer cancel()

				records, err := e.chat.FetchHistory(ctx)
				if err != nil {
					return err
				}
				if limit > 0 && len(records) > limit {
					records = records[:limit]
				}
				return a.printHistory(records)
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "show at most n records (0 = all)")
	return cmd
}

func (a *App) printHistory(records []model.ChatRecord) error {
	if a.jsonOut {
		data := HistoryData{Count: len(records), Records: make([]RecordData, 0, len(records))}
		for _, rec := range records {
			data.Records = append(data.Records, newRecordData(rec, false))
		}
		return a.printJSON(data)
	}

	if len(records) == 0 {
		fmt.Fprintln(a.Out, "No messages yet")
		fmt.Fprintln(a.Out, DimStyle.Render("Ask any question to get started: qbot ask <question>"))
		return nil
	}

	idWidth := 0
	for _, rec := range records {
		if w := util.StringWidth(rec.ID.String()); w > idWidth {
			idWidth = w
		}
	}
	const whenWidth = 16
	titleWidth := terminalWidth(a.Out) - idWidth - whenWidth - 6
	if titleWidth < 20 {
		titleWidth = 20
	}

	now := time.Now()
	for _, rec := range records {
		fmt.Fprintf(a.Out, "%s  %s  %s\n",
			DimStyle.Render(util.PadRight(rec.ID.String(), idWidth)),
			util.PadRight(util.TruncateWidth(util.SingleLine(rec.DisplayTitle()), titleWidth), titleWidth),
			DimStyle.Render(formatCreated(rec.CreatedAt.Time, now)))
	}
	return nil
}

// =============================================================================
// SHOW
// =============================================================================

func (a *App) newShowCmd() *cobra.Command {
	var raw bool
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Print one question and its answer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseRecordID(args[0])
			if err != nil {
				return err
			}
			return a.withEnv(func(e *env) error {
				if _, err := e.requireSession(); err != nil {
					return err
				}
				ctx, cancel := e.requestContext(cmd.Context())
				defer cancel()

				rec, err := e.chat.OpenChat(ctx, id)
				if err != nil {
					return notFound(err, id)
				}
				if a.jsonOut {
					return a.printJSON(newRecordData(rec, true))
				}
				a.printRecord(e, rec, raw)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&raw, "raw", false, "print the answer without markdown rendering")
	return cmd
}

func (a *App) printRecord(e *env, rec model.ChatRecord, raw bool) {
	fmt.Fprintln(a.Out, TitleStyle.Render(rec.DisplayTitle()))
	if when := formatCreatedFull(rec.CreatedAt.Time); when != "" {
		fmt.Fprintln(a.Out, DimStyle.Render(when))
	}
	fmt.Fprintln(a.Out)
	fmt.Fprintln(a.Out, QuestionStyle.Render("> ")+rec.Question)
	fmt.Fprintln(a.Out)
	a.printAnswer(e, rec, raw)
}

// =============================================================================
// DELETE
// =============================================================================

func (a *App) newDeleteCmd() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:     "delete <id>",
		Aliases: []string{"rm"},
		Short:   "Delete a chat from your history",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseRecordID(args[0])
			if err != nil {
				return err
			}
			if !yes {
				if !isTerminal(a.In) || a.jsonOut {
					return NewValidationErrorWithExample("confirmation", "", "pass --yes to delete without a prompt", "qbot delete "+id.String()+" --yes")
				}
				ok, err := a.confirm(WarningStyle.Render("Delete chat " + id.String() + "?"))
				if err != nil {
					return err
				}
				if !ok {
					return ErrAborted
				}
			}

			return a.withEnv(func(e *env) error {
				if _, err := e.requireSession(); err != nil {
					return err
				}
				ctx, cancel := e.requestContext(cmd.Context())
				defer cancel()

				if err := e.chat.DeleteChat(ctx, id); err != nil {
					return notFound(err, id)
				}
				if a.jsonOut {
					return a.printJSON(DeleteData{ID: id.String(), Deleted: true})
				}
				fmt.Fprintln(a.Out, SuccessStyle.Render("Chat deleted"))
				return nil
			})
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "do not ask for confirmation")
	return cmd
}

// =============================================================================
// HELPERS
// =============================================================================

func parseRecordID(arg string) (model.RecordID, error) {
	id := model.RecordID(strings.TrimSpace(arg))
	if id.IsZero() || strings.ContainsAny(arg, "/?#") {
		return "", NewValidationError("id", arg, "expected a chat id as shown by 'qbot history'")
	}
	return id, nil
}

// notFound turns a 404 into a NotFoundError naming the chat.
func notFound(err error, id model.RecordID) error {
	if errors.Is(err, api.ErrNotFound) && !errors.Is(err, chat.ErrSessionInvalid) {
		return fmt.Errorf("%w: %w", NewNotFoundError("chat", id.String()), err)
	}
	return err
}
