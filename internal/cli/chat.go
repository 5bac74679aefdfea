// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jeranaias/qbot-tui/internal/chat"
	"github.com/jeranaias/qbot-tui/internal/commands"
	"github.com/jeranaias/qbot-tui/internal/config"
	"github.com/jeranaias/qbot-tui/internal/model"
	"github.com/jeranaias/qbot-tui/internal/session"
	"github.com/jeranaias/qbot-tui/internal/ui/app"
	"github.com/jeranaias/qbot-tui/internal/util"
)

type chatOptions struct {
	plain bool
	route string
}

func (a *App) newChatCmd() *cobra.Command {
	var opts chatOptions
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Open the chat interface",
		Long: "Open the full-screen chat interface.\n\n" +
			"--plain starts a line-based prompt instead, which also works when\n" +
			"stdin or stdout is not a terminal.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runChat(cmd.Context(), opts)
		},
	}
	cmd.Flags().BoolVar(&opts.plain, "plain", false, "use a line-based prompt instead of the full-screen UI")
	cmd.Flags().StringVar(&opts.route, "route", "", "screen to open: /, /auth or /chat")
	return cmd
}

func (a *App) runChat(ctx context.Context, opts chatOptions) error {
	interactive := isTerminal(a.In) && isTerminal(a.Out)
	if opts.plain || !interactive {
		if opts.route != "" {
			return NewValidationError("--route", opts.route, "only applies to the full-screen UI")
		}
		return a.withEnv(func(e *env) error {
			return a.runREPL(ctx, e)
		})
	}

	return a.withEnv(func(e *env) error {
		route := session.RouteLanding
		if e.store.IsAuthenticated() {
			route = session.RouteChat
		}
		if opts.route != "" {
			route = session.ParseRoute(opts.route)
		}

		if err := e.store.StartWatching(ctx); err != nil {
			e.log.Warn("storage watch unavailable", zap.Error(err))
		}
		return app.Run(ctx, app.Deps{
			Config: e.cfg,
			Store:  e.store,
			Client: e.client,
			Chat:   e.chat,
			Logger: e.base,
		}, route)
	})
}

// =============================================================================
// LINE-BASED CHAT
// =============================================================================

// lineReader is the part of liner the prompt loop uses.
type lineReader interface {
	Prompt(prompt string) (string, error)
	AppendHistory(item string)
	Close() error
}

// historyLiner adds persistent input history to liner.
type historyLiner struct {
	*liner.State
	historyFile string
}

func newHistoryLiner(completer *commands.Completer) *historyLiner {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)
	line.SetCompleter(completer.Lines)

	dir, err := config.ConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	h := &historyLiner{State: line, historyFile: filepath.Join(dir, "chat_history")}
	if f, err := os.Open(h.historyFile); err == nil {
		_, _ = line.ReadHistory(f)
		f.Close()
	}
	return h
}

// Close saves history with owner-only permissions and restores the terminal.
func (h *historyLiner) Close() error {
	if err := config.EnsureConfigDir(); err == nil {
		if f, err := os.OpenFile(h.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600); err == nil {
			_, _ = h.WriteHistory(f)
			f.Close()
		}
	}
	return h.State.Close()
}

// scriptReader reads prompt input from a plain stream. Used when In is not
// the process stdin.
type scriptReader struct {
	a *App
}

func (s scriptReader) Prompt(prompt string) (string, error) {
	line, err := s.a.readLine()
	if errors.Is(err, ErrAborted) {
		return "", io.EOF
	}
	return line, err
}

func (scriptReader) AppendHistory(string) {}
func (scriptReader) Close() error         { return nil }

func (a *App) newLineReader(completer *commands.Completer) lineReader {
	if f, ok := a.In.(*os.File); ok && f == os.Stdin {
		return newHistoryLiner(completer)
	}
	return scriptReader{a: a}
}

// runREPL is the line-based chat loop.
func (a *App) runREPL(ctx context.Context, e *env) error {
	if _, err := e.requireSession(); err != nil {
		return err
	}

	var signedOut atomic.Bool
	unsub := e.store.Subscribe(func(ev session.Event) {
		if ev.Kind == session.EventLogout {
			signedOut.Store(true)
		}
	})
	defer unsub()
	if err := e.store.StartWatching(ctx); err != nil {
		e.log.Warn("storage watch unavailable", zap.Error(err))
	}

	sess, _ := e.store.Current()
	fmt.Fprintf(a.Out, "%s %s\n", TitleStyle.Render("QBot"), DimStyle.Render("signed in as "+sess.User().DisplayName()))
	fmt.Fprintln(a.Out, DimStyle.Render("Type /help for commands, /quit to leave."))

	if records, err := a.replFetch(ctx, e); err != nil {
		if errors.Is(err, chat.ErrSessionInvalid) {
			return err
		}
		fmt.Fprintln(a.Out, WarningStyle.Render("Could not load history: "+message(err)))
	} else if len(records) > 0 {
		fmt.Fprintln(a.Out, DimStyle.Render(fmt.Sprintf("%d chats in your history, /history to list them.", len(records))))
	}

	reg := a.replCommands(e)
	completer := commands.NewCompleter(reg)
	completer.RecordsFn = func() []commands.RecordInfo {
		records := e.chat.Snapshot().Records
		infos := make([]commands.RecordInfo, len(records))
		for i, rec := range records {
			infos[i] = commands.RecordInfo{Number: i + 1, ID: rec.ID.String(), Title: rec.DisplayTitle()}
		}
		return infos
	}

	in := a.newLineReader(completer)
	defer in.Close()

	for {
		line, err := in.Prompt("qbot> ")
		if signedOut.Load() {
			fmt.Fprintln(a.Out, WarningStyle.Render("Your session has expired. Please sign in again."))
			return ErrNotSignedIn
		}
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
				fmt.Fprintln(a.Out)
				return nil
			}
			return err
		}
		if ctx.Err() != nil {
			return nil
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		in.AppendHistory(line)

		done, err := a.replLine(ctx, e, reg, line)
		if err != nil {
			if errors.Is(err, chat.ErrSessionInvalid) {
				fmt.Fprintln(a.Out, WarningStyle.Render("Session expired. Please sign in again."))
				return err
			}
			DisplayError(a.Out, err, false, "chat")
		}
		if done {
			return nil
		}
	}
}

// replLine handles one input line. done ends the loop.
func (a *App) replLine(ctx context.Context, e *env, reg *commands.Registry, line string) (done bool, err error) {
	done, err = reg.Execute(ctx, line)
	var unknown *commands.UnknownCommandError
	var invalid *commands.ValidationError
	switch {
	case errors.Is(err, commands.ErrNotCommand):
		return false, a.replAsk(ctx, e, line)
	case errors.As(err, &unknown):
		return false, NewValidationErrorWithExample("command", unknown.Name, "unknown command", "/help")
	case errors.As(err, &invalid):
		return false, NewValidationError("arguments", "", invalid.Error())
	}
	return done, err
}

// replCommands builds the slash commands of the line-based chat.
func (a *App) replCommands(e *env) *commands.Registry {
	reg := commands.NewRegistry()
	chatArg := []commands.ArgDef{{Name: "chat", Type: commands.ArgTypeRecord, Description: "number from /history or a chat id"}}

	reg.Register(&commands.Command{
		Name:        "/history",
		Aliases:     []string{"/h"},
		Description: "list your chats",
		Handler: func(ctx context.Context, args []string) (bool, error) {
			records, err := a.replFetch(ctx, e)
			if err != nil {
				return false, err
			}
			a.printNumbered(records)
			return false, nil
		},
	})
	reg.Register(&commands.Command{
		Name:        "/show",
		Usage:       "/show <n|id>",
		Description: "show a chat (n is the number from /history)",
		Args:        chatArg,
		Handler: func(ctx context.Context, args []string) (bool, error) {
			id, err := a.replTarget(e, firstArg(args))
			if err != nil {
				return false, err
			}
			rctx, cancel := e.requestContext(ctx)
			defer cancel()
			rec, err := e.chat.OpenChat(rctx, id)
			if err != nil {
				return false, notFound(err, id)
			}
			a.printRecord(e, rec, false)
			return false, nil
		},
	})
	reg.Register(&commands.Command{
		Name:        "/delete",
		Aliases:     []string{"/rm"},
		Usage:       "/delete <n|id>",
		Description: "delete a chat",
		Args:        chatArg,
		Handler: func(ctx context.Context, args []string) (bool, error) {
			id, err := a.replTarget(e, firstArg(args))
			if err != nil {
				return false, err
			}
			rctx, cancel := e.requestContext(ctx)
			defer cancel()
			if err := e.chat.DeleteChat(rctx, id); err != nil {
				return false, notFound(err, id)
			}
			fmt.Fprintln(a.Out, SuccessStyle.Render("Chat deleted"))
			return false, nil
		},
	})
	reg.Register(&commands.Command{
		Name:        "/new",
		Description: "clear the current selection",
		Handler: func(ctx context.Context, args []string) (bool, error) {
			e.chat.ClearSelection()
			fmt.Fprintln(a.Out, DimStyle.Render("Ready for a new question."))
			return false, nil
		},
	})
	reg.Register(&commands.Command{
		Name:        "/status",
		Description: "show the signed-in account",
		Handler: func(ctx context.Context, args []string) (bool, error) {
			return false, a.status(ctx, e, false)
		},
	})
	reg.Register(&commands.Command{
		Name:        "/logout",
		Description: "sign out and leave",
		Handler: func(ctx context.Context, args []string) (bool, error) {
			if err := e.store.Logout(session.ReasonUser); err != nil {
				return false, err
			}
			e.chat.Reset()
			fmt.Fprintln(a.Out, SuccessStyle.Render("Logged out successfully"))
			return true, nil
		},
	})
	reg.Register(&commands.Command{
		Name:        "/help",
		Aliases:     []string{"/?"},
		Description: "show this help",
		Handler: func(ctx context.Context, args []string) (bool, error) {
			fmt.Fprintln(a.Out, "Type a question and press Enter. Commands:")
			fmt.Fprintln(a.Out, reg.Help())
			return false, nil
		},
	})
	reg.Register(&commands.Command{
		Name:        "/quit",
		Aliases:     []string{"/exit", "/q"},
		Description: "leave",
		Handler: func(ctx context.Context, args []string) (bool, error) {
			return true, nil
		},
	})
	return reg
}

func firstArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}

func (a *App) replAsk(ctx context.Context, e *env, question string) error {
	rctx, cancel := e.requestContext(ctx)
	defer cancel()

	start := time.Now()
	fmt.Fprintln(a.Out, DimStyle.Render("Thinking..."))
	rec, err := e.chat.SubmitQuestion(rctx, question)
	if err != nil {
		return err
	}
	e.log.Debug("answer received", zap.Duration("took", time.Since(start)))

	fmt.Fprintln(a.Out)
	a.printAnswer(e, rec, false)
	fmt.Fprintln(a.Out)
	return nil
}

func (a *App) replFetch(ctx context.Context, e *env) ([]model.ChatRecord, error) {
	rctx, cancel := e.requestContext(ctx)
	defer cancel()
	return e.chat.FetchHistory(rctx)
}

// printNumbered lists records with the numbers /show and /delete accept.
func (a *App) printNumbered(records []model.ChatRecord) {
	if len(records) == 0 {
		fmt.Fprintln(a.Out, "No messages yet")
		return
	}
	now := time.Now()
	width := terminalWidth(a.Out) - 24
	for i, rec := range records {
		fmt.Fprintf(a.Out, "%3d  %s  %s\n", i+1,
			util.TruncateWidth(util.SingleLine(rec.DisplayTitle()), width),
			DimStyle.Render(formatCreated(rec.CreatedAt.Time, now)))
	}
}

// replTarget resolves a list number or a literal id. Numbers refer to the
// list as last fetched.
func (a *App) replTarget(e *env, arg string) (model.RecordID, error) {
	if arg == "" {
		if rec, ok := e.chat.Snapshot().SelectedRecord(); ok {
			return rec.ID, nil
		}
		return "", NewValidationErrorWithExample("id", "", "name a chat", "/show 1")
	}
	if n, err := strconv.Atoi(arg); err == nil {
		records := e.chat.Snapshot().Records
		if n >= 1 && n <= len(records) {
			return records[n-1].ID, nil
		}
	}
	return parseRecordID(arg)
}
