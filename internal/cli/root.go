// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
)

// BuildInfo is stamped into the binary by the linker.
type BuildInfo struct {
	Version string
	Commit  string
	Date    string
}

// App holds the streams and global flags shared by every command. A fresh
// App is built per invocation so tests can run commands in-process.
type App struct {
	In  io.Reader
	Out io.Writer
	Err io.Writer

	Build BuildInfo

	configPath string
	baseURL    string
	jsonOut    bool
	verbose    bool

	// command is the name of the command being run, for the JSON envelope.
	command string
}

// NewApp creates an App on the given streams.
func NewApp(in io.Reader, out, errOut io.Writer, build BuildInfo) *App {
	return &App{In: in, Out: out, Err: errOut, Build: build}
}

// Execute is the main entry point called from main.go. It returns the
// process exit code.
func Execute(version, commit, date string) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := NewApp(os.Stdin, os.Stdout, os.Stderr, BuildInfo{Version: version, Commit: commit, Date: date})
	err := app.Run(ctx, os.Args[1:])
	if err == nil {
		return ExitSuccess
	}

	if app.jsonOut {
		DisplayError(app.Out, err, true, app.command)
	} else {
		DisplayError(app.Err, err, false, app.command)
	}
	return GetExitCode(err)
}

// Run parses args and runs the selected command.
func (a *App) Run(ctx context.Context, args []string) error {
	root := a.newRootCmd()
	root.SetArgs(args)
	root.SetIn(a.In)
	root.SetOut(a.Out)
	root.SetErr(a.Err)

	err := root.ExecuteContext(ctx)
	if err != nil && isUsageError(err) {
		return &ValidationError{Field: "arguments", Reason: err.Error(), Example: "qbot --help"}
	}
	return err
}

func (a *App) newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "qbot",
		Short: "Terminal client for the QBot question answering service",
		Long: "qbot signs in to a QBot server, asks questions and browses your chat history.\n" +
			"Run without a command to open the full-screen interface.",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			a.command = commandName(cmd)
		},
		// Running qbot with no subcommand opens the chat interface.
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runChat(cmd.Context(), chatOptions{})
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&a.configPath, "config", "c", "", "config file path (default ~/.qbot/config.toml)")
	pf.StringVar(&a.baseURL, "base-url", "", "override api.base_url for this run")
	pf.BoolVar(&a.jsonOut, "json", false, "print machine-readable JSON")
	pf.BoolVarP(&a.verbose, "verbose", "v", false, "log debug output to stderr")

	rootCmd.AddCommand(
		a.newLoginCmd(),
		a.newRegisterCmd(),
		a.newLogoutCmd(),
		a.newStatusCmd(),
		a.newAskCmd(),
		a.newHistoryCmd(),
		a.newShowCmd(),
		a.newDeleteCmd(),
		a.newExportCmd(),
		a.newChatCmd(),
		a.newConfigCmd(),
		a.newVersionCmd(),
		a.newDevServerCmd(),
	)
	return rootCmd
}

// commandName is the command path without the binary name, e.g.
// "config get".
func commandName(cmd *cobra.Command) string {
	path := cmd.CommandPath()
	if i := strings.IndexByte(path, ' '); i >= 0 {
		return path[i+1:]
	}
	return path
}

// isUsageError reports whether err came from cobra's argument and flag
// parsing rather than from a command.
func isUsageError(err error) bool {
	var cmdErr *CommandError
	var valErr *ValidationError
	if errors.As(err, &cmdErr) || errors.As(err, &valErr) || GetExitCode(err) != ExitGeneralError {
		return false
	}
	msg := err.Error()
	for _, prefix := range []string{"unknown command", "unknown flag", "unknown shorthand flag", "accepts ", "requires at least", "invalid argument", "flag needs an argument"} {
		if strings.HasPrefix(msg, prefix) {
			return true
		}
	}
	return false
}

// printJSON writes a success envelope for the current command.
func (a *App) printJSON(data interface{}) error {
	return NewJSONResponse(a.command, data).Print(a.Out)
}
