// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package commands provides the slash command system for the line-based chat.
//
// A Registry holds Commands in registration order. Input starting with "/"
// is split into a command name and arguments (quotes group words), checked
// against the command's ArgDefs and passed to its Handler. A Completer offers
// tab completion of command names and argument values.
//
// # Usage
//
//	reg := commands.NewRegistry()
//	reg.Register(&commands.Command{
//	    Name:    "/quit",
//	    Aliases: []string{"/q"},
//	    Handler: func(ctx context.Context, args []string) (bool, error) { return true, nil },
//	})
//	done, err := reg.Execute(ctx, "/q")
package commands
