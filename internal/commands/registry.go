// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package commands

import (
	"context"
	"fmt"
	"strings"
)

// =============================================================================
// COMMAND DEFINITION
// =============================================================================

// Handler runs a command. done ends the session that dispatched it.
type Handler func(ctx context.Context, args []string) (done bool, err error)

// Command represents a slash command that can be executed.
type Command struct {
	// Name is the primary command name (e.g., "/help")
	Name string

	// Aliases are alternative names (e.g., "/h", "/?")
	Aliases []string

	// Description is shown in help and completion
	Description string

	// Usage shows argument syntax (e.g., "/show <n|id>")
	Usage string

	// Args defines the expected arguments
	Args []ArgDef

	// Handler is the function that executes the command
	Handler Handler

	// Hidden commands don't appear in help or completion
	Hidden bool
}

// ArgDef defines an argument for a command.
type ArgDef struct {
	Name        string
	Required    bool
	Type        ArgType
	Description string

	// Values for enum types
	Values []string

	// Completer for custom completion
	Completer func() []string
}

// ArgType indicates what kind of completion to provide.
type ArgType int

const (
	ArgTypeString ArgType = iota // Free-form string
	ArgTypeRecord                // Chat record: list number or id
	ArgTypeEnum                  // One of predefined values
)

// =============================================================================
// COMMAND REGISTRY
// =============================================================================

// Registry holds all registered commands. It is not safe for concurrent
// registration; build it before use.
type Registry struct {
	commands map[string]*Command
	aliases  map[string]*Command
	order    []*Command
}

// NewRegistry creates an empty command registry.
func NewRegistry() *Registry {
	return &Registry{
		commands: make(map[string]*Command),
		aliases:  make(map[string]*Command),
	}
}

// Register adds a command to the registry. A later command with the same
// name replaces the earlier one.
func (r *Registry) Register(cmd *Command) {
	name := strings.ToLower(cmd.Name)
	if old, ok := r.commands[name]; ok {
		for i, c := range r.order {
			if c == old {
				r.order = append(r.order[:i:i], r.order[i+1:]...)
				break
			}
		}
	}
	r.commands[name] = cmd
	for _, alias := range cmd.Aliases {
		r.aliases[strings.ToLower(alias)] = cmd
	}
	r.order = append(r.order, cmd)
}

// Get retrieves a command by name or alias, ignoring case.
func (r *Registry) Get(name string) *Command {
	name = strings.ToLower(name)
	if cmd, ok := r.commands[name]; ok {
		return cmd
	}
	if cmd, ok := r.aliases[name]; ok {
		return cmd
	}
	return nil
}

// All returns all registered commands in registration order.
func (r *Registry) All() []*Command {
	return append([]*Command(nil), r.order...)
}

// Help renders one line per visible command.
func (r *Registry) Help() string {
	width := 0
	for _, cmd := range r.order {
		if !cmd.Hidden && len(usage(cmd)) > width {
			width = len(usage(cmd))
		}
	}
	var sb strings.Builder
	for _, cmd := range r.order {
		if cmd.Hidden {
			continue
		}
		fmt.Fprintf(&sb, "  %-*s  %s\n", width, usage(cmd), cmd.Description)
	}
	return strings.TrimRight(sb.String(), "\n")
}

func usage(cmd *Command) string {
	if cmd.Usage != "" {
		return cmd.Usage
	}
	return cmd.Name
}

// =============================================================================
// EXECUTION
// =============================================================================

// Execute parses input and runs the matching command. Input that is not a
// command returns ErrNotCommand.
func (r *Registry) Execute(ctx context.Context, input string) (done bool, err error) {
	res := NewParser(r).Parse(input)
	if !res.IsCommand {
		return false, ErrNotCommand
	}
	if res.Command == nil {
		return false, &UnknownCommandError{Name: res.CommandName}
	}
	if err := ValidateArgs(res.Command, res.Args); err != nil {
		return false, err
	}
	if res.Command.Handler == nil {
		return false, nil
	}
	return res.Command.Handler(ctx, res.Args)
}
