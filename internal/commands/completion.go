// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package commands

import (
	"sort"
	"strconv"
	"strings"
)

// =============================================================================
// COMPLETER
// =============================================================================

// Completion is one candidate.
type Completion struct {
	Value       string
	Display     string
	Description string
	Score       int
}

// RecordInfo describes a chat for record argument completion.
type RecordInfo struct {
	Number int // position in the last listing, from 1
	ID     string
	Title  string
}

// Completer handles tab completion for commands and arguments.
type Completer struct {
	registry *Registry

	// RecordsFn returns the chats record arguments can refer to.
	RecordsFn func() []RecordInfo
}

// NewCompleter creates a new completer with the given registry.
func NewCompleter(registry *Registry) *Completer {
	return &Completer{registry: registry}
}

// Complete returns completions for the word being typed at the end of input.
func (c *Completer) Complete(input string) []Completion {
	if !strings.HasPrefix(strings.TrimLeft(input, " "), "/") {
		return nil
	}
	input = strings.TrimLeft(input, " ")

	parts := splitCommandLine(input)
	trailingSpace := strings.HasSuffix(input, " ")

	if len(parts) == 1 && !trailingSpace {
		return c.completeCommands(parts[0])
	}

	cmd := c.registry.Get(parts[0])
	if cmd == nil {
		return nil
	}

	argIndex := len(parts) - 2
	partial := parts[len(parts)-1]
	if trailingSpace {
		argIndex++
		partial = ""
	}
	return c.completeArg(cmd, argIndex, partial)
}

// Lines adapts Complete to line editors that replace the whole line, such
// as liner's SetCompleter.
func (c *Completer) Lines(line string) []string {
	completions := c.Complete(line)
	if len(completions) == 0 {
		return nil
	}
	head := line
	if i := strings.LastIndex(line, " "); i >= 0 {
		head = line[:i+1]
	} else {
		head = ""
	}
	out := make([]string, 0, len(completions))
	for _, comp := range completions {
		out = append(out, head+comp.Value)
	}
	return out
}

// =============================================================================
// COMMAND COMPLETION
// =============================================================================

func (c *Completer) completeCommands(partial string) []Completion {
	var completions []Completion
	partial = strings.ToLower(partial)

	for _, cmd := range c.registry.All() {
		if cmd.Hidden {
			continue
		}
		if strings.HasPrefix(strings.ToLower(cmd.Name), partial) {
			completions = append(completions, Completion{
				Value:       cmd.Name,
				Display:     cmd.Name,
				Description: cmd.Description,
				Score:       calculateScore(cmd.Name, partial),
			})
			continue
		}
		for _, alias := range cmd.Aliases {
			if strings.HasPrefix(strings.ToLower(alias), partial) {
				completions = append(completions, Completion{
					Value:       alias,
					Display:     alias + " -> " + cmd.Name,
					Description: cmd.Description,
					Score:       calculateScore(alias, partial) - 10,
				})
			}
		}
	}

	sortCompletions(completions)
	return completions
}

// =============================================================================
// ARGUMENT COMPLETION
// =============================================================================

func (c *Completer) completeArg(cmd *Command, argIndex int, partial string) []Completion {
	if argIndex < 0 || argIndex >= len(cmd.Args) {
		return nil
	}
	arg := cmd.Args[argIndex]

	switch arg.Type {
	case ArgTypeRecord:
		return c.completeRecords(partial)
	case ArgTypeEnum:
		return completeFromList(arg.Values, partial)
	default:
		if arg.Completer != nil {
			return completeFromList(arg.Completer(), partial)
		}
		return nil
	}
}

// completeRecords matches list numbers first, then ids.
func (c *Completer) completeRecords(partial string) []Completion {
	if c.RecordsFn == nil {
		return nil
	}
	var completions []Completion
	for _, rec := range c.RecordsFn() {
		num := strconv.Itoa(rec.Number)
		switch {
		case rec.Number > 0 && strings.HasPrefix(num, partial):
			completions = append(completions, Completion{
				Value:       num,
				Display:     num + "  " + truncate(rec.Title, 40),
				Description: rec.ID,
				Score:       1000 - rec.Number,
			})
		case partial != "" && strings.HasPrefix(rec.ID, partial):
			completions = append(completions, Completion{
				Value:       rec.ID,
				Display:     rec.ID + "  " + truncate(rec.Title, 40),
				Description: rec.Title,
				Score:       calculateScore(rec.ID, partial),
			})
		}
	}
	sortCompletions(completions)
	return completions
}

func completeFromList(values []string, partial string) []Completion {
	var completions []Completion
	lower := strings.ToLower(partial)
	for _, v := range values {
		if strings.HasPrefix(strings.ToLower(v), lower) {
			completions = append(completions, Completion{
				Value:   v,
				Display: v,
				Score:   calculateScore(v, partial),
			})
		}
	}
	sortCompletions(completions)
	return completions
}

// =============================================================================
// HELPERS
// =============================================================================

// calculateScore ranks exact and short prefix matches first.
func calculateScore(value, partial string) int {
	value = strings.ToLower(value)
	partial = strings.ToLower(partial)

	score := 100
	if value == partial {
		return score + 100
	}
	if strings.HasPrefix(value, partial) {
		score += 50
		score += 20 - len(value)
	}
	score -= len(value) / 2
	return score
}

// sortCompletions sorts completions by score (descending), then alphabetically.
func sortCompletions(completions []Completion) {
	sort.SliceStable(completions, func(i, j int) bool {
		if completions[i].Score != completions[j].Score {
			return completions[i].Score > completions[j].Score
		}
		return completions[i].Value < completions[j].Value
	})
}

// truncate shortens s to maxLen runes.
func truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen-3]) + "..."
}
