// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package styles provides the visual styling system for the qbot terminal client.

All colors use Lip Gloss AdaptiveColor so they follow the terminal
background. The ui.theme setting can pin the mode:

	theme := styles.NewTheme("auto") // or "dark", "light"
	theme.SetSize(width, height)
	if theme.GetLayoutMode() == styles.LayoutNarrow {
		// history list hidden
	}

Every status color has an ASCII indicator ([OK], [X], [!], [i]) so toasts
and CLI messages read correctly without color.
*/
package styles
