// Package ui renders styled terminal output for the trackfx CLI with lipgloss.
//
// Status helpers ([Success], [Failure], [Warning], [Hint]) print one-line messages.
// [Features] and [Resolution] render aligned cards for cached feature lookups.
package ui
