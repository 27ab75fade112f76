// Package ui implements an interactive terminal interface using bubbletea's Elm architecture.
//
// The TUI provides a multi-view workflow for building playlists from a library:
//  1. [SelectView] : Choose the collections to analyze (space toggles, a toggles all)
//  2. [GeneratingView] : Monitor enrichment progress
//  3. [ReviewView] : Toggle groups and preview their tracks
//  4. [ConfirmView] : Confirm the playlists to create
//  5. [PublishingView] : Monitor playlist creation
//  6. [ResultView] : Show created playlists or the failure
//
// The (view) [Model] implements bubbletea/Elm's standard Init/Update/View pattern, receiving messages via the Msg union type.
// Progress updates flow through a channel from the tasks Engine, providing non-blocking status reporting during runs.
//
// Keyboard navigation uses vim-style bindings (j/k, space, enter, esc, y/n, q) with contextual help displayed via charmbracelet/bubbles/help.
package ui
