// Package ui renders synchronization progress in the terminal.
//
// [SyncModel] is a bubbletea program that runs one synchronization in the background and
// follows its [tasks.ProgressUpdate] stream: a spinner for the current phase, a short history
// of finished steps and the final [tasks.SyncOutcome]. Pressing q or ctrl+c cancels the run.
//
// [Palette] holds the lipgloss styles shared with the non-interactive CLI output.
package ui
