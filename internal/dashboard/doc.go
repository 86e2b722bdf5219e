// Package dashboard is the interactive terminal client: a Bubble Tea program
// with a landing screen for sign-in and a chat dashboard that drives the
// orchestrator and the reply and delete dialogs.
//
// Backend calls run as tea.Cmds and post their outcome back into Update,
// where the matching Complete step is applied. The render helpers are plain
// functions shared with the non-interactive commands.
package dashboard
