// Package ui renders human-readable console output for release runs.
//
// ConsoleCommandEventLogger turns execshell lifecycle events into concise log
// lines, and Highlighter colors progress banners and the terminal error the way
// an operator watching a release expects, while structured telemetry keeps
// flowing through zap.
package ui
