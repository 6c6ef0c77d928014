// Package execshell provides structured helpers for invoking external tools.
//
// It wraps os/exec with logging via ShellExecutor, exposes OSCommandRunner for
// synchronous spawn-and-wait execution and BackgroundProcess for long-lived
// helper processes, and defines the abstractions nagbuild uses to run git, npm,
// bower, and project test commands in a testable manner.
package execshell
