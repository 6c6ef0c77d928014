package execshell

import (
	"errors"
	"os"
	"os/exec"
	"sync"
)

// BackgroundProcess tracks a long-lived child process started without waiting.
type BackgroundProcess struct {
	command    ShellCommand
	executable *exec.Cmd
	exited     chan struct{}
	waitError  error
	stopOnce   sync.Once
	stopError  error
}

func newBackgroundProcess(command ShellCommand, executable *exec.Cmd) *BackgroundProcess {
	process := &BackgroundProcess{
		command:    command,
		executable: executable,
		exited:     make(chan struct{}),
	}
	go func() {
		process.waitError = executable.Wait()
		close(process.exited)
	}()
	return process
}

// Command returns the command that started the process.
func (process *BackgroundProcess) Command() ShellCommand {
	return process.command
}

// PID returns the operating system process identifier.
func (process *BackgroundProcess) PID() int {
	if process == nil || process.executable == nil || process.executable.Process == nil {
		return 0
	}
	return process.executable.Process.Pid
}

// Exited reports whether the child has terminated and been reaped.
func (process *BackgroundProcess) Exited() bool {
	if process == nil {
		return true
	}
	select {
	case <-process.exited:
		return true
	default:
		return false
	}
}

// Done is closed once the child has terminated.
func (process *BackgroundProcess) Done() <-chan struct{} {
	return process.exited
}

// Stop kills the child and waits for it to be reaped. Calling Stop more than once is safe.
func (process *BackgroundProcess) Stop() error {
	if process == nil {
		return nil
	}
	process.stopOnce.Do(func() {
		if !process.Exited() {
			killError := process.executable.Process.Kill()
			if killError != nil && !errors.Is(killError, os.ErrProcessDone) {
				process.stopError = killError
			}
		}
		<-process.exited
	})
	return process.stopError
}
