package execshell

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
)

const (
	environmentAssignmentSeparatorConstant = "="
	environmentAssignmentTemplateConstant  = "%s%s%s"
)

// OSCommandRunner executes commands using the operating system facilities.
type OSCommandRunner struct {
	standardOutput io.Writer
	standardError  io.Writer
}

// NewOSCommandRunner constructs a runner backed by os/exec that inherits the process streams.
func NewOSCommandRunner() *OSCommandRunner {
	return &OSCommandRunner{standardOutput: os.Stdout, standardError: os.Stderr}
}

// NewOSCommandRunnerWithStreams constructs a runner whose inherited output goes to the supplied writers.
func NewOSCommandRunnerWithStreams(standardOutput io.Writer, standardError io.Writer) *OSCommandRunner {
	return &OSCommandRunner{standardOutput: standardOutput, standardError: standardError}
}

// Run spawns the command and blocks until it exits. A non-zero exit code is
// reported through the result; only spawn and wait failures return an error.
func (runner *OSCommandRunner) Run(executionContext context.Context, command ShellCommand) (ExecutionResult, error) {
	executable := runner.buildExecutable(executionContext, command)

	var standardOutputBuffer bytes.Buffer
	var standardErrorBuffer bytes.Buffer
	switch command.Details.OutputPolicy {
	case OutputPolicyInherit:
		executable.Stdout = runner.standardOutput
		executable.Stderr = runner.standardError
	case OutputPolicySuppress:
		executable.Stdout = nil
		executable.Stderr = nil
	default:
		executable.Stdout = &standardOutputBuffer
		executable.Stderr = &standardErrorBuffer
	}

	runError := executable.Run()
	if runError != nil {
		exitError := &exec.ExitError{}
		if errors.As(runError, &exitError) {
			return ExecutionResult{
				StandardOutput: standardOutputBuffer.String(),
				StandardError:  standardErrorBuffer.String(),
				ExitCode:       exitError.ExitCode(),
			}, nil
		}
		return ExecutionResult{}, runError
	}

	return ExecutionResult{
		StandardOutput: standardOutputBuffer.String(),
		StandardError:  standardErrorBuffer.String(),
		ExitCode:       0,
	}, nil
}

// Start spawns the command without waiting for it to exit.
func (runner *OSCommandRunner) Start(executionContext context.Context, command ShellCommand) (*BackgroundProcess, error) {
	executable := runner.buildExecutable(executionContext, command)
	if command.Details.OutputPolicy == OutputPolicyInherit {
		executable.Stdout = runner.standardOutput
		executable.Stderr = runner.standardError
	}

	if startError := executable.Start(); startError != nil {
		return nil, startError
	}

	return newBackgroundProcess(command, executable), nil
}

func (runner *OSCommandRunner) buildExecutable(executionContext context.Context, command ShellCommand) *exec.Cmd {
	commandArguments := append([]string{}, command.Details.Arguments...)
	executable := exec.CommandContext(executionContext, string(command.Name), commandArguments...)

	if len(command.Details.WorkingDirectory) > 0 {
		executable.Dir = command.Details.WorkingDirectory
	}

	if len(command.Details.EnvironmentVariables) > 0 {
		mergedEnvironment := append([]string{}, os.Environ()...)
		for environmentKey, environmentValue := range command.Details.EnvironmentVariables {
			mergedEnvironment = append(mergedEnvironment, fmt.Sprintf(environmentAssignmentTemplateConstant, environmentKey, environmentAssignmentSeparatorConstant, environmentValue))
		}
		executable.Env = mergedEnvironment
	}

	if len(command.Details.StandardInput) > 0 {
		executable.Stdin = bytes.NewReader(command.Details.StandardInput)
	}

	return executable
}
