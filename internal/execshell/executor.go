package execshell

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"
)

const (
	loggerNotConfiguredMessageConstant         = "shell executor logger not configured"
	commandRunnerNotConfiguredMessageConstant  = "shell executor command runner not configured"
	processStarterNotConfiguredMessageConstant = "shell executor runner cannot start background processes"
	executingCommandLogMessageConstant         = "executing command"
	commandCompletedLogMessageConstant         = "command completed"
	commandFailedLogMessageConstant            = "command exited with non-zero code"
	commandExecutionFailedLogMessageConstant   = "command execution failed"
	backgroundStartedLogMessageConstant        = "background process started"
	logFieldCommandNameConstant                = "command"
	logFieldArgumentsConstant                  = "arguments"
	logFieldWorkingDirectoryConstant           = "working_directory"
	logFieldOutputPolicyConstant               = "output_policy"
	logFieldExitCodeConstant                   = "exit_code"
	logFieldStandardErrorConstant              = "stderr"
	logFieldProcessIdentifierConstant          = "pid"
)

// ErrLoggerNotConfigured indicates a missing logger dependency.
var ErrLoggerNotConfigured = errors.New(loggerNotConfiguredMessageConstant)

// ErrCommandRunnerNotConfigured indicates a missing command runner dependency.
var ErrCommandRunnerNotConfigured = errors.New(commandRunnerNotConfiguredMessageConstant)

// ErrProcessStarterNotConfigured indicates the runner cannot spawn background processes.
var ErrProcessStarterNotConfigured = errors.New(processStarterNotConfiguredMessageConstant)

// CommandRunner runs a command to completion.
type CommandRunner interface {
	Run(executionContext context.Context, command ShellCommand) (ExecutionResult, error)
}

// ProcessStarter spawns a command without waiting for it to finish.
type ProcessStarter interface {
	Start(executionContext context.Context, command ShellCommand) (*BackgroundProcess, error)
}

// ShellExecutor runs commands synchronously, logs their lifecycle, and converts
// non-zero exit codes into errors.
type ShellExecutor struct {
	logger   *zap.Logger
	runner   CommandRunner
	observer CommandEventObserver
}

// NewShellExecutor validates dependencies and constructs a ShellExecutor.
func NewShellExecutor(logger *zap.Logger, runner CommandRunner) (*ShellExecutor, error) {
	return NewShellExecutorWithObserver(logger, runner, nil)
}

// NewShellExecutorWithObserver constructs a ShellExecutor that reports lifecycle events to observer.
func NewShellExecutorWithObserver(logger *zap.Logger, runner CommandRunner, observer CommandEventObserver) (*ShellExecutor, error) {
	if logger == nil {
		return nil, ErrLoggerNotConfigured
	}
	if runner == nil {
		return nil, ErrCommandRunnerNotConfigured
	}
	if observer == nil {
		observer = noopCommandEventObserver{}
	}
	return &ShellExecutor{logger: logger, runner: runner, observer: observer}, nil
}

// Execute runs the command and blocks until it exits.
func (executor *ShellExecutor) Execute(executionContext context.Context, command ShellCommand) (ExecutionResult, error) {
	executor.logger.Debug(
		executingCommandLogMessageConstant,
		zap.String(logFieldCommandNameConstant, string(command.Name)),
		zap.Strings(logFieldArgumentsConstant, command.Details.Arguments),
		zap.String(logFieldWorkingDirectoryConstant, command.Details.WorkingDirectory),
		zap.String(logFieldOutputPolicyConstant, string(command.Details.OutputPolicy)),
	)
	executor.observer.CommandStarted(command)

	executionResult, runError := executor.runner.Run(executionContext, command)
	if runError != nil {
		executor.logger.Error(
			commandExecutionFailedLogMessageConstant,
			zap.String(logFieldCommandNameConstant, string(command.Name)),
			zap.Error(runError),
		)
		executor.observer.CommandExecutionFailed(command, runError)
		return ExecutionResult{}, CommandExecutionError{Command: command, Cause: runError}
	}

	executor.observer.CommandCompleted(command, executionResult)

	if executionResult.ExitCode != 0 {
		executor.logger.Warn(
			commandFailedLogMessageConstant,
			zap.String(logFieldCommandNameConstant, string(command.Name)),
			zap.Int(logFieldExitCodeConstant, executionResult.ExitCode),
			zap.String(logFieldStandardErrorConstant, strings.TrimSpace(executionResult.StandardError)),
		)
		return ExecutionResult{}, CommandFailedError{Command: command, Result: executionResult}
	}

	executor.logger.Debug(
		commandCompletedLogMessageConstant,
		zap.String(logFieldCommandNameConstant, string(command.Name)),
		zap.Int(logFieldExitCodeConstant, executionResult.ExitCode),
	)

	return executionResult, nil
}

// ExecuteGit runs git with the provided details.
func (executor *ShellExecutor) ExecuteGit(executionContext context.Context, details CommandDetails) (ExecutionResult, error) {
	return executor.Execute(executionContext, ShellCommand{Name: CommandGit, Details: details})
}

// ExecuteNPM runs npm with the provided details.
func (executor *ShellExecutor) ExecuteNPM(executionContext context.Context, details CommandDetails) (ExecutionResult, error) {
	return executor.Execute(executionContext, ShellCommand{Name: CommandNPM, Details: details})
}

// ExecuteBower runs bower with the provided details.
func (executor *ShellExecutor) ExecuteBower(executionContext context.Context, details CommandDetails) (ExecutionResult, error) {
	return executor.Execute(executionContext, ShellCommand{Name: CommandBower, Details: details})
}

// Start spawns a background process through the runner when it supports it.
func (executor *ShellExecutor) Start(executionContext context.Context, command ShellCommand) (*BackgroundProcess, error) {
	processStarter, supportsStart := executor.runner.(ProcessStarter)
	if !supportsStart {
		return nil, CommandExecutionError{Command: command, Cause: ErrProcessStarterNotConfigured}
	}

	executor.observer.CommandStarted(command)
	backgroundProcess, startError := processStarter.Start(executionContext, command)
	if startError != nil {
		executor.observer.CommandExecutionFailed(command, startError)
		return nil, CommandExecutionError{Command: command, Cause: startError}
	}

	executor.logger.Debug(
		backgroundStartedLogMessageConstant,
		zap.String(logFieldCommandNameConstant, string(command.Name)),
		zap.Strings(logFieldArgumentsConstant, command.Details.Arguments),
		zap.String(logFieldWorkingDirectoryConstant, command.Details.WorkingDirectory),
		zap.Int(logFieldProcessIdentifierConstant, backgroundProcess.PID()),
	)

	return backgroundProcess, nil
}
