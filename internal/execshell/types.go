package execshell

import "fmt"

const (
	commandFailedErrorTemplateConstant    = "%s command exited with code %d"
	commandFailedOutputTemplateConstant   = "%s command exited with code %d: %s"
	commandExecutionErrorTemplateConstant = "%s command failed: %v"
	commandGitStringConstant              = "git"
	commandNPMStringConstant              = "npm"
	commandBowerStringConstant            = "bower"
	outputPolicyCaptureStringConstant     = "capture"
	outputPolicyInheritStringConstant     = "inherit"
	outputPolicySuppressStringConstant    = "suppress"
)

// CommandName identifies an executable resolved through PATH.
type CommandName string

// Executables the release pipeline invokes directly.
const (
	CommandGit   CommandName = CommandName(commandGitStringConstant)
	CommandNPM   CommandName = CommandName(commandNPMStringConstant)
	CommandBower CommandName = CommandName(commandBowerStringConstant)
)

// OutputPolicy controls how a child process's standard streams are wired.
type OutputPolicy string

// Supported output policies. The zero value behaves as OutputPolicyCapture.
const (
	OutputPolicyCapture  OutputPolicy = OutputPolicy(outputPolicyCaptureStringConstant)
	OutputPolicyInherit  OutputPolicy = OutputPolicy(outputPolicyInheritStringConstant)
	OutputPolicySuppress OutputPolicy = OutputPolicy(outputPolicySuppressStringConstant)
)

// CommandDetails describes a single invocation.
type CommandDetails struct {
	Arguments            []string
	WorkingDirectory     string
	EnvironmentVariables map[string]string
	StandardInput        []byte
	OutputPolicy         OutputPolicy
}

// ShellCommand combines an executable with its invocation details.
type ShellCommand struct {
	Name    CommandName
	Details CommandDetails
}

// ExecutionResult captures the observable results of executing a command.
// Output fields are only populated under OutputPolicyCapture.
type ExecutionResult struct {
	StandardOutput string
	StandardError  string
	ExitCode       int
}

// CommandFailedError reports a command that ran to completion with a non-zero exit code.
type CommandFailedError struct {
	Command ShellCommand
	Result  ExecutionResult
}

// Error describes the failed command.
func (failure CommandFailedError) Error() string {
	if len(failure.Result.StandardError) > 0 {
		return fmt.Sprintf(commandFailedOutputTemplateConstant, failure.Command.Name, failure.Result.ExitCode, failure.Result.StandardError)
	}
	return fmt.Sprintf(commandFailedErrorTemplateConstant, failure.Command.Name, failure.Result.ExitCode)
}

// CommandExecutionError reports a command that could not be spawned or awaited.
type CommandExecutionError struct {
	Command ShellCommand
	Cause   error
}

// Error describes the execution failure.
func (failure CommandExecutionError) Error() string {
	return fmt.Sprintf(commandExecutionErrorTemplateConstant, failure.Command.Name, failure.Cause)
}

// Unwrap exposes the underlying cause.
func (failure CommandExecutionError) Unwrap() error {
	return failure.Cause
}
