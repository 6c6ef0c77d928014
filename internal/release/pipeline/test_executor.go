package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/temirov/nagbuild/internal/execshell"
	"github.com/temirov/nagbuild/internal/release/configuration"
	releaseerrors "github.com/temirov/nagbuild/internal/release/errors"
)

const (
	runningTestsProgressTemplateConstant    = "running %s"
	startingServiceProgressTemplateConstant = "starting %s"
	serviceStartErrorTemplateConstant       = "unable to start %s: %w"
	testFailureTemplateConstant             = "test command %s failed: %w"
	testFailureIgnoredLogConstant           = "test failure ignored"
	serviceStopFailedLogConstant            = "auxiliary service did not stop cleanly"
	testsSkippedLogConstant                 = "repository has no test command"
	testsPassedLogConstant                  = "tests passed"
	logFieldCommandConstant                 = "command"
	commandLineSeparatorConstant            = " "
)

// TestExecutor runs each repository's test command, keeping its auxiliary
// services alive for the duration of the run.
type TestExecutor struct {
	dependencies Dependencies
	readiness    addressWaiter
}

// NewTestExecutor constructs a TestExecutor.
func NewTestExecutor(dependencies Dependencies) (*TestExecutor, error) {
	if executorError := dependencies.requireExecutor(); executorError != nil {
		return nil, executorError
	}
	return &TestExecutor{dependencies: dependencies.withDefaults(), readiness: newAddressWaiter()}, nil
}

// RunTests tests every repository in configuration order. A failing test
// command is fatal unless continueOnFailure is set, in which case it is
// logged. Auxiliary service failures are always fatal.
func (testExecutor *TestExecutor) RunTests(executionContext context.Context, releaseConfiguration configuration.Configuration, continueOnFailure bool) error {
	for _, repository := range releaseConfiguration.Repositories {
		testError := testExecutor.RunRepositoryTests(executionContext, repository)
		if testError == nil {
			continue
		}
		if continueOnFailure {
			if operation, _ := releaseerrors.OperationOf(testError); operation == releaseerrors.OperationRunTests {
				testExecutor.dependencies.Logger.Warn(testFailureIgnoredLogConstant, zap.String(logFieldRepositoryConstant, repository.DirectoryName), zap.Error(testError))
				continue
			}
		}
		return testError
	}
	return nil
}

// RunRepositoryTests runs the test command of one repository. Repositories
// without a test command start no processes.
func (testExecutor *TestExecutor) RunRepositoryTests(executionContext context.Context, repository configuration.Repository) error {
	directoryName := repository.DirectoryName
	if !repository.HasTests() {
		testExecutor.dependencies.Logger.Debug(testsSkippedLogConstant, zap.String(logFieldRepositoryConstant, directoryName))
		return nil
	}

	scopeError := testExecutor.dependencies.Workspace.WithDirectory(directoryName, func(repositoryPath string) (testError error) {
		var runningServices []*execshell.BackgroundProcess
		defer func() {
			testExecutor.stopServices(directoryName, runningServices)
		}()

		for _, service := range repository.AuxiliaryServices {
			process, startError := testExecutor.startService(executionContext, directoryName, repositoryPath, service)
			if process != nil {
				runningServices = append(runningServices, process)
			}
			if startError != nil {
				return releaseerrors.Test(releaseerrors.OperationStartService, directoryName, startError)
			}
		}

		commandLine := describeCommand(repository.TestCommand, repository.TestCommandArguments)
		testExecutor.dependencies.Reporter.Progress(directoryName, fmt.Sprintf(runningTestsProgressTemplateConstant, commandLine))
		_, executionError := testExecutor.dependencies.Executor.Execute(executionContext, execshell.ShellCommand{
			Name: execshell.CommandName(repository.TestCommand),
			Details: execshell.CommandDetails{
				Arguments:        append([]string(nil), repository.TestCommandArguments...),
				WorkingDirectory: repositoryPath,
				OutputPolicy:     execshell.OutputPolicyInherit,
			},
		})
		if executionError != nil {
			return releaseerrors.Test(releaseerrors.OperationRunTests, directoryName, fmt.Errorf(testFailureTemplateConstant, commandLine, executionError))
		}

		testExecutor.dependencies.Logger.Info(testsPassedLogConstant, zap.String(logFieldRepositoryConstant, directoryName), zap.String(logFieldCommandConstant, commandLine))
		return nil
	})

	return asStepError(scopeError, func(cause error) releaseerrors.StepError {
		return releaseerrors.Test(releaseerrors.OperationRunTests, directoryName, cause)
	})
}

func (testExecutor *TestExecutor) startService(executionContext context.Context, directoryName string, repositoryPath string, service configuration.AuxiliaryService) (*execshell.BackgroundProcess, error) {
	commandLine := describeCommand(service.Command, service.Arguments)
	testExecutor.dependencies.Reporter.Progress(directoryName, fmt.Sprintf(startingServiceProgressTemplateConstant, commandLine))

	process, startError := testExecutor.dependencies.Executor.Start(executionContext, execshell.ShellCommand{
		Name: execshell.CommandName(service.Command),
		Details: execshell.CommandDetails{
			Arguments:        append([]string(nil), service.Arguments...),
			WorkingDirectory: filepath.Join(repositoryPath, service.WorkingDirectory),
			OutputPolicy:     execshell.OutputPolicySuppress,
		},
	})
	if startError != nil {
		return nil, fmt.Errorf(serviceStartErrorTemplateConstant, commandLine, startError)
	}

	if len(service.ReadyAddress) > 0 {
		if waitError := testExecutor.readiness.wait(executionContext, process, service.ReadyAddress, service.ReadyTimeout); waitError != nil {
			return process, fmt.Errorf(serviceStartErrorTemplateConstant, commandLine, waitError)
		}
	}
	return process, nil
}

func (testExecutor *TestExecutor) stopServices(directoryName string, runningServices []*execshell.BackgroundProcess) {
	for serviceIndex := len(runningServices) - 1; serviceIndex >= 0; serviceIndex-- {
		process := runningServices[serviceIndex]
		if stopError := process.Stop(); stopError != nil {
			testExecutor.dependencies.Logger.Warn(
				serviceStopFailedLogConstant,
				zap.String(logFieldRepositoryConstant, directoryName),
				zap.String(logFieldCommandConstant, string(process.Command().Name)),
				zap.Error(stopError),
			)
		}
	}
}

func describeCommand(command string, arguments []string) string {
	return strings.Join(append([]string{command}, arguments...), commandLineSeparatorConstant)
}
