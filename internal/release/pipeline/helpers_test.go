package pipeline_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/temirov/nagbuild/internal/execshell"
	"github.com/temirov/nagbuild/internal/gitrepo"
	"github.com/temirov/nagbuild/internal/release/pipeline"
	"github.com/temirov/nagbuild/internal/workspace"
)

const (
	testWorkspaceDirectoryNameConstant = "tmp-repositories"
	testGitCloneSubcommandConstant     = "clone"
	testGitCommitSubcommandConstant    = "commit"
	testCommandKeySeparatorConstant    = " "
)

var errBackgroundUnavailable = errors.New("background processes unavailable")

// recordingExecutor records every command and simulates clones by seeding
// checkout directories with fixture files.
type recordingExecutor struct {
	testInstance    *testing.T
	commands        []execshell.ShellCommand
	checkouts       map[string]map[string]string
	failures        map[string]error
	snapshotFile    string
	commitSnapshots []string
}

func newRecordingExecutor(testInstance *testing.T, checkouts map[string]map[string]string) *recordingExecutor {
	return &recordingExecutor{testInstance: testInstance, checkouts: checkouts, failures: map[string]error{}}
}

func (executor *recordingExecutor) Execute(_ context.Context, command execshell.ShellCommand) (execshell.ExecutionResult, error) {
	executor.commands = append(executor.commands, command)
	if failure, exists := executor.failures[failureKey(command)]; exists {
		return execshell.ExecutionResult{}, failure
	}

	arguments := command.Details.Arguments
	if command.Name == execshell.CommandGit && len(arguments) == 3 && arguments[0] == testGitCloneSubcommandConstant {
		executor.seedCheckout(filepath.Join(command.Details.WorkingDirectory, arguments[2]), executor.checkouts[arguments[2]])
	}
	if command.Name == execshell.CommandGit && len(arguments) > 0 && arguments[0] == testGitCommitSubcommandConstant && len(executor.snapshotFile) > 0 {
		contents, readError := os.ReadFile(filepath.Join(command.Details.WorkingDirectory, executor.snapshotFile))
		require.NoError(executor.testInstance, readError)
		executor.commitSnapshots = append(executor.commitSnapshots, string(contents))
	}
	return execshell.ExecutionResult{}, nil
}

func (executor *recordingExecutor) ExecuteGit(executionContext context.Context, details execshell.CommandDetails) (execshell.ExecutionResult, error) {
	return executor.Execute(executionContext, execshell.ShellCommand{Name: execshell.CommandGit, Details: details})
}

func (executor *recordingExecutor) ExecuteNPM(executionContext context.Context, details execshell.CommandDetails) (execshell.ExecutionResult, error) {
	return executor.Execute(executionContext, execshell.ShellCommand{Name: execshell.CommandNPM, Details: details})
}

func (executor *recordingExecutor) ExecuteBower(executionContext context.Context, details execshell.CommandDetails) (execshell.ExecutionResult, error) {
	return executor.Execute(executionContext, execshell.ShellCommand{Name: execshell.CommandBower, Details: details})
}

func (executor *recordingExecutor) Start(_ context.Context, command execshell.ShellCommand) (*execshell.BackgroundProcess, error) {
	executor.commands = append(executor.commands, command)
	return nil, errBackgroundUnavailable
}

func (executor *recordingExecutor) failOn(key string, failure error) {
	executor.failures[key] = failure
}

func (executor *recordingExecutor) commandLines() []string {
	lines := make([]string, 0, len(executor.commands))
	for _, command := range executor.commands {
		lines = append(lines, strings.Join(append([]string{string(command.Name)}, command.Details.Arguments...), testCommandKeySeparatorConstant))
	}
	return lines
}

func (executor *recordingExecutor) seedCheckout(checkoutPath string, files map[string]string) {
	require.NoError(executor.testInstance, os.MkdirAll(checkoutPath, 0o755))
	for fileName, contents := range files {
		require.NoError(executor.testInstance, os.WriteFile(filepath.Join(checkoutPath, fileName), []byte(contents), 0o644))
	}
}

func failureKey(command execshell.ShellCommand) string {
	if len(command.Details.Arguments) == 0 {
		return string(command.Name)
	}
	return string(command.Name) + testCommandKeySeparatorConstant + command.Details.Arguments[0]
}

type recordingReporter struct {
	messages []string
}

func (reporter *recordingReporter) Progress(subject string, message string) {
	reporter.messages = append(reporter.messages, subject+": "+message)
}

type pipelineFixture struct {
	executor      *recordingExecutor
	workspace     *workspace.Manager
	reporter      *recordingReporter
	dependencies  pipeline.Dependencies
	workspaceRoot string
}

func newPipelineFixture(testInstance *testing.T, checkouts map[string]map[string]string) pipelineFixture {
	testInstance.Helper()
	executor := newRecordingExecutor(testInstance, checkouts)
	repositoryManager, managerError := gitrepo.NewRepositoryManager(executor)
	require.NoError(testInstance, managerError)

	workspaceRoot := filepath.Join(testInstance.TempDir(), testWorkspaceDirectoryNameConstant)
	workspaceManager, workspaceError := workspace.NewManager(workspaceRoot, workspace.OSFileSystem{})
	require.NoError(testInstance, workspaceError)

	reporter := &recordingReporter{}
	return pipelineFixture{
		executor:      executor,
		workspace:     workspaceManager,
		reporter:      reporter,
		workspaceRoot: workspaceRoot,
		dependencies: pipeline.Dependencies{
			Executor:          executor,
			RepositoryManager: repositoryManager,
			Workspace:         workspaceManager,
			Reporter:          reporter,
		},
	}
}

// createCheckout materializes a checkout without going through the provisioner.
func (fixture pipelineFixture) createCheckout(testInstance *testing.T, directoryName string, files map[string]string) string {
	testInstance.Helper()
	checkoutPath := filepath.Join(fixture.workspaceRoot, directoryName)
	fixture.executor.seedCheckout(checkoutPath, files)
	return checkoutPath
}

func readFile(testInstance *testing.T, path string) string {
	testInstance.Helper()
	contents, readError := os.ReadFile(path)
	require.NoError(testInstance, readError)
	return string(contents)
}
