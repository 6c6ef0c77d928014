package pipeline_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/temirov/nagbuild/internal/execshell"
	"github.com/temirov/nagbuild/internal/release/configuration"
	releaseerrors "github.com/temirov/nagbuild/internal/release/errors"
	"github.com/temirov/nagbuild/internal/release/pipeline"
)

const (
	testWidgetDirectoryConstant   = "widget"
	testWidgetRemoteConstant      = "https://example.com/org/widget.git"
	testReleaseVersionConstant    = "1.2.0"
	testSiblingPrefixConstant     = "nucleus-angular-"
	testPackageManifestConstant   = `{"name":"widget","version":"0.9.0","scripts":{"test":"karma start"}}`
	testChangelogConstant         = "# Changelog\n\n## master\n- fixed the widget\n"
	testBowerManifestConstant     = `{"name":"app","version":"3.9.1","dependencies":{"nucleus-angular-widget":"^1.0.0","angular":"~1.2.0"}}`
	testPinnedBowerConstant       = "{\n  \"name\": \"app\",\n  \"version\": \"4.0.0\",\n  \"dependencies\": {\n    \"nucleus-angular-widget\": \"4.0.0\",\n    \"angular\": \"~1.2.0\"\n  }\n}\n"
	testRevertedBowerConstant     = "{\n  \"name\": \"app\",\n  \"version\": \"4.0.0\",\n  \"dependencies\": {\n    \"nucleus-angular-widget\": \"^1.0.0\",\n    \"angular\": \"~1.2.0\"\n  }\n}\n"
	testReleasedPackageConstant   = "{\n  \"name\": \"widget\",\n  \"version\": \"1.2.0\",\n  \"scripts\": {\n    \"test\": \"karma start\"\n  }\n}\n"
	testReleasedChangelogConstant = "# Changelog\n\n## 1.2.0\n- fixed the widget\n"
)

func widgetConfiguration() configuration.Configuration {
	return configuration.Configuration{
		GitUserName: "Release Bot",
		Repositories: []configuration.Repository{{
			GitURL:        testWidgetRemoteConstant,
			DirectoryName: testWidgetDirectoryConstant,
		}},
	}
}

func TestControllerReleasesWithoutPush(testInstance *testing.T) {
	fixture := newPipelineFixture(testInstance, map[string]map[string]string{
		testWidgetDirectoryConstant: {
			"package.json": testPackageManifestConstant,
			"CHANGELOG.md": testChangelogConstant,
		},
	})
	controller, controllerError := pipeline.NewController(fixture.dependencies)
	require.NoError(testInstance, controllerError)

	result, runError := controller.Run(context.Background(), widgetConfiguration(), pipeline.Options{
		BuildVersion:     testReleaseVersionConstant,
		DependencyPrefix: testSiblingPrefixConstant,
	})
	require.NoError(testInstance, runError)

	require.Equal(testInstance, []string{
		"git clone https://example.com/org/widget.git widget",
		"npm install",
		"git config --local user.name Release Bot",
		"git commit -a -m releasing 1.2.0",
		"git tag -a 1.2.0 -m Version 1.2.0",
	}, fixture.executor.commandLines())
	require.Equal(testInstance, fixture.workspaceRoot, fixture.executor.commands[0].Details.WorkingDirectory)
	require.Equal(testInstance, filepath.Join(fixture.workspaceRoot, testWidgetDirectoryConstant), fixture.executor.commands[1].Details.WorkingDirectory)

	require.Equal(testInstance, []pipeline.Phase{
		pipeline.PhaseIdle, pipeline.PhaseProvisioning, pipeline.PhaseTesting, pipeline.PhaseUpdating, pipeline.PhaseDone,
	}, result.Phases)
	require.Equal(testInstance, result.Phases, controller.Phases())
	require.Equal(testInstance, []pipeline.UpdateResult{{DirectoryName: testWidgetDirectoryConstant, ChangelogUpdated: true}}, result.Updates)

	checkoutPath := filepath.Join(fixture.workspaceRoot, testWidgetDirectoryConstant)
	require.Equal(testInstance, testReleasedPackageConstant, readFile(testInstance, filepath.Join(checkoutPath, "package.json")))
	require.Equal(testInstance, testReleasedChangelogConstant, readFile(testInstance, filepath.Join(checkoutPath, "CHANGELOG.md")))
	require.DirExists(testInstance, fixture.workspaceRoot)
	require.Contains(testInstance, fixture.reporter.messages, "widget: cloning https://example.com/org/widget.git")
}

func TestControllerPushOnlyWhenPreparationSkipped(testInstance *testing.T) {
	fixture := newPipelineFixture(testInstance, nil)
	fixture.createCheckout(testInstance, testWidgetDirectoryConstant, nil)
	controller, controllerError := pipeline.NewController(fixture.dependencies)
	require.NoError(testInstance, controllerError)

	result, runError := controller.Run(context.Background(), widgetConfiguration(), pipeline.Options{
		BuildVersion:    testReleaseVersionConstant,
		Push:            true,
		SkipPreparation: true,
	})
	require.NoError(testInstance, runError)
	require.Equal(testInstance, []string{"git push origin master --tags"}, fixture.executor.commandLines())
	require.Equal(testInstance, []pipeline.Phase{
		pipeline.PhaseIdle, pipeline.PhasePublishing, pipeline.PhaseTornDown, pipeline.PhaseDone,
	}, result.Phases)
	require.NoDirExists(testInstance, fixture.workspaceRoot)
}

func TestControllerStopsOnTestFailure(testInstance *testing.T) {
	releaseConfiguration := widgetConfiguration()
	releaseConfiguration.Repositories[0].TestCommand = "grunt"
	releaseConfiguration.Repositories[0].TestCommandArguments = []string{"test"}

	testCases := []struct {
		name              string
		continueOnFailure bool
		expectedPhases    []pipeline.Phase
		expectCommit      bool
	}{
		{
			name:           "fatal",
			expectedPhases: []pipeline.Phase{pipeline.PhaseIdle, pipeline.PhaseProvisioning, pipeline.PhaseTesting, pipeline.PhaseFailed},
		},
		{
			name:              "continue",
			continueOnFailure: true,
			expectedPhases:    []pipeline.Phase{pipeline.PhaseIdle, pipeline.PhaseProvisioning, pipeline.PhaseTesting, pipeline.PhaseUpdating, pipeline.PhaseDone},
			expectCommit:      true,
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			fixture := newPipelineFixture(testInstance, nil)
			fixture.executor.failOn("grunt test", execshell.CommandFailedError{
				Command: execshell.ShellCommand{Name: "grunt"},
				Result:  execshell.ExecutionResult{ExitCode: 3},
			})
			observedCore, observedLogs := observer.New(zap.WarnLevel)
			fixture.dependencies.Logger = zap.New(observedCore)

			controller, controllerError := pipeline.NewController(fixture.dependencies)
			require.NoError(testInstance, controllerError)

			result, runError := controller.Run(context.Background(), releaseConfiguration, pipeline.Options{
				BuildVersion:          testReleaseVersionConstant,
				Push:                  true,
				ContinueOnTestFailure: testCase.continueOnFailure,
			})
			require.Equal(testInstance, testCase.expectedPhases, result.Phases)
			require.Equal(testInstance, testCase.expectCommit, containsLine(fixture.executor.commandLines(), "git commit -a -m releasing 1.2.0"))

			if testCase.continueOnFailure {
				require.NoError(testInstance, runError)
				require.Equal(testInstance, 1, observedLogs.FilterMessage("test failure ignored").Len())
				return
			}
			kind, classified := releaseerrors.KindOf(runError)
			require.True(testInstance, classified)
			require.Equal(testInstance, releaseerrors.KindTest, kind)
			require.ErrorContains(testInstance, runError, "grunt test")
			require.DirExists(testInstance, fixture.workspaceRoot)
		})
	}
}

func TestControllerRestoresPinnedDependencies(testInstance *testing.T) {
	fixture := newPipelineFixture(testInstance, map[string]map[string]string{
		"app": {"bower.json": testBowerManifestConstant},
	})
	fixture.executor.snapshotFile = "bower.json"
	controller, controllerError := pipeline.NewController(fixture.dependencies)
	require.NoError(testInstance, controllerError)

	releaseConfiguration := configuration.Configuration{Repositories: []configuration.Repository{{
		GitURL:        "https://example.com/org/app.git",
		DirectoryName: "app",
	}}}
	result, runError := controller.Run(context.Background(), releaseConfiguration, pipeline.Options{
		BuildVersion:     "4.0.0",
		DependencyPrefix: testSiblingPrefixConstant,
	})
	require.NoError(testInstance, runError)

	require.Equal(testInstance, []string{
		"git clone https://example.com/org/app.git app",
		"bower install",
		"git commit -a -m releasing 4.0.0",
		"git tag -a 4.0.0 -m Version 4.0.0",
		"git commit -a -m update dependencies back for development",
	}, fixture.executor.commandLines())
	require.Equal(testInstance, []string{testPinnedBowerConstant, testRevertedBowerConstant}, fixture.executor.commitSnapshots)
	require.Equal(testInstance, testRevertedBowerConstant, readFile(testInstance, filepath.Join(fixture.workspaceRoot, "app", "bower.json")))
	require.Equal(testInstance, []pipeline.UpdateResult{{
		DirectoryName:      "app",
		PinnedDependencies: []string{"nucleus-angular-widget"},
		RevertCommitted:    true,
	}}, result.Updates)
}

func TestControllerReleasesManifestWithNullDependencyMapping(testInstance *testing.T) {
	fixture := newPipelineFixture(testInstance, map[string]map[string]string{
		"app": {"bower.json": `{"name":"app","version":"3.9.1","dependencies":{"nucleus-angular-widget":"^1.0.0","other":"1"},"devDependencies":null}`},
	})
	fixture.executor.snapshotFile = "bower.json"
	controller, controllerError := pipeline.NewController(fixture.dependencies)
	require.NoError(testInstance, controllerError)

	releaseConfiguration := configuration.Configuration{Repositories: []configuration.Repository{{
		GitURL:        "https://example.com/org/app.git",
		DirectoryName: "app",
	}}}
	result, runError := controller.Run(context.Background(), releaseConfiguration, pipeline.Options{BuildVersion: "4.0.0", Push: true})
	require.NoError(testInstance, runError)

	require.Equal(testInstance, []string{
		"git clone https://example.com/org/app.git app",
		"bower install",
		"git commit -a -m releasing 4.0.0",
		"git tag -a 4.0.0 -m Version 4.0.0",
		"git commit -a -m update dependencies back for development",
		"git push origin master --tags",
	}, fixture.executor.commandLines())
	require.Equal(testInstance, []string{
		"{\n  \"name\": \"app\",\n  \"version\": \"4.0.0\",\n  \"dependencies\": {\n    \"nucleus-angular-widget\": \"4.0.0\",\n    \"other\": \"1\"\n  },\n  \"devDependencies\": null\n}\n",
		"{\n  \"name\": \"app\",\n  \"version\": \"4.0.0\",\n  \"dependencies\": {\n    \"nucleus-angular-widget\": \"^1.0.0\",\n    \"other\": \"1\"\n  },\n  \"devDependencies\": null\n}\n",
	}, fixture.executor.commitSnapshots)
	require.Equal(testInstance, []pipeline.UpdateResult{{
		DirectoryName:      "app",
		PinnedDependencies: []string{"nucleus-angular-widget"},
		RevertCommitted:    true,
	}}, result.Updates)
	require.Equal(testInstance, pipeline.PhaseDone, result.Phases[len(result.Phases)-1])
}

func TestControllerClassifiesStepFailures(testInstance *testing.T) {
	testCases := []struct {
		name              string
		failureKey        string
		gitUserName       string
		gitUserEmail      string
		push              bool
		expectedKind      releaseerrors.Kind
		expectedOperation releaseerrors.Operation
		expectedLastPhase pipeline.Phase
	}{
		{name: "clone", failureKey: "git clone", expectedKind: releaseerrors.KindProvision, expectedOperation: releaseerrors.OperationClone, expectedLastPhase: pipeline.PhaseProvisioning},
		{name: "npm", failureKey: "npm install", expectedKind: releaseerrors.KindProvision, expectedOperation: releaseerrors.OperationDependencyInstall, expectedLastPhase: pipeline.PhaseProvisioning},
		{name: "bower", failureKey: "bower install", expectedKind: releaseerrors.KindProvision, expectedOperation: releaseerrors.OperationDependencyInstall, expectedLastPhase: pipeline.PhaseProvisioning},
		{name: "user_name", failureKey: "git config", gitUserName: "Bot", gitUserEmail: "bot@example.com", expectedKind: releaseerrors.KindProvision, expectedOperation: releaseerrors.OperationGitUserName, expectedLastPhase: pipeline.PhaseProvisioning},
		{name: "user_email", failureKey: "git config", gitUserEmail: "bot@example.com", expectedKind: releaseerrors.KindProvision, expectedOperation: releaseerrors.OperationGitUserEmail, expectedLastPhase: pipeline.PhaseProvisioning},
		{name: "commit", failureKey: "git commit", expectedKind: releaseerrors.KindCommit, expectedOperation: releaseerrors.OperationCommitRelease, expectedLastPhase: pipeline.PhaseUpdating},
		{name: "tag", failureKey: "git tag", expectedKind: releaseerrors.KindTag, expectedOperation: releaseerrors.OperationCreateTag, expectedLastPhase: pipeline.PhaseUpdating},
		{name: "push", failureKey: "git push", push: true, expectedKind: releaseerrors.KindPush, expectedOperation: releaseerrors.OperationPush, expectedLastPhase: pipeline.PhasePublishing},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			fixture := newPipelineFixture(testInstance, map[string]map[string]string{
				testWidgetDirectoryConstant: {
					"package.json": testPackageManifestConstant,
					"bower.json":   testBowerManifestConstant,
				},
			})
			cause := errors.New("command failed")
			fixture.executor.failOn(testCase.failureKey, cause)
			controller, controllerError := pipeline.NewController(fixture.dependencies)
			require.NoError(testInstance, controllerError)

			releaseConfiguration := widgetConfiguration()
			releaseConfiguration.GitUserName = testCase.gitUserName
			releaseConfiguration.GitUserEmail = testCase.gitUserEmail
			result, runError := controller.Run(context.Background(), releaseConfiguration, pipeline.Options{
				BuildVersion: testReleaseVersionConstant,
				Push:         testCase.push,
			})
			require.Error(testInstance, runError)
			require.ErrorIs(testInstance, runError, cause)

			var stepError releaseerrors.StepError
			require.ErrorAs(testInstance, runError, &stepError)
			require.Equal(testInstance, testCase.expectedKind, stepError.Kind)
			require.Equal(testInstance, testCase.expectedOperation, stepError.Operation)
			require.Equal(testInstance, testWidgetDirectoryConstant, stepError.Repository)

			phaseCount := len(result.Phases)
			require.Equal(testInstance, pipeline.PhaseFailed, result.Phases[phaseCount-1])
			require.Equal(testInstance, testCase.expectedLastPhase, result.Phases[phaseCount-2])
			require.DirExists(testInstance, fixture.workspaceRoot)
		})
	}
}

func TestControllerRejectsMalformedManifest(testInstance *testing.T) {
	fixture := newPipelineFixture(testInstance, map[string]map[string]string{
		testWidgetDirectoryConstant: {"package.json": `{"name": "widget",`},
	})
	controller, controllerError := pipeline.NewController(fixture.dependencies)
	require.NoError(testInstance, controllerError)

	_, runError := controller.Run(context.Background(), widgetConfiguration(), pipeline.Options{BuildVersion: testReleaseVersionConstant})
	kind, classified := releaseerrors.KindOf(runError)
	require.True(testInstance, classified)
	require.Equal(testInstance, releaseerrors.KindManifest, kind)
	require.False(testInstance, containsLine(fixture.executor.commandLines(), "git commit -a -m releasing 1.2.0"))
}

func TestControllerRebuildsWorkspace(testInstance *testing.T) {
	fixture := newPipelineFixture(testInstance, nil)
	stalePath := fixture.createCheckout(testInstance, "stale", map[string]string{"leftover.txt": "x"})
	controller, controllerError := pipeline.NewController(fixture.dependencies)
	require.NoError(testInstance, controllerError)

	_, runError := controller.Run(context.Background(), widgetConfiguration(), pipeline.Options{BuildVersion: testReleaseVersionConstant})
	require.NoError(testInstance, runError)
	_, statError := os.Stat(stalePath)
	require.ErrorIs(testInstance, statError, os.ErrNotExist)
}

func TestControllerRequiresVersion(testInstance *testing.T) {
	fixture := newPipelineFixture(testInstance, nil)
	controller, controllerError := pipeline.NewController(fixture.dependencies)
	require.NoError(testInstance, controllerError)

	result, runError := controller.Run(context.Background(), widgetConfiguration(), pipeline.Options{BuildVersion: "  "})
	require.ErrorIs(testInstance, runError, pipeline.ErrBuildVersionRequired)
	require.Equal(testInstance, []pipeline.Phase{pipeline.PhaseIdle, pipeline.PhaseFailed}, result.Phases)
	require.Empty(testInstance, fixture.executor.commands)
}

func TestNewControllerValidatesDependencies(testInstance *testing.T) {
	fixture := newPipelineFixture(testInstance, nil)

	withoutExecutor := fixture.dependencies
	withoutExecutor.Executor = nil
	_, executorError := pipeline.NewController(withoutExecutor)
	require.ErrorIs(testInstance, executorError, pipeline.ErrCommandExecutorNotConfigured)

	withoutManager := fixture.dependencies
	withoutManager.RepositoryManager = nil
	_, managerError := pipeline.NewController(withoutManager)
	require.ErrorIs(testInstance, managerError, pipeline.ErrRepositoryManagerNotConfigured)

	withoutWorkspace := fixture.dependencies
	withoutWorkspace.Workspace = nil
	_, workspaceError := pipeline.NewController(withoutWorkspace)
	require.ErrorIs(testInstance, workspaceError, pipeline.ErrWorkspaceNotConfigured)
}

func containsLine(lines []string, expected string) bool {
	for _, line := range lines {
		if line == expected {
			return true
		}
	}
	return false
}
