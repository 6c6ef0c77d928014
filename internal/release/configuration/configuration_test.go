package configuration_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/temirov/nagbuild/internal/release/configuration"
	"github.com/temirov/nagbuild/internal/workspace"
)

const (
	testJSONRepositoriesConstant = `{
	// shared identity for release commits
	"name": "Release Bot",
	"email": "release@example.com",
	"repositories": [
		{"git": "git@github.com:example/nucleus-angular-core.git", "testCommand": "grunt", "testCommandArgs": ["karma:ci"]},
		{"git": "https://example.com/org/dalek.git", "directory": "dalek", "testCommand": "dalek", "testCommandArgs": ["ignored"]},
		{
			"git": "https://example.com/org/web.git",
			"directory": "web",
			"testCommand": "npm",
			"testCommandArgs": "run,test",
			"auxiliaryServices": [
				{"command": "node", "args": ["server.js"], "workingDirectory": "fixtures", "readyAddress": "127.0.0.1:9000", "readyTimeout": "5s"},
				{"command": "redis-server", "readyAddress": "127.0.0.1:6379"},
			],
		},
	],
}`
	testYAMLRepositoriesConstant = `name: Release Bot
repositories:
  - git: https://example.com/org/tools.git
    testCommand: make
    testCommandArgs: [check]
`
)

func TestLoadJSONWithComments(testInstance *testing.T) {
	repositoriesPath := writeRepositoriesFile(testInstance, configuration.DefaultFileNameConstant, testJSONRepositoriesConstant)

	loaded, loadError := configuration.Load(workspace.OSFileSystem{}, repositoriesPath)
	require.NoError(testInstance, loadError)
	require.Equal(testInstance, "Release Bot", loaded.GitUserName)
	require.Equal(testInstance, "release@example.com", loaded.GitUserEmail)
	require.Len(testInstance, loaded.Repositories, 3)

	coreRepository := loaded.Repositories[0]
	require.Equal(testInstance, "nucleus-angular-core", coreRepository.DirectoryName)
	require.Equal(testInstance, []string{"karma:ci"}, coreRepository.TestCommandArguments)
	require.Empty(testInstance, coreRepository.AuxiliaryServices)

	legacyRepository := loaded.Repositories[1]
	require.Equal(testInstance, configuration.LegacyServiceTestCommandConstant, legacyRepository.TestCommand)
	require.Empty(testInstance, legacyRepository.TestCommandArguments)
	require.Equal(testInstance, []configuration.AuxiliaryService{{
		Command:          "node",
		Arguments:        []string{"app-dev.js"},
		WorkingDirectory: "dalek-web/web",
	}}, legacyRepository.AuxiliaryServices)

	webRepository := loaded.Repositories[2]
	require.Equal(testInstance, []string{"run", "test"}, webRepository.TestCommandArguments)
	require.Len(testInstance, webRepository.AuxiliaryServices, 2)
	require.Equal(testInstance, 5*time.Second, webRepository.AuxiliaryServices[0].ReadyTimeout)
	require.Equal(testInstance, "fixtures", webRepository.AuxiliaryServices[0].WorkingDirectory)
	require.Equal(testInstance, configuration.DefaultReadyTimeout, webRepository.AuxiliaryServices[1].ReadyTimeout)
}

func TestLoadYAML(testInstance *testing.T) {
	repositoriesPath := writeRepositoriesFile(testInstance, "repositories.yml", testYAMLRepositoriesConstant)

	loaded, loadError := configuration.Load(workspace.OSFileSystem{}, repositoriesPath)
	require.NoError(testInstance, loadError)
	require.Equal(testInstance, "Release Bot", loaded.GitUserName)
	require.Empty(testInstance, loaded.GitUserEmail)
	require.Equal(testInstance, []configuration.Repository{{
		GitURL:               "https://example.com/org/tools.git",
		DirectoryName:        "tools",
		TestCommand:          "make",
		TestCommandArguments: []string{"check"},
	}}, loaded.Repositories)
	require.True(testInstance, loaded.Repositories[0].HasTests())
}

func TestLoadFailures(testInstance *testing.T) {
	testCases := []struct {
		name            string
		fileName        string
		contents        string
		expectedMessage string
	}{
		{name: "malformed_json", fileName: "broken.json", contents: `{"repositories": [`, expectedMessage: "unable to parse"},
		{name: "malformed_yaml", fileName: "broken.yaml", contents: "repositories: [", expectedMessage: "unable to parse"},
		{name: "no_repositories", fileName: "empty.json", contents: `{"name": "x"}`, expectedMessage: "repositories: must list at least one repository"},
		{name: "missing_git", fileName: "nogit.json", contents: `{"repositories": [{"directory": "a"}]}`, expectedMessage: "repositories[0].git: must be provided"},
		{name: "invalid_directory", fileName: "dir.json", contents: `{"repositories": [{"git": "x/a.git", "directory": "../a"}]}`, expectedMessage: "repositories[0].directory: must be a single path segment"},
		{name: "duplicate_directory", fileName: "dup.json", contents: `{"repositories": [{"git": "x/a.git"}, {"git": "y/a"}]}`, expectedMessage: "repositories[1].directory: duplicates repositories[0]"},
		{name: "service_without_command", fileName: "svc.json", contents: `{"repositories": [{"git": "x/a.git", "auxiliaryServices": [{"args": ["x"]}]}]}`, expectedMessage: "repositories[0].auxiliaryServices[0].command: must be provided"},
		{name: "service_escaping_checkout", fileName: "esc.json", contents: `{"repositories": [{"git": "x/a.git", "auxiliaryServices": [{"command": "node", "workingDirectory": "../other"}]}]}`, expectedMessage: "must stay inside the checkout"},
		{name: "invalid_timeout", fileName: "timeout.json", contents: `{"repositories": [{"git": "x/a.git", "auxiliaryServices": [{"command": "node", "readyTimeout": "soon"}]}]}`, expectedMessage: "unable to decode"},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			repositoriesPath := writeRepositoriesFile(testInstance, testCase.fileName, testCase.contents)
			_, loadError := configuration.Load(workspace.OSFileSystem{}, repositoriesPath)
			require.Error(testInstance, loadError)
			require.Contains(testInstance, loadError.Error(), testCase.expectedMessage)
		})
	}
}

func TestLoadMissingFile(testInstance *testing.T) {
	_, loadError := configuration.Load(workspace.OSFileSystem{}, filepath.Join(testInstance.TempDir(), "absent.json"))
	require.Error(testInstance, loadError)
	require.ErrorIs(testInstance, loadError, os.ErrNotExist)
}

func TestNormalizeKeepsExplicitServicesForLegacyCommand(testInstance *testing.T) {
	normalized, normalizeError := configuration.Configuration{Repositories: []configuration.Repository{{
		GitURL:               "https://example.com/org/dalek.git",
		TestCommand:          configuration.LegacyServiceTestCommandConstant,
		TestCommandArguments: []string{"--ci"},
		AuxiliaryServices:    []configuration.AuxiliaryService{{Command: "python3", Arguments: []string{"-m", "http.server"}}},
	}}}.Normalize()
	require.NoError(testInstance, normalizeError)
	require.Equal(testInstance, []string{"--ci"}, normalized.Repositories[0].TestCommandArguments)
	require.Equal(testInstance, "python3", normalized.Repositories[0].AuxiliaryServices[0].Command)
	require.Zero(testInstance, normalized.Repositories[0].AuxiliaryServices[0].ReadyTimeout)
}

func writeRepositoriesFile(testInstance *testing.T, fileName string, contents string) string {
	testInstance.Helper()
	repositoriesPath := filepath.Join(testInstance.TempDir(), fileName)
	require.NoError(testInstance, os.WriteFile(repositoriesPath, []byte(contents), 0o600))
	return repositoriesPath
}
