package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/temirov/nagbuild/internal/execshell"
	"github.com/temirov/nagbuild/internal/gitrepo"
	"github.com/temirov/nagbuild/internal/release/configuration"
	releaseerrors "github.com/temirov/nagbuild/internal/release/errors"
	"github.com/temirov/nagbuild/internal/release/pipeline"
	"github.com/temirov/nagbuild/internal/ui"
	"github.com/temirov/nagbuild/internal/utils"
	"github.com/temirov/nagbuild/internal/workspace"
)

const (
	applicationNameConstant                  = "nagbuild"
	applicationUseConstant                   = applicationNameConstant + " <build version number>"
	applicationShortDescriptionConstant      = "Release a set of git repositories under one version number"
	applicationLongDescriptionConstant       = "nagbuild clones every repository listed in the repositories file, installs dependencies, runs tests, sets the release version, commits and tags the release, and optionally pushes it upstream."
	configFileFlagNameConstant               = "config"
	configFileFlagUsageConstant              = "Optional path to an application configuration file (YAML)."
	logLevelFlagNameConstant                 = "log-level"
	logLevelFlagUsageConstant                = "Override the configured log level (debug, info, warn, error)."
	logFormatFlagNameConstant                = "log-format"
	logFormatFlagUsageConstant               = "Override the configured log format (structured or console)."
	repositoriesFlagNameConstant             = "repositories"
	repositoriesFlagUsageConstant            = "Path to the repositories file (JSON with comments, or YAML)."
	workspaceFlagNameConstant                = "workspace"
	workspaceFlagUsageConstant               = "Scratch directory the repositories are cloned into."
	pushFlagNameConstant                     = "push"
	pushFlagShorthandConstant                = "p"
	pushFlagUsageConstant                    = "Push commits and tags upstream, then remove the workspace."
	skipFlagNameConstant                     = "skip"
	skipFlagShorthandConstant                = "s"
	skipFlagUsageConstant                    = "Skip cloning, testing, and updating; operate on the existing workspace."
	continueOnTestFailureFlagNameConstant    = "continue-on-test-failure"
	continueOnTestFailureFlagUsageConstant   = "Log failing test commands instead of aborting the release."
	commonLogLevelConfigKeyConstant          = "common.log_level"
	commonLogFormatConfigKeyConstant         = "common.log_format"
	releaseRepositoriesFileConfigKeyConstant = "release.repositories_file"
	releaseWorkspaceConfigKeyConstant        = "release.workspace_directory"
	releaseContinueConfigKeyConstant         = "release.continue_on_test_failure"
	environmentPrefixConstant                = "NAGBUILD"
	configurationNameConstant                = "nagbuild"
	configurationTypeConstant                = "yaml"
	defaultConfigurationSearchPathConstant   = "."
	configurationInitializedMessageConstant  = "configuration initialized"
	releaseStartedMessageConstant            = "release started"
	configurationLogLevelFieldConstant       = "log_level"
	configurationLogFormatFieldConstant      = "log_format"
	configurationFileFieldConstant           = "config_file"
	repositoriesFileFieldConstant            = "repositories_file"
	repositoryCountFieldConstant             = "repository_count"
	versionFieldConstant                     = "version"
	pushFieldConstant                        = "push"
	skipFieldConstant                        = "skip"
	configurationLoadErrorTemplateConstant   = "unable to load configuration: %w"
	loggerCreationErrorTemplateConstant      = "unable to create logger: %w"
	loggerSyncErrorTemplateConstant          = "unable to flush logger: %w"
	buildVersionMissingMessageConstant       = "build version number must be provided"
)

// ErrBuildVersionMissing indicates the command was invoked without a build version number.
var ErrBuildVersionMissing = errors.New(buildVersionMissingMessageConstant)

// ApplicationConfiguration describes the persisted configuration for the CLI.
type ApplicationConfiguration struct {
	Common  ApplicationCommonConfiguration  `mapstructure:"common"`
	Release ApplicationReleaseConfiguration `mapstructure:"release"`
}

// ApplicationCommonConfiguration stores logging configuration.
type ApplicationCommonConfiguration struct {
	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`
}

// ApplicationReleaseConfiguration stores the release run settings.
type ApplicationReleaseConfiguration struct {
	RepositoriesFile      string `mapstructure:"repositories_file"`
	WorkspaceDirectory    string `mapstructure:"workspace_directory"`
	DependencyPrefix      string `mapstructure:"dependency_prefix"`
	ChangelogMarker       string `mapstructure:"changelog_marker"`
	Remote                string `mapstructure:"remote"`
	Branch                string `mapstructure:"branch"`
	ContinueOnTestFailure bool   `mapstructure:"continue_on_test_failure"`
}

// Application wires the Cobra root command, configuration loader, structured
// logger, and release pipeline.
type Application struct {
	rootCommand           *cobra.Command
	configurationLoader   *utils.ConfigurationLoader
	loggerFactory         *utils.LoggerFactory
	logger                *zap.Logger
	configuration         ApplicationConfiguration
	configurationMetadata utils.LoadedConfiguration
	commandRunner         execshell.CommandRunner
	standardOutput        io.Writer
	standardError         io.Writer
	configurationFilePath string
	pushEnabled           bool
	skipPreparation       bool
	lastResult            pipeline.Result
}

// ApplicationOption customizes an Application.
type ApplicationOption func(*Application)

// WithCommandRunner replaces the operating system command runner.
func WithCommandRunner(runner execshell.CommandRunner) ApplicationOption {
	return func(application *Application) {
		if runner != nil {
			application.commandRunner = runner
		}
	}
}

// WithOutput redirects progress banners and error reporting.
func WithOutput(standardOutput io.Writer, standardError io.Writer) ApplicationOption {
	return func(application *Application) {
		if standardOutput != nil {
			application.standardOutput = standardOutput
		}
		if standardError != nil {
			application.standardError = standardError
		}
	}
}

// NewApplication assembles a fully wired CLI application instance.
func NewApplication(options ...ApplicationOption) *Application {
	configurationLoader := utils.NewConfigurationLoader(
		configurationNameConstant,
		configurationTypeConstant,
		environmentPrefixConstant,
		[]string{defaultConfigurationSearchPathConstant},
	)
	configurationLoader.SetEmbeddedConfiguration(EmbeddedDefaultConfiguration())

	application := &Application{
		configurationLoader: configurationLoader,
		logger:              zap.NewNop(),
		commandRunner:       execshell.NewOSCommandRunner(),
		standardOutput:      os.Stdout,
		standardError:       os.Stderr,
	}
	for _, option := range options {
		option(application)
	}
	application.loggerFactory = utils.NewLoggerFactoryWithOutput(application.standardError)

	cobraCommand := &cobra.Command{
		Use:           applicationUseConstant,
		Short:         applicationShortDescriptionConstant,
		Long:          applicationLongDescriptionConstant,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(command *cobra.Command, arguments []string) error {
			return application.initializeConfiguration(command)
		},
		RunE: func(command *cobra.Command, arguments []string) error {
			return application.runRelease(command, arguments)
		},
	}
	cobraCommand.SetOut(application.standardOutput)
	cobraCommand.SetErr(application.standardError)

	persistentFlags := cobraCommand.PersistentFlags()
	persistentFlags.StringVar(&application.configurationFilePath, configFileFlagNameConstant, "", configFileFlagUsageConstant)
	persistentFlags.String(logLevelFlagNameConstant, "", logLevelFlagUsageConstant)
	persistentFlags.String(logFormatFlagNameConstant, "", logFormatFlagUsageConstant)

	releaseFlags := cobraCommand.Flags()
	releaseFlags.BoolVarP(&application.pushEnabled, pushFlagNameConstant, pushFlagShorthandConstant, false, pushFlagUsageConstant)
	releaseFlags.BoolVarP(&application.skipPreparation, skipFlagNameConstant, skipFlagShorthandConstant, false, skipFlagUsageConstant)
	releaseFlags.String(repositoriesFlagNameConstant, "", repositoriesFlagUsageConstant)
	releaseFlags.String(workspaceFlagNameConstant, "", workspaceFlagUsageConstant)
	releaseFlags.Bool(continueOnTestFailureFlagNameConstant, false, continueOnTestFailureFlagUsageConstant)

	configurationLoader.BindFlag(commonLogLevelConfigKeyConstant, persistentFlags.Lookup(logLevelFlagNameConstant))
	configurationLoader.BindFlag(commonLogFormatConfigKeyConstant, persistentFlags.Lookup(logFormatFlagNameConstant))
	configurationLoader.BindFlag(releaseRepositoriesFileConfigKeyConstant, releaseFlags.Lookup(repositoriesFlagNameConstant))
	configurationLoader.BindFlag(releaseWorkspaceConfigKeyConstant, releaseFlags.Lookup(workspaceFlagNameConstant))
	configurationLoader.BindFlag(releaseContinueConfigKeyConstant, releaseFlags.Lookup(continueOnTestFailureFlagNameConstant))

	application.rootCommand = cobraCommand
	return application
}

// SetArguments replaces the command-line arguments parsed by Execute.
func (application *Application) SetArguments(arguments []string) {
	application.rootCommand.SetArgs(arguments)
}

// Execute runs the root command, reports a failure on standard error, and
// flushes the logger. Interrupt and termination signals cancel the run and
// every child process it started.
func (application *Application) Execute() error {
	signalContext, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	executionError := application.rootCommand.ExecuteContext(signalContext)
	if executionError != nil {
		ui.NewHighlighter(application.standardError).Error(executionError)
	}
	if syncError := utils.SyncLogger(application.logger); syncError != nil && executionError == nil {
		return fmt.Errorf(loggerSyncErrorTemplateConstant, syncError)
	}
	return executionError
}

// LastResult returns the phases and per-repository updates of the most recent release run.
func (application *Application) LastResult() pipeline.Result {
	return application.lastResult
}

// Execute builds a fresh application instance and runs it with the process arguments.
func Execute() error {
	return NewApplication().Execute()
}

func (application *Application) initializeConfiguration(command *cobra.Command) error {
	loadedConfiguration, loadError := application.configurationLoader.LoadConfiguration(application.configurationFilePath, nil, &application.configuration)
	if loadError != nil {
		return releaseerrors.Config(releaseerrors.OperationLoadConfiguration, fmt.Errorf(configurationLoadErrorTemplateConstant, loadError))
	}
	application.configurationMetadata = loadedConfiguration

	logger, loggerCreationError := application.loggerFactory.CreateLogger(
		utils.LogLevel(application.configuration.Common.LogLevel),
		utils.LogFormat(application.configuration.Common.LogFormat),
	)
	if loggerCreationError != nil {
		return releaseerrors.Config(releaseerrors.OperationLoadConfiguration, fmt.Errorf(loggerCreationErrorTemplateConstant, loggerCreationError))
	}
	application.logger = logger

	application.logger.Debug(
		configurationInitializedMessageConstant,
		zap.String(configurationLogLevelFieldConstant, application.configuration.Common.LogLevel),
		zap.String(configurationLogFormatFieldConstant, application.configuration.Common.LogFormat),
		zap.String(configurationFileFieldConstant, application.configurationMetadata.ConfigFileUsed),
	)
	return nil
}

func (application *Application) humanReadableLoggingEnabled() bool {
	return utils.NormalizeLogFormat(application.configuration.Common.LogFormat) == utils.LogFormatConsole
}

func (application *Application) runRelease(command *cobra.Command, arguments []string) error {
	buildVersion := ""
	if len(arguments) > 0 {
		buildVersion = strings.TrimSpace(arguments[0])
	}
	if len(buildVersion) == 0 {
		if helpError := command.Help(); helpError != nil {
			return helpError
		}
		return ErrBuildVersionMissing
	}

	releaseSettings := application.configuration.Release
	releaseConfiguration, loadError := configuration.Load(workspace.OSFileSystem{}, releaseSettings.RepositoriesFile)
	if loadError != nil {
		return releaseerrors.Config(releaseerrors.OperationLoadConfiguration, loadError)
	}

	controller, controllerError := application.buildController(releaseSettings.WorkspaceDirectory)
	if controllerError != nil {
		return releaseerrors.Config(releaseerrors.OperationWorkspace, controllerError)
	}

	application.logger.Info(
		releaseStartedMessageConstant,
		zap.String(versionFieldConstant, buildVersion),
		zap.String(repositoriesFileFieldConstant, releaseSettings.RepositoriesFile),
		zap.Int(repositoryCountFieldConstant, len(releaseConfiguration.Repositories)),
		zap.Bool(pushFieldConstant, application.pushEnabled),
		zap.Bool(skipFieldConstant, application.skipPreparation),
	)

	result, runError := controller.Run(command.Context(), releaseConfiguration, pipeline.Options{
		BuildVersion:          buildVersion,
		Push:                  application.pushEnabled,
		SkipPreparation:       application.skipPreparation,
		ContinueOnTestFailure: releaseSettings.ContinueOnTestFailure,
		DependencyPrefix:      releaseSettings.DependencyPrefix,
		ChangelogMarker:       releaseSettings.ChangelogMarker,
		RemoteName:            releaseSettings.Remote,
		BranchName:            releaseSettings.Branch,
	})
	application.lastResult = result
	return runError
}

func (application *Application) buildController(workspaceDirectory string) (*pipeline.Controller, error) {
	var observer execshell.CommandEventObserver
	if application.humanReadableLoggingEnabled() {
		observer = ui.NewConsoleCommandEventLogger(application.logger)
	}

	shellExecutor, executorError := execshell.NewShellExecutorWithObserver(application.logger, application.commandRunner, observer)
	if executorError != nil {
		return nil, executorError
	}

	repositoryManager, managerError := gitrepo.NewRepositoryManager(shellExecutor)
	if managerError != nil {
		return nil, managerError
	}

	workspaceManager, workspaceError := workspace.NewManager(workspaceDirectory, workspace.OSFileSystem{})
	if workspaceError != nil {
		return nil, workspaceError
	}

	return pipeline.NewController(pipeline.Dependencies{
		Logger:            application.logger,
		Executor:          shellExecutor,
		RepositoryManager: repositoryManager,
		Workspace:         workspaceManager,
		Reporter:          ui.NewHighlighter(application.standardOutput),
	})
}
