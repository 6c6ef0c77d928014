package configuration

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/temirov/nagbuild/internal/gitrepo"
	"github.com/temirov/nagbuild/internal/workspace"
)

const (
	// DefaultReadyTimeout bounds the wait for an auxiliary service address.
	DefaultReadyTimeout = 30 * time.Second

	// LegacyServiceTestCommandConstant is the test command that implies the development web server.
	LegacyServiceTestCommandConstant = "dalek"
	legacyServiceCommandConstant     = "node"
	legacyServiceScriptConstant      = "app-dev.js"
	legacyServiceDirectoryConstant   = "dalek-web/web"

	validationErrorTemplateConstant    = "%s: %s"
	repositoryFieldTemplateConstant    = "repositories[%d].%s"
	serviceFieldTemplateConstant       = "repositories[%d].auxiliaryServices[%d].%s"
	gitFieldNameConstant               = "git"
	directoryFieldNameConstant         = "directory"
	commandFieldNameConstant           = "command"
	workingDirectoryFieldNameConstant  = "workingDirectory"
	readyTimeoutFieldNameConstant      = "readyTimeout"
	repositoriesFieldNameConstant      = "repositories"
	requiredMessageConstant            = "must be provided"
	invalidDirectoryMessageConstant    = "must be a single path segment"
	duplicateDirectoryTemplateConstant = "duplicates repositories[%d]"
	nonLocalDirectoryMessageConstant   = "must stay inside the checkout"
	negativeTimeoutMessageConstant     = "must not be negative"
	emptyRepositoriesMessageConstant   = "must list at least one repository"
)

// Configuration describes a release run.
type Configuration struct {
	Repositories []Repository `mapstructure:"repositories"`
	GitUserName  string       `mapstructure:"name"`
	GitUserEmail string       `mapstructure:"email"`
}

// Repository describes one repository taking part in the release.
type Repository struct {
	GitURL               string             `mapstructure:"git"`
	DirectoryName        string             `mapstructure:"directory"`
	TestCommand          string             `mapstructure:"testCommand"`
	TestCommandArguments []string           `mapstructure:"testCommandArgs"`
	AuxiliaryServices    []AuxiliaryService `mapstructure:"auxiliaryServices"`
}

// AuxiliaryService is a long-running process kept alive while a repository's tests run.
type AuxiliaryService struct {
	Command          string        `mapstructure:"command"`
	Arguments        []string      `mapstructure:"args"`
	WorkingDirectory string        `mapstructure:"workingDirectory"`
	ReadyAddress     string        `mapstructure:"readyAddress"`
	ReadyTimeout     time.Duration `mapstructure:"readyTimeout"`
}

// ValidationError reports an unusable field in the repositories file.
type ValidationError struct {
	Field   string
	Message string
}

// Error describes the validation failure.
func (validationError ValidationError) Error() string {
	return fmt.Sprintf(validationErrorTemplateConstant, validationError.Field, validationError.Message)
}

// HasTests reports whether the repository declares a test command.
func (repository Repository) HasTests() bool {
	return len(strings.TrimSpace(repository.TestCommand)) > 0
}

// Normalize trims values, derives missing directory names, applies the
// legacy development server mapping, and validates the result.
func (configuration Configuration) Normalize() (Configuration, error) {
	if len(configuration.Repositories) == 0 {
		return Configuration{}, ValidationError{Field: repositoriesFieldNameConstant, Message: emptyRepositoriesMessageConstant}
	}

	normalized := Configuration{
		GitUserName:  strings.TrimSpace(configuration.GitUserName),
		GitUserEmail: strings.TrimSpace(configuration.GitUserEmail),
		Repositories: make([]Repository, 0, len(configuration.Repositories)),
	}

	directoryOwners := make(map[string]int, len(configuration.Repositories))
	for repositoryIndex, repository := range configuration.Repositories {
		normalizedRepository, normalizeError := normalizeRepository(repositoryIndex, repository)
		if normalizeError != nil {
			return Configuration{}, normalizeError
		}
		if ownerIndex, exists := directoryOwners[normalizedRepository.DirectoryName]; exists {
			return Configuration{}, ValidationError{
				Field:   fmt.Sprintf(repositoryFieldTemplateConstant, repositoryIndex, directoryFieldNameConstant),
				Message: fmt.Sprintf(duplicateDirectoryTemplateConstant, ownerIndex),
			}
		}
		directoryOwners[normalizedRepository.DirectoryName] = repositoryIndex
		normalized.Repositories = append(normalized.Repositories, normalizedRepository)
	}

	return normalized, nil
}

func normalizeRepository(repositoryIndex int, repository Repository) (Repository, error) {
	normalized := Repository{
		GitURL:               strings.TrimSpace(repository.GitURL),
		DirectoryName:        strings.TrimSpace(repository.DirectoryName),
		TestCommand:          strings.TrimSpace(repository.TestCommand),
		TestCommandArguments: append([]string(nil), repository.TestCommandArguments...),
	}

	if len(normalized.GitURL) == 0 {
		return Repository{}, ValidationError{
			Field:   fmt.Sprintf(repositoryFieldTemplateConstant, repositoryIndex, gitFieldNameConstant),
			Message: requiredMessageConstant,
		}
	}

	if len(normalized.DirectoryName) == 0 {
		derivedName, deriveError := gitrepo.CheckoutDirectoryName(normalized.GitURL)
		if deriveError != nil {
			return Repository{}, ValidationError{
				Field:   fmt.Sprintf(repositoryFieldTemplateConstant, repositoryIndex, directoryFieldNameConstant),
				Message: deriveError.Error(),
			}
		}
		normalized.DirectoryName = derivedName
	}
	if !workspace.ValidDirectoryName(normalized.DirectoryName) {
		return Repository{}, ValidationError{
			Field:   fmt.Sprintf(repositoryFieldTemplateConstant, repositoryIndex, directoryFieldNameConstant),
			Message: invalidDirectoryMessageConstant,
		}
	}

	for serviceIndex, service := range repository.AuxiliaryServices {
		normalizedService, serviceError := normalizeService(repositoryIndex, serviceIndex, service)
		if serviceError != nil {
			return Repository{}, serviceError
		}
		normalized.AuxiliaryServices = append(normalized.AuxiliaryServices, normalizedService)
	}

	if normalized.TestCommand == LegacyServiceTestCommandConstant && len(normalized.AuxiliaryServices) == 0 {
		normalized.TestCommandArguments = nil
		normalized.AuxiliaryServices = []AuxiliaryService{legacyDevelopmentServer()}
	}

	return normalized, nil
}

func normalizeService(repositoryIndex int, serviceIndex int, service AuxiliaryService) (AuxiliaryService, error) {
	normalized := AuxiliaryService{
		Command:          strings.TrimSpace(service.Command),
		Arguments:        append([]string(nil), service.Arguments...),
		WorkingDirectory: strings.TrimSpace(service.WorkingDirectory),
		ReadyAddress:     strings.TrimSpace(service.ReadyAddress),
		ReadyTimeout:     service.ReadyTimeout,
	}

	if len(normalized.Command) == 0 {
		return AuxiliaryService{}, ValidationError{
			Field:   fmt.Sprintf(serviceFieldTemplateConstant, repositoryIndex, serviceIndex, commandFieldNameConstant),
			Message: requiredMessageConstant,
		}
	}
	if len(normalized.WorkingDirectory) > 0 && !filepath.IsLocal(normalized.WorkingDirectory) {
		return AuxiliaryService{}, ValidationError{
			Field:   fmt.Sprintf(serviceFieldTemplateConstant, repositoryIndex, serviceIndex, workingDirectoryFieldNameConstant),
			Message: nonLocalDirectoryMessageConstant,
		}
	}
	if normalized.ReadyTimeout < 0 {
		return AuxiliaryService{}, ValidationError{
			Field:   fmt.Sprintf(serviceFieldTemplateConstant, repositoryIndex, serviceIndex, readyTimeoutFieldNameConstant),
			Message: negativeTimeoutMessageConstant,
		}
	}
	if len(normalized.ReadyAddress) > 0 && normalized.ReadyTimeout == 0 {
		normalized.ReadyTimeout = DefaultReadyTimeout
	}

	return normalized, nil
}

func legacyDevelopmentServer() AuxiliaryService {
	return AuxiliaryService{
		Command:          legacyServiceCommandConstant,
		Arguments:        []string{legacyServiceScriptConstant},
		WorkingDirectory: legacyServiceDirectoryConstant,
	}
}
