package configuration

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultFileNameConstant is the repositories file read when none is configured.
	DefaultFileNameConstant = "nag-builder.json"

	yamlExtensionConstant              = ".yaml"
	ymlExtensionConstant               = ".yml"
	sliceSeparatorConstant             = ","
	readErrorTemplateConstant          = "unable to read repositories file %s: %w"
	parseErrorTemplateConstant         = "unable to parse repositories file %s: %w"
	decodeErrorTemplateConstant        = "unable to decode repositories file %s: %w"
	decoderCreateErrorTemplateConstant = "unable to prepare decoder for %s: %w"
	normalizeErrorTemplateConstant     = "invalid repositories file %s: %w"
)

// FileReader reads whole files.
type FileReader interface {
	ReadFile(path string) ([]byte, error)
}

// Load reads, decodes, and normalizes the repositories file at path. Files
// ending in .yaml or .yml are parsed as YAML; everything else is parsed as
// JSON that may carry comments and trailing commas.
func Load(reader FileReader, path string) (Configuration, error) {
	contents, readError := reader.ReadFile(path)
	if readError != nil {
		return Configuration{}, fmt.Errorf(readErrorTemplateConstant, path, readError)
	}

	configuration, decodeError := Decode(contents, isYAMLPath(path), path)
	if decodeError != nil {
		return Configuration{}, decodeError
	}

	normalized, normalizeError := configuration.Normalize()
	if normalizeError != nil {
		return Configuration{}, fmt.Errorf(normalizeErrorTemplateConstant, path, normalizeError)
	}
	return normalized, nil
}

// Decode converts raw repositories file contents into a Configuration
// without normalizing it. The source name only labels errors.
func Decode(contents []byte, yamlFormat bool, source string) (Configuration, error) {
	var rawDocument map[string]any
	if yamlFormat {
		if parseError := yaml.Unmarshal(contents, &rawDocument); parseError != nil {
			return Configuration{}, fmt.Errorf(parseErrorTemplateConstant, source, parseError)
		}
	} else {
		if parseError := json.Unmarshal(jsonc.ToJSON(contents), &rawDocument); parseError != nil {
			return Configuration{}, fmt.Errorf(parseErrorTemplateConstant, source, parseError)
		}
	}

	var configuration Configuration
	decoder, decoderError := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(sliceSeparatorConstant),
		),
		Result: &configuration,
	})
	if decoderError != nil {
		return Configuration{}, fmt.Errorf(decoderCreateErrorTemplateConstant, source, decoderError)
	}
	if decodeError := decoder.Decode(rawDocument); decodeError != nil {
		return Configuration{}, fmt.Errorf(decodeErrorTemplateConstant, source, decodeError)
	}
	return configuration, nil
}

func isYAMLPath(path string) bool {
	extension := strings.ToLower(filepath.Ext(path))
	return extension == yamlExtensionConstant || extension == ymlExtensionConstant
}
