package changelog

import (
	"fmt"
	"strings"
)

const (
	// FileNameConstant names the changelog file inside a checkout.
	FileNameConstant = "CHANGELOG.md"
	// DefaultMarkerConstant is the heading that tracks unreleased changes.
	DefaultMarkerConstant = "## master"

	releaseHeadingTemplateConstant = "## %s"
	lineSeparatorConstant          = "\n"
	carriageReturnConstant         = "\r"
)

// ReleaseHeading formats the heading written for a released version.
func ReleaseHeading(version string) string {
	return fmt.Sprintf(releaseHeadingTemplateConstant, version)
}

// Rewrite replaces the first line equal to marker with the release heading
// for version. The second return value reports whether a replacement happened.
func Rewrite(content string, marker string, version string) (string, bool) {
	trimmedMarker := strings.TrimSpace(marker)
	if len(trimmedMarker) == 0 {
		return content, false
	}

	lines := strings.Split(content, lineSeparatorConstant)
	for lineIndex, line := range lines {
		lineBody := strings.TrimSuffix(line, carriageReturnConstant)
		if strings.TrimRight(lineBody, " \t") != trimmedMarker {
			continue
		}
		lineEnding := line[len(lineBody):]
		lines[lineIndex] = ReleaseHeading(version) + lineEnding
		return strings.Join(lines, lineSeparatorConstant), true
	}

	return content, false
}
