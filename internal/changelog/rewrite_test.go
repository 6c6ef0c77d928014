package changelog_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/temirov/nagbuild/internal/changelog"
)

func TestRewrite(testInstance *testing.T) {
	testCases := []struct {
		name             string
		content          string
		marker           string
		version          string
		expectedContent  string
		expectedReplaced bool
	}{
		{
			name:             "replaces_marker",
			content:          "# Changelog\n\n## master\n\n- fixed things\n\n## 1.0.0\n",
			marker:           changelog.DefaultMarkerConstant,
			version:          "1.2.0",
			expectedContent:  "# Changelog\n\n## 1.2.0\n\n- fixed things\n\n## 1.0.0\n",
			expectedReplaced: true,
		},
		{
			name:             "replaces_first_marker_only",
			content:          "## master\n## master\n",
			marker:           changelog.DefaultMarkerConstant,
			version:          "2.0.0",
			expectedContent:  "## 2.0.0\n## master\n",
			expectedReplaced: true,
		},
		{
			name:             "keeps_crlf_line_endings",
			content:          "## master\r\n- entry\r\n",
			marker:           changelog.DefaultMarkerConstant,
			version:          "3.1.0",
			expectedContent:  "## 3.1.0\r\n- entry\r\n",
			expectedReplaced: true,
		},
		{
			name:             "ignores_marker_inside_text",
			content:          "see ## master branch notes\n",
			marker:           changelog.DefaultMarkerConstant,
			version:          "3.1.0",
			expectedContent:  "see ## master branch notes\n",
			expectedReplaced: false,
		},
		{
			name:             "missing_marker",
			content:          "## 1.0.0\n",
			marker:           changelog.DefaultMarkerConstant,
			version:          "1.1.0",
			expectedContent:  "## 1.0.0\n",
			expectedReplaced: false,
		},
		{
			name:             "custom_marker",
			content:          "## Unreleased\n",
			marker:           "## Unreleased",
			version:          "0.9.0",
			expectedContent:  "## 0.9.0\n",
			expectedReplaced: true,
		},
		{
			name:             "empty_marker",
			content:          "## master\n",
			marker:           " ",
			version:          "0.9.0",
			expectedContent:  "## master\n",
			expectedReplaced: false,
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			rewritten, replaced := changelog.Rewrite(testCase.content, testCase.marker, testCase.version)
			require.Equal(testInstance, testCase.expectedContent, rewritten)
			require.Equal(testInstance, testCase.expectedReplaced, replaced)
		})
	}
}

func TestRewriteIsIdempotent(testInstance *testing.T) {
	firstPass, firstReplaced := changelog.Rewrite("## master\n- entry\n", changelog.DefaultMarkerConstant, "1.0.0")
	require.True(testInstance, firstReplaced)

	secondPass, secondReplaced := changelog.Rewrite(firstPass, changelog.DefaultMarkerConstant, "1.0.0")
	require.False(testInstance, secondReplaced)
	require.Equal(testInstance, firstPass, secondPass)
}
