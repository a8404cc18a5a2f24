package extract

import (
	"regexp"
	"strings"

	"brewbook/pkg/types"
)

// Metadata patterns are unanchored: they can latch onto an unrelated number
// later in the page (e.g. "prep your station ... time 2024"). They are kept
// as a best-effort signal; structured data is preferred whenever present.
var (
	prepTimePattern   = regexp.MustCompile(`(?i)prep.*?time.*?(\d+)`)
	totalTimePattern  = regexp.MustCompile(`(?i)total.*?time.*?(\d+)`)
	servingsPattern   = regexp.MustCompile(`(?i)servings?.*?(\d+)`)
	difficultyPattern = regexp.MustCompile(`(?i)difficulty.*?(easy|medium|hard)`)
)

func applyMetadata(content *types.ExtractedContent, text string) {
	content.PrepTime = firstGroup(prepTimePattern, text)
	content.TotalTime = firstGroup(totalTimePattern, text)
	content.Servings = firstGroup(servingsPattern, text)
	content.Difficulty = strings.ToLower(firstGroup(difficultyPattern, text))
}

func firstGroup(re *regexp.Regexp, text string) string {
	m := re.FindStringSubmatch(text)
	if len(m) < 2 {
		return ""
	}
	return m[1]
}
