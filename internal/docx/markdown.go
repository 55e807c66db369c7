package docx

import (
	"regexp"
	"strings"
)

var (
	headingPrefix = regexp.MustCompile(`^#+\s*`)
	bulletPrefix  = regexp.MustCompile(`^\s*[+\-*]\s+`)
	strongMarks   = regexp.MustCompile(`\*\*|__`)
	starEmphasis  = regexp.MustCompile(`(^|\s)\*([^\s*](?:[^*]*?[^\s*])?)\*(\s|$)`)
	underEmphasis = regexp.MustCompile(`(^|\s)_([^\s_](?:[^_]*?[^\s_])?)_(\s|$)`)
	backticks     = regexp.MustCompile("`+")
	spaceRuns     = regexp.MustCompile(`\s{2,}`)
)

// CleanMarkdownLine strips markdown syntax from a single line, leaving text
// suitable for a plain Word paragraph. Bullets become "• ".
func CleanMarkdownLine(line string) string {
	text := headingPrefix.ReplaceAllString(line, "")
	text = bulletPrefix.ReplaceAllString(text, "• ")
	text = strongMarks.ReplaceAllString(text, "")
	text = replaceUntilStable(starEmphasis, text)
	text = replaceUntilStable(underEmphasis, text)
	text = backticks.ReplaceAllString(text, "")
	text = spaceRuns.ReplaceAllString(text, " ")
	return strings.TrimRight(text, " \t\r\n")
}

// replaceUntilStable reapplies an emphasis pattern because adjacent spans
// share the whitespace between them.
func replaceUntilStable(re *regexp.Regexp, text string) string {
	for range 4 {
		next := re.ReplaceAllString(text, "$1$2$3")
		if next == text {
			break
		}
		text = next
	}
	return text
}

// markdownParagraphs converts markdown content to one paragraph per line.
// Markdown headings keep a heading style; blank lines become empty paragraphs.
func markdownParagraphs(md string) []paragraph {
	lines := strings.Split(strings.ReplaceAll(md, "\r\n", "\n"), "\n")
	out := make([]paragraph, 0, len(lines))
	for _, line := range lines {
		style := ""
		if headingPrefix.MatchString(line) {
			style = styleHeading2
		}
		cleaned := CleanMarkdownLine(line)
		if strings.TrimSpace(cleaned) == "" {
			out = append(out, paragraph{})
			continue
		}
		out = append(out, paragraph{style: style, text: cleaned})
	}
	return out
}
