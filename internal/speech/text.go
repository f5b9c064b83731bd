package speech

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	markdownMarkers = strings.NewReplacer("~~", "", "`", "", "*", "", "_", "", "#", "")
	symbolWords     = strings.NewReplacer("&", " and ", "/", " or ", "-", " ")

	lineBreaks      = regexp.MustCompile(`(\r\n|\r|\n)+`)
	whitespace      = regexp.MustCompile(`\s+`)
	spaceBeforeStop = regexp.MustCompile(`\s+\.`)
	repeatedStops   = regexp.MustCompile(`\.(\s*\.)+`)
	stopAfterMark   = regexp.MustCompile(`([!?,;:])\s*\.`)
)

// ProcessTextForSpeech rewrites display text into something an engine reads
// naturally: markdown markers go, symbols become words, line breaks become
// sentence stops.
func ProcessTextForSpeech(text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}

	text = markdownMarkers.Replace(text)
	text = symbolWords.Replace(text)
	text = lineBreaks.ReplaceAllString(strings.TrimSpace(text), ". ")
	text = whitespace.ReplaceAllString(text, " ")

	text = spaceBeforeStop.ReplaceAllString(text, ".")
	text = repeatedStops.ReplaceAllString(text, ".")
	text = stopAfterMark.ReplaceAllString(text, "$1")
	text = strings.TrimLeft(text, ". ")

	return strings.TrimSpace(text)
}

// truncateForSpeech caps text at max runes, ending in "..." when cut
func truncateForSpeech(text string, max int) string {
	if utf8.RuneCountInString(text) <= max {
		return text
	}
	runes := []rune(text)
	return string(runes[:max-3]) + "..."
}
