package writer

import (
	"fmt"
	"math"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	fallbackName  = "transcript"
	minNameLen    = 3
	maxNameLen    = 50
	ellipsis      = "..."
	truncatedStem = maxNameLen - len(ellipsis)
)

// SafeName derives a filesystem-safe file stem from a video title.
func SafeName(title string) string {
	if isTruncatedName(title) {
		return title
	}

	name := strings.TrimSpace(keepSafeRunes(title))
	if utf8.RuneCountInString(name) < minNameLen {
		return fallbackName
	}
	if utf8.RuneCountInString(name) > maxNameLen {
		runes := []rune(name)
		return string(runes[:truncatedStem]) + ellipsis
	}
	return name
}

// keepSafeRunes drops everything except letters, digits, space, '-' and '_'.
func keepSafeRunes(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if isSafeRune(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// isSafeRune reports whether r may appear in a derived name.
func isSafeRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == ' ' || r == '-' || r == '_'
}

// isTruncatedName reports whether s already has the shape SafeName truncates to.
func isTruncatedName(s string) bool {
	stem, ok := strings.CutSuffix(s, ellipsis)
	if !ok || utf8.RuneCountInString(stem) != truncatedStem {
		return false
	}
	if strings.TrimLeftFunc(stem, unicode.IsSpace) != stem {
		return false
	}
	return keepSafeRunes(stem) == stem
}

// TranscriptFileName returns the individual artifact file name for a title.
func TranscriptFileName(title string) string {
	return SafeName(title) + "_transcript.txt"
}

// FormatTimestamp renders seconds as MM:SS, or HH:MM:SS from one hour up.
func FormatTimestamp(seconds float64) string {
	if seconds < 0 || math.IsNaN(seconds) {
		seconds = 0
	}
	total := int64(math.Floor(seconds))
	hours := total / 3600
	minutes := (total % 3600) / 60
	secs := total % 60
	if hours > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", hours, minutes, secs)
	}
	return fmt.Sprintf("%02d:%02d", minutes, secs)
}

// FormatDuration renders a media duration as m:ss for progress lines.
func FormatDuration(seconds float64) string {
	if seconds < 0 || math.IsNaN(seconds) {
		seconds = 0
	}
	total := int64(seconds)
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}
