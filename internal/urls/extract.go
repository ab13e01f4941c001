package urls

import (
	"regexp"
	"strings"

	"github.com/samber/lo"

	"tube-transcriber/internal/domain"
)

var (
	separators = regexp.MustCompile(`[,\n\r\t]+`)

	// referencePatterns are searched anywhere in a candidate line.
	referencePatterns = []*regexp.Regexp{
		regexp.MustCompile(`https?://(?:www\.)?youtube\.com/watch\?v=[\w-]+`),
		regexp.MustCompile(`https?://youtu\.be/[\w-]+`),
		regexp.MustCompile(`youtube\.com/watch\?v=[\w-]+`),
		regexp.MustCompile(`youtu\.be/[\w-]+`),
	}

	hostPrefixes = []string{"www.youtube.com", "youtube.com", "youtu.be"}
	hostMarkers  = []string{"youtube.com", "youtu.be"}
)

// Selection is the validated reference list plus everything that was dropped.
type Selection struct {
	References []domain.VideoReference `json:"references"`
	Skipped    []string                `json:"skipped,omitempty"`
	Rejected   []domain.VideoReference `json:"rejected,omitempty"`
}

// Extract splits free-form text into candidate references in input order.
func Extract(raw string) []domain.VideoReference {
	refs, _ := extract(raw)
	return refs
}

// extract returns accepted references and the non-blank lines that matched nothing.
func extract(raw string) ([]domain.VideoReference, []string) {
	var refs []domain.VideoReference
	var skipped []string
	for _, line := range separators.Split(raw, -1) {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if !matchesReference(line) {
			skipped = append(skipped, line)
			continue
		}
		refs = append(refs, domain.VideoReference(normalize(line)))
	}
	return refs, skipped
}

// matchesReference reports whether line contains a recognized video URL shape.
func matchesReference(line string) bool {
	return lo.ContainsBy(referencePatterns, func(pattern *regexp.Regexp) bool {
		return pattern.MatchString(line)
	})
}

// normalize prepends https:// to scheme-less lines starting with a known host.
func normalize(line string) string {
	if strings.HasPrefix(line, "http") {
		return line
	}
	for _, prefix := range hostPrefixes {
		if strings.HasPrefix(line, prefix) {
			return "https://" + line
		}
	}
	return line
}

// Validate splits refs into those naming a supported host and the rest.
func Validate(refs []domain.VideoReference) (valid, rejected []domain.VideoReference) {
	return lo.FilterReject(refs, func(ref domain.VideoReference, _ int) bool {
		return hasHostMarker(string(ref))
	})
}

// hasHostMarker reports whether s mentions a supported host.
func hasHostMarker(s string) bool {
	return lo.ContainsBy(hostMarkers, func(marker string) bool {
		return strings.Contains(s, marker)
	})
}

// Parse extracts and validates batch input text.
func Parse(raw string) (Selection, error) {
	refs, skipped := extract(raw)
	valid, rejected := Validate(refs)
	sel := Selection{References: valid, Skipped: skipped, Rejected: rejected}
	if len(valid) == 0 {
		return sel, domain.ErrNoValidReferences
	}
	return sel, nil
}

// ParseSingle validates one URL without running extraction on it.
func ParseSingle(url string) (Selection, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return Selection{}, domain.ErrNoValidReferences
	}
	valid, rejected := Validate([]domain.VideoReference{domain.VideoReference(url)})
	sel := Selection{References: valid, Rejected: rejected}
	if len(valid) == 0 {
		return sel, domain.ErrNoValidReferences
	}
	return sel, nil
}
