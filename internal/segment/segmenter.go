// Package segment provides deterministic text segmentation for speech
// generation. Long input is split into bounded pieces at semantic
// boundaries so the model is never fed more than it can voice in one call.
package segment

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Segmentation bounds.
const (
	// DefaultMaxLength is the default maximum runes per segment.
	DefaultMaxLength = 300
	// minMergeLength is the threshold below which a segment is merged into
	// its right neighbor when the result still fits.
	minMergeLength = 20
	// hardSplitWindow is how far back from the cut point a whitespace
	// boundary is searched for during a hard split.
	hardSplitWindow = 50
)

// Precompiled normalization patterns.
var (
	newlineRunPattern = regexp.MustCompile(`\n+`)
	spaceRunPattern   = regexp.MustCompile(`[ \t]+`)
)

// Splitter breaks text into ordered segments no longer than MaxLength runes.
// Strong boundaries (sentence terminators, newline) are preferred, then weak
// boundaries (clause punctuation), then a windowed hard split. The boundary
// character stays attached to the text preceding it.
type Splitter struct {
	maxLength int
}

// NewSplitter creates a splitter with the given maximum segment length in
// runes. Non-positive values fall back to DefaultMaxLength.
func NewSplitter(maxLength int) *Splitter {
	if maxLength <= 0 {
		maxLength = DefaultMaxLength
	}

	return &Splitter{maxLength: maxLength}
}

// MaxLength returns the configured maximum segment length.
func (s *Splitter) MaxLength() int {
	return s.maxLength
}

// Split segments text. Whitespace-only input yields no segments. Input that
// already fits yields exactly one segment. The concatenation of the result,
// ignoring whitespace, always reproduces the normalized input.
func (s *Splitter) Split(text string) []string {
	normalized := Normalize(text)
	if normalized == "" {
		return nil
	}

	if utf8.RuneCountInString(normalized) <= s.maxLength {
		return []string{normalized}
	}

	var result []string

	for _, piece := range splitAtBoundaries(normalized, isStrongBoundary) {
		if utf8.RuneCountInString(piece) <= s.maxLength {
			result = append(result, piece)

			continue
		}

		for _, sub := range splitAtBoundaries(piece, isWeakBoundary) {
			if utf8.RuneCountInString(sub) <= s.maxLength {
				result = append(result, sub)
			} else {
				result = append(result, s.hardSplit(sub)...)
			}
		}
	}

	result = trimNonEmpty(result)

	return s.mergeShortSegments(result)
}

// Normalize collapses runs of newlines and horizontal whitespace to a single
// occurrence each and trims the ends.
func Normalize(text string) string {
	text = newlineRunPattern.ReplaceAllString(text, "\n")
	text = spaceRunPattern.ReplaceAllString(text, " ")

	return strings.TrimSpace(text)
}

// splitAtBoundaries splits text at boundary runes, keeping each boundary
// attached to the preceding text.
func splitAtBoundaries(text string, isBoundary func(rune) bool) []string {
	var (
		pieces  []string
		current strings.Builder
	)

	for _, r := range text {
		current.WriteRune(r)

		if isBoundary(r) {
			if strings.TrimSpace(current.String()) != "" {
				pieces = append(pieces, current.String())
			}

			current.Reset()
		}
	}

	if strings.TrimSpace(current.String()) != "" {
		pieces = append(pieces, current.String())
	}

	return pieces
}

// hardSplit cuts text at maxLength, searching back up to hardSplitWindow
// runes for a whitespace boundary to avoid mid-word cuts. When no boundary
// exists within the window this degrades to fixed-width slicing.
func (s *Splitter) hardSplit(text string) []string {
	var segments []string

	remaining := strings.TrimSpace(text)

	for utf8.RuneCountInString(remaining) > s.maxLength {
		runes := []rune(remaining)
		splitPoint := s.maxLength

		searchStart := s.maxLength - hardSplitWindow
		if searchStart < 0 {
			searchStart = 0
		}

		for i := s.maxLength - 1; i > searchStart; i-- {
			if unicode.IsSpace(runes[i]) {
				splitPoint = i

				break
			}
		}

		piece := strings.TrimSpace(string(runes[:splitPoint]))
		if piece != "" {
			segments = append(segments, piece)
		}

		remaining = strings.TrimSpace(string(runes[splitPoint:]))
	}

	if remaining != "" {
		segments = append(segments, remaining)
	}

	return segments
}

// mergeShortSegments folds segments shorter than minMergeLength into their
// right neighbors, left to right, whenever the merge still fits.
func (s *Splitter) mergeShortSegments(segments []string) []string {
	if len(segments) <= 1 {
		return segments
	}

	var result []string

	i := 0
	for i < len(segments) {
		current := segments[i]

		for utf8.RuneCountInString(current) < minMergeLength &&
			i+1 < len(segments) &&
			utf8.RuneCountInString(current)+1+utf8.RuneCountInString(segments[i+1]) <= s.maxLength {
			i++
			current = current + " " + segments[i]
		}

		result = append(result, current)
		i++
	}

	return result
}

func trimNonEmpty(segments []string) []string {
	result := segments[:0]

	for _, seg := range segments {
		trimmed := strings.TrimSpace(seg)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}

func isStrongBoundary(r rune) bool {
	switch r {
	case '.', '!', '?', ';', '。', '！', '？', '；', '\n':
		return true
	default:
		return false
	}
}

func isWeakBoundary(r rune) bool {
	switch r {
	case ',', ':', '，', '、', '：':
		return true
	default:
		return false
	}
}
