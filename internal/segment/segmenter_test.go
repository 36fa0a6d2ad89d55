// Package segment_test tests the text segmenter.
package segment_test

import (
	"strings"
	"testing"
	"unicode"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lutaSci/voxcpm-service/internal/segment"
)

// stripWhitespace removes all whitespace so coverage can be compared
// independently of boundary spacing.
func stripWhitespace(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}

		return r
	}, s)
}

func assertCoverage(t *testing.T, input string, segments []string, maxLength int) {
	t.Helper()

	var joined strings.Builder
	for _, seg := range segments {
		require.NotEmpty(t, strings.TrimSpace(seg), "no segment may be empty")
		require.LessOrEqual(t, utf8.RuneCountInString(seg), maxLength,
			"segment %q exceeds max length", seg)
		joined.WriteString(seg)
	}

	assert.Equal(t, stripWhitespace(segment.Normalize(input)), stripWhitespace(joined.String()),
		"segments must reconstruct the normalized input")
}

func TestSplitShortInputSingleSegment(t *testing.T) {
	t.Parallel()

	splitter := segment.NewSplitter(100)
	segments := splitter.Split("Just one short sentence.")

	require.Len(t, segments, 1)
	assert.Equal(t, "Just one short sentence.", segments[0])
}

func TestSplitWhitespaceOnlyInput(t *testing.T) {
	t.Parallel()

	splitter := segment.NewSplitter(100)

	assert.Empty(t, splitter.Split(""))
	assert.Empty(t, splitter.Split("   \n\n\t  "))
}

func TestSplitSentenceBoundaries(t *testing.T) {
	t.Parallel()

	splitter := segment.NewSplitter(15)
	input := "Hello world. This is a test!"
	segments := splitter.Split(input)

	require.GreaterOrEqual(t, len(segments), 2)
	assertCoverage(t, input, segments, 15)

	assert.Equal(t, "Hello world.", segments[0], "boundary punctuation stays attached")
}

func TestSplitNormalizesWhitespace(t *testing.T) {
	t.Parallel()

	splitter := segment.NewSplitter(200)
	segments := splitter.Split("First   line.\n\n\nSecond  line.")

	require.Len(t, segments, 1)
	assert.Equal(t, "First line.\nSecond line.", segments[0])
}

func TestSplitWeakBoundariesWhenSentenceTooLong(t *testing.T) {
	t.Parallel()

	input := "alpha beta gamma delta, epsilon zeta eta theta, iota kappa lambda mu"
	splitter := segment.NewSplitter(30)
	segments := splitter.Split(input)

	require.GreaterOrEqual(t, len(segments), 2)
	assertCoverage(t, input, segments, 30)
	assert.True(t, strings.HasSuffix(segments[0], ","), "clause punctuation stays attached")
}

func TestSplitHardSplitPrefersWordBoundary(t *testing.T) {
	t.Parallel()

	input := strings.Repeat("word ", 40) // no sentence or clause punctuation
	splitter := segment.NewSplitter(50)
	segments := splitter.Split(input)

	require.GreaterOrEqual(t, len(segments), 2)
	assertCoverage(t, input, segments, 50)

	for _, seg := range segments {
		assert.False(t, strings.Contains(seg, "wo rd"), "no mid-word cut expected")
	}
}

func TestSplitDegradesToFixedWidthSlicing(t *testing.T) {
	t.Parallel()

	input := strings.Repeat("x", 25) // a single token longer than max
	splitter := segment.NewSplitter(10)
	segments := splitter.Split(input)

	require.Len(t, segments, 3)
	assertCoverage(t, input, segments, 10)
	assert.Equal(t, strings.Repeat("x", 10), segments[0])
	assert.Equal(t, strings.Repeat("x", 5), segments[2])
}

func TestSplitMergesShortSegments(t *testing.T) {
	t.Parallel()

	// Every sentence is well under the merge threshold, so neighbors fold
	// together while the total stays within bounds.
	input := "One. Two. Three. Four. Five. Six. Seven. Eight. Nine. Ten. Eleven. Twelve."
	splitter := segment.NewSplitter(40)
	segments := splitter.Split(input)

	assertCoverage(t, input, segments, 40)

	for i, seg := range segments {
		if i < len(segments)-1 {
			assert.GreaterOrEqual(t, utf8.RuneCountInString(seg), 20,
				"merged segment %q should reach the merge threshold", seg)
		}
	}
}

func TestSplitCJKBoundaries(t *testing.T) {
	t.Parallel()

	input := "你好世界。这是一个测试！还有第三句话。"
	splitter := segment.NewSplitter(8)
	segments := splitter.Split(input)

	require.GreaterOrEqual(t, len(segments), 2)
	assertCoverage(t, input, segments, 8)
	assert.True(t, strings.HasSuffix(segments[0], "。"))
}

func TestSplitIsStructurallyIdempotent(t *testing.T) {
	t.Parallel()

	input := "A long paragraph, with clauses, and sentences. It keeps going! Does it end? Yes.\nNew line here."
	splitter := segment.NewSplitter(25)

	first := splitter.Split(input)
	second := splitter.Split(input)

	assert.Equal(t, first, second, "repeated runs must produce identical coverage and order")
	assertCoverage(t, input, first, 25)
}
