package snippet

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExtractFindsTechniqueKeyword(t *testing.T) {
	got := Extract("I finally nailed trail braking into turn three and it felt amazing")
	require.Contains(t, got, "trail braking")
	// window keeps surrounding words, original case
	require.Contains(t, got, "nailed")
}

func TestExtractPrefersEarlierBucket(t *testing.T) {
	// "apex" (technique) should win over "cone" (incident) regardless of text order
	got := Extract("hit a cone right at the apex")
	require.Contains(t, got, "apex")
}

func TestExtractMatchIsCaseInsensitive(t *testing.T) {
	got := Extract("Big SNAP OVERSTEER out of the hairpin")
	require.Contains(t, strings.ToLower(got), "snap oversteer")
}

func TestExtractFallsBackToPrefix(t *testing.T) {
	got := Extract("it was a pretty uneventful day all things considered")
	require.Equal(t, "it was a pretty uneventful day all things considered", got)
}

func TestExtractNormalizesWhitespace(t *testing.T) {
	got := Extract("it  was \n fine\ttoday")
	require.Equal(t, "it was fine today", got)
}

func TestExtractTruncatesLongText(t *testing.T) {
	long := strings.Repeat("nothing special happened ", 10)
	got := Extract(long)
	require.True(t, strings.HasSuffix(got, "…"))
	require.LessOrEqual(t, len([]rune(got)), 71)
}

func TestExtractEmpty(t *testing.T) {
	require.Equal(t, "", Extract(""))
	require.Equal(t, "", Extract("   \n"))
}
