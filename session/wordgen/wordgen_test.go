package wordgen

import (
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

var namePattern = regexp.MustCompile(`^[a-z]+-[a-z]+$`)

func TestGenerateFormat(t *testing.T) {
	for i := 0; i < 20; i++ {
		result := Generate()
		require.Regexp(t, namePattern, result)
	}
}

func TestGenerateComponents(t *testing.T) {
	result := Generate()
	parts := strings.SplitN(result, "-", 2)
	require.Len(t, parts, 2)
	require.Contains(t, adjectives, parts[0])
	require.Contains(t, nouns, parts[1])
}

func TestGenerateVariety(t *testing.T) {
	results := make(map[string]bool)
	iterations := 100
	for i := 0; i < iterations; i++ {
		results[Generate()] = true
	}
	require.Greater(t, len(results), iterations/2)
}

func TestGenerateUniqueAvoidsTaken(t *testing.T) {
	taken := map[string]bool{}
	for i := 0; i < 50; i++ {
		name := GenerateUnique(func(s string) bool { return taken[s] })
		require.False(t, taken[name], "name %q handed out twice", name)
		taken[name] = true
	}
}

func TestGenerateUniqueFallsBackToSuffix(t *testing.T) {
	// Every plain pair is taken, so a numbered name must come back.
	name := GenerateUnique(func(s string) bool {
		return namePattern.MatchString(s)
	})
	require.Regexp(t, `^[a-z]+-[a-z]+-2$`, name)
}

func TestSelectRandomEmpty(t *testing.T) {
	_, err := selectRandom(nil)
	require.Error(t, err)
}
