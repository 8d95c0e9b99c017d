// Package wordgen makes short memorable names for windows created without one.
package wordgen

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

var adjectives = []string{
	"azure", "bold", "calm", "daring", "eager",
	"fleet", "gentle", "happy", "jolly", "keen",
	"lively", "merry", "noble", "proud", "quick",
	"quiet", "rapid", "serene", "swift", "wise",
	"bright", "clever", "cosmic", "golden", "lunar",
	"silver", "solar", "stellar", "vivid", "zen",
}

var nouns = []string{
	"badger", "cheetah", "dolphin", "eagle", "falcon",
	"gazelle", "heron", "ibex", "jaguar", "koala",
	"lynx", "mantis", "narwhal", "otter", "panther",
	"quail", "raven", "shark", "turtle", "viper",
	"walrus", "yak", "zebra", "fox", "owl",
	"panda", "swan", "whale", "wolf", "wren",
}

// maxAttempts bounds the random draws made by GenerateUnique before it falls
// back to a numeric suffix.
const maxAttempts = 20

// Generate creates a random "adjective-noun" pair using crypto/rand.
// Returns an empty string on error.
func Generate() string {
	adj, err := selectRandom(adjectives)
	if err != nil {
		return ""
	}

	noun, err := selectRandom(nouns)
	if err != nil {
		return ""
	}

	return fmt.Sprintf("%s-%s", adj, noun)
}

// GenerateUnique returns a name for which taken reports false. After
// maxAttempts collisions it appends a counter to the last draw.
func GenerateUnique(taken func(string) bool) string {
	var name string
	for i := 0; i < maxAttempts; i++ {
		name = Generate()
		if name != "" && !taken(name) {
			return name
		}
	}
	if name == "" {
		name = "window"
	}
	for n := 2; ; n++ {
		candidate := fmt.Sprintf("%s-%d", name, n)
		if !taken(candidate) {
			return candidate
		}
	}
}

// selectRandom selects a random element from a slice using crypto/rand
func selectRandom(words []string) (string, error) {
	if len(words) == 0 {
		return "", fmt.Errorf("empty word list")
	}

	max := big.NewInt(int64(len(words)))
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", fmt.Errorf("failed to generate random number: %w", err)
	}

	return words[n.Int64()], nil
}
