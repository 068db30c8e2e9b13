// Package wallet derives account addresses from a BIP39 mnemonic or an
// account-level extended public key.
package wallet

import (
	"math"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/agnivade/levenshtein"
	"github.com/tyler-smith/go-bip39"

	"github.com/mrz1836/seedscout/internal/secure"
	scouterr "github.com/mrz1836/seedscout/pkg/errors"
)

// MaxTypoDistance is the largest edit distance offered as a suggestion.
const MaxTypoDistance = 2

var (
	whitespaceRegex   = regexp.MustCompile(`\s+`)
	numberedListRegex = regexp.MustCompile(`(?m)^\s*\d+[\.\)\:]\s*`)
	bulletListRegex   = regexp.MustCompile(`(?m)^\s*[-*•]\s*`)
)

// validWordCounts are the BIP39 mnemonic lengths.
var validWordCounts = []int{12, 15, 18, 21, 24}

// NormalizeMnemonic lowercases input and strips list numbering, bullets,
// commas and repeated whitespace, so a phrase pasted from a note still parses.
func NormalizeMnemonic(input string) string {
	input = strings.ToLower(input)
	input = numberedListRegex.ReplaceAllString(input, " ")
	input = bulletListRegex.ReplaceAllString(input, " ")
	input = strings.ReplaceAll(input, ",", " ")
	input = whitespaceRegex.ReplaceAllString(input, " ")
	return strings.TrimSpace(input)
}

// ValidateMnemonic checks word count, word list membership and checksum.
// On failure the error carries typo suggestions when any are found.
func ValidateMnemonic(mnemonic string) error {
	normalized := NormalizeMnemonic(mnemonic)
	words := strings.Fields(normalized)
	if !slices.Contains(validWordCounts, len(words)) {
		return scouterr.WithDetails(scouterr.ErrInvalidMnemonic, map[string]string{
			"words": strconv.Itoa(len(words)),
		})
	}

	if _, err := bip39.MnemonicToByteArray(normalized); err != nil {
		invalid := scouterr.WithCause(scouterr.ErrInvalidMnemonic, err)
		if typos := DetectTypos(normalized); len(typos) > 0 {
			return scouterr.WithSuggestion(invalid, FormatTypos(typos))
		}
		return scouterr.WithSuggestion(invalid, "checksum mismatch: check the word order")
	}
	return nil
}

// MnemonicToSeed validates the phrase and returns its 64-byte seed in
// locked memory. The caller destroys the buffer.
func MnemonicToSeed(mnemonic, passphrase string) (*secure.Buffer, error) {
	if err := ValidateMnemonic(mnemonic); err != nil {
		return nil, err
	}
	return secure.FromSlice(bip39.NewSeed(NormalizeMnemonic(mnemonic), passphrase)), nil
}

// IsValidWord reports whether word is in the English BIP39 list.
func IsValidWord(word string) bool {
	_, ok := bip39.GetWordIndex(strings.ToLower(word))
	return ok
}

// SuggestWord returns the closest BIP39 word within MaxTypoDistance, or "".
func SuggestWord(input string) string {
	input = strings.ToLower(input)
	best, bestDist := "", math.MaxInt

	for _, word := range bip39.GetWordList() {
		dist := levenshtein.ComputeDistance(input, word)
		if dist == 0 {
			return word
		}
		if dist < bestDist {
			best, bestDist = word, dist
		}
	}
	if bestDist <= MaxTypoDistance {
		return best
	}
	return ""
}

// Typo is a word outside the BIP39 list.
type Typo struct {
	Index      int    // 0-based word position
	Word       string // as typed
	Suggestion string // closest word, may be empty
}

// DetectTypos lists the words of mnemonic that are not BIP39 words.
func DetectTypos(mnemonic string) []Typo {
	var typos []Typo
	for i, word := range strings.Fields(NormalizeMnemonic(mnemonic)) {
		if IsValidWord(word) {
			continue
		}
		typos = append(typos, Typo{Index: i, Word: word, Suggestion: SuggestWord(word)})
	}
	return typos
}

// FormatTypos renders typos one per line with 1-based positions.
func FormatTypos(typos []Typo) string {
	lines := make([]string, 0, len(typos))
	for _, t := range typos {
		line := "word " + strconv.Itoa(t.Index+1) + ": '" + t.Word + "'"
		if t.Suggestion != "" {
			line += " - did you mean '" + t.Suggestion + "'?"
		} else {
			line += " is not a BIP39 word"
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}
