package wallet

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	scouterr "github.com/mrz1836/seedscout/pkg/errors"
)

const testMnemonic = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"

func TestValidateMnemonic_Valid(t *testing.T) {
	t.Parallel()
	tests := []string{
		testMnemonic,
		"legal winner thank year wave sausage worth useful legal winner thank yellow",
		"letter advice cage absurd amount doctor acoustic avoid letter advice cage above",
		"zoo zoo zoo zoo zoo zoo zoo zoo zoo zoo zoo wrong",
		"abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon art",
		"1. abandon\n2. abandon\n3. abandon\n4. abandon\n5. abandon\n6. abandon\n7. abandon\n8. abandon\n9. abandon\n10. abandon\n11. abandon\n12. about",
	}
	for _, m := range tests {
		require.NoError(t, ValidateMnemonic(m))
	}
}

//nolint:misspell // intentional typos
func TestValidateMnemonic_Invalid(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name           string
		mnemonic       string
		wantSuggestion string
	}{
		{"empty", "", ""},
		{"single word", "abandon", ""},
		{"eleven words", "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon", ""},
		{"bad checksum", "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon", "checksum"},
		{"typo", "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abouut", "did you mean 'about'"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			err := ValidateMnemonic(tc.mnemonic)
			require.ErrorIs(t, err, scouterr.ErrInvalidMnemonic)
			assert.Equal(t, scouterr.ExitInput, scouterr.ExitCode(err))
			if tc.wantSuggestion != "" {
				assert.Contains(t, scouterr.Suggestion(err), tc.wantSuggestion)
			}
		})
	}
}

func TestNormalizeMnemonic(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"normalized", "abandon abandon about", "abandon abandon about"},
		{"surrounding whitespace", "  abandon abandon about  ", "abandon abandon about"},
		{"tabs and newlines", "abandon\tabandon\nabout", "abandon abandon about"},
		{"uppercase", "Abandon ABANDON About", "abandon abandon about"},
		{"numbered list", "1. abandon\n2) abandon\n3: about", "abandon abandon about"},
		{"bullets", "- abandon\n* abandon\n• about", "abandon abandon about"},
		{"commas", "abandon,abandon, about", "abandon abandon about"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, NormalizeMnemonic(tc.input))
		})
	}
}

func TestMnemonicToSeed(t *testing.T) {
	t.Parallel()
	// BIP39 reference vector with passphrase "TREZOR".
	seed, err := MnemonicToSeed(testMnemonic, "TREZOR")
	require.NoError(t, err)
	defer seed.Destroy()

	assert.Equal(t,
		"c55257c360c07c72029aebc1b53c05ed0362ada38ead3e3e9efa3708e53495531f09a6987599d18264c1e1c92f2cf141630c7a3c4ab7c81b2f001698e7463b04",
		hex.EncodeToString(seed.Bytes()))

	plain, err := MnemonicToSeed(testMnemonic, "")
	require.NoError(t, err)
	defer plain.Destroy()
	assert.NotEqual(t, seed.Bytes(), plain.Bytes())

	_, err = MnemonicToSeed("invalid mnemonic words here", "")
	require.ErrorIs(t, err, scouterr.ErrInvalidMnemonic)
}

//nolint:misspell // intentional typos
func TestSuggestWord(t *testing.T) {
	t.Parallel()
	tests := []struct {
		input string
		want  string
	}{
		{"abondon", "abandon"},
		{"abadon", "abandon"},
		{"abouut", "about"},
		{"zooo", "zoo"},
		{"abandon", "abandon"},
		{"ABONDON", "abandon"},
		{"xyzqwerty", ""},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, SuggestWord(tc.input), tc.input)
	}
}

//nolint:misspell // intentional typos
func TestDetectTypos(t *testing.T) {
	t.Parallel()
	typos := DetectTypos("abondon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abouut")
	require.Len(t, typos, 2)
	assert.Equal(t, Typo{Index: 0, Word: "abondon", Suggestion: "abandon"}, typos[0])
	assert.Equal(t, Typo{Index: 11, Word: "abouut", Suggestion: "about"}, typos[1])

	assert.Equal(t,
		"word 1: 'abondon' - did you mean 'abandon'?\nword 12: 'abouut' - did you mean 'about'?",
		FormatTypos(typos))

	assert.Empty(t, DetectTypos(testMnemonic))
	assert.Empty(t, DetectTypos(""))

	unknown := DetectTypos("qqqqqqqq")
	require.Len(t, unknown, 1)
	assert.Equal(t, "word 1: 'qqqqqqqq' is not a BIP39 word", FormatTypos(unknown))
}

func TestIsValidWord(t *testing.T) {
	t.Parallel()
	assert.True(t, IsValidWord("abandon"))
	assert.True(t, IsValidWord("ZOO"))
	assert.False(t, IsValidWord("abondon")) //nolint:misspell // intentional typo
}
