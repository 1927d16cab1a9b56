package rooms

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateCode_Format(t *testing.T) {
	for i := 0; i < 100; i++ {
		code, err := GenerateCode(RoomCodeLength)
		require.NoError(t, err)
		assert.Regexp(t, `^[A-Z0-9]{5}$`, code)
	}
}

func TestGenerateCode_Length(t *testing.T) {
	for _, n := range []int{RoomCodeLength, PlayerIDLength, 1, 0} {
		code, err := GenerateCode(n)
		require.NoError(t, err)
		assert.Len(t, code, n)
	}
}

func TestGenerateCode_Uniqueness(t *testing.T) {
	seen := make(map[string]bool)
	dupes := 0
	for i := 0; i < 1000; i++ {
		code, err := GenerateCode(RoomCodeLength)
		require.NoError(t, err)
		if seen[code] {
			dupes++
		}
		seen[code] = true
	}
	// 36^5 is about 60M, so 1000 samples should have essentially no dupes
	assert.LessOrEqual(t, dupes, 2, "too many duplicate codes")
}

func TestGenerateCode_UsesWholeAlphabet(t *testing.T) {
	seen := make(map[rune]bool)
	for i := 0; i < 500; i++ {
		code, err := GenerateCode(PlayerIDLength)
		require.NoError(t, err)
		for _, ch := range code {
			seen[ch] = true
		}
	}
	// 4000 draws over 36 symbols; every symbol should appear
	assert.Len(t, seen, len(alphabet))
}
