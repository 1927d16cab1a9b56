package rooms

import (
	"crypto/rand"
	"math/big"
)

const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

const (
	RoomCodeLength = 5
	PlayerIDLength = 8
)

var alphabetSize = big.NewInt(int64(len(alphabet)))

// GenerateCode returns length symbols drawn uniformly from A-Z0-9.
// Uniqueness is the caller's concern.
func GenerateCode(length int) (string, error) {
	code := make([]byte, length)
	for i := range code {
		n, err := rand.Int(rand.Reader, alphabetSize)
		if err != nil {
			return "", err
		}
		code[i] = alphabet[n.Int64()]
	}
	return string(code), nil
}
