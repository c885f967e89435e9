package app

import (
	"crypto/rand"
	"math/big"

	"github.com/hylla/civitas/internal/domain"
)

// RandomTrackingCode draws a tracking code from the unambiguous alphabet using crypto/rand.
func RandomTrackingCode(length int) (string, error) {
	alphabet := domain.TrackingCodeAlphabet()
	limit := big.NewInt(int64(len(alphabet)))
	out := make([]byte, length)
	for i := range out {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", err
		}
		out[i] = alphabet[n.Int64()]
	}
	return string(out), nil
}
