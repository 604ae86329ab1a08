package cryptox

import (
	"crypto/rand"
	"encoding/base64"
	"io"
)

// randReader is a test seam for crypto/rand.Reader.
var randReader io.Reader = rand.Reader

// RandomBytes returns size bytes read from the cryptographically secure
// random source.
func RandomBytes(size int) ([]byte, error) {
	buf := make([]byte, size)
	if _, err := io.ReadFull(randReader, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// RandomString returns size random bytes encoded with standard base64.
func RandomString(size int) (string, error) {
	buf, err := RandomBytes(size)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(buf), nil
}

// WipeByteArray zeroes b in place.
func WipeByteArray(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
