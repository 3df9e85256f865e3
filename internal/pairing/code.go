package pairing

import (
	"crypto/rand"
	"fmt"
)

// Pairing code parameters. The alphabet deliberately includes every digit
// and uppercase letter to match codes issued by earlier player versions.
const (
	codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	codeLength   = 8
)

// GenerateCode returns a random pairing code: 8 characters from [A-Z0-9].
//
// Bytes are drawn from crypto/rand with rejection sampling so every
// character of the alphabet is equally likely.
//
// Returns:
//   - string: The generated code
//   - error: If the system's entropy source fails
func GenerateCode() (string, error) {
	// Largest multiple of len(codeAlphabet) below 256; bytes at or above
	// this are rejected to avoid modulo bias.
	const limit = byte(256 - (256 % len(codeAlphabet)))

	code := make([]byte, 0, codeLength)
	buf := make([]byte, codeLength*2)
	for len(code) < codeLength {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("generating pairing code: %w", err)
		}
		for _, b := range buf {
			if b >= limit {
				continue
			}
			code = append(code, codeAlphabet[int(b)%len(codeAlphabet)])
			if len(code) == codeLength {
				break
			}
		}
	}
	return string(code), nil
}

// ValidCode reports whether s has the shape of a pairing code.
func ValidCode(s string) bool {
	if len(s) != codeLength {
		return false
	}
	for _, r := range s {
		valid := (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
		if !valid {
			return false
		}
	}
	return true
}
