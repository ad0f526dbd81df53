package credential

import (
	"encoding/base64"
	"fmt"
)

// obfuscationKey is XORed, one character at a time, over every byte of the
// password. Kept for compatibility with existing settings files.
const obfuscationKey = "udPIuSOiIIetNqAkCvgX"

// Obfuscate hides plain from casual inspection. It is not encryption.
func Obfuscate(plain string) string {
	return base64.StdEncoding.EncodeToString(xorKey([]byte(plain)))
}

// Reveal reverses Obfuscate.
func Reveal(obfuscated string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(obfuscated)
	if err != nil {
		return "", fmt.Errorf("credential: decoding password: %w", err)
	}

	return string(xorKey(data)), nil
}

// xorKey applies each key character in turn to every byte. XOR is its own
// inverse, so the same pass obfuscates and reveals.
func xorKey(data []byte) []byte {
	out := make([]byte, len(data))
	copy(out, data)

	for i := range len(obfuscationKey) {
		k := obfuscationKey[i]

		for j := range out {
			out[j] ^= k
		}
	}

	return out
}
