package auth

import (
	"encoding/base64"
	"encoding/hex"
	"fmt"

	"github.com/mr-tron/base58"
)

type byteDecoder func(string) ([]byte, error)

func decodeHex(s string) ([]byte, error) {
	return hex.DecodeString(trimHexPrefix(s))
}

func decodeBase64(s string) ([]byte, error) {
	if b, err := base64.StdEncoding.DecodeString(s); err == nil {
		return b, nil
	}
	return base64.RawURLEncoding.DecodeString(s)
}

func decodeBase58(s string) ([]byte, error) {
	return base58.Decode(s)
}

// decodeFixed returns the first decoding of s that yields exactly size bytes.
func decodeFixed(s string, size int, decoders ...byteDecoder) ([]byte, error) {
	for _, decode := range decoders {
		b, err := decode(s)
		if err == nil && len(b) == size {
			return b, nil
		}
	}
	return nil, fmt.Errorf("expected %d bytes in a supported encoding", size)
}
