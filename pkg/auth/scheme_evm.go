package auth

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
)

// EVMScheme verifies EIP-191 personal_sign signatures.
type EVMScheme struct{}

func (EVMScheme) Type() WalletType { return WalletEVM }

// RecoverAddress recovers the checksummed signer address.
// Signature format: 65 bytes hex (r[32] || s[32] || v[1]) with v in {0,1,27,28}.
func (EVMScheme) RecoverAddress(message, signature, _ string) (string, error) {
	sigBytes, err := decodeHexSignature(signature)
	if err != nil {
		return "", err
	}
	if len(sigBytes) != 65 {
		return "", fmt.Errorf("signature must be 65 bytes, got %d", len(sigBytes))
	}

	// EIP-191 personal_sign: "\x19Ethereum Signed Message:\n" + len(message) + message
	prefixedMsg := fmt.Sprintf("\x19Ethereum Signed Message:\n%d%s", len(message), message)
	hash := keccak256([]byte(prefixedMsg))

	r := new(big.Int).SetBytes(sigBytes[:32])
	s := new(big.Int).SetBytes(sigBytes[32:64])
	v := sigBytes[64]

	// Normalize v value (27/28 -> 0/1)
	if v >= 27 {
		v -= 27
	}
	if v > 1 {
		return "", fmt.Errorf("invalid recovery id: %d", sigBytes[64])
	}

	pubKey, _, err := ecdsa.RecoverCompact(makeCompactSig(r, s, v), hash)
	if err != nil {
		return "", fmt.Errorf("failed to recover public key: %w", err)
	}
	return pubKeyToEthAddress(pubKey), nil
}

// makeCompactSig creates a compact signature format for btcec recovery
// Format: [recovery_flag(1)] [R(32)] [S(32)]
func makeCompactSig(r, s *big.Int, v byte) []byte {
	sig := make([]byte, 65)
	// btcec expects 27 + recovery_id + (compressed ? 4 : 0)
	sig[0] = 27 + v
	rBytes := r.Bytes()
	sBytes := s.Bytes()
	copy(sig[1+32-len(rBytes):33], rBytes)
	copy(sig[33+32-len(sBytes):65], sBytes)
	return sig
}

// pubKeyToEthAddress converts a secp256k1 public key to its checksummed Ethereum address
func pubKeyToEthAddress(pubKey *btcec.PublicKey) string {
	// Uncompressed pubkey without the 0x04 prefix
	pubBytes := pubKey.SerializeUncompressed()[1:]
	hash := keccak256(pubBytes)
	// Address is last 20 bytes of hash
	return toChecksumAddress(fmt.Sprintf("%x", hash[12:]))
}

// decodeHexSignature decodes a hex-encoded signature, with or without 0x prefix
func decodeHexSignature(sig string) ([]byte, error) {
	if sig == "" {
		return nil, errors.New("empty signature")
	}
	b, err := decodeHex(sig)
	if err != nil {
		return nil, fmt.Errorf("invalid hex signature: %w", err)
	}
	return b, nil
}
