package auth

import (
	"crypto/ed25519"
	"crypto/sha256"
	"errors"
	"fmt"

	"github.com/mr-tron/base58"
	"golang.org/x/crypto/sha3"
)

// SolanaScheme verifies ed25519 signatures over the raw message bytes.
type SolanaScheme struct{}

func (SolanaScheme) Type() WalletType { return WalletSolana }

func (SolanaScheme) PublicKeyForAddress(address string) string { return address }

// RecoverAddress accepts base58, hex or base64 signatures. publicKey may be
// base58 or hex.
func (SolanaScheme) RecoverAddress(message, signature, publicKey string) (string, error) {
	pub, err := decodeFixed(publicKey, ed25519.PublicKeySize, decodeBase58, decodeHex)
	if err != nil {
		return "", fmt.Errorf("public key: %w", err)
	}
	sig, err := decodeFixed(signature, ed25519.SignatureSize, decodeBase58, decodeHex, decodeBase64)
	if err != nil {
		return "", fmt.Errorf("signature: %w", err)
	}
	if !ed25519.Verify(pub, []byte(message), sig) {
		return "", errors.New("ed25519 verification failed")
	}
	return base58.Encode(pub), nil
}

const stellarMessagePrefix = "Stellar Signed Message:\n"

// StellarScheme verifies SEP-53 signed messages:
// ed25519 over SHA-256("Stellar Signed Message:\n" || message).
type StellarScheme struct{}

func (StellarScheme) Type() WalletType { return WalletStellar }

func (StellarScheme) PublicKeyForAddress(address string) string { return address }

func (StellarScheme) RecoverAddress(message, signature, publicKey string) (string, error) {
	pub, err := decodeStellarAccountID(publicKey)
	if err != nil {
		if pub, err = decodeFixed(publicKey, ed25519.PublicKeySize, decodeHex); err != nil {
			return "", fmt.Errorf("public key: %w", err)
		}
	}
	sig, err := decodeFixed(signature, ed25519.SignatureSize, decodeBase64, decodeHex)
	if err != nil {
		return "", fmt.Errorf("signature: %w", err)
	}
	digest := sha256.Sum256([]byte(stellarMessagePrefix + message))
	if !ed25519.Verify(pub, digest[:], sig) {
		return "", errors.New("ed25519 verification failed")
	}
	return encodeStellarAccountID(pub), nil
}

// aptosEd25519Scheme is the single-signer authentication key scheme id.
const aptosEd25519Scheme byte = 0x00

// AptosScheme verifies ed25519 signatures from Aptos wallets. The address is
// SHA3-256(public_key || 0x00), so the public key must accompany the signature.
type AptosScheme struct{}

func (AptosScheme) Type() WalletType { return WalletAptos }

func (AptosScheme) RequiresPublicKey() bool { return true }

func (AptosScheme) RecoverAddress(message, signature, publicKey string) (string, error) {
	if publicKey == "" {
		return "", ErrPublicKeyRequired
	}
	pub, err := decodeFixed(publicKey, ed25519.PublicKeySize, decodeHex)
	if err != nil {
		return "", fmt.Errorf("public key: %w", err)
	}
	sig, err := decodeFixed(signature, ed25519.SignatureSize, decodeHex, decodeBase64)
	if err != nil {
		return "", fmt.Errorf("signature: %w", err)
	}
	if !ed25519.Verify(pub, []byte(message), sig) {
		return "", errors.New("ed25519 verification failed")
	}
	return AptosAddressFromPublicKey(pub), nil
}

// AptosAddressFromPublicKey derives the canonical account address for an ed25519 key.
func AptosAddressFromPublicKey(pub []byte) string {
	h := sha3.New256()
	h.Write(pub)
	h.Write([]byte{aptosEd25519Scheme})
	return fmt.Sprintf("0x%x", h.Sum(nil))
}
