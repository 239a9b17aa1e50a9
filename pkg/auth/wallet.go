package auth

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/sha3"
)

// ============================================================================
// WALLET TYPES
// ============================================================================

// WalletType identifies a chain family: its address format and signature scheme.
type WalletType string

const (
	WalletEVM     WalletType = "evm"     // Ethereum and EVM L2s, EIP-191 personal_sign
	WalletSolana  WalletType = "solana"  // ed25519, base58 addresses
	WalletStellar WalletType = "stellar" // ed25519, StrKey G... addresses, SEP-53 messages
	WalletBitcoin WalletType = "bitcoin" // secp256k1 BIP-137 signed messages
	WalletAptos   WalletType = "aptos"   // ed25519, address derived from the public key
)

// ValidWalletTypes lists all supported wallet types
var ValidWalletTypes = []WalletType{
	WalletEVM,
	WalletSolana,
	WalletStellar,
	WalletBitcoin,
	WalletAptos,
}

// walletAliases maps lower-cased client identifiers to the canonical type.
var walletAliases = map[string]WalletType{
	"evm":       WalletEVM,
	"ethereum":  WalletEVM,
	"eth":       WalletEVM,
	"metamask":  WalletEVM,
	"solana":    WalletSolana,
	"sol":       WalletSolana,
	"phantom":   WalletSolana,
	"stellar":   WalletStellar,
	"xlm":       WalletStellar,
	"freighter": WalletStellar,
	"bitcoin":   WalletBitcoin,
	"btc":       WalletBitcoin,
	"aptos":     WalletAptos,
	"apt":       WalletAptos,
	"petra":     WalletAptos,
}

// NormalizeWalletType resolves a client supplied wallet identifier to its canonical type.
func NormalizeWalletType(raw string) (WalletType, error) {
	wt, ok := walletAliases[strings.ToLower(strings.TrimSpace(raw))]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidWalletType, raw)
	}
	return wt, nil
}

// IsValidWalletType reports whether wt is one of the canonical types (aliases excluded).
func IsValidWalletType(wt WalletType) bool {
	for _, valid := range ValidWalletTypes {
		if wt == valid {
			return true
		}
	}
	return false
}

// ============================================================================
// ADDRESS NORMALIZATION
// ============================================================================

// NormalizeAddress returns the canonical form of address for the wallet type.
// Normalizing an already canonical address returns it unchanged.
func NormalizeAddress(wt WalletType, address string) (string, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return "", fmt.Errorf("%w: empty address", ErrInvalidAddress)
	}

	var (
		canonical string
		err       error
	)
	switch wt {
	case WalletEVM:
		canonical, err = NormalizeEthAddress(address)
	case WalletSolana:
		canonical, err = normalizeSolanaAddress(address)
	case WalletStellar:
		canonical, err = normalizeStellarAddress(address)
	case WalletBitcoin:
		canonical, err = normalizeBitcoinAddress(address)
	case WalletAptos:
		canonical, err = normalizeAptosAddress(address)
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidWalletType, wt)
	}
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	return canonical, nil
}

// NormalizeEthAddress converts an Ethereum address to EIP-55 checksum format.
// All-lower and all-upper inputs are accepted; mixed case must carry a valid checksum.
func NormalizeEthAddress(address string) (string, error) {
	body := trimHexPrefix(address)
	if len(body) != 40 {
		return "", errors.New("ethereum address must be 40 hex characters")
	}
	if _, err := hex.DecodeString(body); err != nil {
		return "", fmt.Errorf("invalid hex in address: %w", err)
	}

	checksummed := toChecksumAddress(body)
	if body != strings.ToLower(body) && body != strings.ToUpper(body) && "0x"+body != checksummed {
		return "", errors.New("ethereum address has an invalid EIP-55 checksum")
	}
	return checksummed, nil
}

// toChecksumAddress applies EIP-55 checksum to an address
func toChecksumAddress(addr string) string {
	addr = strings.ToLower(addr)
	hash := keccak256([]byte(addr))

	result := make([]byte, 42)
	result[0] = '0'
	result[1] = 'x'

	for i := 0; i < 40; i++ {
		c := addr[i]
		hashNibble := hash[i/2]
		if i%2 == 0 {
			hashNibble >>= 4
		}
		hashNibble &= 0x0f

		if hashNibble >= 8 && c >= 'a' && c <= 'f' {
			result[i+2] = c - 32 // uppercase
		} else {
			result[i+2] = c
		}
	}
	return string(result)
}

// keccak256 computes Keccak-256 hash
func keccak256(data []byte) []byte {
	h := sha3.NewLegacyKeccak256()
	h.Write(data)
	return h.Sum(nil)
}

func trimHexPrefix(s string) string {
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		return s[2:]
	}
	return s
}
