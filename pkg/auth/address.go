package auth

import (
	"encoding/base32"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/mr-tron/base58"
)

// bitcoinParams is the network addresses are validated against.
var bitcoinParams = &chaincfg.MainNetParams

func normalizeSolanaAddress(address string) (string, error) {
	raw, err := base58.Decode(address)
	if err != nil {
		return "", fmt.Errorf("invalid base58: %w", err)
	}
	if len(raw) != 32 {
		return "", fmt.Errorf("solana address must decode to 32 bytes, got %d", len(raw))
	}
	return base58.Encode(raw), nil
}

// ----------------------------------------------------------------------------
// Stellar StrKey
// ----------------------------------------------------------------------------

const (
	strkeyAccountVersion byte = 6 << 3 // 'G'
	strkeyAccountLen          = 56
)

var strkeyEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

func normalizeStellarAddress(address string) (string, error) {
	key, err := decodeStellarAccountID(address)
	if err != nil {
		return "", err
	}
	return encodeStellarAccountID(key), nil
}

// decodeStellarAccountID returns the ed25519 public key carried by a G... account ID.
func decodeStellarAccountID(address string) ([]byte, error) {
	address = strings.ToUpper(address)
	if len(address) != strkeyAccountLen || address[0] != 'G' {
		return nil, errors.New("stellar account id must be 56 characters starting with G")
	}
	raw, err := strkeyEncoding.DecodeString(address)
	if err != nil {
		return nil, fmt.Errorf("invalid base32: %w", err)
	}
	if len(raw) != 35 || raw[0] != strkeyAccountVersion {
		return nil, errors.New("unexpected strkey version byte")
	}
	body, sum := raw[:33], raw[33:]
	if binary.LittleEndian.Uint16(sum) != crc16XModem(body) {
		return nil, errors.New("strkey checksum mismatch")
	}
	return body[1:], nil
}

func encodeStellarAccountID(key []byte) string {
	buf := make([]byte, 0, 35)
	buf = append(buf, strkeyAccountVersion)
	buf = append(buf, key...)
	buf = binary.LittleEndian.AppendUint16(buf, crc16XModem(buf))
	return strkeyEncoding.EncodeToString(buf)
}

func crc16XModem(data []byte) uint16 {
	var crc uint16
	for _, b := range data {
		crc ^= uint16(b) << 8
		for i := 0; i < 8; i++ {
			if crc&0x8000 != 0 {
				crc = crc<<1 ^ 0x1021
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}

// ----------------------------------------------------------------------------
// Bitcoin
// ----------------------------------------------------------------------------

// normalizeBitcoinAddress accepts mainnet P2PKH and P2WPKH addresses.
func normalizeBitcoinAddress(address string) (string, error) {
	decoded, err := btcutil.DecodeAddress(address, bitcoinParams)
	if err != nil {
		return "", err
	}
	if !decoded.IsForNet(bitcoinParams) {
		return "", errors.New("address is not for bitcoin mainnet")
	}
	switch decoded.(type) {
	case *btcutil.AddressPubKeyHash, *btcutil.AddressWitnessPubKeyHash:
		return decoded.EncodeAddress(), nil
	default:
		return "", errors.New("only P2PKH and P2WPKH addresses are supported")
	}
}

// ----------------------------------------------------------------------------
// Aptos
// ----------------------------------------------------------------------------

func normalizeAptosAddress(address string) (string, error) {
	body := trimHexPrefix(address)
	if len(body) == 0 || len(body) > 64 {
		return "", errors.New("aptos address must be 1 to 64 hex characters")
	}
	body = strings.Repeat("0", 64-len(body)) + strings.ToLower(body)
	if _, err := hex.DecodeString(body); err != nil {
		return "", fmt.Errorf("invalid hex in address: %w", err)
	}
	return "0x" + body, nil
}
