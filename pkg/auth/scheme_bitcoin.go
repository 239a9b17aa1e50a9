package auth

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

const bitcoinMessageMagic = "Bitcoin Signed Message:\n"

// BitcoinScheme verifies BIP-137 signed messages.
//
// The header byte selects the addresses the recovered key may be rendered as:
// 27-30 uncompressed P2PKH, 31-34 compressed P2PKH or P2WPKH, 39-42 P2WPKH.
// Electrum and Sparrow sign native segwit messages with 31-34.
// P2SH-wrapped segwit (35-38) is rejected.
type BitcoinScheme struct{}

func (BitcoinScheme) Type() WalletType { return WalletBitcoin }

// RecoverAddress returns the primary address for the signature header.
func (b BitcoinScheme) RecoverAddress(message, signature, _ string) (string, error) {
	candidates, err := b.candidates(message, signature)
	if err != nil {
		return "", err
	}
	return candidates[0], nil
}

// VerifyAddress accepts the signature when address is any rendering the
// header allows for the recovered key.
func (b BitcoinScheme) VerifyAddress(address, message, signature, _ string) error {
	candidates, err := b.candidates(message, signature)
	if err != nil {
		return err
	}
	for _, c := range candidates {
		if c == address {
			return nil
		}
	}
	return errSignerMismatch
}

func (BitcoinScheme) candidates(message, signature string) ([]string, error) {
	sig, err := decodeFixed(signature, 65, decodeBase64, decodeHex)
	if err != nil {
		return nil, err
	}

	header := sig[0]
	if header < 27 || header > 42 {
		return nil, fmt.Errorf("invalid signature header: %d", header)
	}
	if header >= 35 && header <= 38 {
		return nil, errors.New("p2sh-p2wpkh signatures are not supported")
	}

	recID := (header - 27) & 3
	compressed := header >= 31
	compact := make([]byte, 65)
	copy(compact, sig)
	compact[0] = 27 + recID
	if compressed {
		compact[0] += 4
	}

	hash, err := bitcoinMessageHash(message)
	if err != nil {
		return nil, err
	}
	pubKey, _, err := ecdsa.RecoverCompact(compact, hash)
	if err != nil {
		return nil, fmt.Errorf("failed to recover public key: %w", err)
	}

	if !compressed {
		addr, err := btcutil.NewAddressPubKeyHash(btcutil.Hash160(pubKey.SerializeUncompressed()), bitcoinParams)
		if err != nil {
			return nil, err
		}
		return []string{addr.EncodeAddress()}, nil
	}

	keyHash := btcutil.Hash160(pubKey.SerializeCompressed())
	segwit, err := btcutil.NewAddressWitnessPubKeyHash(keyHash, bitcoinParams)
	if err != nil {
		return nil, err
	}
	if header >= 39 {
		return []string{segwit.EncodeAddress()}, nil
	}
	legacy, err := btcutil.NewAddressPubKeyHash(keyHash, bitcoinParams)
	if err != nil {
		return nil, err
	}
	return []string{legacy.EncodeAddress(), segwit.EncodeAddress()}, nil
}

// bitcoinMessageHash is double-SHA256 over varstr(magic) || varstr(message).
func bitcoinMessageHash(message string) ([]byte, error) {
	var buf bytes.Buffer
	if err := wire.WriteVarString(&buf, 0, bitcoinMessageMagic); err != nil {
		return nil, err
	}
	if err := wire.WriteVarString(&buf, 0, message); err != nil {
		return nil, err
	}
	return chainhash.DoubleHashB(buf.Bytes()), nil
}
