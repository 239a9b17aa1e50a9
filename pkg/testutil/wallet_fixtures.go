package testutil

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"encoding/hex"
	"testing"

	"github.com/ethereum/go-ethereum/accounts"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/mr-tron/base58"

	"github.com/icedoutskay/grainlify/pkg/auth"
)

// Well-known development keys. Never fund them.
const (
	EVMTestKeyHex = "4c0883a69102937d6231471b5dbb6204fe51296170827922b7a56c91b8b56d09"
	EVMTestKey2   = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
)

// Wallet signs login messages the way a browser extension would.
type Wallet interface {
	Type() auth.WalletType
	Address() string
	// PublicKey is empty for schemes that recover the signer.
	PublicKey() string
	Sign(message string) string
}

// EVMWallet signs with go-ethereum's personal_sign implementation.
type EVMWallet struct {
	key     *ecdsa.PrivateKey
	address string
}

// NewEVMWallet loads a secp256k1 key from hex.
func NewEVMWallet(t testing.TB, keyHex string) *EVMWallet {
	t.Helper()
	key, err := ethcrypto.HexToECDSA(keyHex)
	if err != nil {
		t.Fatalf("load evm key: %v", err)
	}
	return &EVMWallet{key: key, address: ethcrypto.PubkeyToAddress(key.PublicKey).Hex()}
}

func (w *EVMWallet) Type() auth.WalletType { return auth.WalletEVM }
func (w *EVMWallet) Address() string       { return w.address }
func (w *EVMWallet) PublicKey() string     { return "" }

// Sign returns 0x-hex r||s||v with v in {27,28}.
func (w *EVMWallet) Sign(message string) string {
	sig, err := ethcrypto.Sign(accounts.TextHash([]byte(message)), w.key)
	if err != nil {
		panic(err)
	}
	sig[64] += 27
	return "0x" + hex.EncodeToString(sig)
}

// SolanaWallet signs raw message bytes with ed25519.
type SolanaWallet struct {
	key ed25519.PrivateKey
}

// NewSolanaWallet derives a key from a 32 byte seed.
func NewSolanaWallet(seed byte) *SolanaWallet {
	return &SolanaWallet{key: ed25519.NewKeyFromSeed(seedBytes(seed))}
}

func (w *SolanaWallet) Type() auth.WalletType { return auth.WalletSolana }
func (w *SolanaWallet) PublicKey() string     { return "" }
func (w *SolanaWallet) Address() string {
	return base58.Encode(w.key.Public().(ed25519.PublicKey))
}
func (w *SolanaWallet) Sign(message string) string {
	return base58.Encode(ed25519.Sign(w.key, []byte(message)))
}

// AptosWallet signs raw message bytes and must present its public key.
type AptosWallet struct {
	key ed25519.PrivateKey
}

// NewAptosWallet derives a key from a 32 byte seed.
func NewAptosWallet(seed byte) *AptosWallet {
	return &AptosWallet{key: ed25519.NewKeyFromSeed(seedBytes(seed))}
}

func (w *AptosWallet) Type() auth.WalletType { return auth.WalletAptos }
func (w *AptosWallet) Address() string {
	return auth.AptosAddressFromPublicKey(w.key.Public().(ed25519.PublicKey))
}
func (w *AptosWallet) PublicKey() string {
	return "0x" + hex.EncodeToString(w.key.Public().(ed25519.PublicKey))
}
func (w *AptosWallet) Sign(message string) string {
	return "0x" + hex.EncodeToString(ed25519.Sign(w.key, []byte(message)))
}

func seedBytes(b byte) []byte {
	seed := make([]byte, ed25519.SeedSize)
	for i := range seed {
		seed[i] = b + byte(i)
	}
	return seed
}
