package auth

import (
	"errors"
	"fmt"
	"strings"
	"sync"
)

// Scheme verifies signatures for one wallet type.
type Scheme interface {
	Type() WalletType
	// RecoverAddress returns the canonical address of the key that signed message.
	// publicKey is only consulted by schemes that cannot recover a signer from the
	// signature alone.
	RecoverAddress(message, signature, publicKey string) (string, error)
}

// AddressKeyed is implemented by schemes whose address encodes the public key.
type AddressKeyed interface {
	PublicKeyForAddress(address string) string
}

// AddressVerifier is implemented by schemes where one signature can match more
// than one address rendering of the signer. It replaces recover-and-compare.
type AddressVerifier interface {
	VerifyAddress(address, message, signature, publicKey string) error
}

var errSignerMismatch = errors.New("signer does not match address")

// PublicKeyRequirer is implemented by schemes that need a client supplied public key.
type PublicKeyRequirer interface {
	RequiresPublicKey() bool
}

// Registry maps wallet types to their signature schemes.
type Registry struct {
	mu      sync.RWMutex
	schemes map[WalletType]Scheme
}

// NewRegistry creates a registry holding the given schemes.
func NewRegistry(schemes ...Scheme) *Registry {
	r := &Registry{schemes: make(map[WalletType]Scheme, len(schemes))}
	for _, s := range schemes {
		r.Register(s)
	}
	return r
}

// DefaultRegistry returns a registry with every built-in scheme installed.
func DefaultRegistry() *Registry {
	return NewRegistry(
		EVMScheme{},
		BitcoinScheme{},
		SolanaScheme{},
		StellarScheme{},
		AptosScheme{},
	)
}

// Register installs s, replacing any scheme already registered for its type.
func (r *Registry) Register(s Scheme) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.schemes[s.Type()] = s
}

// Scheme returns the scheme registered for wt.
func (r *Registry) Scheme(wt WalletType) (Scheme, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.schemes[wt]
	return s, ok
}

// RequiresPublicKey reports whether verifying wt needs a public key from the client.
func (r *Registry) RequiresPublicKey(wt WalletType) bool {
	s, ok := r.Scheme(wt)
	if !ok {
		return false
	}
	req, ok := s.(PublicKeyRequirer)
	return ok && req.RequiresPublicKey()
}

// VerifySignature checks that signature over message was produced by the key
// controlling address. Any mismatch or malformed input wraps ErrInvalidSignature.
func (r *Registry) VerifySignature(wt WalletType, address, message, signature, publicKey string) error {
	scheme, ok := r.Scheme(wt)
	if !ok {
		return fmt.Errorf("%w: %s", ErrSchemeNotInstalled, wt)
	}
	claimed, err := NormalizeAddress(wt, address)
	if err != nil {
		return err
	}
	signature = strings.TrimSpace(signature)
	if signature == "" {
		return ErrMissingCredential
	}

	publicKey = strings.TrimSpace(publicKey)
	if publicKey == "" {
		if keyed, ok := scheme.(AddressKeyed); ok {
			publicKey = keyed.PublicKeyForAddress(claimed)
		} else if r.RequiresPublicKey(wt) {
			return fmt.Errorf("%w: %w", ErrInvalidSignature, ErrPublicKeyRequired)
		}
	}

	if av, ok := scheme.(AddressVerifier); ok {
		if err := av.VerifyAddress(claimed, message, signature, publicKey); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
		}
		return nil
	}

	recovered, err := scheme.RecoverAddress(message, signature, publicKey)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	if recovered != claimed {
		return fmt.Errorf("%w: %v", ErrInvalidSignature, errSignerMismatch)
	}
	return nil
}

// VerifyLogin tries every login message rendering for nonce and returns the
// one the signature matches.
func (r *Registry) VerifyLogin(wt WalletType, address, nonce, signature, publicKey string) (Rendering, error) {
	var lastErr error
	for _, rendering := range LoginMessages {
		err := r.VerifySignature(wt, address, rendering.Render(nonce), signature, publicKey)
		if err == nil {
			return rendering, nil
		}
		if !errors.Is(err, ErrInvalidSignature) {
			return Rendering{}, err
		}
		lastErr = err
	}
	return Rendering{}, lastErr
}

var defaultRegistry = DefaultRegistry()

// VerifySignature verifies against the built-in schemes.
func VerifySignature(wt WalletType, address, message, signature, publicKey string) error {
	return defaultRegistry.VerifySignature(wt, address, message, signature, publicKey)
}

// VerifyLogin verifies a login signature against the built-in schemes.
func VerifyLogin(wt WalletType, address, nonce, signature, publicKey string) (Rendering, error) {
	return defaultRegistry.VerifyLogin(wt, address, nonce, signature, publicKey)
}
