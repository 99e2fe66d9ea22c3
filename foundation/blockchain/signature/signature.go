// Package signature provides helper functions for handling the blockchain
// signature needs.
package signature

import (
	"crypto/ecdsa"
	"errors"
	"fmt"

	"github.com/ardanlabs/powchain/foundation/blockchain/hash"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	lru "github.com/hashicorp/golang-lru/v2"
)

// stampPrefix is mixed into every signed hash so signatures produced by this
// node can't be replayed as signatures over other kinds of data.
const stampPrefix = "\x19Powchain Signed Message:\n32"

// =============================================================================

// Sign uses the specified private key to sign the data. The returned signature
// is the 65 byte [R|S|V] format.
func Sign(data []byte, privateKey *ecdsa.PrivateKey) ([]byte, error) {
	sig, err := crypto.Sign(stamp(data), privateKey)
	if err != nil {
		return nil, fmt.Errorf("signing: %w", err)
	}

	return sig, nil
}

// Verify checks the signature was produced over the data by the private key
// that belongs to the public key.
func Verify(data []byte, publicKey []byte, sig []byte) bool {
	if len(sig) != crypto.SignatureLength {
		return false
	}

	if _, err := crypto.UnmarshalPubkey(publicKey); err != nil {
		return false
	}

	rs := sig[:crypto.RecoveryIDOffset]
	return crypto.VerifySignature(publicKey, stamp(data), rs)
}

// PublicKeyBytes returns the uncompressed encoding of the public key that
// belongs to the private key.
func PublicKeyBytes(privateKey *ecdsa.PrivateKey) []byte {
	return crypto.FromECDSAPub(&privateKey.PublicKey)
}

// Address derives the account address from an encoded public key.
func Address(publicKey []byte) (common.Address, error) {
	pk, err := crypto.UnmarshalPubkey(publicKey)
	if err != nil {
		return common.Address{}, fmt.Errorf("invalid public key: %w", err)
	}

	return crypto.PubkeyToAddress(*pk), nil
}

// KeyAddress returns the account address for the private key.
func KeyAddress(privateKey *ecdsa.PrivateKey) common.Address {
	return crypto.PubkeyToAddress(privateKey.PublicKey)
}

// =============================================================================

// Verifier verifies signatures and remembers the outcome so the same
// transaction seen in the mempool and later in a block is only checked once.
type Verifier struct {
	cache *lru.Cache[hash.Digest, bool]
}

// NewVerifier constructs a verifier that remembers up to size outcomes.
func NewVerifier(size int) (*Verifier, error) {
	if size <= 0 {
		return nil, errors.New("verifier cache size must be positive")
	}

	cache, err := lru.New[hash.Digest, bool](size)
	if err != nil {
		return nil, err
	}

	return &Verifier{cache: cache}, nil
}

// Verify performs the same check as the package level Verify function.
func (v *Verifier) Verify(data []byte, publicKey []byte, sig []byte) bool {
	key := hash.Of([][]byte{data, publicKey, sig})
	if ok, exists := v.cache.Get(key); exists {
		return ok
	}

	ok := Verify(data, publicKey, sig)
	v.cache.Add(key, ok)

	return ok
}

// =============================================================================

// stamp returns a hash of 32 bytes that represents this data with
// the node stamp embedded into the final hash.
func stamp(data []byte) []byte {
	return crypto.Keccak256([]byte(stampPrefix), crypto.Keccak256(data))
}
