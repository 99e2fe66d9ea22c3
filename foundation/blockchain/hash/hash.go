// Package hash provides the content addressing primitive used to identify
// blocks and transactions.
package hash

import (
	"bytes"
	"crypto/sha256"
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rlp"
)

// Length is the number of bytes in a digest.
const Length = 32

// Digest represents a 256 bit content address. Digests are ordered as big
// endian unsigned integers which is how proof of work targets are compared.
type Digest [Length]byte

// Zero represents a digest of zeros.
var Zero Digest

// Of returns the SHA-256 hash of the RLP encoding of the value. If the value
// can't be encoded the zero digest is returned.
func Of(value any) Digest {
	data, err := rlp.EncodeToBytes(value)
	if err != nil {
		return Zero
	}

	return sha256.Sum256(data)
}

// FromHex converts a 0x prefixed hex string into a digest.
func FromHex(s string) (Digest, error) {
	b, err := hexutil.Decode(s)
	if err != nil {
		return Zero, fmt.Errorf("decoding digest %q: %w", s, err)
	}

	if len(b) != Length {
		return Zero, fmt.Errorf("invalid digest length %d, exp %d", len(b), Length)
	}

	var d Digest
	copy(d[:], b)

	return d, nil
}

// Cmp compares two digests numerically. The result is -1 when d < other,
// 0 when they are equal and +1 when d > other.
func (d Digest) Cmp(other Digest) int {
	return bytes.Compare(d[:], other[:])
}

// IsZero reports if the digest is all zeros.
func (d Digest) IsZero() bool {
	return d == Zero
}

// Hex returns the 0x prefixed hex encoding of the digest.
func (d Digest) Hex() string {
	return hexutil.Encode(d[:])
}

// String implements the fmt.Stringer interface.
func (d Digest) String() string {
	return d.Hex()
}

// Short returns an abbreviated form of the digest for events.
func (d Digest) Short() string {
	return d.Hex()[:10]
}

// MarshalText implements the encoding.TextMarshaler interface.
func (d Digest) MarshalText() ([]byte, error) {
	return []byte(d.Hex()), nil
}

// UnmarshalText implements the encoding.TextUnmarshaler interface.
func (d *Digest) UnmarshalText(text []byte) error {
	v, err := FromHex(string(text))
	if err != nil {
		return err
	}

	*d = v
	return nil
}
