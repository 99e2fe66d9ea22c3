package database

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math"

	"github.com/ardanlabs/powchain/foundation/blockchain/hash"
	"github.com/ardanlabs/powchain/foundation/blockchain/signature"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rlp"
)

// CoinbaseIndex is the output index a coinbase input uses. No real transaction
// can have this many outputs.
const CoinbaseIndex = math.MaxUint32

// Amount represents a quantity of coins.
type Amount uint64

// Address identifies the owner of an output. It's derived from the owner's
// public key.
type Address = common.Address

// ToAddress converts a hex-encoded string to an address and validates the
// hex-encoded string is formatted correctly.
func ToAddress(hex string) (Address, error) {
	if !common.IsHexAddress(hex) {
		return Address{}, errors.New("invalid address format")
	}

	return common.HexToAddress(hex), nil
}

// =============================================================================

// TxInput names one output of a prior transaction.
type TxInput struct {
	OutputIndex uint32      `json:"output_index"` // Bitcoin: Position of the output in the source transaction.
	SourceTx    hash.Digest `json:"source_tx"`    // Bitcoin: Hash of the raw source transaction.
}

// String implements the fmt.Stringer interface for logging.
func (in TxInput) String() string {
	return fmt.Sprintf("%s:%d", in.SourceTx.Short(), in.OutputIndex)
}

// TxOutput assigns a value to a recipient.
type TxOutput struct {
	Recipient Address `json:"recipient"`
	Value     Amount  `json:"value"`
}

// Tx consumes prior outputs and produces new outputs.
type Tx struct {
	Inputs  []TxInput  `json:"inputs"`
	Outputs []TxOutput `json:"outputs"`
}

// NewCoinbaseTx constructs the transaction that pays the miner of the block
// built on top of the specified parent.
func NewCoinbaseTx(parent hash.Digest, recipient Address, value Amount) Tx {
	return Tx{
		Inputs:  []TxInput{{OutputIndex: CoinbaseIndex, SourceTx: parent}},
		Outputs: []TxOutput{{Recipient: recipient, Value: value}},
	}
}

// Bytes returns the serialized form of the transaction that is signed.
func (tx Tx) Bytes() []byte {
	data, err := rlp.EncodeToBytes(tx)
	if err != nil {
		return nil
	}

	return data
}

// Hash returns the hash of the raw transaction. Outputs produced by this
// transaction are keyed by this hash in the UTXO state.
func (tx Tx) Hash() hash.Digest {
	return hash.Of(tx)
}

// IsCoinbase reports if the transaction is the coinbase of a block built on
// top of the specified parent.
func (tx Tx) IsCoinbase(parent hash.Digest) bool {
	if len(tx.Inputs) != 1 {
		return false
	}

	in := tx.Inputs[0]
	return in.OutputIndex == CoinbaseIndex && in.SourceTx == parent
}

// ClaimsCoinbase reports if any input uses the coinbase index. These
// transactions are only acceptable as the first transaction of a block.
func (tx Tx) ClaimsCoinbase() bool {
	for _, in := range tx.Inputs {
		if in.OutputIndex == CoinbaseIndex {
			return true
		}
	}

	return false
}

// TotalOutput sums the value of all outputs.
func (tx Tx) TotalOutput() (Amount, error) {
	var total Amount
	for _, out := range tx.Outputs {
		if total > math.MaxUint64-out.Value {
			return 0, ErrOverflow
		}
		total += out.Value
	}

	return total, nil
}

// Sign uses the specified private key to sign the transaction.
func (tx Tx) Sign(privateKey *ecdsa.PrivateKey) (SignedTx, error) {
	sig, err := signature.Sign(tx.Bytes(), privateKey)
	if err != nil {
		return SignedTx{}, err
	}

	signedTx := SignedTx{
		Raw:       tx,
		PublicKey: signature.PublicKeyBytes(privateKey),
		Signature: sig,
	}

	return signedTx, nil
}

// =============================================================================

// Verifier represents the behavior required to check a signature.
type Verifier interface {
	Verify(data []byte, publicKey []byte, sig []byte) bool
}

// VerifierFunc adapts a function to the Verifier interface.
type VerifierFunc func(data []byte, publicKey []byte, sig []byte) bool

// Verify implements the Verifier interface.
func (f VerifierFunc) Verify(data []byte, publicKey []byte, sig []byte) bool {
	return f(data, publicKey, sig)
}

// DefaultVerifier checks signatures without any caching.
var DefaultVerifier Verifier = VerifierFunc(signature.Verify)

// =============================================================================

// SignedTx binds a raw transaction to the public key that signed it. This is
// how clients like a wallet provide transactions for inclusion into the
// blockchain.
type SignedTx struct {
	Raw       Tx            `json:"raw"`
	PublicKey hexutil.Bytes `json:"public_key"`
	Signature hexutil.Bytes `json:"signature"`
}

// Hash returns the hash of the whole signed transaction. This is the
// identifier used by the mempool and the network protocol.
func (tx SignedTx) Hash() hash.Digest {
	return hash.Of(tx)
}

// Equals implements the merkle Hashable interface for providing an equality
// check between two signed transactions.
func (tx SignedTx) Equals(other SignedTx) bool {
	return tx.Hash() == other.Hash()
}

// VerifySignature checks the signature was produced over the raw transaction
// by the key that belongs to the public key.
func (tx SignedTx) VerifySignature(v Verifier) bool {
	return v.Verify(tx.Raw.Bytes(), tx.PublicKey, tx.Signature)
}

// From returns the address of the signer.
func (tx SignedTx) From() (Address, error) {
	return signature.Address(tx.PublicKey)
}

// String implements the fmt.Stringer interface for logging.
func (tx SignedTx) String() string {
	from, err := tx.From()
	if err != nil {
		return fmt.Sprintf("unknown:%s", tx.Hash().Short())
	}

	return fmt.Sprintf("%s:%s", from.Hex()[:10], tx.Hash().Short())
}
