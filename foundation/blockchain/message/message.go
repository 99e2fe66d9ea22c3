// Package message defines the messages nodes exchange and their wire format.
package message

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/ardanlabs/powchain/foundation/blockchain/database"
	"github.com/ardanlabs/powchain/foundation/blockchain/hash"
	"github.com/ethereum/go-ethereum/rlp"
)

// Kind identifies the type of a message.
type Kind uint8

// Set of message kinds nodes exchange.
const (
	KindPing Kind = iota + 1
	KindPong
	KindNewBlockHashes
	KindGetBlocks
	KindBlocks
	KindNewTransactionHashes
	KindGetTransactions
	KindTransactions
)

var kindNames = map[Kind]string{
	KindPing:                 "Ping",
	KindPong:                 "Pong",
	KindNewBlockHashes:       "NewBlockHashes",
	KindGetBlocks:            "GetBlocks",
	KindBlocks:               "Blocks",
	KindNewTransactionHashes: "NewTransactionHashes",
	KindGetTransactions:      "GetTransactions",
	KindTransactions:         "Transactions",
}

// String implements the fmt.Stringer interface for logging.
func (k Kind) String() string {
	if name, exists := kindNames[k]; exists {
		return name
	}

	return fmt.Sprintf("Kind(%d)", k)
}

// ErrUnknownKind is returned when a message carries a kind this node does not
// understand.
var ErrUnknownKind = errors.New("unknown message kind")

// =============================================================================

// Message is a single unit of the network protocol. The payload is the RLP
// encoding of the value the kind carries.
type Message struct {
	Kind    Kind
	Payload rlp.RawValue
}

// New constructs a message of the specified kind carrying the value.
func New(kind Kind, value any) (Message, error) {
	payload, err := rlp.EncodeToBytes(value)
	if err != nil {
		return Message{}, fmt.Errorf("encode %s payload: %w", kind, err)
	}

	return Message{Kind: kind, Payload: payload}, nil
}

// Decode parses a message received off the wire.
func Decode(data []byte) (Message, error) {
	var msg Message
	if err := rlp.DecodeBytes(data, &msg); err != nil {
		return Message{}, fmt.Errorf("decode message: %w", err)
	}

	if _, exists := kindNames[msg.Kind]; !exists {
		return Message{}, fmt.Errorf("%w: %d", ErrUnknownKind, msg.Kind)
	}

	return msg, nil
}

// Encode returns the wire form of the message.
func (m Message) Encode() ([]byte, error) {
	return rlp.EncodeToBytes(m)
}

// String implements the fmt.Stringer interface for logging.
func (m Message) String() string {
	return fmt.Sprintf("%s[%d bytes]", m.Kind, len(m.Payload))
}

// =============================================================================

// Ping constructs a Ping message.
func Ping(nonce uint32) Message {
	return must(New(KindPing, nonce))
}

// Pong constructs a Pong message. The nonce of the ping is echoed back as
// its decimal string.
func Pong(nonce uint32) Message {
	return must(New(KindPong, strconv.FormatUint(uint64(nonce), 10)))
}

// NewBlockHashes constructs a message announcing blocks.
func NewBlockHashes(hashes []hash.Digest) Message {
	return must(New(KindNewBlockHashes, hashes))
}

// GetBlocks constructs a message requesting blocks.
func GetBlocks(hashes []hash.Digest) Message {
	return must(New(KindGetBlocks, hashes))
}

// Blocks constructs a message carrying full blocks.
func Blocks(blocks []database.Block) Message {
	return must(New(KindBlocks, blocks))
}

// NewTransactionHashes constructs a message announcing transactions.
func NewTransactionHashes(hashes []hash.Digest) Message {
	return must(New(KindNewTransactionHashes, hashes))
}

// GetTransactions constructs a message requesting transactions.
func GetTransactions(hashes []hash.Digest) Message {
	return must(New(KindGetTransactions, hashes))
}

// Transactions constructs a message carrying signed transactions.
func Transactions(trans []database.SignedTx) Message {
	return must(New(KindTransactions, trans))
}

// must panics if a message of a known type could not be encoded. Every type
// the constructors accept is RLP encodable, so an error here is a bug.
func must(msg Message, err error) Message {
	if err != nil {
		panic(err)
	}

	return msg
}

// =============================================================================

// Nonce returns the nonce of a Ping or Pong message.
func (m Message) Nonce() (uint32, error) {
	if m.Kind == KindPong {
		var echo string
		if err := m.decode(&echo, KindPong); err != nil {
			return 0, err
		}

		nonce, err := strconv.ParseUint(echo, 10, 32)
		if err != nil {
			return 0, fmt.Errorf("decode %s payload: %w", m.Kind, err)
		}

		return uint32(nonce), nil
	}

	var nonce uint32
	if err := m.decode(&nonce, KindPing); err != nil {
		return 0, err
	}

	return nonce, nil
}

// Hashes returns the hashes of a hash carrying message.
func (m Message) Hashes() ([]hash.Digest, error) {
	var hashes []hash.Digest
	if err := m.decode(&hashes, KindNewBlockHashes, KindGetBlocks, KindNewTransactionHashes, KindGetTransactions); err != nil {
		return nil, err
	}

	return hashes, nil
}

// Blocks returns the blocks of a Blocks message.
func (m Message) Blocks() ([]database.Block, error) {
	var blocks []database.Block
	if err := m.decode(&blocks, KindBlocks); err != nil {
		return nil, err
	}

	return blocks, nil
}

// Transactions returns the transactions of a Transactions message.
func (m Message) Transactions() ([]database.SignedTx, error) {
	var trans []database.SignedTx
	if err := m.decode(&trans, KindTransactions); err != nil {
		return nil, err
	}

	return trans, nil
}

func (m Message) decode(value any, kinds ...Kind) error {
	var match bool
	for _, kind := range kinds {
		if m.Kind == kind {
			match = true
			break
		}
	}

	if !match {
		return fmt.Errorf("%s does not carry %T", m.Kind, value)
	}

	if err := rlp.DecodeBytes(m.Payload, value); err != nil {
		return fmt.Errorf("decode %s payload: %w", m.Kind, err)
	}

	return nil
}
