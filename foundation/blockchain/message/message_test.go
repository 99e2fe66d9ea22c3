package message_test

import (
	"errors"
	"testing"

	"github.com/ardanlabs/powchain/foundation/blockchain/database"
	"github.com/ardanlabs/powchain/foundation/blockchain/genesis"
	"github.com/ardanlabs/powchain/foundation/blockchain/hash"
	"github.com/ardanlabs/powchain/foundation/blockchain/message"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

// =============================================================================

func Test_Blocks(t *testing.T) {
	t.Log("Given the need to send blocks over the wire.")
	{
		pk, err := crypto.GenerateKey()
		if err != nil {
			t.Fatalf("\t%s\tShould be able to generate a key: %s", failed, err)
		}

		gen := database.Genesis(genesis.Default())
		coinbase, err := database.NewCoinbaseTx(gen.Hash(), crypto.PubkeyToAddress(pk.PublicKey), 700).Sign(pk)
		if err != nil {
			t.Fatalf("\t%s\tShould be able to sign the coinbase: %s", failed, err)
		}

		blocks := []database.Block{
			gen,
			database.NewBlock(gen.Hash(), gen.Header.Difficulty, 1700000000000, []database.SignedTx{coinbase}),
		}

		data, err := message.Blocks(blocks).Encode()
		if err != nil {
			t.Fatalf("\t%s\tShould be able to encode the message: %s", failed, err)
		}
		t.Logf("\t%s\tShould be able to encode the message.", success)

		msg, err := message.Decode(data)
		if err != nil {
			t.Fatalf("\t%s\tShould be able to decode the message: %s", failed, err)
		}
		t.Logf("\t%s\tShould be able to decode the message.", success)

		if msg.Kind != message.KindBlocks {
			t.Fatalf("\t%s\tShould get back a Blocks message: got %s", failed, msg.Kind)
		}
		t.Logf("\t%s\tShould get back a Blocks message.", success)

		got, err := msg.Blocks()
		if err != nil {
			t.Fatalf("\t%s\tShould be able to decode the blocks: %s", failed, err)
		}

		if diff := cmp.Diff(blocks, got, cmpopts.EquateEmpty()); diff != "" {
			t.Fatalf("\t%s\tShould get back the same blocks, diff:\n%s", failed, diff)
		}
		t.Logf("\t%s\tShould get back the same blocks.", success)

		for i := range blocks {
			if got[i].Hash() != blocks[i].Hash() {
				t.Fatalf("\t%s\tShould keep the block hash across the wire: block %d", failed, i)
			}
		}
		t.Logf("\t%s\tShould keep the block hash across the wire.", success)

		if !got[1].Trans[0].VerifySignature(database.DefaultVerifier) {
			t.Fatalf("\t%s\tShould keep the transaction signature valid across the wire.", failed)
		}
		t.Logf("\t%s\tShould keep the transaction signature valid across the wire.", success)
	}
}

func Test_Kinds(t *testing.T) {
	hashes := []hash.Digest{hash.Of("a"), hash.Of("b")}

	type table struct {
		name string
		msg  message.Message
		kind message.Kind
	}

	tt := []table{
		{name: "ping", msg: message.Ping(42), kind: message.KindPing},
		{name: "pong", msg: message.Pong(42), kind: message.KindPong},
		{name: "new-block-hashes", msg: message.NewBlockHashes(hashes), kind: message.KindNewBlockHashes},
		{name: "get-blocks", msg: message.GetBlocks(hashes), kind: message.KindGetBlocks},
		{name: "new-tx-hashes", msg: message.NewTransactionHashes(hashes), kind: message.KindNewTransactionHashes},
		{name: "get-transactions", msg: message.GetTransactions(hashes), kind: message.KindGetTransactions},
	}

	t.Log("Given the need to carry every message kind.")
	{
		for testID, tst := range tt {
			f := func(t *testing.T) {
				t.Logf("\tTest %d:\tWhen handling a %s message.", testID, tst.kind)
				{
					data, err := tst.msg.Encode()
					if err != nil {
						t.Fatalf("\t%s\tTest %d:\tShould be able to encode: %s", failed, testID, err)
					}

					msg, err := message.Decode(data)
					if err != nil {
						t.Fatalf("\t%s\tTest %d:\tShould be able to decode: %s", failed, testID, err)
					}

					if msg.Kind != tst.kind {
						t.Fatalf("\t%s\tTest %d:\tShould keep the kind: got %s, exp %s", failed, testID, msg.Kind, tst.kind)
					}
					t.Logf("\t%s\tTest %d:\tShould keep the kind.", success, testID)

					switch msg.Kind {
					case message.KindPing, message.KindPong:
						nonce, err := msg.Nonce()
						if err != nil || nonce != 42 {
							t.Fatalf("\t%s\tTest %d:\tShould get back the nonce: got %d, %v", failed, testID, nonce, err)
						}

					default:
						got, err := msg.Hashes()
						if err != nil {
							t.Fatalf("\t%s\tTest %d:\tShould get back the hashes: %s", failed, testID, err)
						}
						if diff := cmp.Diff(hashes, got); diff != "" {
							t.Fatalf("\t%s\tTest %d:\tShould get back the hashes, diff:\n%s", failed, testID, diff)
						}
					}
					t.Logf("\t%s\tTest %d:\tShould get back the payload.", success, testID)

					if _, err := msg.Blocks(); err == nil {
						t.Fatalf("\t%s\tTest %d:\tShould not read blocks out of a %s message.", failed, testID, msg.Kind)
					}
					t.Logf("\t%s\tTest %d:\tShould not read blocks out of another kind.", success, testID)
				}
			}

			t.Run(tst.name, f)
		}
	}
}

func Test_PongEcho(t *testing.T) {
	t.Log("Given the need to echo a ping nonce as a decimal string.")
	{
		msg := message.Pong(4294967295)

		var echo string
		if err := rlp.DecodeBytes(msg.Payload, &echo); err != nil || echo != "4294967295" {
			t.Fatalf("\t%s\tShould carry the nonce as a decimal string: got %q, %v", failed, echo, err)
		}
		t.Logf("\t%s\tShould carry the nonce as a decimal string.", success)

		nonce, err := msg.Nonce()
		if err != nil || nonce != 4294967295 {
			t.Fatalf("\t%s\tShould read the nonce back: got %d, %v", failed, nonce, err)
		}
		t.Logf("\t%s\tShould read the nonce back.", success)

		bad, err := message.New(message.KindPong, "not-a-number")
		if err != nil {
			t.Fatalf("\t%s\tShould be able to construct the message: %s", failed, err)
		}

		if _, err := bad.Nonce(); err == nil {
			t.Fatalf("\t%s\tShould reject a pong that is not a number.", failed)
		}
		t.Logf("\t%s\tShould reject a pong that is not a number.", success)
	}
}

func Test_DecodeGarbage(t *testing.T) {
	t.Log("Given the need to reject bytes that are not a message.")
	{
		if _, err := message.Decode([]byte{0xde, 0xad, 0xbe, 0xef}); err == nil {
			t.Fatalf("\t%s\tShould reject random bytes.", failed)
		}
		t.Logf("\t%s\tShould reject random bytes.", success)

		data, err := rlp.EncodeToBytes(message.Message{Kind: 99, Payload: []byte{0x80}})
		if err != nil {
			t.Fatalf("\t%s\tShould be able to encode the message: %s", failed, err)
		}

		if _, err := message.Decode(data); !errors.Is(err, message.ErrUnknownKind) {
			t.Fatalf("\t%s\tShould reject an unknown kind: %v", failed, err)
		}
		t.Logf("\t%s\tShould reject an unknown kind.", success)
	}
}
