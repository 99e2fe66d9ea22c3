package cmd

import (
	"errors"
	"testing"

	"github.com/ardanlabs/powchain/foundation/blockchain/database"
	"github.com/ardanlabs/powchain/foundation/blockchain/hash"
	"github.com/ardanlabs/powchain/foundation/blockchain/state"
	"github.com/ethereum/go-ethereum/common"
	"github.com/google/go-cmp/cmp"
)

// Success and failure markers.
const (
	success = "✓"
	failed  = "✗"
)

func Test_BuildTx(t *testing.T) {
	from := common.HexToAddress("0xF01813E4B85e178A83e29B8E7bF26BD830a25f32")
	to := common.HexToAddress("0xdd6B972ffcc631a62CAE1BB9d80b7ff429c8ebA4")

	in1 := database.TxInput{OutputIndex: 0, SourceTx: hash.Of("tx1")}
	in2 := database.TxInput{OutputIndex: 1, SourceTx: hash.Of("tx2")}
	in3 := database.TxInput{OutputIndex: 0, SourceTx: hash.Of("tx3")}

	utxos := []state.UTXO{
		{Input: in1, Output: database.TxOutput{Recipient: from, Value: 50}},
		{Input: in2, Output: database.TxOutput{Recipient: from, Value: 30}},
		{Input: in3, Output: database.TxOutput{Recipient: from, Value: 20}},
	}

	type table struct {
		name    string
		claimed map[database.TxInput]bool
		value   database.Amount
		exp     database.Tx
		err     error
	}

	tt := []table{
		{
			name:  "exact",
			value: 50,
			exp: database.Tx{
				Inputs:  []database.TxInput{in1},
				Outputs: []database.TxOutput{{Recipient: to, Value: 50}},
			},
		},
		{
			name:  "change",
			value: 60,
			exp: database.Tx{
				Inputs:  []database.TxInput{in1, in2},
				Outputs: []database.TxOutput{{Recipient: to, Value: 60}, {Recipient: from, Value: 20}},
			},
		},
		{
			name:    "claimed",
			claimed: map[database.TxInput]bool{in1: true},
			value:   40,
			exp: database.Tx{
				Inputs:  []database.TxInput{in2, in3},
				Outputs: []database.TxOutput{{Recipient: to, Value: 40}, {Recipient: from, Value: 10}},
			},
		},
		{
			name:  "insufficient",
			value: 101,
			err:   ErrInsufficientFunds,
		},
	}

	t.Log("Given the need to build a transaction from unspent outputs.")
	{
		for testID, tst := range tt {
			f := func(t *testing.T) {
				tx, err := buildTx(utxos, tst.claimed, from, to, tst.value)

				if tst.err != nil {
					if !errors.Is(err, tst.err) {
						t.Fatalf("\t%s\tTest %d:\tShould fail with %v: got %v", failed, testID, tst.err, err)
					}
					t.Logf("\t%s\tTest %d:\tShould fail with %v.", success, testID, tst.err)
					return
				}

				if err != nil {
					t.Fatalf("\t%s\tTest %d:\tShould be able to build the transaction: %v", failed, testID, err)
				}

				if diff := cmp.Diff(tst.exp, tx); diff != "" {
					t.Fatalf("\t%s\tTest %d:\tShould spend the oldest unclaimed outputs, diff:\n%s", failed, testID, diff)
				}
				t.Logf("\t%s\tTest %d:\tShould spend the oldest unclaimed outputs.", success, testID)
			}

			t.Run(tst.name, f)
		}
	}
}
