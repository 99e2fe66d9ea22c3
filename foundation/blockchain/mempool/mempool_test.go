package mempool_test

import (
	"testing"

	"github.com/ardanlabs/powchain/foundation/blockchain/database"
	"github.com/ardanlabs/powchain/foundation/blockchain/hash"
	"github.com/ardanlabs/powchain/foundation/blockchain/mempool"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

func sign(tx database.Tx) (database.SignedTx, error) {
	pk, err := crypto.HexToECDSA("fae85851bdf5c9f49923722ce38f3c1defcfd3619ef5453230a58ad805499959")
	if err != nil {
		return database.SignedTx{}, err
	}

	return tx.Sign(pk)
}

func spend(source string, index uint32, to string, value database.Amount) database.Tx {
	recipient := hash.Of(to)

	return database.Tx{
		Inputs:  []database.TxInput{{OutputIndex: index, SourceTx: hash.Of(source)}},
		Outputs: []database.TxOutput{{Recipient: common.BytesToAddress(recipient[:]), Value: value}},
	}
}

func TestCRUD(t *testing.T) {
	type table struct {
		name string
		txs  []database.Tx
	}

	tt := []table{
		{
			name: "basic",
			txs: []database.Tx{
				spend("a", 0, "bill", 10),
				spend("a", 1, "ale", 50),
				spend("b", 0, "jack", 100),
				spend("c", 0, "wolf", 10),
			},
		},
	}

	t.Log("Given the need to validate mempool api.")
	{
		for testID, tst := range tt {
			t.Logf("\tTest %d:\tWhen handling a set of transaction.", testID)
			{
				f := func(t *testing.T) {
					mp := mempool.New()

					var signed []database.SignedTx
					for _, tx := range tst.txs {
						signedTx, err := sign(tx)
						if err != nil {
							t.Fatalf("\t%s\tTest %d:\tShould be able to sign transaction.", failed, testID)
						}
						t.Logf("\t%s\tTest %d:\tShould be able to sign transaction.", success, testID)

						if !mp.Insert(signedTx) {
							t.Fatalf("\t%s\tTest %d:\tShould be able to add new transaction: %s", failed, testID, signedTx)
						}
						t.Logf("\t%s\tTest %d:\tShould be able to add new transaction: %s", success, testID, signedTx)

						signed = append(signed, signedTx)
					}

					if mp.Insert(signed[0]) {
						t.Fatalf("\t%s\tTest %d:\tShould not add the same transaction twice.", failed, testID)
					}
					t.Logf("\t%s\tTest %d:\tShould not add the same transaction twice.", success, testID)

					conflict, err := sign(spend("a", 0, "someone-else", 10))
					if err != nil {
						t.Fatalf("\t%s\tTest %d:\tShould be able to sign transaction.", failed, testID)
					}
					if mp.Insert(conflict) {
						t.Fatalf("\t%s\tTest %d:\tShould not add a transaction claiming a pooled input.", failed, testID)
					}
					t.Logf("\t%s\tTest %d:\tShould not add a transaction claiming a pooled input.", success, testID)

					claimer, claimed := mp.Spends(signed[1].Raw.Inputs[0])
					if !claimed || claimer != signed[1].Hash() {
						t.Fatalf("\t%s\tTest %d:\tShould report the transaction that claims an input.", failed, testID)
					}
					t.Logf("\t%s\tTest %d:\tShould report the transaction that claims an input.", success, testID)

					for i, tx := range mp.Copy() {
						if tx.Hash() != signed[i].Hash() {
							t.Logf("\t%s\tTest %d:\tgot: %s", failed, testID, tx)
							t.Logf("\t%s\tTest %d:\texp: %s", failed, testID, signed[i])
							t.Fatalf("\t%s\tTest %d:\tShould get back the transactions in arrival order.", failed, testID)
						}
					}
					t.Logf("\t%s\tTest %d:\tShould get back the transactions in arrival order.", success, testID)

					if got, exists := mp.Get(signed[2].Hash()); !exists || got.Hash() != signed[2].Hash() {
						t.Fatalf("\t%s\tTest %d:\tShould be able to get a transaction by hash.", failed, testID)
					}
					t.Logf("\t%s\tTest %d:\tShould be able to get a transaction by hash.", success, testID)

					tx, exists := mp.Pop()
					if !exists || tx.Hash() != signed[0].Hash() {
						t.Fatalf("\t%s\tTest %d:\tShould pop the oldest transaction.", failed, testID)
					}
					t.Logf("\t%s\tTest %d:\tShould pop the oldest transaction.", success, testID)

					if _, claimed := mp.Spends(signed[0].Raw.Inputs[0]); claimed {
						t.Fatalf("\t%s\tTest %d:\tShould release the inputs of a popped transaction.", failed, testID)
					}
					t.Logf("\t%s\tTest %d:\tShould release the inputs of a popped transaction.", success, testID)

					mp.Delete(signed[2].Hash())
					if mp.Count() != 2 || mp.Contains(signed[2].Hash()) {
						t.Fatalf("\t%s\tTest %d:\tShould be able to remove a transaction.", failed, testID)
					}
					t.Logf("\t%s\tTest %d:\tShould be able to remove a transaction.", success, testID)

					mp.Truncate()
					if _, exists := mp.Pop(); exists || mp.Count() != 0 {
						t.Fatalf("\t%s\tTest %d:\tShould be able to truncate mempool.", failed, testID)
					}
					t.Logf("\t%s\tTest %d:\tShould be able to truncate mempool.", success, testID)
				}

				t.Run(tst.name, f)
			}
		}
	}
}
