package nameservice_test

import (
	"path/filepath"
	"testing"

	"github.com/ardanlabs/powchain/foundation/blockchain/signature"
	"github.com/ardanlabs/powchain/foundation/nameservice"
	"github.com/ethereum/go-ethereum/crypto"
)

// Success and failure markers.
const (
	success = "✓"
	failed  = "✗"
)

func Test_NameService(t *testing.T) {
	t.Log("Given the need to resolve addresses from a key folder.")
	{
		root := t.TempDir()

		pk, err := crypto.GenerateKey()
		if err != nil {
			t.Fatalf("\t%s\tShould be able to generate a key: %v", failed, err)
		}
		if err := crypto.SaveECDSA(filepath.Join(root, "kennedy.ecdsa"), pk); err != nil {
			t.Fatalf("\t%s\tShould be able to save a key: %v", failed, err)
		}

		ns, err := nameservice.New(root)
		if err != nil {
			t.Fatalf("\t%s\tShould be able to construct the name service: %v", failed, err)
		}
		t.Logf("\t%s\tShould be able to construct the name service.", success)

		if name := ns.Lookup(signature.KeyAddress(pk)); name != "kennedy" {
			t.Fatalf("\t%s\tShould resolve the saved key by name: got %q", failed, name)
		}
		t.Logf("\t%s\tShould resolve the saved key by name.", success)

		miner, err := ns.LoadOrCreate("miner1")
		if err != nil {
			t.Fatalf("\t%s\tShould be able to create a missing key: %v", failed, err)
		}

		again, err := ns.LoadOrCreate("miner1")
		if err != nil {
			t.Fatalf("\t%s\tShould be able to load the created key: %v", failed, err)
		}

		if signature.KeyAddress(miner) != signature.KeyAddress(again) {
			t.Fatalf("\t%s\tShould load the same key that was created.", failed)
		}
		t.Logf("\t%s\tShould load the same key that was created.", success)

		addrs := ns.Addresses()
		if len(addrs) != 2 || addrs[0] != signature.KeyAddress(pk) {
			t.Fatalf("\t%s\tShould list the addresses ordered by name: %v", failed, addrs)
		}
		t.Logf("\t%s\tShould list the addresses ordered by name.", success)
	}
}
