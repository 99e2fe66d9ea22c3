package public

import (
	"github.com/ardanlabs/powchain/foundation/blockchain/database"
	"github.com/ardanlabs/powchain/foundation/blockchain/hash"
	"github.com/ardanlabs/powchain/foundation/blockchain/ledger"
	"github.com/ardanlabs/powchain/foundation/blockchain/state"
	"github.com/ardanlabs/powchain/foundation/blockchain/worker"
)

type output struct {
	Recipient     database.Address `json:"recipient"`
	RecipientName string           `json:"recipient_name"`
	Value         database.Amount  `json:"value"`
}

type tx struct {
	Hash     hash.Digest        `json:"hash"`
	From     string             `json:"from"`
	FromName string             `json:"from_name"`
	Inputs   []database.TxInput `json:"inputs"`
	Outputs  []output           `json:"outputs"`
	Sig      string             `json:"sig"`
}

type block struct {
	Hash         hash.Digest `json:"hash"`
	Height       uint64      `json:"height"`
	Parent       hash.Digest `json:"parent"`
	Nonce        uint32      `json:"nonce"`
	Difficulty   hash.Digest `json:"difficulty"`
	TimeStamp    uint64      `json:"timestamp"`
	MerkleRoot   hash.Digest `json:"merkle_root"`
	Size         int         `json:"size"`
	Transactions []tx        `json:"transactions"`
}

type utxos struct {
	Address database.Address `json:"address"`
	Name    string           `json:"name"`
	Balance database.Amount  `json:"balance"`
	Tip     hash.Digest      `json:"tip"`
	UTXOs   []state.UTXO     `json:"utxos"`
}

type connect struct {
	Host string `json:"host" validate:"required,hostname_port"`
}

type telemetry struct {
	Ledger      ledger.Stats        `json:"ledger"`
	Mining      *worker.MiningStats `json:"mining,omitempty"`
	Subscribers int                 `json:"subscribers"`
}
