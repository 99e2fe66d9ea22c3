// Package genesis maintains the parameters the chain is started with.
package genesis

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/ardanlabs/powchain/foundation/blockchain/hash"
)

// Genesis represents the genesis parameters. The difficulty is fixed for the
// lifetime of the chain.
type Genesis struct {
	Difficulty    hash.Digest `json:"difficulty"`      // A block hash must be numerically at or below this target.
	TransPerBlock uint16      `json:"trans_per_block"` // The maximum number of transactions a miner packs into a block.
	MiningReward  uint64      `json:"mining_reward"`   // The most a coinbase transaction can pay out.
}

// DefaultDifficulty returns the default target, a 0x01 byte followed by
// zeros. Roughly one header in 256 satisfies it.
func DefaultDifficulty() hash.Digest {
	var d hash.Digest
	d[0] = 1
	return d
}

// Default returns the parameters every node uses unless configured otherwise.
func Default() Genesis {
	return Genesis{
		Difficulty:    DefaultDifficulty(),
		TransPerBlock: 20,
		MiningReward:  700,
	}
}

// =============================================================================

// Load opens and consumes the genesis file. An empty path returns the
// default parameters.
func Load(path string) (Genesis, error) {
	if path == "" {
		return Default(), nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return Genesis{}, fmt.Errorf("reading genesis: %w", err)
	}

	var genesis Genesis
	if err := json.Unmarshal(content, &genesis); err != nil {
		return Genesis{}, fmt.Errorf("decoding genesis: %w", err)
	}

	if genesis.Difficulty.IsZero() {
		return Genesis{}, errors.New("genesis difficulty can't be zero")
	}

	if genesis.TransPerBlock == 0 {
		return Genesis{}, errors.New("genesis trans per block can't be zero")
	}

	return genesis, nil
}
