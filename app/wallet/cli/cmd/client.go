package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/ardanlabs/powchain/business/web/errs"
	"github.com/ardanlabs/powchain/foundation/blockchain/database"
	"github.com/ardanlabs/powchain/foundation/blockchain/hash"
	"github.com/ardanlabs/powchain/foundation/blockchain/state"
)

var client = http.Client{Timeout: 10 * time.Second}

type owned struct {
	Tip     hash.Digest     `json:"tip"`
	Balance database.Amount `json:"balance"`
	UTXOs   []state.UTXO    `json:"utxos"`
}

type pending struct {
	Hash   hash.Digest        `json:"hash"`
	Inputs []database.TxInput `json:"inputs"`
}

type submitted struct {
	Status string      `json:"status"`
	Hash   hash.Digest `json:"hash"`
}

func fetchUTXOs(url string, addr database.Address) (owned, error) {
	var o owned
	if err := call(http.MethodGet, fmt.Sprintf("%s/v1/utxo/%s", url, addr), nil, &o); err != nil {
		return owned{}, err
	}
	return o, nil
}

func fetchMempool(url string) ([]pending, error) {
	var p []pending
	if err := call(http.MethodGet, fmt.Sprintf("%s/v1/tx/mempool", url), nil, &p); err != nil {
		return nil, err
	}
	return p, nil
}

func submitTx(url string, tx database.SignedTx) (submitted, error) {
	var s submitted
	if err := call(http.MethodPost, fmt.Sprintf("%s/v1/tx/submit", url), tx, &s); err != nil {
		return submitted{}, err
	}
	return s, nil
}

func call(method string, url string, body any, resp any) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
	}

	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	r, err := client.Do(req)
	if err != nil {
		return err
	}
	defer r.Body.Close()

	if r.StatusCode != http.StatusOK {
		var er errs.Response
		if err := json.NewDecoder(r.Body).Decode(&er); err != nil {
			return fmt.Errorf("%s %s: status %d", method, url, r.StatusCode)
		}
		return fmt.Errorf("%s %s: status %d: %s", method, url, r.StatusCode, er.Error)
	}

	if err := json.NewDecoder(r.Body).Decode(resp); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}

	return nil
}
