package cmd

import (
	"errors"
	"fmt"

	"github.com/ardanlabs/powchain/foundation/blockchain/database"
	"github.com/ardanlabs/powchain/foundation/blockchain/signature"
	"github.com/ardanlabs/powchain/foundation/blockchain/state"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/spf13/cobra"
)

// ErrInsufficientFunds is returned when the unclaimed outputs of the wallet
// can't cover the value being sent.
var ErrInsufficientFunds = errors.New("insufficient funds")

var (
	to    string
	value uint64
)

// sendCmd represents the send command
var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Send value to an address",
	RunE: func(cmd *cobra.Command, args []string) error {
		privateKey, err := crypto.LoadECDSA(getPrivateKeyPath())
		if err != nil {
			return err
		}

		toAddr, err := database.ToAddress(to)
		if err != nil {
			return fmt.Errorf("to: %w", err)
		}

		from := signature.KeyAddress(privateKey)

		owned, err := fetchUTXOs(url, from)
		if err != nil {
			return err
		}

		mempool, err := fetchMempool(url)
		if err != nil {
			return err
		}

		claimed := make(map[database.TxInput]bool)
		for _, tx := range mempool {
			for _, in := range tx.Inputs {
				claimed[in] = true
			}
		}

		tx, err := buildTx(owned.UTXOs, claimed, from, toAddr, database.Amount(value))
		if err != nil {
			return err
		}

		signedTx, err := tx.Sign(privateKey)
		if err != nil {
			return err
		}

		resp, err := submitTx(url, signedTx)
		if err != nil {
			return err
		}

		fmt.Println(resp.Status, resp.Hash)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sendCmd)
	sendCmd.Flags().StringVarP(&to, "to", "t", "", "Address of the recipient.")
	sendCmd.Flags().Uint64VarP(&value, "value", "v", 0, "Value to send.")
	sendCmd.MarkFlagRequired("to")
	sendCmd.MarkFlagRequired("value")
}

// buildTx spends the oldest unclaimed outputs until the value is covered and
// returns any remainder to the sender as change.
func buildTx(utxos []state.UTXO, claimed map[database.TxInput]bool, from database.Address, to database.Address, value database.Amount) (database.Tx, error) {
	if value == 0 {
		return database.Tx{}, errors.New("value must be greater than zero")
	}

	var tx database.Tx
	var total database.Amount

	for _, utxo := range utxos {
		if total >= value {
			break
		}

		if claimed[utxo.Input] || utxo.Output.Recipient != from {
			continue
		}

		tx.Inputs = append(tx.Inputs, utxo.Input)
		total += utxo.Output.Value
	}

	if total < value {
		return database.Tx{}, fmt.Errorf("%w: have %d, need %d", ErrInsufficientFunds, total, value)
	}

	tx.Outputs = append(tx.Outputs, database.TxOutput{Recipient: to, Value: value})
	if change := total - value; change > 0 {
		tx.Outputs = append(tx.Outputs, database.TxOutput{Recipient: from, Value: change})
	}

	return tx, nil
}
