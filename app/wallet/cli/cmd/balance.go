package cmd

import (
	"fmt"

	"github.com/ardanlabs/powchain/foundation/blockchain/signature"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/spf13/cobra"
)

// balanceCmd represents the balance command
var balanceCmd = &cobra.Command{
	Use:   "balance",
	Short: "Print your balance and the outputs it's made of",
	RunE: func(cmd *cobra.Command, args []string) error {
		privateKey, err := crypto.LoadECDSA(getPrivateKeyPath())
		if err != nil {
			return err
		}

		addr := signature.KeyAddress(privateKey)

		owned, err := fetchUTXOs(url, addr)
		if err != nil {
			return err
		}

		fmt.Println("For Address:", addr)
		fmt.Println("Tip:", owned.Tip)
		for _, utxo := range owned.UTXOs {
			fmt.Printf("  %s -> %d\n", utxo.Input, utxo.Output.Value)
		}
		fmt.Println("Balance:", owned.Balance)

		return nil
	},
}

func init() {
	rootCmd.AddCommand(balanceCmd)
}
