// This program is a wallet for the node. It manages a private key and
// signs transactions that spend the outputs the key controls.
package main

import "github.com/ardanlabs/powchain/app/wallet/cli/cmd"

func main() {
	cmd.Execute()
}
