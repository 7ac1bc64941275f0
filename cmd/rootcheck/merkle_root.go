package rootcheck

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/manifest-network/rootcheck/internal/merkle"
	"github.com/manifest-network/rootcheck/internal/utils"
)

func newMerkleRootCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "root [hex-leaf ...]",
		Short: "Print the binary Merkle root of 0x-prefixed hex leaves",
		Long: `Print the binary Merkle root of the given leaves, in order.
Pass the canonical encodings of a block's transactions to reproduce its transactions-root,
or the encodings of a Script transaction's receipts to reproduce its receipts-root.
Without arguments the root of the empty tree is printed.`,
		Example: "  rootcheck root 0x0000000000000002 0x0000000000000001",
		RunE: func(cmd *cobra.Command, args []string) error {
			acc := merkle.New()
			for i, arg := range args {
				leaf, err := utils.DecodeHex(arg)
				if err != nil {
					return &exitError{code: ExitFatal, err: fmt.Errorf("leaf %d: %w", i, err)}
				}
				acc.Push(leaf)
			}
			_, err := fmt.Fprintln(cmd.OutOrStdout(), acc.Root())
			return err
		},
	}
}
