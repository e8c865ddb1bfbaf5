package cmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

// providersCmd lists every configured provider, the same sidecar-scan
// pattern as agentsCmd.
var providersCmd = &cobra.Command{
	Use:   "providers",
	Short: "List configured providers",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, closeFn, err := openEngine()
		if err != nil {
			return err
		}
		defer closeFn()

		names := make([]string, 0, len(e.Providers))
		for name := range e.Providers {
			names = append(names, name)
		}
		sort.Strings(names)

		if len(names) == 0 {
			fmt.Println("No providers configured.")
			return nil
		}
		for _, name := range names {
			cfg := e.Providers[name]
			fmt.Printf("%s\ttype=%s\tmodel=%s\n", name, cfg.ProviderType, cfg.Model)
		}
		return nil
	},
}
