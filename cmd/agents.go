package cmd

import (
	"fmt"
	"sort"

	"github.com/framegraph/framegraph/internal/agent"
	"github.com/spf13/cobra"
)

// agentsCmd lists every configured agent identity by scanning the agent
// registry and printing one summary line per entry.
var agentsCmd = &cobra.Command{
	Use:   "agents",
	Short: "List configured agent identities",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, closeFn, err := openEngine()
		if err != nil {
			return err
		}
		defer closeFn()

		identities := e.Agents.ListAll()
		sort.Slice(identities, func(i, j int) bool { return identities[i].AgentID < identities[j].AgentID })

		if len(identities) == 0 {
			fmt.Println("No agents configured.")
			return nil
		}
		for _, id := range identities {
			fmt.Printf("%s\trole=%s\tcapabilities=%s\n", id.AgentID, id.Role, capabilityList(id))
		}
		return nil
	},
}

func capabilityList(id *agent.Identity) string {
	out := ""
	if id.CanRead() {
		out += "read"
	}
	if id.CanWrite() {
		if out != "" {
			out += ","
		}
		out += "write"
	}
	if out == "" {
		return "none"
	}
	return out
}
