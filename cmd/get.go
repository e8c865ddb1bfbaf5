package cmd

import (
	"fmt"

	"github.com/framegraph/framegraph/internal/view"
	"github.com/spf13/cobra"
)

var (
	getMaxFrames int
	getOrdering  string
	getFrameType string
	getAgentID   string
)

func init() {
	getCmd.Flags().IntVar(&getMaxFrames, "max-frames", 0, "Truncate to at most this many frames (0 = unbounded)")
	getCmd.Flags().StringVar(&getOrdering, "order", "recency", "Frame ordering: recency, type, or agent")
	getCmd.Flags().StringVar(&getFrameType, "frame-type", "", "Filter to a single frame_type")
	getCmd.Flags().StringVar(&getAgentID, "agent", "", "Filter to frames authored by a single agent")
}

var getCmd = &cobra.Command{
	Use:   "get [path]",
	Short: "Read a node's resolved frame context",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, closeFn, err := openEngine()
		if err != nil {
			return err
		}
		defer closeFn()

		nodeID, err := resolvePath(e, args[0])
		if err != nil {
			return err
		}

		v := view.View{MaxFrames: getMaxFrames, Ordering: parseOrdering(getOrdering)}
		if getFrameType != "" {
			v.Filters = append(v.Filters, view.ByType(getFrameType))
		}
		if getAgentID != "" {
			v.Filters = append(v.Filters, view.ByAgent(getAgentID))
		}

		nodeContext, err := e.GetNode(nodeID, v)
		if err != nil {
			return fmt.Errorf("get: %w", err)
		}

		fmt.Printf("node %s (%d of %d frame(s))\n", nodeID.Hex(), len(nodeContext.Frames), nodeContext.FrameCount)
		for _, frame := range nodeContext.Frames {
			fmt.Printf("- %s [%s] agent=%s created=%s\n  %s\n",
				frame.ID.Hex(), frame.FrameType, frame.AgentID(), frame.CreatedAt.Format("2006-01-02T15:04:05Z07:00"), frame.Content)
		}
		return nil
	},
}

func parseOrdering(s string) view.Ordering {
	switch s {
	case "type":
		return view.Type
	case "agent":
		return view.Agent
	default:
		return view.Recency
	}
}
