package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/framegraph/framegraph/internal/genqueue"
	"github.com/spf13/cobra"
)

var (
	regenRecursive bool
	regenAgentID   string
	regenReenqueue bool
	regenProvider  string
)

func init() {
	regenCmd.Flags().BoolVar(&regenRecursive, "recursive", false, "Recompute descendants first, post-order")
	regenCmd.Flags().StringVar(&regenAgentID, "agent", "", "Agent id recorded on freshly synthesized frames (required)")
	regenCmd.Flags().BoolVar(&regenReenqueue, "reenqueue", false, "Also re-enqueue generation for authored frames reported stale (opt-in; regeneration never does this automatically)")
	regenCmd.Flags().StringVar(&regenProvider, "provider", "", "Provider name to use when --reenqueue is set")
	_ = regenCmd.MarkFlagRequired("agent")
}

var regenCmd = &cobra.Command{
	Use:   "regen [path]",
	Short: "Recompute frames whose basis has gone stale",
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

		report, err := e.Regenerate(nodeID, regenRecursive, regenAgentID, time.Now())
		if err != nil {
			return fmt.Errorf("regen: %w", err)
		}

		fmt.Printf("regenerated=%d duration_ms=%d\n", report.RegeneratedCount, report.DurationMs)
		for _, stale := range report.Stale {
			fmt.Printf("stale authored frame: frame_type=%s head=%s\n", stale.FrameType, stale.HeadID.Hex())
		}

		if regenReenqueue && len(report.Stale) > 0 {
			if regenProvider == "" {
				return fmt.Errorf("--reenqueue requires --provider")
			}
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
			defer cancel()
			for _, stale := range report.Stale {
				if _, err := e.GenerateOne(ctx, &genqueue.Request{
					NodeID:       nodeID,
					AgentID:      regenAgentID,
					ProviderName: regenProvider,
					FrameType:    stale.FrameType,
					Priority:     genqueue.PriorityHigh,
				}); err != nil {
					fmt.Printf("reenqueue failed for frame_type=%s: %v\n", stale.FrameType, err)
				}
			}
		}

		return nil
	},
}
