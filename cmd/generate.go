package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/framegraph/framegraph/internal/genplan"
	"github.com/spf13/cobra"
)

var (
	generateAgentID   string
	generateProvider  string
	generateFrameType string
	generateForce     bool
	generateRecursive bool
	generateTimeout   string
)

func init() {
	generateCmd.Flags().StringVar(&generateAgentID, "agent", "", "Agent id to generate with (required)")
	generateCmd.Flags().StringVar(&generateProvider, "provider", "", "Provider name to generate with (required)")
	generateCmd.Flags().StringVar(&generateFrameType, "frame-type", "", "Frame type to generate")
	generateCmd.Flags().BoolVar(&generateForce, "force", false, "Regenerate even if a head already exists")
	generateCmd.Flags().BoolVar(&generateRecursive, "recursive", false, "Generate over the whole subtree, deepest first")
	generateCmd.Flags().StringVar(&generateTimeout, "timeout", "30s", "Per-item generation timeout")
	_ = generateCmd.MarkFlagRequired("agent")
	_ = generateCmd.MarkFlagRequired("provider")
}

var generateCmd = &cobra.Command{
	Use:   "generate [path]",
	Short: "Generate a frame (or a whole subtree of frames) for a node",
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

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()

		result, err := e.Generate(ctx, genplan.Params{
			Target:       nodeID,
			AgentID:      generateAgentID,
			ProviderName: generateProvider,
			FrameType:    generateFrameType,
			Force:        generateForce,
			Recursive:    generateRecursive,
		}, mustDuration(generateTimeout, 30*time.Second))
		if err != nil {
			return fmt.Errorf("generate: %w", err)
		}

		fmt.Printf("completed=%d failed=%d halted=%v\n", result.Completed, result.Failed, result.Halted)
		if result.Failed > 0 {
			return fmt.Errorf("%d item(s) failed during generation", result.Failed)
		}
		return nil
	},
}
