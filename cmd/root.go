// Package cmd implements the framegraph command-line surface: scan,
// generate, regen, get, agents, and providers, each a thin Cobra command
// over an internal/engine.Engine built from on-disk state.
package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/framegraph/framegraph/internal/cfgfile"
	"github.com/framegraph/framegraph/internal/engine"
	"github.com/framegraph/framegraph/internal/framestore"
	"github.com/framegraph/framegraph/internal/genqueue"
	"github.com/framegraph/framegraph/internal/headindex"
	"github.com/framegraph/framegraph/internal/ids"
	"github.com/framegraph/framegraph/internal/nodestore"
	"github.com/framegraph/framegraph/internal/provider"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

var (
	dataDir       string
	configDir     string
	promptBaseDir string
)

func init() {
	rootCmd.PersistentFlags().StringVar(&dataDir, "data", "", "Workspace data directory (node/frame stores, head index); defaults to XDG data home")
	rootCmd.PersistentFlags().StringVar(&configDir, "config", "", "Agent/provider config directory; defaults to XDG config home")
	rootCmd.PersistentFlags().StringVar(&promptBaseDir, "prompt-base", "", "Base directory for relative system_prompt_path entries; defaults to the config directory")

	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(regenCmd)
	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(agentsCmd)
	rootCmd.AddCommand(providersCmd)
	rootCmd.AddCommand(versionCmd)
}

var rootCmd = &cobra.Command{
	Use:     "framegraph",
	Short:   "framegraph: a deterministic filesystem-state and agent-context engine",
	Version: fmt.Sprintf("%s (commit %s, built %s)", Version, Commit, Date),
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("framegraph version %s (commit %s, built %s)\n", Version, Commit, Date)
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

const appName = "framegraph"

func resolveDataDir() (string, error) {
	if dataDir != "" {
		return dataDir, nil
	}
	return cfgfile.DataHome(appName)
}

func resolveConfigDir() (string, error) {
	if configDir != "" {
		return configDir, nil
	}
	return cfgfile.ConfigHome(appName)
}

func headIndexPath(dir string) string { return filepath.Join(dir, "heads.json") }

// openEngine opens the node and frame stores under the resolved data
// directory, restores the persisted head index, rebuilds the basis index
// from the heads it finds, and loads agent/provider configs. The basis
// index has no persistence of its own and lives purely in memory, so
// restart coverage is limited to frames still reachable from a current
// head — historical, superseded frames are not re-indexed. That is an
// accepted bootstrap limitation, not a bug: a superseded frame is never
// looked up by basis hash again once a newer one has taken its head slot.
func openEngine() (*engine.Engine, func(), error) {
	dir, err := resolveDataDir()
	if err != nil {
		return nil, nil, fmt.Errorf("resolve data dir: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("create data dir: %w", err)
	}

	nodes, err := nodestore.Open(filepath.Join(dir, "nodes.db"))
	if err != nil {
		return nil, nil, fmt.Errorf("open node store: %w", err)
	}
	frames, err := framestore.Open(filepath.Join(dir, "frames.db"))
	if err != nil {
		_ = nodes.Close()
		return nil, nil, fmt.Errorf("open frame store: %w", err)
	}

	heads := headindex.Load(headIndexPath(dir))

	e := engine.New(nodes, frames, genqueue.DefaultConfig(), provider.StubResolver{}, heads)
	bootstrapBasisIndex(e, frames, heads)

	cfgDir, err := resolveConfigDir()
	if err != nil {
		_ = nodes.Close()
		_ = frames.Close()
		return nil, nil, fmt.Errorf("resolve config dir: %w", err)
	}
	promptBase := promptBaseDir
	if promptBase == "" {
		promptBase = cfgDir
	}
	if err := cfgfile.LoadAgents(filepath.Join(cfgDir, "agents"), e.Agents, promptBase); err != nil {
		_ = nodes.Close()
		_ = frames.Close()
		return nil, nil, fmt.Errorf("load agents: %w", err)
	}
	providers, err := cfgfile.LoadProviders(filepath.Join(cfgDir, "providers"))
	if err != nil {
		_ = nodes.Close()
		_ = frames.Close()
		return nil, nil, fmt.Errorf("load providers: %w", err)
	}
	for _, p := range providers {
		e.RegisterProvider(p)
	}

	e.Start()

	closeFn := func() {
		e.Stop()
		if err := heads.Persist(headIndexPath(dir)); err != nil {
			log.Warn().Err(err).Msg("failed to persist head index on shutdown")
		}
		if err := nodes.Flush(); err != nil {
			log.Warn().Err(err).Msg("failed to flush node store on shutdown")
		}
		_ = nodes.Close()
		_ = frames.Close()
	}
	return e, closeFn, nil
}

func bootstrapBasisIndex(e *engine.Engine, frames framestore.Store, heads *headindex.Index) {
	for _, nodeID := range heads.GetAllNodeIDs() {
		for _, frameID := range heads.GetAllHeadsForNode(nodeID) {
			frame, err := frames.Get(frameID)
			if err != nil || frame == nil {
				continue
			}
			e.Basis.AddFrame(ids.ComputeBasisHash(frame.Basis), frame.ID)
		}
	}
}

// resolvePath looks up the NodeID registered for an exact path match by
// scanning every active record. The node store has no path index of its
// own (nodestore.Store.Get is by NodeID only), so commands that take a
// path argument resolve it this way at CLI scope rather than pushing a
// secondary index into the core store.
func resolvePath(e *engine.Engine, path string) (ids.NodeID, error) {
	records, err := e.Nodes.ListActive()
	if err != nil {
		return ids.NodeID{}, err
	}
	for _, r := range records {
		if r.Path == path {
			return r.ID, nil
		}
	}
	return ids.NodeID{}, fmt.Errorf("no node registered for path %q (run scan first)", path)
}

func mustDuration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}
