// Package cli implements the knograph command line interface.
package cli

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/knograph/knograph/pkg/config"
	"github.com/knograph/knograph/pkg/graph"
	"github.com/knograph/knograph/pkg/knograph"
	"github.com/knograph/knograph/pkg/trace"
)

var version = "dev"

var configPath string

var rootCmd = &cobra.Command{
	Use:   "knograph",
	Short: "Graph path-retrieval engine with flow-based pruning and tiered caching",
	Long: `knograph retrieves multi-hop paths from a knowledge graph, scores them
with a resource-flow propagation model, caches results across a RAM tier and
a persistent tier, and assembles token-bounded prompt context for a language
model.`,
	SilenceUsage: true,
}

// Execute runs the CLI.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to YAML config file")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(queryCmd)
}

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, nil))
}

// buildEngine loads the config and wires up an engine over the SQLite
// reference graph store.
func buildEngine(logger *slog.Logger, extra ...knograph.Option) (*knograph.Engine, config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, cfg, err
	}

	store, err := graph.NewSQLiteGraphStore(cfg.Graph.Path)
	if err != nil {
		return nil, cfg, err
	}

	opts := []knograph.Option{knograph.WithLogger(logger)}
	opts = append(opts, extra...)
	if cfg.Trace.Path != "" {
		exporter, err := trace.NewFileExporter(cfg.Trace.Path)
		if err != nil {
			store.Close()
			return nil, cfg, err
		}
		opts = append(opts, knograph.WithTraceExporter(exporter))
	}

	engine, err := knograph.New(store, engineConfig(cfg), opts...)
	if err != nil {
		store.Close()
		return nil, cfg, err
	}
	return engine, cfg, nil
}

func engineConfig(cfg config.Config) knograph.Config {
	ec := knograph.Config{
		DecayRate:        cfg.Retrieval.DecayRate,
		PruningThreshold: cfg.Retrieval.PruningThreshold,
		MaxPaths:         cfg.Retrieval.MaxPaths,
		MaxDepth:         cfg.Retrieval.MaxDepth,
		UpstreamTimeout:  cfg.Retrieval.UpstreamTimeout.Std(),
		MaxTokens:        cfg.Assembly.MaxTokens,
		ReservedTokens:   cfg.Assembly.ReservedTokens,
	}
	ec.Cache.FastBytes = cfg.Cache.FastBytes
	ec.Cache.SlowBytes = cfg.Cache.SlowBytes
	ec.Cache.SlowPath = cfg.Cache.SlowPath
	ec.Cache.PromoteAfter = cfg.Cache.PromoteAfter
	ec.Cache.HighImportance = cfg.Cache.HighImportance
	ec.Cache.QueryWindow = cfg.Cache.QueryWindow
	return ec
}
