package commands

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"edubench/internal/analytics"
	"edubench/internal/config"
	"edubench/internal/logging"
	"edubench/internal/mcp"
	"edubench/internal/source"
)

var (
	// Version, Commit, and BuildDate are set at build time via ldflags.
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"

	verbose bool
	cfg     *config.AppConfig

	store *analytics.Store
)

var rootCmd = &cobra.Command{
	Use:   "edubench",
	Short: "Edubench is a benchmarking and forecasting MCP Server for school networks",
	Long: `A specialized MCP Server that computes anonymized peer-group benchmarks,
statistical anomaly detection (z-score and peer deviation) and seasonal
trend forecasts over multi-school operational metrics.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logging.Init(verbose)

		// Load configuration
		var err error
		cfg, err = config.Load()
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to load configuration")
		}

		provider := source.NewSynthetic(nil)
		if !cfg.DemoMode {
			// A live provider implementation is wired by the deployment; the
			// synthetic roster keeps the server usable without one.
			log.Warn().Msg("No live data provider configured, falling back to synthetic data")
		}

		store = analytics.NewStore(provider, cfg.AnonymizationSalt).
			WithWindow(cfg.WindowDays).
			WithHistoryDays(cfg.HistoryDays)

		log.Info().
			Str("version", Version).
			Str("commit", Commit).
			Str("buildDate", BuildDate).
			Msg("Edubench starting")
	},
	Run: func(cmd *cobra.Command, args []string) {
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		loadSampleCaches()
		defer saveSampleCaches()

		scheduler := analytics.NewScheduler(store, cfg.RefreshInterval)
		go scheduler.Run(ctx)

		log.Info().Msg("MCP Server starting Stdio loop")
		server := mcp.NewServer(store)
		if err := server.Serve(ctx); err != nil {
			log.Error().Err(err).Msg("Stdio loop terminated")
		}
	},
}

// loadSampleCaches restores previously recorded history from the cache dir,
// so the server can analyze without re-pulling everything from the provider.
func loadSampleCaches() {
	entries, err := os.ReadDir(cfg.CacheDir)
	if err != nil {
		log.Warn().Err(err).Str("path", cfg.CacheDir).Msg("Cannot read sample cache directory")
		return
	}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".jsonl") {
			continue
		}
		entityID := strings.TrimSuffix(name, ".jsonl")
		if err := store.Samples().Load(cfg.CacheDir, entityID); err != nil {
			log.Warn().Err(err).Str("entity", entityID).Msg("Failed to load sample cache")
		}
	}
}

func saveSampleCaches() {
	for _, entityID := range store.Samples().EntityIDs() {
		if err := store.Samples().Save(cfg.CacheDir, entityID); err != nil {
			log.Warn().Err(err).Str("entity", entityID).Msg("Failed to save sample cache")
		}
	}
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
}
