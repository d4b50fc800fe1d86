package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/TobiSchelling/decayclock/internal/config"
	"github.com/TobiSchelling/decayclock/internal/database"
	"github.com/TobiSchelling/decayclock/internal/registry"
	"github.com/TobiSchelling/decayclock/internal/research"
	"github.com/TobiSchelling/decayclock/internal/secret"
	"github.com/TobiSchelling/decayclock/internal/server"
)

var version = "dev"

var (
	verbose    bool
	configPath string
	cfg        *config.Config
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "decayclock",
	Short:   "Track the decline of online platforms",
	Long:    "decayclock researches platforms with several AI providers, cross-verifies their answers and tracks the resulting events on a decay clock.",
	Version: version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Skip config loading for init and version
		if cmd.Name() == "init" || cmd.Name() == "version" {
			cfg = config.Default()
		} else {
			path, err := config.ResolveConfigPath(configPath)
			if err != nil {
				return err
			}
			cfg, err = config.Load(path)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
		}

		logging := cfg.Logging
		if verbose {
			logging.Level = "debug"
		}
		return config.InitLogger(logging)
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(researchCmd)
	rootCmd.AddCommand(providersCmd)
	rootCmd.AddCommand(clockCmd)
	rootCmd.AddCommand(leadsCmd)
	rootCmd.AddCommand(checkSourcesCmd)
	rootCmd.AddCommand(runCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("decayclock", version)
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration in ~/.config/decayclock/",
	RunE: func(cmd *cobra.Command, args []string) error {
		target := filepath.Join(config.ConfigDir(), "config.yaml")
		if _, err := os.Stat(target); err == nil {
			fmt.Printf("Config already exists: %s\n", target)
			return nil
		}

		if err := os.MkdirAll(config.ConfigDir(), 0o755); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}

		if err := os.WriteFile(target, config.DefaultConfigYAML, 0o644); err != nil {
			return fmt.Errorf("writing config: %w", err)
		}

		fmt.Printf("Created config: %s\n", target)
		fmt.Println("Set ANTHROPIC_API_KEY or add providers with 'decayclock providers add', and ADMIN_API_KEY for the admin pages.")
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show database and provider status",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		stats, err := db.GetStats()
		if err != nil {
			return fmt.Errorf("getting stats: %w", err)
		}

		fmt.Printf("Database: %s (schema v%d)\n\n", db.Path(), stats.SchemaVersion)
		fmt.Println("Platforms:")
		fmt.Printf("  Tracked: %d\n", stats.Services)
		fmt.Println("\nEvents:")
		fmt.Printf("  Total: %d\n", stats.Events)
		fmt.Printf("  Verified: %d\n", stats.VerifiedEvents)
		fmt.Printf("  Disputed: %d\n", stats.DisputedEvents)
		fmt.Printf("  Unchecked sources: %d\n", stats.UncheckedSources)
		fmt.Println("\nProviders:")
		fmt.Printf("  Stored: %d\n", stats.Providers)
		fmt.Printf("  Enabled: %d\n", stats.EnabledProviders)
		if stats.EnabledProviders == 0 {
			state := "unset"
			if os.Getenv(cfg.Research.Fallback.APIKeyEnv) != "" {
				state = "set"
			}
			fmt.Printf("  Environment fallback (%s): %s\n", cfg.Research.Fallback.APIKeyEnv, state)
		}
		fmt.Println("\nLeads:")
		fmt.Printf("  Open: %d\n", stats.OpenLeads)
		return nil
	},
}

// --- serve command ---

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the local web server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}
		if os.Getenv(cfg.Server.AdminKeyEnv) == "" {
			zap.L().Warn("admin key is unset, admin pages are disabled", zap.String("env", cfg.Server.AdminKeyEnv))
		}

		fmt.Printf("Starting server at http://localhost:%d\n", port)
		fmt.Println("Press Ctrl+C to stop")

		cipher := newCipher()
		return server.Serve(ctx, db, port, server.Options{
			AdminKeyEnv:       cfg.Server.AdminKeyEnv,
			ResearchPerMinute: cfg.Server.ResearchPerMinute,
			Requester:         newRequester(),
			Registry:          newLoader(db, cipher),
			Cipher:            cipher,
		})
	},
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "Port to run server on (default from config)")
}

func openDB() (*database.DB, error) {
	return database.Open(cfg.DBPath())
}

func newCipher() *secret.Cipher {
	return secret.NewCipher(secret.EnvKey{Var: cfg.Secrets.EncryptionKeyEnv})
}

func newLoader(db *database.DB, cipher *secret.Cipher) *registry.Loader {
	fb := cfg.Research.Fallback
	return &registry.Loader{
		Store:  db,
		Cipher: cipher,
		Fallback: registry.Fallback{
			APIKeyEnv:   fb.APIKeyEnv,
			BaseURL:     fb.BaseURL,
			Model:       fb.Model,
			MaxTokens:   fb.MaxTokens,
			Temperature: fb.Temperature,
		},
	}
}

func newRequester() *research.Requester {
	return research.New(research.WithTimeout(cfg.Research.ProviderTimeout))
}
