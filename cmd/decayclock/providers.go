package main

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/TobiSchelling/decayclock/internal/database"
	"github.com/TobiSchelling/decayclock/internal/llm"
	"github.com/TobiSchelling/decayclock/internal/registry"
)

var providersCmd = &cobra.Command{
	Use:   "providers",
	Short: "Manage AI providers",
}

var providersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored AI providers",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		items, err := db.ListProviders()
		if err != nil {
			return err
		}

		if len(items) == 0 {
			fmt.Println("No providers stored. Add one with: decayclock providers add")
			if os.Getenv(cfg.Research.Fallback.APIKeyEnv) != "" {
				fmt.Printf("Research uses the environment fallback (%s, %s).\n", cfg.Research.Fallback.APIKeyEnv, cfg.Research.Fallback.Model)
			}
			return nil
		}

		rows := make([][]string, 0, len(items))
		for _, p := range items {
			enabled := "no"
			if p.Enabled {
				enabled = "yes"
			}
			rows = append(rows, []string{
				p.ID, strconv.Itoa(p.Priority), p.Name, p.Model,
				string(llm.DetectDialect(p.BaseURL)), enabled,
			})
		}
		fmt.Println(renderTable(
			[]string{"ID", "Priority", "Name", "Model", "Dialect", "Enabled"},
			rows,
			[]columnAlignment{alignLeft, alignRight},
		))
		return nil
	},
}

var (
	addName        string
	addBaseURL     string
	addModel       string
	addAPIKeyEnv   string
	addPriority    int
	addMaxTokens   int
	addTemperature float64
)

var providersAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add an AI provider",
	Long:  "Add an AI provider. The API key is read from the environment variable named by --api-key-env and stored obfuscated.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if addName == "" || addBaseURL == "" || addModel == "" {
			return errors.New("--name, --base-url and --model are required")
		}
		if u, err := url.Parse(addBaseURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("invalid base URL: %s", addBaseURL)
		}
		key := os.Getenv(addAPIKeyEnv)
		if key == "" {
			return fmt.Errorf("environment variable %s is empty", addAPIKeyEnv)
		}

		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		id, err := db.InsertProvider(database.Provider{
			Name:            addName,
			BaseURL:         addBaseURL,
			APIKeyEncrypted: newCipher().Encrypt(key),
			Model:           addModel,
			Enabled:         true,
			Priority:        addPriority,
			MaxTokens:       addMaxTokens,
			Temperature:     addTemperature,
		})
		if err != nil {
			return err
		}
		fmt.Printf("Added provider %s (%s, %s dialect)\n", addName, id, llm.DetectDialect(addBaseURL))
		return nil
	},
}

func init() {
	f := providersAddCmd.Flags()
	f.StringVar(&addName, "name", "", "Display name")
	f.StringVar(&addBaseURL, "base-url", "", "API base URL, e.g. https://api.anthropic.com")
	f.StringVar(&addModel, "model", "", "Model identifier")
	f.StringVar(&addAPIKeyEnv, "api-key-env", "PROVIDER_API_KEY", "Environment variable holding the API key")
	f.IntVar(&addPriority, "priority", 0, "Query order, lower first")
	f.IntVar(&addMaxTokens, "max-tokens", 4096, "Maximum response tokens")
	f.Float64Var(&addTemperature, "temperature", 0.7, "Sampling temperature")
}

var providersRemoveCmd = &cobra.Command{
	Use:   "remove [id]",
	Short: "Remove an AI provider",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withProvider(args[0], func(db *database.DB, p *database.Provider) error {
			if err := db.DeleteProvider(p.ID); err != nil {
				return err
			}
			fmt.Printf("Removed provider %s\n", p.Name)
			return nil
		})
	},
}

var providersToggleCmd = &cobra.Command{
	Use:   "toggle [id]",
	Short: "Enable or disable an AI provider",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withProvider(args[0], func(db *database.DB, p *database.Provider) error {
			if err := db.ToggleProvider(p.ID); err != nil {
				return err
			}
			newState := "disabled"
			if !p.Enabled {
				newState = "enabled"
			}
			fmt.Printf("Provider %s: %s\n", p.Name, newState)
			return nil
		})
	},
}

var providersTestCmd = &cobra.Command{
	Use:   "test [id]",
	Short: "Check that a provider answers",
	Long:  "Send a trivial prompt to a stored provider, or to the environment fallback with id '" + registry.FallbackID + "'.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		pc, err := newLoader(db, newCipher()).ByID(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Research.ProviderTimeout)
		defer cancel()
		res := llm.TestConnection(ctx, pc)
		fmt.Printf("%s: %s\n", pc.Name, res.Message)
		if !res.Success {
			return errors.New("connection test failed")
		}
		return nil
	},
}

func withProvider(id string, fn func(*database.DB, *database.Provider) error) error {
	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	p, err := db.GetProvider(id)
	if err != nil {
		return err
	}
	if p == nil {
		return fmt.Errorf("provider %s not found", id)
	}
	return fn(db, p)
}

func init() {
	providersCmd.AddCommand(providersListCmd)
	providersCmd.AddCommand(providersAddCmd)
	providersCmd.AddCommand(providersRemoveCmd)
	providersCmd.AddCommand(providersToggleCmd)
	providersCmd.AddCommand(providersTestCmd)
}
