package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/TobiSchelling/decayclock/internal/research"
	"github.com/TobiSchelling/decayclock/internal/verify"
)

var (
	researchSave bool
	researchJSON bool
)

var researchCmd = &cobra.Command{
	Use:   "research <platform>",
	Short: "Research a platform with every enabled AI provider",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := strings.TrimSpace(strings.Join(args, " "))
		if !research.ValidPlatformName(name) {
			return errors.New("platform name must be at least 2 characters")
		}

		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		providers, err := newLoader(db, newCipher()).Enabled(cmd.Context())
		if err != nil {
			return err
		}

		if !researchJSON {
			fmt.Printf("Researching %s with %d provider(s)...\n", name, len(providers))
		}
		result, err := newRequester().Research(cmd.Context(), name, providers)
		if err != nil {
			var rerr *research.Error
			if errors.As(err, &rerr) && rerr.Kind == research.KindRateLimit {
				return fmt.Errorf("rate limit exceeded, try again in %d seconds", int(rerr.RetryAfter.Seconds()))
			}
			return fmt.Errorf("research failed: %w", err)
		}

		if researchJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if err := enc.Encode(result); err != nil {
				return err
			}
		} else {
			printResult(result)
		}

		if !researchSave {
			if !researchJSON {
				fmt.Println("\nNot saved. Re-run with --save to store these events.")
			}
			return nil
		}

		id, err := db.SaveResearch(result.Service, result.Events)
		if err != nil {
			return fmt.Errorf("saving research: %w", err)
		}
		for _, p := range []string{name, result.Service.Name} {
			if err := db.MarkPlatformResearched(p); err != nil {
				return fmt.Errorf("closing leads: %w", err)
			}
		}
		if !researchJSON {
			fmt.Printf("\nSaved %d events for %s (service %d)\n", len(result.Events), result.Service.Name, id)
		}
		return nil
	},
}

func init() {
	researchCmd.Flags().BoolVar(&researchSave, "save", false, "Store the verified events")
	researchCmd.Flags().BoolVar(&researchJSON, "json", false, "Print the result as JSON")
}

func printResult(result *verify.Result) {
	m := result.Metadata
	fmt.Printf("\n%s: %s\n", result.Service.Name, result.Service.Description)
	fmt.Printf("Providers: %s (succeeded: %s)\n",
		strings.Join(m.ProvidersQueried, ", "), strings.Join(m.ProvidersSucceeded, ", "))
	fmt.Printf("Consensus: %d%%, %d of %d events verified\n\n", m.ConsensusScore, m.VerifiedEventCount, m.TotalEventCount)

	rows := make([][]string, 0, len(result.Events))
	for _, e := range result.Events {
		rows = append(rows, []string{
			e.EventDate,
			string(e.Severity),
			string(e.Category),
			string(e.Verification.Confidence),
			strconv.Itoa(len(e.Verification.AgreedBy)),
			shorten(e.Title, 60),
		})
	}
	fmt.Println(renderTable(
		[]string{"Date", "Severity", "Type", "Confidence", "Agreed", "Title"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight},
	))
}
