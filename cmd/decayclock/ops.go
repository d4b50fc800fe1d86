package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/TobiSchelling/decayclock/internal/clock"
	"github.com/TobiSchelling/decayclock/internal/leads"
	"github.com/TobiSchelling/decayclock/internal/pipeline"
	"github.com/TobiSchelling/decayclock/internal/sources"
)

var clockCmd = &cobra.Command{
	Use:   "clock",
	Short: "Print the current clock level",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		events, err := db.AllEvents()
		if err != nil {
			return err
		}
		state := clock.Calculate(clock.FromEvents(events), time.Now())

		fmt.Printf("Level: %d/100 (%s)\n", state.Level, state.Position)
		fmt.Printf("Events: %d across %d platforms\n", state.EventCount, state.ServiceCount)

		recent, err := db.RecentServices(10)
		if err != nil {
			return err
		}
		if len(recent) == 0 {
			return nil
		}
		rows := make([][]string, 0, len(recent))
		for _, s := range recent {
			updated := ""
			if s.UpdatedAt != nil {
				updated = *s.UpdatedAt
			}
			rows = append(rows, []string{s.Name, strconv.Itoa(s.EventCount), updated})
		}
		fmt.Println()
		fmt.Println(renderTable([]string{"Platform", "Events", "Updated"}, rows, []columnAlignment{alignLeft, alignRight}))
		return nil
	},
}

var leadsDaysBack int

var leadsCmd = &cobra.Command{
	Use:   "leads",
	Short: "Scan news feeds for headlines about tracked platforms",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		services, err := db.AllServices()
		if err != nil {
			return err
		}
		watchlist := make([]string, 0, len(services)+len(cfg.Leads.Watch))
		for _, s := range services {
			watchlist = append(watchlist, s.Name)
		}
		watchlist = append(watchlist, cfg.Leads.Watch...)
		if len(watchlist) == 0 {
			fmt.Println("Nothing to watch. Research a platform or add names under leads.watch.")
			return nil
		}

		feeds := make([]leads.Feed, 0, len(cfg.Leads.Feeds))
		for _, f := range cfg.Leads.Feeds {
			feeds = append(feeds, leads.Feed{URL: f.URL, Name: f.Name})
		}
		days := cfg.Leads.DaysBack
		if leadsDaysBack > 0 {
			days = leadsDaysBack
		}
		scanner := leads.NewScanner(feeds, days)
		if cfg.Leads.NewsAPI.Enabled {
			scanner.WithNews(leads.NewNewsClient(cfg.Leads.NewsAPI.APIKeyEnv))
		}

		fmt.Printf("Scanning %d feeds for %d platforms...\n", len(feeds), len(watchlist))
		result, err := scanner.Scan(cmd.Context(), db, watchlist)
		if err != nil {
			return err
		}

		fmt.Println("\nScan complete:")
		fmt.Printf("  Entries read: %d\n", result.Entries)
		fmt.Printf("  Matching a platform: %d\n", result.Matched)
		fmt.Printf("  New leads: %d\n", result.NewLeads)
		fmt.Printf("  Duplicates skipped: %d\n", result.Duplicates)

		open, err := db.OpenLeads(20)
		if err != nil {
			return err
		}
		if len(open) == 0 {
			return nil
		}
		rows := make([][]string, 0, len(open))
		for _, l := range open {
			published := ""
			if l.PublishedDate != nil {
				published = *l.PublishedDate
			}
			rows = append(rows, []string{strconv.FormatInt(l.ID, 10), l.Platform, published, shorten(l.Title, 60)})
		}
		fmt.Println()
		fmt.Println(renderTable([]string{"ID", "Platform", "Published", "Headline"}, rows, []columnAlignment{alignRight}))
		return nil
	},
}

func init() {
	leadsCmd.Flags().IntVar(&leadsDaysBack, "days-back", 0, "Override lookback window (days)")
}

var checkSourcesCmd = &cobra.Command{
	Use:   "check-sources",
	Short: "Check that cited source URLs are reachable and about their platform",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		fmt.Println("Checking event sources...")
		result, err := sources.NewChecker(cfg.Sources.Timeout).CheckAll(cmd.Context(), db)
		if err != nil {
			return err
		}

		fmt.Println("\nCheck complete:")
		fmt.Printf("  Checked: %d\n", result.Checked)
		fmt.Printf("  OK: %d\n", result.OK)
		fmt.Printf("  Unrelated: %d\n", result.Unrelated)
		fmt.Printf("  Unreachable: %d\n", result.Unreachable)
		return nil
	},
}

var (
	dryRun        bool
	researchLimit int
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the refresh pipeline: scan leads -> research -> check sources",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		feeds := make([]leads.Feed, 0, len(cfg.Leads.Feeds))
		for _, f := range cfg.Leads.Feeds {
			feeds = append(feeds, leads.Feed{URL: f.URL, Name: f.Name})
		}
		scanner := leads.NewScanner(feeds, cfg.Leads.DaysBack)
		if cfg.Leads.NewsAPI.Enabled {
			scanner.WithNews(leads.NewNewsClient(cfg.Leads.NewsAPI.APIKeyEnv))
		}

		pipe := pipeline.New(db, pipeline.Options{
			Scanner:       scanner,
			Checker:       sources.NewChecker(cfg.Sources.Timeout),
			Requester:     newRequester(),
			Providers:     newLoader(db, newCipher()),
			Watch:         cfg.Leads.Watch,
			ResearchLimit: researchLimit,
		})

		var result *pipeline.Result
		if dryRun {
			result = pipe.DryRun()
		} else {
			result = pipe.Run(cmd.Context())
		}

		for i, step := range result.Steps {
			fmt.Printf("\nStep %d/%d: %s\n", i+1, len(result.Steps), step.Name)
			if step.Err != nil {
				fmt.Printf("  Error: %v\n", step.Err)
			} else {
				fmt.Printf("  %s\n", step.Summary)
			}
		}

		if !dryRun {
			fmt.Println("\nPipeline complete! Run 'decayclock serve' to view the clock.")
		}
		return nil
	},
}

func init() {
	runCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Show what would be done without executing")
	runCmd.Flags().IntVar(&researchLimit, "research", 0, "Research up to this many lead platforms (0 skips research)")
}
