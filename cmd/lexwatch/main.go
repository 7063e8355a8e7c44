package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kalro/lexwatch/internal/config"
	"github.com/kalro/lexwatch/internal/courtfeed"
	"github.com/kalro/lexwatch/internal/database"
	"github.com/kalro/lexwatch/internal/matcher"
	"github.com/kalro/lexwatch/internal/notify"
	"github.com/kalro/lexwatch/internal/poll"
	"github.com/kalro/lexwatch/internal/search"
	"github.com/kalro/lexwatch/internal/server"
	"github.com/kalro/lexwatch/internal/worker"
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
	Use:     "lexwatch",
	Short:   "Legal judgment monitoring",
	Long:    "lexwatch polls a judgment search API for saved watches, records new matches, and sends alerts.",
	Version: version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if verbose {
			log.SetFlags(log.LstdFlags | log.Lshortfile)
		} else {
			log.SetFlags(log.LstdFlags)
		}

		// Skip config loading for init and version
		if cmd.Name() == "init" || cmd.Name() == "version" {
			return nil
		}

		path, err := config.ResolveConfigPath(configPath)
		if err != nil {
			return err
		}
		cfg, err = config.Load(path)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(watchesCmd)
	rootCmd.AddCommand(pollNowCmd)
	rootCmd.AddCommand(resumeCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(digestCmd)
	rootCmd.AddCommand(workerCmd)
	rootCmd.AddCommand(serveCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("lexwatch", version)
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration in ~/.config/lexwatch/",
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
		fmt.Println("Edit it to configure the search API, notification channels, and feeds.")
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show database and polling status",
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
		paused, reason, err := db.IsPollingPaused()
		if err != nil {
			return fmt.Errorf("reading polling state: %w", err)
		}

		fmt.Println("Watches:")
		fmt.Printf("  Total: %d\n", stats.TotalWatches)
		fmt.Printf("  Active: %d\n", stats.ActiveWatches)
		fmt.Println("\nJudgments and matches:")
		fmt.Printf("  Judgments stored: %d\n", stats.TotalJudgments)
		fmt.Printf("  Matches: %d\n", stats.TotalMatches)
		fmt.Printf("  Awaiting notification: %d\n", stats.UnnotifiedMatches)
		fmt.Println("\nPolling:")
		fmt.Printf("  Pending poll requests: %d\n", stats.PendingPollRequests)
		fmt.Printf("  API calls today: %d\n", stats.APICallsToday)
		if paused {
			fmt.Printf("  State: PAUSED (%s)\n", reason)
			fmt.Println("  Run 'lexwatch resume' after fixing the API token.")
		} else {
			fmt.Println("  State: running")
		}
		return nil
	},
}

// --- watches commands ---

var watchesCmd = &cobra.Command{
	Use:   "watches",
	Short: "Manage judgment watches",
}

var (
	watchType     string
	watchCourts   []string
	watchInterval int
)

var watchesAddCmd = &cobra.Command{
	Use:   "add [name] [query terms]",
	Short: "Add a new watch",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		id, err := db.InsertWatch(args[0], watchType, args[1], watchCourts, watchInterval)
		if err != nil {
			return err
		}
		fmt.Printf("Added watch [%d]: %s (%s)\n", id, args[0], watchType)
		return nil
	},
}

var watchesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all watches",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		watches, err := db.GetAllWatches()
		if err != nil {
			return err
		}
		if len(watches) == 0 {
			fmt.Println("No watches defined. Add one with: lexwatch watches add")
			return nil
		}

		fmt.Println("Watches:")
		fmt.Println()
		for _, w := range watches {
			icon := " "
			if w.IsActive {
				icon = "*"
			}
			fmt.Printf("  [%d] %s %s (%s, every %dm)\n", w.ID, icon, w.Name, w.Type, w.PollingIntervalMinutes)
			fmt.Printf("        query: %s\n", w.QueryTerms)
			if len(w.CourtFilter) > 0 {
				fmt.Printf("        courts: %s\n", strings.Join(w.CourtFilter, ", "))
			}
			if w.LastPolledAt != nil {
				fmt.Printf("        last polled: %s (%d results)\n", *w.LastPolledAt, w.LastPollResultCount)
			}
		}
		return nil
	},
}

var watchesRemoveCmd = &cobra.Command{
	Use:   "remove [id]",
	Short: "Remove a watch",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		id, err := parseWatchID(args[0])
		if err != nil {
			return err
		}
		watch, err := requireWatch(db, id)
		if err != nil {
			return err
		}
		if err := db.DeleteWatch(id); err != nil {
			return err
		}
		fmt.Printf("Removed watch [%d]: %s\n", id, watch.Name)
		return nil
	},
}

var watchesToggleCmd = &cobra.Command{
	Use:   "toggle [id]",
	Short: "Toggle a watch's active state",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		id, err := parseWatchID(args[0])
		if err != nil {
			return err
		}
		watch, err := requireWatch(db, id)
		if err != nil {
			return err
		}

		if err := db.SetWatchActive(id, !watch.IsActive); err != nil {
			return err
		}
		newState := "disabled"
		if !watch.IsActive {
			newState = "enabled"
		}
		fmt.Printf("Watch [%d] %s: %s\n", id, watch.Name, newState)
		return nil
	},
}

func init() {
	watchesAddCmd.Flags().StringVarP(&watchType, "type", "t", database.WatchEntity, "Watch type: entity, topic, or act")
	watchesAddCmd.Flags().StringSliceVar(&watchCourts, "courts", nil, "Restrict to these court identifiers")
	watchesAddCmd.Flags().IntVar(&watchInterval, "interval", database.MinPollingIntervalMinutes, "Polling interval in minutes")

	watchesCmd.AddCommand(watchesAddCmd)
	watchesCmd.AddCommand(watchesListCmd)
	watchesCmd.AddCommand(watchesRemoveCmd)
	watchesCmd.AddCommand(watchesToggleCmd)
}

// --- poll-now command ---

var pollNowCmd = &cobra.Command{
	Use:   "poll-now [id]",
	Short: "Poll one watch immediately",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		id, err := parseWatchID(args[0])
		if err != nil {
			return err
		}
		watch, err := requireWatch(db, id)
		if err != nil {
			return err
		}

		engine, _ := buildEngine(db)
		matches, err := engine.PollWatch(context.Background(), watch)
		if err != nil {
			return fmt.Errorf("polling %s: %w", watch.Name, err)
		}
		fmt.Printf("Polled %s: %d new match(es)\n", watch.Name, len(matches))
		return nil
	},
}

// --- resume command ---

var resumeCmd = &cobra.Command{
	Use:   "resume",
	Short: "Resume polling after an authentication pause",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		paused, reason, err := db.IsPollingPaused()
		if err != nil {
			return err
		}
		if !paused {
			fmt.Println("Polling is not paused.")
			return nil
		}
		if err := db.ResumePolling(); err != nil {
			return err
		}
		fmt.Printf("Polling resumed (was paused: %s)\n", reason)
		return nil
	},
}

// --- run command ---

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one polling cycle and dispatch pending notifications",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		ctx := context.Background()
		engine, notifier := buildEngine(db)

		result, err := engine.RunCycle(ctx)
		if err != nil {
			return fmt.Errorf("polling cycle: %w", err)
		}
		if result.Paused {
			fmt.Println("Polling is paused; no watches polled.")
			fmt.Println("Run 'lexwatch resume' after fixing the API token.")
		} else {
			fmt.Printf("Cycle complete: %d due, %d polled, %d failed, %d new match(es)\n",
				result.Due, result.Polled, result.Failed, result.NewMatches)
		}

		if err := engine.ProcessPollRequests(ctx); err != nil {
			fmt.Printf("Poll request processing: %v\n", err)
		}

		dispatch, err := notifier.DispatchPending(ctx)
		if err != nil {
			return fmt.Errorf("dispatching notifications: %w", err)
		}
		fmt.Printf("Dispatch: %d watch batch(es), %d delivered, %d failed\n",
			dispatch.Watches, dispatch.Delivered, dispatch.Failed)
		return nil
	},
}

// --- digest command ---

var digestCmd = &cobra.Command{
	Use:   "digest",
	Short: "Send the daily digest now",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		notifier := buildNotifier(db)
		if err := notifier.SendDailyDigest(context.Background()); err != nil {
			return err
		}
		fmt.Println("Digest sent.")
		return nil
	},
}

// --- worker command ---

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run the long-lived service: polling, dispatch, digest, and the admin API",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		engine, notifier := buildEngine(db)

		var scanner *courtfeed.Scanner
		if cfg.Feeds.Enabled {
			scanner = courtfeed.New(cfg, db, matcher.New(db))
		}

		go func() {
			if err := server.Serve(db, cfg.Server.Port); err != nil {
				log.Printf("admin API stopped: %v", err)
			}
		}()

		worker.New(cfg, db, engine, notifier, scanner).Run(ctx)
		fmt.Println("\nWorker stopped.")
		return nil
	},
}

// --- serve command ---

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the admin API without the polling loops",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		fmt.Printf("Starting admin API at http://localhost:%d\n", servePort)
		fmt.Println("Press Ctrl+C to stop")
		return server.Serve(db, servePort)
	},
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 8600, "Port to run the admin API on")
}

// --- wiring helpers ---

func openDB() (*database.DB, error) {
	dataDir := cfg.GetDataDir()
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	dbPath := filepath.Join(dataDir, "lexwatch.db")
	return database.Open(dbPath)
}

func buildEngine(db *database.DB) (*poll.Engine, *notify.Notifier) {
	client := search.New(search.Config{
		BaseURL:     cfg.Search.BaseURL,
		Token:       cfg.APIToken(),
		Timeout:     time.Duration(cfg.Search.TimeoutSeconds) * time.Second,
		MaxAttempts: cfg.Search.MaxAttempts,
		RateLimit:   time.Duration(cfg.Search.RateLimitSeconds * float64(time.Second)),
	}, db)

	notifier := buildNotifier(db)
	engine := poll.New(db, client, matcher.New(db), notifier, poll.Config{
		Concurrency: cfg.Polling.Concurrency,
		MaxPages:    cfg.Search.MaxPages,
	})
	return engine, notifier
}

func buildNotifier(db *database.DB) *notify.Notifier {
	var email notify.EmailSender
	if e := cfg.Notifications.Email; e.Enabled {
		email = notify.NewSMTPSender(e.SMTPHost, e.SMTPPort, e.Username, cfg.SMTPPassword(), e.From, e.Recipients)
	}
	var slack notify.SlackSender
	if cfg.Notifications.Slack.Enabled {
		if url := cfg.SlackWebhookURL(); url != "" {
			slack = notify.NewWebhookSender(url)
		} else {
			log.Printf("slack enabled but %s is not set; channel disabled", cfg.Notifications.Slack.WebhookURLEnv)
		}
	}
	return notify.New(db, email, slack, cfg.Notifications.MaxDeliveryAttempts)
}

func parseWatchID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid watch ID: %s", raw)
	}
	return id, nil
}

func requireWatch(db *database.DB, id int64) (*database.Watch, error) {
	watch, err := db.GetWatch(id)
	if err != nil {
		return nil, err
	}
	if watch == nil {
		return nil, fmt.Errorf("watch %d not found", id)
	}
	return watch, nil
}
