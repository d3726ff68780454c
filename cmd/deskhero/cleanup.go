package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/deskhero/deskhero/internal/cleanup"
	"github.com/deskhero/deskhero/internal/config"
	"github.com/deskhero/deskhero/internal/kvstore"
	"github.com/deskhero/deskhero/internal/logger"
	"github.com/deskhero/deskhero/internal/recovery"
	"github.com/deskhero/deskhero/internal/retention"
	"github.com/deskhero/deskhero/internal/sessions"
	"github.com/deskhero/deskhero/internal/store"
	"github.com/spf13/cobra"
)

var (
	cleanupConfigPath string
	cleanupDataTypes  []string
)

// cleanupCmd represents the cleanup command
var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Run retention cleanup manually",
	Long: `Trigger retention enforcement outside the daily schedule, or
inspect the current retention posture.`,
}

// cleanupRunCmd runs a one-shot cleanup pass.
var cleanupRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a cleanup pass now",
	Run: func(cmd *cobra.Command, args []string) {
		scheduler, teardown := cleanupScheduler()
		defer teardown()

		ctx, cancel := context.WithTimeout(context.Background(), time.Hour)
		defer cancel()

		jobs, err := scheduler.RunCleanup(ctx, cleanupDataTypes...)
		if err != nil {
			fmt.Printf("Cleanup failed: %v\n", err)
			os.Exit(1)
		}

		for _, job := range jobs {
			fmt.Printf("%-20s %-10s processed=%d affected=%d errors=%d\n",
				job.DataType, job.Status, job.RecordsProcessed, job.RecordsAffected, len(job.Errors))
		}
	},
}

// cleanupReportCmd prints the retention report as JSON.
var cleanupReportCmd = &cobra.Command{
	Use:   "report",
	Short: "Print the retention report",
	Run: func(cmd *cobra.Command, args []string) {
		scheduler, teardown := cleanupScheduler()
		defer teardown()

		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()

		report, err := scheduler.GetRetentionReport(ctx)
		if err != nil {
			fmt.Printf("Report failed: %v\n", err)
			os.Exit(1)
		}

		out, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			fmt.Printf("Failed to encode report: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(string(out))
	},
}

// cleanupScheduler wires a scheduler without arming the daily schedule.
// The returned teardown closes the stores.
func cleanupScheduler() (*cleanup.Scheduler, func()) {
	if err := config.LoadEnvOptional("./.env"); err != nil {
		fmt.Printf("Failed to load .env file: %v\n", err)
		os.Exit(1)
	}

	configPath := cleanupConfigPath
	if configPath == "" {
		configPath = "./config.toml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: "text",
		Output: "stdout",
	})
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	kv := kvstore.NewRedisClient(kvstore.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	db, err := store.New(cfg.Database.Path)
	if err != nil {
		fmt.Printf("Failed to open durable store: %v\n", err)
		os.Exit(1)
	}

	coordinator := recovery.NewCoordinator(
		kv,
		sessions.NewManager(db, log),
		db,
		recovery.NewConnectionTable(),
		nil,
		nil,
		log,
		recovery.Config{MaxMessageHistory: cfg.Recovery.MaxMessageHistory},
	)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := coordinator.Initialize(ctx); err != nil {
		fmt.Printf("Failed to reach fast store: %v\n", err)
		os.Exit(1)
	}

	policies := retention.NewEngine(kv, log)
	if err := policies.Load(ctx); err != nil {
		fmt.Printf("Failed to load retention policies: %v\n", err)
		os.Exit(1)
	}

	scheduler := cleanup.NewScheduler(kv, db, policies, coordinator, nil, nil, log,
		cleanup.Config{
			Enabled:    false,
			Hour:       cfg.Cleanup.Hour,
			BatchLimit: cfg.Cleanup.BatchLimit,
		})

	return scheduler, func() {
		_ = coordinator.Cleanup()
		_ = db.Close()
	}
}

func init() {
	cleanupCmd.PersistentFlags().StringVarP(&cleanupConfigPath, "config", "c", "", "Path to configuration file (default: ./config.toml)")
	cleanupRunCmd.Flags().StringSliceVarP(&cleanupDataTypes, "data-type", "t", nil, "Data types to clean (default: every type with a policy)")
	cleanupCmd.AddCommand(cleanupRunCmd)
	cleanupCmd.AddCommand(cleanupReportCmd)
}
