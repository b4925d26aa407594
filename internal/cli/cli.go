package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	internal_http "github.com/bizflow/autopilot/internal/http"
	"github.com/bizflow/autopilot/internal/log"
	internal_storage "github.com/bizflow/autopilot/internal/storage"
	"github.com/bizflow/autopilot/pkg/ai"
	"github.com/bizflow/autopilot/pkg/models"
	"github.com/bizflow/autopilot/pkg/service"
	"github.com/spf13/cobra"
)

func SetupCLI(rootCmd *cobra.Command) {
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server and the follow-up scheduler",
		Run: func(cmd *cobra.Command, args []string) {
			store := initStore(connStr(cmd))
			defer store.Close()
			svc := newService(store)

			port, _ := cmd.Flags().GetString("port")
			interval, _ := cmd.Flags().GetDuration("interval")
			workers, _ := cmd.Flags().GetInt("workers")

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			scheduler := service.NewScheduler(ctx, store, svc.Generator(), log.GetLogger(), interval, workers)
			go func() {
				if err := scheduler.Run(ctx); err != nil && err != context.Canceled {
					log.GetLogger().Errorf("Scheduler stopped: %v", err)
				}
			}()

			if err := internal_http.StartServer(port, svc); err != nil {
				log.GetLogger().Errorf("Server failed: %v", err)
				os.Exit(1)
			}
		},
	}
	serveCmd.Flags().String("port", "8080", "HTTP port to listen on")
	serveCmd.Flags().Duration("interval", service.DefaultPollInterval, "Scheduler poll interval")
	serveCmd.Flags().Int("workers", service.DefaultWorkers, "Concurrent generation workers")

	runOnceCmd := &cobra.Command{
		Use:   "run-once",
		Short: "Process all currently due follow-up tasks and exit",
		Run: func(cmd *cobra.Command, args []string) {
			store := initStore(connStr(cmd))
			defer store.Close()
			svc := newService(store)

			workers, _ := cmd.Flags().GetInt("workers")
			ctx := context.Background()
			scheduler := service.NewScheduler(ctx, store, svc.Generator(), log.GetLogger(), time.Minute, workers)
			if err := scheduler.RunOnce(ctx); err != nil {
				log.GetLogger().Errorf("Run failed: %v", err)
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			fmt.Fprintln(os.Stdout, "Processed due follow-up tasks")
		},
	}
	runOnceCmd.Flags().Int("workers", service.DefaultWorkers, "Concurrent generation workers")

	listActionsCmd := &cobra.Command{
		Use:   "list-actions",
		Short: "List automation actions, optionally filtered by status",
		Run: func(cmd *cobra.Command, args []string) {
			store := initStore(connStr(cmd))
			defer store.Close()
			svc := newService(store)

			status, _ := cmd.Flags().GetString("status")
			actions, err := svc.ListActions(models.ActionStatus(status))
			if err != nil {
				log.GetLogger().Errorf("Failed to list actions: %v", err)
				fmt.Fprintf(os.Stderr, "Error: failed to list actions: %v\n", err)
				os.Exit(1)
			}
			if len(actions) == 0 {
				fmt.Fprintln(os.Stdout, "No actions found.")
				return
			}
			for _, a := range actions {
				fmt.Fprintf(os.Stdout, "- ID: %s, Task: %s, Status: %s, Confidence: %.2f, Subject: %s\n",
					a.ID, a.TaskID, a.Status, a.Confidence, a.Proposed.Subject)
			}
		},
	}
	listActionsCmd.Flags().String("status", "", "Filter by action status (pending, approved, rejected)")

	approveCmd := &cobra.Command{
		Use:   "approve [action-id]",
		Short: "Approve a pending automation action",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			store := initStore(connStr(cmd))
			defer store.Close()
			svc := newService(store)

			action, err := svc.Approve(context.Background(), args[0])
			if err != nil {
				log.GetLogger().Errorf("Failed to approve action: %v", err)
				fmt.Fprintf(os.Stderr, "Error: failed to approve action: %v\n", err)
				os.Exit(1)
			}
			fmt.Fprintf(os.Stdout, "Approved action %s ('%s')\n", action.ID, action.Proposed.Subject)
		},
	}

	rejectCmd := &cobra.Command{
		Use:   "reject [action-id]",
		Short: "Reject a pending automation action",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			store := initStore(connStr(cmd))
			defer store.Close()
			svc := newService(store)

			reason, _ := cmd.Flags().GetString("reason")
			action, err := svc.Reject(context.Background(), args[0], reason)
			if err != nil {
				log.GetLogger().Errorf("Failed to reject action: %v", err)
				fmt.Fprintf(os.Stderr, "Error: failed to reject action: %v\n", err)
				os.Exit(1)
			}
			fmt.Fprintf(os.Stdout, "Rejected action %s: %s\n", action.ID, action.RejectionReason)
		},
	}
	rejectCmd.Flags().String("reason", "", "Rejection reason (defaults to a generic one)")

	automationCmd := &cobra.Command{
		Use:   "automation [on|off]",
		Short: "Enable or disable the automation engine globally",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			var enabled bool
			switch args[0] {
			case "on":
				enabled = true
			case "off":
				enabled = false
			default:
				fmt.Fprintln(os.Stderr, "Error: argument must be 'on' or 'off'")
				os.Exit(1)
			}
			store := initStore(connStr(cmd))
			defer store.Close()
			svc := newService(store)

			settings, err := svc.ToggleAutomation(enabled)
			if err != nil {
				log.GetLogger().Errorf("Failed to toggle automation: %v", err)
				fmt.Fprintf(os.Stderr, "Error: failed to toggle automation: %v\n", err)
				os.Exit(1)
			}
			fmt.Fprintf(os.Stdout, "Automation is now enabled=%t (version %d)\n", settings.Enabled, settings.Version)
		},
	}

	rootCmd.AddCommand(serveCmd, runOnceCmd, listActionsCmd, approveCmd, rejectCmd, automationCmd)
}

func connStr(cmd *cobra.Command) string {
	dbConnStr, err := cmd.Flags().GetString("db")
	if err != nil {
		log.GetLogger().Errorf("Error retrieving db flag: %v", err)
		os.Exit(1)
	}
	if dbConnStr == "" {
		dbConnStr = os.Getenv("DATABASE_URL")
	}
	if dbConnStr == "" {
		fmt.Fprintln(os.Stderr, "Error: --db flag or DATABASE_URL env var required")
		os.Exit(1)
	}
	return dbConnStr
}

func initStore(dbConnStr string) *internal_storage.PostgresStore {
	store, err := internal_storage.InitStore(dbConnStr)
	if err != nil {
		log.GetLogger().Errorf("Failed to initialize store: %v", err)
		os.Exit(1)
	}
	return store
}

// newService wires the façade. Without an OPENAI_API_KEY the engine runs in
// fallback-only mode: every analysis and draft comes from the deterministic
// path.
func newService(store *internal_storage.PostgresStore) *service.AutomationService {
	var client ai.Completer
	if os.Getenv("OPENAI_API_KEY") != "" {
		c, err := ai.NewCompletionClient(ai.ClientConfig{
			APIKey:  os.Getenv("OPENAI_API_KEY"),
			BaseURL: os.Getenv("OPENAI_BASE_URL"),
		})
		if err != nil {
			log.GetLogger().Errorf("Failed to initialize completion client: %v", err)
			os.Exit(1)
		}
		client = c
	} else {
		log.GetLogger().Warn("OPENAI_API_KEY not set; running with deterministic fallbacks only")
	}
	return service.NewAutomationService(store, client, nil, log.GetLogger())
}
