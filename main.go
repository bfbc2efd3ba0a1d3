package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	api "mentorhub-backend/cmd/api"
	kpiUsecase "mentorhub-backend/internal/kpi/usecase"
	"mentorhub-backend/internal/listener"
	notifUsecase "mentorhub-backend/internal/notification/usecase"
	"mentorhub-backend/pkg/config"

	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "mentorhub",
		Short:        "Push notification dispatch for the MentorHub dashboard",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(triggersCmd())
	rootCmd.AddCommand(tokenCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func serveCmd() *cobra.Command {
	var shutdownTimeout time.Duration
	var noListener bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the operator API, run scheduled triggers and listen for document changes",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			a.scheduler.Start()

			// Only start the listener if a subscription is configured
			if !noListener && cfg.PubSubSubscription != "" {
				sub, err := listener.NewSubscriber(ctx, cfg.GoogleProjectID, cfg.PubSubSubscription, cfg.FirebaseCredentials, a.processor)
				if err != nil {
					log.Printf("[ERROR] Failed to initialize change listener: %v", err)
				} else {
					defer sub.Close()
					go func() {
						if err := sub.Start(ctx); err != nil {
							log.Printf("[ERROR] Change listener stopped: %v", err)
						}
					}()
				}
			} else {
				log.Printf("[WARN] Change listener disabled")
			}

			handler := api.NewHandler(a.auth, a.scheduler, a.processor, kpiUsecase.TriggerName, cfg)
			errCh := make(chan error, 1)
			go func() {
				errCh <- handler.Start(":" + cfg.Port)
			}()

			select {
			case err := <-errCh:
				if err != nil {
					return fmt.Errorf("failed to start server: %w", err)
				}
			case <-ctx.Done():
				log.Println("Shutting down")
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := handler.Shutdown(shutdownCtx); err != nil {
				log.Printf("Error during server shutdown: %v", err)
			}
			a.scheduler.Stop(shutdownCtx)
			return nil
		},
	}

	cmd.Flags().DurationVar(&shutdownTimeout, "shutdown-timeout", 30*time.Second, "how long to wait for running triggers on shutdown")
	cmd.Flags().BoolVar(&noListener, "no-listener", false, "do not subscribe to document changes")
	return cmd
}

func runCmd() *cobra.Command {
	var opts notifUsecase.Options

	cmd := &cobra.Command{
		Use:   "run [trigger]",
		Short: "Run one trigger now and print its summary",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			summary, runID, runErr := a.scheduler.Run(ctx, args[0], opts)
			if summary != nil {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				if err := enc.Encode(summary); err != nil {
					return err
				}
			}
			if runErr != nil {
				return fmt.Errorf("run %s: %w", runID, runErr)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "resolve and filter recipients without sending")
	cmd.Flags().BoolVar(&opts.Force, "force", false, "ignore earlier sends in the current period")
	return cmd
}

func triggersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "triggers",
		Short: "List the scheduled triggers and their effective schedules",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			schedules, err := config.LoadSchedules(cfg.ScheduleFile, defaultSchedules, cfg.Timezone)
			if err != nil {
				return err
			}

			names := make([]string, 0, len(schedules))
			for name := range schedules {
				names = append(names, name)
			}
			sort.Strings(names)

			out := cmd.OutOrStdout()
			for _, name := range names {
				s := schedules[name]
				state := "enabled"
				if !s.Enabled {
					state = "disabled"
				}
				fmt.Fprintf(out, "%-26s %-14s %-16s %s\n", name, s.Spec, s.Timezone, state)
			}
			return nil
		},
	}
}

func tokenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "token [userID]",
		Short: "Issue an API token for a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			ctx := context.Background()
			a, err := newApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			token, err := a.auth.IssueToken(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
}
