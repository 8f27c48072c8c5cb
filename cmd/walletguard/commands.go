package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strings"
	"syscall"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"WalletGuard/internal/api"
	"WalletGuard/internal/events"
	"WalletGuard/internal/guard"
	"WalletGuard/internal/ledger"
	"WalletGuard/internal/model"
	"WalletGuard/internal/notifier"
	"WalletGuard/internal/payment"
	"WalletGuard/internal/scheduler"
)

// withApp loads config, builds the app and runs fn with a context that is
// cancelled on SIGINT or SIGTERM.
func withApp(fn func(ctx context.Context, a *app) error) error {
	logger, err := newLogger()
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, scheduled jobs and Telegram bot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(serve)
		},
	}
}

func serve(ctx context.Context, a *app) error {
	cfg, logger := a.cfg, a.logger
	logger.Info("WalletGuard starting", zap.String("addr", cfg.Server.Addr))

	horizon := ledger.NewHorizonClient(cfg.Ledger.HorizonURL, cfg.Proxy, cfg.Ledger.Timeout)
	logger.Info("ledger ready", zap.String("ledger", horizon.Name()), zap.String("url", cfg.Ledger.HorizonURL))
	sender := payment.NewSender(a.guard, horizon, logger)

	sched := scheduler.NewScheduler(ctx, a.guard, a.notifier, a.recorder, logger)
	sched.Snapshot = a.snapshot
	if err := sched.RegisterAll(cfg.Schedule.SweepCron, cfg.Schedule.AnalyticsCron, cfg.Schedule.SnapshotCron); err != nil {
		return fmt.Errorf("register cron tasks: %w", err)
	}
	sched.Start()
	defer sched.Stop()

	if a.notifier != nil {
		go a.alerter.Run(ctx)
		go a.notifier.StartPolling(ctx, sched.HandleCommand)
		logger.Info("Telegram polling started")
	}

	if cfg.Schedule.RunOnStart {
		logger.Info("run_on_start enabled, sweeping windows now")
		go sched.RunSweepNow()
	}

	srv := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: api.NewServer(a.guard, sender, a.metrics, logger).Router(),
	}
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	logger.Info("WalletGuard is running. Press Ctrl+C to stop.")

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received, stopping...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown", zap.Error(err))
	}
	logger.Info("WalletGuard stopped")
	return nil
}

func infoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info <wallet>",
		Short: "Print a wallet's limits and current spending",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app) error {
				info, err := a.guard.SpendingInfo(ctx, args[0])
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), plain(notifier.FormatSpendingInfo(args[0], info)))
				return nil
			})
		},
	}
}

func validateCmd() *cobra.Command {
	var memo string
	cmd := &cobra.Command{
		Use:   "validate <wallet> <amount> <recipient>",
		Short: "Validate a transfer and consume the allowance if it is approved",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := decimal.NewFromString(args[1])
			if err != nil {
				return fmt.Errorf("parse amount %q: %w", args[1], err)
			}
			return withApp(func(ctx context.Context, a *app) error {
				d, err := a.guard.Validate(ctx, guard.ValidateRequest{
					WalletKey: args[0],
					Amount:    amount,
					Recipient: args[2],
					Memo:      memo,
				})
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintln(out, d.Message())
				for _, reason := range d.Errors {
					fmt.Fprintln(out, "  -", reason)
				}
				if d.TrustedRecipient {
					fmt.Fprintln(out, "  recipient is a trusted contact")
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&memo, "memo", "", "transaction memo")
	return cmd
}

func resetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset <wallet>",
		Short: "Zero a wallet's spend counters and restart both windows",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app) error {
				if _, err := a.guard.ResetSpending(ctx, args[0]); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Spending limits reset successfully")
				return nil
			})
		},
	}
}

func watchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Stream guard events published to Redis",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(func(ctx context.Context, a *app) error {
				if a.rdb == nil {
					return errors.New("redis.addr is required to watch events")
				}
				out := cmd.OutOrStdout()
				err := events.Subscribe(ctx, a.rdb, a.cfg.Redis.Channel, func(evt model.Event) {
					fmt.Fprintln(out, plain(notifier.FormatAlert(evt)))
				})
				if errors.Is(err, context.Canceled) {
					return nil
				}
				return err
			})
		},
	}
}

var htmlTags = strings.NewReplacer("<b>", "", "</b>", "", "&lt;", "<", "&gt;", ">", "&amp;", "&")

// plain strips the Telegram HTML markup from a formatted message.
func plain(s string) string { return htmlTags.Replace(s) }
