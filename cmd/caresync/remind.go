package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/avellora/caresync/internal/config"
	"github.com/avellora/caresync/internal/notify"
	"github.com/avellora/caresync/internal/notify/discord"
	"github.com/avellora/caresync/internal/notify/slack"
)

func newRemindCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "remind",
		Short: "Appointment reminder delivery",
	}

	cmd.AddCommand(newRemindSweepCmd())
	cmd.AddCommand(newRemindRunCmd())
	return cmd
}

func newRemindSweepCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Send due reminders once and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRemindSweep(cmd, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to CareSync config file")
	return cmd
}

func runRemindSweep(cmd *cobra.Command, configPath string) error {
	out := cmd.OutOrStdout()

	scheduler, err := schedulerFromConfig(configPath)
	if err != nil {
		return err
	}
	n, err := scheduler.Sweep(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Sent %d reminders\n", n)
	return nil
}

func newRemindRunCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the reminder scheduler until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRemindRun(cmd, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to CareSync config file")
	return cmd
}

func runRemindRun(cmd *cobra.Command, configPath string) error {
	out := cmd.OutOrStdout()

	scheduler, err := schedulerFromConfig(configPath)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Fprintln(out, "Reminder scheduler running (Ctrl-C to stop)...")
	scheduler.Run(ctx)
	fmt.Fprintln(out, "Stopped.")
	return nil
}

// schedulerFromConfig builds the reminder scheduler with every notifier the
// config has credentials for.
func schedulerFromConfig(configPath string) (*notify.Scheduler, error) {
	cfg, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return nil, err
	}

	notifiers, err := notifiersFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	if len(notifiers) == 0 {
		return nil, fmt.Errorf("no notifiers configured — set notify.slack or notify.discord in %s", configPath)
	}

	return notify.NewScheduler(notify.SchedulerOpts{
		DB:          gormDB,
		Notifiers:   notifiers,
		LeadMinutes: cfg.Notify.Reminder.LeadMinutes,
		Cron:        cfg.Notify.Reminder.Cron,
	})
}

func notifiersFromConfig(cfg *config.Config) ([]notify.Notifier, error) {
	var notifiers []notify.Notifier
	if cfg.Notify.Slack.BotToken != "" {
		n, err := slack.New(slack.Opts{
			BotToken:  cfg.Notify.Slack.BotToken,
			ChannelID: cfg.Notify.Slack.ChannelID,
		})
		if err != nil {
			return nil, err
		}
		notifiers = append(notifiers, n)
	}
	if cfg.Notify.Discord.BotToken != "" {
		n, err := discord.New(discord.Opts{
			BotToken:  cfg.Notify.Discord.BotToken,
			ChannelID: cfg.Notify.Discord.ChannelID,
		})
		if err != nil {
			return nil, err
		}
		notifiers = append(notifiers, n)
	}
	return notifiers, nil
}
