package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/avellora/caresync/internal/appointments"
	"github.com/avellora/caresync/internal/auth"
)

const apptTimeLayout = "2006-01-02 15:04"

func newAppointmentsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "appointments",
		Aliases: []string{"appt"},
		Short:   "Book and manage appointments",
	}

	cmd.AddCommand(newApptBookCmd())
	cmd.AddCommand(newApptListCmd())
	cmd.AddCommand(newApptConfirmCmd())
	cmd.AddCommand(newApptCancelCmd())
	cmd.AddCommand(newApptRescheduleCmd())
	cmd.AddCommand(newApptCalendarCmd())
	return cmd
}

func newApptBookCmd() *cobra.Command {
	var (
		configPath string
		at         string
		duration   int
		reason     string
	)

	cmd := &cobra.Command{
		Use:   "book <specialist-id>",
		Short: "Request an appointment with a specialist",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApptBook(cmd, configPath, args[0], at, duration, reason)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to CareSync config file")
	cmd.Flags().StringVar(&at, "at", "", "slot in local time, e.g. \"2026-09-15 14:00\" (required)")
	cmd.Flags().IntVar(&duration, "duration", appointments.DefaultDurationMin, "duration in minutes")
	cmd.Flags().StringVar(&reason, "reason", "", "reason for the visit")
	cmd.MarkFlagRequired("at")
	return cmd
}

func runApptBook(cmd *cobra.Command, configPath, specialistID, at string, duration int, reason string) error {
	out := cmd.OutOrStdout()

	_, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}
	profile, err := auth.LastProfile(gormDB)
	if err != nil {
		return fmt.Errorf("run `caresync login` first: %w", err)
	}

	when, err := time.ParseInLocation(apptTimeLayout, at, time.Local)
	if err != nil {
		return fmt.Errorf("parse --at %q (want \"%s\"): %w", at, apptTimeLayout, err)
	}

	appt, err := appointments.Book(gormDB, profile.UserID, specialistID, when, duration, reason)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Requested appointment %s\n", appt.ID)
	fmt.Fprintf(out, "%s for %d minutes\n", appt.ScheduledAt.Format(apptTimeLayout), appt.DurationMin)
	return nil
}

func newApptListCmd() *cobra.Command {
	var (
		configPath string
		history    bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List your appointments",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApptList(cmd, configPath, history)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to CareSync config file")
	cmd.Flags().BoolVar(&history, "history", false, "show past, completed and cancelled appointments")
	return cmd
}

func runApptList(cmd *cobra.Command, configPath string, history bool) error {
	out := cmd.OutOrStdout()

	_, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}
	profile, err := auth.LastProfile(gormDB)
	if err != nil {
		return fmt.Errorf("run `caresync login` first: %w", err)
	}

	list := appointments.Upcoming
	if history {
		list = appointments.History
	}
	appts, err := list(gormDB, profile.UserID)
	if err != nil {
		return err
	}
	if len(appts) == 0 {
		fmt.Fprintln(out, "No appointments.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tWHEN\tMIN\tSTATUS\tSPECIALIST\tREASON")
	for _, a := range appts {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\t%s\n",
			a.ID, a.ScheduledAt.Format(apptTimeLayout), a.DurationMin, a.Status, a.SpecialistID, a.Reason)
	}
	w.Flush()
	return nil
}

func newApptConfirmCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "confirm <appointment-id>",
		Short: "Confirm a requested appointment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			if err := appointments.Confirm(gormDB, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Confirmed appointment %s\n", args[0])
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to CareSync config file")
	return cmd
}

func newApptCancelCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "cancel <appointment-id>",
		Short: "Cancel an appointment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			if err := appointments.Cancel(gormDB, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Cancelled appointment %s\n", args[0])
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to CareSync config file")
	return cmd
}

func newApptRescheduleCmd() *cobra.Command {
	var (
		configPath string
		at         string
	)

	cmd := &cobra.Command{
		Use:   "reschedule <appointment-id>",
		Short: "Move an appointment to a new slot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			when, err := time.ParseInLocation(apptTimeLayout, at, time.Local)
			if err != nil {
				return fmt.Errorf("parse --at %q (want \"%s\"): %w", at, apptTimeLayout, err)
			}
			appt, err := appointments.Reschedule(gormDB, args[0], when)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Rescheduled appointment %s to %s (awaiting confirmation)\n",
				appt.ID, appt.ScheduledAt.Format(apptTimeLayout))
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to CareSync config file")
	cmd.Flags().StringVar(&at, "at", "", "new slot in local time, e.g. \"2026-09-15 14:00\" (required)")
	cmd.MarkFlagRequired("at")
	return cmd
}

func newApptCalendarCmd() *cobra.Command {
	var (
		configPath string
		month      string
	)

	cmd := &cobra.Command{
		Use:   "calendar",
		Short: "Show a month view of your appointments",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApptCalendar(cmd, configPath, month)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to CareSync config file")
	cmd.Flags().StringVar(&month, "month", "", "month to show, e.g. \"2026-09\" (default: current)")
	return cmd
}

func runApptCalendar(cmd *cobra.Command, configPath, month string) error {
	out := cmd.OutOrStdout()

	_, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}
	profile, err := auth.LastProfile(gormDB)
	if err != nil {
		return fmt.Errorf("run `caresync login` first: %w", err)
	}

	now := time.Now()
	year, m := now.Year(), now.Month()
	if month != "" {
		parsed, err := time.Parse("2006-01", month)
		if err != nil {
			return fmt.Errorf("parse --month %q (want \"2006-01\"): %w", month, err)
		}
		year, m = parsed.Year(), parsed.Month()
	}

	cells, err := appointments.MonthGrid(gormDB, profile.UserID, year, m)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "%s %d\n", m, year)
	fmt.Fprintln(out, "Mo Tu We Th Fr Sa Su")
	// Leading blanks up to the weekday of day 1 (Monday-first).
	offset := (int(cells[0].Date.Weekday()) + 6) % 7
	for i := 0; i < offset; i++ {
		fmt.Fprint(out, "   ")
	}
	for _, cell := range cells {
		mark := " "
		if cell.Count > 0 {
			mark = "*"
		}
		fmt.Fprintf(out, "%2d%s", cell.Day, mark)
		if (offset+cell.Day)%7 == 0 {
			fmt.Fprintln(out)
		}
	}
	fmt.Fprintln(out)
	fmt.Fprintln(out, "* = day with appointments")
	return nil
}
