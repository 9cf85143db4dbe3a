// reminderctl inspects and repairs the notification window of a running
// reminder daemon through its admin API.
package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/reminders/internal/handler"
)

func main() {
	if err := newRootCommand(os.Stdout).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand(out io.Writer) *cobra.Command {
	var api *client
	v := viper.New()

	root := &cobra.Command{
		Use:          "reminderctl",
		Short:        "Inspect and repair scheduled medication reminders",
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			api = newClient(v.GetString("server"), v.GetDuration("timeout"))
		},
	}
	root.SetOut(out)

	flags := root.PersistentFlags()
	flags.String("server", "http://localhost:8080", "Base URL of the reminder daemon (env REMINDERS_URL)")
	flags.Duration("timeout", 30*time.Second, "Request timeout (env REMINDERS_TIMEOUT)")

	// flags win over the environment, which wins over flag defaults
	_ = v.BindPFlag("server", flags.Lookup("server"))
	_ = v.BindPFlag("timeout", flags.Lookup("timeout"))
	_ = v.BindEnv("server", "REMINDERS_URL")
	_ = v.BindEnv("timeout", "REMINDERS_TIMEOUT")

	clientFn := func() *client { return api }

	root.AddCommand(
		scheduledCommand(clientFn),
		orphansCommand(clientFn),
		rescheduleCommand(clientFn),
		refreshCommand(clientFn),
		toggleCommand(clientFn),
		errorsCommand(clientFn),
	)
	return root
}

func scheduledCommand(api func() *client) *cobra.Command {
	return &cobra.Command{
		Use:   "scheduled",
		Short: "List pending notifications in trigger order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			pending, err := api().scheduled(cmd.Context())
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "TRIGGER\tID\tCATEGORY\tTITLE")
			for _, n := range pending {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", n.Trigger.Local().Format(time.RFC3339), n.ID, n.Category, n.Title)
			}
			if err := w.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d pending\n", len(pending))
			return nil
		},
	}
}

func orphansCommand(api func() *client) *cobra.Command {
	var repair bool

	cmd := &cobra.Command{
		Use:   "orphans",
		Short: "Report mappings and notifications that disagree",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			report, err := api().orphans(cmd.Context(), repair)
			if err != nil {
				return err
			}
			printOrphanReport(cmd.OutOrStdout(), report, repair)
			return nil
		},
	}
	cmd.Flags().BoolVar(&repair, "repair", false, "Delete orphaned mappings and cancel unmapped notifications")
	return cmd
}

func printOrphanReport(out io.Writer, report *handler.OrphanReportResponse, repaired bool) {
	fmt.Fprintf(out, "mappings: %d, scheduled: %d\n", report.MappingCount, report.ScheduledCount)
	if report.Clean {
		fmt.Fprintln(out, "no orphans")
		return
	}

	verb := "found"
	if repaired {
		verb = "repaired"
	}
	for _, m := range report.OrphanedMappings {
		fmt.Fprintf(out, "%s orphaned mapping %s -> %s (%s, %s)\n", verb, m.ID, m.NotificationID, m.Kind, m.Date)
	}
	for _, n := range report.UnmappedNotifications {
		fmt.Fprintf(out, "%s unmapped notification %s (%s at %s)\n", verb, n.ID, n.Category, n.Trigger.Format(time.RFC3339))
	}
}

func rescheduleCommand(api func() *client) *cobra.Command {
	return &cobra.Command{
		Use:   "reschedule",
		Short: "Cancel every notification and rebuild the window",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := api().rescheduleAll(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "rescheduled")
			return nil
		},
	}
}

func refreshCommand(api func() *client) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Top up the window without cancelling anything",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := api().refresh(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "refreshed")
			return nil
		},
	}
}

func toggleCommand(api func() *client) *cobra.Command {
	return &cobra.Command{
		Use:       "toggle on|off",
		Short:     "Turn all reminders on or off",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"on", "off"},
		RunE: func(cmd *cobra.Command, args []string) error {
			var enabled bool
			switch strings.ToLower(args[0]) {
			case "on":
				enabled = true
			case "off":
				enabled = false
			default:
				return fmt.Errorf("expected on or off, got %q", args[0])
			}

			if err := api().setEnabled(cmd.Context(), enabled); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "notifications %s\n", strings.ToLower(args[0]))
			return nil
		},
	}
}

func errorsCommand(api func() *client) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "errors",
		Short: "Show recent engine errors",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := api().recentErrors(cmd.Context(), limit)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "TIME\tSEVERITY\tCATEGORY\tMESSAGE")
			for _, e := range entries {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", e.Timestamp.Local().Format(time.RFC3339), e.Severity, e.Category, e.Message)
			}
			return w.Flush()
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "Number of entries to show")
	return cmd
}
