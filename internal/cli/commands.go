package cli

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"scams/internal/config"
	"scams/internal/database"
	"scams/internal/export"
	"scams/internal/models"
	"scams/internal/service"

	"github.com/spf13/cobra"
)

func (a *App) seedCmd() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Insert fixture rooms into an empty database",
		Example: `  scamsctl seed
  scamsctl seed --file=configs/rooms.yaml`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.open(); err != nil {
				return err
			}
			if file == "" {
				file = os.Getenv("ROOMS_PATH")
			}
			if file == "" {
				file = "configs/rooms.yaml"
			}

			rooms, err := config.LoadRooms(file)
			if err != nil {
				return fmt.Errorf("load rooms: %w", err)
			}
			n, err := a.db.SeedRooms(cmd.Context(), rooms)
			if err != nil {
				return fmt.Errorf("seed rooms: %w", err)
			}

			out := cmd.OutOrStdout()
			if n == 0 {
				colorWarn.Fprintln(out, "Rooms already present, nothing seeded.")
				return nil
			}
			colorOK.Fprintf(out, "Seeded %d rooms from %s\n", n, file)
			return nil
		},
	}

	cmd.Flags().StringVar(&file, "file", "", "room fixture file (default $ROOMS_PATH or configs/rooms.yaml)")
	return cmd
}

func (a *App) backupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "backup",
		Short: "Write a consistent snapshot of the database",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.open(); err != nil {
				return err
			}

			backups := database.NewBackupService(a.db, a.cfg.Backup, &a.logger)
			path, err := backups.PerformBackup(cmd.Context())
			if err != nil {
				return fmt.Errorf("backup: %w", err)
			}
			removed := backups.CleanupOldBackups()

			out := cmd.OutOrStdout()
			colorOK.Fprintf(out, "Backup written to %s\n", path)
			if removed > 0 {
				fmt.Fprintf(out, "Removed %d expired backups\n", removed)
			}
			return nil
		},
	}
}

func (a *App) exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export bookings or users to an Excel workbook",
	}
	cmd.AddCommand(a.exportBookingsCmd())
	cmd.AddCommand(a.exportUsersCmd())
	return cmd
}

func (a *App) exportBookingsCmd() *cobra.Command {
	var from, to, dir string

	cmd := &cobra.Command{
		Use:   "bookings",
		Short: "Export bookings of a date range",
		Long: `Export every booking dated within [from, to] (inclusive).

Without --to the range is the single day --from. Without either flag
the range is today.`,
		Example: `  scamsctl export bookings --from=2025-10-01 --to=2025-10-31
  scamsctl export bookings --from=2025-10-15 --dir=/tmp`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.open(); err != nil {
				return err
			}
			if from == "" {
				from = a.now().Format(models.DateLayout)
			}
			if to == "" {
				to = from
			}
			if dir == "" {
				dir = a.cfg.Exports.Path
			}

			svc := service.NewBookingService(a.db, nil, nil, a.cfg.Booking, a.now, &a.logger)
			bookings, err := svc.BookingsInRange(cmd.Context(), from, to)
			if err != nil {
				return err
			}
			path, err := export.SaveBookings(dir, bookings, from, to)
			if err != nil {
				return err
			}
			colorOK.Fprintf(cmd.OutOrStdout(), "Exported %d bookings to %s\n", len(bookings), path)
			return nil
		},
	}

	cmd.Flags().StringVar(&from, "from", "", "first date, YYYY-MM-DD (default today)")
	cmd.Flags().StringVar(&to, "to", "", "last date, YYYY-MM-DD (default --from)")
	cmd.Flags().StringVar(&dir, "dir", "", "output directory (default exports.path)")
	return cmd
}

func (a *App) exportUsersCmd() *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "users",
		Short: "Export all user accounts",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.open(); err != nil {
				return err
			}
			if dir == "" {
				dir = a.cfg.Exports.Path
			}

			users, err := a.db.ListUsers(cmd.Context())
			if err != nil {
				return fmt.Errorf("list users: %w", err)
			}
			path, err := export.SaveUsers(dir, users, a.now())
			if err != nil {
				return err
			}
			colorOK.Fprintf(cmd.OutOrStdout(), "Exported %d users to %s\n", len(users), path)
			return nil
		},
	}

	cmd.Flags().StringVar(&dir, "dir", "", "output directory (default exports.path)")
	return cmd
}

func (a *App) utilizationCmd() *cobra.Command {
	var date string

	cmd := &cobra.Command{
		Use:   "utilization",
		Short: "Print room utilization for a day",
		Example: `  scamsctl utilization
  scamsctl utilization --date=2025-10-15`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.open(); err != nil {
				return err
			}

			svc := service.NewAnalyticsService(a.db, a.cfg.Booking, a.now)
			summary, err := svc.UtilizationReport(cmd.Context(), date)
			if err != nil {
				return err
			}
			printUtilization(cmd.OutOrStdout(), summary)
			return nil
		},
	}

	cmd.Flags().StringVar(&date, "date", "", "day to report, YYYY-MM-DD (default today)")
	return cmd
}

func printUtilization(out io.Writer, summary models.UtilizationSummary) {
	colorHeader.Fprintf(out, "=== Utilization %s ===\n", summary.Date)
	if len(summary.Rooms) == 0 {
		fmt.Fprintln(out, "No rooms.")
		return
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ROOM\tBOOKINGS\tHOURS\tLOAD")
	for _, st := range summary.Rooms {
		fmt.Fprintf(tw, "%s\t%d\t%.1f\t%s\n", st.RoomName, st.BookingCount, st.HoursBooked, loadColor(st.Percentage).Sprintf("%d%%", st.Percentage))
	}
	_ = tw.Flush()
	colorHeader.Fprintf(out, "Average: %d%%\n", summary.Average)
}
