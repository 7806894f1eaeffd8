// Package cli implements scamsctl, the administration tool that works
// directly against the booking database.
package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"scams/internal/config"
	"scams/internal/crypto"
	"scams/internal/database"
	"scams/internal/logging"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	// Version is set at build time
	Version = "dev"
	// Commit is set at build time
	Commit = "none"
)

var (
	colorHeader = color.New(color.Bold)
	colorOK     = color.New(color.FgGreen)
	colorWarn   = color.New(color.FgYellow)
	colorBusy   = color.New(color.FgRed, color.Bold)
)

// App holds the CLI state. The database is opened lazily by commands that need it.
type App struct {
	configPath string
	noColor    bool

	cfg    *config.Config
	db     *database.DB
	ownsDB bool
	logger zerolog.Logger
	now    func() time.Time
	root   *cobra.Command
}

func NewApp() *App {
	a := &App{logger: zerolog.Nop()}

	a.root = &cobra.Command{
		Use:   "scamsctl",
		Short: "Administration tool for the room booking service",
		Long: `scamsctl works directly against the booking database configured in
config.yaml. It seeds rooms, takes backups, exports bookings and users
to Excel and prints room utilization.`,
		SilenceUsage: true,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			if a.noColor {
				color.NoColor = true
			}
		},
		PersistentPostRun: func(_ *cobra.Command, _ []string) {
			if a.ownsDB && a.db != nil {
				_ = a.db.Close()
				a.db = nil
			}
		},
	}

	a.root.PersistentFlags().StringVar(&a.configPath, "config", defaultConfigPath(), "path to config.yaml")
	a.root.PersistentFlags().BoolVar(&a.noColor, "no-color", false, "disable colored output")

	a.root.AddCommand(a.versionCmd())
	a.root.AddCommand(a.seedCmd())
	a.root.AddCommand(a.backupCmd())
	a.root.AddCommand(a.exportCmd())
	a.root.AddCommand(a.utilizationCmd())

	return a
}

func defaultConfigPath() string {
	if p := os.Getenv("CONFIG_PATH"); p != "" {
		return p
	}
	return "configs/config.yaml"
}

// Execute runs the CLI application.
func (a *App) Execute(ctx context.Context) error {
	return a.root.ExecuteContext(ctx)
}

func (a *App) versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "scamsctl %s (commit: %s)\n", Version, Commit)
		},
	}
}

// open loads the config and the database once per invocation.
func (a *App) open() error {
	if a.cfg == nil {
		cfg, err := config.Load(a.configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		a.cfg = cfg
		a.logger = logging.NewWithWriter(cfg.Logging, cfg.App, os.Stderr).With().Str("component", "scamsctl").Logger()
	}
	if a.now == nil {
		loc, err := a.cfg.Booking.Location()
		if err != nil {
			return fmt.Errorf("booking timezone: %w", err)
		}
		a.now = func() time.Time { return time.Now().In(loc) }
	}
	if a.db != nil {
		return nil
	}

	key, err := a.cfg.Security.Key()
	if err != nil {
		return err
	}
	cipher, err := crypto.New(key)
	if err != nil {
		return err
	}
	db, err := database.NewDB(a.cfg.Database.Path, &a.logger)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	db.SetCipher(cipher)
	a.db = db
	a.ownsDB = true
	return nil
}

// loadColor highlights busy rooms.
func loadColor(percentage int) *color.Color {
	switch {
	case percentage >= 80:
		return colorBusy
	case percentage >= 50:
		return colorWarn
	}
	return colorOK
}
