package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/taskflow/core/internal/infrastructure/config"
	"github.com/taskflow/core/internal/infrastructure/database"
	"github.com/taskflow/core/internal/infrastructure/logger"
	"github.com/taskflow/core/internal/infrastructure/scheduler"
	"github.com/taskflow/core/internal/infrastructure/server"
	"github.com/taskflow/core/internal/ports"
)

// Set at build time with -ldflags.
var (
	Version   = "dev"
	GitCommit = "unknown"
)

const reminderJob = "due-date-reminders"

// NewServeCommand creates the serve command
func NewServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the TaskFlow API server",
		Long:  "Start the HTTP server with the GraphQL endpoint, REST routes and the reminder scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
	}
}

// NewMigrateCommand creates the migrate command with subcommands
func NewMigrateCommand() *cobra.Command {
	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Database migration commands",
		Long:  "Manage database migrations (up, down, version)",
	}

	var steps int
	for _, direction := range []string{"up", "down"} {
		cmd := &cobra.Command{
			Use:   direction,
			Short: fmt.Sprintf("Run %s migrations", direction),
			RunE: func(cmd *cobra.Command, args []string) error {
				return runMigration(direction, steps)
			},
		}
		cmd.Flags().IntVar(&steps, "steps", 0, "Number of migrations to apply (0 = all)")
		migrateCmd.AddCommand(cmd)
	}

	migrateCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print current migration version",
		RunE: func(cmd *cobra.Command, args []string) error {
			return showMigrationVersion()
		},
	})

	return migrateCmd
}

// NewUserCommand creates the user management command
func NewUserCommand() *cobra.Command {
	userCmd := &cobra.Command{
		Use:   "user",
		Short: "User management commands",
	}

	var req ports.RegisterRequest
	createUserCmd := &cobra.Command{
		Use:   "create",
		Short: "Create a local account",
		RunE: func(cmd *cobra.Command, args []string) error {
			return createUser(cmd.Context(), req)
		},
	}

	createUserCmd.Flags().StringVar(&req.Email, "email", "", "User email (required)")
	createUserCmd.Flags().StringVar(&req.Password, "password", "", "User password, at least 8 characters (required)")
	createUserCmd.Flags().StringVar(&req.Name, "name", "", "Display name (required)")
	_ = createUserCmd.MarkFlagRequired("email")
	_ = createUserCmd.MarkFlagRequired("password")
	_ = createUserCmd.MarkFlagRequired("name")

	userCmd.AddCommand(createUserCmd)
	return userCmd
}

// NewRemindersCommand runs the due-date scan once.
func NewRemindersCommand() *cobra.Command {
	remindersCmd := &cobra.Command{
		Use:   "reminders",
		Short: "Due-date reminder commands",
	}

	remindersCmd.AddCommand(&cobra.Command{
		Use:   "run",
		Short: "Notify assignees of cards due within the configured window",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReminders(cmd.Context())
		},
	})

	return remindersCmd
}

// NewVersionCommand creates the version command
func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print TaskFlow version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("TaskFlow Core %s (%s)\n", Version, GitCommit)
		},
	}
}

func bootstrap() (*config.Config, *logger.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	appLogger, err := logger.New(cfg.Logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return cfg, appLogger, nil
}

func runServer(parent context.Context) error {
	cfg, appLogger, err := bootstrap()
	if err != nil {
		return err
	}
	defer appLogger.Close()

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := server.NewRuntime(ctx, cfg, appLogger)
	if err != nil {
		appLogger.Errorw("Failed to initialize runtime", "error", err)
		return err
	}
	defer func() {
		if err := rt.Close(); err != nil {
			appLogger.Warnw("Failed to close connections", "error", err)
		}
	}()

	srv, err := server.New(rt)
	if err != nil {
		appLogger.Errorw("Failed to initialize server", "error", err)
		return err
	}

	if cfg.Scheduler.Enabled {
		jobs := scheduler.New(appLogger, time.Minute)
		err := jobs.Add(reminderJob, cfg.Scheduler.DueDateSpec, func(ctx context.Context) error {
			_, err := rt.Reminders.Run(ctx)
			return err
		})
		if err != nil {
			return err
		}
		jobs.Start()
		defer jobs.Stop()
	}

	appLogger.Infow("Starting TaskFlow API server",
		"address", cfg.Server.GetAddr(),
		"environment", cfg.App.Environment,
		"storage", cfg.Storage.Driver,
		"identity", cfg.Identity.Provider,
	)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start(cfg.Server.GetAddr())
	}()

	select {
	case err := <-errCh:
		if err != nil {
			appLogger.Errorw("Server failed", "error", err)
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.Errorw("Graceful shutdown failed", "error", err)
		return err
	}
	appLogger.Infow("Server stopped")
	return nil
}

func openDatabase() (*config.Config, *database.DB, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if cfg.Storage.Driver == config.StorageDriverMemory {
		return nil, nil, errors.New("migrations need a database; storage driver is memory")
	}

	db, err := database.New(cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return cfg, db, nil
}

func migrationsSource(cfg *config.Config) string {
	path := cfg.Database.MigrationsPath
	if path == "" {
		path = "migrations"
	}
	if strings.Contains(path, "://") {
		return path
	}
	return "file://" + path
}

func runMigration(direction string, steps int) error {
	cfg, db, err := openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	changed, err := db.Migrate(migrationsSource(cfg), direction, steps)
	if err != nil {
		return err
	}

	if !changed {
		fmt.Println("No migrations to run")
	} else {
		fmt.Printf("Migration %s completed successfully\n", direction)
	}
	return nil
}

func showMigrationVersion() error {
	cfg, db, err := openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	status, err := db.MigrationVersion(migrationsSource(cfg))
	if err != nil {
		return err
	}

	fmt.Printf("Current migration version: %d\n", status.Version)
	fmt.Printf("Dirty: %t\n", status.Dirty)
	return nil
}

func createUser(ctx context.Context, req ports.RegisterRequest) error {
	cfg, appLogger, err := bootstrap()
	if err != nil {
		return err
	}
	defer appLogger.Close()

	rt, err := server.NewRuntime(ctx, cfg, appLogger)
	if err != nil {
		return err
	}
	defer rt.Close()

	resp, err := rt.Identity.Register(ctx, req)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}

	fmt.Printf("User created successfully:\n")
	fmt.Printf("  ID: %s\n", resp.User.ID)
	fmt.Printf("  Email: %s\n", resp.User.Email)
	fmt.Printf("  Name: %s\n", resp.User.Name)
	return nil
}

func runReminders(ctx context.Context) error {
	cfg, appLogger, err := bootstrap()
	if err != nil {
		return err
	}
	defer appLogger.Close()

	rt, err := server.NewRuntime(ctx, cfg, appLogger)
	if err != nil {
		return err
	}
	defer rt.Close()

	sent, err := rt.Reminders.Run(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Sent %d due-date reminders\n", sent)
	return nil
}
