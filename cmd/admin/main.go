// Command admin runs maintenance tasks against the attendance database.
//
//	admin create-admin [-name N] [-email E] [-password P]
//	admin shift-attendance [-offset-minutes M] [-dry-run=false]
package main

import (
	"attendance-sync-api/internal/config"
	"attendance-sync-api/internal/database"
	"attendance-sync-api/internal/logging"
	"attendance-sync-api/internal/repository"
	"attendance-sync-api/internal/service"
	apperrors "attendance-sync-api/pkg/errors"
	"context"
	"database/sql"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

const usage = `usage: admin <command> [flags]

commands:
  create-admin       create the first operator account
  shift-attendance   move stored attendance times earlier by an offset
`

func main() {
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New(logging.Config{Level: cfg.LogLevel, Format: "console", Timestamp: true})

	if err := run(context.Background(), cfg, logger, os.Args[1], os.Args[2:], os.Stdout); err != nil {
		logger.Error().Err(err).Str("command", os.Args[1]).Msg("Command failed")
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger zerolog.Logger, command string, args []string, out io.Writer) error {
	switch command {
	case "create-admin":
		return createAdmin(ctx, cfg, logger, args, out)
	case "shift-attendance":
		return shiftAttendance(ctx, cfg, args, out)
	default:
		fmt.Fprint(out, usage)
		return fmt.Errorf("unknown command %q", command)
	}
}

func openDB(cfg *config.Config) (*sql.DB, error) {
	db, err := database.InitDB(cfg)
	if err != nil {
		return nil, err
	}
	if cfg.Database.AutoMigrate {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if err := database.Migrate(ctx, db); err != nil {
			db.Close()
			return nil, err
		}
	}
	return db, nil
}

func createAdmin(ctx context.Context, cfg *config.Config, logger zerolog.Logger, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("create-admin", flag.ContinueOnError)
	fs.SetOutput(out)
	name := fs.String("name", "Administrador", "display name")
	email := fs.String("email", "admin@example.com", "login email")
	password := fs.String("password", os.Getenv("ADMIN_PASSWORD"), "initial password (default $ADMIN_PASSWORD)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *password == "" {
		return fmt.Errorf("a password is required: pass -password or set ADMIN_PASSWORD")
	}

	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	users := service.NewUserService(repository.NewUserRepository(db), logger)
	user, err := users.CreateUser(ctx, service.CreateUserRequest{Name: *name, Email: *email, Password: *password})
	if apperrors.IsCode(err, apperrors.ErrorCodeConflict) {
		fmt.Fprintf(out, "An operator with email %s already exists\n", *email)
		return nil
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Created operator %s (%s)\n", user.Email, user.ID)
	fmt.Fprintln(out, "Change the password after the first login.")
	return nil
}

func shiftAttendance(ctx context.Context, cfg *config.Config, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("shift-attendance", flag.ContinueOnError)
	fs.SetOutput(out)
	minutes := fs.Int("offset-minutes", int(cfg.Attendance.TimeOffset/time.Minute), "minutes to subtract from every stored attendance time")
	dryRun := fs.Bool("dry-run", true, "count the affected rows without writing")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *minutes == 0 {
		fmt.Fprintln(out, "Offset is 0. Nothing to do.")
		return nil
	}

	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	offset := time.Duration(*minutes) * time.Minute
	fmt.Fprintf(out, "Shifting attendance times earlier by %s (dry run: %v)\n", offset, *dryRun)

	n, err := repository.NewAttendanceRepository(db).ShiftAttendanceTimes(ctx, offset, *dryRun)
	if err != nil {
		return err
	}
	verb := "Applied"
	if *dryRun {
		verb = "Simulated"
	}
	fmt.Fprintf(out, "Done. %s updates: %d\n", verb, n)
	return nil
}
