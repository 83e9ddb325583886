package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/pressly/goose/v3"

	"github.com/saludbit/impactou-api/migrations"
	"github.com/saludbit/impactou-api/pkg/config"
	"github.com/saludbit/impactou-api/pkg/database"
	"github.com/saludbit/impactou-api/pkg/logger"
)

var gooseRun = goose.Run // mockable

const usage = `usage: migrate <command> [args]

commands:
  up                  apply all pending migrations
  up-to VERSION       apply migrations up to VERSION
  down                roll back the latest migration
  down-to VERSION     roll back to VERSION
  redo                roll back and re-apply the latest migration
  reset               roll back every migration
  status              print migration status
  version             print the current schema version`

func main() {
	flag.Usage = func() { fmt.Fprintln(os.Stderr, usage) }
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	db, err := database.NewPostgres(context.Background(), cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("database connection failed", "error", err)
	}
	defer db.Close()

	if err := run(db.DB, flag.Args()); err != nil {
		logr.Sugar().Fatalw("migration failed", "error", err)
	}
	logr.Sugar().Infow("migration finished", "args", flag.Args())
}

func run(db *sql.DB, args []string) error {
	if len(args) == 0 {
		return errors.New(usage)
	}

	command := args[0]
	switch command {
	case "up-to", "down-to":
		if len(args) < 2 {
			return fmt.Errorf("%s requires a VERSION argument", command)
		}
	case "up", "down", "redo", "reset", "status", "version":
	default:
		return fmt.Errorf("unknown command %q\n\n%s", command, usage)
	}

	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	return gooseRun(command, db, ".", args[1:]...)
}
