// Command migrate applies schema migrations.
//
//	migrate [up|status]   postgres remote store at DATABASE_URL
//	migrate local         device store at SQLITE_DB_PATH
//	migrate local-status  schema version of the device store
package main

import (
	"fmt"
	"os"

	"pocket/internal/cli"
	"pocket/internal/log"
	"pocket/internal/remote/postgres"
	"pocket/internal/storage"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentStorage)

	cmd := "up"
	if len(os.Args) > 1 {
		cmd = os.Args[1]
	}

	if err := run(cmd); err != nil {
		logger.Error("Migration failed", log.FieldOperation, cmd, log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Migration finished", log.FieldOperation, cmd)
}

func run(cmd string) error {
	switch cmd {
	case "local", "local-status":
		path := os.Getenv("SQLITE_DB_PATH")
		if path == "" {
			return fmt.Errorf("SQLITE_DB_PATH is not set")
		}
		if cmd == "local" {
			return storage.RunMigrations(path)
		}
		version, dirty, err := storage.SchemaVersion(path)
		if err != nil {
			return err
		}
		fmt.Printf("%s: version %d, dirty %v\n", path, version, dirty)
		return nil
	case "up", "status":
		dsn := os.Getenv("DATABASE_URL")
		if dsn == "" {
			return fmt.Errorf("DATABASE_URL is not set")
		}
		if cmd == "status" {
			return postgres.Status(dsn)
		}
		return postgres.Migrate(dsn)
	default:
		return fmt.Errorf("unknown command %q, want up, status, local or local-status", cmd)
	}
}
