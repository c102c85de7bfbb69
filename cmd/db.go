package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/setlist/internal/shared"
	"github.com/urfave/cli/v3"
)

// DBMigrate applies pending schema migrations.
func (r *Runner) DBMigrate(ctx context.Context, cmd *cli.Command) error {
	if err := r.openDatabase(); err != nil {
		return err
	}
	r.writePlain("migrations up to date\n")
	return nil
}

// DBRollback rolls back the most recent schema migration.
func (r *Runner) DBRollback(ctx context.Context, cmd *cli.Command) error {
	db, err := shared.NewDatabase(r.config.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := shared.RollbackMigration(db); err != nil {
		return err
	}

	r.writePlain("rolled back one migration\n")
	return nil
}

func dbCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "db",
		Usage: "Database maintenance",
		Commands: []*cli.Command{
			{
				Name:   "migrate",
				Usage:  "Apply pending migrations",
				Action: r.DBMigrate,
			},
			{
				Name:   "rollback",
				Usage:  "Roll back the most recent migration",
				Action: r.DBRollback,
			},
		},
	}
}
