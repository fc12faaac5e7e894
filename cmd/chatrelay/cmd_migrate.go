package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/elee1766/chatrelay/src/storage"
)

// MigrateCmd manages database migrations
type MigrateCmd struct {
	Up     MigrateUpCmd     `cmd:"" help:"Run pending migrations"`
	Down   MigrateDownCmd   `cmd:"" help:"Rollback last migration"`
	Status MigrateStatusCmd `cmd:"" help:"Show migration status"`
}

type dbFlag struct {
	DBPath string `name:"db" type:"path" help:"Database path (defaults to storage.path)"`
}

func (f dbFlag) connect(cli *CLI) (*storage.DB, error) {
	path := f.DBPath
	if path == "" {
		cfg, _, err := cli.load()
		if err != nil {
			return nil, err
		}
		path = cfg.Storage.Path
	}
	db, err := storage.Connect(path)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// MigrateUpCmd runs pending migrations
type MigrateUpCmd struct {
	dbFlag
}

// Run executes the migrate up command
func (c *MigrateUpCmd) Run(ctx context.Context, cli *CLI) error {
	db, err := c.connect(cli)
	if err != nil {
		return err
	}
	defer db.Close()

	applied, err := db.Migrate(ctx)
	if err != nil {
		return fmt.Errorf("failed to migrate %s: %w", db.Path(), err)
	}
	if len(applied) == 0 {
		fmt.Printf("%s is up to date\n", db.Path())
		return nil
	}
	for _, v := range applied {
		fmt.Printf("applied %d\n", v)
	}
	return nil
}

// MigrateDownCmd rolls back the last migration
type MigrateDownCmd struct {
	dbFlag
}

// Run executes the migrate down command
func (c *MigrateDownCmd) Run(ctx context.Context, cli *CLI) error {
	db, err := c.connect(cli)
	if err != nil {
		return err
	}
	defer db.Close()

	version, err := db.Rollback(ctx)
	if err != nil {
		return err
	}
	if version == 0 {
		fmt.Println("no migrations to roll back")
		return nil
	}
	fmt.Printf("rolled back %d\n", version)
	return nil
}

// MigrateStatusCmd shows migration status
type MigrateStatusCmd struct {
	dbFlag
}

// Run executes the migrate status command
func (c *MigrateStatusCmd) Run(ctx context.Context, cli *CLI) error {
	db, err := c.connect(cli)
	if err != nil {
		return err
	}
	defer db.Close()

	statuses, err := db.MigrationStatus(ctx)
	if err != nil {
		return fmt.Errorf("failed to read migration status: %w", err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "VERSION\tNAME\tAPPLIED AT")
	current := true
	for _, s := range statuses {
		applied := "pending"
		if s.Applied {
			applied = s.AppliedAt.Local().Format("2006-01-02 15:04:05")
		} else {
			current = false
		}
		fmt.Fprintf(w, "%d\t%s\t%s\n", s.Version, s.Name, applied)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	// Counting needs the schema.
	if current && len(statuses) > 0 {
		n, err := storage.CountConversations(ctx, db.DB())
		if err != nil {
			return err
		}
		fmt.Printf("\n%d conversations in %s\n", n, db.Path())
	}
	return nil
}
