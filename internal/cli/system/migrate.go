package system

import (
	"context"
	"fmt"

	"github.com/julianstephens/questbot/internal/cli"
	"github.com/julianstephens/questbot/internal/storage"
)

type MigrateCmd struct{}

func (c *MigrateCmd) Run(ctx *cli.Context) error {
	bg := context.Background()

	m, ok := ctx.Store.(storage.Migrator)
	if !ok {
		ctx.Println("The JSON store has no schema. Nothing to migrate.")
		return nil
	}

	before, latest, err := m.SchemaVersion(bg)
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}
	if err := m.Migrate(bg); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	if before >= latest {
		ctx.Println("No migrations to apply. Database is up to date.")
	} else {
		ctx.Printf("Successfully applied %d migration(s). Schema is at version %d.\n", latest-before, latest)
	}
	return nil
}
