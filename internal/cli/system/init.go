package system

import (
	"context"
	"fmt"
	"os"

	"github.com/julianstephens/questbot/internal/cli"
	"github.com/julianstephens/questbot/internal/constants"
	"github.com/julianstephens/questbot/internal/storage/postgres"
)

type InitCmd struct {
	Force bool `help:"Force reset by deleting the existing store before initialization."`
}

func (c *InitCmd) Run(ctx *cli.Context) error {
	bg := context.Background()
	path := ctx.Store.GetConfigPath()

	if c.Force {
		if _, ok := ctx.Store.(*postgres.Store); ok {
			return fmt.Errorf("--force is not supported for PostgreSQL; drop the questbot schema manually")
		}
		if _, err := os.Stat(path); err == nil {
			// close first so SQLite releases the file
			if err := ctx.Store.Close(); err != nil {
				return fmt.Errorf("failed to close existing store: %w", err)
			}
			if err := os.Remove(path); err != nil {
				return fmt.Errorf("failed to delete existing store: %w", err)
			}
			_ = os.Remove(path + constants.JSONLockSuffix)
			ctx.Printf("Deleted existing store at: %s\n", path)
		} else if !os.IsNotExist(err) {
			return fmt.Errorf("failed to access existing store: %w", err)
		}
	}

	if err := ctx.Store.Init(bg); err != nil {
		return err
	}
	ctx.Printf("Initialized questbot storage at: %s\n", path)
	return nil
}
