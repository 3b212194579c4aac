package system

import (
	"fmt"
	"path/filepath"

	"github.com/julianstephens/questbot/internal/backup"
	"github.com/julianstephens/questbot/internal/cli"
	"github.com/julianstephens/questbot/internal/storage/postgres"
)

func backupManager(ctx *cli.Context) (*backup.Manager, error) {
	if _, ok := ctx.Store.(*postgres.Store); ok {
		return nil, fmt.Errorf("backups are not supported for PostgreSQL; use pg_dump")
	}
	return backup.NewManager(ctx.Store.GetConfigPath(), ctx.Clock), nil
}

type BackupCreateCmd struct{}

func (c *BackupCreateCmd) Run(ctx *cli.Context) error {
	mgr, err := backupManager(ctx)
	if err != nil {
		return err
	}
	path, err := mgr.CreateBackup()
	if err != nil {
		return err
	}
	ctx.Printf("Backup created: %s\n", path)
	return nil
}

type BackupListCmd struct{}

func (c *BackupListCmd) Run(ctx *cli.Context) error {
	mgr, err := backupManager(ctx)
	if err != nil {
		return err
	}
	backups, err := mgr.ListBackups()
	if err != nil {
		return err
	}
	if len(backups) == 0 {
		ctx.Println("No backups found in", mgr.GetBackupDir())
		return nil
	}
	ctx.Println(cli.TitleStyle.Render("Backups"))
	for i, b := range backups {
		ctx.Printf("%2d. %s  %s  %d bytes\n", i+1,
			cli.LabelStyle.Render(b.Timestamp.Format("2006-01-02 15:04:05")),
			filepath.Base(b.Path), b.Size)
	}
	return nil
}

type BackupRestoreCmd struct {
	Number int `arg:"" help:"Backup number from 'backup list' (1 is the newest)."`
}

func (c *BackupRestoreCmd) Run(ctx *cli.Context) error {
	mgr, err := backupManager(ctx)
	if err != nil {
		return err
	}
	backups, err := mgr.ListBackups()
	if err != nil {
		return err
	}
	if c.Number < 1 || c.Number > len(backups) {
		return fmt.Errorf("no backup #%d (have %d)", c.Number, len(backups))
	}

	// release the SQLite handle before the file is replaced
	if err := ctx.Store.Close(); err != nil {
		return fmt.Errorf("failed to close store: %w", err)
	}
	previous, err := mgr.RestoreBackup(backups[c.Number-1].Path)
	if previous != "" {
		ctx.Printf("Saved current store as: %s\n", filepath.Base(previous))
	}
	if err != nil {
		return err
	}
	ctx.Printf("Restored %s\n", filepath.Base(backups[c.Number-1].Path))
	return nil
}
