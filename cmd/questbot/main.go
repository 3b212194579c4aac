package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/alecthomas/kong"

	"github.com/julianstephens/questbot/internal/cli"
	"github.com/julianstephens/questbot/internal/cli/notes"
	"github.com/julianstephens/questbot/internal/cli/quests"
	"github.com/julianstephens/questbot/internal/cli/system"
	"github.com/julianstephens/questbot/internal/cli/users"
	"github.com/julianstephens/questbot/internal/config"
	"github.com/julianstephens/questbot/internal/constants"
	apperrors "github.com/julianstephens/questbot/internal/errors"
	"github.com/julianstephens/questbot/internal/logger"
	"github.com/julianstephens/questbot/internal/utils"
)

type CLI struct {
	Version  kong.VersionFlag
	Config   string `help:"YAML config file." type:"path"`
	EnvFile  string `help:"Dotenv file to load." default:".env"`
	Store    string `help:"Store: a *.json file, a SQLite file, a PostgreSQL URL without password, or 'postgres' to use QUESTBOT_DB_CONNECTION or the keyring."`
	Timezone string `help:"IANA timezone reminder times are interpreted in."`
	Notifier string `help:"Reminder transport: max, webhook, relay or log."`
	Debug    bool   `help:"Log debug output to stderr."`

	Init    system.InitCmd    `cmd:"" help:"Initialize questbot storage."`
	Migrate system.MigrateCmd `cmd:"" help:"Run database migrations."`
	Doctor  system.DoctorCmd  `cmd:"" help:"Run health checks and diagnostics."`
	Serve   system.ServeCmd   `cmd:"" help:"Run the reminder scheduler (and the HTTP trigger)."`
	Scan    system.ScanCmd    `cmd:"" help:"Run one reminder scan for the current minute."`
	Backup  struct {
		Create  system.BackupCreateCmd  `cmd:"" help:"Snapshot the store file."`
		List    system.BackupListCmd    `cmd:"" help:"List snapshots, newest first." default:"1"`
		Restore system.BackupRestoreCmd `cmd:"" help:"Replace the store with a snapshot."`
	} `cmd:"" help:"Manage store backups (SQLite and JSON stores)."`
	Keyring struct {
		Set    system.KeyringSetCmd    `cmd:"" help:"Store a secret in the OS keyring."`
		Get    system.KeyringGetCmd    `cmd:"" help:"Show a stored secret (masked)."`
		Delete system.KeyringDeleteCmd `cmd:"" help:"Delete a secret from the OS keyring."`
		Status system.KeyringStatusCmd `cmd:"" help:"Check keyring availability." default:"1"`
	} `cmd:"" help:"Manage secrets in the OS keyring."`

	Phase users.PhaseCmd `cmd:"" help:"Set a user's current phase."`
	Quest struct {
		Add    quests.QuestAddCmd    `cmd:"" help:"Add a quest."`
		Done   quests.QuestDoneCmd   `cmd:"" help:"Complete a quest."`
		Delete quests.QuestDeleteCmd `cmd:"" help:"Delete a quest."`
		List   quests.QuestListCmd   `cmd:"" help:"List quests."`
	} `cmd:"" help:"Manage quests."`
	Insight struct {
		Add    notes.InsightAddCmd    `cmd:"" help:"Save an insight."`
		List   notes.InsightListCmd   `cmd:"" help:"List insights."`
		Delete notes.InsightDeleteCmd `cmd:"" help:"Delete an insight."`
	} `cmd:"" help:"Manage insights."`
	Reflect struct {
		Add    notes.ReflectAddCmd    `cmd:"" help:"Write an evening reflection."`
		List   notes.ReflectListCmd   `cmd:"" help:"Browse the reflection archive."`
		Delete notes.ReflectDeleteCmd `cmd:"" help:"Delete a reflection."`
	} `cmd:"" help:"Manage reflections."`
	Reminder struct {
		Set     users.ReminderSetCmd     `cmd:"" help:"Enable the daily reminder at HH:MM."`
		Disable users.ReminderDisableCmd `cmd:"" help:"Disable the daily reminder."`
	} `cmd:"" help:"Manage the daily reminder."`
	Status users.StatusCmd `cmd:"" help:"Show a user's summary."`
	Today  users.TodayCmd  `cmd:"" help:"Show today's focus for a user."`
	Reset  users.ResetCmd  `cmd:"" help:"Delete all data for a user."`
}

// commands that manage their own store lifecycle or never touch it
var skipLoad = []string{"init", "keyring", "doctor"}

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		apperrors.Fatal(err)
	}
}

func newParser(app *CLI) (*kong.Kong, error) {
	return kong.New(app,
		kong.Name(constants.AppName),
		kong.Description("Productivity companion: phases, quests, insights, reflections and daily reminders"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact:             true,
			NoExpandSubcommands: true,
		}),
		kong.Vars{"version": constants.Version},
	)
}

func run(args []string, out io.Writer) error {
	var app CLI
	parser, err := newParser(&app)
	if err != nil {
		return err
	}
	kctx, err := parser.Parse(args)
	if err != nil {
		return err
	}

	cfg, err := config.Load(config.Overrides{
		ConfigFile: app.Config,
		EnvFile:    app.EnvFile,
		Store:      app.Store,
		Timezone:   app.Timezone,
		Notifier:   app.Notifier,
		Debug:      app.Debug,
	})
	if err != nil {
		return err
	}

	command := kctx.Command()
	logDir, err := utils.ExpandHome(cfg.LogDir)
	if err != nil {
		return err
	}
	if err := logger.Init(logger.Config{
		Debug:  cfg.Debug,
		LogDir: logDir,
		Stderr: strings.HasPrefix(command, "serve"),
	}); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to initialize logger: %v\n", err)
	}

	target, err := cfg.StoreTarget()
	if err != nil {
		return err
	}
	store := cli.OpenStore(target)
	defer store.Close()

	appCtx, err := cli.NewContext(cfg, store, nil, out)
	if err != nil {
		return err
	}

	if !needsNoLoad(command) {
		if err := store.Load(context.Background()); err != nil {
			return err
		}
	}
	return kctx.Run(appCtx)
}

func needsNoLoad(command string) bool {
	for _, name := range skipLoad {
		if command == name || strings.HasPrefix(command, name+" ") {
			return true
		}
	}
	return false
}
