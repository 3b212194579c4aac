package system

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/julianstephens/questbot/internal/cli"
	"github.com/julianstephens/questbot/internal/keyring"
	"github.com/julianstephens/questbot/internal/models"
	"github.com/julianstephens/questbot/internal/notifier"
	"github.com/julianstephens/questbot/internal/storage"
)

type DoctorCmd struct{}

type check struct {
	name     string
	run      func(ctx context.Context, c *cli.Context) error
	needsDB  bool
	warnOnly bool
}

var checks = []check{
	{name: "Store reachable", run: checkStoreReachable},
	{name: "Schema version", run: checkSchemaVersion, needsDB: true},
	{name: "Data integrity", run: checkDataIntegrity, needsDB: true},
	{name: "Notifier", run: checkNotifier},
	{name: "Clock/timezone", run: checkClockTimezone},
	{name: "OS keyring", run: checkKeyring, warnOnly: true},
}

func (cmd *DoctorCmd) Run(ctx *cli.Context) error {
	ctx.Println("Running diagnostics...")
	ctx.Println()

	bg := context.Background()
	hasError := false
	dbReachable := true

	for _, chk := range checks {
		if chk.needsDB && !dbReachable {
			ctx.Printf("⊘ %s: SKIPPED (store not reachable)\n", chk.name)
			continue
		}
		err := chk.run(bg, ctx)
		switch {
		case err == nil:
			ctx.Printf("✓ %s: OK\n", chk.name)
		case chk.warnOnly:
			ctx.Printf("⚠ %s: WARNING\n", chk.name)
			ctx.Printf("   %v\n", err)
		default:
			ctx.Printf("❌ %s: FAIL\n", chk.name)
			ctx.Printf("   Error: %v\n", err)
			hasError = true
			if chk.name == "Store reachable" {
				dbReachable = false
			}
		}
	}

	ctx.Println()
	printConfig(ctx.Out, ctx)
	if hasError {
		ctx.Println("Diagnostics completed with errors.")
		return fmt.Errorf("one or more health checks failed")
	}

	ctx.Println("All diagnostics passed!")
	return nil
}

func checkStoreReachable(ctx context.Context, c *cli.Context) error {
	if err := c.Store.Load(ctx); err != nil {
		return fmt.Errorf("failed to load store: %w", err)
	}
	if _, err := c.Store.ListUserIDs(ctx); err != nil {
		return fmt.Errorf("failed to query store: %w", err)
	}
	return nil
}

func checkSchemaVersion(ctx context.Context, c *cli.Context) error {
	m, ok := c.Store.(storage.Migrator)
	if !ok {
		// JSON store doesn't have a schema
		return nil
	}
	current, latest, err := m.SchemaVersion(ctx)
	if err != nil {
		return fmt.Errorf("failed to get schema version: %w", err)
	}
	if current > latest {
		return fmt.Errorf("database schema version (%d) is newer than supported version (%d)", current, latest)
	}
	if current < latest {
		return fmt.Errorf("migrations incomplete: current version %d, latest version %d (run 'questbot migrate')", current, latest)
	}
	return nil
}

// checkDataIntegrity looks for duplicate quest ids, ids past the user's
// sequence and malformed reminder times
func checkDataIntegrity(ctx context.Context, c *cli.Context) error {
	ids, err := c.Store.ListUserIDs(ctx)
	if err != nil {
		return err
	}
	for _, id := range ids {
		data, err := c.Store.GetUserData(ctx, id)
		if err != nil {
			return fmt.Errorf("user %s: %w", id, err)
		}
		seen := map[int]bool{}
		for _, q := range data.Quests {
			if seen[q.ID] {
				return fmt.Errorf("user %s: duplicate quest id %d", id, q.ID)
			}
			seen[q.ID] = true
			if q.ID > data.QuestSeq {
				return fmt.Errorf("user %s: quest id %d is past the sequence %d", id, q.ID, data.QuestSeq)
			}
		}
		if data.ReminderTime != "" {
			if err := models.ValidateReminderTime(data.ReminderTime); err != nil {
				return fmt.Errorf("user %s: %w", id, err)
			}
		}
	}
	return nil
}

func checkNotifier(ctx context.Context, c *cli.Context) error {
	_, err := notifier.New(c.Config.NotifierOptions(io.Discard))
	return err
}

func checkClockTimezone(ctx context.Context, c *cli.Context) error {
	now := c.Clock.Now()
	if now.Year() < 2020 || now.Year() > 2100 {
		return fmt.Errorf("system time appears incorrect: %s", now.Format(time.RFC3339))
	}
	if c.Location == nil {
		return fmt.Errorf("timezone %q did not resolve", c.Config.Timezone)
	}
	return nil
}

func checkKeyring(ctx context.Context, c *cli.Context) error {
	if !keyring.IsAvailable() {
		return fmt.Errorf("OS keyring is not available; secrets must come from the environment")
	}
	return nil
}

func printConfig(w io.Writer, c *cli.Context) {
	red := c.Config.Redacted()
	fmt.Fprintln(w, cli.TitleStyle.Render("Effective configuration"))
	for _, key := range []string{
		"config_file", "store", "timezone", "notifier", "webhook_url",
		"http_addr", "send_timeout", "bot_token", "webhook_secret", "trigger_token",
	} {
		fmt.Fprintf(w, "  %s %s\n", cli.LabelStyle.Render(key), red[key])
	}
	fmt.Fprintln(w)
}
