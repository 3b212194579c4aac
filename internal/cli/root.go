package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/julianstephens/questbot/internal/config"
	"github.com/julianstephens/questbot/internal/constants"
	"github.com/julianstephens/questbot/internal/notifier"
	"github.com/julianstephens/questbot/internal/repository"
	"github.com/julianstephens/questbot/internal/scheduler"
	"github.com/julianstephens/questbot/internal/storage"
	"github.com/julianstephens/questbot/internal/storage/postgres"
	"github.com/julianstephens/questbot/internal/storage/sqlite"
	"github.com/julianstephens/questbot/internal/utils"
)

// Context is handed to every command's Run method
type Context struct {
	Store     storage.Provider
	Repo      *repository.Repository
	Scheduler *scheduler.Scheduler
	Config    *config.Config
	Clock     utils.Clock
	Location  *time.Location
	Out       io.Writer
}

// OpenStore picks the backend from the target: *.json is the JSON document
// store, a postgres:// URL is PostgreSQL, anything else a SQLite file.
func OpenStore(target string) storage.Provider {
	switch {
	case postgres.IsConnString(target):
		return postgres.New(target)
	case strings.HasSuffix(strings.ToLower(target), constants.JSONStoreSuffix):
		return storage.NewJSONStore(target)
	default:
		return sqlite.NewStore(target)
	}
}

// NewContext wires the repository for cfg. The scheduler is built on demand
// by the commands that send reminders.
func NewContext(cfg *config.Config, store storage.Provider, clock utils.Clock, out io.Writer) (*Context, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	if clock == nil {
		clock = utils.SystemClock{Location: loc}
	}
	if out == nil {
		out = os.Stdout
	}
	return &Context{
		Store:    store,
		Repo:     repository.New(store, clock, loc),
		Config:   cfg,
		Clock:    clock,
		Location: loc,
		Out:      out,
	}, nil
}

// EnsureScheduler builds the scheduler with the configured notifier, or the
// log notifier when dryRun is set
func (c *Context) EnsureScheduler(dryRun bool) (*scheduler.Scheduler, error) {
	if c.Scheduler != nil {
		return c.Scheduler, nil
	}

	opts := c.Config.NotifierOptions(c.Out)
	if dryRun {
		opts.Kind = notifier.KindLog
	}
	sender, err := notifier.New(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to set up %s notifier: %w", opts.Kind, err)
	}

	c.Scheduler = scheduler.New(c.Store, sender, c.Clock, scheduler.Config{
		Location:    c.Location,
		Text:        c.Config.ReminderText,
		SendTimeout: c.Config.SendTimeout,
	})
	return c.Scheduler, nil
}

// Printf writes to the command output
func (c *Context) Printf(format string, args ...any) {
	fmt.Fprintf(c.Out, format, args...)
}

func (c *Context) Println(args ...any) {
	fmt.Fprintln(c.Out, args...)
}

var (
	TitleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	LabelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Width(14)
	DoneStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	WarnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	BoxStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)
