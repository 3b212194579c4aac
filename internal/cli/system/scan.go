package system

import (
	"context"
	"fmt"
	"time"

	"github.com/julianstephens/questbot/internal/cli"
	"github.com/julianstephens/questbot/internal/constants"
	"github.com/julianstephens/questbot/internal/models"
	"github.com/julianstephens/questbot/internal/utils"
)

// ScanCmd runs one reminder scan for the current minute. Meant to be called
// every minute by cron or a systemd timer.
type ScanCmd struct {
	DryRun bool   `help:"Print reminders instead of sending them."`
	At     string `help:"Scan this HH:MM of today instead of the current minute."`
}

func (c *ScanCmd) Run(ctx *cli.Context) error {
	sched, err := ctx.EnsureScheduler(c.DryRun)
	if err != nil {
		return err
	}

	now := ctx.Clock.Now().In(ctx.Location)
	if c.At != "" {
		if err := models.ValidateReminderTime(c.At); err != nil {
			return err
		}
		at, _ := time.Parse(constants.TimeFormat, c.At)
		now = time.Date(now.Year(), now.Month(), now.Day(), at.Hour(), at.Minute(), 0, 0, ctx.Location)
	}

	res := sched.Scan(context.Background(), now)
	if res.Err != nil {
		return fmt.Errorf("scan %s failed: %w", res.Minute, res.Err)
	}

	ctx.Printf("Scan %s at %s: %d due, %d sent, %d failed\n",
		res.ScanID[:8], utils.ClockString(res.At), res.Matched, res.Sent, res.Failed)
	if res.Failed > 0 {
		return fmt.Errorf("%d reminder(s) could not be delivered", res.Failed)
	}
	return nil
}
