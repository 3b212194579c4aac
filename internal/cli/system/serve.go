package system

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/julianstephens/questbot/internal/cli"
	"github.com/julianstephens/questbot/internal/logger"
	"github.com/julianstephens/questbot/internal/web"
)

// ServeCmd runs the reminder loop, and the HTTP trigger when an address is set
type ServeCmd struct {
	DryRun bool   `help:"Print reminders instead of sending them."`
	Addr   string `help:"HTTP listen address for /healthz and /api/scan. Empty disables HTTP."`
}

func (c *ServeCmd) Run(ctx *cli.Context) error {
	sched, err := ctx.EnsureScheduler(c.DryRun)
	if err != nil {
		return err
	}

	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	addr := c.Addr
	if addr == "" {
		addr = ctx.Config.HTTPAddr
	}

	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error {
		return sched.Run(gctx)
	})
	if addr != "" {
		srv := web.NewServer(sched, ctx.Repo, ctx.Clock, ctx.Config.TriggerToken)
		g.Go(func() error {
			return srv.Run(gctx, addr)
		})
	} else {
		logger.Info("HTTP trigger disabled")
	}

	ctx.Printf("questbot is running (store: %s, notifier: %s). Press Ctrl+C to stop.\n",
		ctx.Store.GetConfigPath(), ctx.Config.Notifier)
	return g.Wait()
}
