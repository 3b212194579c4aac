package notes

import (
	"context"
	"fmt"

	"github.com/julianstephens/questbot/internal/cli"
)

type InsightAddCmd struct {
	cli.UserArg
	Text string `arg:"" help:"The insight."`
}

func (c *InsightAddCmd) Run(ctx *cli.Context) error {
	insight, err := ctx.Repo.AddInsight(context.Background(), c.User, c.Text)
	if err != nil {
		return fmt.Errorf("failed to save insight: %w", err)
	}
	ctx.Printf("Saved insight (%s)\n", insight.Date)
	return nil
}

type InsightListCmd struct {
	cli.UserArg
}

func (c *InsightListCmd) Run(ctx *cli.Context) error {
	insights := ctx.Repo.Insights(context.Background(), c.User)
	if len(insights) == 0 {
		ctx.Println("No insights yet.")
		return nil
	}
	for i, in := range insights {
		ctx.Printf("%d. %s %s\n", i+1, cli.LabelStyle.Render(in.Date), in.Text)
	}
	return nil
}

// InsightDeleteCmd removes the insight shown at Number by insight list
type InsightDeleteCmd struct {
	cli.UserArg
	Number int `arg:"" help:"Insight number as shown by 'insight list'."`
}

func (c *InsightDeleteCmd) Run(ctx *cli.Context) error {
	if err := ctx.Repo.DeleteInsight(context.Background(), c.User, c.Number-1); err != nil {
		return fmt.Errorf("failed to delete insight %d: %w", c.Number, err)
	}
	ctx.Printf("Deleted insight %d\n", c.Number)
	return nil
}
