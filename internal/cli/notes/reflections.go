package notes

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/huh"

	"github.com/julianstephens/questbot/internal/cli"
)

// askReflection prompts for the three answers. Replaced in tests.
var askReflection = func(important, worked, change *string) error {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewText().Title("What was important today?").Value(important),
			huh.NewText().Title("What worked?").Value(worked),
			huh.NewText().Title("What would you change?").Value(change),
		),
	).WithTheme(huh.ThemeBase()).Run()
}

type ReflectAddCmd struct {
	cli.UserArg
	Important string `short:"i" help:"What was important today."`
	Worked    string `short:"w" help:"What worked."`
	Change    string `short:"c" help:"What to change."`
}

func (c *ReflectAddCmd) Run(ctx *cli.Context) error {
	if c.Important == "" && c.Worked == "" && c.Change == "" {
		if err := askReflection(&c.Important, &c.Worked, &c.Change); err != nil {
			return err
		}
	}

	r, err := ctx.Repo.AddReflection(context.Background(), c.User, c.Important, c.Worked, c.Change)
	if err != nil {
		return fmt.Errorf("failed to save reflection: %w", err)
	}
	ctx.Printf("Saved reflection (%s)\n", r.Date)
	return nil
}

// ReflectListCmd prints the archive: months newest first, then days
type ReflectListCmd struct {
	cli.UserArg
	Month string `short:"m" help:"Only show this month (YYYY-MM)."`
}

func (c *ReflectListCmd) Run(ctx *cli.Context) error {
	archive := ctx.Repo.ReflectionArchive(context.Background(), c.User)
	if len(archive) == 0 {
		ctx.Println("No reflections yet.")
		return nil
	}

	shown := 0
	for _, month := range archive {
		if c.Month != "" && month.Month != c.Month {
			continue
		}
		ctx.Println(cli.TitleStyle.Render(month.Month))
		for _, day := range month.Days {
			ctx.Printf("  %s\n", day.Day)
			for _, e := range day.Entries {
				ctx.Printf("    %d. %s\n", e.Position+1, e.Date)
				printAnswer(ctx, "Important", e.Important)
				printAnswer(ctx, "Worked", e.Worked)
				printAnswer(ctx, "Change", e.Change)
				shown++
			}
		}
	}
	if shown == 0 {
		ctx.Printf("No reflections in %s.\n", c.Month)
	}
	return nil
}

func printAnswer(ctx *cli.Context, label, answer string) {
	if strings.TrimSpace(answer) == "" {
		return
	}
	ctx.Printf("       %s %s\n", cli.LabelStyle.Render(label), answer)
}

type ReflectDeleteCmd struct {
	cli.UserArg
	Number int `arg:"" help:"Reflection number as shown by 'reflect list'."`
}

func (c *ReflectDeleteCmd) Run(ctx *cli.Context) error {
	if err := ctx.Repo.DeleteReflection(context.Background(), c.User, c.Number-1); err != nil {
		return fmt.Errorf("failed to delete reflection %d: %w", c.Number, err)
	}
	ctx.Printf("Deleted reflection %d\n", c.Number)
	return nil
}
