package users

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/huh"

	"github.com/julianstephens/questbot/internal/cli"
	"github.com/julianstephens/questbot/internal/constants"
)

// confirmFunc asks a yes/no question. Replaced in tests.
var confirmFunc = func(title string) (bool, error) {
	var ok bool
	err := huh.NewConfirm().
		Title(title).
		Affirmative("Yes").
		Negative("No").
		Value(&ok).
		Run()
	return ok, err
}

type PhaseCmd struct {
	cli.UserArg
	Phase string `arg:"" help:"Current phase: active, low or fog."`
}

func (c *PhaseCmd) Run(ctx *cli.Context) error {
	phase, err := ctx.Repo.UpdatePhase(context.Background(), c.User, c.Phase)
	if err != nil {
		return err
	}
	ctx.Printf("Phase set to %s\n", phase.Label())
	ctx.Printf("Suggested quest: %s\n", phase.Tip())
	return nil
}

type ReminderSetCmd struct {
	cli.UserArg
	Time string `arg:"" help:"Local reminder time (HH:MM, 24-hour)."`
}

func (c *ReminderSetCmd) Run(ctx *cli.Context) error {
	if err := ctx.Repo.SetReminder(context.Background(), c.User, c.Time, true); err != nil {
		return err
	}
	ctx.Printf("Reminder set for %s (%s)\n", c.Time, ctx.Location)
	return nil
}

type ReminderDisableCmd struct {
	cli.UserArg
}

func (c *ReminderDisableCmd) Run(ctx *cli.Context) error {
	if err := ctx.Repo.DisableReminder(context.Background(), c.User); err != nil {
		return err
	}
	ctx.Println("Reminder disabled")
	return nil
}

type StatusCmd struct {
	cli.UserArg
}

func (c *StatusCmd) Run(ctx *cli.Context) error {
	st := ctx.Repo.Status(context.Background(), c.User)

	reminder := "off"
	if st.Reminder.Enabled {
		reminder = st.Reminder.Time
	}
	lastActive := "never"
	if st.LastActive != nil {
		lastActive = fmt.Sprintf("%s (%s)", st.LastActive.Date, st.LastActive.Context)
	}

	rows := [][2]string{
		{"Phase", st.Phase.Label()},
		{"Active quests", fmt.Sprint(st.ActiveQuests)},
		{"Done quests", fmt.Sprint(st.DoneQuests)},
		{"Insights", fmt.Sprint(st.Insights)},
		{"Reflections", fmt.Sprint(st.Reflections)},
		{"Reminder", reminder},
		{"Last active", lastActive},
	}

	var b strings.Builder
	b.WriteString(cli.TitleStyle.Render("User " + c.User))
	for _, row := range rows {
		b.WriteString("\n" + cli.LabelStyle.Render(row[0]) + " " + row[1])
	}
	ctx.Println(cli.BoxStyle.Render(b.String()))
	return nil
}

type TodayCmd struct {
	cli.UserArg
}

func (c *TodayCmd) Run(ctx *cli.Context) error {
	today := ctx.Repo.Today(context.Background(), c.User)

	ctx.Printf("Phase: %s\n", today.Phase.Label())
	ctx.Printf("Suggestion: %s\n", today.Tip)
	if today.MainQuest != nil {
		ctx.Printf("Main quest: #%d %s\n", today.MainQuest.ID, today.MainQuest.Text)
	} else {
		ctx.Println("No open quests. Add one with 'questbot quest add'.")
	}
	return nil
}

// ResetCmd deletes the user with every quest, insight and reflection
type ResetCmd struct {
	cli.UserArg
	Yes bool `short:"y" help:"Skip the confirmation prompt."`
}

func (c *ResetCmd) Run(ctx *cli.Context) error {
	if !c.Yes {
		ok, err := confirmFunc(fmt.Sprintf("Delete all %s data for user %s?", constants.AppName, c.User))
		if err != nil {
			return err
		}
		if !ok {
			ctx.Println("Reset cancelled")
			return nil
		}
	}

	if err := ctx.Repo.ResetAllData(context.Background(), c.User); err != nil {
		return fmt.Errorf("failed to reset user %s: %w", c.User, err)
	}
	ctx.Printf("All data for user %s deleted\n", c.User)
	return nil
}
