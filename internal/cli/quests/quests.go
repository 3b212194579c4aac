package quests

import (
	"context"
	"fmt"

	"github.com/julianstephens/questbot/internal/cli"
	"github.com/julianstephens/questbot/internal/models"
)

type QuestAddCmd struct {
	cli.UserArg
	Text  string `arg:"" help:"What the quest is."`
	Phase string `short:"p" help:"Phase to file the quest under (active|low|fog). Defaults to the user's current phase."`
}

func (c *QuestAddCmd) Run(ctx *cli.Context) error {
	var phase models.Phase
	if c.Phase != "" {
		p, err := models.ParsePhase(c.Phase)
		if err != nil {
			return err
		}
		phase = p
	}

	quest, err := ctx.Repo.AddQuest(context.Background(), c.User, c.Text, phase)
	if err != nil {
		return fmt.Errorf("failed to add quest: %w", err)
	}

	ctx.Printf("Added quest #%d: %s\n", quest.ID, quest.Text)
	if quest.Phase != "" && !quest.Phase.FitsTip(quest.Text) {
		ctx.Println(cli.WarnStyle.Render(fmt.Sprintf("This may not fit the %s phase. Try: %s", quest.Phase.Label(), quest.Phase.Tip())))
	}
	return nil
}

type QuestDoneCmd struct {
	cli.UserArg
	ID int `arg:"" help:"Quest id."`
}

func (c *QuestDoneCmd) Run(ctx *cli.Context) error {
	quest, err := ctx.Repo.CompleteQuest(context.Background(), c.User, c.ID)
	if err != nil {
		return fmt.Errorf("failed to complete quest #%d: %w", c.ID, err)
	}
	ctx.Printf("%s #%d: %s\n", cli.DoneStyle.Render("✓ Done"), quest.ID, quest.Text)
	return nil
}

type QuestDeleteCmd struct {
	cli.UserArg
	ID int `arg:"" help:"Quest id."`
}

func (c *QuestDeleteCmd) Run(ctx *cli.Context) error {
	if err := ctx.Repo.DeleteQuest(context.Background(), c.User, c.ID); err != nil {
		return fmt.Errorf("failed to delete quest #%d: %w", c.ID, err)
	}
	ctx.Printf("Deleted quest #%d\n", c.ID)
	return nil
}

type QuestListCmd struct {
	cli.UserArg
	Status string `short:"s" help:"Only list quests with this status (todo|done)."`
}

func (c *QuestListCmd) Validate() error {
	return models.ValidateQuestStatus(c.Status)
}

func (c *QuestListCmd) Run(ctx *cli.Context) error {
	quests := ctx.Repo.Quests(context.Background(), c.User, c.Status)
	if len(quests) == 0 {
		ctx.Println("No quests found.")
		return nil
	}

	for _, q := range quests {
		mark := "[ ]"
		if q.IsDone() {
			mark = cli.DoneStyle.Render("[x]")
		}
		phase := ""
		if q.Phase != "" {
			phase = " (" + q.Phase.Label() + ")"
		}
		ctx.Printf("%s #%d %s%s\n", mark, q.ID, q.Text, phase)
	}
	return nil
}
