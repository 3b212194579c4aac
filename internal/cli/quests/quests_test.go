package quests

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/julianstephens/questbot/internal/cli/clitest"
	apperrors "github.com/julianstephens/questbot/internal/errors"
	"github.com/julianstephens/questbot/internal/logger"
	"github.com/julianstephens/questbot/internal/models"
)

func TestMain(m *testing.M) {
	logger.Discard()
	os.Exit(m.Run())
}

func TestQuestLifecycle(t *testing.T) {
	ctx, out := clitest.NewInitialized(t, "questbot.db")
	user := "100"

	add := &QuestAddCmd{Text: "Write the release notes"}
	add.User = user
	if err := add.Run(ctx); err != nil {
		t.Fatalf("quest add failed: %v", err)
	}
	if !strings.Contains(out.String(), "Added quest #1: Write the release notes") {
		t.Errorf("output = %q", out.String())
	}

	add2 := &QuestAddCmd{Text: "Second"}
	add2.User = user
	if err := add2.Run(ctx); err != nil {
		t.Fatal(err)
	}

	done := &QuestDoneCmd{ID: 1}
	done.User = user
	if err := done.Run(ctx); err != nil {
		t.Fatalf("quest done failed: %v", err)
	}
	if err := done.Run(ctx); !errors.Is(err, apperrors.ErrAlreadyDone) {
		t.Errorf("second done = %v, want ErrAlreadyDone", err)
	}

	out.Reset()
	list := &QuestListCmd{Status: "todo"}
	list.User = user
	if err := list.Run(ctx); err != nil {
		t.Fatal(err)
	}
	if strings.Contains(out.String(), "release notes") || !strings.Contains(out.String(), "#2 Second") {
		t.Errorf("todo list = %q", out.String())
	}

	del := &QuestDeleteCmd{ID: 2}
	del.User = user
	if err := del.Run(ctx); err != nil {
		t.Fatalf("quest delete failed: %v", err)
	}
	if err := del.Run(ctx); !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("second delete = %v, want ErrNotFound", err)
	}

	add3 := &QuestAddCmd{Text: "Third"}
	add3.User = user
	if err := add3.Run(ctx); err != nil {
		t.Fatal(err)
	}
	quests := ctx.Repo.Quests(context.Background(), user, "")
	if len(quests) != 2 || quests[1].ID != 3 {
		t.Errorf("quests = %+v, ids must not be reused", quests)
	}
}

func TestQuestAddValidation(t *testing.T) {
	ctx, _ := clitest.NewInitialized(t, "data.json")

	tests := []struct {
		name string
		cmd  *QuestAddCmd
	}{
		{"empty text", &QuestAddCmd{Text: "   "}},
		{"bad phase", &QuestAddCmd{Text: "ok", Phase: "sleepy"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.cmd.User = "100"
			if err := tt.cmd.Run(ctx); err == nil {
				t.Error("expected an error")
			}
		})
	}
	if q := ctx.Repo.Quests(context.Background(), "100", ""); len(q) != 0 {
		t.Errorf("rejected input must not write, got %+v", q)
	}
}

func TestQuestAddPhaseHint(t *testing.T) {
	ctx, out := clitest.NewInitialized(t, "data.json")

	add := &QuestAddCmd{Text: "Сделай задачу из backlog", Phase: "active"}
	add.User = "100"
	if err := add.Run(ctx); err != nil {
		t.Fatal(err)
	}
	if strings.Contains(out.String(), "may not fit") {
		t.Errorf("matching quest got a hint: %q", out.String())
	}

	out.Reset()
	add = &QuestAddCmd{Text: "Buy groceries", Phase: "active"}
	add.User = "100"
	if err := add.Run(ctx); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "may not fit") {
		t.Errorf("expected a phase hint: %q", out.String())
	}
	if !strings.Contains(out.String(), models.PhaseActive.Tip()) {
		t.Errorf("hint should carry the tip: %q", out.String())
	}
}

func TestQuestListValidate(t *testing.T) {
	for _, status := range []string{"", "todo", "done"} {
		if err := (&QuestListCmd{Status: status}).Validate(); err != nil {
			t.Errorf("Validate(%q) = %v", status, err)
		}
	}
	if err := (&QuestListCmd{Status: "later"}).Validate(); err == nil {
		t.Error("expected error for unknown status")
	}
}

func TestQuestListEmpty(t *testing.T) {
	ctx, out := clitest.NewInitialized(t, "data.json")

	list := &QuestListCmd{}
	list.User = "nobody"
	if err := list.Run(ctx); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "No quests found.") {
		t.Errorf("output = %q", out.String())
	}
}
