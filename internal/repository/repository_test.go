package repository

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/julianstephens/questbot/internal/constants"
	apperrors "github.com/julianstephens/questbot/internal/errors"
	"github.com/julianstephens/questbot/internal/logger"
	"github.com/julianstephens/questbot/internal/models"
	"github.com/julianstephens/questbot/internal/storage"
	"github.com/julianstephens/questbot/internal/storage/sqlite"
	"github.com/julianstephens/questbot/internal/utils"
)

func TestMain(m *testing.M) {
	logger.Discard()
	os.Exit(m.Run())
}

type backend struct {
	name string
	open func(t *testing.T) storage.Provider
}

var backends = []backend{
	{"json", func(t *testing.T) storage.Provider {
		s := storage.NewJSONStore(filepath.Join(t.TempDir(), "data.json"))
		if err := s.Init(context.Background()); err != nil {
			t.Fatal(err)
		}
		return s
	}},
	{"sqlite", func(t *testing.T) storage.Provider {
		s := sqlite.NewStore(filepath.Join(t.TempDir(), "test.db"))
		if err := s.Init(context.Background()); err != nil {
			t.Fatal(err)
		}
		t.Cleanup(func() { s.Close() })
		return s
	}},
}

var start = time.Date(2025, 3, 14, 20, 30, 0, 0, time.UTC)

// forEachBackend runs fn against a fresh repository on every backend
func forEachBackend(t *testing.T, fn func(t *testing.T, repo *Repository, store storage.Provider, clock *utils.FixedClock)) {
	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) {
			store := b.open(t)
			clock := &utils.FixedClock{T: start}
			fn(t, New(store, clock, time.UTC), store, clock)
		})
	}
}

func TestGetOrCreateUser(t *testing.T) {
	forEachBackend(t, func(t *testing.T, repo *Repository, store storage.Provider, clock *utils.FixedClock) {
		ctx := context.Background()
		first, err := repo.GetOrCreateUser(ctx, "42")
		if err != nil {
			t.Fatal(err)
		}
		clock.Set(start.Add(time.Hour))
		second, err := repo.GetOrCreateUser(ctx, "42")
		if err != nil {
			t.Fatal(err)
		}
		if !first.CreatedAt.Equal(second.CreatedAt) {
			t.Errorf("created_at changed: %v -> %v", first.CreatedAt, second.CreatedAt)
		}
		if second.ReminderEnabled {
			t.Error("reminders should default to disabled")
		}

		if _, err := repo.GetOrCreateUser(ctx, "  "); !errors.Is(err, apperrors.ErrValidation) {
			t.Errorf("blank id = %v, want ErrValidation", err)
		}
	})
}

func TestSetReminderValidation(t *testing.T) {
	forEachBackend(t, func(t *testing.T, repo *Repository, store storage.Provider, _ *utils.FixedClock) {
		ctx := context.Background()
		if err := repo.SetReminder(ctx, "1", "21:00", true); err != nil {
			t.Fatalf("SetReminder(21:00) failed: %v", err)
		}

		for _, bad := range []string{"25:00", "9:00", "21:60", "", "21:00:00", "ab:cd", " 21:00"} {
			if err := repo.SetReminder(ctx, "1", bad, false); !errors.Is(err, apperrors.ErrValidation) {
				t.Errorf("SetReminder(%q) = %v, want ErrValidation", bad, err)
			}
		}

		u, err := store.GetUser(ctx, "1")
		if err != nil {
			t.Fatal(err)
		}
		if !u.ReminderEnabled || u.ReminderTime != "21:00" {
			t.Errorf("rejected input mutated the user: %+v", u)
		}

		for _, good := range []string{"00:00", "09:05", "23:59"} {
			if err := repo.SetReminder(ctx, "1", good, true); err != nil {
				t.Errorf("SetReminder(%q) failed: %v", good, err)
			}
		}
	})
}

func TestDisableReminderKeepsTime(t *testing.T) {
	forEachBackend(t, func(t *testing.T, repo *Repository, store storage.Provider, _ *utils.FixedClock) {
		ctx := context.Background()
		_ = repo.SetReminder(ctx, "1", "07:30", true)
		if err := repo.DisableReminder(ctx, "1"); err != nil {
			t.Fatal(err)
		}
		status := repo.Status(ctx, "1")
		if status.Reminder.Enabled || status.Reminder.Time != "07:30" {
			t.Errorf("reminder = %+v, want disabled at 07:30", status.Reminder)
		}
	})
}

func TestChildOperationsCreateUnknownUser(t *testing.T) {
	forEachBackend(t, func(t *testing.T, repo *Repository, store storage.Provider, _ *utils.FixedClock) {
		ctx := context.Background()
		ops := map[string]func(id string) error{
			"delete quest":      func(id string) error { return repo.DeleteQuest(ctx, id, 1) },
			"delete insight":    func(id string) error { return repo.DeleteInsight(ctx, id, 0) },
			"delete reflection": func(id string) error { return repo.DeleteReflection(ctx, id, 0) },
			"disable reminder":  func(id string) error { return repo.DisableReminder(ctx, id) },
		}
		for name, op := range ops {
			id := "new-" + name
			err := op(id)
			if err != nil && !errors.Is(err, apperrors.ErrNotFound) {
				t.Errorf("%s: unexpected error %v", name, err)
			}
			if _, err := store.GetUser(ctx, id); err != nil {
				t.Errorf("%s: user not created: %v", name, err)
			}
		}
		if err := repo.DeleteQuest(ctx, "new-quest", 1); !errors.Is(err, apperrors.ErrNotFound) {
			t.Errorf("DeleteQuest on empty user = %v, want ErrNotFound", err)
		}
	})
}

func TestUpdatePhase(t *testing.T) {
	forEachBackend(t, func(t *testing.T, repo *Repository, store storage.Provider, _ *utils.FixedClock) {
		ctx := context.Background()
		p, err := repo.UpdatePhase(ctx, "1", " Fog ")
		if err != nil {
			t.Fatal(err)
		}
		if p != models.PhaseFog {
			t.Errorf("phase = %q", p)
		}

		la, _ := store.GetLastActive(ctx, "1")
		if la == nil || la.Context != constants.ContextPhase || la.Phase != "fog" {
			t.Errorf("last active = %+v", la)
		}

		if _, err := repo.UpdatePhase(ctx, "1", "sleepy"); !errors.Is(err, apperrors.ErrValidation) {
			t.Errorf("UpdatePhase(sleepy) = %v, want ErrValidation", err)
		}
		u, _ := store.GetUser(ctx, "1")
		if u.Phase != models.PhaseFog {
			t.Errorf("invalid phase overwrote %q", u.Phase)
		}
	})
}

func TestAddQuest(t *testing.T) {
	forEachBackend(t, func(t *testing.T, repo *Repository, store storage.Provider, _ *utils.FixedClock) {
		ctx := context.Background()

		for _, empty := range []string{"", "   ", "\n\t"} {
			if _, err := repo.AddQuest(ctx, "1", empty, ""); !errors.Is(err, apperrors.ErrValidation) {
				t.Errorf("AddQuest(%q) = %v, want ErrValidation", empty, err)
			}
		}
		if got := repo.Quests(ctx, "1", ""); len(got) != 0 {
			t.Errorf("rejected quests were stored: %+v", got)
		}

		_, _ = repo.UpdatePhase(ctx, "1", "low")
		q, err := repo.AddQuest(ctx, "1", "  write notes  ", "")
		if err != nil {
			t.Fatal(err)
		}
		if q.ID != 1 || q.Text != "write notes" || q.Status != constants.QuestStatusTodo || q.Phase != models.PhaseLow {
			t.Errorf("AddQuest() = %+v", q)
		}

		q, _ = repo.AddQuest(ctx, "1", "deep work", models.PhaseActive)
		if q.ID != 2 || q.Phase != models.PhaseActive {
			t.Errorf("explicit phase quest = %+v", q)
		}

		if _, err := repo.AddQuest(ctx, "1", "x", models.Phase("nope")); !errors.Is(err, apperrors.ErrValidation) {
			t.Errorf("invalid phase = %v, want ErrValidation", err)
		}

		la, _ := store.GetLastActive(ctx, "1")
		if la == nil || la.Context != constants.ContextQuest || la.Phase != "active" {
			t.Errorf("last active after AddQuest = %+v", la)
		}
	})
}

func TestQuestIDsAfterDelete(t *testing.T) {
	forEachBackend(t, func(t *testing.T, repo *Repository, store storage.Provider, _ *utils.FixedClock) {
		ctx := context.Background()
		a, _ := repo.AddQuest(ctx, "1", "a", "")
		b, _ := repo.AddQuest(ctx, "1", "b", "")
		if a.ID != 1 || b.ID != 2 {
			t.Fatalf("ids = %d, %d; want 1, 2", a.ID, b.ID)
		}
		if err := repo.DeleteQuest(ctx, "1", 1); err != nil {
			t.Fatal(err)
		}
		c, _ := repo.AddQuest(ctx, "1", "c", "")
		if c.ID != 3 {
			t.Errorf("id after deleting 1 = %d, want 3", c.ID)
		}

		if err := repo.DeleteQuest(ctx, "1", 1); !errors.Is(err, apperrors.ErrNotFound) {
			t.Errorf("deleting twice = %v, want ErrNotFound", err)
		}
	})
}

func TestDeleteQuestDoesNotTouchLastActive(t *testing.T) {
	forEachBackend(t, func(t *testing.T, repo *Repository, store storage.Provider, clock *utils.FixedClock) {
		ctx := context.Background()
		q, _ := repo.AddQuest(ctx, "1", "a", "")
		before, _ := store.GetLastActive(ctx, "1")

		clock.Set(start.Add(time.Hour))
		if err := repo.DeleteQuest(ctx, "1", q.ID); err != nil {
			t.Fatal(err)
		}
		after, _ := store.GetLastActive(ctx, "1")
		if after == nil || !after.Timestamp.Equal(before.Timestamp) || after.Context != before.Context {
			t.Errorf("DeleteQuest changed last active: %+v -> %+v", before, after)
		}
	})
}

func TestCompleteQuest(t *testing.T) {
	forEachBackend(t, func(t *testing.T, repo *Repository, store storage.Provider, clock *utils.FixedClock) {
		ctx := context.Background()
		q, _ := repo.AddQuest(ctx, "1", "ship", "")

		clock.Set(start.Add(time.Hour))
		done, err := repo.CompleteQuest(ctx, "1", q.ID)
		if err != nil {
			t.Fatal(err)
		}
		if done.CompletedAt == nil || !done.CompletedAt.Equal(start.Add(time.Hour)) {
			t.Errorf("completed_at = %v", done.CompletedAt)
		}

		clock.Set(start.Add(2 * time.Hour))
		if _, err := repo.CompleteQuest(ctx, "1", q.ID); !errors.Is(err, apperrors.ErrAlreadyDone) {
			t.Fatalf("second completion = %v, want ErrAlreadyDone", err)
		}
		quests := repo.Quests(ctx, "1", constants.QuestStatusDone)
		if len(quests) != 1 || !quests[0].CompletedAt.Equal(start.Add(time.Hour)) {
			t.Errorf("completed_at moved: %+v", quests)
		}

		la, _ := store.GetLastActive(ctx, "1")
		if la.Context != constants.ContextQuestDone {
			t.Errorf("last active context = %q, want quest_done", la.Context)
		}

		if _, err := repo.CompleteQuest(ctx, "1", 404); !errors.Is(err, apperrors.ErrNotFound) {
			t.Errorf("CompleteQuest(404) = %v, want ErrNotFound", err)
		}
		if _, err := repo.CompleteQuest(ctx, "2", q.ID); !errors.Is(err, apperrors.ErrNotFound) {
			t.Errorf("completing someone else's quest = %v, want ErrNotFound", err)
		}
	})
}

func TestQuestsFilter(t *testing.T) {
	forEachBackend(t, func(t *testing.T, repo *Repository, store storage.Provider, _ *utils.FixedClock) {
		ctx := context.Background()
		_, _ = repo.AddQuest(ctx, "1", "a", "")
		b, _ := repo.AddQuest(ctx, "1", "b", "")
		_, _ = repo.AddQuest(ctx, "1", "c", "")
		_, _ = repo.CompleteQuest(ctx, "1", b.ID)

		if got := repo.Quests(ctx, "1", ""); len(got) != 3 {
			t.Errorf("all quests = %d, want 3", len(got))
		}
		if got := repo.Quests(ctx, "1", constants.QuestStatusTodo); len(got) != 2 {
			t.Errorf("todo quests = %d, want 2", len(got))
		}
		if got := repo.Quests(ctx, "1", constants.QuestStatusDone); len(got) != 1 || got[0].ID != b.ID {
			t.Errorf("done quests = %+v", got)
		}
		if got := repo.Quests(ctx, "nobody", ""); got == nil || len(got) != 0 {
			t.Errorf("unknown user quests = %#v, want empty", got)
		}
	})
}

func TestInsights(t *testing.T) {
	forEachBackend(t, func(t *testing.T, repo *Repository, store storage.Provider, _ *utils.FixedClock) {
		ctx := context.Background()
		if _, err := repo.AddInsight(ctx, "1", " "); !errors.Is(err, apperrors.ErrValidation) {
			t.Errorf("empty insight = %v, want ErrValidation", err)
		}

		in, err := repo.AddInsight(ctx, "1", "walks help")
		if err != nil {
			t.Fatal(err)
		}
		if in.Date != "2025-03-14 20:30" {
			t.Errorf("insight date = %q", in.Date)
		}
		_, _ = repo.AddInsight(ctx, "1", "sleep early")

		la, _ := store.GetLastActive(ctx, "1")
		if la.Context != constants.ContextInsight || la.Phase != constants.NoPhase {
			t.Errorf("last active = %+v", la)
		}

		if err := repo.DeleteInsight(ctx, "1", 0); err != nil {
			t.Fatal(err)
		}
		got := repo.Insights(ctx, "1")
		if len(got) != 1 || got[0].Text != "sleep early" {
			t.Errorf("insights = %+v", got)
		}
		if err := repo.DeleteInsight(ctx, "1", 3); !errors.Is(err, apperrors.ErrNotFound) {
			t.Errorf("DeleteInsight(3) = %v, want ErrNotFound", err)
		}
	})
}

func TestReflections(t *testing.T) {
	forEachBackend(t, func(t *testing.T, repo *Repository, store storage.Provider, clock *utils.FixedClock) {
		ctx := context.Background()
		if _, err := repo.AddReflection(ctx, "1", " ", "", "\n"); !errors.Is(err, apperrors.ErrValidation) {
			t.Errorf("empty reflection = %v, want ErrValidation", err)
		}

		days := []time.Time{
			time.Date(2025, 2, 27, 21, 0, 0, 0, time.UTC),
			time.Date(2025, 3, 2, 21, 0, 0, 0, time.UTC),
			time.Date(2025, 3, 1, 21, 0, 0, 0, time.UTC),
		}
		for i, d := range days {
			clock.Set(d)
			if _, err := repo.AddReflection(ctx, "1", "i", "w", string(rune('a'+i))); err != nil {
				t.Fatal(err)
			}
		}

		archive := repo.ReflectionArchive(ctx, "1")
		if len(archive) != 2 || archive[0].Month != "2025-03" || archive[1].Month != "2025-02" {
			t.Fatalf("archive months = %+v", archive)
		}
		march := archive[0].Days
		if len(march) != 2 || march[0].Day != "2025-03-01" || march[1].Day != "2025-03-02" {
			t.Fatalf("march days = %+v", march)
		}
		if march[0].Entries[0].Position != 2 || march[0].Entries[0].Change != "c" {
			t.Errorf("entry position = %+v", march[0].Entries[0])
		}

		if err := repo.DeleteReflection(ctx, "1", march[0].Entries[0].Position); err != nil {
			t.Fatal(err)
		}
		if got := repo.Reflections(ctx, "1"); len(got) != 2 {
			t.Errorf("reflections after delete = %d, want 2", len(got))
		}

		la, _ := store.GetLastActive(ctx, "1")
		if la != nil {
			t.Errorf("reflections should not touch last active, got %+v", la)
		}
	})
}

func TestResetAllData(t *testing.T) {
	forEachBackend(t, func(t *testing.T, repo *Repository, store storage.Provider, _ *utils.FixedClock) {
		ctx := context.Background()
		_, _ = repo.AddQuest(ctx, "1", "a", "")
		_, _ = repo.AddInsight(ctx, "1", "i")
		_ = repo.SetReminder(ctx, "1", "09:00", true)

		if err := repo.ResetAllData(ctx, "1"); err != nil {
			t.Fatal(err)
		}
		if _, err := store.GetUser(ctx, "1"); !errors.Is(err, apperrors.ErrNotFound) {
			t.Errorf("user survived reset: %v", err)
		}
		if ids, _ := store.UsersForReminder(ctx, "09:00"); len(ids) != 0 {
			t.Errorf("reset user still scheduled: %v", ids)
		}
		if err := repo.ResetAllData(ctx, "1"); err != nil {
			t.Errorf("resetting twice = %v, want nil", err)
		}

		q, _ := repo.AddQuest(ctx, "1", "again", "")
		if q.ID != 1 {
			t.Errorf("first quest after reset = %d, want 1", q.ID)
		}
	})
}

func TestStatusAndToday(t *testing.T) {
	forEachBackend(t, func(t *testing.T, repo *Repository, store storage.Provider, _ *utils.FixedClock) {
		ctx := context.Background()

		empty := repo.Status(ctx, "nobody")
		if empty.ActiveQuests != 0 || empty.LastActive != nil {
			t.Errorf("unknown user status = %+v", empty)
		}

		_, _ = repo.UpdatePhase(ctx, "1", "active")
		a, _ := repo.AddQuest(ctx, "1", "first", "")
		_, _ = repo.AddQuest(ctx, "1", "second", "")
		_, _ = repo.AddQuest(ctx, "1", "third", "")
		_, _ = repo.CompleteQuest(ctx, "1", a.ID)
		_, _ = repo.AddInsight(ctx, "1", "i")
		_, _ = repo.AddReflection(ctx, "1", "x", "y", "z")
		_ = repo.SetReminder(ctx, "1", "21:00", true)

		status := repo.Status(ctx, "1")
		if status.Phase != models.PhaseActive || status.ActiveQuests != 2 || status.DoneQuests != 1 ||
			status.Insights != 1 || status.Reflections != 1 {
			t.Errorf("Status() = %+v", status)
		}
		if !status.Reminder.Enabled || status.Reminder.Time != "21:00" {
			t.Errorf("reminder = %+v", status.Reminder)
		}
		if status.LastActive == nil || status.LastActive.Context != constants.ContextInsight {
			t.Errorf("last active = %+v", status.LastActive)
		}

		today := repo.Today(ctx, "1")
		if today.MainQuest == nil || today.MainQuest.Text != "second" {
			t.Errorf("main quest = %+v, want the oldest open quest", today.MainQuest)
		}
		if today.Tip != models.PhaseActive.Tip() {
			t.Errorf("tip = %q", today.Tip)
		}
	})
}

func TestReadsDegradeOnStorageFailure(t *testing.T) {
	ctx := context.Background()
	store := sqlite.NewStore(filepath.Join(t.TempDir(), "test.db"))
	if err := store.Init(ctx); err != nil {
		t.Fatal(err)
	}
	repo := New(store, &utils.FixedClock{T: start}, time.UTC)
	_, _ = repo.AddQuest(ctx, "1", "a", "")
	store.Close()

	if got := repo.Quests(ctx, "1", ""); got == nil || len(got) != 0 {
		t.Errorf("Quests() on broken store = %#v, want empty", got)
	}
	if got := repo.Insights(ctx, "1"); len(got) != 0 {
		t.Errorf("Insights() on broken store = %v", got)
	}
	if got := repo.ReflectionArchive(ctx, "1"); len(got) != 0 {
		t.Errorf("ReflectionArchive() on broken store = %v", got)
	}
	if got := repo.Status(ctx, "1"); got.ActiveQuests != 0 {
		t.Errorf("Status() on broken store = %+v", got)
	}
	if got := repo.Today(ctx, "1"); got.MainQuest != nil {
		t.Errorf("Today() on broken store = %+v", got)
	}

	if _, err := repo.AddQuest(ctx, "1", "b", ""); !errors.Is(err, apperrors.ErrStorage) {
		t.Errorf("AddQuest on broken store = %v, want ErrStorage", err)
	}
}
