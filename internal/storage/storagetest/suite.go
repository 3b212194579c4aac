// Package storagetest holds the behavior shared by every storage.Provider.
// Backend packages call Run from their own tests.
package storagetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/julianstephens/questbot/internal/constants"
	apperrors "github.com/julianstephens/questbot/internal/errors"
	"github.com/julianstephens/questbot/internal/models"
	"github.com/julianstephens/questbot/internal/storage"
)

// Base is the reference instant used by the suite
var Base = time.Date(2025, 3, 14, 20, 30, 0, 0, time.UTC)

// Run executes the suite against stores built by newStore. newStore must
// return an initialized, empty store and register its own cleanup.
func Run(t *testing.T, newStore func(t *testing.T) storage.Provider) {
	tests := []struct {
		name string
		fn   func(t *testing.T, s storage.Provider)
	}{
		{"GetOrCreateIsIdempotent", testGetOrCreateIsIdempotent},
		{"UnknownUser", testUnknownUser},
		{"PhaseAndReminder", testPhaseAndReminder},
		{"UsersForReminderExactMatch", testUsersForReminderExactMatch},
		{"QuestIDsNeverReused", testQuestIDsNeverReused},
		{"CompleteQuest", testCompleteQuest},
		{"QuestsAreOwned", testQuestsAreOwned},
		{"InsightPositions", testInsightPositions},
		{"ReflectionPositions", testReflectionPositions},
		{"LastActiveUpsert", testLastActiveUpsert},
		{"DeleteUserCascades", testDeleteUserCascades},
		{"UserData", testUserData},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.fn(t, newStore(t))
		})
	}
}

func mustUser(t *testing.T, s storage.Provider, id string) models.User {
	t.Helper()
	u, err := s.GetOrCreateUser(context.Background(), id, Base)
	if err != nil {
		t.Fatalf("GetOrCreateUser(%s) error: %v", id, err)
	}
	return u
}

func mustQuest(t *testing.T, s storage.Provider, userID, text string) models.Quest {
	t.Helper()
	q, err := s.AddQuest(context.Background(), userID, models.Quest{
		Text:      text,
		Status:    constants.QuestStatusTodo,
		Phase:     models.PhaseActive,
		CreatedAt: Base,
	})
	if err != nil {
		t.Fatalf("AddQuest(%q) error: %v", text, err)
	}
	return q
}

func questIDs(t *testing.T, s storage.Provider, userID string) []int {
	t.Helper()
	quests, err := s.ListQuests(context.Background(), userID)
	if err != nil {
		t.Fatalf("ListQuests error: %v", err)
	}
	ids := make([]int, 0, len(quests))
	for _, q := range quests {
		ids = append(ids, q.ID)
	}
	return ids
}

func equalInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func testGetOrCreateIsIdempotent(t *testing.T, s storage.Provider) {
	ctx := context.Background()

	first, err := s.GetOrCreateUser(ctx, "100", Base)
	if err != nil {
		t.Fatalf("GetOrCreateUser error: %v", err)
	}
	second, err := s.GetOrCreateUser(ctx, "100", Base.Add(time.Hour))
	if err != nil {
		t.Fatalf("GetOrCreateUser (again) error: %v", err)
	}

	if first.ID != "100" || second.ID != "100" {
		t.Errorf("user ids = %q, %q; want 100", first.ID, second.ID)
	}
	if !second.CreatedAt.Equal(Base) {
		t.Errorf("second call changed created_at to %v", second.CreatedAt)
	}
	if second.ReminderEnabled || second.ReminderTime != "" || second.Phase != "" {
		t.Errorf("new user has non-default fields: %+v", second)
	}

	ids, err := s.ListUserIDs(ctx)
	if err != nil {
		t.Fatalf("ListUserIDs error: %v", err)
	}
	if len(ids) != 1 {
		t.Errorf("ListUserIDs() = %v, want exactly one user", ids)
	}
}

func testUnknownUser(t *testing.T, s storage.Provider) {
	ctx := context.Background()

	checks := map[string]error{}
	_, checks["GetUser"] = s.GetUser(ctx, "ghost")
	_, checks["ListQuests"] = s.ListQuests(ctx, "ghost")
	_, checks["AddQuest"] = s.AddQuest(ctx, "ghost", models.Quest{Text: "x", Status: constants.QuestStatusTodo, CreatedAt: Base})
	checks["SetPhase"] = s.SetPhase(ctx, "ghost", models.PhaseFog)
	checks["SetReminder"] = s.SetReminder(ctx, "ghost", "09:00", true)
	checks["AddInsight"] = s.AddInsight(ctx, "ghost", models.Insight{Text: "x", CreatedAt: Base})
	checks["DeleteUser"] = s.DeleteUser(ctx, "ghost")

	for name, err := range checks {
		if !errors.Is(err, apperrors.ErrNotFound) {
			t.Errorf("%s on unknown user = %v, want ErrNotFound", name, err)
		}
	}
}

func testPhaseAndReminder(t *testing.T, s storage.Provider) {
	ctx := context.Background()
	mustUser(t, s, "1")

	if err := s.SetPhase(ctx, "1", models.PhaseLow); err != nil {
		t.Fatalf("SetPhase error: %v", err)
	}
	if err := s.SetReminder(ctx, "1", "21:00", true); err != nil {
		t.Fatalf("SetReminder error: %v", err)
	}

	u, err := s.GetUser(ctx, "1")
	if err != nil {
		t.Fatalf("GetUser error: %v", err)
	}
	if u.Phase != models.PhaseLow || !u.ReminderEnabled || u.ReminderTime != "21:00" {
		t.Errorf("GetUser() = %+v", u)
	}

	if err := s.DisableReminder(ctx, "1"); err != nil {
		t.Fatalf("DisableReminder error: %v", err)
	}
	u, _ = s.GetUser(ctx, "1")
	if u.ReminderEnabled {
		t.Error("reminder still enabled after DisableReminder")
	}
	if u.ReminderTime != "21:00" {
		t.Errorf("DisableReminder cleared the time: %q", u.ReminderTime)
	}
}

func testUsersForReminderExactMatch(t *testing.T, s storage.Provider) {
	ctx := context.Background()
	for _, id := range []string{"a", "b", "c", "d"} {
		mustUser(t, s, id)
	}
	_ = s.SetReminder(ctx, "a", "21:00", true)
	_ = s.SetReminder(ctx, "b", "21:00", true)
	_ = s.SetReminder(ctx, "c", "21:00", false)
	_ = s.SetReminder(ctx, "d", "21:01", true)

	got, err := s.UsersForReminder(ctx, "21:00")
	if err != nil {
		t.Fatalf("UsersForReminder error: %v", err)
	}
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Errorf("UsersForReminder(21:00) = %v, want [a b]", got)
	}

	got, _ = s.UsersForReminder(ctx, "21:01")
	if len(got) != 1 || got[0] != "d" {
		t.Errorf("UsersForReminder(21:01) = %v, want [d]", got)
	}

	got, _ = s.UsersForReminder(ctx, "21:02")
	if len(got) != 0 {
		t.Errorf("UsersForReminder(21:02) = %v, want none", got)
	}
}

func testQuestIDsNeverReused(t *testing.T, s storage.Provider) {
	ctx := context.Background()
	mustUser(t, s, "1")

	if q := mustQuest(t, s, "1", "first"); q.ID != 1 {
		t.Errorf("first quest id = %d, want 1", q.ID)
	}
	if q := mustQuest(t, s, "1", "second"); q.ID != 2 {
		t.Errorf("second quest id = %d, want 2", q.ID)
	}

	if err := s.DeleteQuest(ctx, "1", 1); err != nil {
		t.Fatalf("DeleteQuest error: %v", err)
	}
	if q := mustQuest(t, s, "1", "third"); q.ID != 3 {
		t.Errorf("quest id after deleting 1 = %d, want 3", q.ID)
	}

	if err := s.DeleteQuest(ctx, "1", 3); err != nil {
		t.Fatalf("DeleteQuest error: %v", err)
	}
	if q := mustQuest(t, s, "1", "fourth"); q.ID != 4 {
		t.Errorf("quest id after deleting the newest = %d, want 4", q.ID)
	}

	if got := questIDs(t, s, "1"); !equalInts(got, []int{2, 4}) {
		t.Errorf("quest ids = %v, want [2 4]", got)
	}

	if err := s.DeleteQuest(ctx, "1", 3); !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("deleting a missing quest = %v, want ErrNotFound", err)
	}
}

func testCompleteQuest(t *testing.T, s storage.Provider) {
	ctx := context.Background()
	mustUser(t, s, "1")
	q := mustQuest(t, s, "1", "ship it")

	doneAt := Base.Add(2 * time.Hour)
	done, err := s.CompleteQuest(ctx, "1", q.ID, doneAt)
	if err != nil {
		t.Fatalf("CompleteQuest error: %v", err)
	}
	if !done.IsDone() || done.CompletedAt == nil || !done.CompletedAt.Equal(doneAt) {
		t.Errorf("CompleteQuest() = %+v", done)
	}

	_, err = s.CompleteQuest(ctx, "1", q.ID, doneAt.Add(time.Hour))
	if !errors.Is(err, apperrors.ErrAlreadyDone) {
		t.Fatalf("second CompleteQuest = %v, want ErrAlreadyDone", err)
	}

	quests, _ := s.ListQuests(ctx, "1")
	if len(quests) != 1 || quests[0].CompletedAt == nil || !quests[0].CompletedAt.Equal(doneAt) {
		t.Errorf("completed_at changed by repeated completion: %+v", quests)
	}

	if _, err := s.CompleteQuest(ctx, "1", 99, doneAt); !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("CompleteQuest(99) = %v, want ErrNotFound", err)
	}
}

func testQuestsAreOwned(t *testing.T, s storage.Provider) {
	ctx := context.Background()
	mustUser(t, s, "alice")
	mustUser(t, s, "bob")
	q := mustQuest(t, s, "alice", "mine")

	if _, err := s.CompleteQuest(ctx, "bob", q.ID, Base); !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("completing another user's quest = %v, want ErrNotFound", err)
	}
	if err := s.DeleteQuest(ctx, "bob", q.ID); !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("deleting another user's quest = %v, want ErrNotFound", err)
	}

	if b := mustQuest(t, s, "bob", "his"); b.ID != 1 {
		t.Errorf("bob's first quest id = %d, want 1", b.ID)
	}
}

func testInsightPositions(t *testing.T, s storage.Provider) {
	ctx := context.Background()
	mustUser(t, s, "1")
	for i, text := range []string{"a", "b", "c"} {
		at := Base.Add(time.Duration(i) * time.Minute)
		if err := s.AddInsight(ctx, "1", models.Insight{Text: text, Date: at.Format(constants.DisplayDateFormat), CreatedAt: at}); err != nil {
			t.Fatalf("AddInsight error: %v", err)
		}
	}

	if err := s.DeleteInsight(ctx, "1", 1); err != nil {
		t.Fatalf("DeleteInsight error: %v", err)
	}
	insights, err := s.ListInsights(ctx, "1")
	if err != nil {
		t.Fatalf("ListInsights error: %v", err)
	}
	if len(insights) != 2 || insights[0].Text != "a" || insights[1].Text != "c" {
		t.Errorf("ListInsights() = %+v, want [a c]", insights)
	}
	if insights[0].Date != "2025-03-14 20:30" {
		t.Errorf("insight date = %q", insights[0].Date)
	}

	for _, pos := range []int{-1, 2, 10} {
		if err := s.DeleteInsight(ctx, "1", pos); !errors.Is(err, apperrors.ErrNotFound) {
			t.Errorf("DeleteInsight(%d) = %v, want ErrNotFound", pos, err)
		}
	}
}

func testReflectionPositions(t *testing.T, s storage.Provider) {
	ctx := context.Background()
	mustUser(t, s, "1")
	for i, important := range []string{"x", "y", "z"} {
		at := Base.Add(time.Duration(i) * 24 * time.Hour)
		r := models.Reflection{
			Date:      at.Format(constants.DisplayDateFormat),
			Important: important,
			Worked:    "w" + important,
			Change:    "c" + important,
			CreatedAt: at,
		}
		if err := s.AddReflection(ctx, "1", r); err != nil {
			t.Fatalf("AddReflection error: %v", err)
		}
	}

	if err := s.DeleteReflection(ctx, "1", 0); err != nil {
		t.Fatalf("DeleteReflection error: %v", err)
	}
	reflections, err := s.ListReflections(ctx, "1")
	if err != nil {
		t.Fatalf("ListReflections error: %v", err)
	}
	if len(reflections) != 2 || reflections[0].Important != "y" || reflections[1].Worked != "wz" {
		t.Errorf("ListReflections() = %+v", reflections)
	}
	if err := s.DeleteReflection(ctx, "1", 2); !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("DeleteReflection(2) = %v, want ErrNotFound", err)
	}
}

func testLastActiveUpsert(t *testing.T, s storage.Provider) {
	ctx := context.Background()
	mustUser(t, s, "1")

	la, err := s.GetLastActive(ctx, "1")
	if err != nil {
		t.Fatalf("GetLastActive error: %v", err)
	}
	if la != nil {
		t.Errorf("fresh user has last active %+v", la)
	}

	_ = s.SetLastActive(ctx, "1", models.LastActive{Timestamp: Base, Date: "2025-03-14 20:30", Context: constants.ContextQuest, Phase: "active"})
	_ = s.SetLastActive(ctx, "1", models.LastActive{Timestamp: Base.Add(time.Minute), Date: "2025-03-14 20:31", Context: constants.ContextInsight, Phase: constants.NoPhase})

	la, err = s.GetLastActive(ctx, "1")
	if err != nil {
		t.Fatalf("GetLastActive error: %v", err)
	}
	if la == nil || la.Context != constants.ContextInsight || la.Date != "2025-03-14 20:31" || la.Phase != constants.NoPhase {
		t.Errorf("GetLastActive() = %+v", la)
	}
	if !la.Timestamp.Equal(Base.Add(time.Minute)) {
		t.Errorf("timestamp = %v", la.Timestamp)
	}
}

func testDeleteUserCascades(t *testing.T, s storage.Provider) {
	ctx := context.Background()
	mustUser(t, s, "1")
	mustUser(t, s, "2")
	mustQuest(t, s, "1", "q")
	mustQuest(t, s, "2", "other")
	_ = s.AddInsight(ctx, "1", models.Insight{Text: "i", CreatedAt: Base})
	_ = s.AddReflection(ctx, "1", models.Reflection{Important: "r", CreatedAt: Base})
	_ = s.SetLastActive(ctx, "1", models.LastActive{Timestamp: Base, Context: constants.ContextQuest, Phase: constants.NoPhase})
	_ = s.SetReminder(ctx, "1", "09:00", true)

	if err := s.DeleteUser(ctx, "1"); err != nil {
		t.Fatalf("DeleteUser error: %v", err)
	}
	if _, err := s.GetUser(ctx, "1"); !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("GetUser after delete = %v, want ErrNotFound", err)
	}
	if ids, _ := s.UsersForReminder(ctx, "09:00"); len(ids) != 0 {
		t.Errorf("deleted user still scheduled: %v", ids)
	}

	mustUser(t, s, "1")
	data, err := s.GetUserData(ctx, "1")
	if err != nil {
		t.Fatalf("GetUserData error: %v", err)
	}
	if len(data.Quests) != 0 || len(data.Insights) != 0 || len(data.Reflections) != 0 || data.LastActive != nil {
		t.Errorf("recreated user kept old records: %+v", data)
	}
	if q := mustQuest(t, s, "1", "fresh"); q.ID != 1 {
		t.Errorf("recreated user's first quest id = %d, want 1", q.ID)
	}

	if got := questIDs(t, s, "2"); !equalInts(got, []int{1}) {
		t.Errorf("other user's quests = %v, want [1]", got)
	}
}

func testUserData(t *testing.T, s storage.Provider) {
	ctx := context.Background()
	mustUser(t, s, "1")
	_ = s.SetPhase(ctx, "1", models.PhaseFog)
	mustQuest(t, s, "1", "a")
	mustQuest(t, s, "1", "b")
	_ = s.AddInsight(ctx, "1", models.Insight{Text: "i", CreatedAt: Base})
	_ = s.AddReflection(ctx, "1", models.Reflection{Important: "r", CreatedAt: Base})

	data, err := s.GetUserData(ctx, "1")
	if err != nil {
		t.Fatalf("GetUserData error: %v", err)
	}
	if data.ID != "1" || data.Phase != models.PhaseFog {
		t.Errorf("user fields = %+v", data.User)
	}
	if data.QuestSeq != 2 {
		t.Errorf("quest_seq = %d, want 2", data.QuestSeq)
	}
	if len(data.Quests) != 2 || len(data.Insights) != 1 || len(data.Reflections) != 1 {
		t.Errorf("collections = %d quests, %d insights, %d reflections", len(data.Quests), len(data.Insights), len(data.Reflections))
	}
	if data.Quests[0].Phase != models.PhaseActive {
		t.Errorf("quest phase = %q, want the stored snapshot", data.Quests[0].Phase)
	}
}
