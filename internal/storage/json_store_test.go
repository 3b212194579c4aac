package storage_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/julianstephens/questbot/internal/constants"
	"github.com/julianstephens/questbot/internal/logger"
	"github.com/julianstephens/questbot/internal/models"
	"github.com/julianstephens/questbot/internal/storage"
	"github.com/julianstephens/questbot/internal/storage/storagetest"
)

func TestMain(m *testing.M) {
	logger.Discard()
	os.Exit(m.Run())
}

func newJSONStore(t *testing.T) *storage.JSONStore {
	t.Helper()
	s := storage.NewJSONStore(filepath.Join(t.TempDir(), "data.json"))
	if err := s.Init(context.Background()); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	return s
}

func TestJSONStoreProvider(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storage.Provider {
		return newJSONStore(t)
	})
}

func TestJSONStoreLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "data.json")
	s := storage.NewJSONStore(path)

	if err := s.Load(context.Background()); err == nil {
		t.Error("Load should fail before Init")
	}
	if err := s.Init(context.Background()); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	if err := s.Load(context.Background()); err != nil {
		t.Errorf("Load after Init failed: %v", err)
	}
	if err := s.Init(context.Background()); err != nil {
		t.Errorf("second Init should be a no-op, got %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("store mode = %v, want 0600", info.Mode().Perm())
	}
}

func TestJSONStoreReadMissingFile(t *testing.T) {
	s := storage.NewJSONStore(filepath.Join(t.TempDir(), "absent.json"))
	if doc := s.Read(); len(doc) != 0 {
		t.Errorf("Read() of missing file = %v, want empty", doc)
	}
}

func TestJSONStoreCorruptFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data.json")
	if err := os.WriteFile(path, []byte("{not json"), 0600); err != nil {
		t.Fatal(err)
	}
	s := storage.NewJSONStore(path)

	if doc := s.Read(); len(doc) != 0 {
		t.Errorf("Read() of corrupt file = %v, want empty", doc)
	}

	ctx := context.Background()
	if _, err := s.GetOrCreateUser(ctx, "1", storagetest.Base); err != nil {
		t.Fatalf("GetOrCreateUser over corrupt file failed: %v", err)
	}
	if doc := s.Read(); len(doc) != 1 {
		t.Errorf("Read() after write = %d users, want 1", len(doc))
	}

	entries, _ := os.ReadDir(dir)
	var backups int
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), "data.json.corrupt-") {
			backups++
			data, _ := os.ReadFile(filepath.Join(dir, e.Name()))
			if string(data) != "{not json" {
				t.Errorf("backup content = %q", data)
			}
		}
	}
	if backups != 1 {
		t.Errorf("found %d corrupt backups, want 1", backups)
	}
}

func TestJSONStoreUpdateUserKeepsCorruptFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data.json")
	truncated := `{"1":{"phase":"active"},"2":{"phase":"lo`
	if err := os.WriteFile(path, []byte(truncated), 0600); err != nil {
		t.Fatal(err)
	}
	s := storage.NewJSONStore(path)

	if !s.UpdateUser("3", func(u *models.UserData) { u.Phase = models.PhaseLow }) {
		t.Fatal("UpdateUser() over corrupt file = false")
	}
	doc := s.Read()
	if len(doc) != 1 || doc["3"] == nil {
		t.Errorf("document after update = %v, want only user 3", doc)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	var backups []string
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), "data.json.corrupt-") {
			backups = append(backups, e.Name())
		}
	}
	if len(backups) != 1 {
		t.Fatalf("found corrupt backups %v, want exactly 1", backups)
	}
	data, err := os.ReadFile(filepath.Join(dir, backups[0]))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != truncated {
		t.Errorf("backup content = %q, want the original document", data)
	}
}

func TestJSONStoreRoundTrip(t *testing.T) {
	s := newJSONStore(t)
	completed := storagetest.Base.Add(time.Hour)

	want := storage.Document{
		"42": {
			User: models.User{
				ID:              "42",
				Phase:           models.PhaseActive,
				ReminderEnabled: true,
				ReminderTime:    "21:00",
				CreatedAt:       storagetest.Base,
				QuestSeq:        2,
			},
			Quests: []models.Quest{
				{ID: 1, Text: "a", Status: constants.QuestStatusDone, Phase: models.PhaseActive, CreatedAt: storagetest.Base, CompletedAt: &completed},
				{ID: 2, Text: "b", Status: constants.QuestStatusTodo, CreatedAt: storagetest.Base},
			},
			Insights:    []models.Insight{{Text: "idea", Date: "2025-03-14 20:30", CreatedAt: storagetest.Base}},
			Reflections: []models.Reflection{{Date: "2025-03-14 20:30", Important: "i", Worked: "w", Change: "c", CreatedAt: storagetest.Base}},
			LastActive:  &models.LastActive{Timestamp: storagetest.Base, Date: "2025-03-14 20:30", Context: constants.ContextQuest, Phase: "active"},
		},
		"7": models.NewUserData("7", storagetest.Base),
	}

	if !s.Write(want) {
		t.Fatal("Write() = false")
	}
	got := s.Read()
	if !reflect.DeepEqual(got, want) {
		t.Errorf("round trip mismatch:\n got  %+v\n want %+v", got, want)
	}

	entries, _ := os.ReadDir(filepath.Dir(s.GetConfigPath()))
	for _, e := range entries {
		if strings.Contains(e.Name(), ".tmp-") {
			t.Errorf("temp file left behind: %s", e.Name())
		}
	}
}

func TestJSONStoreLayout(t *testing.T) {
	s := newJSONStore(t)
	ctx := context.Background()
	if _, err := s.GetOrCreateUser(ctx, "42", storagetest.Base); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(s.GetConfigPath())
	if err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{`"42"`, `"quests"`, `"insights"`, `"reflections"`, `"reminder_enabled"`, `"created_at"`, `"quest_seq"`} {
		if !strings.Contains(string(data), key) {
			t.Errorf("document missing %s:\n%s", key, data)
		}
	}
}

func TestJSONStoreUpdateUser(t *testing.T) {
	s := newJSONStore(t)

	ok := s.UpdateUser("5", func(u *models.UserData) {
		u.Phase = models.PhaseFog
	})
	if !ok {
		t.Fatal("UpdateUser() = false")
	}

	doc := s.Read()
	u, found := doc["5"]
	if !found {
		t.Fatal("UpdateUser did not create the user")
	}
	if u.Phase != models.PhaseFog || u.ID != "5" {
		t.Errorf("user = %+v", u.User)
	}
}

func TestJSONStoreTransactErrorSkipsWrite(t *testing.T) {
	s := newJSONStore(t)
	boom := errors.New("boom")

	err := s.Transact(func(doc storage.Document) error {
		doc["x"] = models.NewUserData("x", storagetest.Base)
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Transact() = %v, want boom", err)
	}
	if doc := s.Read(); len(doc) != 0 {
		t.Errorf("failed Transact wrote %v", doc)
	}
}

func TestJSONStoreConcurrentQuests(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data.json")
	ctx := context.Background()

	setup := storage.NewJSONStore(path)
	if err := setup.Init(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := setup.GetOrCreateUser(ctx, "1", storagetest.Base); err != nil {
		t.Fatal(err)
	}

	const workers = 20
	var wg sync.WaitGroup
	ids := make(chan int, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			// separate instances mimic separate processes sharing the file
			s := storage.NewJSONStore(path)
			q, err := s.AddQuest(ctx, "1", models.Quest{Text: "q", Status: constants.QuestStatusTodo, CreatedAt: storagetest.Base})
			if err != nil {
				t.Errorf("AddQuest error: %v", err)
				return
			}
			ids <- q.ID
		}()
	}
	wg.Wait()
	close(ids)

	var got []int
	for id := range ids {
		got = append(got, id)
	}
	sort.Ints(got)
	if len(got) != workers {
		t.Fatalf("got %d ids, want %d", len(got), workers)
	}
	for i, id := range got {
		if id != i+1 {
			t.Fatalf("ids = %v, want 1..%d without gaps or duplicates", got, workers)
		}
	}

	quests, err := setup.ListQuests(ctx, "1")
	if err != nil {
		t.Fatal(err)
	}
	if len(quests) != workers {
		t.Errorf("stored %d quests, want %d", len(quests), workers)
	}
}

func TestJSONStoreCanceledContext(t *testing.T) {
	s := newJSONStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := s.GetOrCreateUser(ctx, "1", storagetest.Base); !errors.Is(err, context.Canceled) {
		t.Errorf("GetOrCreateUser with canceled ctx = %v", err)
	}
	if doc := s.Read(); len(doc) != 0 {
		t.Error("canceled call wrote to the store")
	}
}
