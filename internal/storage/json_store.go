package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/julianstephens/questbot/internal/constants"
	apperrors "github.com/julianstephens/questbot/internal/errors"
	"github.com/julianstephens/questbot/internal/logger"
	"github.com/julianstephens/questbot/internal/models"
)

// Document is the whole JSON file, keyed by external user id
type Document map[string]*models.UserData

// errNoChange lets a Transact mutator finish without rewriting the file
var errNoChange = errors.New("no change")

// JSONStore keeps every user in one JSON document. Access is coordinated
// across processes with flock on a sibling lock file; the data file itself
// is replaced by rename on every write.
type JSONStore struct {
	path     string
	lockPath string
	now      func() time.Time
}

func NewJSONStore(path string) *JSONStore {
	return &JSONStore{
		path:     path,
		lockPath: path + constants.JSONLockSuffix,
		now:      time.Now,
	}
}

func (s *JSONStore) Init(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	if _, err := os.Stat(s.path); err == nil {
		logger.Debug("JSON store already initialized", "path", s.path)
		return nil
	}

	if !s.Write(Document{}) {
		return apperrors.Storage("init", fmt.Errorf("could not create %s", s.path))
	}
	return nil
}

func (s *JSONStore) Load(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := os.Stat(s.path); os.IsNotExist(err) {
		return fmt.Errorf("storage not initialized, run 'questbot init' first")
	}
	return nil
}

func (s *JSONStore) Close() error {
	return nil
}

func (s *JSONStore) GetConfigPath() string {
	return s.path
}

// acquire opens the lock file and takes a shared or exclusive lock on it
func (s *JSONStore) acquire(exclusive bool) (func(), error) {
	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	f, err := os.OpenFile(s.lockPath, os.O_CREATE|os.O_RDWR, constants.JSONStoreFileMode)
	if err != nil {
		return nil, fmt.Errorf("failed to open lock file: %w", err)
	}

	unlock, err := lockFile(f, exclusive)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to lock %s: %w", s.lockPath, err)
	}

	return func() {
		if err := unlock(); err != nil {
			logger.Warn("Failed to release store lock", "path", s.lockPath, "error", err)
		}
		f.Close()
	}, nil
}

func decodeDocument(data []byte) (Document, error) {
	doc := Document{}
	if len(bytes.TrimSpace(data)) == 0 {
		return doc, nil
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrCorruptData, err)
	}
	for id, u := range doc {
		if u == nil {
			delete(doc, id)
			continue
		}
		u.ID = id
		u.Normalize()
	}
	return doc, nil
}

// readFile loads the document without locking. A missing file is an empty document.
func (s *JSONStore) readFile() (Document, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return Document{}, nil
		}
		return nil, fmt.Errorf("failed to read store: %w", err)
	}
	return decodeDocument(data)
}

// writeFile replaces the document through a temp file and rename so readers
// never observe a partial write.
func (s *JSONStore) writeFile(doc Document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize store: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write store: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to sync store: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Chmod(tmpName, constants.JSONStoreFileMode); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to set store permissions: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace store: %w", err)
	}
	return nil
}

// quarantine moves an undecodable file aside so the next write starts clean
// without destroying what was there.
func (s *JSONStore) quarantine(cause error) (Document, error) {
	backup := fmt.Sprintf("%s.corrupt-%s", s.path, s.now().Format("20060102T150405"))
	if err := os.Rename(s.path, backup); err != nil {
		return nil, fmt.Errorf("failed to move corrupt store aside: %w", err)
	}
	logger.Warn("Corrupt JSON store moved aside, starting empty", "path", s.path, "backup", backup, "error", cause)
	return Document{}, nil
}

// Read returns the whole document under a shared lock. A missing or corrupt
// file reads as empty; the problem is logged, never returned.
func (s *JSONStore) Read() Document {
	release, err := s.acquire(false)
	if err != nil {
		logger.Error("Failed to lock store for reading", "path", s.path, "error", err)
		return Document{}
	}
	defer release()

	doc, err := s.readFile()
	if err != nil {
		logger.Error("Failed to read store, treating as empty", "path", s.path, "error", err)
		return Document{}
	}
	return doc
}

// Write replaces the whole document under an exclusive lock and reports success
func (s *JSONStore) Write(doc Document) bool {
	release, err := s.acquire(true)
	if err != nil {
		logger.Error("Failed to lock store for writing", "path", s.path, "error", err)
		return false
	}
	defer release()

	if err := s.writeFile(doc); err != nil {
		logger.Error("Failed to write store", "path", s.path, "error", err)
		return false
	}
	return true
}

// UpdateUser applies fn to one user, creating the user if missing. It reads
// and writes under two separate locks, so a concurrent writer in another
// process can be lost in between. Use Transact when that matters. A corrupt
// file is moved aside before the new document is written; any other read
// failure aborts without writing.
func (s *JSONStore) UpdateUser(userID string, fn func(*models.UserData)) bool {
	release, err := s.acquire(false)
	if err != nil {
		logger.Error("Failed to lock store for reading", "path", s.path, "error", err)
		return false
	}
	doc, readErr := s.readFile()
	release()

	corrupt := errors.Is(readErr, apperrors.ErrCorruptData)
	if readErr != nil && !corrupt {
		logger.Error("Failed to read store, not updating", "path", s.path, "user", userID, "error", readErr)
		return false
	}
	if corrupt {
		doc = Document{}
	}

	u, ok := doc[userID]
	if !ok {
		u = models.NewUserData(userID, s.now())
		doc[userID] = u
	}
	fn(u)

	release, err = s.acquire(true)
	if err != nil {
		logger.Error("Failed to lock store for writing", "path", s.path, "error", err)
		return false
	}
	defer release()

	if corrupt {
		// another process may have moved it aside already
		if _, err := s.quarantine(readErr); err != nil && !errors.Is(err, fs.ErrNotExist) {
			logger.Error("Failed to preserve corrupt store, not updating", "path", s.path, "error", err)
			return false
		}
	}
	if err := s.writeFile(doc); err != nil {
		logger.Error("Failed to write store", "path", s.path, "error", err)
		return false
	}
	return true
}

// Transact runs mutator with the exclusive lock held across read, mutate and
// write. If mutator returns an error nothing is written and the error is
// returned unchanged.
func (s *JSONStore) Transact(mutator func(Document) error) error {
	release, err := s.acquire(true)
	if err != nil {
		return apperrors.Storage("lock", err)
	}
	defer release()

	doc, err := s.readFile()
	if errors.Is(err, apperrors.ErrCorruptData) {
		doc, err = s.quarantine(err)
	}
	if err != nil {
		return apperrors.Storage("read", err)
	}

	if err := mutator(doc); err != nil {
		if errors.Is(err, errNoChange) {
			return nil
		}
		return err
	}

	if err := s.writeFile(doc); err != nil {
		return apperrors.Storage("write", err)
	}
	return nil
}

func (s *JSONStore) update(ctx context.Context, fn func(Document) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.Transact(fn)
}

func (s *JSONStore) view(ctx context.Context, fn func(Document) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(s.Read())
}

func (s *JSONStore) updateUser(ctx context.Context, userID string, fn func(*models.UserData) error) error {
	return s.update(ctx, func(doc Document) error {
		u, ok := doc[userID]
		if !ok {
			return apperrors.NotFoundf("user %s", userID)
		}
		return fn(u)
	})
}

func (s *JSONStore) viewUser(ctx context.Context, userID string, fn func(*models.UserData) error) error {
	return s.view(ctx, func(doc Document) error {
		u, ok := doc[userID]
		if !ok {
			return apperrors.NotFoundf("user %s", userID)
		}
		return fn(u)
	})
}

// Users

func (s *JSONStore) GetOrCreateUser(ctx context.Context, userID string, now time.Time) (models.User, error) {
	var user models.User
	err := s.update(ctx, func(doc Document) error {
		if u, ok := doc[userID]; ok {
			user = u.User
			return errNoChange
		}
		u := models.NewUserData(userID, now)
		doc[userID] = u
		user = u.User
		return nil
	})
	return user, err
}

func (s *JSONStore) GetUser(ctx context.Context, userID string) (models.User, error) {
	var user models.User
	err := s.viewUser(ctx, userID, func(u *models.UserData) error {
		user = u.User
		return nil
	})
	return user, err
}

func (s *JSONStore) GetUserData(ctx context.Context, userID string) (*models.UserData, error) {
	var data *models.UserData
	err := s.viewUser(ctx, userID, func(u *models.UserData) error {
		data = u
		return nil
	})
	return data, err
}

func (s *JSONStore) SetPhase(ctx context.Context, userID string, phase models.Phase) error {
	return s.updateUser(ctx, userID, func(u *models.UserData) error {
		u.Phase = phase
		return nil
	})
}

func (s *JSONStore) SetReminder(ctx context.Context, userID string, reminderTime string, enabled bool) error {
	return s.updateUser(ctx, userID, func(u *models.UserData) error {
		u.ReminderTime = reminderTime
		u.ReminderEnabled = enabled
		return nil
	})
}

func (s *JSONStore) DisableReminder(ctx context.Context, userID string) error {
	return s.updateUser(ctx, userID, func(u *models.UserData) error {
		u.ReminderEnabled = false
		return nil
	})
}

func (s *JSONStore) UsersForReminder(ctx context.Context, hhmm string) ([]string, error) {
	var ids []string
	err := s.view(ctx, func(doc Document) error {
		for id, u := range doc {
			if u.ReminderEnabled && u.ReminderTime == hhmm {
				ids = append(ids, id)
			}
		}
		return nil
	})
	sort.Strings(ids)
	return ids, err
}

func (s *JSONStore) ListUserIDs(ctx context.Context) ([]string, error) {
	var ids []string
	err := s.view(ctx, func(doc Document) error {
		for id := range doc {
			ids = append(ids, id)
		}
		return nil
	})
	sort.Strings(ids)
	return ids, err
}

func (s *JSONStore) DeleteUser(ctx context.Context, userID string) error {
	return s.update(ctx, func(doc Document) error {
		if _, ok := doc[userID]; !ok {
			return apperrors.NotFoundf("user %s", userID)
		}
		delete(doc, userID)
		return nil
	})
}

// Quests

func (s *JSONStore) AddQuest(ctx context.Context, userID string, quest models.Quest) (models.Quest, error) {
	err := s.updateUser(ctx, userID, func(u *models.UserData) error {
		quest.ID = models.NextQuestID(u.Quests, u.QuestSeq)
		u.QuestSeq = quest.ID
		u.Quests = append(u.Quests, quest)
		return nil
	})
	if err != nil {
		return models.Quest{}, err
	}
	return quest, nil
}

func findQuest(quests []models.Quest, questID int) int {
	for i, q := range quests {
		if q.ID == questID {
			return i
		}
	}
	return -1
}

func (s *JSONStore) CompleteQuest(ctx context.Context, userID string, questID int, at time.Time) (models.Quest, error) {
	var done models.Quest
	err := s.updateUser(ctx, userID, func(u *models.UserData) error {
		i := findQuest(u.Quests, questID)
		if i < 0 {
			return apperrors.NotFoundf("quest %d", questID)
		}
		if u.Quests[i].IsDone() {
			done = u.Quests[i]
			return fmt.Errorf("%w: quest %d", apperrors.ErrAlreadyDone, questID)
		}
		completed := at
		u.Quests[i].Status = constants.QuestStatusDone
		u.Quests[i].CompletedAt = &completed
		done = u.Quests[i]
		return nil
	})
	return done, err
}

func (s *JSONStore) DeleteQuest(ctx context.Context, userID string, questID int) error {
	return s.updateUser(ctx, userID, func(u *models.UserData) error {
		i := findQuest(u.Quests, questID)
		if i < 0 {
			return apperrors.NotFoundf("quest %d", questID)
		}
		u.Quests = append(u.Quests[:i], u.Quests[i+1:]...)
		return nil
	})
}

func (s *JSONStore) ListQuests(ctx context.Context, userID string) ([]models.Quest, error) {
	var quests []models.Quest
	err := s.viewUser(ctx, userID, func(u *models.UserData) error {
		quests = u.Quests
		return nil
	})
	return quests, err
}

// Insights

func (s *JSONStore) AddInsight(ctx context.Context, userID string, insight models.Insight) error {
	return s.updateUser(ctx, userID, func(u *models.UserData) error {
		u.Insights = append(u.Insights, insight)
		return nil
	})
}

func (s *JSONStore) ListInsights(ctx context.Context, userID string) ([]models.Insight, error) {
	var insights []models.Insight
	err := s.viewUser(ctx, userID, func(u *models.UserData) error {
		insights = u.Insights
		return nil
	})
	return insights, err
}

func (s *JSONStore) DeleteInsight(ctx context.Context, userID string, position int) error {
	return s.updateUser(ctx, userID, func(u *models.UserData) error {
		if position < 0 || position >= len(u.Insights) {
			return apperrors.NotFoundf("insight at position %d", position)
		}
		u.Insights = append(u.Insights[:position], u.Insights[position+1:]...)
		return nil
	})
}

// Reflections

func (s *JSONStore) AddReflection(ctx context.Context, userID string, reflection models.Reflection) error {
	return s.updateUser(ctx, userID, func(u *models.UserData) error {
		u.Reflections = append(u.Reflections, reflection)
		return nil
	})
}

func (s *JSONStore) ListReflections(ctx context.Context, userID string) ([]models.Reflection, error) {
	var reflections []models.Reflection
	err := s.viewUser(ctx, userID, func(u *models.UserData) error {
		reflections = u.Reflections
		return nil
	})
	return reflections, err
}

func (s *JSONStore) DeleteReflection(ctx context.Context, userID string, position int) error {
	return s.updateUser(ctx, userID, func(u *models.UserData) error {
		if position < 0 || position >= len(u.Reflections) {
			return apperrors.NotFoundf("reflection at position %d", position)
		}
		u.Reflections = append(u.Reflections[:position], u.Reflections[position+1:]...)
		return nil
	})
}

// Last active

func (s *JSONStore) SetLastActive(ctx context.Context, userID string, la models.LastActive) error {
	return s.updateUser(ctx, userID, func(u *models.UserData) error {
		u.LastActive = &la
		return nil
	})
}

func (s *JSONStore) GetLastActive(ctx context.Context, userID string) (*models.LastActive, error) {
	var la *models.LastActive
	err := s.viewUser(ctx, userID, func(u *models.UserData) error {
		la = u.LastActive
		return nil
	})
	return la, err
}

var _ Provider = (*JSONStore)(nil)
