// Package repository is the user aggregate: every user-facing operation on
// phase, quests, insights, reflections and reminder settings goes through it.
package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/julianstephens/questbot/internal/activity"
	"github.com/julianstephens/questbot/internal/constants"
	apperrors "github.com/julianstephens/questbot/internal/errors"
	"github.com/julianstephens/questbot/internal/logger"
	"github.com/julianstephens/questbot/internal/models"
	"github.com/julianstephens/questbot/internal/storage"
	"github.com/julianstephens/questbot/internal/utils"
)

type Repository struct {
	store    storage.Provider
	tracker  *activity.Tracker
	clock    utils.Clock
	location *time.Location
}

func New(store storage.Provider, clock utils.Clock, location *time.Location) *Repository {
	if location == nil {
		location = time.Local
	}
	return &Repository{
		store:    store,
		tracker:  activity.NewTracker(store, clock, location),
		clock:    clock,
		location: location,
	}
}

func (r *Repository) now() time.Time {
	return r.clock.Now().In(r.location)
}

// touch records activity. The action already succeeded, so a failure here is
// logged and not returned.
func (r *Repository) touch(ctx context.Context, userID, activityContext string, phase models.Phase) {
	if _, err := r.tracker.Touch(ctx, userID, activityContext, phase); err != nil {
		logger.Warn("Failed to update last active", "user", userID, "context", activityContext, "error", err)
	}
}

// GetOrCreateUser returns the user, creating it with defaults on first contact
func (r *Repository) GetOrCreateUser(ctx context.Context, userID string) (models.User, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return models.User{}, apperrors.Validationf("user id cannot be empty")
	}
	return r.store.GetOrCreateUser(ctx, userID, r.now())
}

// UpdatePhase parses and stores the user's phase
func (r *Repository) UpdatePhase(ctx context.Context, userID, phase string) (models.Phase, error) {
	p, err := models.ParsePhase(phase)
	if err != nil {
		return "", apperrors.Validationf("%v", err)
	}
	if _, err := r.GetOrCreateUser(ctx, userID); err != nil {
		return "", err
	}
	if err := r.store.SetPhase(ctx, userID, p); err != nil {
		return "", err
	}
	r.touch(ctx, userID, constants.ContextPhase, p)
	return p, nil
}

// AddQuest creates a todo quest. An empty phase snapshots the user's current phase.
func (r *Repository) AddQuest(ctx context.Context, userID, text string, phase models.Phase) (models.Quest, error) {
	text, err := models.ValidateQuestText(text)
	if err != nil {
		return models.Quest{}, apperrors.Validationf("%v", err)
	}
	if phase != "" && !phase.IsValid() {
		return models.Quest{}, apperrors.Validationf("unknown phase %q", phase)
	}

	user, err := r.GetOrCreateUser(ctx, userID)
	if err != nil {
		return models.Quest{}, err
	}
	if phase == "" {
		phase = user.Phase
	}

	quest, err := r.store.AddQuest(ctx, userID, models.Quest{
		Text:      text,
		Status:    constants.QuestStatusTodo,
		Phase:     phase,
		CreatedAt: r.now(),
	})
	if err != nil {
		return models.Quest{}, err
	}
	r.touch(ctx, userID, constants.ContextQuest, phase)
	return quest, nil
}

// CompleteQuest marks a todo quest done. A done quest is left untouched and
// ErrAlreadyDone is returned.
func (r *Repository) CompleteQuest(ctx context.Context, userID string, questID int) (models.Quest, error) {
	if _, err := r.GetOrCreateUser(ctx, userID); err != nil {
		return models.Quest{}, err
	}
	quest, err := r.store.CompleteQuest(ctx, userID, questID, r.now())
	if err != nil {
		return quest, err
	}
	r.touch(ctx, userID, constants.ContextQuestDone, "")
	return quest, nil
}

// DeleteQuest removes a quest by id. Like every child operation it creates
// the user first, so deleting for an unknown id leaves an empty user behind
// and returns ErrNotFound for the quest.
func (r *Repository) DeleteQuest(ctx context.Context, userID string, questID int) error {
	if _, err := r.GetOrCreateUser(ctx, userID); err != nil {
		return err
	}
	return r.store.DeleteQuest(ctx, userID, questID)
}

// Quests lists quests filtered by status ("" for all). Storage failures are
// logged and read as an empty list.
func (r *Repository) Quests(ctx context.Context, userID, status string) []models.Quest {
	quests, err := r.store.ListQuests(ctx, userID)
	if err != nil {
		logRead("quests", userID, err)
		return []models.Quest{}
	}
	return models.FilterQuests(quests, status)
}

func (r *Repository) AddInsight(ctx context.Context, userID, text string) (models.Insight, error) {
	text, err := models.ValidateNoteText("insight", text)
	if err != nil {
		return models.Insight{}, apperrors.Validationf("%v", err)
	}
	if _, err := r.GetOrCreateUser(ctx, userID); err != nil {
		return models.Insight{}, err
	}

	now := r.now()
	insight := models.Insight{Text: text, Date: utils.DisplayDate(now), CreatedAt: now}
	if err := r.store.AddInsight(ctx, userID, insight); err != nil {
		return models.Insight{}, err
	}
	r.touch(ctx, userID, constants.ContextInsight, "")
	return insight, nil
}

func (r *Repository) Insights(ctx context.Context, userID string) []models.Insight {
	insights, err := r.store.ListInsights(ctx, userID)
	if err != nil {
		logRead("insights", userID, err)
		return []models.Insight{}
	}
	return insights
}

// DeleteInsight removes the insight at a 0-based position, creating the user
// first if needed.
func (r *Repository) DeleteInsight(ctx context.Context, userID string, position int) error {
	if _, err := r.GetOrCreateUser(ctx, userID); err != nil {
		return err
	}
	return r.store.DeleteInsight(ctx, userID, position)
}

// AddReflection stores the three evening answers. Answers are trimmed and at
// least one must be non-empty.
func (r *Repository) AddReflection(ctx context.Context, userID, important, worked, change string) (models.Reflection, error) {
	important = strings.TrimSpace(important)
	worked = strings.TrimSpace(worked)
	change = strings.TrimSpace(change)
	if important == "" && worked == "" && change == "" {
		return models.Reflection{}, apperrors.Validationf("reflection needs at least one answer")
	}
	if _, err := r.GetOrCreateUser(ctx, userID); err != nil {
		return models.Reflection{}, err
	}

	now := r.now()
	reflection := models.Reflection{
		Date:      utils.DisplayDate(now),
		Important: important,
		Worked:    worked,
		Change:    change,
		CreatedAt: now,
	}
	if err := r.store.AddReflection(ctx, userID, reflection); err != nil {
		return models.Reflection{}, err
	}
	return reflection, nil
}

func (r *Repository) Reflections(ctx context.Context, userID string) []models.Reflection {
	reflections, err := r.store.ListReflections(ctx, userID)
	if err != nil {
		logRead("reflections", userID, err)
		return []models.Reflection{}
	}
	return reflections
}

// ReflectionArchive groups reflections by month (newest first) and day, in
// the configured zone
func (r *Repository) ReflectionArchive(ctx context.Context, userID string) []models.ReflectionMonth {
	reflections := r.Reflections(ctx, userID)
	local := make([]models.Reflection, len(reflections))
	for i, ref := range reflections {
		ref.CreatedAt = ref.CreatedAt.In(r.location)
		local[i] = ref
	}
	return models.GroupReflections(local)
}

// DeleteReflection removes the reflection at a 0-based position, creating the
// user first if needed.
func (r *Repository) DeleteReflection(ctx context.Context, userID string, position int) error {
	if _, err := r.GetOrCreateUser(ctx, userID); err != nil {
		return err
	}
	return r.store.DeleteReflection(ctx, userID, position)
}

// SetReminder validates HH:MM before anything is written
func (r *Repository) SetReminder(ctx context.Context, userID, reminderTime string, enabled bool) error {
	if err := models.ValidateReminderTime(reminderTime); err != nil {
		return apperrors.Validationf("%v", err)
	}
	if _, err := r.GetOrCreateUser(ctx, userID); err != nil {
		return err
	}
	return r.store.SetReminder(ctx, userID, reminderTime, enabled)
}

// DisableReminder turns the reminder off and keeps the configured time. An
// unknown user is created with the reminder off.
func (r *Repository) DisableReminder(ctx context.Context, userID string) error {
	if _, err := r.GetOrCreateUser(ctx, userID); err != nil {
		return err
	}
	return r.store.DisableReminder(ctx, userID)
}

// ResetAllData deletes the user with every owned record. Resetting a user
// that does not exist is not an error.
func (r *Repository) ResetAllData(ctx context.Context, userID string) error {
	err := r.store.DeleteUser(ctx, userID)
	if errors.Is(err, apperrors.ErrNotFound) {
		return nil
	}
	return err
}

// Status summarizes the user's data; storage failures read as an empty summary
func (r *Repository) Status(ctx context.Context, userID string) models.Status {
	data, err := r.store.GetUserData(ctx, userID)
	if err != nil {
		logRead("status", userID, err)
		return models.Status{}
	}

	status := models.Status{
		Phase:       data.Phase,
		Insights:    len(data.Insights),
		Reflections: len(data.Reflections),
		LastActive:  data.LastActive,
		Reminder: models.ReminderSettings{
			Enabled: data.ReminderEnabled,
			Time:    data.ReminderTime,
		},
	}
	for _, q := range data.Quests {
		if q.IsDone() {
			status.DoneQuests++
		} else {
			status.ActiveQuests++
		}
	}
	return status
}

// Today returns the phase tip and the oldest open quest
func (r *Repository) Today(ctx context.Context, userID string) models.Today {
	user, err := r.store.GetUser(ctx, userID)
	if err != nil {
		logRead("today", userID, err)
		return models.Today{Tip: models.Phase("").Tip()}
	}

	today := models.Today{Phase: user.Phase, Tip: user.Phase.Tip()}
	open := r.Quests(ctx, userID, constants.QuestStatusTodo)
	if len(open) > 0 {
		q := open[0]
		today.MainQuest = &q
	}
	return today
}

// logRead records a failed read that is being served as empty. A user that
// does not exist yet is expected and only logged at debug level.
func logRead(what, userID string, err error) {
	if errors.Is(err, apperrors.ErrNotFound) {
		logger.Debug("No data for user", "what", what, "user", userID)
		return
	}
	logger.Error("Failed to read user data", "what", what, "user", userID, "error", err)
}
