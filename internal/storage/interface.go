package storage

import (
	"context"
	"time"

	"github.com/julianstephens/questbot/internal/models"
)

// Provider is the record store. Every backend keeps the same semantics:
// each method is one atomic operation, child-record methods return
// errors.ErrNotFound for an unknown user, and failures of the backend
// itself are wrapped with errors.ErrStorage.
type Provider interface {
	// Lifecycle
	Init(ctx context.Context) error
	Load(ctx context.Context) error
	Close() error
	GetConfigPath() string

	// Users
	GetOrCreateUser(ctx context.Context, userID string, now time.Time) (models.User, error)
	GetUser(ctx context.Context, userID string) (models.User, error)
	GetUserData(ctx context.Context, userID string) (*models.UserData, error)
	SetPhase(ctx context.Context, userID string, phase models.Phase) error
	SetReminder(ctx context.Context, userID string, reminderTime string, enabled bool) error
	DisableReminder(ctx context.Context, userID string) error
	// UsersForReminder returns ids of users with reminders enabled at exactly hhmm
	UsersForReminder(ctx context.Context, hhmm string) ([]string, error)
	ListUserIDs(ctx context.Context) ([]string, error)
	DeleteUser(ctx context.Context, userID string) error

	// Quests
	// AddQuest assigns the next id from the user's sequence and returns the stored quest
	AddQuest(ctx context.Context, userID string, quest models.Quest) (models.Quest, error)
	CompleteQuest(ctx context.Context, userID string, questID int, at time.Time) (models.Quest, error)
	DeleteQuest(ctx context.Context, userID string, questID int) error
	ListQuests(ctx context.Context, userID string) ([]models.Quest, error)

	// Insights
	AddInsight(ctx context.Context, userID string, insight models.Insight) error
	ListInsights(ctx context.Context, userID string) ([]models.Insight, error)
	DeleteInsight(ctx context.Context, userID string, position int) error

	// Reflections
	AddReflection(ctx context.Context, userID string, reflection models.Reflection) error
	ListReflections(ctx context.Context, userID string) ([]models.Reflection, error)
	DeleteReflection(ctx context.Context, userID string, position int) error

	// Last active
	SetLastActive(ctx context.Context, userID string, la models.LastActive) error
	GetLastActive(ctx context.Context, userID string) (*models.LastActive, error)
}

// Migrator is implemented by backends with a versioned schema
type Migrator interface {
	Migrate(ctx context.Context) error
	SchemaVersion(ctx context.Context) (current, latest int, err error)
}
