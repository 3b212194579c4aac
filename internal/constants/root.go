package constants

import "time"

const (
	AppName            = "questbot"
	DefaultKeyringUser = "database-connection"
	BotTokenKeyringKey = "bot-token"
	DefaultDataDir     = "~/.config/questbot"
	DefaultStorePath   = "~/.config/questbot/questbot.db"
	DefaultConfigFile  = "~/.config/questbot/config.yaml"
	DefaultLogDir      = "~/.config/questbot/logs"
	DefaultEnvFile     = ".env"
	Version            = "v0.3.0"

	// DateFormat is the standard date format used throughout the application (YYYY-MM-DD)
	DateFormat = "2006-01-02"

	// TimeFormat is the standard time format used throughout the application (HH:MM)
	TimeFormat = "15:04"

	// DisplayDateFormat is used for insight, reflection and last-active display dates
	DisplayDateFormat = "2006-01-02 15:04"

	// MonthFormat groups reflections in the archive
	MonthFormat = "2006-01"

	// Reminder constants
	ReminderInterval    = time.Minute
	DefaultReminderText = "🧘 Пора на рефлексию. Напиши /reflect"
	DefaultReminderTime = "21:00"
	DefaultSendTimeout  = 10 * time.Second
	DefaultTimezone     = "Local"

	// HTTP constants
	DefaultHTTPAddr     = ":8080"
	WebhookSecretHeader = "X-Questbot-Secret"
	TriggerTokenHeader  = "X-Questbot-Trigger"

	// Local relay constants
	RelayLockfileName = "questbot-relay.lock"
	RelayExecutable   = "questbot-relay"
	RelayTimeoutMs    = 5000

	// Quest status constants
	QuestStatusTodo = "todo"
	QuestStatusDone = "done"

	// Last-active context labels
	ContextPhase     = "phase"
	ContextQuest     = "quest"
	ContextQuestDone = "quest_done"
	ContextInsight   = "insight"

	// NoPhase is recorded when neither the caller nor the user has a phase
	NoPhase = "-"

	// JSON store constants
	JSONStoreSuffix   = ".json"
	JSONLockSuffix    = ".lock"
	JSONStoreFileMode = 0600
)
