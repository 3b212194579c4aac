package models

import "time"

// User holds the scalar fields of a user aggregate. ID is the external identifier
// supplied by the chat transport and never changes after creation.
type User struct {
	ID              string    `json:"-"`
	Phase           Phase     `json:"phase,omitempty"`
	ReminderEnabled bool      `json:"reminder_enabled"`
	ReminderTime    string    `json:"reminder_time,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	// QuestSeq is the highest quest id ever issued to this user
	QuestSeq int `json:"quest_seq"`
}

// NewUser returns a user with default field values
func NewUser(id string, now time.Time) User {
	return User{
		ID:        id,
		CreatedAt: now,
	}
}

// UserData is the whole per-user document: the user plus every record it owns
type UserData struct {
	User
	Quests      []Quest      `json:"quests"`
	Insights    []Insight    `json:"insights"`
	Reflections []Reflection `json:"reflections"`
	LastActive  *LastActive  `json:"last_active,omitempty"`
}

// NewUserData returns an empty document for a freshly created user
func NewUserData(id string, now time.Time) *UserData {
	return &UserData{
		User:        NewUser(id, now),
		Quests:      []Quest{},
		Insights:    []Insight{},
		Reflections: []Reflection{},
	}
}

// Normalize replaces nil collections with empty ones so decoded and
// freshly built documents compare equal.
func (d *UserData) Normalize() {
	if d.Quests == nil {
		d.Quests = []Quest{}
	}
	if d.Insights == nil {
		d.Insights = []Insight{}
	}
	if d.Reflections == nil {
		d.Reflections = []Reflection{}
	}
}

// LastActive records the most recent user action
type LastActive struct {
	Timestamp time.Time `json:"timestamp"`
	Date      string    `json:"date"`
	Context   string    `json:"context"`
	Phase     string    `json:"phase"`
}
