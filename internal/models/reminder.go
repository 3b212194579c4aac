package models

import (
	"fmt"
	"regexp"
)

// reminderTimePattern accepts exactly HH:MM with a 24-hour clock
var reminderTimePattern = regexp.MustCompile(`^([01][0-9]|2[0-3]):[0-5][0-9]$`)

// ValidateReminderTime rejects anything that is not a two-digit hour 00-23 and
// a two-digit minute 00-59 separated by a colon.
func ValidateReminderTime(s string) error {
	if !reminderTimePattern.MatchString(s) {
		return fmt.Errorf("invalid reminder time %q (expected HH:MM)", s)
	}
	return nil
}

// Status is the summary shown to a user about their own data
type Status struct {
	Phase        Phase
	ActiveQuests int
	DoneQuests   int
	Insights     int
	Reflections  int
	LastActive   *LastActive
	Reminder     ReminderSettings
}

type ReminderSettings struct {
	Enabled bool
	Time    string
}

// Today is the focus for the current day
type Today struct {
	Phase     Phase
	Tip       string
	MainQuest *Quest
}
