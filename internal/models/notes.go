package models

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/julianstephens/questbot/internal/constants"
)

type Insight struct {
	Text      string    `json:"text"`
	Date      string    `json:"date"`
	CreatedAt time.Time `json:"created_at"`
}

// Reflection is one evening entry: what mattered, what worked, what to change
type Reflection struct {
	Date      string    `json:"date"`
	Important string    `json:"important"`
	Worked    string    `json:"worked"`
	Change    string    `json:"change"`
	CreatedAt time.Time `json:"created_at"`
}

// ValidateNoteText trims free text and rejects empty input
func ValidateNoteText(kind, text string) (string, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return "", fmt.Errorf("%s cannot be empty", kind)
	}
	return trimmed, nil
}

// ReflectionEntry is a reflection together with its position in the user's list
type ReflectionEntry struct {
	Position int
	Reflection
}

type ReflectionDay struct {
	Day     string
	Entries []ReflectionEntry
}

type ReflectionMonth struct {
	Month string
	Days  []ReflectionDay
}

// GroupReflections builds the browsing archive: months newest first, days oldest
// first within a month, entries in insertion order. Position refers to the
// index in the input slice so callers can delete by position.
func GroupReflections(reflections []Reflection) []ReflectionMonth {
	months := map[string]map[string][]ReflectionEntry{}
	for i, r := range reflections {
		month := r.CreatedAt.Format(constants.MonthFormat)
		day := r.CreatedAt.Format(constants.DateFormat)
		if months[month] == nil {
			months[month] = map[string][]ReflectionEntry{}
		}
		months[month][day] = append(months[month][day], ReflectionEntry{Position: i, Reflection: r})
	}

	monthKeys := make([]string, 0, len(months))
	for m := range months {
		monthKeys = append(monthKeys, m)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(monthKeys)))

	archive := make([]ReflectionMonth, 0, len(monthKeys))
	for _, m := range monthKeys {
		dayKeys := make([]string, 0, len(months[m]))
		for d := range months[m] {
			dayKeys = append(dayKeys, d)
		}
		sort.Strings(dayKeys)

		month := ReflectionMonth{Month: m}
		for _, d := range dayKeys {
			month.Days = append(month.Days, ReflectionDay{Day: d, Entries: months[m][d]})
		}
		archive = append(archive, month)
	}
	return archive
}
