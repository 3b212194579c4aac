package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/julianstephens/questbot/internal/constants"
)

// Clock abstracts time so scans and timestamps are deterministic in tests
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock in a fixed location
type SystemClock struct {
	Location *time.Location
}

func (c SystemClock) Now() time.Time {
	if c.Location == nil {
		return time.Now()
	}
	return time.Now().In(c.Location)
}

// FixedClock returns T until moved with Set. Safe for concurrent use.
type FixedClock struct {
	mu sync.Mutex
	T  time.Time
}

func (c *FixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.T
}

// Set moves the clock to t
func (c *FixedClock) Set(t time.Time) {
	c.mu.Lock()
	c.T = t
	c.mu.Unlock()
}

// LoadLocation loads a timezone location from an IANA timezone name.
// If the timezone is "Local" or empty, it returns the system's local timezone.
func LoadLocation(timezone string) (*time.Location, error) {
	if timezone == "" || timezone == constants.DefaultTimezone {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", timezone, err)
	}
	return loc, nil
}

// ClockString formats t as HH:MM, the key reminders are matched on
func ClockString(t time.Time) string {
	return t.Format(constants.TimeFormat)
}

// DisplayDate formats t for insight, reflection and last-active display
func DisplayDate(t time.Time) string {
	return t.Format(constants.DisplayDateFormat)
}

// TruncateToMinute drops seconds and below
func TruncateToMinute(t time.Time) time.Time {
	return t.Truncate(time.Minute)
}

// UntilNextMinute returns how long to wait from t until the next minute boundary
func UntilNextMinute(t time.Time) time.Duration {
	next := TruncateToMinute(t).Add(time.Minute)
	return next.Sub(t)
}

// ExpandHome replaces a leading ~ with the user's home directory
func ExpandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve home directory: %w", err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}
