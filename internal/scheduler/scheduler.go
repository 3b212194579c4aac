// Package scheduler sends the daily reflection reminder to every user whose
// reminder time matches the current local minute.
package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/julianstephens/questbot/internal/constants"
	"github.com/julianstephens/questbot/internal/logger"
	"github.com/julianstephens/questbot/internal/notifier"
	"github.com/julianstephens/questbot/internal/utils"
)

type State int32

const (
	StateIdle State = iota
	StateScanning
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateScanning:
		return "scanning"
	default:
		return "unknown"
	}
}

// Recipients finds the users due for a reminder at a local HH:MM
type Recipients interface {
	UsersForReminder(ctx context.Context, hhmm string) ([]string, error)
}

type Config struct {
	// Location is the zone reminder times are interpreted in
	Location *time.Location
	Text     string
	// SendTimeout bounds each individual send
	SendTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.Location == nil {
		c.Location = time.Local
	}
	if c.Text == "" {
		c.Text = constants.DefaultReminderText
	}
	if c.SendTimeout <= 0 {
		c.SendTimeout = constants.DefaultSendTimeout
	}
	return c
}

// Result summarizes one scan
type Result struct {
	ScanID  string    `json:"scan_id"`
	Minute  string    `json:"minute"`
	At      time.Time `json:"at"`
	Matched int       `json:"matched"`
	Sent    int       `json:"sent"`
	Failed  int       `json:"failed"`
	// Skipped counts recipients left unsent because the scan was canceled
	Skipped int    `json:"skipped"`
	Error   string `json:"error,omitempty"`
	Err     error  `json:"-"`
}

type Scheduler struct {
	recipients Recipients
	sender     notifier.Sender
	clock      utils.Clock
	cfg        Config

	// after is swapped in tests to drive Run without real sleeps
	after func(d time.Duration) <-chan time.Time

	state atomic.Int32

	scanMu sync.Mutex

	mu         sync.Mutex
	lastMinute time.Time
	last       *Result
}

func New(recipients Recipients, sender notifier.Sender, clock utils.Clock, cfg Config) *Scheduler {
	if clock == nil {
		clock = utils.SystemClock{}
	}
	return &Scheduler{
		recipients: recipients,
		sender:     sender,
		clock:      clock,
		cfg:        cfg.withDefaults(),
		after:      time.After,
	}
}

// State reports whether a scan is in progress
func (s *Scheduler) State() State {
	return State(s.state.Load())
}

// LastResult returns the most recent scan result, or nil before the first scan
func (s *Scheduler) LastResult() *Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		return nil
	}
	r := *s.last
	return &r
}

// Scan sends the reminder to every user due at now's local minute. Scans are
// serialized. A failed send is logged and counted and does not stop the scan.
// Missed minutes are never backfilled.
func (s *Scheduler) Scan(ctx context.Context, now time.Time) Result {
	s.scanMu.Lock()
	defer s.scanMu.Unlock()

	s.state.Store(int32(StateScanning))
	defer s.state.Store(int32(StateIdle))

	local := now.In(s.cfg.Location)
	res := Result{
		ScanID: uuid.New().String(),
		Minute: utils.ClockString(local),
		At:     local,
	}
	users, err := s.recipients.UsersForReminder(ctx, res.Minute)
	if err != nil {
		res.Err = err
		res.Error = err.Error()
		logger.Error("Reminder query failed", "scan", res.ScanID, "minute", res.Minute, "error", err)
		s.record(res)
		return res
	}
	res.Matched = len(users)

	for i, userID := range users {
		if ctx.Err() != nil {
			res.Skipped = len(users) - i
			logger.Warn("Scan interrupted", "scan", res.ScanID, "skipped", res.Skipped)
			break
		}
		if err := s.send(ctx, userID); err != nil {
			res.Failed++
			logger.Warn("Reminder not delivered", "scan", res.ScanID, "user", userID, "error", err)
			continue
		}
		res.Sent++
		logger.Debug("Reminder sent", "scan", res.ScanID, "user", userID)
	}

	if res.Matched > 0 {
		logger.Info("Reminder scan finished", "scan", res.ScanID, "minute", res.Minute,
			"matched", res.Matched, "sent", res.Sent, "failed", res.Failed)
	} else {
		logger.Debug("Reminder scan finished", "scan", res.ScanID, "minute", res.Minute)
	}
	s.record(res)
	return res
}

func (s *Scheduler) send(ctx context.Context, userID string) error {
	sendCtx, cancel := context.WithTimeout(ctx, s.cfg.SendTimeout)
	defer cancel()
	return s.sender.Send(sendCtx, userID, s.cfg.Text)
}

func (s *Scheduler) record(res Result) {
	s.mu.Lock()
	s.last = &res
	s.mu.Unlock()
}

// Fire scans now's minute unless that minute was already fired by this
// scheduler. The bool reports whether a scan ran.
func (s *Scheduler) Fire(ctx context.Context, now time.Time) (Result, bool) {
	minute := utils.TruncateToMinute(now.In(s.cfg.Location))

	s.mu.Lock()
	if !s.lastMinute.IsZero() && minute.Equal(s.lastMinute) {
		var last Result
		if s.last != nil {
			last = *s.last
		}
		s.mu.Unlock()
		logger.Debug("Minute already scanned", "minute", utils.ClockString(minute))
		return last, false
	}
	s.lastMinute = minute
	s.mu.Unlock()

	return s.Scan(ctx, now), true
}

// Run fires once immediately and then at every minute boundary until ctx is
// canceled. Scan errors never stop the loop.
func (s *Scheduler) Run(ctx context.Context) error {
	logger.Info("Reminder scheduler started", "zone", s.cfg.Location.String())
	for {
		s.Fire(ctx, s.clock.Now())

		wait := utils.UntilNextMinute(s.clock.Now())
		select {
		case <-ctx.Done():
			logger.Info("Reminder scheduler stopped")
			return nil
		case <-s.after(wait):
		}
	}
}
