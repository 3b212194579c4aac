// Package sqlstore implements the record operations shared by the SQLite and
// PostgreSQL backends. Queries are written with ? placeholders and rebound for
// the target dialect; every operation runs in its own transaction.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/julianstephens/questbot/internal/constants"
	apperrors "github.com/julianstephens/questbot/internal/errors"
	"github.com/julianstephens/questbot/internal/migration"
	"github.com/julianstephens/questbot/internal/models"
)

// timeLayout is fixed width so stored timestamps sort lexically
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

type Store struct {
	DB      *sql.DB
	Dialect migration.Dialect
}

func New(db *sql.DB, dialect migration.Dialect) *Store {
	return &Store{DB: db, Dialect: dialect}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: bad timestamp %q: %v", apperrors.ErrCorruptData, s, err)
	}
	return t, nil
}

// rebind rewrites ? placeholders into the dialect's form
func (s *Store) rebind(query string) string {
	if s.Dialect != migration.DialectPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString(s.Dialect.Placeholder(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// forUpdate locks the selected row on backends that support row locks
func (s *Store) forUpdate() string {
	if s.Dialect == migration.DialectPostgres {
		return " FOR UPDATE"
	}
	return ""
}

func isDomainError(err error) bool {
	return errors.Is(err, apperrors.ErrNotFound) ||
		errors.Is(err, apperrors.ErrAlreadyDone) ||
		errors.Is(err, apperrors.ErrValidation) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

// withTx runs fn in a transaction. Commit on success, rollback otherwise;
// backend failures come back wrapped with ErrStorage.
func (s *Store) withTx(ctx context.Context, op string, fn func(tx *sql.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return apperrors.Storage(op, err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		if isDomainError(err) {
			return err
		}
		return apperrors.Storage(op, err)
	}

	if err := tx.Commit(); err != nil {
		return apperrors.Storage(op, err)
	}
	return nil
}

func (s *Store) exec(ctx context.Context, tx *sql.Tx, query string, args ...any) (sql.Result, error) {
	return tx.ExecContext(ctx, s.rebind(query), args...)
}

func (s *Store) query(ctx context.Context, tx *sql.Tx, query string, args ...any) (*sql.Rows, error) {
	return tx.QueryContext(ctx, s.rebind(query), args...)
}

func (s *Store) queryRow(ctx context.Context, tx *sql.Tx, query string, args ...any) *sql.Row {
	return tx.QueryRowContext(ctx, s.rebind(query), args...)
}

// requireRows maps an update or delete that touched nothing to ErrNotFound
func requireRows(res sql.Result, what string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return apperrors.NotFoundf("%s", what)
	}
	return nil
}

// userKey returns the surrogate key for an external user id
func (s *Store) userKey(ctx context.Context, tx *sql.Tx, userID string) (int64, error) {
	var key int64
	err := s.queryRow(ctx, tx, "SELECT id FROM users WHERE external_id = ?", userID).Scan(&key)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, apperrors.NotFoundf("user %s", userID)
	}
	return key, err
}

const userColumns = "external_id, phase, reminder_enabled, reminder_time, quest_seq, created_at"

func scanUser(row interface{ Scan(...any) error }) (models.User, error) {
	var u models.User
	var phase, createdAt string
	if err := row.Scan(&u.ID, &phase, &u.ReminderEnabled, &u.ReminderTime, &u.QuestSeq, &createdAt); err != nil {
		return models.User{}, err
	}
	u.Phase = models.Phase(phase)
	t, err := parseTime(createdAt)
	if err != nil {
		return models.User{}, err
	}
	u.CreatedAt = t
	return u, nil
}

func (s *Store) getUser(ctx context.Context, tx *sql.Tx, userID string) (models.User, error) {
	u, err := scanUser(s.queryRow(ctx, tx, "SELECT "+userColumns+" FROM users WHERE external_id = ?", userID))
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, apperrors.NotFoundf("user %s", userID)
	}
	return u, err
}

// Users

func (s *Store) GetOrCreateUser(ctx context.Context, userID string, now time.Time) (models.User, error) {
	var user models.User
	err := s.withTx(ctx, "get or create user", func(tx *sql.Tx) error {
		if _, err := s.exec(ctx, tx, `
			INSERT INTO users (external_id, phase, reminder_enabled, reminder_time, quest_seq, created_at)
			VALUES (?, '', ?, '', 0, ?)
			ON CONFLICT (external_id) DO NOTHING`, userID, false, formatTime(now)); err != nil {
			return err
		}
		u, err := s.getUser(ctx, tx, userID)
		user = u
		return err
	})
	return user, err
}

func (s *Store) GetUser(ctx context.Context, userID string) (models.User, error) {
	var user models.User
	err := s.withTx(ctx, "get user", func(tx *sql.Tx) error {
		u, err := s.getUser(ctx, tx, userID)
		user = u
		return err
	})
	return user, err
}

func (s *Store) GetUserData(ctx context.Context, userID string) (*models.UserData, error) {
	var data *models.UserData
	err := s.withTx(ctx, "get user data", func(tx *sql.Tx) error {
		u, err := s.getUser(ctx, tx, userID)
		if err != nil {
			return err
		}
		key, err := s.userKey(ctx, tx, userID)
		if err != nil {
			return err
		}

		d := &models.UserData{User: u}
		if d.Quests, err = s.listQuests(ctx, tx, key); err != nil {
			return err
		}
		if d.Insights, err = s.listInsights(ctx, tx, key); err != nil {
			return err
		}
		if d.Reflections, err = s.listReflections(ctx, tx, key); err != nil {
			return err
		}
		if d.LastActive, err = s.getLastActive(ctx, tx, key); err != nil {
			return err
		}
		d.Normalize()
		data = d
		return nil
	})
	return data, err
}

func (s *Store) SetPhase(ctx context.Context, userID string, phase models.Phase) error {
	return s.withTx(ctx, "set phase", func(tx *sql.Tx) error {
		res, err := s.exec(ctx, tx, "UPDATE users SET phase = ? WHERE external_id = ?", string(phase), userID)
		if err != nil {
			return err
		}
		return requireRows(res, "user "+userID)
	})
}

func (s *Store) SetReminder(ctx context.Context, userID string, reminderTime string, enabled bool) error {
	return s.withTx(ctx, "set reminder", func(tx *sql.Tx) error {
		res, err := s.exec(ctx, tx, "UPDATE users SET reminder_time = ?, reminder_enabled = ? WHERE external_id = ?", reminderTime, enabled, userID)
		if err != nil {
			return err
		}
		return requireRows(res, "user "+userID)
	})
}

func (s *Store) DisableReminder(ctx context.Context, userID string) error {
	return s.withTx(ctx, "disable reminder", func(tx *sql.Tx) error {
		res, err := s.exec(ctx, tx, "UPDATE users SET reminder_enabled = ? WHERE external_id = ?", false, userID)
		if err != nil {
			return err
		}
		return requireRows(res, "user "+userID)
	})
}

func (s *Store) collectIDs(ctx context.Context, tx *sql.Tx, query string, args ...any) ([]string, error) {
	rows, err := s.query(ctx, tx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *Store) UsersForReminder(ctx context.Context, hhmm string) ([]string, error) {
	var ids []string
	err := s.withTx(ctx, "users for reminder", func(tx *sql.Tx) error {
		var err error
		ids, err = s.collectIDs(ctx, tx,
			"SELECT external_id FROM users WHERE reminder_enabled = ? AND reminder_time = ? ORDER BY external_id", true, hhmm)
		return err
	})
	return ids, err
}

func (s *Store) ListUserIDs(ctx context.Context) ([]string, error) {
	var ids []string
	err := s.withTx(ctx, "list users", func(tx *sql.Tx) error {
		var err error
		ids, err = s.collectIDs(ctx, tx, "SELECT external_id FROM users ORDER BY external_id")
		return err
	})
	return ids, err
}

// DeleteUser removes the user; owned rows go with it through ON DELETE CASCADE
func (s *Store) DeleteUser(ctx context.Context, userID string) error {
	return s.withTx(ctx, "delete user", func(tx *sql.Tx) error {
		res, err := s.exec(ctx, tx, "DELETE FROM users WHERE external_id = ?", userID)
		if err != nil {
			return err
		}
		return requireRows(res, "user "+userID)
	})
}

// Quests

const questColumns = "quest_no, text, status, phase, created_at, completed_at"

func scanQuest(row interface{ Scan(...any) error }) (models.Quest, error) {
	var q models.Quest
	var phase, createdAt string
	var completedAt sql.NullString
	if err := row.Scan(&q.ID, &q.Text, &q.Status, &phase, &createdAt, &completedAt); err != nil {
		return models.Quest{}, err
	}
	q.Phase = models.Phase(phase)

	t, err := parseTime(createdAt)
	if err != nil {
		return models.Quest{}, err
	}
	q.CreatedAt = t

	if completedAt.Valid {
		c, err := parseTime(completedAt.String)
		if err != nil {
			return models.Quest{}, err
		}
		q.CompletedAt = &c
	}
	return q, nil
}

func (s *Store) AddQuest(ctx context.Context, userID string, quest models.Quest) (models.Quest, error) {
	err := s.withTx(ctx, "add quest", func(tx *sql.Tx) error {
		var key int64
		var seq int
		err := s.queryRow(ctx, tx, "SELECT id, quest_seq FROM users WHERE external_id = ?"+s.forUpdate(), userID).Scan(&key, &seq)
		if errors.Is(err, sql.ErrNoRows) {
			return apperrors.NotFoundf("user %s", userID)
		}
		if err != nil {
			return err
		}

		var highest int
		if err := s.queryRow(ctx, tx, "SELECT COALESCE(MAX(quest_no), 0) FROM quests WHERE user_id = ?", key).Scan(&highest); err != nil {
			return err
		}
		if highest > seq {
			seq = highest
		}
		quest.ID = seq + 1

		var completedAt any
		if quest.CompletedAt != nil {
			completedAt = formatTime(*quest.CompletedAt)
		}
		if _, err := s.exec(ctx, tx, `
			INSERT INTO quests (user_id, quest_no, text, status, phase, created_at, completed_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			key, quest.ID, quest.Text, quest.Status, string(quest.Phase), formatTime(quest.CreatedAt), completedAt); err != nil {
			return err
		}

		_, err = s.exec(ctx, tx, "UPDATE users SET quest_seq = ? WHERE id = ?", quest.ID, key)
		return err
	})
	if err != nil {
		return models.Quest{}, err
	}
	return quest, nil
}

func (s *Store) CompleteQuest(ctx context.Context, userID string, questID int, at time.Time) (models.Quest, error) {
	var done models.Quest
	err := s.withTx(ctx, "complete quest", func(tx *sql.Tx) error {
		key, err := s.userKey(ctx, tx, userID)
		if err != nil {
			return err
		}

		q, err := scanQuest(s.queryRow(ctx, tx,
			"SELECT "+questColumns+" FROM quests WHERE user_id = ? AND quest_no = ?"+s.forUpdate(), key, questID))
		if errors.Is(err, sql.ErrNoRows) {
			return apperrors.NotFoundf("quest %d", questID)
		}
		if err != nil {
			return err
		}
		if q.IsDone() {
			done = q
			return fmt.Errorf("%w: quest %d", apperrors.ErrAlreadyDone, questID)
		}

		if _, err := s.exec(ctx, tx, "UPDATE quests SET status = ?, completed_at = ? WHERE user_id = ? AND quest_no = ?",
			constants.QuestStatusDone, formatTime(at), key, questID); err != nil {
			return err
		}

		completed := at
		q.Status = constants.QuestStatusDone
		q.CompletedAt = &completed
		done = q
		return nil
	})
	return done, err
}

func (s *Store) DeleteQuest(ctx context.Context, userID string, questID int) error {
	return s.withTx(ctx, "delete quest", func(tx *sql.Tx) error {
		key, err := s.userKey(ctx, tx, userID)
		if err != nil {
			return err
		}
		res, err := s.exec(ctx, tx, "DELETE FROM quests WHERE user_id = ? AND quest_no = ?", key, questID)
		if err != nil {
			return err
		}
		return requireRows(res, fmt.Sprintf("quest %d", questID))
	})
}

func (s *Store) listQuests(ctx context.Context, tx *sql.Tx, key int64) ([]models.Quest, error) {
	rows, err := s.query(ctx, tx, "SELECT "+questColumns+" FROM quests WHERE user_id = ? ORDER BY quest_no", key)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	quests := []models.Quest{}
	for rows.Next() {
		q, err := scanQuest(rows)
		if err != nil {
			return nil, err
		}
		quests = append(quests, q)
	}
	return quests, rows.Err()
}

func (s *Store) ListQuests(ctx context.Context, userID string) ([]models.Quest, error) {
	var quests []models.Quest
	err := s.withTx(ctx, "list quests", func(tx *sql.Tx) error {
		key, err := s.userKey(ctx, tx, userID)
		if err != nil {
			return err
		}
		quests, err = s.listQuests(ctx, tx, key)
		return err
	})
	return quests, err
}

// Insights

func (s *Store) AddInsight(ctx context.Context, userID string, insight models.Insight) error {
	return s.withTx(ctx, "add insight", func(tx *sql.Tx) error {
		key, err := s.userKey(ctx, tx, userID)
		if err != nil {
			return err
		}
		_, err = s.exec(ctx, tx, "INSERT INTO insights (user_id, text, display_date, created_at) VALUES (?, ?, ?, ?)",
			key, insight.Text, insight.Date, formatTime(insight.CreatedAt))
		return err
	})
}

func (s *Store) listInsights(ctx context.Context, tx *sql.Tx, key int64) ([]models.Insight, error) {
	rows, err := s.query(ctx, tx, "SELECT text, display_date, created_at FROM insights WHERE user_id = ? ORDER BY id", key)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	insights := []models.Insight{}
	for rows.Next() {
		var in models.Insight
		var createdAt string
		if err := rows.Scan(&in.Text, &in.Date, &createdAt); err != nil {
			return nil, err
		}
		if in.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		insights = append(insights, in)
	}
	return insights, rows.Err()
}

func (s *Store) ListInsights(ctx context.Context, userID string) ([]models.Insight, error) {
	var insights []models.Insight
	err := s.withTx(ctx, "list insights", func(tx *sql.Tx) error {
		key, err := s.userKey(ctx, tx, userID)
		if err != nil {
			return err
		}
		insights, err = s.listInsights(ctx, tx, key)
		return err
	})
	return insights, err
}

// deleteAt removes the row at a zero-based position in insertion order
func (s *Store) deleteAt(ctx context.Context, tx *sql.Tx, table string, key int64, position int, what string) error {
	if position < 0 {
		return apperrors.NotFoundf("%s at position %d", what, position)
	}
	var rowID int64
	err := s.queryRow(ctx, tx, "SELECT id FROM "+table+" WHERE user_id = ? ORDER BY id LIMIT 1 OFFSET ?", key, position).Scan(&rowID)
	if errors.Is(err, sql.ErrNoRows) {
		return apperrors.NotFoundf("%s at position %d", what, position)
	}
	if err != nil {
		return err
	}
	_, err = s.exec(ctx, tx, "DELETE FROM "+table+" WHERE id = ?", rowID)
	return err
}

func (s *Store) DeleteInsight(ctx context.Context, userID string, position int) error {
	return s.withTx(ctx, "delete insight", func(tx *sql.Tx) error {
		key, err := s.userKey(ctx, tx, userID)
		if err != nil {
			return err
		}
		return s.deleteAt(ctx, tx, "insights", key, position, "insight")
	})
}

// Reflections

func (s *Store) AddReflection(ctx context.Context, userID string, r models.Reflection) error {
	return s.withTx(ctx, "add reflection", func(tx *sql.Tx) error {
		key, err := s.userKey(ctx, tx, userID)
		if err != nil {
			return err
		}
		_, err = s.exec(ctx, tx, `
			INSERT INTO reflections (user_id, display_date, important, worked, change, created_at)
			VALUES (?, ?, ?, ?, ?, ?)`,
			key, r.Date, r.Important, r.Worked, r.Change, formatTime(r.CreatedAt))
		return err
	})
}

func (s *Store) listReflections(ctx context.Context, tx *sql.Tx, key int64) ([]models.Reflection, error) {
	rows, err := s.query(ctx, tx, "SELECT display_date, important, worked, change, created_at FROM reflections WHERE user_id = ? ORDER BY id", key)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	reflections := []models.Reflection{}
	for rows.Next() {
		var r models.Reflection
		var createdAt string
		if err := rows.Scan(&r.Date, &r.Important, &r.Worked, &r.Change, &createdAt); err != nil {
			return nil, err
		}
		if r.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		reflections = append(reflections, r)
	}
	return reflections, rows.Err()
}

func (s *Store) ListReflections(ctx context.Context, userID string) ([]models.Reflection, error) {
	var reflections []models.Reflection
	err := s.withTx(ctx, "list reflections", func(tx *sql.Tx) error {
		key, err := s.userKey(ctx, tx, userID)
		if err != nil {
			return err
		}
		reflections, err = s.listReflections(ctx, tx, key)
		return err
	})
	return reflections, err
}

func (s *Store) DeleteReflection(ctx context.Context, userID string, position int) error {
	return s.withTx(ctx, "delete reflection", func(tx *sql.Tx) error {
		key, err := s.userKey(ctx, tx, userID)
		if err != nil {
			return err
		}
		return s.deleteAt(ctx, tx, "reflections", key, position, "reflection")
	})
}

// Last active

func (s *Store) SetLastActive(ctx context.Context, userID string, la models.LastActive) error {
	return s.withTx(ctx, "set last active", func(tx *sql.Tx) error {
		key, err := s.userKey(ctx, tx, userID)
		if err != nil {
			return err
		}
		_, err = s.exec(ctx, tx, `
			INSERT INTO last_active (user_id, active_at, display_date, context, phase)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT (user_id) DO UPDATE SET
				active_at = excluded.active_at,
				display_date = excluded.display_date,
				context = excluded.context,
				phase = excluded.phase`,
			key, formatTime(la.Timestamp), la.Date, la.Context, la.Phase)
		return err
	})
}

func (s *Store) getLastActive(ctx context.Context, tx *sql.Tx, key int64) (*models.LastActive, error) {
	var la models.LastActive
	var activeAt string
	err := s.queryRow(ctx, tx, "SELECT active_at, display_date, context, phase FROM last_active WHERE user_id = ?", key).
		Scan(&activeAt, &la.Date, &la.Context, &la.Phase)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if la.Timestamp, err = parseTime(activeAt); err != nil {
		return nil, err
	}
	return &la, nil
}

func (s *Store) GetLastActive(ctx context.Context, userID string) (*models.LastActive, error) {
	var la *models.LastActive
	err := s.withTx(ctx, "get last active", func(tx *sql.Tx) error {
		key, err := s.userKey(ctx, tx, userID)
		if err != nil {
			return err
		}
		la, err = s.getLastActive(ctx, tx, key)
		return err
	})
	return la, err
}
