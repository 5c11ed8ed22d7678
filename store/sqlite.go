package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/demetori/deme/attendance"
	"github.com/mattn/go-sqlite3"
)

// SQLite stores events in the tables created by sys.OpenDatabase. Response
// rows and the counters on the event row are always written in one transaction.
type SQLite struct {
	db *sql.DB
}

func NewSQLite(db *sql.DB) *SQLite {
	return &SQLite{db: db}
}

func (s *SQLite) Insert(ctx context.Context, ev *attendance.Event) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO events (id, guild_id, channel_id, name, event_type, event_date, event_time,
				starts_at, mandatory, creator_id, attending_count, not_attending_count)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, ev.ID, ev.GuildID, ev.ChannelID, ev.Name, ev.Type, ev.Details.Date, ev.Details.Time,
			ev.Details.DateTime.UnixMilli(), ev.Details.Mandatory, ev.Creator, ev.AttendingCount, ev.AbsentCount)
		if isConstraint(err) {
			return fmt.Errorf("%w: %s on %s already exists", attendance.ErrConflict, ev.Name, ev.Details.Date)
		}
		if err != nil {
			return err
		}
		return insertResponses(ctx, tx, ev.ID, ev.Responses)
	})
}

func (s *SQLite) FindByID(ctx context.Context, eventID string) (*attendance.Event, error) {
	return s.load(ctx, `SELECT `+eventColumns+` FROM events WHERE id = ?`, eventID)
}

func (s *SQLite) FindOne(ctx context.Context, name, date string) (*attendance.Event, error) {
	return s.load(ctx, `SELECT `+eventColumns+` FROM events WHERE name = ? AND event_date = ?`, name, date)
}

func (s *SQLite) FindActive(ctx context.Context, now time.Time) ([]*attendance.Event, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+eventColumns+` FROM events WHERE starts_at > ? ORDER BY starts_at`, now.UnixMilli())
	if err != nil {
		return nil, err
	}

	var out []*attendance.Event
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	for _, ev := range out {
		if ev.Responses, err = s.responses(ctx, ev.ID); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (s *SQLite) AppendResponse(ctx context.Context, eventID string, r attendance.Response) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if err := requireEvent(ctx, tx, eventID); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO event_responses (event_id, user_id, display_name, status, reason, position)
			SELECT ?, ?, ?, ?, ?, COALESCE(MAX(position), -1) + 1 FROM event_responses WHERE event_id = ?
		`, eventID, r.UserID, r.Name, r.Status, nullable(r.Reason), eventID)
		if isConstraint(err) {
			return attendance.ErrConflict
		}
		if err != nil {
			return err
		}
		return bumpCounter(ctx, tx, eventID, r.Status, 1)
	})
}

func (s *SQLite) SwitchStatus(ctx context.Context, eventID, userID string, from, to attendance.Status, name string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE event_responses
			SET status = ?, display_name = ?, reason = CASE WHEN ? = 'attending' THEN NULL ELSE reason END
			WHERE event_id = ? AND user_id = ? AND status = ?
		`, to, name, to, eventID, userID, from)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return missOrConflict(ctx, tx, eventID)
		}
		if err := bumpCounter(ctx, tx, eventID, from, -1); err != nil {
			return err
		}
		return bumpCounter(ctx, tx, eventID, to, 1)
	})
}

func (s *SQLite) SetReason(ctx context.Context, eventID, userID, reason string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE event_responses SET reason = ?
			WHERE event_id = ? AND user_id = ? AND status = ?
		`, reason, eventID, userID, attendance.StatusNotAttending)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return missOrConflict(ctx, tx, eventID)
		}
		return nil
	})
}

func (s *SQLite) SyncResponses(ctx context.Context, eventID string, responses []attendance.Response, attending, absent int) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE events SET attending_count = ?, not_attending_count = ? WHERE id = ?`,
			attending, absent, eventID)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return attendance.ErrNotFound
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM event_responses WHERE event_id = ?`, eventID); err != nil {
			return err
		}
		return insertResponses(ctx, tx, eventID, responses)
	})
}

func (s *SQLite) Delete(ctx context.Context, eventID string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM event_responses WHERE event_id = ?`, eventID); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM events WHERE id = ?`, eventID)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return attendance.ErrNotFound
		}
		return nil
	})
}

// --- Helpers ---

const eventColumns = `id, COALESCE(guild_id, ''), channel_id, name, COALESCE(event_type, ''), event_date, event_time,
	starts_at, mandatory, COALESCE(creator_id, ''), attending_count, not_attending_count`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (*attendance.Event, error) {
	var ev attendance.Event
	var startsAt int64
	err := row.Scan(&ev.ID, &ev.GuildID, &ev.ChannelID, &ev.Name, &ev.Type, &ev.Details.Date, &ev.Details.Time,
		&startsAt, &ev.Details.Mandatory, &ev.Creator, &ev.AttendingCount, &ev.AbsentCount)
	if err != nil {
		return nil, err
	}
	ev.Details.DateTime = time.UnixMilli(startsAt).UTC()
	return &ev, nil
}

func (s *SQLite) load(ctx context.Context, query string, args ...any) (*attendance.Event, error) {
	ev, err := scanEvent(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, attendance.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if ev.Responses, err = s.responses(ctx, ev.ID); err != nil {
		return nil, err
	}
	return ev, nil
}

func (s *SQLite) responses(ctx context.Context, eventID string) ([]attendance.Response, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id, display_name, status, COALESCE(reason, '')
		FROM event_responses WHERE event_id = ? ORDER BY position
	`, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []attendance.Response{}
	for rows.Next() {
		var r attendance.Response
		if err := rows.Scan(&r.UserID, &r.Name, &r.Status, &r.Reason); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLite) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	return withTx(ctx, s.db, fn)
}

func withTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func insertResponses(ctx context.Context, tx *sql.Tx, eventID string, responses []attendance.Response) error {
	if len(responses) == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO event_responses (event_id, user_id, display_name, status, reason, position)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, r := range responses {
		if _, err := stmt.ExecContext(ctx, eventID, r.UserID, r.Name, r.Status, nullable(r.Reason), i); err != nil {
			if isConstraint(err) {
				return fmt.Errorf("%w: duplicate response from %s", attendance.ErrConflict, r.UserID)
			}
			return err
		}
	}
	return nil
}

func bumpCounter(ctx context.Context, tx *sql.Tx, eventID string, status attendance.Status, delta int) error {
	column := "not_attending_count"
	if status == attendance.StatusAttending {
		column = "attending_count"
	}
	_, err := tx.ExecContext(ctx, `UPDATE events SET `+column+` = `+column+` + ? WHERE id = ?`, delta, eventID)
	return err
}

func requireEvent(ctx context.Context, tx *sql.Tx, eventID string) error {
	var one int
	err := tx.QueryRowContext(ctx, `SELECT 1 FROM events WHERE id = ?`, eventID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return attendance.ErrNotFound
	}
	return err
}

func missOrConflict(ctx context.Context, tx *sql.Tx, eventID string) error {
	if err := requireEvent(ctx, tx, eventID); err != nil {
		return err
	}
	return attendance.ErrConflict
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func isConstraint(err error) bool {
	var se sqlite3.Error
	return errors.As(err, &se) && se.Code == sqlite3.ErrConstraint
}
