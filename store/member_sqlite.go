package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/demetori/deme/members"
)

// SQLiteMembers stores the roster in the members and member_wishlist tables.
// Times are unix milliseconds, with 0 for never.
type SQLiteMembers struct {
	db *sql.DB
}

func NewSQLiteMembers(db *sql.DB) *SQLiteMembers {
	return &SQLiteMembers{db: db}
}

const memberColumns = `member_id, username, display_name, in_game_name, weapons,
	planner_link, planner_updated_at, member_group, guild_role_id`

func (s *SQLiteMembers) Create(ctx context.Context, m *members.Member) error {
	return withTx(ctx, s.db, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `INSERT INTO members (`+memberColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			m.ID, m.Username, m.DisplayName, m.InGameName, m.Weapons,
			m.Gear.PlannerLink, millis(m.Gear.UpdatedAt), m.Group, m.GuildRoleID)
		if isConstraint(err) {
			return fmt.Errorf("%w: %s", members.ErrExists, m.ID)
		}
		if err != nil {
			return err
		}

		slots := m.Wishlist
		if len(slots) == 0 {
			slots = members.EmptyWishlist()
		}
		for _, slot := range slots {
			_, err := tx.ExecContext(ctx, `INSERT INTO member_wishlist (member_id, slot, item, updated_at) VALUES (?, ?, ?, ?)`,
				m.ID, slot.Slot, slot.Item, millis(slot.UpdatedAt))
			if err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *SQLiteMembers) Get(ctx context.Context, id string) (*members.Member, error) {
	m, err := scanMember(s.db.QueryRowContext(ctx, `SELECT `+memberColumns+` FROM members WHERE member_id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, members.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if m.Wishlist, err = s.wishlist(ctx, id); err != nil {
		return nil, err
	}
	return m, nil
}

func (s *SQLiteMembers) List(ctx context.Context) ([]*members.Member, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+memberColumns+` FROM members ORDER BY weapons, in_game_name`)
	if err != nil {
		return nil, err
	}

	var out []*members.Member
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	for _, m := range out {
		if m.Wishlist, err = s.wishlist(ctx, m.ID); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (s *SQLiteMembers) Delete(ctx context.Context, id string) error {
	return withTx(ctx, s.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM member_wishlist WHERE member_id = ?`, id); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM members WHERE member_id = ?`, id)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return members.ErrNotFound
		}
		return nil
	})
}

func (s *SQLiteMembers) SetPlanner(ctx context.Context, id, link string, now time.Time) error {
	return withTx(ctx, s.db, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO members (member_id, planner_link, planner_updated_at, member_group) VALUES (?, ?, ?, ?)
			ON CONFLICT(member_id) DO UPDATE SET
				planner_link = excluded.planner_link,
				planner_updated_at = excluded.planner_updated_at
		`, id, link, millis(now), members.DefaultGroup)
		if err != nil {
			return err
		}
		for n := 1; n <= members.WishlistSlots; n++ {
			if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO member_wishlist (member_id, slot) VALUES (?, ?)`, id, n); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *SQLiteMembers) SetWishlistSlot(ctx context.Context, id string, slot int, item string, now time.Time) error {
	if !members.ValidSlot(slot) {
		return members.ErrInvalidSlot
	}
	return withTx(ctx, s.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE member_wishlist SET item = ?, updated_at = ?
			WHERE member_id = ? AND slot = ? AND updated_at <= ?
		`, item, millis(now), id, slot, millis(now.Add(-members.WishlistCooldown)))
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n > 0 {
			return nil
		}

		var one int
		err = tx.QueryRowContext(ctx, `SELECT 1 FROM members WHERE member_id = ?`, id).Scan(&one)
		if errors.Is(err, sql.ErrNoRows) {
			return members.ErrNotFound
		}
		if err != nil {
			return err
		}
		return members.ErrCooldown
	})
}

func (s *SQLiteMembers) wishlist(ctx context.Context, id string) ([]members.WishlistSlot, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT slot, item, updated_at FROM member_wishlist WHERE member_id = ? ORDER BY slot`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []members.WishlistSlot
	for rows.Next() {
		var slot members.WishlistSlot
		var updated int64
		if err := rows.Scan(&slot.Slot, &slot.Item, &updated); err != nil {
			return nil, err
		}
		slot.UpdatedAt = fromMillis(updated)
		out = append(out, slot)
	}
	return out, rows.Err()
}

func scanMember(row rowScanner) (*members.Member, error) {
	var m members.Member
	var plannerUpdated int64
	err := row.Scan(&m.ID, &m.Username, &m.DisplayName, &m.InGameName, &m.Weapons,
		&m.Gear.PlannerLink, &plannerUpdated, &m.Group, &m.GuildRoleID)
	if err != nil {
		return nil, err
	}
	m.Gear.UpdatedAt = fromMillis(plannerUpdated)
	return &m, nil
}

func millis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}
