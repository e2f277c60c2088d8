package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/nardi-attend/attendance-hub/internal/domain/member"
	"github.com/nardi-attend/attendance-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// MEMBER REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// MemberRepository implements member.Repository for PostgreSQL.
// Streak and flag changes are single conditional UPDATEs, so the ledger and
// the sweep never overwrite each other's writes.
type MemberRepository struct {
	conn *Connection
}

// NewMemberRepository creates a new MemberRepository.
func NewMemberRepository(conn *Connection) *MemberRepository {
	return &MemberRepository{conn: conn}
}

var _ member.Repository = (*MemberRepository)(nil)

const memberColumns = `
	id, full_name, email, phone, batch_id, absence_streak, blocked,
	total_hours, rank, COALESCE(last_swept_on, ''), created_at, updated_at`

// Get returns a member by id.
func (r *MemberRepository) Get(ctx context.Context, id string) (*member.Member, error) {
	query := `SELECT ` + memberColumns + ` FROM members WHERE id = $1`

	m, err := scanMember(r.conn.QueryRow(ctx, query, id))
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrMemberNotFound
		}
		return nil, fmt.Errorf("failed to get member: %w", err)
	}
	return m, nil
}

// ListAll returns every member in registration order.
func (r *MemberRepository) ListAll(ctx context.Context) ([]*member.Member, error) {
	query := `SELECT ` + memberColumns + ` FROM members ORDER BY created_at, id`

	rows, err := r.conn.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	defer rows.Close()

	var members []*member.Member
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

// ListPresentToday returns the ids of members with any record on date.
func (r *MemberRepository) ListPresentToday(ctx context.Context, date string) (map[string]struct{}, error) {
	rows, err := r.conn.Query(ctx, `SELECT member_id FROM attendance WHERE date = $1`, date)
	if err != nil {
		return nil, fmt.Errorf("failed to list present members: %w", err)
	}
	defer rows.Close()

	present := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan member id: %w", err)
		}
		present[id] = struct{}{}
	}
	return present, rows.Err()
}

// SetAbsenceStreak overwrites the streak.
func (r *MemberRepository) SetAbsenceStreak(ctx context.Context, id string, streak int) error {
	return r.exec(ctx, "set absence streak",
		`UPDATE members SET absence_streak = $2, updated_at = NOW() WHERE id = $1`, id, streak)
}

// IncrementAbsenceStreak adds one unless the member was already counted for date.
func (r *MemberRepository) IncrementAbsenceStreak(ctx context.Context, id, date string) (int, bool, error) {
	query := `
		UPDATE members
		SET absence_streak = absence_streak + 1, last_swept_on = $2, updated_at = NOW()
		WHERE id = $1 AND (last_swept_on IS NULL OR last_swept_on < $2)
		RETURNING absence_streak`

	var streak int
	err := r.conn.QueryRow(ctx, query, id, date).Scan(&streak)
	if err == nil {
		return streak, true, nil
	}
	if !IsNoRows(err) {
		return 0, false, fmt.Errorf("failed to increment absence streak: %w", err)
	}

	// Either already counted for date or the member does not exist.
	err = r.conn.QueryRow(ctx, `SELECT absence_streak FROM members WHERE id = $1`, id).Scan(&streak)
	if err != nil {
		if IsNoRows(err) {
			return 0, false, shared.ErrMemberNotFound
		}
		return 0, false, fmt.Errorf("failed to read absence streak: %w", err)
	}
	return streak, false, nil
}

// ResetAbsenceStreak zeroes a non-zero streak.
func (r *MemberRepository) ResetAbsenceStreak(ctx context.Context, id string) (bool, error) {
	return r.flip(ctx, "reset absence streak",
		`UPDATE members SET absence_streak = 0, updated_at = NOW() WHERE id = $1 AND absence_streak <> 0`, id)
}

// SetBlocked flips the flag from false to true.
func (r *MemberRepository) SetBlocked(ctx context.Context, id string) (bool, error) {
	return r.flip(ctx, "set blocked",
		`UPDATE members SET blocked = TRUE, updated_at = NOW() WHERE id = $1 AND NOT blocked`, id)
}

// SetTotalHours stores the cumulative hours.
func (r *MemberRepository) SetTotalHours(ctx context.Context, id string, hours float64) error {
	return r.exec(ctx, "set total hours",
		`UPDATE members SET total_hours = $2, updated_at = NOW() WHERE id = $1`, id, hours)
}

// SetRank stores the rank.
func (r *MemberRepository) SetRank(ctx context.Context, id string, rank int) error {
	return r.exec(ctx, "set rank",
		`UPDATE members SET rank = $2, updated_at = NOW() WHERE id = $1`, id, rank)
}

// exec runs an unconditional update and maps zero affected rows to not found.
func (r *MemberRepository) exec(ctx context.Context, op, query string, args ...interface{}) error {
	tag, err := r.conn.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to %s: %w", op, err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrMemberNotFound
	}
	return nil
}

// flip runs a conditional update. Zero affected rows means either no change
// was needed or the member is missing; the latter is checked explicitly.
func (r *MemberRepository) flip(ctx context.Context, op, query, id string) (bool, error) {
	tag, err := r.conn.Exec(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("failed to %s: %w", op, err)
	}
	if tag.RowsAffected() > 0 {
		return true, nil
	}

	var exists bool
	if err := r.conn.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM members WHERE id = $1)`, id).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to %s: %w", op, err)
	}
	if !exists {
		return false, shared.ErrMemberNotFound
	}
	return false, nil
}

func scanMember(row pgx.Row) (*member.Member, error) {
	var m member.Member
	err := row.Scan(
		&m.ID,
		&m.FullName,
		&m.Email,
		&m.Phone,
		&m.BatchID,
		&m.AbsenceStreak,
		&m.Blocked,
		&m.TotalHours,
		&m.Rank,
		&m.LastSweptOn,
		&m.CreatedAt,
		&m.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &m, nil
}
