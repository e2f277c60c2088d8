package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/nardi-attend/attendance-hub/internal/domain/attendance"
	"github.com/nardi-attend/attendance-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// ATTENDANCE REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// AttendanceRepository implements attendance.Repository for PostgreSQL.
// Uniqueness of (member_id, date) is the table's constraint; checkout is a
// compare-and-set on status.
type AttendanceRepository struct {
	conn *Connection
}

// NewAttendanceRepository creates a new AttendanceRepository.
func NewAttendanceRepository(conn *Connection) *AttendanceRepository {
	return &AttendanceRepository{conn: conn}
}

var _ attendance.Repository = (*AttendanceRepository)(nil)

const recordColumns = `id, member_id, date, status, check_in_at, check_out_at, hours, created_at, updated_at`

// Create inserts a new record. A concurrent insert for the same key loses
// with shared.ErrRecordExists.
func (r *AttendanceRepository) Create(ctx context.Context, rec *attendance.Record) error {
	query := `
		INSERT INTO attendance (` + recordColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (member_id, date) DO NOTHING`

	tag, err := r.conn.Exec(ctx, query,
		rec.ID,
		rec.MemberID,
		rec.Date,
		string(rec.Status),
		rec.CheckInAt,
		rec.CheckOutAt,
		rec.Hours,
		rec.CreatedAt,
		rec.UpdatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.ErrRecordExists
		}
		return fmt.Errorf("failed to create attendance record: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrRecordExists
	}
	return nil
}

// GetByMemberAndDate returns the record for the key.
func (r *AttendanceRepository) GetByMemberAndDate(ctx context.Context, memberID, date string) (*attendance.Record, error) {
	query := `SELECT ` + recordColumns + ` FROM attendance WHERE member_id = $1 AND date = $2`

	rec, err := scanRecord(r.conn.QueryRow(ctx, query, memberID, date))
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrRecordNotFound
		}
		return nil, fmt.Errorf("failed to get attendance record: %w", err)
	}
	return rec, nil
}

// MarkCheckedOut moves the record to OUT only while it is still IN.
func (r *AttendanceRepository) MarkCheckedOut(ctx context.Context, id string, checkOutAt time.Time, hours float64) (bool, error) {
	query := `
		UPDATE attendance
		SET status = 'OUT', check_out_at = $2, hours = $3, updated_at = $2
		WHERE id = $1 AND status = 'IN'`

	tag, err := r.conn.Exec(ctx, query, id, checkOutAt.UTC().Truncate(time.Microsecond), hours)
	if err != nil {
		return false, fmt.Errorf("failed to check out: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return true, nil
	}

	var exists bool
	if err := r.conn.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM attendance WHERE id = $1)`, id).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check out: %w", err)
	}
	if !exists {
		return false, shared.ErrRecordNotFound
	}
	return false, nil
}

// SetHours stores earned hours without touching the status.
func (r *AttendanceRepository) SetHours(ctx context.Context, id string, hours float64) error {
	tag, err := r.conn.Exec(ctx,
		`UPDATE attendance SET hours = $2, updated_at = NOW() WHERE id = $1`, id, hours)
	if err != nil {
		return fmt.Errorf("failed to set hours: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrRecordNotFound
	}
	return nil
}

// ListByDate returns all records of a calendar day.
func (r *AttendanceRepository) ListByDate(ctx context.Context, date string) ([]*attendance.Record, error) {
	return r.list(ctx,
		`SELECT `+recordColumns+` FROM attendance WHERE date = $1 ORDER BY created_at, id`, date)
}

// ListOpenByDate returns the day's records still waiting for a checkout.
func (r *AttendanceRepository) ListOpenByDate(ctx context.Context, date string) ([]*attendance.Record, error) {
	return r.list(ctx, `
		SELECT `+recordColumns+` FROM attendance
		WHERE date = $1 AND status = 'IN' AND check_in_at IS NOT NULL AND check_out_at IS NULL
		ORDER BY created_at, id`, date)
}

// SumHoursByMember returns total earned hours per member.
func (r *AttendanceRepository) SumHoursByMember(ctx context.Context) (map[string]float64, error) {
	rows, err := r.conn.Query(ctx, `
		SELECT member_id, SUM(hours)
		FROM attendance
		WHERE hours IS NOT NULL
		GROUP BY member_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to sum hours: %w", err)
	}
	defer rows.Close()

	totals := make(map[string]float64)
	for rows.Next() {
		var (
			memberID string
			hours    float64
		)
		if err := rows.Scan(&memberID, &hours); err != nil {
			return nil, fmt.Errorf("failed to scan hours: %w", err)
		}
		totals[memberID] = hours
	}
	return totals, rows.Err()
}

func (r *AttendanceRepository) list(ctx context.Context, query string, args ...interface{}) ([]*attendance.Record, error) {
	rows, err := r.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list attendance: %w", err)
	}
	defer rows.Close()

	var records []*attendance.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan attendance: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func scanRecord(row pgx.Row) (*attendance.Record, error) {
	var (
		rec    attendance.Record
		status string
	)
	err := row.Scan(
		&rec.ID,
		&rec.MemberID,
		&rec.Date,
		&status,
		&rec.CheckInAt,
		&rec.CheckOutAt,
		&rec.Hours,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	rec.Status = attendance.Status(status)
	if !rec.Status.IsValid() {
		return nil, fmt.Errorf("attendance %s: unknown status %q", rec.ID, status)
	}
	return &rec, nil
}
