package postgres

// Date keys are stored as 'YYYY-MM-DD' text in the configured offset, so
// lexical order equals calendar order.

// GetMigrations returns all embedded migrations.
func GetMigrations() []Migration {
	return []Migration{
		{
			Version: 1,
			Name:    "create_courses_and_members",
			UpSQL:   migration001Up,
			DownSQL: migration001Down,
		},
		{
			Version: 2,
			Name:    "create_attendance",
			UpSQL:   migration002Up,
			DownSQL: migration002Down,
		},
		{
			Version: 3,
			Name:    "create_sweep_runs",
			UpSQL:   migration003Up,
			DownSQL: migration003Down,
		},
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 001: COURSES, BATCHES, MEMBERS
// ══════════════════════════════════════════════════════════════════════════════

const migration001Up = `
CREATE TABLE IF NOT EXISTS courses (
    id TEXT PRIMARY KEY,
    name VARCHAR(200) NOT NULL,
    -- per-day {"days": {"1": {"startTime", "endTime", "duration"}}} or legacy
    -- {"weekdays": [1, 3], "startTime", "endTime"}; NULL means free-form check-in
    schedule JSONB,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS batches (
    id TEXT PRIMARY KEY,
    name VARCHAR(200) NOT NULL,
    course_id TEXT NOT NULL REFERENCES courses(id) ON DELETE RESTRICT,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_batches_course_id ON batches(course_id);

CREATE TABLE IF NOT EXISTS members (
    id TEXT PRIMARY KEY,
    full_name VARCHAR(200) NOT NULL,
    email VARCHAR(320) NOT NULL DEFAULT '',
    phone VARCHAR(32) NOT NULL DEFAULT '',
    batch_id TEXT NOT NULL REFERENCES batches(id) ON DELETE RESTRICT,
    absence_streak INTEGER NOT NULL DEFAULT 0,
    blocked BOOLEAN NOT NULL DEFAULT FALSE,
    total_hours DOUBLE PRECISION NOT NULL DEFAULT 0,
    rank INTEGER NOT NULL DEFAULT 0,
    last_swept_on VARCHAR(10),
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_absence_streak CHECK (absence_streak >= 0),
    CONSTRAINT valid_total_hours CHECK (total_hours >= 0),
    CONSTRAINT valid_rank CHECK (rank >= 0)
);

CREATE INDEX IF NOT EXISTS idx_members_batch_id ON members(batch_id);
CREATE INDEX IF NOT EXISTS idx_members_registration ON members(created_at, id);
`

const migration001Down = `
DROP TABLE IF EXISTS members;
DROP TABLE IF EXISTS batches;
DROP TABLE IF EXISTS courses;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 002: ATTENDANCE
// ══════════════════════════════════════════════════════════════════════════════

const migration002Up = `
CREATE TABLE IF NOT EXISTS attendance (
    id TEXT PRIMARY KEY,
    member_id TEXT NOT NULL REFERENCES members(id) ON DELETE CASCADE,
    date VARCHAR(10) NOT NULL,
    status VARCHAR(3) NOT NULL DEFAULT 'IN',
    check_in_at TIMESTAMP WITH TIME ZONE,
    check_out_at TIMESTAMP WITH TIME ZONE,
    hours DOUBLE PRECISION,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    -- at most one record per member per calendar day
    CONSTRAINT uq_attendance_member_date UNIQUE (member_id, date),
    CONSTRAINT valid_status CHECK (status IN ('IN', 'OUT')),
    CONSTRAINT valid_date CHECK (date ~ '^[0-9]{4}-[0-9]{2}-[0-9]{2}$'),
    CONSTRAINT valid_hours CHECK (hours IS NULL OR hours >= 0),
    CONSTRAINT checkout_after_checkin CHECK (check_out_at IS NULL OR check_out_at >= check_in_at)
);

CREATE INDEX IF NOT EXISTS idx_attendance_date ON attendance(date);
CREATE INDEX IF NOT EXISTS idx_attendance_open ON attendance(date) WHERE status = 'IN';
`

const migration002Down = `
DROP TABLE IF EXISTS attendance;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 003: SWEEP RUNS
// ══════════════════════════════════════════════════════════════════════════════

const migration003Up = `
CREATE TABLE IF NOT EXISTS sweep_runs (
    date VARCHAR(10) PRIMARY KEY,
    checked INTEGER NOT NULL DEFAULT 0,
    warnings_sent INTEGER NOT NULL DEFAULT 0,
    blocks_applied INTEGER NOT NULL DEFAULT 0,
    hours_finalized INTEGER NOT NULL DEFAULT 0,
    hours_skipped INTEGER NOT NULL DEFAULT 0,
    already_swept INTEGER NOT NULL DEFAULT 0,
    notification_failures INTEGER NOT NULL DEFAULT 0,
    errors INTEGER NOT NULL DEFAULT 0,
    started_at TIMESTAMP WITH TIME ZONE NOT NULL,
    finished_at TIMESTAMP WITH TIME ZONE NOT NULL
);
`

const migration003Down = `
DROP TABLE IF EXISTS sweep_runs;
`
