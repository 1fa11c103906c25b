package postgres

// GetMigrations returns all embedded migrations in order.
func GetMigrations() []Migration {
	return []Migration{
		{
			Version: 1,
			Name:    "create_students",
			UpSQL:   migration001Up,
			DownSQL: migration001Down,
		},
		{
			Version: 2,
			Name:    "create_performance_records",
			UpSQL:   migration002Up,
			DownSQL: migration002Down,
		},
		{
			Version: 3,
			Name:    "create_mastery_aggregates",
			UpSQL:   migration003Up,
			DownSQL: migration003Down,
		},
		{
			Version: 4,
			Name:    "create_points",
			UpSQL:   migration004Up,
			DownSQL: migration004Down,
		},
	}
}

const migration001Up = `
CREATE TABLE IF NOT EXISTS students (
	id TEXT PRIMARY KEY,
	account_id TEXT NOT NULL,
	display_name TEXT NOT NULL DEFAULT '',
	class_id TEXT NOT NULL,
	campus_id TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL DEFAULT 'active',
	enrolled_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_students_class ON students (class_id) WHERE status = 'active';
CREATE INDEX IF NOT EXISTS idx_students_campus ON students (campus_id) WHERE status = 'active';
CREATE INDEX IF NOT EXISTS idx_students_account ON students (account_id);
`

const migration001Down = `
DROP TABLE IF EXISTS students;
`

const migration002Up = `
CREATE TABLE IF NOT EXISTS performance_records (
	submission_id TEXT PRIMARY KEY,
	student_id TEXT NOT NULL,
	activity_id TEXT NOT NULL,
	topic_id TEXT NOT NULL,
	subject_id TEXT NOT NULL,
	class_id TEXT NOT NULL,
	score DOUBLE PRECISION NOT NULL,
	max_score DOUBLE PRECISION NOT NULL CHECK (max_score > 0),
	percentage DOUBLE PRECISION NOT NULL CHECK (percentage >= 0 AND percentage <= 100),
	time_spent_minutes DOUBLE PRECISION NOT NULL DEFAULT 0,
	engagement_score DOUBLE PRECISION NOT NULL DEFAULT 0,
	level_scores JSONB NOT NULL DEFAULT '{}',
	demonstrated_level TEXT NOT NULL,
	submitted_at TIMESTAMPTZ,
	graded_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_records_student_topic ON performance_records (student_id, topic_id);
CREATE INDEX IF NOT EXISTS idx_records_student_subject ON performance_records (student_id, subject_id);
CREATE INDEX IF NOT EXISTS idx_records_student_graded ON performance_records (student_id, graded_at DESC);
`

const migration002Down = `
DROP TABLE IF EXISTS performance_records;
`

const migration003Up = `
CREATE TABLE IF NOT EXISTS topic_mastery (
	student_id TEXT NOT NULL,
	topic_id TEXT NOT NULL,
	mastery_percentage DOUBLE PRECISION NOT NULL,
	mastery_label TEXT NOT NULL,
	level_distribution JSONB NOT NULL DEFAULT '{}',
	highest_demonstrated_level TEXT NOT NULL,
	activities_completed INTEGER NOT NULL,
	total_time_spent_minutes DOUBLE PRECISION NOT NULL DEFAULT 0,
	last_activity_at TIMESTAMPTZ,
	PRIMARY KEY (student_id, topic_id)
);

CREATE TABLE IF NOT EXISTS subject_progression (
	student_id TEXT NOT NULL,
	subject_id TEXT NOT NULL,
	level_counts JSONB NOT NULL DEFAULT '{}',
	last_demonstrated_level TEXT NOT NULL,
	last_activity_at TIMESTAMPTZ,
	PRIMARY KEY (student_id, subject_id)
);
`

const migration003Down = `
DROP TABLE IF EXISTS subject_progression;
DROP TABLE IF EXISTS topic_mastery;
`

const migration004Up = `
CREATE TABLE IF NOT EXISTS points_ledger (
	student_id TEXT NOT NULL,
	source_type TEXT NOT NULL,
	source_id TEXT NOT NULL,
	points INTEGER NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	earned_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (student_id, source_type, source_id)
);

CREATE INDEX IF NOT EXISTS idx_ledger_student ON points_ledger (student_id);

CREATE TABLE IF NOT EXISTS points_aggregates (
	student_id TEXT PRIMARY KEY,
	class_id TEXT NOT NULL,
	total_points INTEGER NOT NULL DEFAULT 0,
	last_earned_at TIMESTAMPTZ,
	class_rank INTEGER NOT NULL DEFAULT 0,
	class_percentile INTEGER NOT NULL DEFAULT 0,
	campus_rank INTEGER NOT NULL DEFAULT 0,
	campus_percentile INTEGER NOT NULL DEFAULT 0,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_aggregates_class ON points_aggregates (class_id);

CREATE TABLE IF NOT EXISTS leaderboard_snapshots (
	id UUID PRIMARY KEY,
	class_id TEXT NOT NULL,
	standings JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_snapshots_class_created ON leaderboard_snapshots (class_id, created_at DESC);
`

const migration004Down = `
DROP TABLE IF EXISTS leaderboard_snapshots;
DROP TABLE IF EXISTS points_aggregates;
DROP TABLE IF EXISTS points_ledger;
`
