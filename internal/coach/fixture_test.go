package coach_test

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/myrjola/petrcoach/internal/coach"
	"github.com/myrjola/petrcoach/internal/sqlite"
	"github.com/myrjola/petrcoach/internal/testhelpers"
)

const (
	benchPress = 1
	squat      = 2
	barbellRow = 3
)

// fixture is a coaching service backed by a fresh database and a frozen clock.
type fixture struct {
	t   *testing.T
	ctx context.Context
	db  *sqlite.Database
	svc *coach.Service
}

func newFixture(t *testing.T, now time.Time, opts ...coach.Option) *fixture {
	t.Helper()
	return newFixtureWithURL(t, ":memory:", now, opts...)
}

// newFileFixture uses a database file so that concurrent readers and the writer do not contend on shared cache
// table locks.
func newFileFixture(t *testing.T, now time.Time, opts ...coach.Option) *fixture {
	t.Helper()
	return newFixtureWithURL(t, filepath.Join(t.TempDir(), "coach.sqlite3"), now, opts...)
}

func newFixtureWithURL(t *testing.T, url string, now time.Time, opts ...coach.Option) *fixture {
	t.Helper()
	ctx := t.Context()
	logger := testhelpers.NewLogger(testhelpers.NewWriter(t))
	db, err := sqlite.NewDatabase(ctx, url, logger)
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.ReadWrite.ExecContext(ctx, `
		INSERT INTO exercises (id, name, primary_muscle_group)
		VALUES (?, 'Bench Press', 'Chest'), (?, 'Squat', 'Legs'), (?, 'Barbell Row', 'Back')`,
		benchPress, squat, barbellRow)
	if err != nil {
		t.Fatalf("Failed to insert exercises: %v", err)
	}

	opts = append([]coach.Option{coach.WithClock(func() time.Time { return now })}, opts...)
	return &fixture{
		t:   t,
		ctx: ctx,
		db:  db,
		svc: coach.NewService(db, logger, opts...),
	}
}

func (f *fixture) exec(query string, args ...any) sql.Result {
	f.t.Helper()
	res, err := f.db.ReadWrite.ExecContext(f.ctx, query, args...)
	if err != nil {
		f.t.Fatalf("Failed to exec %q: %v", query, err)
	}
	return res
}

func (f *fixture) insertUser(tz string) int {
	f.t.Helper()
	res := f.exec(`INSERT INTO users (timezone) VALUES (?)`, tz)
	id, err := res.LastInsertId()
	if err != nil {
		f.t.Fatalf("Failed to get user id: %v", err)
	}
	return int(id)
}

func (f *fixture) insertProfile(userID int, goal coach.Goal, daysPerWeek, sessionMinutes int) {
	f.t.Helper()
	f.exec(`INSERT INTO coach_profiles (user_id, primary_goal, target_days_per_week, target_session_minutes)
		VALUES (?, ?, ?, ?)`, userID, goal, daysPerWeek, sessionMinutes)
}

type workoutRow struct {
	start      time.Time
	minutes    int
	lifecycle  string
	completion string
	exerciseID int
	weightKg   float64
	reps       int
	sets       int
}

// insertWorkout stores a workout with its sets. Zero values default to a completed 60 minute bench press
// workout of one 100 kg × 10 set.
func (f *fixture) insertWorkout(userID int, w workoutRow) {
	f.t.Helper()
	if w.minutes == 0 {
		w.minutes = 60
	}
	if w.lifecycle == "" {
		w.lifecycle = "finalized"
	}
	if w.completion == "" {
		w.completion = "completed"
	}
	if w.exerciseID == 0 {
		w.exerciseID = benchPress
	}
	if w.weightKg == 0 {
		w.weightKg = 100
	}
	if w.reps == 0 {
		w.reps = 10
	}
	if w.sets == 0 {
		w.sets = 1
	}
	res := f.exec(`INSERT INTO workouts (user_id, lifecycle_status, completion_status, start_time, duration_minutes)
		VALUES (?, ?, ?, ?, ?)`,
		userID, w.lifecycle, w.completion, w.start.UTC().Format(sqlite.TimestampFormat), w.minutes)
	workoutID, err := res.LastInsertId()
	if err != nil {
		f.t.Fatalf("Failed to get workout id: %v", err)
	}
	for i := range w.sets {
		f.exec(`INSERT INTO workout_sets (workout_id, exercise_id, set_number, weight_kg, reps)
			VALUES (?, ?, ?, ?, ?)`, workoutID, w.exerciseID, i+1, w.weightKg, w.reps)
	}
}

func (f *fixture) count(table string, userID int) int {
	f.t.Helper()
	var n int
	//nolint:gosec // table names are constants in tests
	if err := f.db.ReadOnly.QueryRowContext(f.ctx, `SELECT COUNT(*) FROM `+table+` WHERE user_id = ?`,
		userID).Scan(&n); err != nil {
		f.t.Fatalf("Failed to count %s: %v", table, err)
	}
	return n
}

func date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

func at(year int, month time.Month, day, hour int) time.Time {
	return time.Date(year, month, day, hour, 0, 0, 0, time.UTC)
}
