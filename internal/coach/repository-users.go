package coach

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/myrjola/petrcoach/internal/errors"
)

type sqliteUserRepository struct {
	baseRepository
}

const userColumns = `u.id, u.timezone, u.weight_kg, u.height_cm, u.date_of_birth, u.gender`

func scanUser(row rowScanner) (User, error) {
	var (
		u           User
		weightKg    sql.NullFloat64
		heightCm    sql.NullFloat64
		dateOfBirth sql.NullString
		gender      sql.NullString
	)
	if err := row.Scan(&u.ID, &u.Timezone, &weightKg, &heightCm, &dateOfBirth, &gender); err != nil {
		return User{}, err //nolint:wrapcheck // callers annotate
	}
	u.WeightKg = nullFloat(weightKg)
	u.HeightCm = nullFloat(heightCm)
	u.Gender = nullString(gender)
	if dateOfBirth.Valid {
		dob, err := parseDate(dateOfBirth.String)
		if err != nil {
			return User{}, err
		}
		u.DateOfBirth = &dob
	}
	return u, nil
}

// Get returns the user or ErrNotFound.
func (r *sqliteUserRepository) Get(ctx context.Context, userID int) (User, error) {
	row := r.db.ReadOnly.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users u WHERE u.id = ?`, userID)
	u, err := scanUser(row)
	if err != nil {
		return User{}, notFound(err, "query user", slog.Int("user_id", userID))
	}
	return u, nil
}

// ListActiveSince returns users with a finalized workout that started at or after since.
func (r *sqliteUserRepository) ListActiveSince(ctx context.Context, since time.Time) ([]User, error) {
	return r.list(ctx, `
		SELECT `+userColumns+`
		FROM users u
		WHERE EXISTS (SELECT 1
		              FROM workouts w
		              WHERE w.user_id = u.id
		                AND w.lifecycle_status = 'finalized'
		                AND w.completion_status IN ('completed', 'partial')
		                AND w.start_time >= ?)
		ORDER BY u.id`, formatTimestamp(since))
}

// List returns every user.
func (r *sqliteUserRepository) List(ctx context.Context) ([]User, error) {
	return r.list(ctx, `SELECT `+userColumns+` FROM users u ORDER BY u.id`)
}

func (r *sqliteUserRepository) list(ctx context.Context, query string, args ...any) (_ []User, err error) {
	rows, err := r.db.ReadOnly.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "query users")
	}
	defer closeRows(rows, &err)

	var users []User
	for rows.Next() {
		var u User
		if u, err = scanUser(rows); err != nil {
			return nil, errors.Wrap(err, "scan user")
		}
		users = append(users, u)
	}
	if err = rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate users")
	}
	return users, nil
}
