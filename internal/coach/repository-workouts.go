package coach

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/myrjola/petrcoach/internal/errors"
)

type sqliteWorkoutRepository struct {
	baseRepository
}

// ListFinalized returns the finalized workouts of the user that started in [from, to), with all their sets.
// Draft and abandoned workouts are never returned.
func (r *sqliteWorkoutRepository) ListFinalized(
	ctx context.Context, userID int, from, to time.Time,
) (_ []Workout, err error) {
	rows, err := r.db.ReadOnly.QueryContext(ctx, `
		SELECT w.id, w.start_time, w.end_time, w.duration_minutes,
		       ws.set_type, ws.weight_kg, ws.reps, LOWER(e.primary_muscle_group)
		FROM workouts w
		LEFT JOIN workout_sets ws ON ws.workout_id = w.id
		LEFT JOIN exercises e ON e.id = ws.exercise_id
		WHERE w.user_id = ?
		  AND w.lifecycle_status = 'finalized'
		  AND w.completion_status IN ('completed', 'partial')
		  AND w.start_time >= ?
		  AND w.start_time < ?
		ORDER BY w.start_time, w.id, ws.set_number`,
		userID, formatTimestamp(from), formatTimestamp(to))
	if err != nil {
		return nil, errors.Wrap(err, "query workouts")
	}
	defer closeRows(rows, &err)

	var workouts []Workout
	for rows.Next() {
		var (
			id              int
			startTime       string
			endTime         sql.NullString
			durationMinutes sql.NullInt64
			setType         sql.NullString
			weightKg        sql.NullFloat64
			reps            sql.NullInt64
			muscleGroup     sql.NullString
		)
		if err = rows.Scan(&id, &startTime, &endTime, &durationMinutes,
			&setType, &weightKg, &reps, &muscleGroup); err != nil {
			return nil, errors.Wrap(err, "scan workout")
		}

		if len(workouts) == 0 || workouts[len(workouts)-1].ID != id {
			w := Workout{ID: id, DurationMinutes: nullInt(durationMinutes)}
			if w.StartTime, err = parseTimestamp(startTime); err != nil {
				return nil, errors.Wrap(err, "parse start time", slog.Int("workout_id", id))
			}
			if w.EndTime, err = parseNullTimestamp(endTime); err != nil {
				return nil, errors.Wrap(err, "parse end time", slog.Int("workout_id", id))
			}
			workouts = append(workouts, w)
		}

		if setType.Valid {
			last := &workouts[len(workouts)-1]
			last.Sets = append(last.Sets, Set{
				MuscleGroup: muscleGroup.String,
				Type:        SetType(setType.String),
				WeightKg:    nullFloat(weightKg),
				Reps:        nullInt(reps),
			})
		}
	}
	if err = rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate workouts")
	}
	return workouts, nil
}
