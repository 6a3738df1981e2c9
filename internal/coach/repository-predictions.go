package coach

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/myrjola/petrcoach/internal/errors"
)

type sqlitePredictionRepository struct {
	baseRepository
}

// Latest returns the most recently stored prediction of the user or ErrNotFound.
func (r *sqlitePredictionRepository) Latest(ctx context.Context, userID int) (Prediction, error) {
	var (
		p                Prediction
		weeksDelta       sql.NullInt64
		deltaReason      sql.NullString
		consistencyScore sql.NullFloat64
		workoutsPerWeek  sql.NullFloat64
		createdAt        string
	)
	err := r.db.ReadOnly.QueryRowContext(ctx, `
		SELECT id, user_id, strength_gain_weeks, visible_change_weeks, next_milestone, next_milestone_weeks,
		       weeks_delta, delta_reason, current_consistency_score, current_workouts_per_week, primary_goal,
		       created_at
		FROM transformation_predictions
		WHERE user_id = ?
		ORDER BY id DESC
		LIMIT 1`, userID).Scan(
		&p.ID, &p.UserID, &p.StrengthGainWeeks, &p.VisibleChangeWeeks, &p.NextMilestone, &p.NextMilestoneWeeks,
		&weeksDelta, &deltaReason, &consistencyScore, &workoutsPerWeek, &p.PrimaryGoal,
		&createdAt)
	if err != nil {
		return Prediction{}, notFound(err, "query latest prediction", slog.Int("user_id", userID))
	}
	if p.CreatedAt, err = parseTimestamp(createdAt); err != nil {
		return Prediction{}, err
	}
	p.WeeksDelta = nullInt(weeksDelta)
	p.DeltaReason = nullString(deltaReason)
	p.CurrentConsistencyScore = nullFloat(consistencyScore)
	p.CurrentWorkoutsPerWeek = nullFloat(workoutsPerWeek)
	return p, nil
}

// Insert appends the prediction to the user's history and returns its id.
func (r *sqlitePredictionRepository) Insert(ctx context.Context, p Prediction) (int, error) {
	res, err := r.db.ReadWrite.ExecContext(ctx, `
		INSERT INTO transformation_predictions (user_id, strength_gain_weeks, visible_change_weeks, next_milestone,
		                                        next_milestone_weeks, weeks_delta, delta_reason,
		                                        current_consistency_score, current_workouts_per_week, primary_goal,
		                                        created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.UserID, p.StrengthGainWeeks, p.VisibleChangeWeeks, p.NextMilestone,
		p.NextMilestoneWeeks, p.WeeksDelta, p.DeltaReason,
		p.CurrentConsistencyScore, p.CurrentWorkoutsPerWeek, p.PrimaryGoal,
		formatTimestamp(p.CreatedAt))
	if err != nil {
		return 0, errors.Wrap(err, "insert prediction", slog.Int("user_id", p.UserID))
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, errors.Wrap(err, "last insert id")
	}
	return int(id), nil
}
