package coach

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/myrjola/petrcoach/internal/errors"
)

type sqlitePlanRepository struct {
	baseRepository
}

const planColumns = `id, user_id, days_per_week, session_duration_target, split_type, progression_type,
       auto_adjust_enabled, deload_week_frequency, volume_multiplier, created_at, updated_at`

func scanPlan(row rowScanner) (TrainingPlan, error) {
	var (
		p                    TrainingPlan
		createdAt, updatedAt string
	)
	err := row.Scan(&p.ID, &p.UserID, &p.DaysPerWeek, &p.SessionDurationTarget, &p.SplitType, &p.ProgressionType,
		&p.AutoAdjustEnabled, &p.DeloadWeekFrequency, &p.VolumeMultiplier, &createdAt, &updatedAt)
	if err != nil {
		return TrainingPlan{}, err //nolint:wrapcheck // callers annotate
	}
	if p.CreatedAt, err = parseTimestamp(createdAt); err != nil {
		return TrainingPlan{}, err
	}
	if p.UpdatedAt, err = parseTimestamp(updatedAt); err != nil {
		return TrainingPlan{}, err
	}
	return p, nil
}

// Get returns the user's plan or ErrNotFound.
func (r *sqlitePlanRepository) Get(ctx context.Context, userID int) (TrainingPlan, error) {
	row := r.db.ReadOnly.QueryRowContext(ctx, `SELECT `+planColumns+` FROM training_plans WHERE user_id = ?`, userID)
	p, err := scanPlan(row)
	if err != nil {
		return TrainingPlan{}, notFound(err, "query training plan", slog.Int("user_id", userID))
	}
	return p, nil
}

// CreateIfMissing inserts the plan unless the user already has one.
func (r *sqlitePlanRepository) CreateIfMissing(ctx context.Context, p TrainingPlan) error {
	_, err := r.db.ReadWrite.ExecContext(ctx, `
		INSERT INTO training_plans (user_id, days_per_week, session_duration_target, split_type, progression_type,
		                            auto_adjust_enabled, deload_week_frequency, volume_multiplier, created_at,
		                            updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id) DO NOTHING`,
		p.UserID, p.DaysPerWeek, p.SessionDurationTarget, p.SplitType, p.ProgressionType,
		p.AutoAdjustEnabled, p.DeloadWeekFrequency, p.VolumeMultiplier, formatTimestamp(p.CreatedAt),
		formatTimestamp(p.UpdatedAt))
	if err != nil {
		return errors.Wrap(err, "insert training plan", slog.Int("user_id", p.UserID))
	}
	return nil
}

// Update loads the user's plan, lets updateFn modify it and saves it when updateFn reports a change.
// The volume multiplier is owned by adjustments and is never written here.
func (r *sqlitePlanRepository) Update(
	ctx context.Context,
	userID int,
	updateFn func(plan *TrainingPlan) (bool, error),
) error {
	return r.inTx(ctx, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, `SELECT `+planColumns+` FROM training_plans WHERE user_id = ?`, userID)
		plan, err := scanPlan(row)
		if err != nil {
			return notFound(err, "query training plan for update", slog.Int("user_id", userID))
		}

		updated, err := updateFn(&plan)
		if err != nil {
			return errors.Wrap(err, "update function")
		}
		if !updated {
			return nil
		}

		_, err = tx.ExecContext(ctx, `
			UPDATE training_plans
			SET days_per_week           = ?,
			    session_duration_target = ?,
			    split_type              = ?,
			    progression_type        = ?,
			    auto_adjust_enabled     = ?,
			    deload_week_frequency   = ?,
			    updated_at              = ?
			WHERE id = ?`,
			plan.DaysPerWeek, plan.SessionDurationTarget, plan.SplitType, plan.ProgressionType,
			plan.AutoAdjustEnabled, plan.DeloadWeekFrequency, formatTimestamp(plan.UpdatedAt), plan.ID)
		if err != nil {
			return errors.Wrap(err, "save training plan", slog.Int("plan_id", plan.ID))
		}
		return nil
	})
}
