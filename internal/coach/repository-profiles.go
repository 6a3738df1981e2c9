package coach

import (
	"context"
	"log/slog"
)

type sqliteProfileRepository struct {
	baseRepository
}

// Get returns the stored coaching profile or ErrNotFound. Defaults are not applied.
func (r *sqliteProfileRepository) Get(ctx context.Context, userID int) (CoachingProfile, error) {
	var p CoachingProfile
	err := r.db.ReadOnly.QueryRowContext(ctx, `
		SELECT primary_goal, target_days_per_week, target_session_minutes
		FROM coach_profiles
		WHERE user_id = ?`, userID).Scan(&p.PrimaryGoal, &p.TargetDaysPerWeek, &p.TargetSessionMinutes)
	if err != nil {
		return CoachingProfile{}, notFound(err, "query coaching profile", slog.Int("user_id", userID))
	}
	return p, nil
}
