package coach

import (
	"context"
	"log/slog"
	"math"

	"github.com/myrjola/petrcoach/internal/errors"
)

const (
	baseStrengthWeeks = 4
	baseVisibleWeeks  = 8
	minStrengthWeeks  = 1
	minVisibleWeeks   = 2
)

var milestoneByGoal = map[Goal]string{
	GoalStrength:   "First strength gains",
	GoalMuscle:     "First visible muscle definition",
	GoalWeightLoss: "First 2-3 lb drop",
	GoalGeneral:    "First fitness milestone",
}

// consistencyMultiplier stretches the timeline for low consistency. A missing score counts as the lowest band.
func consistencyMultiplier(score *float64) float64 {
	switch {
	case score == nil:
		return 1.6 //nolint:mnd // lowest band
	case *score >= 80: //nolint:mnd // band edges
		return 0.8 //nolint:mnd // fastest timeline
	case *score >= 60: //nolint:mnd // band edges
		return 1.0
	case *score >= 40: //nolint:mnd // band edges
		return 1.3 //nolint:mnd // slower timeline
	default:
		return 1.6 //nolint:mnd // lowest band
	}
}

// projectTimeline builds a prediction from the latest metrics, the goal and the previous prediction.
func projectTimeline(latest *MetricsSnapshot, goal Goal, previous *Prediction) Prediction {
	if _, ok := milestoneByGoal[goal]; !ok {
		goal = GoalGeneral
	}
	var (
		score           *float64
		workoutsPerWeek *float64
	)
	if latest != nil {
		s := round1(latest.ConsistencyScore)
		score = &s
		w := round1(float64(latest.WorkoutsLast14Days) / 2) //nolint:mnd // two weeks
		workoutsPerWeek = &w
	}

	m := consistencyMultiplier(score)
	strength := max(minStrengthWeeks, int(math.Round(baseStrengthWeeks*m)))
	visible := max(minVisibleWeeks, int(math.Round(baseVisibleWeeks*m)))

	p := Prediction{
		StrengthGainWeeks:       strength,
		VisibleChangeWeeks:      visible,
		NextMilestone:           milestoneByGoal[goal],
		NextMilestoneWeeks:      strength,
		CurrentConsistencyScore: score,
		CurrentWorkoutsPerWeek:  workoutsPerWeek,
		PrimaryGoal:             goal,
	}
	if previous != nil {
		delta := strength - previous.StrengthGainWeeks
		var reason string
		switch {
		case delta > 0:
			reason = "Consistency dropped; timeline extended"
		case delta < 0:
			reason = "Consistency improved; timeline shortened"
		default:
			reason = "No change"
		}
		p.WeeksDelta = &delta
		p.DeltaReason = &reason
	}
	return p
}

// ComputePrediction projects the user's transformation timeline and appends it to the prediction history.
func (s *Service) ComputePrediction(ctx context.Context, userID int) (Prediction, error) {
	if _, err := s.repo.users.Get(ctx, userID); err != nil {
		return Prediction{}, errors.Wrap(err, "get user")
	}
	profile, err := s.profileFor(ctx, userID)
	if err != nil {
		return Prediction{}, err
	}

	var latest *MetricsSnapshot
	if m, latestErr := s.repo.metrics.Latest(ctx, userID); latestErr == nil {
		latest = &m
	} else if !errors.Is(latestErr, ErrNotFound) {
		return Prediction{}, errors.Wrap(latestErr, "latest metrics")
	}
	var previous *Prediction
	if p, prevErr := s.repo.predictions.Latest(ctx, userID); prevErr == nil {
		previous = &p
	} else if !errors.Is(prevErr, ErrNotFound) {
		return Prediction{}, errors.Wrap(prevErr, "latest prediction")
	}

	p := projectTimeline(latest, profile.PrimaryGoal, previous)
	p.UserID = userID
	p.CreatedAt = s.clock.Now().UTC()
	if p.ID, err = s.repo.predictions.Insert(ctx, p); err != nil {
		return Prediction{}, errors.Wrap(err, "insert prediction")
	}
	s.logger.LogAttrs(ctx, slog.LevelDebug, "computed prediction",
		slog.Int("strength_gain_weeks", p.StrengthGainWeeks), slog.Int("visible_change_weeks", p.VisibleChangeWeeks))
	return p, nil
}
