package coach

import (
	"context"
	"log/slog"
	"math"
	"slices"
	"time"

	"github.com/myrjola/petrcoach/internal/errors"
	"github.com/myrjola/petrcoach/internal/logging"
	"github.com/myrjola/petrcoach/internal/timewindow"
)

const (
	minVolumeMultiplier = 0.6
	maxVolumeMultiplier = 1.2

	deloadFactor   = 0.6
	slippingFactor = 0.8
	momentumFactor = 1.1

	momentumThreshold              = 80.0
	momentumThresholdAfterDecrease = 85.0

	defaultDeloadWeekFrequency = 4
	defaultHistoryLimit        = 12
)

var (
	splitTypes       = []string{"full_body", "upper_lower", "push_pull_legs"}
	progressionTypes = []string{"linear", "wave", "autoregulated"}
)

var (
	goalDefaultDays = map[Goal]int{
		GoalStrength:   3,
		GoalMuscle:     4,
		GoalWeightLoss: 3,
		GoalGeneral:    3,
	}
	goalDefaultSplit = map[Goal]string{
		GoalStrength:   "full_body",
		GoalMuscle:     "upper_lower",
		GoalWeightLoss: "full_body",
		GoalGeneral:    "full_body",
	}
)

// adjustmentDecision is the outcome of the adjustment rules before it is applied to a plan.
type adjustmentDecision struct {
	factor  float64
	trigger TriggerReason
	deload  bool
	title   string
	bullets []string
}

// decideAdjustment runs the adjustment rules in order against the latest metrics and the adjustment preceding the
// week. It returns nil when no rule fires.
func decideAdjustment(latest *MetricsSnapshot, previous *PlanAdjustment) *adjustmentDecision {
	if latest == nil {
		return nil
	}

	threshold := momentumThreshold
	if previous != nil {
		switch {
		case previous.IsDeload:
			// No increase right after a deload.
			threshold = math.Inf(1)
		case previous.NewVolumeMultiplier < previous.PreviousVolumeMultiplier:
			threshold = momentumThresholdAfterDecrease
		}
	}

	switch {
	case latest.BurnoutRisk == RiskHigh:
		return &adjustmentDecision{
			factor:  deloadFactor,
			trigger: TriggerBurnout,
			deload:  true,
			title:   "Deload week",
			bullets: []string{
				"This is a deload week to help you recover",
				"Volume reduced by 40%",
				"Focus on form over intensity",
			},
		}
	case latest.PrimaryMistake != nil && latest.PrimaryMistake.Key == MistakeVolumeDrop:
		return &adjustmentDecision{
			factor:  slippingFactor,
			trigger: TriggerSlipping,
			deload:  false,
			title:   "Volume reduced",
			bullets: []string{
				"Volume reduced by 20% to support recovery",
				"Focus on consistency this week",
			},
		}
	case latest.MomentumTrend == MomentumRising && latest.ConsistencyScore >= threshold:
		return &adjustmentDecision{
			factor:  momentumFactor,
			trigger: TriggerMomentumUp,
			deload:  false,
			title:   "Volume increased",
			bullets: []string{
				"Momentum is strong, slight volume increase",
				"Keep quality over quantity",
			},
		}
	default:
		return nil
	}
}

// clampVolume keeps the multiplier within [0.6, 1.2] at two decimals.
func clampVolume(v float64) float64 {
	return round2(min(maxVolumeMultiplier, max(minVolumeMultiplier, v)))
}

// ComputeWeeklyAdjustment decides and applies the plan adjustment of the week starting on weekStart. It returns
// nil when the plan is missing, auto adjustment is off, no rule fires, or the clamped multiplier would not change.
// An adjustment that already exists for the week is returned as is.
func (s *Service) ComputeWeeklyAdjustment(ctx context.Context, userID int, weekStart time.Time) (*PlanAdjustment, error) {
	weekStart = timewindow.WeekStart(weekStart)
	ctx = logging.WithAttrs(ctx, slog.String("week_start", timewindow.FormatDate(weekStart)))

	if _, err := s.repo.users.Get(ctx, userID); err != nil {
		return nil, errors.Wrap(err, "get user")
	}
	plan, err := s.repo.plans.Get(ctx, userID)
	if errors.Is(err, ErrNotFound) {
		return nil, nil //nolint:nilnil // no plan means nothing to adjust
	}
	if err != nil {
		return nil, errors.Wrap(err, "get plan")
	}
	if !plan.AutoAdjustEnabled {
		return nil, nil //nolint:nilnil // adjustments are opt-in
	}

	existing, err := s.repo.adjustments.GetForWeek(ctx, plan.ID, weekStart)
	switch {
	case err == nil:
		return &existing, nil
	case !errors.Is(err, ErrNotFound):
		return nil, errors.Wrap(err, "get adjustment for week")
	}

	var latest *MetricsSnapshot
	if m, latestErr := s.repo.metrics.Latest(ctx, userID); latestErr == nil {
		latest = &m
	} else if !errors.Is(latestErr, ErrNotFound) {
		return nil, errors.Wrap(latestErr, "latest metrics")
	}

	var previous *PlanAdjustment
	if p, prevErr := s.repo.adjustments.LatestBefore(ctx, plan.ID, weekStart); prevErr == nil {
		previous = &p
	} else if !errors.Is(prevErr, ErrNotFound) {
		return nil, errors.Wrap(prevErr, "previous adjustment")
	}

	decision := decideAdjustment(latest, previous)
	if decision == nil {
		return nil, nil //nolint:nilnil // no rule fired
	}
	newMultiplier := clampVolume(plan.VolumeMultiplier * decision.factor)
	if newMultiplier == round2(plan.VolumeMultiplier) {
		s.logger.LogAttrs(ctx, slog.LevelDebug, "skipped adjustment without effect",
			slog.String("trigger", string(decision.trigger)), slog.Float64("volume_multiplier", newMultiplier))
		return nil, nil //nolint:nilnil // clamping absorbed the change
	}

	adj := PlanAdjustment{
		ID:                       0,
		PlanID:                   plan.ID,
		UserID:                   userID,
		WeekStart:                weekStart,
		PreviousVolumeMultiplier: plan.VolumeMultiplier,
		NewVolumeMultiplier:      newMultiplier,
		IsDeload:                 decision.deload,
		TriggerReason:            decision.trigger,
		ExplanationTitle:         decision.title,
		ExplanationBullets:       decision.bullets,
		MetricsSnapshot: AdjustmentSnapshot{
			ConsistencyScore: latest.ConsistencyScore,
			BurnoutRisk:      latest.BurnoutRisk,
			MomentumTrend:    latest.MomentumTrend,
		},
		CreatedAt: s.clock.Now().UTC(),
	}
	applied, err := s.repo.adjustments.Apply(ctx, adj)
	if err != nil {
		return nil, errors.Wrap(err, "apply adjustment")
	}
	s.logger.LogAttrs(ctx, slog.LevelInfo, "adjusted training plan",
		slog.String("trigger", string(applied.TriggerReason)),
		slog.Float64("previous_volume_multiplier", applied.PreviousVolumeMultiplier),
		slog.Float64("new_volume_multiplier", applied.NewVolumeMultiplier))
	return &applied, nil
}

// CreatePlan creates the user's training plan with goal-aware defaults. An existing plan is returned unchanged.
func (s *Service) CreatePlan(ctx context.Context, userID int) (TrainingPlan, error) {
	if _, err := s.repo.users.Get(ctx, userID); err != nil {
		return TrainingPlan{}, errors.Wrap(err, "get user")
	}
	profile, err := s.repo.profiles.Get(ctx, userID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return TrainingPlan{}, errors.Wrap(err, "get coaching profile")
	}
	goal := profile.PrimaryGoal
	if _, ok := goalDefaultDays[goal]; !ok {
		goal = GoalGeneral
	}
	days := profile.TargetDaysPerWeek
	if days == 0 {
		days = goalDefaultDays[goal]
	}
	minutes := profile.TargetSessionMinutes
	if minutes == 0 {
		minutes = defaultTargetSessionMinutes
	}

	plan := TrainingPlan{
		ID:                    0,
		UserID:                userID,
		DaysPerWeek:           days,
		SessionDurationTarget: minutes,
		SplitType:             goalDefaultSplit[goal],
		ProgressionType:       "linear",
		AutoAdjustEnabled:     false,
		DeloadWeekFrequency:   defaultDeloadWeekFrequency,
		VolumeMultiplier:      1,
		CreatedAt:             s.clock.Now().UTC(),
		UpdatedAt:             s.clock.Now().UTC(),
	}
	if err = s.repo.plans.CreateIfMissing(ctx, plan); err != nil {
		return TrainingPlan{}, errors.Wrap(err, "create plan")
	}
	created, err := s.repo.plans.Get(ctx, userID)
	if err != nil {
		return TrainingPlan{}, errors.Wrap(err, "get created plan")
	}
	return created, nil
}

// GetPlan returns the user's training plan or ErrNotFound.
func (s *Service) GetPlan(ctx context.Context, userID int) (TrainingPlan, error) {
	plan, err := s.repo.plans.Get(ctx, userID)
	if err != nil {
		return TrainingPlan{}, errors.Wrap(err, "get plan")
	}
	return plan, nil
}

// UpdatePlanPreferences applies the non-nil preferences to the user's plan.
func (s *Service) UpdatePlanPreferences(ctx context.Context, userID int, prefs PlanPreferences) (TrainingPlan, error) {
	if prefs.SplitType != nil && !slices.Contains(splitTypes, *prefs.SplitType) {
		return TrainingPlan{}, errors.Wrap(ErrInvalidPreference, "split type",
			slog.String("split_type", *prefs.SplitType))
	}
	if prefs.ProgressionType != nil && !slices.Contains(progressionTypes, *prefs.ProgressionType) {
		return TrainingPlan{}, errors.Wrap(ErrInvalidPreference, "progression type",
			slog.String("progression_type", *prefs.ProgressionType))
	}
	if prefs.DaysPerWeek != nil && (*prefs.DaysPerWeek < 1 || *prefs.DaysPerWeek > 7) {
		return TrainingPlan{}, errors.Wrap(ErrInvalidPreference, "days per week",
			slog.Int("days_per_week", *prefs.DaysPerWeek))
	}

	err := s.repo.plans.Update(ctx, userID, func(plan *TrainingPlan) (bool, error) {
		if prefs.DaysPerWeek != nil {
			plan.DaysPerWeek = *prefs.DaysPerWeek
		}
		if prefs.SessionDurationTarget != nil {
			plan.SessionDurationTarget = *prefs.SessionDurationTarget
		}
		if prefs.SplitType != nil {
			plan.SplitType = *prefs.SplitType
		}
		if prefs.ProgressionType != nil {
			plan.ProgressionType = *prefs.ProgressionType
		}
		if prefs.AutoAdjustEnabled != nil {
			plan.AutoAdjustEnabled = *prefs.AutoAdjustEnabled
		}
		if prefs.DeloadWeekFrequency != nil {
			plan.DeloadWeekFrequency = *prefs.DeloadWeekFrequency
		}
		plan.UpdatedAt = s.clock.Now().UTC()
		return true, nil
	})
	if err != nil {
		return TrainingPlan{}, errors.Wrap(err, "update plan")
	}
	return s.GetPlan(ctx, userID)
}

// AdjustmentHistory returns the user's plan adjustments, newest week first. A non-positive limit means 12.
func (s *Service) AdjustmentHistory(ctx context.Context, userID int, limit int) ([]PlanAdjustment, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	history, err := s.repo.adjustments.History(ctx, userID, limit)
	if err != nil {
		return nil, errors.Wrap(err, "adjustment history")
	}
	return history, nil
}

// ThisWeekAdjustment returns the adjustment of the user's current local week or ErrNotFound.
func (s *Service) ThisWeekAdjustment(ctx context.Context, userID int) (PlanAdjustment, error) {
	user, err := s.repo.users.Get(ctx, userID)
	if err != nil {
		return PlanAdjustment{}, errors.Wrap(err, "get user")
	}
	plan, err := s.repo.plans.Get(ctx, userID)
	if err != nil {
		return PlanAdjustment{}, errors.Wrap(err, "get plan")
	}
	weekStart := timewindow.WeekStart(s.clock.Today(user.Timezone))
	adj, err := s.repo.adjustments.GetForWeek(ctx, plan.ID, weekStart)
	if err != nil {
		return PlanAdjustment{}, errors.Wrap(err, "get adjustment for week",
			slog.String("week_start", timewindow.FormatDate(weekStart)))
	}
	return adj, nil
}
