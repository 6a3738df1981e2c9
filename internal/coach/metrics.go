package coach

import (
	"context"
	"log/slog"
	"math"
	"time"

	"github.com/myrjola/petrcoach/internal/errors"
	"github.com/myrjola/petrcoach/internal/logging"
	"github.com/myrjola/petrcoach/internal/ptr"
	"github.com/myrjola/petrcoach/internal/timewindow"
)

const (
	metricsWindowDays = 30
	shortWindowDays   = 7
	longWindowDays    = 14

	dropoutHighGapDays    = 5
	dropoutMediumGapDays  = 3
	burnoutHighWorkouts   = 12
	burnoutMediumWorkouts = 10
	burnoutMediumMinutes  = 60.0
	momentumRisingPct     = 10.0
	momentumFallingPct    = -15.0
	sporadicGapDays       = 4
	weekendWarriorShare   = 0.6
)

// metricsInput is what the metrics engine needs for one user and day.
type metricsInput struct {
	Today   time.Time
	Profile CoachingProfile
	// Window covers the trailing 30 days, Current the trailing 7 days and Prior the 7 days before Current.
	Window  Aggregates
	Current Aggregates
	Prior   Aggregates
}

// computeSnapshot is the behaviour metrics engine. Rules run on unrounded values and the stored numbers are
// rounded to one decimal.
func computeSnapshot(in metricsInput) MetricsSnapshot {
	profile := in.Profile
	dates := in.Window.WorkedDates
	w7 := countWithin(dates, in.Today, shortWindowDays)
	w14 := countWithin(dates, in.Today, longWindowDays)
	delta := volumeDeltaPct(in.Current.TotalVolumeKg, in.Prior.TotalVolumeKg)
	gap := maxGap(dates, in.Window.Start, in.Today)

	diagnosis := Diagnose(DiagnosisInput{
		Kind:                 WindowRolling,
		Workouts:             w14,
		MaxGapDays:           gap,
		Volume:               in.Current.TotalVolumeKg,
		PriorVolume:          in.Prior.TotalVolumeKg,
		AvgSessionMinutes:    in.Current.AvgSessionMinutes,
		TargetDaysPerWeek:    profile.TargetDaysPerWeek,
		TargetSessionMinutes: profile.TargetSessionMinutes,
	})

	return MetricsSnapshot{
		UserID:                0,
		MetricsDate:           in.Today,
		ConsistencyScore:      round1(consistencyScore(w14, profile.TargetDaysPerWeek)),
		DropoutRisk:           dropoutRisk(w14, gap),
		BurnoutRisk:           burnoutRisk(w14, in.Current.AvgSessionMinutes),
		MomentumTrend:         momentumTrend(delta),
		AdherenceType:         adherenceType(dates, in.Today, gap),
		WorkoutsLast7Days:     w7,
		WorkoutsLast14Days:    w14,
		AvgSessionDuration:    round1Ptr(in.Current.AvgSessionMinutes),
		TotalVolumeLast7Days:  round1(in.Current.TotalVolumeKg),
		VolumeDeltaVsPrevWeek: round1Ptr(delta),
		MaxGapDays:            gap,
		CommonSkipDay:         commonSkipDay(dates, in.Window.Start, in.Today),
		PrimaryMistake:        diagnosis.Mistake,
		WeeklyFocus:           diagnosis.Focus,
		Reasons:               diagnosis.Reasons,
		ComputedAt:            time.Time{},
	}
}

// countWithin counts the dates whose age relative to today is in [0, days).
func countWithin(dates []time.Time, today time.Time, days int) int {
	n := 0
	for _, d := range dates {
		if age := timewindow.DaysBetween(d, today); age >= 0 && age < days {
			n++
		}
	}
	return n
}

// maxGap returns the longest run of days without a workout in [start, end], counting both edges of the window.
// It is nil when there are no worked dates at all.
func maxGap(dates []time.Time, start, end time.Time) *int {
	var inWindow []time.Time
	for _, d := range dates {
		if !d.Before(start) && !d.After(end) {
			inWindow = append(inWindow, d)
		}
	}
	if len(dates) == 0 {
		return nil
	}
	if len(inWindow) == 0 {
		gap := timewindow.DaysBetween(start, end) + 1
		return &gap
	}
	gap := timewindow.DaysBetween(start, inWindow[0])
	for i := 1; i < len(inWindow); i++ {
		gap = max(gap, timewindow.DaysBetween(inWindow[i-1], inWindow[i])-1)
	}
	gap = max(gap, timewindow.DaysBetween(inWindow[len(inWindow)-1], end))
	return &gap
}

// commonSkipDay returns the weekday with the most days without a workout in [start, end]. Ties go to the earlier
// weekday counting from Monday. It is nil when every day had a workout.
func commonSkipDay(dates []time.Time, start, end time.Time) *time.Weekday {
	worked := make(map[time.Time]bool, len(dates))
	for _, d := range dates {
		worked[d] = true
	}
	var skips [7]int
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		if !worked[d] {
			skips[(int(d.Weekday())+6)%7]++
		}
	}
	best := 0
	for i := 1; i < len(skips); i++ {
		if skips[i] > skips[best] {
			best = i
		}
	}
	if skips[best] == 0 {
		return nil
	}
	w := time.Weekday((best + 1) % 7) //nolint:gosec // best is in [0, 6]
	return &w
}

// consistencyScore measures how close the last 14 days come to twice the weekly target, within [0, 100].
func consistencyScore(workouts14, targetDaysPerWeek int) float64 {
	if targetDaysPerWeek <= 0 {
		return 100 //nolint:mnd // full score
	}
	score := float64(workouts14) / float64(targetDaysPerWeek*2) * 100 //nolint:mnd // percent of two weeks
	return min(100, max(0, score))
}

func dropoutRisk(workouts14 int, gap *int) Risk {
	switch {
	case workouts14 == 0, ptr.ValueOr(gap, 0) > dropoutHighGapDays:
		return RiskHigh
	case ptr.ValueOr(gap, 0) > dropoutMediumGapDays:
		return RiskMedium
	default:
		return RiskLow
	}
}

func burnoutRisk(workouts14 int, avgMinutes *float64) Risk {
	switch {
	case workouts14 >= burnoutHighWorkouts:
		return RiskHigh
	case workouts14 >= burnoutMediumWorkouts && avgMinutes != nil && *avgMinutes >= burnoutMediumMinutes:
		return RiskMedium
	default:
		return RiskLow
	}
}

func momentumTrend(deltaPct *float64) Momentum {
	switch {
	case deltaPct == nil:
		return MomentumStable
	case *deltaPct > momentumRisingPct:
		return MomentumRising
	case *deltaPct < momentumFallingPct:
		return MomentumFalling
	default:
		return MomentumStable
	}
}

func adherenceType(dates []time.Time, today time.Time, gap *int) Adherence {
	if ptr.ValueOr(gap, 0) > sporadicGapDays {
		return AdherenceSporadic
	}
	var recent, weekend int
	for _, d := range dates {
		if age := timewindow.DaysBetween(d, today); age < 0 || age >= longWindowDays {
			continue
		}
		recent++
		if d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
			weekend++
		}
	}
	if recent == 0 {
		return AdherenceSporadic
	}
	if float64(weekend) >= float64(recent)*weekendWarriorShare {
		return AdherenceWeekendWarrior
	}
	return AdherenceConsistent
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10 //nolint:mnd // one decimal
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100 //nolint:mnd // two decimals
}

func round1Ptr(v *float64) *float64 {
	if v == nil {
		return nil
	}
	r := round1(*v)
	return &r
}

// ComputeMetrics computes and stores the behaviour metrics of the user for their local today.
func (s *Service) ComputeMetrics(ctx context.Context, userID int) (MetricsSnapshot, error) {
	user, err := s.repo.users.Get(ctx, userID)
	if err != nil {
		return MetricsSnapshot{}, errors.Wrap(err, "get user")
	}
	return s.computeMetrics(ctx, user, s.clock.Today(user.Timezone))
}

// ComputeMetricsForDate computes and stores the behaviour metrics of the user as of the local date today.
// Recomputing the same date overwrites the stored snapshot.
func (s *Service) ComputeMetricsForDate(ctx context.Context, userID int, today time.Time) (MetricsSnapshot, error) {
	user, err := s.repo.users.Get(ctx, userID)
	if err != nil {
		return MetricsSnapshot{}, errors.Wrap(err, "get user")
	}
	return s.computeMetrics(ctx, user, timewindow.Date(today))
}

func (s *Service) computeMetrics(ctx context.Context, user User, today time.Time) (MetricsSnapshot, error) {
	ctx = logging.WithAttrs(ctx, slog.String("metrics_date", timewindow.FormatDate(today)))

	profile, err := s.profileFor(ctx, user.ID)
	if err != nil {
		return MetricsSnapshot{}, err
	}

	windowStart := today.AddDate(0, 0, -(metricsWindowDays - 1))
	workouts, err := s.loadWorkouts(ctx, user, windowStart, today)
	if err != nil {
		return MetricsSnapshot{}, err
	}
	loc := timewindow.Location(user.Timezone)
	currentStart := today.AddDate(0, 0, -(shortWindowDays - 1))
	priorEnd := currentStart.AddDate(0, 0, -1)

	snapshot := computeSnapshot(metricsInput{
		Today:   today,
		Profile: profile,
		Window:  aggregate(workouts, loc, windowStart, today),
		Current: aggregate(workouts, loc, currentStart, today),
		Prior:   aggregate(workouts, loc, priorEnd.AddDate(0, 0, -(shortWindowDays-1)), priorEnd),
	})
	snapshot.UserID = user.ID
	snapshot.ComputedAt = s.clock.Now().UTC()

	if err = s.repo.metrics.Upsert(ctx, snapshot); err != nil {
		return MetricsSnapshot{}, errors.Wrap(err, "upsert metrics")
	}
	s.logger.LogAttrs(ctx, slog.LevelDebug, "computed behavior metrics",
		slog.Float64("consistency_score", snapshot.ConsistencyScore),
		slog.String("dropout_risk", string(snapshot.DropoutRisk)),
		slog.String("burnout_risk", string(snapshot.BurnoutRisk)))
	return snapshot, nil
}

// LatestMetrics returns the most recent metrics snapshot of the user.
func (s *Service) LatestMetrics(ctx context.Context, userID int) (MetricsSnapshot, error) {
	if _, err := s.repo.users.Get(ctx, userID); err != nil {
		return MetricsSnapshot{}, errors.Wrap(err, "get user")
	}
	m, err := s.repo.metrics.Latest(ctx, userID)
	if err != nil {
		return MetricsSnapshot{}, errors.Wrap(err, "latest metrics")
	}
	return m, nil
}

// profileFor returns the coaching profile with defaults filled in. A missing profile is not an error.
func (s *Service) profileFor(ctx context.Context, userID int) (CoachingProfile, error) {
	profile, err := s.repo.profiles.Get(ctx, userID)
	if errors.Is(err, ErrNotFound) {
		s.logger.LogAttrs(ctx, slog.LevelDebug, "no coaching profile, using defaults")
		return DefaultProfile(), nil
	}
	if err != nil {
		return CoachingProfile{}, errors.Wrap(err, "get coaching profile")
	}
	return profile.withDefaults(), nil
}

func (s *Service) loadWorkouts(ctx context.Context, user User, start, end time.Time) ([]Workout, error) {
	from, to := timewindow.UTCRange(user.Timezone, start, end)
	workouts, err := s.repo.workouts.ListFinalized(ctx, user.ID, from, to)
	if err != nil {
		return nil, errors.Wrap(err, "list finalized workouts",
			slog.String("start", timewindow.FormatDate(start)), slog.String("end", timewindow.FormatDate(end)))
	}
	return workouts, nil
}
