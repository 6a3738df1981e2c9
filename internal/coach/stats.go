package coach

import (
	"context"
	"log/slog"
	"time"

	"github.com/myrjola/petrcoach/internal/errors"
	"github.com/myrjola/petrcoach/internal/timewindow"
)

// GroupBy selects the bucket size of a volume series.
type GroupBy string

const (
	GroupByDay  GroupBy = "day"
	GroupByWeek GroupBy = "week"
)

const streakWindowDays = 365

// VolumeBucket is one point of a dense volume series.
type VolumeBucket struct {
	PeriodStart   time.Time
	PeriodEnd     time.Time
	TotalVolumeKg float64
	WorkoutCount  int
}

// Streak describes consecutive training days.
type Streak struct {
	CurrentDays     int
	LongestDays     int
	LastWorkoutDate *time.Time
}

// MetricsSummary is the overview of a trailing period.
type MetricsSummary struct {
	PeriodDays          int
	TotalVolumeKg       float64
	WorkoutsCount       int
	WorkoutsPerWeek     float64
	VolumeByMuscleGroup map[string]float64
	ImbalanceHint       *string
	StreakDays          int
}

// volumeSeries buckets the workouts of [start, end] by day or Monday-start week. Every bucket is present even
// when it has no workouts.
func volumeSeries(workouts []Workout, loc *time.Location, start, end time.Time, groupBy GroupBy) []VolumeBucket {
	var buckets []VolumeBucket
	step := 1
	first := start
	if groupBy == GroupByWeek {
		step = 7
		first = timewindow.WeekStart(start)
	}
	for d := first; !d.After(end); d = d.AddDate(0, 0, step) {
		periodEnd := d.AddDate(0, 0, step-1)
		// Week buckets only count the part that overlaps the requested range.
		agg := aggregate(workouts, loc, later(d, start), earlier(periodEnd, end))
		buckets = append(buckets, VolumeBucket{
			PeriodStart:   d,
			PeriodEnd:     periodEnd,
			TotalVolumeKg: agg.TotalVolumeKg,
			WorkoutCount:  agg.WorkoutCount,
		})
	}
	return buckets
}

func later(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}

func earlier(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}

// streak computes the current streak ending today and the longest streak among dates sorted ascending.
func streak(dates []time.Time, today time.Time) Streak {
	if len(dates) == 0 {
		return Streak{CurrentDays: 0, LongestDays: 0, LastWorkoutDate: nil}
	}
	worked := make(map[time.Time]bool, len(dates))
	for _, d := range dates {
		worked[d] = true
	}
	current := 0
	for d := today; worked[d]; d = d.AddDate(0, 0, -1) {
		current++
	}
	longest, run := 1, 1
	for i := 1; i < len(dates); i++ {
		if timewindow.DaysBetween(dates[i-1], dates[i]) == 1 {
			run++
			longest = max(longest, run)
		} else {
			run = 1
		}
	}
	last := dates[len(dates)-1]
	return Streak{CurrentDays: current, LongestDays: longest, LastWorkoutDate: &last}
}

// imbalanceHint suggests more leg work when upper body volume dominates.
func imbalanceHint(byMuscle map[string]float64) *string {
	chest, back, legs := byMuscle["chest"], byMuscle["back"], byMuscle["legs"]
	var hint string
	switch {
	case legs <= 0 && (chest > 0 || back > 0):
		hint = "Consider adding leg volume for balance."
	case legs > 0 && (chest+back)/legs > 2: //nolint:mnd // upper to legs ratio
		hint = "Consider more leg volume for balance."
	default:
		return nil
	}
	return &hint
}

// VolumeOverTime returns the dense volume series of the trailing days ending on the user's local today.
func (s *Service) VolumeOverTime(ctx context.Context, userID int, days int, groupBy GroupBy) ([]VolumeBucket, error) {
	if groupBy != GroupByDay && groupBy != GroupByWeek {
		return nil, errors.New("unknown grouping", slog.String("group_by", string(groupBy)))
	}
	user, start, end, err := s.trailingPeriod(ctx, userID, days)
	if err != nil {
		return nil, err
	}
	workouts, err := s.loadWorkouts(ctx, user, start, end)
	if err != nil {
		return nil, err
	}
	return volumeSeries(workouts, timewindow.Location(user.Timezone), start, end, groupBy), nil
}

// Streak returns the user's training streaks over the last year.
func (s *Service) Streak(ctx context.Context, userID int) (Streak, error) {
	user, start, end, err := s.trailingPeriod(ctx, userID, streakWindowDays)
	if err != nil {
		return Streak{}, err
	}
	agg, err := s.aggregateFor(ctx, user, start, end)
	if err != nil {
		return Streak{}, err
	}
	return streak(agg.WorkedDates, end), nil
}

// MetricsSummary returns totals, per-muscle volume and streak for the trailing days.
func (s *Service) MetricsSummary(ctx context.Context, userID int, days int) (MetricsSummary, error) {
	user, start, end, err := s.trailingPeriod(ctx, userID, days)
	if err != nil {
		return MetricsSummary{}, err
	}
	agg, err := s.aggregateFor(ctx, user, start, end)
	if err != nil {
		return MetricsSummary{}, err
	}
	st, err := s.Streak(ctx, userID)
	if err != nil {
		return MetricsSummary{}, err
	}
	weeks := max(1, float64(days)/7) //nolint:mnd // days per week
	return MetricsSummary{
		PeriodDays:          days,
		TotalVolumeKg:       round1(agg.TotalVolumeKg),
		WorkoutsCount:       agg.WorkoutCount,
		WorkoutsPerWeek:     round1(float64(agg.WorkoutCount) / weeks),
		VolumeByMuscleGroup: agg.VolumeByMuscle,
		ImbalanceHint:       imbalanceHint(agg.VolumeByMuscle),
		StreakDays:          st.CurrentDays,
	}, nil
}

func (s *Service) trailingPeriod(ctx context.Context, userID int, days int) (User, time.Time, time.Time, error) {
	if days <= 0 {
		return User{}, time.Time{}, time.Time{}, errors.New("period must be positive", slog.Int("days", days))
	}
	user, err := s.repo.users.Get(ctx, userID)
	if err != nil {
		return User{}, time.Time{}, time.Time{}, errors.Wrap(err, "get user")
	}
	end := s.clock.Today(user.Timezone)
	return user, end.AddDate(0, 0, -(days - 1)), end, nil
}
