package coach

import (
	"context"
	"slices"
	"time"

	"github.com/myrjola/petrcoach/internal/errors"
	"github.com/myrjola/petrcoach/internal/timewindow"
)

// Aggregates are the measures derived from the finalized workouts of a local date range.
type Aggregates struct {
	// Start and End are the inclusive local dates of the range.
	Start time.Time
	End   time.Time
	// WorkedDates are the distinct local dates with at least one workout, in ascending order.
	WorkedDates  []time.Time
	WorkoutCount int
	// SetCount counts working sets only.
	SetCount       int
	TotalVolumeKg  float64
	VolumeByMuscle map[string]float64
	// AvgSessionMinutes is nil when no workout in the range has a known duration.
	AvgSessionMinutes *float64
}

// aggregate derives Aggregates from workouts whose local start date falls within [start, end].
func aggregate(workouts []Workout, loc *time.Location, start, end time.Time) Aggregates {
	agg := Aggregates{
		Start:             start,
		End:               end,
		WorkedDates:       nil,
		WorkoutCount:      0,
		SetCount:          0,
		TotalVolumeKg:     0,
		VolumeByMuscle:    map[string]float64{},
		AvgSessionMinutes: nil,
	}
	var (
		durationSum   float64
		durationCount int
		seen          = map[time.Time]bool{}
	)
	for _, w := range workouts {
		d := timewindow.LocalDate(w.StartTime, loc)
		if d.Before(start) || d.After(end) {
			continue
		}
		agg.WorkoutCount++
		if !seen[d] {
			seen[d] = true
			agg.WorkedDates = append(agg.WorkedDates, d)
		}
		if minutes, ok := w.Duration(); ok {
			durationSum += minutes
			durationCount++
		}
		for _, s := range w.Sets {
			if s.Type != SetWorking {
				continue
			}
			agg.SetCount++
			v := s.Volume()
			agg.TotalVolumeKg += v
			agg.VolumeByMuscle[s.MuscleGroup] += v
		}
	}
	slices.SortFunc(agg.WorkedDates, func(a, b time.Time) int { return a.Compare(b) })
	if durationCount > 0 {
		avg := durationSum / float64(durationCount)
		agg.AvgSessionMinutes = &avg
	}
	return agg
}

// Aggregate computes the aggregates of the user's finalized workouts between the local dates start and end inclusive.
func (s *Service) Aggregate(ctx context.Context, userID int, start, end time.Time) (Aggregates, error) {
	user, err := s.repo.users.Get(ctx, userID)
	if err != nil {
		return Aggregates{}, errors.Wrap(err, "get user")
	}
	return s.aggregateFor(ctx, user, start, end)
}

func (s *Service) aggregateFor(ctx context.Context, user User, start, end time.Time) (Aggregates, error) {
	workouts, err := s.loadWorkouts(ctx, user, start, end)
	if err != nil {
		return Aggregates{}, err
	}
	return aggregate(workouts, timewindow.Location(user.Timezone), start, end), nil
}
