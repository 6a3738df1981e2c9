package coach

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/myrjola/petrcoach/internal/ptr"
)

func workoutAt(start time.Time, muscle string, weightKg float64, reps int) Workout {
	return Workout{
		ID:              0,
		StartTime:       start,
		EndTime:         nil,
		DurationMinutes: nil,
		Sets: []Set{
			{MuscleGroup: muscle, Type: SetWorking, WeightKg: &weightKg, Reps: &reps},
		},
	}
}

func Test_aggregate(t *testing.T) {
	helsinki, err := time.LoadLocation("Europe/Helsinki")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	start := time.Date(2026, 10, 5, 10, 0, 0, 0, time.UTC)
	end := start.Add(30 * time.Minute)
	workouts := []Workout{
		{
			ID:              1,
			StartTime:       time.Date(2026, 10, 4, 21, 30, 0, 0, time.UTC), // 00:30 on Monday in Helsinki
			EndTime:         nil,
			DurationMinutes: ptr.Ref(60),
			Sets: []Set{
				{MuscleGroup: "chest", Type: SetWorking, WeightKg: ptr.Ref(100.0), Reps: ptr.Ref(5)},
				{MuscleGroup: "chest", Type: SetWarmup, WeightKg: ptr.Ref(40.0), Reps: ptr.Ref(10)},
				{MuscleGroup: "chest", Type: SetWorking, WeightKg: ptr.Ref(100.0), Reps: nil},
			},
		},
		{
			ID:              2,
			StartTime:       start,
			EndTime:         &end,
			DurationMinutes: nil,
			Sets: []Set{
				{MuscleGroup: "legs", Type: SetWorking, WeightKg: ptr.Ref(80.0), Reps: ptr.Ref(5)},
			},
		},
		workoutAt(time.Date(2026, 10, 11, 21, 30, 0, 0, time.UTC), "back", 50, 10), // Monday after the range
	}

	got := aggregate(workouts, helsinki, date(2026, 10, 5), date(2026, 10, 11))
	want := Aggregates{
		Start:             date(2026, 10, 5),
		End:               date(2026, 10, 11),
		WorkedDates:       []time.Time{date(2026, 10, 5)},
		WorkoutCount:      2,
		SetCount:          3,
		TotalVolumeKg:     900,
		VolumeByMuscle:    map[string]float64{"chest": 500, "legs": 400},
		AvgSessionMinutes: ptr.Ref(45.0),
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("aggregate() mismatch (-want +got):\n%s", diff)
	}
}

func Test_volumeSeries(t *testing.T) {
	workouts := []Workout{
		workoutAt(time.Date(2026, 10, 6, 18, 0, 0, 0, time.UTC), "chest", 50, 2),
		workoutAt(time.Date(2026, 10, 8, 18, 0, 0, 0, time.UTC), "chest", 100, 2),
		workoutAt(time.Date(2026, 10, 13, 18, 0, 0, 0, time.UTC), "legs", 100, 3),
	}

	t.Run("weeks are clipped to the range", func(t *testing.T) {
		got := volumeSeries(workouts, time.UTC, date(2026, 10, 7), date(2026, 10, 18), GroupByWeek)
		want := []VolumeBucket{
			{PeriodStart: date(2026, 10, 5), PeriodEnd: date(2026, 10, 11), TotalVolumeKg: 200, WorkoutCount: 1},
			{PeriodStart: date(2026, 10, 12), PeriodEnd: date(2026, 10, 18), TotalVolumeKg: 300, WorkoutCount: 1},
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("volumeSeries() mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("days are dense", func(t *testing.T) {
		got := volumeSeries(workouts, time.UTC, date(2026, 10, 5), date(2026, 10, 9), GroupByDay)
		if len(got) != 5 {
			t.Fatalf("got %d buckets, want 5", len(got))
		}
		wantVolumes := []float64{0, 100, 0, 200, 0}
		for i, b := range got {
			if b.TotalVolumeKg != wantVolumes[i] {
				t.Errorf("bucket %s volume = %v, want %v", b.PeriodStart.Format(time.DateOnly), b.TotalVolumeKg, wantVolumes[i])
			}
			if !b.PeriodStart.Equal(b.PeriodEnd) {
				t.Errorf("day bucket spans %s to %s", b.PeriodStart, b.PeriodEnd)
			}
		}
	})
}

func Test_streak(t *testing.T) {
	dates := []time.Time{
		date(2026, 10, 1), date(2026, 10, 2), date(2026, 10, 3), date(2026, 10, 4),
		date(2026, 10, 9), date(2026, 10, 10), date(2026, 10, 11),
	}
	last := date(2026, 10, 11)
	tests := []struct {
		name  string
		dates []time.Time
		today time.Time
		want  Streak
	}{
		{name: "no workouts", dates: nil, today: last, want: Streak{}},
		{
			name:  "trained today",
			dates: dates,
			today: last,
			want:  Streak{CurrentDays: 3, LongestDays: 4, LastWorkoutDate: &last},
		},
		{
			name:  "rest day breaks the current streak",
			dates: dates,
			today: date(2026, 10, 12),
			want:  Streak{CurrentDays: 0, LongestDays: 4, LastWorkoutDate: &last},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, streak(tt.dates, tt.today)); diff != "" {
				t.Errorf("streak() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func Test_imbalanceHint(t *testing.T) {
	tests := []struct {
		name     string
		byMuscle map[string]float64
		want     *string
	}{
		{name: "no legs", byMuscle: map[string]float64{"chest": 100}, want: ptr.Ref("Consider adding leg volume for balance.")},
		{
			name:     "upper body dominates",
			byMuscle: map[string]float64{"chest": 300, "back": 100, "legs": 100},
			want:     ptr.Ref("Consider more leg volume for balance."),
		},
		{name: "balanced", byMuscle: map[string]float64{"chest": 100, "back": 100, "legs": 100}, want: nil},
		{name: "nothing logged", byMuscle: map[string]float64{}, want: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, imbalanceHint(tt.byMuscle)); diff != "" {
				t.Errorf("imbalanceHint() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
