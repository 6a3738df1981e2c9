package coach

import (
	"time"

	"github.com/myrjola/petrcoach/internal/errors"
)

var (
	// ErrNotFound is returned when the requested user or entity does not exist.
	ErrNotFound = errors.NewSentinel("not found")
	// ErrInvalidPreference is returned when a plan preference is outside the accepted values.
	ErrInvalidPreference = errors.NewSentinel("invalid preference")
)

// Risk grades dropout and burnout risk.
type Risk string

const (
	RiskLow    Risk = "low"
	RiskMedium Risk = "medium"
	RiskHigh   Risk = "high"
)

// Momentum is the week-over-week volume trend.
type Momentum string

const (
	MomentumRising  Momentum = "rising"
	MomentumStable  Momentum = "stable"
	MomentumFalling Momentum = "falling"
)

// Adherence classifies when the user trains.
type Adherence string

const (
	AdherenceConsistent     Adherence = "consistent"
	AdherenceWeekendWarrior Adherence = "weekend_warrior"
	AdherenceSporadic       Adherence = "sporadic"
)

// Goal is the user's primary training goal.
type Goal string

const (
	GoalStrength   Goal = "strength"
	GoalMuscle     Goal = "muscle"
	GoalWeightLoss Goal = "weight_loss"
	GoalGeneral    Goal = "general"
)

// LifecycleStatus tracks whether a workout is still being logged.
type LifecycleStatus string

const (
	LifecycleDraft     LifecycleStatus = "draft"
	LifecycleFinalized LifecycleStatus = "finalized"
	LifecycleAbandoned LifecycleStatus = "abandoned"
)

// CompletionStatus is the outcome of a finalized workout.
type CompletionStatus string

const (
	CompletionCompleted CompletionStatus = "completed"
	CompletionPartial   CompletionStatus = "partial"
)

// SetType distinguishes working sets, the only sets that count towards volume, from the rest.
type SetType string

const (
	SetWorking SetType = "working"
	SetWarmup  SetType = "warmup"
	SetFailure SetType = "failure"
	SetDrop    SetType = "drop"
	SetAMRAP   SetType = "amrap"
)

// TriggerReason explains why the plan volume changed.
type TriggerReason string

const (
	TriggerBurnout    TriggerReason = "burnout"
	TriggerSlipping   TriggerReason = "slipping"
	TriggerMomentumUp TriggerReason = "momentum_up"
)

// ReportStatus tells whether a weekly report carries a diagnosis.
type ReportStatus string

const (
	ReportGenerated        ReportStatus = "generated"
	ReportInsufficientData ReportStatus = "insufficient_data"
)

// NarrativeSource tells who wrote the weekly narrative.
type NarrativeSource string

const (
	NarrativeLLM      NarrativeSource = "llm"
	NarrativeFallback NarrativeSource = "fallback"
)

// Label is a machine key paired with its human-readable text.
type Label struct {
	Key   string `json:"key"`
	Label string `json:"label"`
}

// User is the read-only view of a user that the coaching engine needs.
type User struct {
	ID          int
	Timezone    string
	WeightKg    *float64
	HeightCm    *float64
	DateOfBirth *time.Time
	Gender      *string
}

// CoachingProfile holds the user's targets. Zero values are replaced with defaults.
type CoachingProfile struct {
	PrimaryGoal          Goal
	TargetDaysPerWeek    int
	TargetSessionMinutes int
}

const (
	defaultTargetDaysPerWeek    = 3
	defaultTargetSessionMinutes = 45
)

// DefaultProfile is used when the user has not set any targets.
func DefaultProfile() CoachingProfile {
	return CoachingProfile{
		PrimaryGoal:          GoalGeneral,
		TargetDaysPerWeek:    defaultTargetDaysPerWeek,
		TargetSessionMinutes: defaultTargetSessionMinutes,
	}
}

func (p CoachingProfile) withDefaults() CoachingProfile {
	d := DefaultProfile()
	if p.PrimaryGoal == "" {
		p.PrimaryGoal = d.PrimaryGoal
	}
	if p.TargetDaysPerWeek == 0 {
		p.TargetDaysPerWeek = d.TargetDaysPerWeek
	}
	if p.TargetSessionMinutes == 0 {
		p.TargetSessionMinutes = d.TargetSessionMinutes
	}
	return p
}

// Workout is a finalized workout with its sets.
type Workout struct {
	ID              int
	StartTime       time.Time
	EndTime         *time.Time
	DurationMinutes *int
	Sets            []Set
}

// Duration returns the wall-clock length of the workout in minutes, or false when it is unknown.
func (w Workout) Duration() (float64, bool) {
	if w.DurationMinutes != nil {
		return float64(*w.DurationMinutes), true
	}
	if w.EndTime != nil && w.EndTime.After(w.StartTime) {
		return w.EndTime.Sub(w.StartTime).Minutes(), true
	}
	return 0, false
}

// Set is one logged set of an exercise.
type Set struct {
	MuscleGroup string
	Type        SetType
	WeightKg    *float64
	Reps        *int
}

// Volume returns weight × reps, treating missing values as zero.
func (s Set) Volume() float64 {
	if s.WeightKg == nil || s.Reps == nil {
		return 0
	}
	return *s.WeightKg * float64(*s.Reps)
}

// MetricsSnapshot is the daily behaviour snapshot of a user.
type MetricsSnapshot struct {
	UserID                int
	MetricsDate           time.Time
	ConsistencyScore      float64
	DropoutRisk           Risk
	BurnoutRisk           Risk
	MomentumTrend         Momentum
	AdherenceType         Adherence
	WorkoutsLast7Days     int
	WorkoutsLast14Days    int
	AvgSessionDuration    *float64
	TotalVolumeLast7Days  float64
	VolumeDeltaVsPrevWeek *float64
	MaxGapDays            *int
	CommonSkipDay         *time.Weekday
	PrimaryMistake        *Label
	WeeklyFocus           *Label
	Reasons               []Label
	ComputedAt            time.Time
}

// TrainingPlan is the single plan a user follows.
type TrainingPlan struct {
	ID                    int
	UserID                int
	DaysPerWeek           int
	SessionDurationTarget int
	SplitType             string
	ProgressionType       string
	AutoAdjustEnabled     bool
	DeloadWeekFrequency   int
	VolumeMultiplier      float64
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// PlanPreferences is a partial update of a TrainingPlan. Nil fields are left untouched.
type PlanPreferences struct {
	DaysPerWeek           *int
	SessionDurationTarget *int
	SplitType             *string
	ProgressionType       *string
	AutoAdjustEnabled     *bool
	DeloadWeekFrequency   *int
}

// AdjustmentSnapshot is the part of the metrics that justified a plan adjustment.
type AdjustmentSnapshot struct {
	ConsistencyScore float64  `json:"consistency_score"`
	BurnoutRisk      Risk     `json:"burnout_risk"`
	MomentumTrend    Momentum `json:"momentum_trend"`
}

// PlanAdjustment records one weekly change of the plan volume.
type PlanAdjustment struct {
	ID                       int
	PlanID                   int
	UserID                   int
	WeekStart                time.Time
	PreviousVolumeMultiplier float64
	NewVolumeMultiplier      float64
	IsDeload                 bool
	TriggerReason            TriggerReason
	ExplanationTitle         string
	ExplanationBullets       []string
	MetricsSnapshot          AdjustmentSnapshot
	CreatedAt                time.Time
}

// Prediction is one projected transformation timeline.
type Prediction struct {
	ID                      int
	UserID                  int
	StrengthGainWeeks       int
	VisibleChangeWeeks      int
	NextMilestone           string
	NextMilestoneWeeks      int
	WeeksDelta              *int
	DeltaReason             *string
	CurrentConsistencyScore *float64
	CurrentWorkoutsPerWeek  *float64
	PrimaryGoal             Goal
	CreatedAt               time.Time
}

// WeeklyReport summarises one completed Monday-start week.
type WeeklyReport struct {
	ID                   int
	UserID               int
	WeekStart            time.Time
	WeekEnd              time.Time
	Status               ReportStatus
	WorkoutsCount        int
	TotalVolumeKg        float64
	VolumeDeltaPct       *float64
	PRsHit               int
	AvgSessionDuration   *float64
	PrimaryMistake       *Label
	WeeklyFocus          *Label
	PositiveSignal       *Label
	PositiveSignalReason *string
	Reasons              []Label
	Narrative            *string
	NarrativeSource      *NarrativeSource
	CreatedAt            time.Time
}
