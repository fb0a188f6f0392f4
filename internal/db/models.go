package db

// Task priorities.
const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
)

// Task statuses.
const (
	StatusActive    = "active"
	StatusCompleted = "completed"
	StatusArchived  = "archived"
)

// Category groups tasks and sessions and carries the weekly focus
// goal. A zero WeeklyGoalMinutes means no goal is configured.
type Category struct {
	ID                string  `json:"id"`
	Name              string  `json:"name"`
	Color             string  `json:"color"`
	Icon              *string `json:"icon,omitempty"`
	Description       *string `json:"description,omitempty"`
	WeeklyGoalMinutes int     `json:"weekly_goal_minutes"`
	CreatedAt         string  `json:"created_at"`
}

// Task is a unit of work. ActualMinutes accumulates from logged
// sessions associated with the task.
type Task struct {
	ID               string  `json:"id"`
	Title            string  `json:"title"`
	Description      *string `json:"description,omitempty"`
	CategoryID       string  `json:"category_id"`
	EstimatedMinutes *int    `json:"estimated_minutes,omitempty"`
	ActualMinutes    int     `json:"actual_minutes"`
	Priority         string  `json:"priority"`
	Status           string  `json:"status"`
	DueDate          *string `json:"due_date,omitempty"`
	CreatedAt        string  `json:"created_at"`
	CompletedAt      *string `json:"completed_at,omitempty"`
}

// Session is one completed focus-timer run. Records are immutable
// once written; only completed sessions feed analytics.
type Session struct {
	ID                string  `json:"id"`
	TaskID            *string `json:"task_id,omitempty"`
	CategoryID        string  `json:"category_id"`
	StartedAt         string  `json:"started_at"` // RFC3339 UTC
	DurationMinutes   int     `json:"duration_minutes"`
	QualityRating     *int    `json:"quality_rating,omitempty"` // 1..5
	InterruptionCount *int    `json:"interruption_count,omitempty"`
	Completed         bool    `json:"completed"`
}

// ValidStatus reports whether s is a recognized task status.
func ValidStatus(s string) bool {
	return s == StatusActive || s == StatusCompleted ||
		s == StatusArchived
}

// TaskFilter narrows Tasks queries. Zero values match everything.
type TaskFilter struct {
	Status     string
	CategoryID string
}

// DayRecord is one row of the streak_days materialized view: total
// focus minutes and goal outcome for one calendar date.
type DayRecord struct {
	Date      string `json:"date"`
	Minutes   int    `json:"minutes"`
	Met       bool   `json:"met"`
	Recovered bool   `json:"recovered"`
}

// StreakState is the cached streak summary. It is never the source
// of truth: it can always be rebuilt by replaying session history.
type StreakState struct {
	CurrentStreak int      `json:"current_streak"`
	LongestStreak int      `json:"longest_streak"`
	StreakDates   []string `json:"streak_dates"`
	GraceActive   bool     `json:"grace_period_active"`
	GraceEndsAt   *string  `json:"grace_period_ends_at,omitempty"`
	UpdatedAt     string   `json:"updated_at"`
}
