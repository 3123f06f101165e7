package reminder

import (
	"time"
)

const (
	// LeadTime is how long before the due date a reminder fires.
	LeadTime = 24 * time.Hour
	// MaxNativeDelay is the longest delay the queue can hold a message for.
	MaxNativeDelay = 900 * time.Second
)

// Kind classifies a Schedule.
type Kind int

const (
	// None means the task is not reminder-eligible (due date passed).
	None Kind = iota
	// Immediate means publish now with Delay.
	Immediate
	// Deferred means the reminder is too far out for the queue; the sweep owns it.
	Deferred
)

func (k Kind) String() string {
	switch k {
	case None:
		return "none"
	case Immediate:
		return "immediate"
	case Deferred:
		return "deferred"
	default:
		return "unknown"
	}
}

// Schedule is the outcome of ComputeSchedule. Delay is set only for Immediate.
type Schedule struct {
	Kind  Kind
	Delay time.Duration
}

// DelaySeconds is Delay in whole seconds.
func (s Schedule) DelaySeconds() int {
	return int(s.Delay / time.Second)
}

// ComputeSchedule decides when a reminder for a task due at dueDate should fire.
// The reminder instant is max(dueDate-LeadTime, now), so it is never negative
// and never after dueDate.
func ComputeSchedule(dueDate, now time.Time) Schedule {
	if !dueDate.After(now) {
		return Schedule{Kind: None}
	}

	reminderTime := dueDate.Add(-LeadTime)
	if reminderTime.Before(now) {
		reminderTime = now
	}

	delaySeconds := int64(reminderTime.Sub(now) / time.Second)
	if delaySeconds > int64(MaxNativeDelay/time.Second) {
		return Schedule{Kind: Deferred}
	}
	if delaySeconds < 0 {
		delaySeconds = 0
	}
	return Schedule{Kind: Immediate, Delay: time.Duration(delaySeconds) * time.Second}
}

// Eligible reports whether the sweep should remind about a task due at dueDate:
// now < dueDate <= now+LeadTime and the reminder window (dueDate-LeadTime) has opened.
func Eligible(dueDate, now time.Time) bool {
	if !dueDate.After(now) {
		return false
	}
	if dueDate.After(now.Add(LeadTime)) {
		return false
	}
	return !dueDate.Add(-LeadTime).After(now)
}
