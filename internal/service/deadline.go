package service

import "time"

// AttemptDeadline computes the binding deadline of an attempt: the personal
// duration allowance, clamped to the exam's published end time. A student of
// a late-starting attempt must not run past the exam window.
func AttemptDeadline(startedAt time.Time, durationMinutes int, endsAt *time.Time) time.Time {
	deadline := startedAt.Add(time.Duration(durationMinutes) * time.Minute)
	if endsAt != nil && endsAt.Before(deadline) {
		return *endsAt
	}
	return deadline
}

// RemainingSeconds returns the whole seconds left until the deadline,
// floored at zero.
func RemainingSeconds(deadline, now time.Time) int {
	remaining := deadline.Sub(now)
	if remaining <= 0 {
		return 0
	}
	return int(remaining / time.Second)
}
