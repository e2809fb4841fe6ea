package model

// DailyQuota is the number of AI task-creation attempts a user gets per day.
const DailyQuota = 3

// Usage is the client view of the server-owned AI usage counter.
type Usage struct {
	Attempts  int  `json:"attempts"`
	Remaining int  `json:"remaining"`
	IsBlocked bool `json:"isBlocked"`
}

// DefaultUsage is reported when no counter exists or it cannot be read.
func DefaultUsage() Usage {
	return Usage{Attempts: 0, Remaining: DailyQuota, IsBlocked: false}
}

// UsageFromRecord derives the remaining attempts and the blocked flag.
func UsageFromRecord(attempts int, blocked bool) Usage {
	if attempts < 0 {
		attempts = 0
	}
	remaining := DailyQuota - attempts
	if remaining < 0 {
		remaining = 0
	}
	return Usage{
		Attempts:  attempts,
		Remaining: remaining,
		IsBlocked: blocked || remaining == 0,
	}
}
