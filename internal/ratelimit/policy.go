package ratelimit

import "time"

// Policy is a named fixed-window limit preset. Callers pick the policy
// matching the sensitivity of the route: login and OTP-send endpoints use
// stricter policies than read-only lookups.
type Policy struct {
	Name   string
	Limit  int
	Window time.Duration
}

var (
	// PolicyStandard covers routine read traffic.
	PolicyStandard = Policy{Name: "standard", Limit: 100, Window: time.Minute}
	// PolicyAuth covers login and session verification endpoints.
	PolicyAuth = Policy{Name: "auth", Limit: 50, Window: time.Minute}
	// PolicyStrict covers abuse-prone operations such as OTP delivery.
	PolicyStrict = Policy{Name: "strict", Limit: 10, Window: time.Minute}
)

// Result reports the outcome of a rate limit check.
type Result struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetAt    time.Time
	RetryAfter int // seconds; 0 when allowed
}
