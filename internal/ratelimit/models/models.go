package models

import (
	"strings"
	"time"
)

// EndpointClass groups endpoints that share a per-caller budget.
type EndpointClass string

const (
	// ClassRead covers profile, trusted-people and will reads.
	ClassRead EndpointClass = "read"
	// ClassWrite covers mutations that send no mail.
	ClassWrite EndpointClass = "write"
	// ClassInvite covers adding a trusted person, which may send an invitation.
	ClassInvite EndpointClass = "invite"
)

func (c EndpointClass) IsValid() bool {
	switch c {
	case ClassRead, ClassWrite, ClassInvite:
		return true
	}
	return false
}

// Limit is a sliding-window budget.
type Limit struct {
	Requests int
	Window   time.Duration
}

// Limits maps each class to its budget.
type Limits map[EndpointClass]Limit

// DefaultLimits mirrors the production configuration defaults.
func DefaultLimits() Limits {
	return Limits{
		ClassRead:   {Requests: 300, Window: time.Minute},
		ClassWrite:  {Requests: 60, Window: time.Minute},
		ClassInvite: {Requests: 20, Window: time.Hour},
	}
}

// RateLimitResult is the outcome of one check.
type RateLimitResult struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetAt    time.Time
	RetryAfter int // seconds
}

// NewCallerKey builds the bucket key for a caller and class.
func NewCallerKey(callerEmail string, class EndpointClass) string {
	return "rl:" + string(class) + ":" + strings.ToLower(callerEmail)
}

// RateLimitExceededResponse is the 429 body.
type RateLimitExceededResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
	RetryAfter       int    `json:"retry_after"`
}
