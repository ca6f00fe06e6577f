package models

import "time"

// ResourceUsage is a point-in-time snapshot of remote-call bookkeeping.
type ResourceUsage struct {
	// CurrentRequests is the number of calls started but not finished.
	CurrentRequests int `json:"current_requests"`
	// TotalRequests counts every call ever started.
	TotalRequests int `json:"total_requests"`
	// RequestsPerMinute is the number of starts in the trailing window.
	RequestsPerMinute int `json:"requests_per_minute"`
	// TokensUsed is the accumulated token count.
	TokensUsed int64 `json:"tokens_used"`
	// EstimatedCost is the accumulated cost in USD.
	EstimatedCost float64 `json:"estimated_cost"`
	// RateLimitReached is set once the window exceeds its ceiling.
	RateLimitReached bool `json:"rate_limit_reached"`
	// ResetTime is when the rate limit is expected to lift.
	ResetTime *time.Time `json:"reset_time,omitempty"`
}
