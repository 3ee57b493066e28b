package core

import (
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

var cronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// ParseSchedule accepts five-field cron expressions, six-field expressions
// with a leading seconds field, and descriptors such as @hourly.
func ParseSchedule(expr string) (cron.Schedule, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, fmt.Errorf("empty cron expression")
	}

	schedule, err := cronParser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse cron expression %q: %w", expr, err)
	}
	return schedule, nil
}

// NextDelay returns how long to wait from now until the next fire time plus
// jitter. ok is false when the schedule has no future occurrence.
func NextDelay(schedule cron.Schedule, now time.Time, jitter time.Duration) (delay time.Duration, next time.Time, ok bool) {
	next = schedule.Next(now)
	if next.IsZero() {
		return 0, next, false
	}
	return next.Sub(now) + jitter, next, true
}

// RandomJitter picks a duration uniformly from [0, bound).
func RandomJitter(bound time.Duration) time.Duration {
	if bound <= 0 {
		return 0
	}
	return time.Duration(rand.Int64N(int64(bound)))
}
