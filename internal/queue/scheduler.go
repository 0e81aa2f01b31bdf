package queue

import (
	"time"

	"github.com/michaelayoade/isp-framework/internal/queue/domain"
)

// Scheduler computes a job's effective eligibility time from its priority and
// the requested start time. Pure and deterministic.
type Scheduler struct{}

// ScheduleFor returns the time at which a new job becomes claimable.
// An explicit requested time is honored but never moved into the past; with
// no requested time the priority's default delay applies.
func (Scheduler) ScheduleFor(priority domain.Priority, requested *time.Time, now time.Time) time.Time {
	if requested != nil {
		if requested.After(now) {
			return *requested
		}
		return now
	}
	return now.Add(priority.DefaultDelay())
}
