// Package scheduler decides, per organization, whether a timezone-local
// daily digest is due and enqueues digest jobs on a recurring tick.
package scheduler

import (
	"time"

	"github.com/mochilabs/mochi-analytics/internal/domain"
)

// localDateLayout is the ISO calendar-date layout used for due-date math.
const localDateLayout = "2006-01-02"

// IsDue reports whether a digest is due for the schedule at the instant now,
// along with the organization's current local date. An organization is due
// iff its local time-of-day has passed the schedule time for the current
// local date AND no digest has been recorded for that date yet. The second
// condition is the idempotence guard: it keeps repeated ticks within the
// same local day from firing twice, and it makes a missed day self-correct
// on the next tick (the date was never recorded, so the organization is
// still due).
//
// Pure function of its inputs so tests can inject arbitrary instants.
func IsDue(now time.Time, sched *domain.OrganizationSchedule) (bool, string, error) {
	loc, err := sched.Location()
	if err != nil {
		return false, "", err
	}

	local := now.In(loc)
	localDate := local.Format(localDateLayout)

	// Empty schedule time means manual-only.
	if sched.ScheduleTime == "" {
		return false, localDate, nil
	}

	hour, minute, err := domain.ParseScheduleTime(sched.ScheduleTime)
	if err != nil {
		return false, localDate, err
	}

	firesAt := time.Date(local.Year(), local.Month(), local.Day(), hour, minute, 0, 0, loc)
	if local.Before(firesAt) {
		return false, localDate, nil
	}

	return sched.LastDigestSentDate != localDate, localDate, nil
}
