package store

import (
	"context"

	"github.com/mochilabs/mochi-analytics/internal/domain"
)

// ScheduleStore defines the interface for reading per-organization digest
// configuration and recording successful digest dispatches.
type ScheduleStore interface {
	// GetEnabledSchedules returns every organization with digest scheduling
	// enabled. The scheduler evaluates due-ness against this set on each tick.
	GetEnabledSchedules(ctx context.Context) ([]*domain.OrganizationSchedule, error)

	// GetSchedule retrieves a single organization's schedule, or
	// ErrScheduleNotFound.
	GetSchedule(ctx context.Context, orgID string) (*domain.OrganizationSchedule, error)

	// MarkDigestSent records localDate (ISO "2006-01-02" in the
	// organization's timezone) as the last date a digest was successfully
	// dispatched. Called only by the daily-digest handler after the send
	// succeeds, never at enqueue time.
	MarkDigestSent(ctx context.Context, orgID string, localDate string) error
}
