package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mochilabs/mochi-analytics/internal/domain"
)

func schedule(tz, at, lastSent string) *domain.OrganizationSchedule {
	return &domain.OrganizationSchedule{
		OrgID:              "org-1",
		Name:               "Acme",
		SlackChannel:       "#daily-updates",
		Timezone:           tz,
		ScheduleTime:       at,
		Enabled:            true,
		LastDigestSentDate: lastSent,
	}
}

func TestIsDue(t *testing.T) {
	// 2026-08-25 14:30 UTC is 10:30 in New York and 23:30 in Tokyo.
	now := time.Date(2026, 8, 25, 14, 30, 0, 0, time.UTC)

	tests := []struct {
		name          string
		sched         *domain.OrganizationSchedule
		wantDue       bool
		wantLocalDate string
	}{
		{
			name:          "due when local time passed and not sent today",
			sched:         schedule("America/New_York", "09:00", ""),
			wantDue:       true,
			wantLocalDate: "2026-08-25",
		},
		{
			name:          "not due before local schedule time",
			sched:         schedule("America/New_York", "11:00", ""),
			wantDue:       false,
			wantLocalDate: "2026-08-25",
		},
		{
			name:          "due exactly at schedule time",
			sched:         schedule("America/New_York", "10:30", ""),
			wantDue:       true,
			wantLocalDate: "2026-08-25",
		},
		{
			name:          "not due twice for the same local date",
			sched:         schedule("America/New_York", "09:00", "2026-08-25"),
			wantDue:       false,
			wantLocalDate: "2026-08-25",
		},
		{
			name:          "missed day self-corrects on a later tick",
			sched:         schedule("America/New_York", "09:00", "2026-08-23"),
			wantDue:       true,
			wantLocalDate: "2026-08-25",
		},
		{
			name:          "timezone shifts the local date",
			sched:         schedule("Asia/Tokyo", "09:00", "2026-08-25"),
			wantDue:       true,
			wantLocalDate: "2026-08-26",
		},
		{
			name:          "empty schedule time is manual only",
			sched:         schedule("America/New_York", "", ""),
			wantDue:       false,
			wantLocalDate: "2026-08-25",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			due, localDate, err := IsDue(now, tt.sched)
			require.NoError(t, err)
			assert.Equal(t, tt.wantDue, due)
			assert.Equal(t, tt.wantLocalDate, localDate)
		})
	}
}

func TestIsDueInvalidTimezone(t *testing.T) {
	now := time.Date(2026, 8, 25, 14, 30, 0, 0, time.UTC)

	_, _, err := IsDue(now, schedule("Not/AZone", "09:00", ""))
	assert.Error(t, err)
}

func TestIsDueInvalidScheduleTime(t *testing.T) {
	now := time.Date(2026, 8, 25, 14, 30, 0, 0, time.UTC)

	_, _, err := IsDue(now, schedule("America/New_York", "25:99", ""))
	assert.Error(t, err)
}

func TestIsDueMidnightBoundary(t *testing.T) {
	// 03:59 UTC on the 26th is 23:59 on the 25th in New York.
	now := time.Date(2026, 8, 26, 3, 59, 0, 0, time.UTC)

	due, localDate, err := IsDue(now, schedule("America/New_York", "09:00", "2026-08-25"))
	require.NoError(t, err)
	assert.False(t, due)
	assert.Equal(t, "2026-08-25", localDate)

	// One hour later the local date rolls over and the guard resets.
	due, localDate, err = IsDue(now.Add(time.Hour), schedule("America/New_York", "09:00", "2026-08-25"))
	require.NoError(t, err)
	assert.False(t, due, "new local day but before schedule time")
	assert.Equal(t, "2026-08-26", localDate)
}
