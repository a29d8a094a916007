package domain

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Common validation errors for OrganizationSchedule
var (
	ErrEmptyOrganizationID = errors.New("organization ID cannot be empty")
	ErrInvalidTimezone     = errors.New("invalid IANA timezone")
	ErrInvalidScheduleTime = errors.New("schedule time must be in HH:MM format")
)

// OrganizationSchedule is the per-organization digest configuration consumed
// by the scheduler. Timezone is an IANA zone name and ScheduleTime the local
// wall-clock time ("HH:MM") at which the digest should fire. An empty
// ScheduleTime means the organization is manual-only and is never due.
//
// LastDigestSentDate is the calendar date (ISO "2006-01-02", in the
// organization's local timezone) on which a digest was last successfully
// dispatched. It is the sole idempotence guard for the scheduler and is
// written only after the digest job completes.
type OrganizationSchedule struct {
	OrgID              string `json:"org_id"`
	Name               string `json:"name"`
	SlackChannel       string `json:"slack_channel"`
	Timezone           string `json:"timezone"`
	ScheduleTime       string `json:"schedule_time"`
	Enabled            bool   `json:"enabled"`
	LastDigestSentDate string `json:"last_digest_sent_date,omitempty"`
}

// Validate checks if the schedule has valid data.
func (s *OrganizationSchedule) Validate() error {
	if s.OrgID == "" {
		return ErrEmptyOrganizationID
	}

	if _, err := s.Location(); err != nil {
		return err
	}

	if s.ScheduleTime != "" {
		if _, _, err := ParseScheduleTime(s.ScheduleTime); err != nil {
			return err
		}
	}

	return nil
}

// Location resolves the schedule's IANA timezone.
func (s *OrganizationSchedule) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTimezone, s.Timezone)
	}
	return loc, nil
}

// ParseScheduleTime parses a local "HH:MM" schedule time into its hour and
// minute components.
func ParseScheduleTime(value string) (hour, minute int, err error) {
	parts := strings.Split(value, ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidScheduleTime, value)
	}

	hour, err = strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidScheduleTime, value)
	}

	minute, err = strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidScheduleTime, value)
	}

	return hour, minute, nil
}
