package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mochilabs/mochi-analytics/internal/domain"
	"github.com/mochilabs/mochi-analytics/internal/platform/logger"
	"github.com/mochilabs/mochi-analytics/internal/store"
)

// ScheduleStore implements the store.ScheduleStore interface using PostgreSQL.
type ScheduleStore struct {
	db store.DBTX
}

// NewScheduleStore creates a new ScheduleStore.
func NewScheduleStore(db store.DBTX) *ScheduleStore {
	return &ScheduleStore{db: db}
}

// GetEnabledSchedules returns every organization with digest scheduling enabled.
func (s *ScheduleStore) GetEnabledSchedules(ctx context.Context) ([]*domain.OrganizationSchedule, error) {
	query := `
		SELECT org_id, name, slack_channel, timezone, schedule_time, enabled, last_digest_sent_date
		FROM organization_schedules
		WHERE enabled = TRUE
		ORDER BY org_id
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query organization schedules: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var schedules []*domain.OrganizationSchedule
	for rows.Next() {
		sched, err := scanSchedule(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan schedule row: %w", err)
		}
		schedules = append(schedules, sched)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating schedule rows: %w", err)
	}

	return schedules, nil
}

// GetSchedule retrieves a single organization's schedule.
func (s *ScheduleStore) GetSchedule(ctx context.Context, orgID string) (*domain.OrganizationSchedule, error) {
	query := `
		SELECT org_id, name, slack_channel, timezone, schedule_time, enabled, last_digest_sent_date
		FROM organization_schedules
		WHERE org_id = $1
	`

	sched, err := scanSchedule(s.db.QueryRowContext(ctx, query, orgID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrScheduleNotFound
		}
		return nil, fmt.Errorf("failed to get organization schedule: %w", err)
	}

	return sched, nil
}

// MarkDigestSent records the local calendar date on which a digest was
// successfully dispatched for the organization.
func (s *ScheduleStore) MarkDigestSent(ctx context.Context, orgID string, localDate string) error {
	log := logger.FromContext(ctx)

	query := `
		UPDATE organization_schedules
		SET last_digest_sent_date = $1, updated_at = $2
		WHERE org_id = $3
	`

	result, err := s.db.ExecContext(ctx, query, localDate, time.Now().UTC(), orgID)
	if err != nil {
		log.Error("failed to record digest date",
			"org_id", orgID,
			"local_date", localDate,
			"error", err)
		return fmt.Errorf("failed to record digest date: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return store.ErrScheduleNotFound
	}

	return nil
}

// scanSchedule scans one schedule row into a domain.OrganizationSchedule.
func scanSchedule(row rowScanner) (*domain.OrganizationSchedule, error) {
	var (
		sched    domain.OrganizationSchedule
		lastSent sql.NullString
	)

	if err := row.Scan(
		&sched.OrgID,
		&sched.Name,
		&sched.SlackChannel,
		&sched.Timezone,
		&sched.ScheduleTime,
		&sched.Enabled,
		&lastSent,
	); err != nil {
		return nil, err
	}

	sched.LastDigestSentDate = lastSent.String
	return &sched, nil
}
