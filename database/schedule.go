/*
Copyright 2024 Blnk Finance Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package database

import (
	"context"
	"time"

	"github.com/blnkfinance/dispatch/internal/apierror"
	"github.com/blnkfinance/dispatch/model"
	"go.opentelemetry.io/otel"
)

// FindSchedulesForDate returns the schedules of a calendar date, oldest
// first. Canonical schedules sort ahead of any others.
func (d Datasource) FindSchedulesForDate(ctx context.Context, date time.Time) ([]model.DispatchSchedule, error) {
	ctx, span := otel.Tracer("dispatch.datasource").Start(ctx, "Finding schedules for date")
	defer span.End()

	rows, err := d.Conn.QueryContext(ctx, `
		SELECT id, schedule_id, schedule_number, schedule_date, status, is_canonical, created_at
		FROM dispatch.dispatch_schedules
		WHERE schedule_date = $1
		ORDER BY is_canonical DESC, created_at ASC, schedule_id ASC
	`, model.NormalizeDate(date))
	if err != nil {
		span.RecordError(err)
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve schedules", err)
	}
	defer rows.Close()

	schedules := []model.DispatchSchedule{}
	for rows.Next() {
		schedule := model.DispatchSchedule{}
		err = rows.Scan(&schedule.ID, &schedule.ScheduleID, &schedule.ScheduleNumber, &schedule.ScheduleDate,
			&schedule.Status, &schedule.IsCanonical, &schedule.CreatedAt)
		if err != nil {
			span.RecordError(err)
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan schedule data", err)
		}
		schedule.ScheduleDate = model.NormalizeDate(schedule.ScheduleDate)
		schedules = append(schedules, schedule)
	}

	if err = rows.Err(); err != nil {
		span.RecordError(err)
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Error occurred while iterating over schedules", err)
	}

	return schedules, nil
}

// CreateSchedule inserts a schedule. A second canonical schedule for the
// same date is rejected with ErrConflict.
func (d Datasource) CreateSchedule(ctx context.Context, schedule model.DispatchSchedule) (model.DispatchSchedule, error) {
	ctx, span := otel.Tracer("dispatch.datasource").Start(ctx, "Creating schedule")
	defer span.End()

	if schedule.ScheduleID == "" {
		schedule.ScheduleID = model.GenerateUUIDWithSuffix("sch")
	}
	if schedule.Status == "" {
		schedule.Status = model.ScheduleStatusDraft
	}
	schedule.ScheduleDate = model.NormalizeDate(schedule.ScheduleDate)
	schedule.CreatedAt = time.Now()

	_, err := d.Conn.ExecContext(ctx, `
		INSERT INTO dispatch.dispatch_schedules (schedule_id, schedule_number, schedule_date, status, is_canonical, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, schedule.ScheduleID, schedule.ScheduleNumber, schedule.ScheduleDate, schedule.Status, schedule.IsCanonical, schedule.CreatedAt)
	if err != nil {
		span.RecordError(err)
		return model.DispatchSchedule{}, writeError(err, "Schedule for this date already exists", "Failed to create schedule")
	}

	return schedule, nil
}
