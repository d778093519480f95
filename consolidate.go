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

package dispatch

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"

	"github.com/blnkfinance/dispatch/internal/apierror"
	"github.com/blnkfinance/dispatch/model"
)

const maxScheduleCreateAttempts = 3

// ScheduleNumber builds the human readable number of a schedule created for
// date, e.g. DS-20240109-3F9A2C.
func ScheduleNumber(date time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:6])
	return fmt.Sprintf("DS-%s-%s", model.NormalizeDate(date).Format("20060102"), suffix)
}

// ConsolidateSchedule returns the schedule that recurring orders due on date
// are attached to, creating a draft one when the date has none. Repeated
// calls for a date return the same schedule.
func (d *Dispatch) ConsolidateSchedule(ctx context.Context, date time.Time) (model.DispatchSchedule, error) {
	ctx, span := otel.Tracer("dispatch.sync").Start(ctx, "Consolidating schedule")
	defer span.End()

	schedule, _, err := d.consolidate(ctx, date)
	if err != nil {
		span.RecordError(err)
		return model.DispatchSchedule{}, err
	}
	return schedule, nil
}

// consolidate also reports whether the schedule was created by this call.
func (d *Dispatch) consolidate(ctx context.Context, date time.Time) (model.DispatchSchedule, bool, error) {
	date = model.NormalizeDate(date)

	for attempt := 1; attempt <= maxScheduleCreateAttempts; attempt++ {
		existing, err := d.datasource.FindSchedulesForDate(ctx, date)
		if err != nil {
			return model.DispatchSchedule{}, false, errors.Wrapf(err, "failed to look up schedules for %s", model.DateKey(date))
		}
		if len(existing) > 0 {
			return existing[0], false, nil
		}

		created, err := d.datasource.CreateSchedule(ctx, model.DispatchSchedule{
			ScheduleNumber: ScheduleNumber(date),
			ScheduleDate:   date,
			Status:         model.ScheduleStatusDraft,
			IsCanonical:    true,
		})
		if err == nil {
			logrus.WithFields(logrus.Fields{
				"date":            model.DateKey(date),
				"schedule_id":     created.ScheduleID,
				"schedule_number": created.ScheduleNumber,
			}).Info("created dispatch schedule")
			return created, true, nil
		}
		if !apierror.IsConflict(err) {
			return model.DispatchSchedule{}, false, errors.Wrapf(err, "failed to create schedule for %s", model.DateKey(date))
		}

		// another writer won the race or the number collided; re-read
		logrus.WithField("date", model.DateKey(date)).Debug("schedule create conflicted, re-reading")
	}

	return model.DispatchSchedule{}, false, fmt.Errorf("failed to consolidate schedule for %s after %d attempts", model.DateKey(date), maxScheduleCreateAttempts)
}
