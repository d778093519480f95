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

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"

	"github.com/blnkfinance/dispatch/model"
	"github.com/blnkfinance/dispatch/recurrence"
)

// UpcomingSchedules lists the next count occurrences of a recurring order
// from today, each with the schedule already consolidated for that date.
// Nothing is created. count <= 0 uses the sync lookahead.
func (d *Dispatch) UpcomingSchedules(ctx context.Context, recurringOrderID string, count int) ([]model.UpcomingSchedule, error) {
	ctx, span := otel.Tracer("dispatch.sync").Start(ctx, "Listing upcoming schedules")
	defer span.End()

	order, err := d.datasource.GetRecurringOrder(ctx, recurringOrderID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	upcoming := []model.UpcomingSchedule{}
	if !order.ActiveStatus {
		logrus.WithField("order_id", recurringOrderID).Debug("recurring order is inactive, no upcoming schedules")
		return upcoming, nil
	}

	if count <= 0 {
		count = d.lookahead
	}

	for _, date := range recurrence.NextOccurrences(d.Today(), order.Rule(), count) {
		schedules, err := d.datasource.FindSchedulesForDate(ctx, date)
		if err != nil {
			span.RecordError(err)
			return nil, err
		}

		entry := model.UpcomingSchedule{Date: date}
		if len(schedules) > 0 {
			schedule := schedules[0]
			entry.Schedule = &schedule
		}
		upcoming = append(upcoming, entry)
	}

	return upcoming, nil
}
