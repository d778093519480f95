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
	"database/sql"
	"errors"
	"time"

	"github.com/blnkfinance/dispatch/internal/apierror"
	"github.com/blnkfinance/dispatch/model"
	"go.opentelemetry.io/otel"
)

func (d Datasource) FindLink(ctx context.Context, recurringOrderID, scheduleID string) (*model.RecurringOrderScheduleLink, error) {
	ctx, span := otel.Tracer("dispatch.datasource").Start(ctx, "Finding recurring order link")
	defer span.End()

	link := model.RecurringOrderScheduleLink{}
	err := d.Conn.QueryRowContext(ctx, `
		SELECT id, link_id, recurring_order_id, schedule_id, status, modified_from_template, created_at
		FROM dispatch.recurring_order_schedules
		WHERE recurring_order_id = $1 AND schedule_id = $2
	`, recurringOrderID, scheduleID).Scan(&link.ID, &link.LinkID, &link.RecurringOrderID, &link.ScheduleID,
		&link.Status, &link.ModifiedFromTemplate, &link.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		span.RecordError(err)
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve recurring order link", err)
	}

	return &link, nil
}

func (d Datasource) CreateLink(ctx context.Context, link model.RecurringOrderScheduleLink) (model.RecurringOrderScheduleLink, error) {
	ctx, span := otel.Tracer("dispatch.datasource").Start(ctx, "Creating recurring order link")
	defer span.End()

	if link.LinkID == "" {
		link.LinkID = model.GenerateUUIDWithSuffix("lnk")
	}
	if link.Status == "" {
		link.Status = model.LinkStatusActive
	}
	link.CreatedAt = time.Now()

	_, err := d.Conn.ExecContext(ctx, `
		INSERT INTO dispatch.recurring_order_schedules (link_id, recurring_order_id, schedule_id, status, modified_from_template, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, link.LinkID, link.RecurringOrderID, link.ScheduleID, link.Status, link.ModifiedFromTemplate, link.CreatedAt)
	if err != nil {
		span.RecordError(err)
		return model.RecurringOrderScheduleLink{}, writeError(err, "Recurring order is already linked to this schedule", "Failed to create recurring order link")
	}

	return link, nil
}
