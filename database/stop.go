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
	"encoding/json"
	"errors"
	"time"

	"github.com/blnkfinance/dispatch/internal/apierror"
	"github.com/blnkfinance/dispatch/model"
	"go.opentelemetry.io/otel"
)

// FindStop returns the first stop of a customer on a schedule.
func (d Datasource) FindStop(ctx context.Context, scheduleID, customerID string) (*model.DeliveryStop, error) {
	ctx, span := otel.Tracer("dispatch.datasource").Start(ctx, "Finding delivery stop")
	defer span.End()

	var (
		stop             model.DeliveryStop
		frequency        string
		itemsJSON        []byte
		recurringOrderID sql.NullString
	)
	err := d.Conn.QueryRowContext(ctx, `
		SELECT id, stop_id, master_schedule_id, customer_id, customer_name, customer_address, customer_phone,
			items, frequency, preferred_time, status, is_recurring, recurring_order_id, created_at
		FROM dispatch.delivery_stops
		WHERE master_schedule_id = $1 AND customer_id = $2
		ORDER BY created_at ASC
		LIMIT 1
	`, scheduleID, customerID).Scan(&stop.ID, &stop.StopID, &stop.MasterScheduleID, &stop.CustomerID,
		&stop.CustomerName, &stop.CustomerAddress, &stop.CustomerPhone, &itemsJSON, &frequency,
		&stop.PreferredTime, &stop.Status, &stop.IsRecurring, &recurringOrderID, &stop.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		span.RecordError(err)
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve delivery stop", err)
	}

	stop.Frequency = model.Frequency(frequency)
	stop.RecurringOrderID = recurringOrderID.String
	if len(itemsJSON) > 0 {
		if err := json.Unmarshal(itemsJSON, &stop.Items); err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to unmarshal stop items", err)
		}
	}

	return &stop, nil
}

// CreateStop inserts a delivery stop. The customer and item fields are
// stored as given and never refreshed afterwards.
func (d Datasource) CreateStop(ctx context.Context, stop model.DeliveryStop) (model.DeliveryStop, error) {
	ctx, span := otel.Tracer("dispatch.datasource").Start(ctx, "Creating delivery stop")
	defer span.End()

	itemsJSON, err := json.Marshal(stop.Items)
	if err != nil {
		return model.DeliveryStop{}, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to marshal stop items", err)
	}

	if stop.StopID == "" {
		stop.StopID = model.GenerateUUIDWithSuffix("stp")
	}
	if stop.Status == "" {
		stop.Status = model.StopStatusPending
	}
	stop.CreatedAt = time.Now()

	var recurringOrderID sql.NullString
	if stop.RecurringOrderID != "" {
		recurringOrderID = sql.NullString{String: stop.RecurringOrderID, Valid: true}
	}

	_, err = d.Conn.ExecContext(ctx, `
		INSERT INTO dispatch.delivery_stops (stop_id, master_schedule_id, customer_id, customer_name, customer_address,
			customer_phone, items, frequency, preferred_time, status, is_recurring, recurring_order_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`, stop.StopID, stop.MasterScheduleID, stop.CustomerID, stop.CustomerName, stop.CustomerAddress,
		stop.CustomerPhone, itemsJSON, string(stop.Frequency), stop.PreferredTime, stop.Status, stop.IsRecurring,
		recurringOrderID, stop.CreatedAt)
	if err != nil {
		span.RecordError(err)
		return model.DeliveryStop{}, writeError(err, "Delivery stop already exists for this customer and schedule", "Failed to create delivery stop")
	}

	return stop, nil
}

// CustomerHasDelivery reports whether any schedule on date already carries a
// stop for the customer.
func (d Datasource) CustomerHasDelivery(ctx context.Context, customerID string, date time.Time) (bool, error) {
	ctx, span := otel.Tracer("dispatch.datasource").Start(ctx, "Checking customer delivery")
	defer span.End()

	var exists bool
	err := d.Conn.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1
			FROM dispatch.delivery_stops s
			JOIN dispatch.dispatch_schedules ds ON ds.schedule_id = s.master_schedule_id
			WHERE s.customer_id = $1 AND ds.schedule_date = $2
		)
	`, customerID, model.NormalizeDate(date)).Scan(&exists)
	if err != nil {
		span.RecordError(err)
		return false, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to check customer deliveries", err)
	}

	return exists, nil
}
