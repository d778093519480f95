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

	"github.com/blnkfinance/dispatch/internal/apierror"
	"github.com/blnkfinance/dispatch/model"
	"go.opentelemetry.io/otel"
)

const recurringOrderColumns = `
	ro.id, ro.recurring_order_id, ro.customer_id, ro.frequency, ro.preferred_day,
	ro.preferred_time, ro.items, ro.active_status, ro.created_at,
	c.customer_id, c.name, c.address, c.phone`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecurringOrder(row rowScanner) (model.RecurringOrder, error) {
	var (
		order     model.RecurringOrder
		frequency string
		itemsJSON []byte
		customer  struct {
			id, name, address, phone sql.NullString
		}
	)

	err := row.Scan(
		&order.ID, &order.RecurringOrderID, &order.CustomerID, &frequency, &order.PreferredDay,
		&order.PreferredTime, &itemsJSON, &order.ActiveStatus, &order.CreatedAt,
		&customer.id, &customer.name, &customer.address, &customer.phone,
	)
	if err != nil {
		return model.RecurringOrder{}, err
	}

	order.Frequency = model.Frequency(frequency)
	if len(itemsJSON) > 0 {
		if err := json.Unmarshal(itemsJSON, &order.Items); err != nil {
			return model.RecurringOrder{}, err
		}
	}

	// LEFT JOIN: a missing customer row leaves the snapshot nil.
	if customer.id.Valid {
		order.Customer = &model.CustomerSnapshot{
			CustomerID: customer.id.String,
			Name:       customer.name.String,
			Address:    customer.address.String,
			Phone:      customer.phone.String,
		}
	}
	return order, nil
}

// ListActiveRecurringOrders returns every active recurring order with its
// customer display fields.
func (d Datasource) ListActiveRecurringOrders(ctx context.Context) ([]model.RecurringOrder, error) {
	ctx, span := otel.Tracer("dispatch.datasource").Start(ctx, "Listing active recurring orders")
	defer span.End()

	rows, err := d.Conn.QueryContext(ctx, `
		SELECT `+recurringOrderColumns+`
		FROM dispatch.recurring_orders ro
		LEFT JOIN dispatch.customers c ON c.customer_id = ro.customer_id
		WHERE ro.active_status = TRUE
		ORDER BY ro.created_at ASC, ro.recurring_order_id ASC
	`)
	if err != nil {
		span.RecordError(err)
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve recurring orders", err)
	}
	defer rows.Close()

	orders := []model.RecurringOrder{}
	for rows.Next() {
		order, err := scanRecurringOrder(rows)
		if err != nil {
			span.RecordError(err)
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan recurring order", err)
		}
		orders = append(orders, order)
	}

	if err = rows.Err(); err != nil {
		span.RecordError(err)
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Error occurred while iterating over recurring orders", err)
	}

	return orders, nil
}

func (d Datasource) GetRecurringOrder(ctx context.Context, recurringOrderID string) (*model.RecurringOrder, error) {
	ctx, span := otel.Tracer("dispatch.datasource").Start(ctx, "Fetching recurring order")
	defer span.End()

	row := d.Conn.QueryRowContext(ctx, `
		SELECT `+recurringOrderColumns+`
		FROM dispatch.recurring_orders ro
		LEFT JOIN dispatch.customers c ON c.customer_id = ro.customer_id
		WHERE ro.recurring_order_id = $1
	`, recurringOrderID)

	order, err := scanRecurringOrder(row)
	if err != nil {
		span.RecordError(err)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apierror.NewAPIError(apierror.ErrNotFound, "Recurring order not found", err)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve recurring order", err)
	}

	return &order, nil
}
