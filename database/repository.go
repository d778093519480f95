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
	"errors"
	"time"

	"github.com/blnkfinance/dispatch/model"
)

var errConnectionUnavailable = errors.New("database connection is not available")

// IDataSource is the persistence port used by the dispatch engine.
type IDataSource interface {
	recurringOrder
	schedule
	link
	stop
}

// recurringOrder reads recurring orders. The engine never writes them.
type recurringOrder interface {
	ListActiveRecurringOrders(ctx context.Context) ([]model.RecurringOrder, error)
	GetRecurringOrder(ctx context.Context, recurringOrderID string) (*model.RecurringOrder, error)
}

// schedule reads and creates dispatch schedules.
type schedule interface {
	FindSchedulesForDate(ctx context.Context, date time.Time) ([]model.DispatchSchedule, error)
	CreateSchedule(ctx context.Context, schedule model.DispatchSchedule) (model.DispatchSchedule, error)
}

// link handles recurring order to schedule links. FindLink returns nil, nil
// when no link exists.
type link interface {
	FindLink(ctx context.Context, recurringOrderID, scheduleID string) (*model.RecurringOrderScheduleLink, error)
	CreateLink(ctx context.Context, link model.RecurringOrderScheduleLink) (model.RecurringOrderScheduleLink, error)
}

// stop handles delivery stops. FindStop returns nil, nil when no stop exists.
type stop interface {
	FindStop(ctx context.Context, scheduleID, customerID string) (*model.DeliveryStop, error)
	CreateStop(ctx context.Context, stop model.DeliveryStop) (model.DeliveryStop, error)
	CustomerHasDelivery(ctx context.Context, customerID string, date time.Time) (bool, error)
}
