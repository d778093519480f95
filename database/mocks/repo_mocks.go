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

package mocks

import (
	"context"
	"time"

	"github.com/blnkfinance/dispatch/model"
	"github.com/stretchr/testify/mock"
)

// MockDataSource is a mock implementation of the IDataSource interface
type MockDataSource struct {
	mock.Mock
}

// Recurring order methods

func (m *MockDataSource) ListActiveRecurringOrders(ctx context.Context) ([]model.RecurringOrder, error) {
	args := m.Called(ctx)
	orders, _ := args.Get(0).([]model.RecurringOrder)
	return orders, args.Error(1)
}

func (m *MockDataSource) GetRecurringOrder(ctx context.Context, recurringOrderID string) (*model.RecurringOrder, error) {
	args := m.Called(ctx, recurringOrderID)
	order, _ := args.Get(0).(*model.RecurringOrder)
	return order, args.Error(1)
}

// Schedule methods

func (m *MockDataSource) FindSchedulesForDate(ctx context.Context, date time.Time) ([]model.DispatchSchedule, error) {
	args := m.Called(ctx, date)
	schedules, _ := args.Get(0).([]model.DispatchSchedule)
	return schedules, args.Error(1)
}

func (m *MockDataSource) CreateSchedule(ctx context.Context, schedule model.DispatchSchedule) (model.DispatchSchedule, error) {
	args := m.Called(ctx, schedule)
	return args.Get(0).(model.DispatchSchedule), args.Error(1)
}

// Link methods

func (m *MockDataSource) FindLink(ctx context.Context, recurringOrderID, scheduleID string) (*model.RecurringOrderScheduleLink, error) {
	args := m.Called(ctx, recurringOrderID, scheduleID)
	link, _ := args.Get(0).(*model.RecurringOrderScheduleLink)
	return link, args.Error(1)
}

func (m *MockDataSource) CreateLink(ctx context.Context, link model.RecurringOrderScheduleLink) (model.RecurringOrderScheduleLink, error) {
	args := m.Called(ctx, link)
	return args.Get(0).(model.RecurringOrderScheduleLink), args.Error(1)
}

// Stop methods

func (m *MockDataSource) FindStop(ctx context.Context, scheduleID, customerID string) (*model.DeliveryStop, error) {
	args := m.Called(ctx, scheduleID, customerID)
	stop, _ := args.Get(0).(*model.DeliveryStop)
	return stop, args.Error(1)
}

func (m *MockDataSource) CreateStop(ctx context.Context, stop model.DeliveryStop) (model.DeliveryStop, error) {
	args := m.Called(ctx, stop)
	return args.Get(0).(model.DeliveryStop), args.Error(1)
}

func (m *MockDataSource) CustomerHasDelivery(ctx context.Context, customerID string, date time.Time) (bool, error) {
	args := m.Called(ctx, customerID, date)
	return args.Bool(0), args.Error(1)
}
