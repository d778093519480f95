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
	"sort"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/blnkfinance/dispatch/internal/apierror"
	redlock "github.com/blnkfinance/dispatch/internal/lock"
	"github.com/blnkfinance/dispatch/model"
	"github.com/blnkfinance/dispatch/recurrence"
)

const (
	syncLockKey         = "dispatch:sync"
	scheduleDateLockKey = "dispatch:schedule-date:%s"
)

// dateOutcome is what processing one date group produced.
type dateOutcome struct {
	scheduleCreated bool
	linksCreated    int
	stopsCreated    int
	skipped         []model.RecurringOrder
}

func (o dateOutcome) applyTo(result *model.SyncResult, key string) {
	result.Dates = append(result.Dates, key)
	result.SchedulesTouched++
	if o.scheduleCreated {
		result.SchedulesCreated++
	}
	result.LinksCreated += o.linksCreated
	result.ProcessedCount += o.stopsCreated
}

// skipSet collects the ids of orders skipped during a pass. An order due on
// several dates counts once.
type skipSet map[string]struct{}

func (s skipSet) add(orders ...model.RecurringOrder) {
	for _, order := range orders {
		s[order.RecurringOrderID] = struct{}{}
	}
}

// SyncAll attaches the next occurrences of every active recurring order to
// the canonical schedule of each due date, creating missing schedules, links
// and stops exactly once. Dates and orders are processed one at a time.
//
// Only a failure to load the active orders fails the run on its own terms;
// per-order and per-date failures are logged and counted as skips. When Redis
// is configured the run also fails if the sync lock cannot be taken within
// the lock wait, since another run is then in progress.
// The returned error is non-nil exactly when Success is false.
func (d *Dispatch) SyncAll(ctx context.Context) (model.SyncResult, error) {
	ctx, span := otel.Tracer("dispatch.sync").Start(ctx, "Syncing recurring orders")
	defer span.End()

	result := model.SyncResult{Dates: []string{}}

	syncLock, err := d.acquireLock(ctx, syncLockKey)
	if err != nil {
		return d.fail(result, errors.Wrap(err, "failed to acquire sync lock"))
	}
	defer d.releaseLock(syncLock)

	orders, err := d.datasource.ListActiveRecurringOrders(ctx)
	if err != nil {
		span.RecordError(err)
		return d.fail(result, errors.Wrap(err, "failed to load active recurring orders"))
	}

	today := d.Today()
	skipped := skipSet{}
	groups := make(map[string][]model.RecurringOrder)
	for _, order := range orders {
		if !hasUsablePattern(order) {
			skipped.add(order)
			continue
		}

		dates := recurrence.NextOccurrences(today, order.Rule(), d.lookahead)
		if len(dates) == 0 {
			logrus.WithField("order_id", order.RecurringOrderID).Warn("recurring order has no upcoming occurrences, skipping")
			skipped.add(order)
			continue
		}
		for _, date := range dates {
			key := model.DateKey(date)
			groups[key] = append(groups[key], order)
		}
	}

	keys := make([]string, 0, len(groups))
	for key := range groups {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		d.extendLock(ctx, syncLock)
		date, _ := model.ParseDate(key)
		outcome, err := d.syncDateGroup(ctx, date, groups[key])
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"date":   key,
				"orders": len(groups[key]),
			}).Errorf("skipping date: %v", err)
			skipped.add(groups[key]...)
			continue
		}
		outcome.applyTo(&result, key)
		skipped.add(outcome.skipped...)
	}

	result.SkippedOrders = len(skipped)
	result.Success = true
	span.SetAttributes(
		attribute.Int("dispatch.orders", len(orders)),
		attribute.Int("dispatch.dates", len(result.Dates)),
		attribute.Int("dispatch.stops_created", result.ProcessedCount),
	)
	logrus.WithFields(logrus.Fields{
		"orders":        len(orders),
		"dates":         len(result.Dates),
		"links_created": result.LinksCreated,
		"stops_created": result.ProcessedCount,
		"skipped":       result.SkippedOrders,
	}).Info("recurring order sync completed")

	return result, nil
}

// SyncDate applies the sync to a single date: orders due on date are linked
// to its canonical schedule with the same rules as SyncAll. When no order is
// due the existing schedules are returned untouched.
func (d *Dispatch) SyncDate(ctx context.Context, date time.Time) (model.DateSyncResult, error) {
	ctx, span := otel.Tracer("dispatch.sync").Start(ctx, "Syncing recurring orders for date")
	defer span.End()

	date = model.NormalizeDate(date)
	key := model.DateKey(date)
	result := model.DateSyncResult{Date: key, SyncResult: model.SyncResult{Dates: []string{}}}

	orders, err := d.datasource.ListActiveRecurringOrders(ctx)
	if err != nil {
		span.RecordError(err)
		result.SyncResult, err = d.fail(result.SyncResult, errors.Wrap(err, "failed to load active recurring orders"))
		return result, err
	}

	skipped := skipSet{}
	var due []model.RecurringOrder
	for _, order := range orders {
		if !hasUsablePattern(order) {
			skipped.add(order)
			continue
		}
		if recurrence.IsOccurrence(date, order.Rule()) {
			due = append(due, order)
		}
	}

	if len(due) > 0 {
		outcome, err := d.syncDateGroup(ctx, date, due)
		if err != nil {
			span.RecordError(err)
			skipped.add(due...)
			result.SkippedOrders = len(skipped)
			result.Success = false
			result.Error = err.Error()
			return result, err
		}
		outcome.applyTo(&result.SyncResult, key)
		skipped.add(outcome.skipped...)
	}
	result.SkippedOrders = len(skipped)

	schedules, err := d.datasource.FindSchedulesForDate(ctx, date)
	if err != nil {
		span.RecordError(err)
		result.Success = false
		result.Error = err.Error()
		return result, err
	}

	result.Schedules = schedules
	result.Success = true
	return result, nil
}

// syncDateGroup consolidates the schedule of date and attaches each order to
// it while holding the date lock.
func (d *Dispatch) syncDateGroup(ctx context.Context, date time.Time, orders []model.RecurringOrder) (dateOutcome, error) {
	key := model.DateKey(date)
	dateLock, err := d.acquireLock(ctx, fmt.Sprintf(scheduleDateLockKey, key))
	if err != nil {
		return dateOutcome{}, errors.Wrapf(err, "failed to lock schedule date %s", key)
	}
	defer d.releaseLock(dateLock)

	schedule, created, err := d.consolidate(ctx, date)
	if err != nil {
		return dateOutcome{}, err
	}

	outcome := dateOutcome{scheduleCreated: created}
	for _, order := range orders {
		linkCreated, stopCreated, err := d.attachOrder(ctx, schedule, order)
		// a link written before the stop failed is still in the store
		if linkCreated {
			outcome.linksCreated++
		}
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"order_id":    order.RecurringOrderID,
				"schedule_id": schedule.ScheduleID,
				"date":        key,
			}).Warnf("skipping recurring order: %v", err)
			outcome.skipped = append(outcome.skipped, order)
			continue
		}
		if stopCreated {
			outcome.stopsCreated++
		}
	}
	return outcome, nil
}

// attachOrder makes sure order has a link to schedule and its customer has a
// stop on it.
func (d *Dispatch) attachOrder(ctx context.Context, schedule model.DispatchSchedule, order model.RecurringOrder) (linkCreated, stopCreated bool, err error) {
	if order.Customer == nil || order.Customer.CustomerID == "" {
		return false, false, fmt.Errorf("customer %s not found for recurring order", order.CustomerID)
	}

	linkCreated, err = d.ensureLink(ctx, order.RecurringOrderID, schedule.ScheduleID)
	if err != nil {
		return false, false, errors.Wrap(err, "failed to link recurring order")
	}

	stopCreated, err = d.ensureStop(ctx, schedule.ScheduleID, order)
	if err != nil {
		return linkCreated, false, errors.Wrap(err, "failed to create delivery stop")
	}
	return linkCreated, stopCreated, nil
}

func (d *Dispatch) ensureLink(ctx context.Context, recurringOrderID, scheduleID string) (bool, error) {
	existing, err := d.datasource.FindLink(ctx, recurringOrderID, scheduleID)
	if err != nil {
		return false, err
	}
	if existing != nil {
		return false, nil
	}

	_, err = d.datasource.CreateLink(ctx, model.RecurringOrderScheduleLink{
		RecurringOrderID: recurringOrderID,
		ScheduleID:       scheduleID,
		Status:           model.LinkStatusActive,
	})
	if apierror.IsConflict(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (d *Dispatch) ensureStop(ctx context.Context, scheduleID string, order model.RecurringOrder) (bool, error) {
	existing, err := d.datasource.FindStop(ctx, scheduleID, order.CustomerID)
	if err != nil {
		return false, err
	}
	if existing != nil {
		return false, nil
	}

	_, err = d.datasource.CreateStop(ctx, newRecurringStop(scheduleID, order))
	if apierror.IsConflict(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// newRecurringStop snapshots the order's items and customer display fields.
func newRecurringStop(scheduleID string, order model.RecurringOrder) model.DeliveryStop {
	items := make([]model.OrderItem, len(order.Items))
	copy(items, order.Items)

	return model.DeliveryStop{
		MasterScheduleID: scheduleID,
		CustomerID:       order.CustomerID,
		CustomerName:     order.Customer.Name,
		CustomerAddress:  order.Customer.Address,
		CustomerPhone:    order.Customer.Phone,
		Items:            items,
		Frequency:        order.Frequency,
		PreferredTime:    order.PreferredTime,
		Status:           model.StopStatusPending,
		IsRecurring:      true,
		RecurringOrderID: order.RecurringOrderID,
	}
}

func hasUsablePattern(order model.RecurringOrder) bool {
	frequency, ok := model.ParseFrequency(string(order.Frequency))
	if !ok {
		logrus.WithFields(logrus.Fields{
			"order_id":  order.RecurringOrderID,
			"frequency": order.Frequency,
		}).Warn("recurring order has an unknown frequency, skipping")
		return false
	}
	if _, err := recurrence.ParsePattern(frequency, order.PreferredDay); err != nil {
		logrus.WithFields(logrus.Fields{
			"order_id":      order.RecurringOrderID,
			"preferred_day": order.PreferredDay,
		}).Warnf("recurring order has no usable preferred day, skipping: %v", err)
		return false
	}
	return true
}

// fail marks result as failed and reports err.
func (d *Dispatch) fail(result model.SyncResult, err error) (model.SyncResult, error) {
	result.Success = false
	result.Error = err.Error()
	if d.notify != nil {
		d.notify(err)
	}
	return result, err
}

// acquireLock takes key for the configured lock timeout. Without Redis there
// is nothing to serialize against and the returned locker is nil.
func (d *Dispatch) acquireLock(ctx context.Context, key string) (*redlock.Locker, error) {
	if d.redis == nil {
		return nil, nil
	}

	locker := redlock.NewLocker(d.redis, key, model.GenerateUUIDWithSuffix("loc"))
	if err := locker.WaitLock(ctx, d.lockTimeout, d.lockWait); err != nil {
		return nil, err
	}
	return locker, nil
}

// extendLock pushes the expiry of a held lock a full lock timeout ahead.
func (d *Dispatch) extendLock(ctx context.Context, locker *redlock.Locker) {
	if locker == nil {
		return
	}
	if err := locker.ExtendLock(ctx, d.lockTimeout); err != nil {
		logrus.WithField("key", locker.Key()).Warnf("failed to extend lock: %v", err)
	}
}

func (d *Dispatch) releaseLock(locker *redlock.Locker) {
	if locker == nil {
		return
	}
	if err := locker.Unlock(context.Background()); err != nil {
		logrus.WithField("key", locker.Key()).Warnf("failed to release lock: %v", err)
	}
}
