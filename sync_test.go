package dispatch

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/blnkfinance/dispatch/database/mocks"
	"github.com/blnkfinance/dispatch/internal/traces"
	"github.com/blnkfinance/dispatch/model"
)

func newTestDispatch(store *memoryStore, opts ...Option) *Dispatch {
	base := []Option{
		WithClock(fixedClock(2024, time.January, 3)),
		WithLookahead(3),
		WithNotifier(func(error) {}),
	}
	return New(store, append(base, opts...)...)
}

func TestSyncAll_CreatesSchedulesLinksAndStops(t *testing.T) {
	store := newMemoryStore(
		newOrder("ord_weekly", "cus_1", model.FrequencyWeekly, "tuesday"),
		newOrder("ord_monthly", "cus_2", model.FrequencyMonthly, "15"),
	)
	d := newTestDispatch(store)

	result, err := d.SyncAll(context.Background())
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Empty(t, result.Error)
	assert.Equal(t, 6, result.ProcessedCount)
	assert.Equal(t, 6, result.LinksCreated)
	assert.Equal(t, 6, result.SchedulesCreated)
	assert.Equal(t, 6, result.SchedulesTouched)
	assert.Equal(t, 0, result.SkippedOrders)
	assert.Equal(t, []string{
		"2024-01-09", "2024-01-15", "2024-01-16", "2024-01-23", "2024-02-15", "2024-03-15",
	}, result.Dates)

	schedules, links, stops := store.counts()
	assert.Equal(t, 6, schedules)
	assert.Equal(t, 6, links)
	assert.Equal(t, 6, stops)
}

func TestSyncAll_Idempotent(t *testing.T) {
	store := newMemoryStore(
		newOrder("ord_1", "cus_1", model.FrequencyWeekly, "tuesday"),
		newOrder("ord_2", "cus_2", model.FrequencyBiweekly, "friday"),
		newOrder("ord_3", "cus_3", model.FrequencyMonthly, "last friday"),
	)
	d := newTestDispatch(store)

	first, err := d.SyncAll(context.Background())
	require.NoError(t, err)
	require.True(t, first.Success)
	schedules, links, stops := store.counts()

	second, err := d.SyncAll(context.Background())
	require.NoError(t, err)
	assert.True(t, second.Success)
	assert.Equal(t, 0, second.ProcessedCount)
	assert.Equal(t, 0, second.LinksCreated)
	assert.Equal(t, 0, second.SchedulesCreated)
	assert.Equal(t, first.Dates, second.Dates)

	s2, l2, st2 := store.counts()
	assert.Equal(t, schedules, s2)
	assert.Equal(t, links, l2)
	assert.Equal(t, stops, st2)
}

func TestSyncAll_SharedDateUsesOneSchedule(t *testing.T) {
	store := newMemoryStore(
		newOrder("ord_1", "cus_1", model.FrequencyWeekly, "tuesday"),
		newOrder("ord_2", "cus_2", model.FrequencyWeekly, "Tue"),
	)
	d := newTestDispatch(store)

	result, err := d.SyncAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, result.SchedulesCreated)
	assert.Equal(t, 6, result.ProcessedCount)

	for _, key := range result.Dates {
		date, _ := model.ParseDate(key)
		found, err := store.FindSchedulesForDate(context.Background(), date)
		require.NoError(t, err)
		require.Len(t, found, 1)
		assert.Len(t, store.stopsFor(found[0].ScheduleID), 2)
	}
}

func TestSyncAll_SameCustomerTwoOrdersGetsOneStop(t *testing.T) {
	first := newOrder("ord_1", "cus_1", model.FrequencyWeekly, "tuesday")
	second := newOrder("ord_2", "cus_1", model.FrequencyWeekly, "tuesday")
	store := newMemoryStore(first, second)
	d := newTestDispatch(store)

	result, err := d.SyncAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 6, result.LinksCreated)
	assert.Equal(t, 3, result.ProcessedCount)

	_, links, stops := store.counts()
	assert.Equal(t, 6, links)
	assert.Equal(t, 3, stops)
}

func TestSyncAll_SkipsUnusableOrders(t *testing.T) {
	noCustomer := newOrder("ord_no_customer", "cus_gone", model.FrequencyWeekly, "monday")
	noCustomer.Customer = nil

	store := newMemoryStore(
		newOrder("ord_ok", "cus_1", model.FrequencyWeekly, "tuesday"),
		newOrder("ord_blorp", "cus_2", model.FrequencyMonthly, "first blorp"),
		newOrder("ord_empty", "cus_3", model.FrequencyWeekly, ""),
		newOrder("ord_daily", "cus_4", model.Frequency("daily"), "monday"),
		noCustomer,
	)
	d := newTestDispatch(store)

	result, err := d.SyncAll(context.Background())
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, 3, result.ProcessedCount)
	// three unparseable orders plus the order missing its customer, counted
	// once although it fails on every date
	assert.Equal(t, 4, result.SkippedOrders)

	_, links, stops := store.counts()
	assert.Equal(t, 3, links)
	assert.Equal(t, 3, stops)
}

func TestSyncAll_RecordsSpan(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp, err := traces.NewTracerProvider(context.Background(), "Dispatch", sdktrace.WithSyncer(exporter))
	require.NoError(t, err)
	previous := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(previous)
		_ = tp.Shutdown(context.Background())
	})

	store := newMemoryStore(newOrder("ord_1", "cus_1", model.FrequencyWeekly, "tuesday"))
	_, err = newTestDispatch(store).SyncAll(context.Background())
	require.NoError(t, err)

	var names []string
	for _, span := range exporter.GetSpans() {
		names = append(names, span.Name)
	}
	assert.Contains(t, names, "Syncing recurring orders")
}

func TestSyncAll_IgnoresInactiveOrders(t *testing.T) {
	inactive := newOrder("ord_off", "cus_1", model.FrequencyWeekly, "tuesday")
	inactive.ActiveStatus = false
	store := newMemoryStore(inactive)
	d := newTestDispatch(store)

	result, err := d.SyncAll(context.Background())
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, 0, result.ProcessedCount)
	assert.Empty(t, result.Dates)
}

func TestSyncAll_LoadFailureIsFatal(t *testing.T) {
	store := newMemoryStore()
	store.listErr = errors.New("connection refused")

	var notified error
	d := newTestDispatch(store, WithNotifier(func(err error) { notified = err }))

	result, err := d.SyncAll(context.Background())
	require.Error(t, err)
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "failed to load active recurring orders")
	assert.Contains(t, result.Error, "connection refused")
	assert.Equal(t, 0, result.ProcessedCount)
	assert.Equal(t, err, notified)
}

func TestSyncAll_DateFailureSkipsOnlyThatDate(t *testing.T) {
	store := newMemoryStore(
		newOrder("ord_1", "cus_1", model.FrequencyWeekly, "tuesday"),
		newOrder("ord_2", "cus_2", model.FrequencyWeekly, "tuesday"),
	)
	store.scheduleErrs["2024-01-16"] = errors.New("timeout")
	d := newTestDispatch(store)

	result, err := d.SyncAll(context.Background())
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, []string{"2024-01-09", "2024-01-23"}, result.Dates)
	assert.Equal(t, 4, result.ProcessedCount)
	assert.Equal(t, 2, result.SkippedOrders)
}

func TestSyncAll_OrderFailureSkipsOnlyThatOrder(t *testing.T) {
	store := newMemoryStore(
		newOrder("ord_1", "cus_1", model.FrequencyWeekly, "tuesday"),
		newOrder("ord_2", "cus_2", model.FrequencyWeekly, "tuesday"),
	)
	store.stopErrs["ord_1"] = errors.New("disk full")
	d := newTestDispatch(store)

	result, err := d.SyncAll(context.Background())
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, 3, result.ProcessedCount)
	assert.Equal(t, 1, result.SkippedOrders)
	// the link was created before the stop failed
	assert.Equal(t, 6, result.LinksCreated)
	_, links, stops := store.counts()
	assert.Equal(t, 6, links)
	assert.Equal(t, 3, stops)

	// a later run picks up the missing stops once the store recovers
	delete(store.stopErrs, "ord_1")
	again, err := d.SyncAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, again.ProcessedCount)
	assert.Equal(t, 0, again.LinksCreated)
}

func TestSyncAll_LinksCountedWhenStopFails(t *testing.T) {
	store := newMemoryStore(newOrder("ord_1", "cus_1", model.FrequencyWeekly, "tuesday"))
	store.stopErrs["ord_1"] = errors.New("disk full")
	d := newTestDispatch(store)

	result, err := d.SyncAll(context.Background())
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, 0, result.ProcessedCount)
	assert.Equal(t, 1, result.SkippedOrders)

	_, links, _ := store.counts()
	assert.Equal(t, 3, links)
	assert.Equal(t, links, result.LinksCreated)
}

func TestSyncAll_ReusesExistingSchedule(t *testing.T) {
	store := newMemoryStore(newOrder("ord_1", "cus_1", model.FrequencyWeekly, "tuesday"))
	store.schedules = append(store.schedules, model.DispatchSchedule{
		ScheduleID:     "sch_manual",
		ScheduleNumber: "MANUAL-1",
		ScheduleDate:   time.Date(2024, 1, 9, 0, 0, 0, 0, time.UTC),
		Status:         model.ScheduleStatusSubmitted,
	})
	d := newTestDispatch(store)

	result, err := d.SyncAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, result.SchedulesCreated)
	assert.Len(t, store.stopsFor("sch_manual"), 1)
}

func TestSyncAll_StopSnapshotsOrder(t *testing.T) {
	order := newOrder("ord_1", "cus_1", model.FrequencyWeekly, "tuesday")
	originalName := order.Customer.Name
	originalQuantity := order.Items[0].Quantity
	store := newMemoryStore(order)
	d := newTestDispatch(store, WithLookahead(1))

	_, err := d.SyncAll(context.Background())
	require.NoError(t, err)

	require.Len(t, store.stops, 1)
	stop := store.stops[0]
	assert.Equal(t, originalName, stop.CustomerName)
	assert.Equal(t, order.Customer.Address, stop.CustomerAddress)
	assert.Equal(t, order.Customer.Phone, stop.CustomerPhone)
	assert.Equal(t, order.Items, stop.Items)
	assert.Equal(t, model.FrequencyWeekly, stop.Frequency)
	assert.Equal(t, "morning", stop.PreferredTime)
	assert.Equal(t, "ord_1", stop.RecurringOrderID)
	assert.True(t, stop.IsRecurring)
	assert.Equal(t, model.StopStatusPending, stop.Status)

	// later edits to the order do not reach existing stops
	store.orders[0].Items[0].Quantity = 999
	store.orders[0].Customer.Name = "Renamed"
	_, err = d.SyncAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, originalQuantity, store.stops[0].Items[0].Quantity)
	assert.Equal(t, originalName, store.stops[0].CustomerName)
}

func TestSyncAll_UsesConfiguredLocationForToday(t *testing.T) {
	// 2024-01-08 23:30 UTC is already Tuesday 2024-01-09 in Lagos
	clock := func() time.Time { return time.Date(2024, 1, 8, 23, 30, 0, 0, time.UTC) }
	lagos, err := time.LoadLocation("Africa/Lagos")
	require.NoError(t, err)

	store := newMemoryStore(newOrder("ord_1", "cus_1", model.FrequencyWeekly, "monday"))
	d := newTestDispatch(store, WithClock(clock), WithLocation(lagos), WithLookahead(1))

	result, err := d.SyncAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"2024-01-15"}, result.Dates)
}

func TestSyncAll_WithRedisLocks(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	store := newMemoryStore(newOrder("ord_1", "cus_1", model.FrequencyWeekly, "tuesday"))
	d := newTestDispatch(store, WithRedis(client), WithLockTimeouts(time.Minute, 100*time.Millisecond))

	result, err := d.SyncAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, result.ProcessedCount)

	// locks are released when the run ends
	assert.False(t, mr.Exists(syncLockKey))
	assert.False(t, mr.Exists("dispatch:schedule-date:2024-01-09"))
}

func TestExtendLock_RenewsHeldLock(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	d := newTestDispatch(newMemoryStore(), WithRedis(client), WithLockTimeouts(time.Minute, 100*time.Millisecond))
	locker, err := d.acquireLock(context.Background(), syncLockKey)
	require.NoError(t, err)

	mr.FastForward(50 * time.Second)
	d.extendLock(context.Background(), locker)
	mr.FastForward(30 * time.Second)
	assert.True(t, mr.Exists(syncLockKey))

	d.releaseLock(locker)
	assert.False(t, mr.Exists(syncLockKey))

	// no redis: nothing to hold
	plain := newTestDispatch(newMemoryStore())
	locker, err = plain.acquireLock(context.Background(), syncLockKey)
	require.NoError(t, err)
	assert.Nil(t, locker)
	plain.extendLock(context.Background(), locker)
	plain.releaseLock(locker)
}

func TestSyncAll_SyncLockHeld(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	require.NoError(t, mr.Set(syncLockKey, "another-run"))

	store := newMemoryStore(newOrder("ord_1", "cus_1", model.FrequencyWeekly, "tuesday"))
	d := newTestDispatch(store, WithRedis(client), WithLockTimeouts(time.Minute, 100*time.Millisecond))

	result, err := d.SyncAll(context.Background())
	require.Error(t, err)
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "failed to acquire sync lock")

	schedules, _, _ := store.counts()
	assert.Zero(t, schedules)
}

func TestSyncAll_DateLockHeldSkipsDate(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	require.NoError(t, mr.Set("dispatch:schedule-date:2024-01-16", "another-run"))

	store := newMemoryStore(newOrder("ord_1", "cus_1", model.FrequencyWeekly, "tuesday"))
	d := newTestDispatch(store, WithRedis(client), WithLockTimeouts(time.Minute, 100*time.Millisecond))

	result, err := d.SyncAll(context.Background())
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, []string{"2024-01-09", "2024-01-23"}, result.Dates)
	assert.Equal(t, 1, result.SkippedOrders)
}

func TestSyncAll_ConflictOnCreateIsNoop(t *testing.T) {
	ds := new(mocks.MockDataSource)
	order := newOrder("ord_1", "cus_1", model.FrequencyWeekly, "tuesday")
	date := time.Date(2024, 1, 9, 0, 0, 0, 0, time.UTC)
	schedule := model.DispatchSchedule{ScheduleID: "sch_1", ScheduleDate: date, IsCanonical: true}

	ds.On("ListActiveRecurringOrders", mock.Anything).Return([]model.RecurringOrder{order}, nil)
	ds.On("FindSchedulesForDate", mock.Anything, date).Return([]model.DispatchSchedule{schedule}, nil)
	ds.On("FindLink", mock.Anything, "ord_1", "sch_1").Return(nil, nil)
	ds.On("CreateLink", mock.Anything, mock.Anything).
		Return(model.RecurringOrderScheduleLink{}, conflictErr())
	ds.On("FindStop", mock.Anything, "sch_1", "cus_1").Return(nil, nil)
	ds.On("CreateStop", mock.Anything, mock.Anything).
		Return(model.DeliveryStop{}, conflictErr())

	d := New(ds, WithClock(fixedClock(2024, time.January, 3)), WithLookahead(1), WithNotifier(func(error) {}))

	result, err := d.SyncAll(context.Background())
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, 0, result.ProcessedCount)
	assert.Equal(t, 0, result.LinksCreated)
	assert.Equal(t, 0, result.SkippedOrders)
	ds.AssertExpectations(t)
}
