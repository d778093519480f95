package dispatch

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blnkfinance/dispatch/model"
)

func TestSyncDate_DueOrders(t *testing.T) {
	store := newMemoryStore(
		newOrder("ord_weekly", "cus_1", model.FrequencyWeekly, "tuesday"),
		newOrder("ord_first_tue", "cus_2", model.FrequencyMonthly, "second tuesday"),
		newOrder("ord_friday", "cus_3", model.FrequencyWeekly, "friday"),
		newOrder("ord_bad", "cus_4", model.FrequencyMonthly, "first blorp"),
	)
	d := newTestDispatch(store)
	date := time.Date(2024, 1, 9, 0, 0, 0, 0, time.UTC)

	result, err := d.SyncDate(context.Background(), date)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "2024-01-09", result.Date)
	assert.Equal(t, 2, result.ProcessedCount)
	assert.Equal(t, 2, result.LinksCreated)
	assert.Equal(t, 1, result.SchedulesCreated)
	assert.Equal(t, 1, result.SkippedOrders)
	require.Len(t, result.Schedules, 1)
	assert.Len(t, store.stopsFor(result.Schedules[0].ScheduleID), 2)
}

func TestSyncDate_MatchesSyncAll(t *testing.T) {
	store := newMemoryStore(newOrder("ord_1", "cus_1", model.FrequencyWeekly, "tuesday"))
	d := newTestDispatch(store)

	byDate, err := d.SyncDate(context.Background(), time.Date(2024, 1, 16, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, 1, byDate.ProcessedCount)

	all, err := d.SyncAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, all.ProcessedCount)
	assert.Equal(t, 3, all.SchedulesTouched)
	assert.Equal(t, 2, all.SchedulesCreated)

	_, links, stops := store.counts()
	assert.Equal(t, 3, links)
	assert.Equal(t, 3, stops)
}

func TestSyncDate_NothingDue(t *testing.T) {
	store := newMemoryStore(newOrder("ord_1", "cus_1", model.FrequencyWeekly, "tuesday"))
	d := newTestDispatch(store)

	result, err := d.SyncDate(context.Background(), time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Empty(t, result.Schedules)
	assert.Empty(t, result.Dates)

	schedules, _, _ := store.counts()
	assert.Zero(t, schedules)
}

func TestSyncDate_BiweeklyOffWeek(t *testing.T) {
	// created Monday 2024-01-01: Fridays 01-05 and 01-19 are on, 01-12 is off
	store := newMemoryStore(newOrder("ord_1", "cus_1", model.FrequencyBiweekly, "friday"))
	d := newTestDispatch(store)

	off, err := d.SyncDate(context.Background(), time.Date(2024, 1, 12, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, 0, off.ProcessedCount)

	on, err := d.SyncDate(context.Background(), time.Date(2024, 1, 19, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, 1, on.ProcessedCount)
}

func TestSyncDate_Failures(t *testing.T) {
	store := newMemoryStore(newOrder("ord_1", "cus_1", model.FrequencyWeekly, "tuesday"))
	store.listErr = errors.New("connection refused")
	d := newTestDispatch(store)

	result, err := d.SyncDate(context.Background(), time.Date(2024, 1, 9, 0, 0, 0, 0, time.UTC))
	require.Error(t, err)
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "failed to load active recurring orders")

	store.listErr = nil
	store.scheduleErrs["2024-01-09"] = errors.New("timeout")
	result, err = d.SyncDate(context.Background(), time.Date(2024, 1, 9, 0, 0, 0, 0, time.UTC))
	require.Error(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, 1, result.SkippedOrders)
}
