package model

// SyncResult is the aggregate outcome of a sync pass. ProcessedCount is the
// number of delivery stops actually created, not the number of orders seen.
// SkippedOrders counts distinct orders that were skipped for at least one
// date, however many of their occurrences were affected.
type SyncResult struct {
	Success          bool     `json:"success"`
	ProcessedCount   int      `json:"processed_count"`
	Error            string   `json:"error,omitempty"`
	SchedulesTouched int      `json:"schedules_touched"`
	SchedulesCreated int      `json:"schedules_created"`
	LinksCreated     int      `json:"links_created"`
	SkippedOrders    int      `json:"skipped_orders"`
	Dates            []string `json:"dates,omitempty"`
}

// DateSyncResult is returned by a single-date sync together with the
// schedules that exist for the date afterwards.
type DateSyncResult struct {
	SyncResult
	Date      string             `json:"date"`
	Schedules []DispatchSchedule `json:"schedules"`
}
