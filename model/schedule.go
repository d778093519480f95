package model

import "time"

const (
	ScheduleStatusDraft     = "draft"
	ScheduleStatusSubmitted = "submitted"

	LinkStatusActive = "active"

	StopStatusPending = "pending"
)

// DispatchSchedule groups the delivery stops of one calendar date.
// Canonical schedules are the consolidation target created by the engine;
// at most one canonical schedule exists per date.
type DispatchSchedule struct {
	ID             int64     `json:"-"`
	ScheduleID     string    `json:"schedule_id"`
	ScheduleNumber string    `json:"schedule_number"`
	ScheduleDate   time.Time `json:"schedule_date"`
	Status         string    `json:"status"`
	IsCanonical    bool      `json:"is_canonical"`
	CreatedAt      time.Time `json:"created_at"`
}

// RecurringOrderScheduleLink ties a recurring order to one schedule
// occurrence. At most one link exists per (RecurringOrderID, ScheduleID).
type RecurringOrderScheduleLink struct {
	ID                   int64     `json:"-"`
	LinkID               string    `json:"link_id"`
	RecurringOrderID     string    `json:"recurring_order_id"`
	ScheduleID           string    `json:"schedule_id"`
	Status               string    `json:"status"`
	ModifiedFromTemplate bool      `json:"modified_from_template"`
	CreatedAt            time.Time `json:"created_at"`
}

// DeliveryStop is one customer delivery within a schedule. Customer and
// item fields are snapshots taken when the stop is created and are never
// refreshed afterwards.
type DeliveryStop struct {
	ID               int64       `json:"-"`
	StopID           string      `json:"stop_id"`
	MasterScheduleID string      `json:"master_schedule_id"`
	CustomerID       string      `json:"customer_id"`
	CustomerName     string      `json:"customer_name"`
	CustomerAddress  string      `json:"customer_address"`
	CustomerPhone    string      `json:"customer_phone,omitempty"`
	Items            []OrderItem `json:"items"`
	Frequency        Frequency   `json:"frequency"`
	PreferredTime    string      `json:"preferred_time,omitempty"`
	Status           string      `json:"status"`
	IsRecurring      bool        `json:"is_recurring"`
	RecurringOrderID string      `json:"recurring_order_id,omitempty"`
	CreatedAt        time.Time   `json:"created_at"`
}

// UpcomingSchedule is one future occurrence of a recurring order and the
// canonical schedule already consolidated for that date, if any.
type UpcomingSchedule struct {
	Date     time.Time         `json:"date"`
	Schedule *DispatchSchedule `json:"schedule,omitempty"`
}
