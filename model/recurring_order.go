package model

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Frequency is how often a recurring order is due.
type Frequency string

const (
	FrequencyWeekly   Frequency = "weekly"
	FrequencyBiweekly Frequency = "biweekly"
	FrequencyMonthly  Frequency = "monthly"
)

// ParseFrequency normalizes a stored frequency label. ok is false for
// anything other than weekly, biweekly or monthly.
func ParseFrequency(value string) (Frequency, bool) {
	switch f := Frequency(strings.ToLower(strings.TrimSpace(value))); f {
	case FrequencyWeekly, FrequencyBiweekly, FrequencyMonthly:
		return f, true
	default:
		return f, false
	}
}

// RecurrenceRule is the frequency and day pattern of a recurring order.
// Anchor is the order's creation time and fixes the biweekly phase.
type RecurrenceRule struct {
	Frequency    Frequency `json:"frequency"`
	PreferredDay string    `json:"preferred_day"`
	Anchor       time.Time `json:"anchor"`
}

// OrderItem is one line of what gets delivered. It is copied verbatim onto
// delivery stops.
type OrderItem struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	Quantity  int64           `json:"quantity"`
	Unit      string          `json:"unit,omitempty"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// CustomerSnapshot holds the customer display fields joined onto a recurring
// order when it is loaded.
type CustomerSnapshot struct {
	CustomerID string `json:"customer_id"`
	Name       string `json:"name"`
	Address    string `json:"address"`
	Phone      string `json:"phone,omitempty"`
}

// RecurringOrder is a standing delivery request. It is owned by order
// management; the engine only reads it.
type RecurringOrder struct {
	ID               int64             `json:"-"`
	RecurringOrderID string            `json:"recurring_order_id"`
	CustomerID       string            `json:"customer_id"`
	Frequency        Frequency         `json:"frequency"`
	PreferredDay     string            `json:"preferred_day"`
	PreferredTime    string            `json:"preferred_time,omitempty"`
	Items            []OrderItem       `json:"items"`
	ActiveStatus     bool              `json:"active_status"`
	Customer         *CustomerSnapshot `json:"customer,omitempty"`
	CreatedAt        time.Time         `json:"created_at"`
}

// Rule returns the recurrence rule of the order.
func (o RecurringOrder) Rule() RecurrenceRule {
	return RecurrenceRule{
		Frequency:    o.Frequency,
		PreferredDay: o.PreferredDay,
		Anchor:       o.CreatedAt,
	}
}

// ItemsTotal is the snapshot value of the order's items.
func (o RecurringOrder) ItemsTotal() decimal.Decimal {
	total := decimal.Zero
	for _, item := range o.Items {
		total = total.Add(item.UnitPrice.Mul(decimal.NewFromInt(item.Quantity)))
	}
	return total
}
