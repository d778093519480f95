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

package model

import (
	"errors"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/blnkfinance/dispatch/model"
)

const maxUpcomingCount = 52

// ConsolidateSchedule is the body of POST /schedules/consolidate.
type ConsolidateSchedule struct {
	Date string `json:"date"`
}

// QueueSync is the body of POST /sync/queue. An empty date queues a full sync.
type QueueSync struct {
	Date string `json:"date"`
}

// ConflictQuery holds the query parameters of GET /conflicts.
type ConflictQuery struct {
	CustomerID string `json:"customer_id" form:"customer_id"`
	Date       string `json:"date" form:"date"`
}

// UpcomingQuery holds the query parameters of GET /recurring-orders/:id/upcoming.
type UpcomingQuery struct {
	Count int `json:"count" form:"count"`
}

func validateDate(value interface{}) error {
	s, _ := value.(string)
	if s == "" {
		return nil
	}
	if _, err := model.ParseDate(s); err != nil {
		return errors.New("please format the date as 'YYYY-MM-DD' (e.g., 2024-01-09)")
	}
	return nil
}

func (c *ConsolidateSchedule) ValidateConsolidateSchedule() error {
	c.Date = strings.TrimSpace(c.Date)
	return validation.ValidateStruct(c,
		validation.Field(&c.Date, validation.Required, validation.By(validateDate)),
	)
}

func (c *ConsolidateSchedule) ToDate() time.Time {
	date, _ := model.ParseDate(c.Date)
	return date
}

func (q *QueueSync) ValidateQueueSync() error {
	q.Date = strings.TrimSpace(q.Date)
	return validation.ValidateStruct(q,
		validation.Field(&q.Date, validation.By(validateDate)),
	)
}

func (q *ConflictQuery) ValidateConflictQuery() error {
	q.CustomerID = strings.TrimSpace(q.CustomerID)
	q.Date = strings.TrimSpace(q.Date)
	return validation.ValidateStruct(q,
		validation.Field(&q.CustomerID, validation.Required),
		validation.Field(&q.Date, validation.Required, validation.By(validateDate)),
	)
}

func (q *ConflictQuery) ToDate() time.Time {
	date, _ := model.ParseDate(q.Date)
	return date
}

func (q *UpcomingQuery) ValidateUpcomingQuery() error {
	return validation.ValidateStruct(q,
		validation.Field(&q.Count, validation.Min(0), validation.Max(maxUpcomingCount)),
	)
}
