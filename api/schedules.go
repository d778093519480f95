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

package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	model2 "github.com/blnkfinance/dispatch/api/model"
	"github.com/blnkfinance/dispatch/internal/apierror"
	"github.com/blnkfinance/dispatch/model"
)

// SyncAll runs a full sync inline and returns its result.
func (a Api) SyncAll(c *gin.Context) {
	result, err := a.dispatch.SyncAll(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, result)
		return
	}

	c.JSON(http.StatusOK, result)
}

// QueueSync hands a full or single-date sync to the worker.
func (a Api) QueueSync(c *gin.Context) {
	var req model2.QueueSync
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
			return
		}
	}

	if err := req.ValidateQueueSync(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}

	queue := a.dispatch.Queue()
	if queue == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "job queue is not configured"})
		return
	}

	var err error
	if req.Date == "" {
		err = queue.EnqueueSyncAll(c.Request.Context())
	} else {
		date, _ := model.ParseDate(req.Date)
		err = queue.EnqueueSyncDate(c.Request.Context(), date)
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"status": "queued", "date": req.Date})
}

// QueueStatus reports the sync tasks waiting for a worker.
func (a Api) QueueStatus(c *gin.Context) {
	queue := a.dispatch.Queue()
	if queue == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "job queue is not configured"})
		return
	}

	pending, err := queue.Pending()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"queue": queue.Name(), "pending": pending})
}

// GetSchedulesForDate syncs the recurring orders due on the date and
// returns its schedules.
func (a Api) GetSchedulesForDate(c *gin.Context) {
	date, err := model.ParseDate(c.Param("date"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := a.dispatch.SyncDate(c.Request.Context(), date)
	if err != nil {
		c.JSON(apierror.MapErrorToHTTPStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, result)
}

func (a Api) ConsolidateSchedule(c *gin.Context) {
	var req model2.ConsolidateSchedule
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}

	if err := req.ValidateConsolidateSchedule(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}

	schedule, err := a.dispatch.ConsolidateSchedule(c.Request.Context(), req.ToDate())
	if err != nil {
		c.JSON(apierror.MapErrorToHTTPStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, schedule)
}

func (a Api) GetUpcomingSchedules(c *gin.Context) {
	id, passed := c.Params.Get("id")
	if !passed || id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id is required. pass id in the route /:id"})
		return
	}

	var query model2.UpcomingQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}
	if err := query.ValidateUpcomingQuery(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}

	upcoming, err := a.dispatch.UpcomingSchedules(c.Request.Context(), id, query.Count)
	if err != nil {
		c.JSON(apierror.MapErrorToHTTPStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, upcoming)
}

func (a Api) CheckConflict(c *gin.Context) {
	var query model2.ConflictQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}
	if err := query.ValidateConflictQuery(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}

	hasConflict, err := a.dispatch.HasConflict(c.Request.Context(), query.CustomerID, query.ToDate())
	if err != nil {
		c.JSON(apierror.MapErrorToHTTPStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"customer_id":  query.CustomerID,
		"date":         model.DateKey(query.ToDate()),
		"has_conflict": hasConflict,
	})
}
