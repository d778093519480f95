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

	"github.com/blnkfinance/dispatch"
	"github.com/blnkfinance/dispatch/api/middleware"
	"github.com/blnkfinance/dispatch/config"
)

type Api struct {
	dispatch *dispatch.Dispatch
	router   *gin.Engine
}

func (a Api) Router() *gin.Engine {
	router := a.router
	router.POST("/sync", a.SyncAll)
	router.POST("/sync/queue", a.QueueSync)
	router.GET("/sync/queue", a.QueueStatus)

	router.GET("/schedules/:date", a.GetSchedulesForDate)
	router.POST("/schedules/consolidate", a.ConsolidateSchedule)

	router.GET("/recurring-orders/:id/upcoming", a.GetUpcomingSchedules)

	router.GET("/conflicts", a.CheckConflict)
	return a.router
}

func NewAPI(d *dispatch.Dispatch) *Api {
	gin.SetMode(gin.ReleaseMode)
	conf, err := config.Fetch()
	if err != nil {
		return nil
	}
	r := gin.Default()
	if conf.Server.Secure {
		r.Use(middleware.SecretKeyAuthMiddleware())
	}

	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, "server running...")
	})

	return &Api{dispatch: d, router: r}
}
