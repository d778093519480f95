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
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/hibiken/asynq"

	"github.com/blnkfinance/dispatch/config"
	redis_db "github.com/blnkfinance/dispatch/internal/redis-db"
	"github.com/blnkfinance/dispatch/model"
)

const (
	TaskSyncAll  = "dispatch:sync_all"
	TaskSyncDate = "dispatch:sync_date"

	// identical tasks enqueued within this window are dropped
	uniqueTaskWindow = 5 * time.Minute
)

// Queue hands sync runs to the worker process.
type Queue struct {
	Client    *asynq.Client
	Inspector *asynq.Inspector
	name      string
}

// SyncDatePayload is the payload of a TaskSyncDate task.
type SyncDatePayload struct {
	Date string `json:"date"`
}

// NewQueue initializes a Queue on the configured Redis.
func NewQueue(conf *config.Configuration) (*Queue, error) {
	redisOption, err := redis_db.ParseRedisURL(conf.Redis.Dns, conf.Redis.SkipTLSVerify)
	if err != nil {
		return nil, err
	}

	queueOptions := asynq.RedisClientOpt{Addr: redisOption.Addr, Password: redisOption.Password, DB: redisOption.DB, TLSConfig: redisOption.TLSConfig}
	return &Queue{
		Client:    asynq.NewClient(queueOptions),
		Inspector: asynq.NewInspector(queueOptions),
		name:      conf.Queue.SyncQueue,
	}, nil
}

// Name is the asynq queue sync tasks are placed on.
func (q *Queue) Name() string {
	return q.name
}

// EnqueueSyncAll queues a full sync run. A run already queued within the
// unique window is not queued twice.
func (q *Queue) EnqueueSyncAll(ctx context.Context) error {
	return q.enqueue(ctx, asynq.NewTask(TaskSyncAll, nil), "sync all")
}

// EnqueueSyncDate queues a sync of a single date.
func (q *Queue) EnqueueSyncDate(ctx context.Context, date time.Time) error {
	payload, err := json.Marshal(SyncDatePayload{Date: model.DateKey(date)})
	if err != nil {
		return err
	}
	return q.enqueue(ctx, asynq.NewTask(TaskSyncDate, payload), model.DateKey(date))
}

func (q *Queue) enqueue(ctx context.Context, task *asynq.Task, label string) error {
	info, err := q.Client.EnqueueContext(ctx, task,
		asynq.Queue(q.name),
		asynq.MaxRetry(0),
		asynq.Unique(uniqueTaskWindow),
	)
	if errors.Is(err, asynq.ErrDuplicateTask) {
		log.Printf(" [*] Sync already queued: %s", label)
		return nil
	}
	if err != nil {
		log.Println(err, info)
		return err
	}
	log.Printf(" [*] Successfully enqueued sync: %s", label)
	return nil
}

// Pending reports how many sync tasks wait on the queue. A queue nothing was
// ever enqueued on has none.
func (q *Queue) Pending() (int, error) {
	queues, err := q.Inspector.Queues()
	if err != nil {
		return 0, err
	}
	for _, name := range queues {
		if name != q.name {
			continue
		}
		info, err := q.Inspector.GetQueueInfo(q.name)
		if err != nil {
			return 0, err
		}
		return info.Pending, nil
	}
	return 0, nil
}

// ParseSyncDatePayload decodes the date of a TaskSyncDate task.
func ParseSyncDatePayload(payload []byte) (time.Time, error) {
	var p SyncDatePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return time.Time{}, err
	}
	return model.ParseDate(p.Date)
}

func (q *Queue) Close() error {
	if err := q.Inspector.Close(); err != nil {
		return err
	}
	return q.Client.Close()
}
