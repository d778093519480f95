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
	"embed"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/blnkfinance/dispatch/config"
	"github.com/blnkfinance/dispatch/database"
	"github.com/blnkfinance/dispatch/internal/notification"
	redis_db "github.com/blnkfinance/dispatch/internal/redis-db"
)

const (
	defaultLookahead   = 5
	defaultLockTimeout = 5 * time.Minute
	defaultLockWait    = 30 * time.Second
)

//go:embed sql/*.sql
var SQLFiles embed.FS

// Dispatch consolidates recurring orders into dispatch schedules. All state
// lives in the datasource; the Redis client, when set, serializes sync runs
// across processes.
type Dispatch struct {
	datasource  database.IDataSource
	redis       redis.UniversalClient
	queue       *Queue
	now         func() time.Time
	location    *time.Location
	lookahead   int
	lockTimeout time.Duration
	lockWait    time.Duration
	notify      func(error)
}

type Option func(*Dispatch)

// WithRedis enables the sync and per-date locks.
func WithRedis(client redis.UniversalClient) Option {
	return func(d *Dispatch) {
		d.redis = client
	}
}

func WithQueue(queue *Queue) Option {
	return func(d *Dispatch) {
		d.queue = queue
	}
}

// WithClock replaces time.Now as the source of "today".
func WithClock(now func() time.Time) Option {
	return func(d *Dispatch) {
		d.now = now
	}
}

// WithLocation sets the zone in which "today" is read.
func WithLocation(loc *time.Location) Option {
	return func(d *Dispatch) {
		if loc != nil {
			d.location = loc
		}
	}
}

// WithLookahead sets how many occurrences per order a sync run covers.
func WithLookahead(count int) Option {
	return func(d *Dispatch) {
		if count > 0 {
			d.lookahead = count
		}
	}
}

func WithLockTimeouts(lockTimeout, lockWait time.Duration) Option {
	return func(d *Dispatch) {
		if lockTimeout > 0 {
			d.lockTimeout = lockTimeout
		}
		if lockWait > 0 {
			d.lockWait = lockWait
		}
	}
}

// WithNotifier replaces the handler of fatal sync errors.
func WithNotifier(notify func(error)) Option {
	return func(d *Dispatch) {
		d.notify = notify
	}
}

// New builds a Dispatch over db. Without WithRedis no locks are taken.
func New(db database.IDataSource, opts ...Option) *Dispatch {
	d := &Dispatch{
		datasource:  db,
		now:         time.Now,
		location:    time.UTC,
		lookahead:   defaultLookahead,
		lockTimeout: defaultLockTimeout,
		lockWait:    defaultLockWait,
		notify:      notification.NotifyError,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// NewDispatch builds a Dispatch from the loaded configuration. Redis and the
// job queue are only wired when a Redis DNS is configured.
func NewDispatch(db database.IDataSource) (*Dispatch, error) {
	configuration, err := config.Fetch()
	if err != nil {
		return nil, err
	}

	opts := []Option{
		WithLocation(configuration.Sync.Location()),
		WithLookahead(configuration.Sync.Lookahead),
		WithLockTimeouts(configuration.Sync.LockTimeout(), configuration.Sync.LockWait()),
	}

	if configuration.Redis.Dns != "" {
		redisClient, err := redis_db.NewRedisClient([]string{configuration.Redis.Dns}, configuration.Redis.SkipTLSVerify)
		if err != nil {
			return nil, err
		}
		queue, err := NewQueue(configuration)
		if err != nil {
			return nil, err
		}
		opts = append(opts, WithRedis(redisClient.Client()), WithQueue(queue))
	}

	return New(db, opts...), nil
}

// DataSource returns the persistence port in use.
func (d *Dispatch) DataSource() database.IDataSource {
	return d.datasource
}

// Queue returns the job queue, or nil when Redis is not configured.
func (d *Dispatch) Queue() *Queue {
	return d.queue
}

// Today is the current calendar date in the configured location.
func (d *Dispatch) Today() time.Time {
	y, m, day := d.now().In(d.location).Date()
	return time.Date(y, m, day, 0, 0, 0, 0, time.UTC)
}
