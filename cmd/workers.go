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

package main

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/hibiken/asynq"
	"github.com/hibiken/asynqmon"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"

	"github.com/blnkfinance/dispatch"
	"github.com/blnkfinance/dispatch/config"
	redis_db "github.com/blnkfinance/dispatch/internal/redis-db"
)

// processSyncAll runs a full sync for a queued task.
func (d *dispatchInstance) processSyncAll(ctx context.Context, _ *asynq.Task) error {
	ctx, span := otel.Tracer("dispatch.worker").Start(ctx, "Process Sync From Redis Queue")
	defer span.End()

	result, err := d.dispatch.SyncAll(ctx)
	if err != nil {
		return err
	}

	log.Printf(" [*] Sync processed: %d stops created across %d dates", result.ProcessedCount, len(result.Dates))
	return nil
}

// processSyncDate runs a single-date sync for a queued task.
func (d *dispatchInstance) processSyncDate(ctx context.Context, t *asynq.Task) error {
	ctx, span := otel.Tracer("dispatch.worker").Start(ctx, "Process Date Sync From Redis Queue")
	defer span.End()

	date, err := dispatch.ParseSyncDatePayload(t.Payload())
	if err != nil {
		logrus.Error(err)
		return fmt.Errorf("invalid sync date payload: %v: %w", err, asynq.SkipRetry)
	}

	result, err := d.dispatch.SyncDate(ctx, date)
	if err != nil {
		return err
	}

	log.Printf(" [*] Date sync processed %s: %d stops created", result.Date, result.ProcessedCount)
	return nil
}

func redisClientOpt(conf *config.Configuration) (asynq.RedisClientOpt, error) {
	redisOption, err := redis_db.ParseRedisURL(conf.Redis.Dns, conf.Redis.SkipTLSVerify)
	if err != nil {
		return asynq.RedisClientOpt{}, fmt.Errorf("error parsing Redis URL: %v", err)
	}
	return asynq.RedisClientOpt{
		Addr:      redisOption.Addr,
		Password:  redisOption.Password,
		DB:        redisOption.DB,
		TLSConfig: redisOption.TLSConfig,
	}, nil
}

// initializeWorkerServer runs a single worker so sync passes never overlap.
func initializeWorkerServer(conf *config.Configuration) (*asynq.Server, error) {
	opt, err := redisClientOpt(conf)
	if err != nil {
		return nil, err
	}

	return asynq.NewServer(opt, asynq.Config{
		Concurrency: 1,
		Queues:      map[string]int{conf.Queue.SyncQueue: 1},
		Logger:      logrus.StandardLogger(),
	}), nil
}

func initializeTaskHandlers(d *dispatchInstance, mux *asynq.ServeMux) {
	mux.HandleFunc(dispatch.TaskSyncAll, d.processSyncAll)
	mux.HandleFunc(dispatch.TaskSyncDate, d.processSyncDate)
}

// workerCommands defines the "workers" command which consumes the sync queue.
func workerCommands(d *dispatchInstance) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "workers",
		Short: "start dispatch workers",
		Run: func(cmd *cobra.Command, args []string) {
			conf := d.cnf
			if conf.Redis.Dns == "" {
				log.Fatal("workers need redis: set redis.dns")
			}

			stopTracing, err := initializeTracing(context.Background(), conf)
			if err != nil {
				log.Fatal(err)
			}
			defer stopTracing()

			srv, err := initializeWorkerServer(conf)
			if err != nil {
				log.Fatal(err)
			}

			mux := asynq.NewServeMux()
			initializeTaskHandlers(d, mux)

			opt, _ := redisClientOpt(conf)
			h := asynqmon.New(asynqmon.Options{
				RootPath:     "/monitoring",
				RedisConnOpt: opt,
			})

			go func() {
				monitoringAddr := fmt.Sprintf(":%s", conf.Queue.MonitoringPort)
				log.Printf("Asynqmon server listening on %s/monitoring", monitoringAddr)
				if err := http.ListenAndServe(monitoringAddr, h); err != nil {
					log.Printf("could not start asynqmon server: %v", err)
				}
			}()

			if err := srv.Run(mux); err != nil {
				log.Printf("could not run server: %v", err)
			}
		},
	}

	return cmd
}
