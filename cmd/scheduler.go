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
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/blnkfinance/dispatch/config"
)

// cronLogger adapts logrus to cron.Logger.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	logrus.WithFields(cronFields(keysAndValues)).Debug(msg)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	logrus.WithFields(cronFields(keysAndValues)).WithError(err).Error(msg)
}

func cronFields(keysAndValues []interface{}) logrus.Fields {
	fields := logrus.Fields{}
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		if key, ok := keysAndValues[i].(string); ok {
			fields[key] = keysAndValues[i+1]
		}
	}
	return fields
}

// newSyncScheduler builds a cron scheduler that runs job on the configured
// schedule. A run still in progress causes the next tick to be skipped.
func newSyncScheduler(cfg config.SyncConfig, job func()) (*cron.Cron, error) {
	logger := cronLogger{}
	c := cron.New(
		cron.WithLocation(cfg.Location()),
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)
	if _, err := c.AddFunc(cfg.Cron, job); err != nil {
		return nil, err
	}
	return c, nil
}

// schedulerCommands returns the `scheduler` command. When the job queue is
// configured each tick enqueues a sync for the workers; otherwise the sync
// runs in this process.
func schedulerCommands(d *dispatchInstance) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scheduler",
		Short: "run recurring order sync on a schedule",
		Run: func(cmd *cobra.Command, args []string) {
			job := func() {
				ctx := context.Background()
				if queue := d.dispatch.Queue(); queue != nil {
					if err := queue.EnqueueSyncAll(ctx); err != nil {
						logrus.Errorf("failed to enqueue scheduled sync: %v", err)
					}
					return
				}

				result, err := d.dispatch.SyncAll(ctx)
				if err != nil {
					logrus.Errorf("scheduled sync failed: %v", err)
					return
				}
				logrus.Infof("scheduled sync created %d stops across %d dates", result.ProcessedCount, len(result.Dates))
			}

			stopTracing, err := initializeTracing(context.Background(), d.cnf)
			if err != nil {
				log.Fatal(err)
			}
			defer stopTracing()

			c, err := newSyncScheduler(d.cnf.Sync, job)
			if err != nil {
				log.Fatalf("invalid sync schedule: %v", err)
			}

			log.Printf("Sync scheduler started with cron %q in %s", d.cnf.Sync.Cron, d.cnf.Sync.Timezone)
			c.Start()

			quit := make(chan os.Signal, 1)
			signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
			<-quit

			<-c.Stop().Done()
			log.Println("Sync scheduler stopped")
		},
	}

	return cmd
}
