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
	"time"

	"github.com/sirupsen/logrus"

	"github.com/blnkfinance/dispatch/config"
	"github.com/blnkfinance/dispatch/internal/traces"
)

const tracingShutdownTimeout = 5 * time.Second

// initializeTracing installs the tracer provider when telemetry is enabled.
// The returned func flushes and stops it.
func initializeTracing(ctx context.Context, cfg *config.Configuration) (func(), error) {
	shutdown, err := traces.SetupOTelSDK(ctx, cfg.ProjectName, cfg.Telemetry)
	if err != nil {
		return nil, fmt.Errorf("error setting up OTel SDK: %v", err)
	}

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), tracingShutdownTimeout)
		defer cancel()
		if err := shutdown(ctx); err != nil {
			logrus.Errorf("error shutting down tracer provider: %v", err)
		}
	}, nil
}
