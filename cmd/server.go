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

	"github.com/spf13/cobra"

	"github.com/blnkfinance/dispatch/api"
)

// serverCommands returns the `start` command which serves the HTTP API.
func serverCommands(d *dispatchInstance) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start",
		Short: "start dispatch server",
		Run: func(cmd *cobra.Command, args []string) {
			stopTracing, err := initializeTracing(context.Background(), d.cnf)
			if err != nil {
				log.Fatal(err)
			}
			defer stopTracing()

			server := api.NewAPI(d.dispatch)
			if server == nil {
				log.Fatal("failed to initialize api: configuration not loaded")
			}

			port := d.cnf.Server.Port
			log.Printf("Starting server on http://localhost:%s", port)
			if err := server.Router().Run(":" + port); err != nil {
				log.Println(err)
			}
		},
	}

	return cmd
}
