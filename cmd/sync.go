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
	"encoding/json"
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"github.com/blnkfinance/dispatch/model"
)

// syncCommands returns the `sync` command which runs a single sync pass and
// prints its result.
func syncCommands(d *dispatchInstance) *cobra.Command {
	var date string

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "sync recurring orders into dispatch schedules",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			stopTracing, err := initializeTracing(ctx, d.cnf)
			if err != nil {
				return err
			}
			defer stopTracing()

			var result interface{}
			if date == "" {
				result, err = d.dispatch.SyncAll(ctx)
			} else {
				day, parseErr := model.ParseDate(date)
				if parseErr != nil {
					return parseErr
				}
				result, err = d.dispatch.SyncDate(ctx, day)
			}

			data, marshalErr := json.MarshalIndent(result, "", "    ")
			if marshalErr != nil {
				log.Printf("Error printing sync result: %v", marshalErr)
			} else {
				fmt.Println(string(data))
			}
			return err
		},
	}

	cmd.Flags().StringVar(&date, "date", "", "only sync the given date (YYYY-MM-DD)")
	return cmd
}
