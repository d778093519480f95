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
	"fmt"
	"log"

	migrate "github.com/rubenv/sql-migrate"
	"github.com/spf13/cobra"

	"github.com/blnkfinance/dispatch"
	"github.com/blnkfinance/dispatch/database"
)

const migrationSchema = "dispatch"

// migrateCommands creates the root command for migration-related operations.
func migrateCommands(d *dispatchInstance) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "run dispatch database migrations",
	}

	cmd.AddCommand(migrateDirectionCommand(d, "up", migrate.Up))
	cmd.AddCommand(migrateDirectionCommand(d, "down", migrate.Down))

	return cmd
}

func migrationSource() *migrate.EmbedFileSystemMigrationSource {
	return &migrate.EmbedFileSystemMigrationSource{
		FileSystem: dispatch.SQLFiles,
		Root:       "sql",
	}
}

func migrateDirectionCommand(d *dispatchInstance, use string, direction migrate.MigrationDirection) *cobra.Command {
	cmd := &cobra.Command{
		Use:   use,
		Short: fmt.Sprintf("apply migrations %s", use),
		Run: func(cmd *cobra.Command, args []string) {
			db, err := database.ConnectDB(d.cnf.DataSource.Dns)
			if err != nil {
				log.Printf("Error connecting to database: %v", err)
				return
			}
			defer db.Close()

			// the migrations table lives next to the tables it tracks
			if _, err := db.Exec("CREATE SCHEMA IF NOT EXISTS " + migrationSchema); err != nil {
				log.Printf("Error creating schema: %v", err)
				return
			}
			migrate.SetSchema(migrationSchema)

			n, err := migrate.Exec(db, "postgres", migrationSource(), direction)
			if err != nil {
				log.Printf("Error migrating %s: %v", use, err)
				return
			}
			fmt.Printf("Applied %d migrations %s!\n", n, use)
		},
	}

	return cmd
}
