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
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/blnkfinance/dispatch"
	"github.com/blnkfinance/dispatch/config"
	"github.com/blnkfinance/dispatch/database"
	"github.com/blnkfinance/dispatch/internal/notification"
)

// Dispatch represents the CLI application, encapsulating the root Cobra command.
type Dispatch struct {
	cmd *cobra.Command
}

// dispatchInstance holds the service and configuration shared by subcommands.
type dispatchInstance struct {
	dispatch   *dispatch.Dispatch
	cnf        *config.Configuration
	configFile string
}

// recoverPanic handles any panics during program execution and logs the error using Logrus.
func recoverPanic() {
	if rec := recover(); rec != nil {
		logrus.Error(rec)
		os.Exit(1)
	}
}

// preRun loads the configuration and builds the service before any
// subcommand runs.
func preRun(app *dispatchInstance) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		err := config.InitConfig(app.configFile)
		if err != nil {
			log.Fatal("error loading config ", err)
		}

		cnf, err := config.Fetch()
		if err != nil {
			return err
		}
		app.cnf = cnf

		// migrate and config only need the configuration
		if cmd.Name() == "config" || (cmd.Parent() != nil && cmd.Parent().Name() == "migrate") {
			return nil
		}

		newDispatch, err := setupDispatch(cnf)
		if err != nil {
			notification.NotifyError(err)
			log.Fatal(err)
		}
		app.dispatch = newDispatch
		return nil
	}
}

// setupDispatch connects the datasource and creates the service.
func setupDispatch(cfg *config.Configuration) (*dispatch.Dispatch, error) {
	db, err := database.NewDataSource(cfg)
	if err != nil {
		return nil, fmt.Errorf("error getting datasource: %v", err)
	}

	newDispatch, err := dispatch.NewDispatch(db)
	if err != nil {
		return nil, fmt.Errorf("error creating dispatch: %v", err)
	}
	return newDispatch, nil
}

// NewCLI creates the root command and registers the subcommands.
func NewCLI() *Dispatch {
	d := &dispatchInstance{}

	var rootCmd = &cobra.Command{
		Use:   "dispatch",
		Short: "Recurring delivery order scheduler",
		Run:   func(cmd *cobra.Command, args []string) {},
	}

	rootCmd.PersistentFlags().StringVar(&d.configFile, "config", "./"+config.DEFAULT_CONFIG_FILE, "Configuration file for dispatch")
	rootCmd.PersistentPreRunE = preRun(d)

	rootCmd.AddCommand(serverCommands(d))
	rootCmd.AddCommand(syncCommands(d))
	rootCmd.AddCommand(schedulerCommands(d))
	rootCmd.AddCommand(workerCommands(d))
	rootCmd.AddCommand(migrateCommands(d))
	rootCmd.AddCommand(configCommands(d))

	return &Dispatch{cmd: rootCmd}
}

func (w Dispatch) executeCLI() {
	if err := w.cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func main() {
	defer recoverPanic()

	cli := NewCLI()
	cli.executeCLI()
}
