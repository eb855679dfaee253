/*
Copyright 2025 Surgecart Authors.

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
	"github.com/surgecart/surge"
	"github.com/surgecart/surge/config"
	"github.com/surgecart/surge/database"
	"github.com/surgecart/surge/internal/notification"
)

// Surge represents the CLI application, encapsulating the root Cobra command.
type Surge struct {
	cmd *cobra.Command
}

// surgeInstance holds the runtime Surge instance and its configuration so
// subcommands can share them.
type surgeInstance struct {
	surge *surge.Surge
	cnf   *config.Configuration
}

func recoverPanic() {
	if rec := recover(); rec != nil {
		logrus.Error(rec)
		os.Exit(1)
	}
}

// preRun loads the configuration and initializes the Surge instance before
// any command runs.
func preRun(app *surgeInstance) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		err := config.InitConfig("surge.json")
		if err != nil {
			log.Fatal("error loading config", err)
		}

		cnf, err := config.Fetch()
		if err != nil {
			return err
		}

		newSurge, err := setupSurge(cnf)
		if err != nil {
			notification.NotifyError(err)
			log.Fatal(err)
		}

		app.surge = newSurge
		app.cnf = cnf

		return nil
	}
}

// setupSurge creates a Surge instance wired to the configured datasource.
func setupSurge(cfg *config.Configuration) (*surge.Surge, error) {
	db, err := database.NewDataSource(cfg)
	if err != nil {
		return nil, fmt.Errorf("error getting datasource: %v", err)
	}

	newSurge, err := surge.NewSurge(db)
	if err != nil {
		return nil, fmt.Errorf("error creating surge: %v", err)
	}
	return newSurge, nil
}

// NewCLI creates the command-line interface for the Surge application.
func NewCLI() *Surge {
	var configFile string
	s := &surgeInstance{}

	var rootCmd = &cobra.Command{
		Use:   "surge",
		Short: "Flash-sale admission gate and reliable delivery pipeline",
		Run:   func(cmd *cobra.Command, args []string) {},
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "./surge.json", "Configuration file for surge")

	rootCmd.PersistentPreRunE = preRun(s)

	rootCmd.AddCommand(serverCommands(s))
	rootCmd.AddCommand(workerCommands(s))
	rootCmd.AddCommand(migrateCommands(s))

	return &Surge{cmd: rootCmd}
}

func (w Surge) executeCLI() {
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
