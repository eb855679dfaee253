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
	"context"
	"log"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/surgecart/surge"
	"github.com/surgecart/surge/api"
	"github.com/surgecart/surge/broker"
	"github.com/surgecart/surge/config"
	"github.com/surgecart/surge/database"
)

func initializeRouter(s *surgeInstance) *gin.Engine {
	return api.NewAPI(s.surge).Router()
}

func startServer(router *gin.Engine, cfg config.ServerConfig) error {
	log.Printf("Starting server on http://localhost:%s", cfg.Port)
	return router.Run(":" + cfg.Port)
}

// serverCommands returns the Cobra command that starts the API server and
// the delivery scanner beside it. The scanner deliberately shares the
// process: every replica scans, and the version checks keep replicas from
// double-delivering.
func serverCommands(s *surgeInstance) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start",
		Short: "start surge server",
		Run: func(cmd *cobra.Command, args []string) {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			router := initializeRouter(s)

			cfg, err := config.Fetch()
			if err != nil {
				log.Fatal(err)
			}

			db, err := database.NewDataSource(cfg)
			if err != nil {
				log.Fatal(err)
			}
			publisher, err := broker.NewPublisher(cfg)
			if err != nil {
				log.Fatal(err)
			}

			scanner := surge.NewDeliveryScanner(db, publisher, cfg)
			go scanner.Start(ctx)

			if err := startServer(router, cfg.Server); err != nil {
				log.Fatal(err)
			}
		},
	}

	return cmd
}
